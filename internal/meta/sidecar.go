package meta

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// descriptionRoot is the document element of the sidecar XML written next to
// every archived zipfile. Catalog crawlers key on this name, so it never
// changes.
const descriptionRoot = "AUSCOPHUB_SAFE_FILEDESCRIPTION"

const sidecarTimeLayout = "2006-01-02 15:04:05"

// DescriptionXML renders the sidecar description document for this record.
// Elements for absent optional fields are omitted entirely rather than
// written empty, so old and new sidecars stay comparable.
func (m *ZipfileMeta) DescriptionXML() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(descriptionRoot)

	sat := root.CreateElement("SATELLITE")
	sat.CreateAttr("name", m.SatelliteID)

	if m.Centroid != nil {
		ctr := root.CreateElement("CENTROID")
		ctr.CreateAttr("longitude", formatFloat(m.Centroid.Lon()))
		ctr.CreateAttr("latitude", formatFloat(m.Centroid.Lat()))
	}
	if m.CloudCoverPct != nil {
		cloud := root.CreateElement("ESA_CLOUD_COVER")
		cloud.CreateAttr("percentage", strconv.Itoa(*m.CloudCoverPct))
	}
	if m.Footprint != nil {
		root.CreateElement("ESA_TILEOUTLINE_FOOTPRINT_WKT").SetText(m.FootprintWKT())
	}

	acq := root.CreateElement("ACQUISITION_TIME")
	acq.CreateAttr("start_datetime_utc", m.StartTime.UTC().Format(sidecarTimeLayout))
	acq.CreateAttr("stop_datetime_utc", m.StopTime.UTC().Format(sidecarTimeLayout))

	if m.ProcessingSoftware != "" || m.GenerationTime != nil {
		proc := root.CreateElement("ESA_PROCESSING")
		if m.ProcessingSoftware != "" {
			proc.CreateAttr("software_version", m.ProcessingSoftware)
		}
		if m.GenerationTime != nil {
			proc.CreateAttr("processingtime_utc", m.GenerationTime.UTC().Format(sidecarTimeLayout))
		}
	}

	if len(m.Polarisations) > 0 {
		root.CreateElement("POLARISATION").CreateAttr("values", strings.Join(m.Polarisations, ","))
	}
	if len(m.Swaths) > 0 {
		root.CreateElement("SWATH").CreateAttr("values", strings.Join(m.Swaths, ","))
	}
	if m.Mode != "" {
		root.CreateElement("MODE").CreateAttr("value", m.Mode)
	}
	if m.RelativeOrbit != nil || m.AbsoluteOrbit != nil {
		orbits := root.CreateElement("ORBIT_NUMBERS")
		if m.RelativeOrbit != nil {
			orbits.CreateAttr("relative", strconv.Itoa(*m.RelativeOrbit))
		}
		if m.AbsoluteOrbit != nil {
			orbits.CreateAttr("absolute", strconv.Itoa(*m.AbsoluteOrbit))
		}
	}
	if m.PassDirection != "" {
		root.CreateElement("PASS").CreateAttr("direction", m.PassDirection)
	}

	zf := root.CreateElement("ZIPFILE")
	zf.CreateAttr("size_bytes", strconv.FormatInt(m.ZipfileSize, 10))
	if m.MD5Local != "" {
		zf.CreateAttr("md5_local", m.MD5Local)
	}
	if m.MD5ESA != "" {
		zf.CreateAttr("md5_esa", m.MD5ESA)
	}

	if len(m.MGRSTiles) > 0 {
		root.CreateElement("MGRSTILES").SetText("\n" + strings.Join(m.MGRSTiles, "\n") + "\n")
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

// ParseDescription reads a sidecar description document back into a metadata
// record. This is the inverse of DescriptionXML up to the fields the sidecar
// carries; fields the sidecar never stores (preview payload, processing
// level) stay zero.
func ParseDescription(data []byte) (*ZipfileMeta, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescription, err)
	}
	root := doc.SelectElement(descriptionRoot)
	if root == nil {
		return nil, fmt.Errorf("%w: no %s element", ErrDescription, descriptionRoot)
	}

	m := &ZipfileMeta{}

	sat := root.SelectElement("SATELLITE")
	if sat == nil || sat.SelectAttrValue("name", "") == "" {
		return nil, fmt.Errorf("%w: missing SATELLITE name", ErrDescription)
	}
	m.SatelliteID = sat.SelectAttrValue("name", "")

	if ctr := root.SelectElement("CENTROID"); ctr != nil {
		lon, err1 := strconv.ParseFloat(ctr.SelectAttrValue("longitude", ""), 64)
		lat, err2 := strconv.ParseFloat(ctr.SelectAttrValue("latitude", ""), 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: bad CENTROID coordinates", ErrDescription)
		}
		p := orb.Point{lon, lat}
		m.Centroid = &p
	}
	if cloud := root.SelectElement("ESA_CLOUD_COVER"); cloud != nil {
		if pct, err := strconv.Atoi(cloud.SelectAttrValue("percentage", "")); err == nil {
			m.CloudCoverPct = &pct
		}
	}
	if fp := root.SelectElement("ESA_TILEOUTLINE_FOOTPRINT_WKT"); fp != nil {
		g, err := wkt.Unmarshal(strings.TrimSpace(fp.Text()))
		if err != nil {
			return nil, fmt.Errorf("%w: footprint WKT: %v", ErrDescription, err)
		}
		switch geo := g.(type) {
		case orb.Polygon:
			m.Footprint = geo
		case orb.MultiPolygon:
			// Older sidecars occasionally carry split outlines; keep the
			// first piece as the footprint.
			if len(geo) > 0 {
				m.Footprint = geo[0]
			}
		default:
			return nil, fmt.Errorf("%w: footprint is %s, not a polygon", ErrDescription, g.GeoJSONType())
		}
	}

	acq := root.SelectElement("ACQUISITION_TIME")
	if acq == nil {
		return nil, fmt.Errorf("%w: missing ACQUISITION_TIME", ErrDescription)
	}
	var err error
	if m.StartTime, err = parseSidecarTime(acq.SelectAttrValue("start_datetime_utc", "")); err != nil {
		return nil, fmt.Errorf("%w: start_datetime_utc: %v", ErrDescription, err)
	}
	if m.StopTime, err = parseSidecarTime(acq.SelectAttrValue("stop_datetime_utc", "")); err != nil {
		return nil, fmt.Errorf("%w: stop_datetime_utc: %v", ErrDescription, err)
	}
	m.Datetime = m.StartTime

	if proc := root.SelectElement("ESA_PROCESSING"); proc != nil {
		m.ProcessingSoftware = proc.SelectAttrValue("software_version", "")
		if s := proc.SelectAttrValue("processingtime_utc", ""); s != "" {
			if t, err := parseSidecarTime(s); err == nil {
				m.GenerationTime = &t
			}
		}
	}

	if pol := root.SelectElement("POLARISATION"); pol != nil {
		m.Polarisations = splitCommaList(pol.SelectAttrValue("values", ""))
	}
	if sw := root.SelectElement("SWATH"); sw != nil {
		m.Swaths = splitCommaList(sw.SelectAttrValue("values", ""))
	}
	if mode := root.SelectElement("MODE"); mode != nil {
		m.Mode = mode.SelectAttrValue("value", "")
	}
	if orbits := root.SelectElement("ORBIT_NUMBERS"); orbits != nil {
		if n, err := strconv.Atoi(orbits.SelectAttrValue("relative", "")); err == nil {
			m.RelativeOrbit = &n
		}
		if n, err := strconv.Atoi(orbits.SelectAttrValue("absolute", "")); err == nil {
			m.AbsoluteOrbit = &n
		}
	}
	if pass := root.SelectElement("PASS"); pass != nil {
		m.PassDirection = pass.SelectAttrValue("direction", "")
	}
	if zf := root.SelectElement("ZIPFILE"); zf != nil {
		if n, err := strconv.ParseInt(zf.SelectAttrValue("size_bytes", ""), 10, 64); err == nil {
			m.ZipfileSize = n
		}
		m.MD5Local = zf.SelectAttrValue("md5_local", "")
		m.MD5ESA = zf.SelectAttrValue("md5_esa", "")
	}
	if tiles := root.SelectElement("MGRSTILES"); tiles != nil {
		m.MGRSTiles = strings.Fields(tiles.Text())
	}

	return m, nil
}

// parseSidecarTime parses the space-separated timestamp form used in sidecar
// files, with or without fractional seconds.
func parseSidecarTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		sidecarTimeLayout,
		"2006-01-02 15:04:05.999999",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
