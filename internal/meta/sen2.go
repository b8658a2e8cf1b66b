package meta

import (
	"archive/zip"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"

	"github.com/auscophub/archive/internal/geom"
)

// ParseSen2Zipfile reads the user-product metadata XML from a Sentinel-2
// SAFE zipfile.
func ParseSen2Zipfile(zipfilename string) (*ZipfileMeta, error) {
	zr, err := zip.OpenReader(zipfilename)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrSen2Meta, zipfilename, err)
	}
	defer zr.Close()

	safeDir, ok := safeDirName(zr)
	if !ok {
		return nil, fmt.Errorf("%w: no .SAFE directory in %s", ErrSen2Meta, zipfilename)
	}

	var mtdName string
	for _, f := range zr.File {
		base := f.Name[strings.LastIndex(f.Name, "/")+1:]
		if strings.HasPrefix(f.Name, safeDir) && strings.HasPrefix(base, "MTD_") &&
			strings.HasSuffix(base, ".xml") && strings.Count(strings.TrimPrefix(f.Name, safeDir), "/") == 0 {
			mtdName = f.Name
			break
		}
	}
	if mtdName == "" {
		return nil, fmt.Errorf("%w: no MTD_*.xml in %s", ErrSen2Meta, zipfilename)
	}

	data, err := readMember(zr, mtdName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSen2Meta, err)
	}
	m, err := ParseSen2MTD(data)
	if err != nil {
		return nil, err
	}
	m.PreviewImage = findPreview(zr, safeDir)
	return m, nil
}

// ParseSen2MTD parses the content of a Sentinel-2 user-product metadata XML
// (MTD_MSIL1C.xml and friends).
//
// The MGRS tile list is assembled from the per-granule identifiers rather
// than any product-level tile list; the product-level list has historically
// been unreliable and the granules are what is actually in the archive.
func ParseSen2MTD(data []byte) (*ZipfileMeta, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: malformed metadata XML: %v", ErrSen2Meta, err)
	}

	m := &ZipfileMeta{Instrument: "MSI"}

	spacecraft, err := sen2Text(doc, "//Datatake/SPACECRAFT_NAME")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(spacecraft, "Sentinel-2") {
		return nil, fmt.Errorf("%w: spacecraft %q does not appear to be Sentinel-2", ErrSen2Meta, spacecraft)
	}
	m.SatelliteID = "S2" + spacecraft[len(spacecraft)-1:]

	if m.ProductType, err = sen2Text(doc, "//Product_Info/PRODUCT_TYPE"); err != nil {
		return nil, err
	}
	if m.ProcessingLevel, err = sen2Text(doc, "//Product_Info/PROCESSING_LEVEL"); err != nil {
		return nil, err
	}

	startStr, err := sen2Text(doc, "//Product_Info/PRODUCT_START_TIME")
	if err != nil {
		return nil, err
	}
	if m.StartTime, err = parseSafeTime(startStr); err != nil {
		return nil, fmt.Errorf("%w: PRODUCT_START_TIME: %v", ErrSen2Meta, err)
	}
	stopStr, err := sen2Text(doc, "//Product_Info/PRODUCT_STOP_TIME")
	if err != nil {
		return nil, err
	}
	if m.StopTime, err = parseSafeTime(stopStr); err != nil {
		return nil, fmt.Errorf("%w: PRODUCT_STOP_TIME: %v", ErrSen2Meta, err)
	}
	m.Datetime = m.StartTime

	if genStr, err := sen2Text(doc, "//Product_Info/GENERATION_TIME"); err == nil {
		if t, err := parseSafeTime(genStr); err == nil {
			m.GenerationTime = &t
		}
	}
	if baseline := doc.FindElement("//Product_Info/PROCESSING_BASELINE"); baseline != nil {
		m.ProcessingSoftware = strings.TrimSpace(baseline.Text())
	}

	if orbitEl := doc.FindElement("//Datatake/SENSING_ORBIT_NUMBER"); orbitEl != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(orbitEl.Text())); err == nil {
			m.RelativeOrbit = &n
		}
	}
	if dirEl := doc.FindElement("//Datatake/SENSING_ORBIT_DIRECTION"); dirEl != nil {
		// Stored as "ASCENDING"/"DESCENDING"; keep the title-case form used
		// by the other missions.
		d := strings.ToUpper(strings.TrimSpace(dirEl.Text()))
		if len(d) > 1 {
			m.PassDirection = d[:1] + strings.ToLower(d[1:])
		}
	}

	// Footprint: the global footprint EXT_POS_LIST, given as lat lon pairs.
	posEl := doc.FindElement("//Global_Footprint/EXT_POS_LIST")
	if posEl == nil {
		return nil, fmt.Errorf("%w: missing Global_Footprint/EXT_POS_LIST", ErrSen2Meta)
	}
	footprint, err := polygonFromPosList(posEl.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: EXT_POS_LIST: %v", ErrSen2Meta, err)
	}
	m.Footprint = footprint
	if epsg, ok := geom.FindSensibleProjection(footprint); ok {
		if ctr, err := geom.Centroid(footprint, epsg); err == nil {
			m.Centroid = &ctr
		}
	}

	if cloudEl := doc.FindElement("//Cloud_Coverage_Assessment"); cloudEl != nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(cloudEl.Text()), 64); err == nil {
			pct := int(math.Round(v))
			m.CloudCoverPct = &pct
		}
	}

	tiles := map[string]bool{}
	for _, granule := range doc.FindElements("//Product_Organisation//Granule_List/Granule") {
		id := granule.SelectAttrValue("granuleIdentifier", "")
		if tile := mgrsTileFromGranuleID(id); tile != "" {
			tiles[tile] = true
		}
	}
	// Older products use Granules rather than Granule.
	for _, granule := range doc.FindElements("//Product_Organisation//Granule_List/Granules") {
		id := granule.SelectAttrValue("granuleIdentifier", "")
		if tile := mgrsTileFromGranuleID(id); tile != "" {
			tiles[tile] = true
		}
	}
	if len(tiles) > 0 {
		m.MGRSTiles = sortedKeys(tiles)
	}

	return m, nil
}

func sen2Text(doc *etree.Document, path string) (string, error) {
	el := doc.FindElement(path)
	if el == nil {
		return "", fmt.Errorf("%w: missing %s", ErrSen2Meta, path)
	}
	return strings.TrimSpace(el.Text()), nil
}

// mgrsTileFromGranuleID pulls the 5-character MGRS tile out of a granule
// identifier such as
// "S2A_OPER_MSI_L1C_TL_SGS__20170501T123456_A009731_T55HBA_N02.05".
func mgrsTileFromGranuleID(id string) string {
	fields := strings.Split(id, "_")
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		if len(f) == 6 && f[0] == 'T' && isDigit(f[1]) && isDigit(f[2]) {
			return f[1:]
		}
	}
	return ""
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// polygonFromPosList builds a closed polygon from a whitespace-separated
// "lat lon lat lon ..." position list, swapping each pair into lon/lat order.
func polygonFromPosList(text string) (orb.Polygon, error) {
	vals := strings.Fields(text)
	if len(vals) < 6 || len(vals)%2 != 0 {
		return nil, fmt.Errorf("position list has %d values", len(vals))
	}
	ring := make(orb.Ring, 0, len(vals)/2+1)
	for i := 0; i+1 < len(vals); i += 2 {
		lat, err := strconv.ParseFloat(vals[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude %q", vals[i])
		}
		lon, err := strconv.ParseFloat(vals[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude %q", vals[i+1])
		}
		ring = append(ring, orb.Point{geom.NormalizeLon(lon), lat})
	}
	if !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}
