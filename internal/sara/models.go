package sara

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/auscophub/archive/internal/geom"
	"github.com/auscophub/archive/internal/meta"
)

// FeatureCollection represents SARA's GeoJSON search response
type FeatureCollection struct {
	Type       string               `json:"type"` // "FeatureCollection"
	Properties CollectionProperties `json:"properties"`
	Features   []Feature            `json:"features"`
}

// CollectionProperties carries the paging metadata SARA reports with each
// result page
type CollectionProperties struct {
	TotalResults *int `json:"totalResults"`
	ItemsPerPage int  `json:"itemsPerPage"`
	StartIndex   int  `json:"startIndex"`
}

// Feature represents a single SARA search result
type Feature struct {
	Type       string            `json:"type"` // "Feature"
	ID         string            `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Properties        `json:"properties"`
}

// Properties contains SARA metadata for one product
type Properties struct {
	Title             string `json:"title"`
	ProductIdentifier string `json:"productIdentifier"`
	ProductType       string `json:"productType"`
	ProcessingLevel   string `json:"processingLevel"`
	Platform          string `json:"platform"`
	Instrument        string `json:"instrument"`

	StartDate      string `json:"startDate"`
	CompletionDate string `json:"completionDate"`
	Published      string `json:"published"`

	CloudCover     *float64 `json:"cloudCover"`
	Polarisation   string   `json:"polarisation"`
	SensorMode     string   `json:"sensorMode"`
	OrbitDirection string   `json:"orbitDirection"`
	OrbitNumber    *int     `json:"orbitNumber"`
	RelativeOrbit  *int     `json:"relativeOrbitNumber"`

	Quicklook string   `json:"quicklook"`
	Services  Services `json:"services"`
}

// Services holds the download endpoint details for a product
type Services struct {
	Download Download `json:"download"`
}

// Download describes the product zipfile held by the server
type Download struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"` // "md5:<hex digest>"
}

// MD5 extracts the hex digest from the checksum field, which is prefixed
// with the algorithm name. Returns "" when no MD5 checksum is present.
func (d Download) MD5() string {
	if algo, digest, ok := strings.Cut(d.Checksum, ":"); ok && strings.EqualFold(algo, "md5") {
		return digest
	}
	return ""
}

// ToMeta converts a search result into the canonical metadata record.
// Fields the catalog does not report (swaths, preview payload, MGRS tiles)
// stay empty.
func (f *Feature) ToMeta() (*meta.ZipfileMeta, error) {
	m := &meta.ZipfileMeta{
		SatelliteID:     platformID(f.Properties.Platform),
		Instrument:      f.Properties.Instrument,
		ProductType:     f.Properties.ProductType,
		ProcessingLevel: f.Properties.ProcessingLevel,
		Mode:            f.Properties.SensorMode,
		ZipfileSize:     f.Properties.Services.Download.Size,
		MD5ESA:          f.Properties.Services.Download.MD5(),
	}

	var err error
	if m.StartTime, err = parseSaraTime(f.Properties.StartDate); err != nil {
		return nil, fmt.Errorf("feature %s: startDate: %w", f.ID, err)
	}
	if m.StopTime, err = parseSaraTime(f.Properties.CompletionDate); err != nil {
		return nil, fmt.Errorf("feature %s: completionDate: %w", f.ID, err)
	}
	m.Datetime = m.StartTime

	if f.Properties.Polarisation != "" {
		m.Polarisations = strings.Split(f.Properties.Polarisation, ",")
	}
	if d := f.Properties.OrbitDirection; d != "" {
		m.PassDirection = strings.ToUpper(d[:1]) + strings.ToLower(d[1:])
	}
	m.AbsoluteOrbit = f.Properties.OrbitNumber
	m.RelativeOrbit = f.Properties.RelativeOrbit
	if f.Properties.CloudCover != nil {
		pct := int(*f.Properties.CloudCover + 0.5)
		m.CloudCoverPct = &pct
	}

	if f.Geometry != nil {
		switch g := f.Geometry.Geometry().(type) {
		case orb.Polygon:
			m.Footprint = g
		case orb.MultiPolygon:
			if len(g) > 0 {
				m.Footprint = g[0]
			}
		}
		if m.Footprint != nil {
			if epsg, ok := geom.FindSensibleProjection(m.Footprint); ok {
				if ctr, err := geom.Centroid(m.Footprint, epsg); err == nil {
					m.Centroid = &ctr
				}
			}
		}
	}

	return m, nil
}

// platformID maps the catalog platform name ("S1A" or "Sentinel-1A") onto
// the short satellite identifier.
func platformID(platform string) string {
	if rest, ok := strings.CutPrefix(platform, "Sentinel-"); ok {
		return "S" + rest
	}
	return platform
}

// parseSaraTime parses the catalog timestamp form, with or without
// fractional seconds.
func parseSaraTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999Z",
		"2006-01-02T15:04:05.999999",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
