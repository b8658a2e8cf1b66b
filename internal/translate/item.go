// Package translate converts archive metadata records into STAC items for
// the holdings API.
package translate

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/planetlabs/go-stac"

	"github.com/auscophub/archive/internal/geom"
	"github.com/auscophub/archive/internal/meta"
)

// ItemFromMeta converts a metadata record to a STAC Item. The itemID is the
// product name (zipfile basename without extension); downloadHref, when not
// empty, becomes the data asset.
func ItemFromMeta(m *meta.ZipfileMeta, itemID, collectionID, baseURL, stacVersion, downloadHref string) (*stac.Item, error) {
	if m == nil {
		return nil, fmt.Errorf("metadata record is nil")
	}
	if itemID == "" {
		return nil, fmt.Errorf("item has no ID")
	}

	item := &stac.Item{
		Version:    stacVersion,
		Id:         itemID,
		Collection: collectionID,
		Properties: make(map[string]any),
		Assets:     make(map[string]*stac.Asset),
		Links:      make([]*stac.Link, 0),
	}

	if m.Footprint != nil {
		// Footprints crossing the dateline are published as a split
		// MultiPolygon so GeoJSON consumers see two valid pieces.
		pieces := geom.SplitAtDateline(m.Footprint)
		if len(pieces) == 1 {
			item.Geometry = geojson.NewGeometry(pieces[0])
		} else {
			item.Geometry = geojson.NewGeometry(pieces)
		}
		item.Bbox = bboxOf(pieces)
	}

	item.Properties["datetime"] = FormatSTACTime(m.Datetime)
	item.Properties["start_datetime"] = FormatSTACTime(m.StartTime)
	item.Properties["end_datetime"] = FormatSTACTime(m.StopTime)

	if platform := platformName(m.SatelliteID); platform != "" {
		item.Properties["platform"] = platform
	}
	if m.Instrument != "" {
		item.Properties["instruments"] = []string{strings.ToLower(m.Instrument)}
	}
	if mission := m.MissionNumber(); mission != 0 {
		item.Properties["constellation"] = fmt.Sprintf("sentinel-%d", mission)
	}
	if m.ProcessingLevel != "" {
		item.Properties["processing:level"] = m.ProcessingLevel
	}
	if m.ProcessingSoftware != "" {
		item.Properties["processing:software"] = m.ProcessingSoftware
	}

	// SAR extension, for the radar mission.
	if m.Mode != "" {
		item.Properties["sar:instrument_mode"] = m.Mode
	}
	if len(m.Polarisations) > 0 {
		item.Properties["sar:polarizations"] = m.Polarisations
	}
	if m.MissionNumber() == 1 && m.ProductType != "" {
		item.Properties["sar:product_type"] = m.ProductType
		item.Properties["sar:frequency_band"] = "C"
	}

	// EO extension, for the optical missions.
	if m.CloudCoverPct != nil {
		item.Properties["eo:cloud_cover"] = *m.CloudCoverPct
	}

	// Satellite extension.
	if m.PassDirection != "" {
		item.Properties["sat:orbit_state"] = strings.ToLower(m.PassDirection)
	}
	if m.RelativeOrbit != nil {
		item.Properties["sat:relative_orbit"] = *m.RelativeOrbit
	}
	if m.AbsoluteOrbit != nil {
		item.Properties["sat:absolute_orbit"] = *m.AbsoluteOrbit
	}

	if len(m.MGRSTiles) > 0 {
		item.Properties["grid:code"] = mgrsCodes(m.MGRSTiles)
	}

	if downloadHref != "" {
		item.Assets["data"] = &stac.Asset{
			Href:  downloadHref,
			Title: "Product Data",
			Type:  "application/zip",
			Roles: []string{"data"},
		}
	}

	addLinks(item, collectionID, baseURL)

	return item, nil
}

// bboxOf computes the WGS84 bounding box across all pieces.
func bboxOf(pieces orb.MultiPolygon) []float64 {
	bound := pieces.Bound()
	return []float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()}
}

// platformName maps "S1A" onto the STAC platform identifier "sentinel-1a".
func platformName(satelliteID string) string {
	if len(satelliteID) < 2 || satelliteID[0] != 'S' {
		return ""
	}
	return "sentinel-" + strings.ToLower(satelliteID[1:])
}

// mgrsCodes renders MGRS tile names in the grid extension form, e.g.
// "MGRS-55HBA".
func mgrsCodes(tiles []string) []string {
	codes := make([]string, len(tiles))
	for i, t := range tiles {
		codes[i] = "MGRS-" + t
	}
	return codes
}

// addLinks adds STAC links (self, parent, collection, root) to the item
func addLinks(item *stac.Item, collectionID, baseURL string) {
	if baseURL == "" {
		return
	}

	item.Links = append(item.Links,
		&stac.Link{
			Rel:  "self",
			Href: fmt.Sprintf("%s/collections/%s/items/%s", baseURL, collectionID, item.Id),
			Type: "application/geo+json",
		},
		&stac.Link{
			Rel:  "parent",
			Href: fmt.Sprintf("%s/collections/%s", baseURL, collectionID),
			Type: "application/json",
		},
		&stac.Link{
			Rel:  "collection",
			Href: fmt.Sprintf("%s/collections/%s", baseURL, collectionID),
			Type: "application/json",
		},
		&stac.Link{
			Rel:  "root",
			Href: baseURL,
			Type: "application/json",
		},
	)
}
