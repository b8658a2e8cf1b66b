package sara

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchParams represents parameters for SARA search queries
type SearchParams struct {
	// Collection selects the mission, e.g. "S1", "S2"
	Collection string

	// Spatial filter
	Geometry string // WKT geometry string

	// Temporal filters
	StartDate      *time.Time // Acquisition start (inclusive)
	CompletionDate *time.Time // Acquisition completion (inclusive)

	// Product filters
	ProductType     string
	ProcessingLevel string
	ProductID       string // exact product identifier

	// Acquisition filters
	Polarisation   []string // e.g. "VV", "VH"
	SensorMode     string   // e.g. "IW", "EW"
	OrbitDirection string   // "ascending" or "descending"
	OrbitNumber    *int
	Instrument     string

	// Quality filters
	MaxCloudCover *int // percentage, Sentinel-2 only

	// Paging
	// Note: SARA caps itemsPerPage server-side; the client pages through
	// the full result set itself.
	MaxRecords int
	Page       int
}

// ToQueryString converts SearchParams to a URL query string
func (p *SearchParams) ToQueryString() string {
	return p.ToURLValues().Encode()
}

// ToURLValues converts SearchParams to url.Values for query string building
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}

	if p.Geometry != "" {
		values.Set("geometry", p.Geometry)
	}

	if p.StartDate != nil {
		values.Set("startDate", formatSaraTime(p.StartDate))
	}
	if p.CompletionDate != nil {
		values.Set("completionDate", formatSaraTime(p.CompletionDate))
	}

	if p.ProductType != "" {
		values.Set("productType", p.ProductType)
	}
	if p.ProcessingLevel != "" {
		values.Set("processingLevel", p.ProcessingLevel)
	}
	if p.ProductID != "" {
		values.Set("productIdentifier", p.ProductID)
	}

	if len(p.Polarisation) > 0 {
		values.Set("polarisation", strings.Join(p.Polarisation, ","))
	}
	if p.SensorMode != "" {
		values.Set("sensorMode", p.SensorMode)
	}
	if p.OrbitDirection != "" {
		values.Set("orbitDirection", strings.ToLower(p.OrbitDirection))
	}
	if p.OrbitNumber != nil {
		values.Set("orbitNumber", strconv.Itoa(*p.OrbitNumber))
	}
	if p.Instrument != "" {
		values.Set("instrument", p.Instrument)
	}

	// SARA expects an interval; a single ceiling becomes [0, ceiling].
	if p.MaxCloudCover != nil {
		values.Set("cloudCover", fmt.Sprintf("[0,%d]", *p.MaxCloudCover))
	}

	if p.MaxRecords > 0 {
		values.Set("maxRecords", strconv.Itoa(p.MaxRecords))
	}
	if p.Page > 0 {
		values.Set("page", strconv.Itoa(p.Page))
	}

	return values
}

// formatSaraTime formats a time.Time for SARA API queries
// SARA expects ISO 8601 format: YYYY-MM-DDTHH:MM:SSZ
func formatSaraTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
