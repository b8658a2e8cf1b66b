// Package meta extracts the canonical metadata record from Copernicus
// Sentinel SAFE zipfiles. One parser per mission family, all producing the
// same ZipfileMeta shape; which optional fields are populated depends on the
// satellite (radar polarisations for S1, cloud cover and MGRS tiles for S2,
// frame numbers for S3, and so on).
package meta

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ZipfileMeta is the canonical description of one SAFE zipfile. It is built
// once by a mission parser and never mutated afterwards; the directory
// placement engine, sidecar writer and catalog filters all consume it.
//
// SatelliteID and StartTime are always populated. Geometry fields may be
// absent (nil) for products with no sensible single location, such as long
// orbital strips; consumers must degrade gracefully when they are.
type ZipfileMeta struct {
	SatelliteID     string // e.g. "S1A", "S2B", "S3A", "S5P"
	Instrument      string // e.g. "C-SAR", "MSI", "OLCI", "TROPOMI"
	ProductType     string // mission vocabulary, e.g. "SLC", "S2MSI1C", "OL_1_EFR___"
	ProcessingLevel string // e.g. "Level-1C", "OL_1_EFR", "L2"

	StartTime time.Time // acquisition start, UTC; authoritative for dating
	StopTime  time.Time // acquisition stop, UTC
	// Datetime is the representative single timestamp used for directory
	// dating. It equals StartTime for every mission except Sentinel-5,
	// where it is start plus half the whole-day duration.
	Datetime time.Time

	// Footprint is the outer boundary of the imaged area with longitudes in
	// the canonical [-180, 180] range. Nil when the product has none.
	Footprint orb.Polygon
	// Centroid is the representative point used as the spatial placement
	// key. Nil when no sensible single location exists.
	Centroid *orb.Point

	Polarisations []string // radar polarisation values, union across annotations
	Swaths        []string // radar swath values, union across annotations
	Mode          string   // radar acquisition mode, e.g. "IW"
	PassDirection string   // "Ascending" or "Descending"
	RelativeOrbit *int
	AbsoluteOrbit *int
	FrameNumber   *int

	CloudCoverPct      *int // 0-100
	ProcessingSoftware string
	GenerationTime     *time.Time
	MGRSTiles          []string

	PreviewImage []byte // raw thumbnail payload from the archive, if any

	ZipfileSize int64
	MD5Local    string
	MD5ESA      string
}

// FootprintWKT returns the footprint as WKT text, or "" when absent.
func (m *ZipfileMeta) FootprintWKT() string {
	if m.Footprint == nil {
		return ""
	}
	return wkt.MarshalString(m.Footprint)
}

// MissionNumber returns the leading digit of the satellite identifier, e.g.
// 3 for "S3A". Returns 0 when the identifier is malformed.
func (m *ZipfileMeta) MissionNumber() int {
	if len(m.SatelliteID) < 2 || m.SatelliteID[0] != 'S' {
		return 0
	}
	d := m.SatelliteID[1]
	if d < '0' || d > '9' {
		return 0
	}
	return int(d - '0')
}
