// Package archive decides where a zipfile lives in the directory structure
// and materializes it there, together with its sidecar description and
// preview files. Paths are deterministic functions of the metadata record,
// so any client holding the record can reconstruct the server-side location
// without asking.
package archive

import (
	"fmt"
	"path"

	"github.com/paulmach/orb"

	"github.com/auscophub/archive/internal/meta"
)

// Grid cell sizes in degrees. The optical and radar missions use small
// cells; the wide-swath missions would put everything in a handful of small
// cells, so they use coarse ones.
const (
	CellSizeDefault = 5
	CellSizeWide    = 40
)

// CellSize returns the grid cell size in degrees used for the given
// satellite family.
func CellSize(satelliteID string) int {
	if len(satelliteID) >= 2 && (satelliteID[1] == '3' || satelliteID[1] == '5') {
		return CellSizeWide
	}
	return CellSizeDefault
}

// GridSquareDir names the grid cell containing the given point, in the form
// "35S145E-40S150E": top-left corner, then bottom-right. Latitude is
// zero-padded to two digits and longitude to three, so names sort and slice
// predictably.
func GridSquareDir(centroid orb.Point, cellSize int) string {
	leftLon := int(centroid.Lon()) / cellSize * cellSize
	if centroid.Lon() < 0 {
		leftLon -= cellSize
	}
	// Bottom edge first. Truncation toward zero puts a centroid at exactly
	// 0 degrees latitude in the northern cell.
	botLat := int(centroid.Lat()) / cellSize * cellSize
	if centroid.Lat() < 0 {
		botLat -= cellSize
	}
	topLat := botLat + cellSize
	rightLon := leftLon + cellSize

	return fmt.Sprintf("%02d%s%03d%s-%02d%s%03d%s",
		absInt(topLat), hemisphereNS(topLat), absInt(leftLon), hemisphereEW(leftLon),
		absInt(botLat), hemisphereNS(botLat), absInt(rightLon), hemisphereEW(rightLon))
}

// DecodeGridSquareDir recovers the top-left corner and cell size from a grid
// cell directory name. This is the inverse of GridSquareDir and relies on
// its fixed-width zero padding.
func DecodeGridSquareDir(name string) (topLat, leftLon, cellSize int, err error) {
	if len(name) != 15 || name[7] != '-' {
		return 0, 0, 0, fmt.Errorf("malformed grid cell name %q", name)
	}
	topLat, err = decodeCoord(name[0:3], 'N', 'S')
	if err != nil {
		return 0, 0, 0, fmt.Errorf("grid cell %q: %v", name, err)
	}
	leftLon, err = decodeCoord(name[3:7], 'E', 'W')
	if err != nil {
		return 0, 0, 0, fmt.Errorf("grid cell %q: %v", name, err)
	}
	botLat, err := decodeCoord(name[8:11], 'N', 'S')
	if err != nil {
		return 0, 0, 0, fmt.Errorf("grid cell %q: %v", name, err)
	}
	return topLat, leftLon, topLat - botLat, nil
}

func decodeCoord(s string, pos, neg byte) (int, error) {
	n := 0
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("bad coordinate %q", s)
		}
		n = n*10 + int(s[i]-'0')
	}
	switch s[len(s)-1] {
	case pos:
		return n, nil
	case neg:
		return -n, nil
	}
	return 0, fmt.Errorf("bad hemisphere in %q", s)
}

// PlacePath returns the directory, relative to the archive root, in which
// the described zipfile belongs.
//
// The layout is satellite/instrument/product/year/year-month, then a grid
// cell for the default missions. The wide-swath missions organize by
// acquisition date instead, except for the full-resolution OLCI tiles which
// are numerous enough per day to need a grid cell level below the date.
// Products with no centroid stop at the last date-based level.
func PlacePath(m *meta.ZipfileMeta) (string, error) {
	mission := m.MissionNumber()
	if mission == 0 {
		return "", fmt.Errorf("cannot place product with satellite ID %q", m.SatelliteID)
	}

	parts := []string{
		fmt.Sprintf("Sentinel-%d", mission),
		instrumentDir(m),
		productDir(m),
	}
	parts = append(parts, datedParts(m)...)

	return path.Join(parts...), nil
}

// PlaceSubPath returns only the date and grid-cell levels of the placement
// path, for callers that maintain the satellite, instrument and product
// levels themselves, such as mirrors with their own top-level layout.
func PlaceSubPath(m *meta.ZipfileMeta) (string, error) {
	if m.MissionNumber() == 0 {
		return "", fmt.Errorf("cannot place product with satellite ID %q", m.SatelliteID)
	}
	return path.Join(datedParts(m)...), nil
}

func datedParts(m *meta.ZipfileMeta) []string {
	parts := []string{
		fmt.Sprintf("%04d", m.Datetime.Year()),
		fmt.Sprintf("%04d-%02d", m.Datetime.Year(), int(m.Datetime.Month())),
	}

	cellSize := CellSize(m.SatelliteID)
	switch m.MissionNumber() {
	case 3:
		parts = append(parts, fmt.Sprintf("%04d-%02d-%02d",
			m.Datetime.Year(), int(m.Datetime.Month()), m.Datetime.Day()))
		// Full-resolution OLCI tiles are small and plentiful, so they get a
		// further spatial split.
		if m.ProductType == "OL_1_EFR___" && m.Centroid != nil {
			parts = append(parts, GridSquareDir(*m.Centroid, cellSize))
		}
	default:
		if m.Centroid != nil {
			parts = append(parts, GridSquareDir(*m.Centroid, cellSize))
		}
	}
	return parts
}

func instrumentDir(m *meta.ZipfileMeta) string {
	switch m.MissionNumber() {
	case 1:
		return "C-SAR"
	case 2:
		return "MSI"
	}
	return m.Instrument
}

func productDir(m *meta.ZipfileMeta) string {
	if m.MissionNumber() == 2 {
		// "Level-1C" becomes "L1C".
		level := m.ProcessingLevel
		if len(level) >= 2 {
			return "L" + level[len(level)-2:]
		}
	}
	return m.ProductType
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func hemisphereNS(lat int) string {
	if lat < 0 {
		return "S"
	}
	return "N"
}

func hemisphereEW(lon int) string {
	if lon < 0 {
		return "W"
	}
	return "E"
}
