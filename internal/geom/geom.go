// Package geom implements the dateline-safe footprint operations used for
// archive placement and region-of-interest filtering.
//
// ESA footprints are plain lat/long outlines, and naive planar arithmetic on
// them fails as soon as a polygon straddles the 180 degree meridian: the raw
// longitudes jump from +180 to -180 and any mean or planar centroid lands on
// the wrong side of the planet. The routines here pick a sensible local
// projection first, or temporarily rewrap longitudes into [0, 360], so every
// caller shares one correct dateline treatment.
package geom

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"

	"github.com/auscophub/archive/internal/proj"
)

// ErrNoProjection is returned by operations that need a local projection when
// the footprint has no sensible one (latitude span over 90 degrees). This is
// an expected case for long orbital strips; callers treat it as "no single
// centroid available".
var ErrNoProjection = errors.New("footprint has no sensible local projection")

// FindSensibleProjection inspects a footprint and picks the local projected
// CRS in which its shape is meaningful. Returns ok=false when the latitude
// span exceeds 90 degrees, in which case no single projection (and hence no
// single centroid) makes sense.
func FindSensibleProjection(footprint orb.Polygon) (epsg int, ok bool) {
	if len(footprint) == 0 || len(footprint[0]) == 0 {
		return 0, false
	}
	ring := footprint[0]

	minLat, maxLat := ring[0].Lat(), ring[0].Lat()
	for _, p := range ring {
		minLat = math.Min(minLat, p.Lat())
		maxLat = math.Max(maxLat, p.Lat())
	}

	switch {
	case maxLat-minLat > 90:
		return 0, false
	case minLat < -80:
		return proj.EPSGPolarSouth, true
	case maxLat > 80:
		return proj.EPSGPolarNorth, true
	}

	// Zone from the median vertex, which is stable against a few stray
	// vertices on the far side of the dateline where a mean is not.
	medLon := median(lons(ring))
	medLat := median(lats(ring))
	zone := int(math.Floor((medLon+180)/6))%60 + 1
	if medLat < 0 {
		return 32700 + zone, true
	}
	return 32600 + zone, true
}

// Centroid projects the footprint into the given CRS, takes the area-weighted
// planar centroid of its outer ring, and projects it back to lat/long. The
// returned longitude is in [-180, 180].
func Centroid(footprint orb.Polygon, epsg int) (orb.Point, error) {
	if len(footprint) == 0 || len(footprint[0]) < 3 {
		return orb.Point{}, fmt.Errorf("footprint ring has too few vertices")
	}
	tr, err := proj.New(proj.EPSGWGS84, epsg)
	if err != nil {
		return orb.Point{}, err
	}

	projected := projectPolygon(footprint, tr.Forward)
	ctr, _ := planar.CentroidArea(projected)
	lon, lat := tr.Inverse(ctr.X(), ctr.Y())
	return orb.Point{NormalizeLon(lon), lat}, nil
}

// CrossesDateline reports whether the footprint appears to straddle the 180
// degree meridian, based on its raw longitude spread.
func CrossesDateline(footprint orb.Polygon) bool {
	if len(footprint) == 0 || len(footprint[0]) == 0 {
		return false
	}
	minLon, maxLon := footprint[0][0].Lon(), footprint[0][0].Lon()
	for _, p := range footprint[0] {
		minLon = math.Min(minLon, p.Lon())
		maxLon = math.Max(maxLon, p.Lon())
	}
	return minLon < -90 && maxLon > 90
}

// MeridianCrossesFootprint projects the 180 degree reference meridian into
// the given CRS and tests it against the projected footprint. This is the
// robust form of the dateline test, used when the raw-coordinate heuristic
// is not trustworthy (footprints hugging the poles).
func MeridianCrossesFootprint(footprint orb.Polygon, epsg int) (bool, error) {
	if len(footprint) == 0 || len(footprint[0]) < 3 {
		return false, fmt.Errorf("footprint ring has too few vertices")
	}
	tr, err := proj.New(proj.EPSGWGS84, epsg)
	if err != nil {
		return false, err
	}

	minLat, maxLat := footprint[0][0].Lat(), footprint[0][0].Lat()
	for _, p := range footprint[0] {
		minLat = math.Min(minLat, p.Lat())
		maxLat = math.Max(maxLat, p.Lat())
	}

	// Sample the meridian across the footprint's latitude range.
	const samples = 32
	line := make(orb.LineString, 0, samples+1)
	for i := 0; i <= samples; i++ {
		lat := minLat + (maxLat-minLat)*float64(i)/samples
		x, y := tr.Forward(180, lat)
		line = append(line, orb.Point{x, y})
	}

	projected := projectPolygon(footprint, tr.Forward)
	for i := 0; i+1 < len(line); i++ {
		if planar.PolygonContains(projected, line[i]) {
			return true, nil
		}
		for _, ring := range projected {
			for j := 0; j+1 < len(ring); j++ {
				if segmentsIntersect(line[i], line[i+1], ring[j], ring[j+1]) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// SplitAtDateline partitions a footprint which crosses the dateline into an
// eastern and a western polygon, both with longitudes back in [-180, 180].
// Applied to a non-crossing footprint it is a no-op returning the single
// polygon unchanged.
//
// The split works in wrapped [0, 360] longitude space: rewrap the negative
// longitudes, intersect with the two hemisphere rectangles either side of
// the 180 line, then unwrap the western piece.
func SplitAtDateline(footprint orb.Polygon) orb.MultiPolygon {
	if !CrossesDateline(footprint) {
		return orb.MultiPolygon{footprint}
	}

	wrapped := footprint.Clone()
	for _, ring := range wrapped {
		for i, p := range ring {
			if p.Lon() < 0 {
				ring[i][0] += 360
			}
		}
	}

	eastRect := orb.Bound{Min: orb.Point{0, -90}, Max: orb.Point{180, 90}}
	westRect := orb.Bound{Min: orb.Point{180, -90}, Max: orb.Point{360, 90}}

	east := clip.Polygon(eastRect, wrapped.Clone())
	west := clip.Polygon(westRect, wrapped.Clone())
	for _, ring := range west {
		// Clipping against westRect leaves every longitude in [180, 360],
		// including vertices exactly on the 180 cut, so unwrap them all.
		for i := range ring {
			ring[i][0] -= 360
		}
	}

	var out orb.MultiPolygon
	if len(east) > 0 && len(east[0]) > 0 {
		out = append(out, east)
	}
	if len(west) > 0 && len(west[0]) > 0 {
		out = append(out, west)
	}
	if len(out) == 0 {
		out = append(out, footprint)
	}
	return out
}

// ConvexHull returns the convex hull of a scattered point cloud as a closed
// polygon, via the monotone chain construction. Used for footprints that are
// only available as geolocation grid points (Sentinel-1).
func ConvexHull(points []orb.Point) orb.Polygon {
	if len(points) < 3 {
		ring := make(orb.Ring, len(points))
		copy(ring, points)
		if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
			ring = append(ring, ring[0])
		}
		return orb.Polygon{ring}
	}

	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	var lower, upper []orb.Point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	ring := make(orb.Ring, 0, len(lower)+len(upper)-1)
	ring = append(ring, lower[:len(lower)-1]...)
	ring = append(ring, upper[:len(upper)-1]...)
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Intersects reports whether two lat/long polygons intersect, with dateline
// handling on the first argument: a crossing footprint is split into its two
// pieces and each piece tested separately, so a region near +179 matches a
// footprint whose raw coordinates run past -179.
func Intersects(footprint orb.Polygon, region orb.Polygon) bool {
	for _, piece := range SplitAtDateline(footprint) {
		if polygonsIntersect(piece, region) {
			return true
		}
	}
	return false
}

func polygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 || len(a[0]) == 0 || len(b[0]) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, p := range a[0] {
		if planar.PolygonContains(b, p) {
			return true
		}
	}
	for _, p := range b[0] {
		if planar.PolygonContains(a, p) {
			return true
		}
	}
	ra, rb := a[0], b[0]
	for i := 0; i+1 < len(ra); i++ {
		for j := 0; j+1 < len(rb); j++ {
			if segmentsIntersect(ra[i], ra[i+1], rb[j], rb[j+1]) {
				return true
			}
		}
	}
	return false
}

// NormalizeLon brings a longitude into the canonical [-180, 180] range.
func NormalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func projectPolygon(p orb.Polygon, forward proj.PointFunc) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		pr := make(orb.Ring, len(ring))
		for j, pt := range ring {
			x, y := forward(pt.Lon(), pt.Lat())
			pr[j] = orb.Point{x, y}
		}
		out[i] = pr
	}
	return out
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

func lons(r orb.Ring) []float64 {
	vals := make([]float64, len(r))
	for i, p := range r {
		vals[i] = p.Lon()
	}
	return vals
}

func lats(r orb.Ring) []float64 {
	vals := make([]float64, len(r))
	for i, p := range r {
		vals[i] = p.Lat()
	}
	return vals
}

func median(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
