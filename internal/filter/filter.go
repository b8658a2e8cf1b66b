// Package filter narrows lists of product metadata records by acquisition
// and geometry criteria. A record missing the field a predicate tests is
// kept, not dropped: an absent cloud-cover figure says nothing about the
// cloudiness, and the caller asked to exclude cloudy products, not
// undocumented ones.
package filter

import (
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/auscophub/archive/internal/geom"
	"github.com/auscophub/archive/internal/meta"
)

// Predicate reports whether one record passes a filter criterion.
type Predicate func(*meta.ZipfileMeta) bool

// Apply returns the records passing every predicate, preserving order.
func Apply(records []*meta.ZipfileMeta, preds ...Predicate) []*meta.ZipfileMeta {
	var out []*meta.ZipfileMeta
	for _, r := range records {
		if matchesAll(r, preds) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(r *meta.ZipfileMeta, preds []Predicate) bool {
	for _, p := range preds {
		if !p(r) {
			return false
		}
	}
	return true
}

// Satellite keeps records from the given satellite, e.g. "S1A". The match is
// case-insensitive.
func Satellite(id string) Predicate {
	return func(m *meta.ZipfileMeta) bool {
		return strings.EqualFold(m.SatelliteID, id)
	}
}

// MaxCloud keeps records whose cloud cover does not exceed pct. Records with
// no cloud assessment pass.
func MaxCloud(pct int) Predicate {
	return func(m *meta.ZipfileMeta) bool {
		return m.CloudCoverPct == nil || *m.CloudCoverPct <= pct
	}
}

// HasPolarisations keeps records carrying every one of the wanted
// polarisation values. Records with no polarisation list pass.
func HasPolarisations(wanted ...string) Predicate {
	return func(m *meta.ZipfileMeta) bool {
		if len(m.Polarisations) == 0 {
			return true
		}
		for _, w := range wanted {
			if !containsFold(m.Polarisations, w) {
				return false
			}
		}
		return true
	}
}

// SwathMode keeps records acquired in the given radar mode, e.g. "IW".
// Records with no mode pass.
func SwathMode(mode string) Predicate {
	return func(m *meta.ZipfileMeta) bool {
		return m.Mode == "" || strings.EqualFold(m.Mode, mode)
	}
}

// PassDirection keeps records acquired on the given orbit direction,
// matching "Ascending"/"DESCENDING"/etc. case-insensitively. Records with no
// direction pass.
func PassDirection(direction string) Predicate {
	return func(m *meta.ZipfileMeta) bool {
		return m.PassDirection == "" || strings.EqualFold(m.PassDirection, direction)
	}
}

// TimeRange keeps records whose representative timestamp falls in
// [start, stop). A zero start or stop leaves that end unbounded.
func TimeRange(start, stop time.Time) Predicate {
	return func(m *meta.ZipfileMeta) bool {
		if !start.IsZero() && m.Datetime.Before(start) {
			return false
		}
		if !stop.IsZero() && !m.Datetime.Before(stop) {
			return false
		}
		return true
	}
}

// IntersectsRegion keeps records whose footprint intersects the region,
// handling footprints that cross the dateline. Records with no footprint
// pass.
func IntersectsRegion(region orb.Polygon) Predicate {
	return func(m *meta.ZipfileMeta) bool {
		if m.Footprint == nil {
			return true
		}
		return geom.Intersects(m.Footprint, region)
	}
}

// MD5Match keeps records whose locally computed checksum agrees with the
// one published by the supplier. Records missing either checksum pass, and
// override disables the check entirely for reprocessed products known to
// differ.
func MD5Match(override bool) Predicate {
	return func(m *meta.ZipfileMeta) bool {
		if override || m.MD5Local == "" || m.MD5ESA == "" {
			return true
		}
		return strings.EqualFold(m.MD5Local, m.MD5ESA)
	}
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
