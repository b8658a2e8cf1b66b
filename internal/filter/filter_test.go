package filter

import (
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/auscophub/archive/internal/meta"
)

func intPtr(v int) *int { return &v }

func record(mutate func(*meta.ZipfileMeta)) *meta.ZipfileMeta {
	m := &meta.ZipfileMeta{
		SatelliteID:   "S1A",
		Mode:          "IW",
		PassDirection: "Descending",
		Polarisations: []string{"VH", "VV"},
		Datetime:      time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC),
		Footprint: orb.Polygon{orb.Ring{
			{144, -34}, {146, -34}, {146, -32}, {144, -32}, {144, -34},
		}},
	}
	if mutate != nil {
		mutate(m)
	}
	return m
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred Predicate
		m    *meta.ZipfileMeta
		want bool
	}{
		{"satellite match", Satellite("s1a"), record(nil), true},
		{"satellite mismatch", Satellite("S2B"), record(nil), false},

		{"cloud under limit", MaxCloud(50), record(func(m *meta.ZipfileMeta) { m.CloudCoverPct = intPtr(30) }), true},
		{"cloud over limit", MaxCloud(50), record(func(m *meta.ZipfileMeta) { m.CloudCoverPct = intPtr(80) }), false},
		{"cloud absent passes", MaxCloud(0), record(nil), true},

		{"polarisations all present", HasPolarisations("vv", "vh"), record(nil), true},
		{"polarisation missing", HasPolarisations("HH"), record(nil), false},
		{"polarisations absent pass", HasPolarisations("HH"), record(func(m *meta.ZipfileMeta) { m.Polarisations = nil }), true},

		{"mode match", SwathMode("iw"), record(nil), true},
		{"mode mismatch", SwathMode("EW"), record(nil), false},
		{"mode absent passes", SwathMode("EW"), record(func(m *meta.ZipfileMeta) { m.Mode = "" }), true},

		{"pass direction case-insensitive", PassDirection("DESCENDING"), record(nil), true},
		{"pass direction mismatch", PassDirection("Ascending"), record(nil), false},

		{"md5 agree", MD5Match(false), record(func(m *meta.ZipfileMeta) { m.MD5Local, m.MD5ESA = "abc", "ABC" }), true},
		{"md5 disagree", MD5Match(false), record(func(m *meta.ZipfileMeta) { m.MD5Local, m.MD5ESA = "abc", "def" }), false},
		{"md5 disagree overridden", MD5Match(true), record(func(m *meta.ZipfileMeta) { m.MD5Local, m.MD5ESA = "abc", "def" }), true},
		{"md5 absent passes", MD5Match(false), record(nil), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.pred(c.m); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestTimeRange(t *testing.T) {
	m := record(nil)
	in := TimeRange(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC))
	if !in(m) {
		t.Error("record inside the range must pass")
	}
	before := TimeRange(time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if before(m) {
		t.Error("record before an open-ended start must fail")
	}
	// The stop bound is exclusive.
	atStop := TimeRange(time.Time{}, m.Datetime)
	if atStop(m) {
		t.Error("record exactly at the stop bound must fail")
	}
}

func TestIntersectsRegion(t *testing.T) {
	region := orb.Polygon{orb.Ring{
		{145, -35}, {150, -35}, {150, -30}, {145, -30}, {145, -35},
	}}
	if !IntersectsRegion(region)(record(nil)) {
		t.Error("overlapping footprint must pass")
	}
	far := record(func(m *meta.ZipfileMeta) {
		m.Footprint = orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	})
	if IntersectsRegion(region)(far) {
		t.Error("distant footprint must fail")
	}
	if !IntersectsRegion(region)(record(func(m *meta.ZipfileMeta) { m.Footprint = nil })) {
		t.Error("record with no footprint must pass")
	}

	// A footprint straddling the dateline intersects regions on both sides.
	straddling := record(func(m *meta.ZipfileMeta) {
		m.Footprint = orb.Polygon{orb.Ring{
			{179, -10}, {-179, -10}, {-179, 10}, {179, 10}, {179, -10},
		}}
	})
	west := orb.Polygon{orb.Ring{{178, -5}, {179.5, -5}, {179.5, 5}, {178, 5}, {178, -5}}}
	east := orb.Polygon{orb.Ring{{-179.5, -5}, {-178, -5}, {-178, 5}, {-179.5, 5}, {-179.5, -5}}}
	if !IntersectsRegion(west)(straddling) || !IntersectsRegion(east)(straddling) {
		t.Error("dateline-straddling footprint must intersect regions on both sides")
	}
}

func TestApply(t *testing.T) {
	records := []*meta.ZipfileMeta{
		record(nil),
		record(func(m *meta.ZipfileMeta) { m.SatelliteID = "S2B" }),
		record(func(m *meta.ZipfileMeta) { m.PassDirection = "Ascending" }),
	}
	got := Apply(records, Satellite("S1A"), PassDirection("Descending"))
	if len(got) != 1 || got[0] != records[0] {
		t.Errorf("Apply kept %d records, want exactly the first", len(got))
	}
	if out := Apply(nil, Satellite("S1A")); out != nil {
		t.Errorf("Apply(nil) = %v, want nil", out)
	}
}
