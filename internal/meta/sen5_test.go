package meta

import (
	"errors"
	"math"
	"testing"
	"time"
)

func sen5HierarchicalAttrs() map[string]string {
	return map[string]string{
		"/METADATA/GRANULE_DESCRIPTION/NC_GLOBAL#ProductShortName": "L2__NO2___",
		"/METADATA/GRANULE_DESCRIPTION/NC_GLOBAL#ProcessLevel":     "L2",
		"NC_GLOBAL#time_coverage_start":                            "2019-02-01T00:00:00Z",
		"NC_GLOBAL#time_coverage_end":                              "2019-02-03T06:00:00Z",
		"NC_GLOBAL#sensor":                                         "TROPOMI",
		"NC_GLOBAL#platform":                                       "S5P",
		"NC_GLOBAL#date_created":                                   "2019-02-04T12:00:00Z",
		"NC_GLOBAL#processor_version":                              "1.2.0",
		"NC_GLOBAL#orbit":                                          "6893",
		"/METADATA/EOP_METADATA/om:featureOfInterest/eop:multiExtentOf/gml:surfaceMembers/gml:exterior/NC_GLOBAL#gml:posList": "-40 140 -40 150 -30 150 -30 140 -40 140",
	}
}

func TestParseSen5AttributesHierarchical(t *testing.T) {
	m, err := ParseSen5Attributes(sen5HierarchicalAttrs())
	if err != nil {
		t.Fatalf("ParseSen5Attributes: %v", err)
	}

	if m.SatelliteID != "S5P" || m.Instrument != "TROPOMI" {
		t.Errorf("identity fields: %s/%s", m.SatelliteID, m.Instrument)
	}
	if m.ProductType != "L2__NO2___" || m.ProcessingLevel != "L2" {
		t.Errorf("product fields: %s/%s", m.ProductType, m.ProcessingLevel)
	}
	if m.AbsoluteOrbit == nil || *m.AbsoluteOrbit != 6893 {
		t.Errorf("AbsoluteOrbit = %v, want 6893", m.AbsoluteOrbit)
	}
	if m.ProcessingSoftware != "1.2.0" {
		t.Errorf("ProcessingSoftware = %q", m.ProcessingSoftware)
	}
	if m.GenerationTime == nil || m.GenerationTime.Day() != 4 {
		t.Errorf("GenerationTime = %v", m.GenerationTime)
	}

	// Coverage runs 54 hours; the representative time is start plus half of
	// the whole-day part, so one day after start.
	want := time.Date(2019, 2, 2, 0, 0, 0, 0, time.UTC)
	if !m.Datetime.Equal(want) {
		t.Errorf("Datetime = %v, want %v", m.Datetime, want)
	}

	if m.Footprint == nil || m.Centroid == nil {
		t.Fatal("expected footprint and centroid")
	}
	if math.Abs(m.Centroid.Lon()-145) > 0.5 || math.Abs(m.Centroid.Lat()+35) > 0.5 {
		t.Errorf("centroid = %v, want near (145, -35)", *m.Centroid)
	}
}

func TestParseSen5AttributesFlat(t *testing.T) {
	attrs := map[string]string{
		"METADATA_GRANULE_DESCRIPTION_ProductShortName": "L1B_RA_BD1",
		"METADATA_GRANULE_DESCRIPTION_ProcessLevel":     "L1B",
		"time_coverage_start":                           "2018-05-07T00:20:26",
		"time_coverage_end":                             "2018-05-07T01:02:19",
		"sensor":                                        "TROPOMI",
		"platform":                                      "S5P",
		"orbit":                                         "2818",
		"METADATA_EOP_METADATA_om:featureOfInterest_eop:multiExtentOf_gml:surfaceMembers_gml:exterior_gml:posList": "-40 140 -40 150 -30 150 -30 140 -40 140",
	}

	m, err := ParseSen5Attributes(attrs)
	if err != nil {
		t.Fatalf("ParseSen5Attributes: %v", err)
	}
	if m.ProductType != "L1B_RA_BD1" || m.ProcessingLevel != "L1B" {
		t.Errorf("product fields: %s/%s", m.ProductType, m.ProcessingLevel)
	}
	// Sub-day coverage, so the representative time is the start time.
	if !m.Datetime.Equal(m.StartTime) {
		t.Errorf("Datetime = %v, want StartTime %v", m.Datetime, m.StartTime)
	}
	if m.GenerationTime != nil {
		t.Errorf("GenerationTime = %v, want nil when date_created absent", m.GenerationTime)
	}
}

func TestParseSen5AttributesUnknownScheme(t *testing.T) {
	_, err := ParseSen5Attributes(map[string]string{"title": "not a TROPOMI file"})
	if !errors.Is(err, ErrSen5Meta) {
		t.Fatalf("error = %v, want ErrSen5Meta", err)
	}
}

func TestParseSen5AttributesMissingRequired(t *testing.T) {
	attrs := sen5HierarchicalAttrs()
	delete(attrs, "NC_GLOBAL#orbit")
	if _, err := ParseSen5Attributes(attrs); !errors.Is(err, ErrSen5Meta) {
		t.Fatalf("error = %v, want ErrSen5Meta", err)
	}
}
