package meta

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/auscophub/archive/internal/geom"
)

// Attribute keys for the two naming schemes Sentinel-5P gridded data files
// have used. The 2018-era Level-1 files carried flat underscore-joined
// names; current Level-2 files use hierarchical NetCDF-style paths.
const (
	sen5FlatSensorKey = "sensor"
	sen5HierSensorKey = "NC_GLOBAL#sensor"
)

// ParseSen5Attributes builds the metadata record from the global attribute
// dictionary of a Sentinel-5 gridded data file. Reading the file format
// itself is the archive reader's job; this function only interprets the
// key/value pairs.
//
// Two historical attribute-naming schemes exist and are detected from the
// dictionary contents: hierarchical names (Level-2, "NC_GLOBAL#..." and
// "/METADATA/...") and flat names (2018-era Level-1).
func ParseSen5Attributes(attrs map[string]string) (*ZipfileMeta, error) {
	switch {
	case attrs[sen5HierSensorKey] != "":
		return parseSen5(attrs, sen5HierKeys)
	case attrs[sen5FlatSensorKey] != "":
		return parseSen5(attrs, sen5FlatKeys)
	}
	return nil, fmt.Errorf("%w: attribute dictionary matches neither known naming scheme", ErrSen5Meta)
}

// sen5Keys maps the logical field names onto one attribute-naming scheme.
type sen5Keys struct {
	productShortName string
	processLevel     string
	processingMode   string
	timeStart        string
	timeEnd          string
	sensor           string
	platform         string
	created          string
	processorVersion string
	orbit            string
	posList          string
}

var sen5HierKeys = sen5Keys{
	productShortName: "/METADATA/GRANULE_DESCRIPTION/NC_GLOBAL#ProductShortName",
	processLevel:     "/METADATA/GRANULE_DESCRIPTION/NC_GLOBAL#ProcessLevel",
	processingMode:   "/METADATA/EOP_METADATA/eop:metaDataProperty/eop:processing/NC_GLOBAL#eop:processingMode",
	timeStart:        "NC_GLOBAL#time_coverage_start",
	timeEnd:          "NC_GLOBAL#time_coverage_end",
	sensor:           "NC_GLOBAL#sensor",
	platform:         "NC_GLOBAL#platform",
	created:          "NC_GLOBAL#date_created",
	processorVersion: "NC_GLOBAL#processor_version",
	orbit:            "NC_GLOBAL#orbit",
	posList:          "/METADATA/EOP_METADATA/om:featureOfInterest/eop:multiExtentOf/gml:surfaceMembers/gml:exterior/NC_GLOBAL#gml:posList",
}

var sen5FlatKeys = sen5Keys{
	productShortName: "METADATA_GRANULE_DESCRIPTION_ProductShortName",
	processLevel:     "METADATA_GRANULE_DESCRIPTION_ProcessLevel",
	timeStart:        "time_coverage_start",
	timeEnd:          "time_coverage_end",
	sensor:           "sensor",
	platform:         "platform",
	created:          "date_created",
	processorVersion: "processor_version",
	orbit:            "orbit",
	posList:          "METADATA_EOP_METADATA_om:featureOfInterest_eop:multiExtentOf_gml:surfaceMembers_gml:exterior_gml:posList",
}

func parseSen5(attrs map[string]string, keys sen5Keys) (*ZipfileMeta, error) {
	required := func(key string) (string, error) {
		v, ok := attrs[key]
		if !ok || v == "" {
			return "", fmt.Errorf("%w: missing attribute %q", ErrSen5Meta, key)
		}
		return v, nil
	}

	m := &ZipfileMeta{}
	var err error
	if m.ProductType, err = required(keys.productShortName); err != nil {
		return nil, err
	}
	if m.ProcessingLevel, err = required(keys.processLevel); err != nil {
		return nil, err
	}
	if m.Instrument, err = required(keys.sensor); err != nil {
		return nil, err
	}
	if m.SatelliteID, err = required(keys.platform); err != nil {
		return nil, err
	}
	if keys.processingMode != "" {
		// Hierarchical scheme only; informational.
		_ = attrs[keys.processingMode]
	}

	startStr, err := required(keys.timeStart)
	if err != nil {
		return nil, err
	}
	stopStr, err := required(keys.timeEnd)
	if err != nil {
		return nil, err
	}
	if m.StartTime, err = parseSen5Time(startStr); err != nil {
		return nil, err
	}
	if m.StopTime, err = parseSen5Time(stopStr); err != nil {
		return nil, err
	}

	// The representative timestamp is start plus half the duration,
	// truncated to whole days. This is an approximation, not an exact
	// midpoint; it is what the archive has always used, so keep it.
	days := int(m.StopTime.Sub(m.StartTime).Hours() / 24)
	m.Datetime = m.StartTime.Add(time.Duration(days) * 12 * time.Hour)

	if createdStr, ok := attrs[keys.created]; ok && createdStr != "" {
		if t, err := parseSen5Time(createdStr); err == nil {
			m.GenerationTime = &t
		}
	}
	m.ProcessingSoftware = attrs[keys.processorVersion]

	orbitStr, err := required(keys.orbit)
	if err != nil {
		return nil, err
	}
	orbit, err := strconv.Atoi(strings.TrimSpace(orbitStr))
	if err != nil {
		return nil, fmt.Errorf("%w: bad orbit number %q", ErrSen5Meta, orbitStr)
	}
	m.AbsoluteOrbit = &orbit

	posStr, err := required(keys.posList)
	if err != nil {
		return nil, err
	}
	footprint, err := polygonFromPosList(posStr)
	if err != nil {
		return nil, fmt.Errorf("%w: posList: %v", ErrSen5Meta, err)
	}
	m.Footprint = footprint
	if epsg, ok := geom.FindSensibleProjection(footprint); ok {
		if ctr, err := geom.Centroid(footprint, epsg); err == nil {
			m.Centroid = &ctr
		}
	}

	return m, nil
}

// parseSen5Time parses a coverage timestamp. Some products carry the
// trailing Z on their time stamps and some do not.
func parseSen5Time(s string) (time.Time, error) {
	t, err := parseSafeTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrSen5Meta, err)
	}
	return t, nil
}
