// Command search queries a product catalog and prints one line per match.
//
// Two catalog sources are supported: the SARA server, which covers the full
// regional holding and supports rich server-side filters, and a THREDDS
// catalog serving the archive directory tree, which is walked by date range
// and grid cell. Results from either source pass through the same local
// filters before printing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/auscophub/archive/internal/config"
	"github.com/auscophub/archive/internal/filter"
	"github.com/auscophub/archive/internal/meta"
	"github.com/auscophub/archive/internal/sara"
	"github.com/auscophub/archive/internal/thredds"
)

const dateLayout = "2006-01-02"

type options struct {
	source       string
	collection   string
	productPath  string
	satellite    string
	start        string
	stop         string
	bbox         string
	maxCloud     int
	polarisation string
	direction    string
	mode         string
	productType  string
	allowBadMD5  bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var o options
	flag.StringVar(&o.source, "source", "sara", "catalog to query: sara or thredds")
	flag.StringVar(&o.collection, "collection", "", "SARA collection, e.g. S1 (required with -source sara)")
	flag.StringVar(&o.productPath, "productpath", "", "catalog directory, e.g. Sentinel-1/C-SAR/GRD (required with -source thredds)")
	flag.StringVar(&o.satellite, "satellite", "", "restrict to one satellite, e.g. S1A")
	flag.StringVar(&o.start, "start", "", "earliest acquisition date, YYYY-MM-DD")
	flag.StringVar(&o.stop, "stop", "", "latest acquisition date, YYYY-MM-DD")
	flag.StringVar(&o.bbox, "bbox", "", "region of interest as minLon,minLat,maxLon,maxLat")
	flag.IntVar(&o.maxCloud, "maxcloud", -1, "maximum cloud cover percentage")
	flag.StringVar(&o.polarisation, "polarisation", "", "required polarisations, comma separated")
	flag.StringVar(&o.direction, "direction", "", "orbit direction, ascending or descending")
	flag.StringVar(&o.mode, "mode", "", "radar acquisition mode, e.g. IW")
	flag.StringVar(&o.productType, "producttype", "", "product type, e.g. GRD or S2MSI1C")
	flag.BoolVar(&o.allowBadMD5, "allowbadmd5", false, "keep products whose local and published checksums disagree")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := cfg.Logging.NewLogger()

	start, stop, err := parseDates(o.start, o.stop)
	if err != nil {
		return err
	}
	bbox, err := parseBBox(o.bbox)
	if err != nil {
		return err
	}

	preds := localPredicates(&o, start, stop, bbox)

	ctx := context.Background()

	switch o.source {
	case "sara":
		client := sara.NewClient(cfg.SARA.BaseURL, cfg.SARA.Timeout).WithLogger(logger)
		if cfg.SARA.ProxyURL != "" {
			if client, err = client.WithProxy(cfg.SARA.ProxyURL); err != nil {
				return err
			}
		}
		return searchSara(ctx, client, &o, start, stop, bbox, preds)
	case "thredds":
		client := thredds.NewClient(cfg.THREDDS.BaseURL, cfg.THREDDS.Timeout).WithLogger(logger)
		return searchThredds(ctx, client, &o, start, stop, bbox, preds)
	}
	return fmt.Errorf("unknown source %q", o.source)
}

func searchSara(ctx context.Context, client *sara.Client, o *options,
	start, stop time.Time, bbox *orb.Bound, preds []filter.Predicate) error {
	if o.collection == "" {
		return fmt.Errorf("-collection is required with -source sara")
	}

	params := sara.SearchParams{
		Collection:     o.collection,
		ProductType:    o.productType,
		SensorMode:     o.mode,
		OrbitDirection: o.direction,
		MaxRecords:     sara.DefaultMaxRecords,
	}
	if !start.IsZero() {
		params.StartDate = &start
	}
	if !stop.IsZero() {
		params.CompletionDate = &stop
	}
	if bbox != nil {
		params.Geometry = bboxWKT(*bbox)
	}
	if o.maxCloud >= 0 {
		params.MaxCloudCover = &o.maxCloud
	}
	if o.polarisation != "" {
		params.Polarisation = splitList(o.polarisation)
	}

	features, err := client.Search(ctx, params)
	if err != nil {
		return err
	}

	for _, f := range features {
		m, err := f.ToMeta()
		if err != nil {
			continue
		}
		if !passesAll(m, preds) {
			continue
		}
		fmt.Printf("%s\t%s\t%s\n", f.Properties.Title,
			m.Datetime.Format(time.RFC3339), f.Properties.Services.Download.URL)
	}
	return nil
}

func searchThredds(ctx context.Context, client *thredds.Client, o *options,
	start, stop time.Time, bbox *orb.Bound, preds []filter.Predicate) error {
	if o.productPath == "" {
		return fmt.Errorf("-productpath is required with -source thredds")
	}

	records, err := client.SearchDescriptions(ctx, thredds.SearchOptions{
		ProductPath: o.productPath,
		StartDate:   start,
		EndDate:     stop,
		BBox:        bbox,
	})
	if err != nil {
		return err
	}

	for _, m := range records {
		if !passesAll(m, preds) {
			continue
		}
		var centroid string
		if m.Centroid != nil {
			centroid = fmt.Sprintf("%.3f,%.3f", m.Centroid.Lon(), m.Centroid.Lat())
		}
		fmt.Printf("%s\t%s\t%s\n", m.SatelliteID, m.Datetime.Format(time.RFC3339), centroid)
	}
	return nil
}

// localPredicates builds the client-side filters applied to every record,
// whichever catalog produced it.
func localPredicates(o *options, start, stop time.Time, bbox *orb.Bound) []filter.Predicate {
	var preds []filter.Predicate
	if o.satellite != "" {
		preds = append(preds, filter.Satellite(o.satellite))
	}
	if o.maxCloud >= 0 {
		preds = append(preds, filter.MaxCloud(o.maxCloud))
	}
	if o.polarisation != "" {
		preds = append(preds, filter.HasPolarisations(splitList(o.polarisation)...))
	}
	if o.direction != "" {
		preds = append(preds, filter.PassDirection(o.direction))
	}
	if o.mode != "" {
		preds = append(preds, filter.SwathMode(o.mode))
	}
	if !start.IsZero() || !stop.IsZero() {
		var stopExcl time.Time
		if !stop.IsZero() {
			stopExcl = stop.AddDate(0, 0, 1)
		}
		preds = append(preds, filter.TimeRange(start, stopExcl))
	}
	if bbox != nil {
		preds = append(preds, filter.IntersectsRegion(bbox.ToPolygon()))
	}
	preds = append(preds, filter.MD5Match(o.allowBadMD5))
	return preds
}

func passesAll(m *meta.ZipfileMeta, preds []filter.Predicate) bool {
	for _, p := range preds {
		if !p(m) {
			return false
		}
	}
	return true
}

func parseDates(start, stop string) (time.Time, time.Time, error) {
	var s, e time.Time
	var err error
	if start != "" {
		if s, err = time.Parse(dateLayout, start); err != nil {
			return s, e, fmt.Errorf("invalid -start date %q", start)
		}
	}
	if stop != "" {
		if e, err = time.Parse(dateLayout, stop); err != nil {
			return s, e, fmt.Errorf("invalid -stop date %q", stop)
		}
	}
	return s, e, nil
}

func parseBBox(raw string) (*orb.Bound, error) {
	if raw == "" {
		return nil, nil
	}
	var minLon, minLat, maxLon, maxLat float64
	if _, err := fmt.Sscanf(raw, "%f,%f,%f,%f", &minLon, &minLat, &maxLon, &maxLat); err != nil {
		return nil, fmt.Errorf("invalid -bbox %q", raw)
	}
	if minLon > maxLon || minLat > maxLat {
		return nil, fmt.Errorf("-bbox min must not exceed max")
	}
	b := orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
	return &b, nil
}

func bboxWKT(b orb.Bound) string {
	return fmt.Sprintf("POLYGON((%[1]g %[2]g,%[3]g %[2]g,%[3]g %[4]g,%[1]g %[4]g,%[1]g %[2]g))",
		b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
