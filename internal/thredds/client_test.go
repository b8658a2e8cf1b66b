package thredds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func catalogXML(datasets []string, subdirs []string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<catalog xmlns="http://www.unidata.ucar.edu/namespaces/thredds/InvCatalog/v1.0"
         xmlns:xlink="http://www.w3.org/1999/xlink">
  <dataset name="container">
`
	for _, d := range datasets {
		body += fmt.Sprintf(`    <dataset name="%s" urlPath="files/%s"/>`+"\n", d, d)
	}
	for _, s := range subdirs {
		body += fmt.Sprintf(`    <catalogRef xlink:href="%s/catalog.xml" xlink:title="%s" name=""/>`+"\n", s, s)
	}
	return body + `  </dataset>
</catalog>`
}

const testDescription = `<?xml version="1.0" encoding="UTF-8"?>
<AUSCOPHUB_SAFE_FILEDESCRIPTION>
  <SATELLITE name="S1A"/>
  <CENTROID longitude="147" latitude="-37"/>
  <ACQUISITION_TIME start_datetime_utc="2021-03-04 10:00:00" stop_datetime_utc="2021-03-04 10:00:27"/>
  <ZIPFILE size_bytes="100"/>
</AUSCOPHUB_SAFE_FILEDESCRIPTION>`

// newCatalogServer serves a small two-month GRD layout with two grid cells.
func newCatalogServer(t *testing.T) (*httptest.Server, *map[string]int) {
	t.Helper()
	requests := map[string]int{}

	catalogs := map[string]string{
		"/catalog/Sentinel-1/C-SAR/GRD/catalog.xml": catalogXML(nil, []string{"2020", "2021"}),
		"/catalog/Sentinel-1/C-SAR/GRD/2020/catalog.xml": catalogXML(nil,
			[]string{"2020-12"}),
		"/catalog/Sentinel-1/C-SAR/GRD/2021/catalog.xml": catalogXML(nil,
			[]string{"2021-03", "2021-07"}),
		"/catalog/Sentinel-1/C-SAR/GRD/2021/2021-03/catalog.xml": catalogXML(nil,
			[]string{"35S145E-40S150E", "10N005W-05N000E"}),
		"/catalog/Sentinel-1/C-SAR/GRD/2021/2021-03/35S145E-40S150E/catalog.xml": catalogXML(
			[]string{"S1A_a.xml", "S1A_a.zip", "S1A_b.xml"}, nil),
		"/catalog/Sentinel-1/C-SAR/GRD/2021/2021-03/10N005W-05N000E/catalog.xml": catalogXML(
			[]string{"S1A_far.xml"}, nil),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests[r.URL.Path]++
		if body, ok := catalogs[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, body)
			return
		}
		if len(r.URL.Path) > 12 && r.URL.Path[:12] == "/fileServer/" {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, testDescription)
			return
		}
		http.NotFound(w, r)
	}))
	return server, &requests
}

func TestFindDescriptionFiles(t *testing.T) {
	server, requests := newCatalogServer(t)
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second)
	bbox := orb.Bound{Min: orb.Point{146, -38}, Max: orb.Point{148, -36}}
	entries, err := client.FindDescriptionFiles(context.Background(), SearchOptions{
		ProductPath: "Sentinel-1/C-SAR/GRD",
		StartDate:   time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC),
		BBox:        &bbox,
	})
	if err != nil {
		t.Fatalf("FindDescriptionFiles: %v", err)
	}

	// Only the .xml files from the matching cell, not the zipfile and not
	// the far-away cell.
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(entries), entries)
	}
	if entries[0].Name != "S1A_a.xml" || entries[1].Name != "S1A_b.xml" {
		t.Errorf("entries = %v", entries)
	}

	// The out-of-range year and month must never be listed.
	for _, path := range []string{
		"/catalog/Sentinel-1/C-SAR/GRD/2020/2020-12/catalog.xml",
		"/catalog/Sentinel-1/C-SAR/GRD/2021/2021-07/catalog.xml",
		"/catalog/Sentinel-1/C-SAR/GRD/2021/2021-03/10N005W-05N000E/catalog.xml",
	} {
		if (*requests)[path] != 0 {
			t.Errorf("walk visited pruned directory %s", path)
		}
	}
}

func TestFindDescriptionFilesNoBBox(t *testing.T) {
	server, _ := newCatalogServer(t)
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second)
	entries, err := client.FindDescriptionFiles(context.Background(), SearchOptions{
		ProductPath: "Sentinel-1/C-SAR/GRD",
		StartDate:   time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("FindDescriptionFiles: %v", err)
	}
	// Without a bounding box both cells contribute.
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

func TestSearchDescriptions(t *testing.T) {
	server, _ := newCatalogServer(t)
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second)
	records, err := client.SearchDescriptions(context.Background(), SearchOptions{
		ProductPath: "Sentinel-1/C-SAR/GRD",
		StartDate:   time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SearchDescriptions: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].SatelliteID != "S1A" || records[0].Centroid == nil {
		t.Errorf("record not parsed: %+v", records[0])
	}
}

func TestParseCatalogMalformed(t *testing.T) {
	if _, err := parseCatalog([]byte("not xml at all <<<")); err == nil {
		t.Fatal("expected error for malformed catalog")
	}
}

func TestCellWanted(t *testing.T) {
	bbox := orb.Bound{Min: orb.Point{146, -38}, Max: orb.Point{148, -36}}
	// The cell holding the bbox.
	if !cellWanted(-35, 145, 5, &bbox) {
		t.Error("containing cell must be wanted")
	}
	// A neighboring cell is still within the one-cell margin.
	if !cellWanted(-35, 150, 5, &bbox) {
		t.Error("neighboring cell must be wanted")
	}
	// Two cells away is out.
	if cellWanted(-35, 160, 5, &bbox) {
		t.Error("distant cell must not be wanted")
	}
	if !cellWanted(-35, 160, 5, nil) {
		t.Error("nil bbox must match every cell")
	}
}
