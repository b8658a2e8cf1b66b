package sara

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func saraPage(total, perPage, page int) FeatureCollection {
	start := (page - 1) * perPage
	count := perPage
	if start+count > total {
		count = total - start
	}
	fc := FeatureCollection{
		Type: "FeatureCollection",
		Properties: CollectionProperties{
			TotalResults: &total,
			ItemsPerPage: perPage,
			StartIndex:   start + 1,
		},
	}
	for i := 0; i < count; i++ {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			ID:   fmt.Sprintf("feature-%03d", start+i),
			Properties: Properties{
				Title:          fmt.Sprintf("S1A_IW_GRDH_%03d", start+i),
				Platform:       "S1A",
				StartDate:      "2021-03-04T10:00:00.000000Z",
				CompletionDate: "2021-03-04T10:00:27.000000Z",
			},
		})
	}
	return fc
}

func TestClient_Search_SinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "/api/collections/S1/search.json") {
			t.Errorf("Expected collection search path, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(saraPage(3, 500, 1))
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second)

	features, err := client.Search(context.Background(), SearchParams{Collection: "S1"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(features) != 3 {
		t.Errorf("Expected 3 features, got %d", len(features))
	}
	if features[0].Properties.Platform != "S1A" {
		t.Errorf("Expected platform S1A, got %s", features[0].Properties.Platform)
	}
}

func TestClient_Search_Paginates(t *testing.T) {
	// 12 results at 5 per page: pages 1, 2 and 3, each requested once.
	const total, perPage = 12, 5
	requestedPages := map[int]int{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			page, _ = strconv.Atoi(p)
		}
		requestedPages[page]++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(saraPage(total, perPage, page))
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second)

	features, err := client.Search(context.Background(), SearchParams{Collection: "S2", MaxRecords: perPage})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(features) != total {
		t.Errorf("Expected %d features, got %d", total, len(features))
	}
	for page := 1; page <= 3; page++ {
		if requestedPages[page] != 1 {
			t.Errorf("page %d requested %d times, want exactly once", page, requestedPages[page])
		}
	}
	// Features must arrive in page order with no duplicates.
	for i, f := range features {
		want := fmt.Sprintf("feature-%03d", i)
		if f.ID != want {
			t.Errorf("feature %d has ID %s, want %s", i, f.ID, want)
		}
	}
}

func TestClient_Search_WithParams(t *testing.T) {
	var capturedURL string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedURL = r.URL.String()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(saraPage(0, 500, 1))
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second)

	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	cloud := 50
	params := SearchParams{
		Collection:     "S2",
		StartDate:      &start,
		MaxCloudCover:  &cloud,
		OrbitDirection: "DESCENDING",
		Polarisation:   []string{"VV", "VH"},
	}

	if _, err := client.Search(context.Background(), params); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	expectedParams := []string{
		"startDate=2021-03-01T00%3A00%3A00Z",
		"cloudCover=%5B0%2C50%5D",
		"orbitDirection=descending",
		"polarisation=VV%2CVH",
		"maxRecords=500",
		"page=1",
	}
	for _, p := range expectedParams {
		if !strings.Contains(capturedURL, p) {
			t.Errorf("URL %s missing expected parameter %s", capturedURL, p)
		}
	}
}

func TestClient_Search_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second)
	if _, err := client.Search(context.Background(), SearchParams{Collection: "S1"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestClient_Search_RequiresCollection(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second)
	if _, err := client.Search(context.Background(), SearchParams{}); err == nil {
		t.Fatal("expected error for missing collection")
	}
}

func TestClient_GetProduct(t *testing.T) {
	const id = "S1A_IW_GRDH_1SDV_20210304T100000"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("productIdentifier"); got != id {
			t.Errorf("productIdentifier = %q, want %q", got, id)
		}
		fc := saraPage(1, 500, 1)
		fc.Features[0].Properties.ProductIdentifier = id
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fc)
	}))
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second)
	f, err := client.GetProduct(context.Background(), "S1", id)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if f.Properties.ProductIdentifier != id {
		t.Errorf("ProductIdentifier = %q", f.Properties.ProductIdentifier)
	}
}

func TestFeature_ToMeta(t *testing.T) {
	raw := `{
		"type": "Feature",
		"id": "abc",
		"geometry": {"type": "Polygon", "coordinates": [[[144,-34],[146,-34],[146,-32],[144,-32],[144,-34]]]},
		"properties": {
			"title": "S1A_IW_GRDH_1SDV_20210304T100000",
			"platform": "Sentinel-1A",
			"instrument": "C-SAR",
			"productType": "GRD",
			"startDate": "2021-03-04T10:00:00.000000Z",
			"completionDate": "2021-03-04T10:00:27.000000Z",
			"polarisation": "VV,VH",
			"sensorMode": "IW",
			"orbitDirection": "descending",
			"orbitNumber": 12345,
			"relativeOrbitNumber": 23,
			"cloudCover": 12.6,
			"services": {"download": {
				"url": "https://example.invalid/S1A.zip",
				"size": 1048576,
				"checksum": "md5:d41d8cd98f00b204e9800998ecf8427e"
			}}
		}
	}`
	var f Feature
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	m, err := f.ToMeta()
	if err != nil {
		t.Fatalf("ToMeta: %v", err)
	}
	if m.SatelliteID != "S1A" {
		t.Errorf("SatelliteID = %q, want S1A", m.SatelliteID)
	}
	if m.PassDirection != "Descending" {
		t.Errorf("PassDirection = %q", m.PassDirection)
	}
	if len(m.Polarisations) != 2 || m.Polarisations[0] != "VV" {
		t.Errorf("Polarisations = %v", m.Polarisations)
	}
	if m.AbsoluteOrbit == nil || *m.AbsoluteOrbit != 12345 {
		t.Errorf("AbsoluteOrbit = %v", m.AbsoluteOrbit)
	}
	if m.CloudCoverPct == nil || *m.CloudCoverPct != 13 {
		t.Errorf("CloudCoverPct = %v, want 13", m.CloudCoverPct)
	}
	if m.MD5ESA != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("MD5ESA = %q", m.MD5ESA)
	}
	if m.ZipfileSize != 1048576 {
		t.Errorf("ZipfileSize = %d", m.ZipfileSize)
	}
	if m.Footprint == nil || m.Centroid == nil {
		t.Fatal("expected footprint and centroid")
	}
	if m.Centroid.Lon() < 144 || m.Centroid.Lon() > 146 {
		t.Errorf("Centroid = %v", *m.Centroid)
	}
}
