// Package thredds walks the server-published THREDDS catalog of the archive.
// Clients use it to find sidecar description files without filesystem access
// to the archive host, relying on the deterministic directory layout to
// bound the walk.
package thredds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"

	"github.com/auscophub/archive/internal/archive"
	"github.com/auscophub/archive/internal/meta"
)

// Client handles communication with a THREDDS data server
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new THREDDS client. The base URL points at the server
// root, e.g. "https://dapds00.nci.org.au/thredds".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// DatasetEntry is one file published in a catalog directory
type DatasetEntry struct {
	Name    string
	URLPath string
}

// CatalogRefEntry is one subdirectory reference in a catalog directory
type CatalogRefEntry struct {
	Title string
	Href  string
}

// DirList is the parsed content of one catalog.xml
type DirList struct {
	Datasets []DatasetEntry
	SubDirs  []CatalogRefEntry
}

// ListDir fetches and parses the catalog.xml for one directory, given as a
// path relative to the catalog root.
func (c *Client) ListDir(ctx context.Context, relPath string) (*DirList, error) {
	catalogURL := c.baseURL + "/catalog/" + strings.Trim(relPath, "/") + "/catalog.xml"
	data, err := c.fetch(ctx, catalogURL)
	if err != nil {
		return nil, err
	}
	return parseCatalog(data)
}

// FetchDescription fetches one sidecar description file by its dataset URL
// path and parses it.
func (c *Client) FetchDescription(ctx context.Context, urlPath string) (*meta.ZipfileMeta, error) {
	fileURL := c.baseURL + "/fileServer/" + strings.TrimLeft(urlPath, "/")
	data, err := c.fetch(ctx, fileURL)
	if err != nil {
		return nil, err
	}
	return meta.ParseDescription(data)
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", rawURL, err)
	}

	c.logger.DebugContext(ctx, "fetching from THREDDS",
		slog.String("url", rawURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "auscophub-archive/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("THREDDS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("THREDDS returned status %d for %s: %s", resp.StatusCode, rawURL, string(body))
	}
	return io.ReadAll(resp.Body)
}

// parseCatalog pulls the datasets and subdirectory references out of one
// THREDDS catalog document.
func parseCatalog(data []byte) (*DirList, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("malformed catalog XML: %w", err)
	}

	list := &DirList{}
	for _, el := range doc.FindElements("//dataset") {
		urlPath := el.SelectAttrValue("urlPath", "")
		if urlPath == "" {
			// Container datasets have no urlPath.
			continue
		}
		list.Datasets = append(list.Datasets, DatasetEntry{
			Name:    el.SelectAttrValue("name", ""),
			URLPath: urlPath,
		})
	}
	for _, el := range doc.FindElements("//catalogRef") {
		list.SubDirs = append(list.SubDirs, CatalogRefEntry{
			Title: attrValue(el, "title"),
			Href:  attrValue(el, "href"),
		})
	}
	return list, nil
}

// attrValue finds an attribute by local name, ignoring any namespace prefix.
// The xlink attributes on catalogRef elements arrive prefixed.
func attrValue(el *etree.Element, key string) string {
	for _, a := range el.Attr {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

var (
	yearDirPattern      = regexp.MustCompile(`^\d{4}$`)
	yearMonthDirPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
	dateDirPattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// SearchOptions bounds a walk over the catalog tree.
type SearchOptions struct {
	// ProductPath is the directory of the product being searched, relative
	// to the catalog root, e.g. "Sentinel-1/C-SAR/GRD".
	ProductPath string

	// StartDate and EndDate bound the acquisition months visited. Either
	// may be zero for an open end.
	StartDate time.Time
	EndDate   time.Time

	// BBox restricts the grid cells visited. Cells are matched with one
	// cell of margin, because a footprint can extend past the cell holding
	// its centroid. Nil means no spatial restriction.
	BBox *orb.Bound
}

// FindDescriptionFiles walks the catalog below the product directory and
// returns the dataset entries of every sidecar description file inside the
// requested date range and bounding box.
func (c *Client) FindDescriptionFiles(ctx context.Context, opts SearchOptions) ([]DatasetEntry, error) {
	var found []DatasetEntry
	err := c.walk(ctx, strings.Trim(opts.ProductPath, "/"), opts, &found)
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (c *Client) walk(ctx context.Context, dir string, opts SearchOptions, found *[]DatasetEntry) error {
	list, err := c.ListDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}

	for _, ds := range list.Datasets {
		if strings.HasSuffix(ds.Name, ".xml") {
			*found = append(*found, ds)
		}
	}

	for _, sub := range list.SubDirs {
		name := sub.Title
		if name == "" {
			name = strings.TrimSuffix(sub.Href, "/catalog.xml")
		}
		if !c.dirWanted(name, opts) {
			continue
		}
		if err := c.walk(ctx, dir+"/"+name, opts, found); err != nil {
			return err
		}
	}
	return nil
}

// dirWanted decides whether a subdirectory can contain results, from its
// name alone. Unrecognized names are skipped so a misconfigured product
// path cannot walk the whole server.
func (c *Client) dirWanted(name string, opts SearchOptions) bool {
	switch {
	case yearDirPattern.MatchString(name):
		return yearInRange(name, opts.StartDate, opts.EndDate)
	case yearMonthDirPattern.MatchString(name):
		return monthInRange(name, opts.StartDate, opts.EndDate)
	case dateDirPattern.MatchString(name):
		return dayInRange(name, opts.StartDate, opts.EndDate)
	}
	if topLat, leftLon, cellSize, err := archive.DecodeGridSquareDir(name); err == nil {
		return cellWanted(topLat, leftLon, cellSize, opts.BBox)
	}
	return false
}

func yearInRange(name string, start, end time.Time) bool {
	t, err := time.Parse("2006", name)
	if err != nil {
		return false
	}
	return (start.IsZero() || t.Year() >= start.Year()) &&
		(end.IsZero() || t.Year() <= end.Year())
}

func monthInRange(name string, start, end time.Time) bool {
	t, err := time.Parse("2006-01", name)
	if err != nil {
		return false
	}
	monthEnd := t.AddDate(0, 1, 0)
	return (start.IsZero() || !monthEnd.Before(start)) &&
		(end.IsZero() || !t.After(end))
}

func dayInRange(name string, start, end time.Time) bool {
	t, err := time.Parse("2006-01-02", name)
	if err != nil {
		return false
	}
	dayEnd := t.AddDate(0, 0, 1)
	return (start.IsZero() || !dayEnd.Before(start)) &&
		(end.IsZero() || !t.After(end))
}

// cellWanted checks the cell against the bounding box with one cell of
// margin on every side.
func cellWanted(topLat, leftLon, cellSize int, bbox *orb.Bound) bool {
	if bbox == nil {
		return true
	}
	minLon := float64(leftLon - cellSize)
	maxLon := float64(leftLon + 2*cellSize)
	minLat := float64(topLat - 2*cellSize)
	maxLat := float64(topLat + cellSize)
	return bbox.Min.Lon() <= maxLon && bbox.Max.Lon() >= minLon &&
		bbox.Min.Lat() <= maxLat && bbox.Max.Lat() >= minLat
}

// SearchDescriptions walks the catalog and fetches and parses every matching
// description file. A file that fails to fetch or parse is logged and
// skipped; one bad sidecar must not abort a whole search.
func (c *Client) SearchDescriptions(ctx context.Context, opts SearchOptions) ([]*meta.ZipfileMeta, error) {
	entries, err := c.FindDescriptionFiles(ctx, opts)
	if err != nil {
		return nil, err
	}

	var records []*meta.ZipfileMeta
	for _, e := range entries {
		m, err := c.FetchDescription(ctx, e.URLPath)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping unreadable description file",
				slog.String("url_path", e.URLPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, m)
	}
	return records, nil
}
