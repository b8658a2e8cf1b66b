package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/planetlabs/go-stac"

	"github.com/auscophub/archive/internal/config"
	"github.com/auscophub/archive/internal/filter"
	"github.com/auscophub/archive/internal/holdings"
	intstac "github.com/auscophub/archive/internal/stac"
	"github.com/auscophub/archive/internal/translate"
)

// Handlers contains all HTTP handlers for the holdings STAC API.
type Handlers struct {
	cfg    *config.Config
	index  *holdings.Index
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance over the given holdings index.
func NewHandlers(cfg *config.Config, index *holdings.Index, logger *slog.Logger) *Handlers {
	return &Handlers{
		cfg:    cfg,
		index:  index,
		logger: logger,
	}
}

// collectionDescriptions holds the human-readable text per mission
// collection. Collections appear in responses only when the archive actually
// holds products for them.
var collectionDescriptions = map[string][2]string{
	"sentinel-1": {
		"Sentinel-1",
		"Sentinel-1 C-band SAR products held in the regional archive",
	},
	"sentinel-2": {
		"Sentinel-2",
		"Sentinel-2 MSI optical products held in the regional archive",
	},
	"sentinel-3": {
		"Sentinel-3",
		"Sentinel-3 ocean and land products held in the regional archive",
	},
	"sentinel-5p": {
		"Sentinel-5P",
		"Sentinel-5P TROPOMI atmospheric products held in the regional archive",
	},
}

// LandingPage returns the STAC API landing page (root catalog).
// GET /
func (h *Handlers) LandingPage(w http.ResponseWriter, r *http.Request) {
	baseURL := h.cfg.STAC.BaseURL

	landing := intstac.NewLandingPage(
		"auscophub-archive",
		h.cfg.STAC.Title,
		h.cfg.STAC.Description,
		h.cfg.STAC.Version,
		intstac.DefaultConformance(),
	)

	landing.AddLink("self", baseURL+"/", "application/json")
	landing.AddLink("root", baseURL+"/", "application/json")
	landing.AddLink("conformance", baseURL+"/conformance", "application/json")
	landing.AddLink("data", baseURL+"/collections", "application/json")
	landing.Links = append(landing.Links, &stac.Link{
		Rel:    "search",
		Href:   baseURL + "/search",
		Type:   "application/geo+json",
		Method: "GET",
	})

	WriteJSON(w, http.StatusOK, landing)
}

// Conformance returns the conformance classes supported by this API.
// GET /conformance
func (h *Handlers) Conformance(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, &intstac.Conformance{
		ConformsTo: intstac.DefaultConformance(),
	})
}

// Collections returns the list of collections present in the archive.
// GET /collections
func (h *Handlers) Collections(w http.ResponseWriter, r *http.Request) {
	baseURL := h.cfg.STAC.BaseURL

	ids := h.index.Collections()
	collections := make([]*stac.Collection, 0, len(ids))
	for _, id := range ids {
		collections = append(collections, h.buildCollection(id))
	}

	response := intstac.NewCollectionsList(collections)
	response.Links = append(response.Links,
		&stac.Link{Rel: "self", Href: baseURL + "/collections", Type: "application/json"},
		&stac.Link{Rel: "root", Href: baseURL + "/", Type: "application/json"},
	)

	WriteJSON(w, http.StatusOK, response)
}

// Collection returns a single collection by ID.
// GET /collections/{collectionId}
func (h *Handlers) Collection(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionId")
	if !h.hasCollection(collectionID) {
		WriteNotFound(w, fmt.Sprintf("collection %q not found", collectionID))
		return
	}

	WriteJSON(w, http.StatusOK, h.buildCollection(collectionID))
}

// Items returns items from a specific collection.
// GET /collections/{collectionId}/items
func (h *Handlers) Items(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionId")
	if !h.hasCollection(collectionID) {
		WriteNotFound(w, fmt.Sprintf("collection %q not found", collectionID))
		return
	}

	query, err := h.parseItemsQuery(r)
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	selfURL := fmt.Sprintf("%s/collections/%s/items", h.cfg.STAC.BaseURL, collectionID)
	h.writeItemPage(w, r, selfURL, query, h.index.Select(collectionID, query.preds...))
}

// Item returns a single item by ID from a collection.
// GET /collections/{collectionId}/items/{itemId}
func (h *Handlers) Item(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionId")
	itemID := chi.URLParam(r, "itemId")

	if !h.hasCollection(collectionID) {
		WriteNotFound(w, fmt.Sprintf("collection %q not found", collectionID))
		return
	}

	rec := h.index.Get(itemID)
	if rec == nil || rec.Collection() != collectionID {
		WriteNotFound(w, fmt.Sprintf("item %q not found", itemID))
		return
	}

	item, err := h.itemForRecord(rec)
	if err != nil {
		h.logger.Error("failed to build item",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		WriteInternalError(w, "failed to build item")
		return
	}

	WriteGeoJSON(w, http.StatusOK, item)
}

// Search performs a cross-collection search over the archive holdings.
// GET /search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseItemsQuery(r)
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	wanted := splitParam(r.URL.Query().Get("collections"))
	var records []*holdings.Record
	if len(wanted) == 0 {
		records = h.index.Select("", query.preds...)
	} else {
		for _, c := range wanted {
			records = append(records, h.index.Select(c, query.preds...)...)
		}
	}

	h.writeItemPage(w, r, h.cfg.STAC.BaseURL+"/search", query, records)
}

// Health returns the service health and the size of the loaded index.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"holdings": h.index.Len(),
	})
}

type itemsQuery struct {
	limit  int
	offset int
	preds  []filter.Predicate
}

// parseItemsQuery extracts the common item filter parameters: limit, offset,
// bbox, datetime, cloud_cover, orbit_direction and polarisation.
func (h *Handlers) parseItemsQuery(r *http.Request) (*itemsQuery, error) {
	q := r.URL.Query()
	query := &itemsQuery{limit: h.cfg.STAC.DefaultLimit}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid limit %q", raw)
		}
		query.limit = n
	}
	if query.limit > h.cfg.STAC.MaxLimit {
		query.limit = h.cfg.STAC.MaxLimit
	}

	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid offset %q", raw)
		}
		query.offset = n
	}

	if raw := q.Get("bbox"); raw != "" {
		region, err := parseBBox(raw)
		if err != nil {
			return nil, err
		}
		query.preds = append(query.preds, filter.IntersectsRegion(region))
	}

	if raw := q.Get("datetime"); raw != "" {
		start, end, err := translate.ParseDateTimeInterval(raw)
		if err != nil {
			return nil, err
		}
		var startT, endT time.Time
		if start != nil {
			startT = *start
		}
		if end != nil {
			// The interval end is inclusive; TimeRange treats its stop
			// as exclusive.
			endT = end.Add(time.Second)
		}
		query.preds = append(query.preds, filter.TimeRange(startT, endT))
	}

	if raw := q.Get("cloud_cover"); raw != "" {
		pct, err := strconv.Atoi(raw)
		if err != nil || pct < 0 || pct > 100 {
			return nil, fmt.Errorf("invalid cloud_cover %q", raw)
		}
		query.preds = append(query.preds, filter.MaxCloud(pct))
	}

	if raw := q.Get("orbit_direction"); raw != "" {
		query.preds = append(query.preds, filter.PassDirection(raw))
	}

	if raw := q.Get("polarisation"); raw != "" {
		query.preds = append(query.preds, filter.HasPolarisations(splitParam(raw)...))
	}

	return query, nil
}

// writeItemPage applies limit/offset paging to the selected records and
// writes the resulting ItemCollection with pagination links.
func (h *Handlers) writeItemPage(w http.ResponseWriter, r *http.Request, selfURL string, query *itemsQuery, records []*holdings.Record) {
	total := len(records)

	page := records
	if query.offset >= len(page) {
		page = nil
	} else {
		page = page[query.offset:]
	}
	if len(page) > query.limit {
		page = page[:query.limit]
	}

	items := make([]*stac.Item, 0, len(page))
	for _, rec := range page {
		item, err := h.itemForRecord(rec)
		if err != nil {
			h.logger.Error("failed to build item",
				slog.String("item_id", rec.ID),
				slog.String("error", err.Error()),
			)
			WriteInternalError(w, "failed to build item")
			return
		}
		items = append(items, item)
	}

	ic := intstac.NewItemCollection(items)
	ic.SetContext(len(items), query.limit, &total)

	baseURL := h.cfg.STAC.BaseURL
	ic.AddLink("self", selfURL, "application/geo+json")
	ic.AddLink("root", baseURL+"/", "application/json")
	if next := query.offset + query.limit; next < total {
		ic.AddLink("next", pageURL(selfURL, r.URL.Query(), next), "application/geo+json")
	}
	if query.offset > 0 {
		prev := query.offset - query.limit
		if prev < 0 {
			prev = 0
		}
		ic.AddLink("prev", pageURL(selfURL, r.URL.Query(), prev), "application/geo+json")
	}

	WriteGeoJSON(w, http.StatusOK, ic)
}

func (h *Handlers) itemForRecord(rec *holdings.Record) (*stac.Item, error) {
	var downloadHref string
	if h.cfg.STAC.DownloadBaseURL != "" {
		downloadHref = strings.TrimSuffix(h.cfg.STAC.DownloadBaseURL, "/") + "/" + rec.RelPath
	}
	return translate.ItemFromMeta(rec.Meta, rec.ID, rec.Collection(),
		h.cfg.STAC.BaseURL, h.cfg.STAC.Version, downloadHref)
}

func (h *Handlers) hasCollection(id string) bool {
	for _, c := range h.index.Collections() {
		if c == id {
			return true
		}
	}
	return false
}

func (h *Handlers) buildCollection(id string) *stac.Collection {
	text, ok := collectionDescriptions[id]
	title, description := text[0], text[1]
	if !ok {
		title = id
		description = "Products held in the regional archive"
	}

	coll := intstac.NewCollection(id, title, description, h.cfg.STAC.Version)
	coll.License = "proprietary"

	if ext := h.index.CollectionExtent(id); ext != nil {
		spatial := [][]float64{{-180, -90, 180, 90}}
		if ext.BBox != nil {
			spatial = [][]float64{{
				ext.BBox.Min.Lon(), ext.BBox.Min.Lat(),
				ext.BBox.Max.Lon(), ext.BBox.Max.Lat(),
			}}
		}
		coll.Extent = &stac.Extent{
			Spatial: &stac.SpatialExtent{Bbox: spatial},
			Temporal: &stac.TemporalExtent{Interval: [][]any{{
				translate.FormatSTACTime(ext.Start),
				translate.FormatSTACTime(ext.End),
			}}},
		}
	}

	baseURL := h.cfg.STAC.BaseURL
	coll.Links = append(coll.Links,
		&stac.Link{Rel: "self", Href: fmt.Sprintf("%s/collections/%s", baseURL, id), Type: "application/json"},
		&stac.Link{Rel: "items", Href: fmt.Sprintf("%s/collections/%s/items", baseURL, id), Type: "application/geo+json"},
		&stac.Link{Rel: "root", Href: baseURL + "/", Type: "application/json"},
	)

	return coll
}

// parseBBox parses "minLon,minLat,maxLon,maxLat" into a region polygon.
func parseBBox(raw string) (orb.Polygon, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox value %q", p)
		}
		vals[i] = v
	}
	if vals[0] > vals[2] || vals[1] > vals[3] {
		return nil, fmt.Errorf("bbox min must not exceed max")
	}
	b := orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}
	return b.ToPolygon(), nil
}

func pageURL(selfURL string, params url.Values, offset int) string {
	q := url.Values{}
	for k, vs := range params {
		if k == "offset" {
			continue
		}
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("offset", strconv.Itoa(offset))
	return selfURL + "?" + q.Encode()
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
