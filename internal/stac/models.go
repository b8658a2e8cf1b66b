// Package stac provides STAC API response types, wrapping planetlabs/go-stac
// for the core entities and adding the envelope types the holdings API
// serves.
package stac

import (
	gostac "github.com/planetlabs/go-stac"
)

// ItemCollection represents a STAC ItemCollection (GeoJSON FeatureCollection)
// with the pagination fields of the STAC Context extension.
type ItemCollection struct {
	Type           string         `json:"type"` // "FeatureCollection"
	Features       []*gostac.Item `json:"features"`
	Links          []*gostac.Link `json:"links"`
	NumberMatched  *int           `json:"numberMatched,omitempty"`
	NumberReturned int            `json:"numberReturned"`
	Context        *Context       `json:"context,omitempty"`
}

// Context provides additional metadata about the response.
type Context struct {
	Returned int  `json:"returned"`
	Limit    int  `json:"limit,omitempty"`
	Matched  *int `json:"matched,omitempty"`
}

// NewItemCollection creates a new ItemCollection with the given items.
func NewItemCollection(items []*gostac.Item) *ItemCollection {
	return &ItemCollection{
		Type:           "FeatureCollection",
		Features:       items,
		Links:          make([]*gostac.Link, 0),
		NumberReturned: len(items),
	}
}

// AddLink adds a link to the ItemCollection.
func (ic *ItemCollection) AddLink(rel, href, mediaType string) {
	ic.Links = append(ic.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// SetContext sets the pagination metadata for the ItemCollection.
func (ic *ItemCollection) SetContext(returned, limit int, matched *int) {
	ic.Context = &Context{
		Returned: returned,
		Limit:    limit,
		Matched:  matched,
	}
	if matched != nil {
		ic.NumberMatched = matched
	}
}

// NewCollection creates a new STAC Collection with the given ID.
func NewCollection(id, title, description, version string) *gostac.Collection {
	return &gostac.Collection{
		Version:     version,
		Id:          id,
		Title:       title,
		Description: description,
		Links:       make([]*gostac.Link, 0),
		Assets:      make(map[string]*gostac.Asset),
		Summaries:   make(map[string]any),
	}
}

// CollectionsList represents a list of collections response.
type CollectionsList struct {
	Collections []*gostac.Collection `json:"collections"`
	Links       []*gostac.Link       `json:"links"`
}

// NewCollectionsList creates a new CollectionsList.
func NewCollectionsList(collections []*gostac.Collection) *CollectionsList {
	return &CollectionsList{
		Collections: collections,
		Links:       make([]*gostac.Link, 0),
	}
}

// Conformance represents the conformance classes response.
type Conformance struct {
	ConformsTo []string `json:"conformsTo"`
}

// LandingPage represents the STAC API landing page response.
type LandingPage struct {
	Type        string         `json:"type"` // "Catalog"
	Id          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	StacVersion string         `json:"stac_version"`
	ConformsTo  []string       `json:"conformsTo,omitempty"`
	Links       []*gostac.Link `json:"links"`
}

// NewLandingPage creates a new landing page response.
func NewLandingPage(id, title, description, version string, conformsTo []string) *LandingPage {
	return &LandingPage{
		Type:        "Catalog",
		Id:          id,
		Title:       title,
		Description: description,
		StacVersion: version,
		ConformsTo:  conformsTo,
		Links:       make([]*gostac.Link, 0),
	}
}

// AddLink adds a link to the landing page.
func (lp *LandingPage) AddLink(rel, href, mediaType string) {
	lp.Links = append(lp.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// Standard STAC conformance URIs.
const (
	ConformanceCore           = "https://api.stacspec.org/v1.0.0/core"
	ConformanceOGCFeatures    = "https://api.stacspec.org/v1.0.0/ogcapi-features"
	ConformanceItemSearch     = "https://api.stacspec.org/v1.0.0/item-search"
	ConformanceOGCFeatCore    = "http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core"
	ConformanceOGCFeatGeoJSON = "http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/geojson"
)

// DefaultConformance returns the conformance classes the holdings API
// implements.
func DefaultConformance() []string {
	return []string{
		ConformanceCore,
		ConformanceOGCFeatures,
		ConformanceItemSearch,
		ConformanceOGCFeatCore,
		ConformanceOGCFeatGeoJSON,
	}
}

// STAC extension URIs advertised on items.
const (
	ExtensionSAR        = "https://stac-extensions.github.io/sar/v1.0.0/schema.json"
	ExtensionSat        = "https://stac-extensions.github.io/sat/v1.0.0/schema.json"
	ExtensionEO         = "https://stac-extensions.github.io/eo/v1.1.0/schema.json"
	ExtensionProcessing = "https://stac-extensions.github.io/processing/v1.0.0/schema.json"
	ExtensionGrid       = "https://stac-extensions.github.io/grid/v1.1.0/schema.json"
)
