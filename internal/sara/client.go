// Package sara is a client for the SARA catalog API (Sentinel Australasia
// Regional Access), the regional mirror's product search service.
package sara

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultMaxRecords is the page size requested when the caller does not set
// one. SARA caps page sizes server-side, so larger requests are quietly
// clamped.
const DefaultMaxRecords = 500

// Client handles communication with the SARA API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new SARA API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
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

// WithProxy routes all requests through the given proxy URL
func (c *Client) WithProxy(proxyURL string) (*Client, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	transport := c.httpClient.Transport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(u)
	c.httpClient.Transport = transport
	return c, nil
}

// SearchPage fetches a single page of search results
func (c *Client) SearchPage(ctx context.Context, params SearchParams) (*FeatureCollection, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	c.logger.DebugContext(ctx, "executing SARA search",
		slog.String("url", searchURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "auscophub-archive/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "SARA API request failed",
			slog.String("error", err.Error()),
			slog.String("url", searchURL),
		)
		return nil, fmt.Errorf("SARA API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.ErrorContext(ctx, "SARA API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("SARA API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode SARA response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to decode SARA response: %w", err)
	}

	c.logger.DebugContext(ctx, "SARA search page completed",
		slog.Int("feature_count", len(result.Features)),
	)

	return &result, nil
}

// Search fetches every page of results for the given query. The first page
// reports the total result count and page size; the remaining pages are
// fetched in sequence starting from page 2, so no page is requested twice.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Feature, error) {
	if params.MaxRecords == 0 {
		params.MaxRecords = DefaultMaxRecords
	}
	params.Page = 1

	first, err := c.SearchPage(ctx, params)
	if err != nil {
		return nil, err
	}
	features := first.Features

	total := len(features)
	if first.Properties.TotalResults != nil {
		total = *first.Properties.TotalResults
	}
	perPage := first.Properties.ItemsPerPage
	if perPage <= 0 {
		perPage = len(features)
	}
	if perPage <= 0 || total <= perPage {
		return features, nil
	}

	numPages := (total + perPage - 1) / perPage
	c.logger.DebugContext(ctx, "paging through SARA results",
		slog.Int("total", total),
		slog.Int("per_page", perPage),
		slog.Int("pages", numPages),
	)

	for page := 2; page <= numPages; page++ {
		params.Page = page
		result, err := c.SearchPage(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		features = append(features, result.Features...)
	}

	return features, nil
}

// GetProduct retrieves a single product by its exact identifier.
func (c *Client) GetProduct(ctx context.Context, collection, productID string) (*Feature, error) {
	c.logger.DebugContext(ctx, "fetching product",
		slog.String("product_id", productID),
	)

	result, err := c.SearchPage(ctx, SearchParams{
		Collection: collection,
		ProductID:  productID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search for product: %w", err)
	}
	if len(result.Features) == 0 {
		c.logger.WarnContext(ctx, "product not found",
			slog.String("product_id", productID),
		)
		return nil, fmt.Errorf("product not found: %s", productID)
	}
	// The identifier is unique, but match explicitly in case the server
	// treats it as a pattern.
	for i := range result.Features {
		if result.Features[i].Properties.ProductIdentifier == productID {
			return &result.Features[i], nil
		}
	}
	return &result.Features[0], nil
}

// buildSearchURL constructs the full search URL with query parameters
func (c *Client) buildSearchURL(params SearchParams) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if params.Collection == "" {
		return "", fmt.Errorf("search requires a collection")
	}

	base.Path, err = url.JoinPath(base.Path, "api", "collections", params.Collection, "search.json")
	if err != nil {
		return "", fmt.Errorf("building search path: %w", err)
	}
	base.RawQuery = params.ToQueryString()

	return base.String(), nil
}
