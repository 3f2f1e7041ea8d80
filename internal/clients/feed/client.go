// Package feed implements the client for the affiliate product feed API.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"catalog-sync-service/internal/clients"
	"golang.org/x/time/rate"
)

// ErrUnexpectedShape is returned when a response decodes but matches
// none of the known payload shapes. Callers treat it as an empty feed
// plus a soft failure, never as a fatal error.
var ErrUnexpectedShape = errors.New("feed: unexpected response shape")

// Item is a raw product record as received from the feed. No field is
// guaranteed: anything may be absent, null, or malformed. Price fields
// are left untyped because the feed sends both numbers and
// currency-formatted strings.
type Item struct {
	ProductID     string      `json:"product_id"`
	ID            string      `json:"id"` // older feed variants key on "id"
	Name          string      `json:"name"`
	Brand         string      `json:"brand"`
	Price         interface{} `json:"price"`
	OriginalPrice interface{} `json:"original_price"`
	Currency      string      `json:"currency"`
	ImageURL      string      `json:"image_url"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	Color         string      `json:"color"`
	Fabric        string      `json:"fabric"`
	Gender        string      `json:"gender"`
	Occasion      string      `json:"occasion"`
	Season        string      `json:"season"`
	Tags          []string    `json:"tags"`
	Style         string      `json:"style"`
	AffiliateLink string      `json:"affiliate_link"`
	ProductLink   string      `json:"product_link"`
	InStock       *bool       `json:"in_stock"`
	LastSynced    string      `json:"last_synced"`
	FeedSource    string      `json:"feed_source"`
}

// Identity returns the stable product identifier, preferring product_id
// over the legacy id field. Empty when the feed supplied neither.
func (i Item) Identity() string {
	if i.ProductID != "" {
		return i.ProductID
	}
	return i.ID
}

// Config holds feed client settings
type Config struct {
	BaseURL  string
	AppID    string
	APIKey   string
	PageSize int
	// RateLimit is requests per second against the feed API
	RateLimit float64
}

// Client fetches raw product pages from the feed API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	appID       string
	apiKey      string
	pageSize    int
	rateLimiter *rate.Limiter
	retrier     *clients.Retrier
}

// NewClient creates a new feed API client
func NewClient(cfg Config) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 2
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     cfg.BaseURL,
		appID:       cfg.AppID,
		apiKey:      cfg.APIKey,
		pageSize:    pageSize,
		rateLimiter: rate.NewLimiter(rate.Limit(limit), 1),
		retrier:     clients.NewRetrier(clients.DefaultRetryConfig()),
	}
}

// FetchPage fetches a single page of raw feed items
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]Item, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	fullURL := fmt.Sprintf("%s/api/apps/%s/entities/ProductFeed?%s", c.baseURL, c.appID, params.Encode())

	resp, result := c.retrier.DoHTTP(ctx, "feed.FetchPage", func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("api_key", c.apiKey)
		req.Header.Set("X-App-ID", c.appID)
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if resp == nil {
		return nil, fmt.Errorf("feed request failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("feed API error (status %d): %s", resp.StatusCode, string(body))
	}

	return decodePayload(body)
}

// FetchAll fetches the whole feed, page by page
func (c *Client) FetchAll(ctx context.Context) ([]Item, error) {
	var all []Item
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page, err := c.FetchPage(ctx, offset, c.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			return all, nil
		}
		offset += len(page)
	}
}

// decodePayload normalizes the feed's response shapes into one item
// slice. Precedence: bare array, then the results, data and items
// wrappers. Anything else is ErrUnexpectedShape.
func decodePayload(body []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var wrapper struct {
		Results []Item `json:"results"`
		Data    []Item `json:"data"`
		Items   []Item `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrUnexpectedShape
	}
	switch {
	case raw["results"] != nil && wrapper.Results != nil:
		return wrapper.Results, nil
	case raw["data"] != nil && wrapper.Data != nil:
		return wrapper.Data, nil
	case raw["items"] != nil && wrapper.Items != nil:
		return wrapper.Items, nil
	}
	return nil, ErrUnexpectedShape
}
