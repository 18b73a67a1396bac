// Package nominatim resolves place names to bounding boxes with the
// OpenStreetMap Nominatim search API.
package nominatim

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

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/provider/resilience"
	"github.com/movilityai/movility/pkg/geo"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "nominatim"

	// DefaultURL is the public search endpoint.
	DefaultURL = "https://nominatim.openstreetmap.org/search"

	DefaultTimeout = 30 * time.Second
)

var (
	// ErrNotFound is returned when the search has no results.
	ErrNotFound = errors.New("nominatim: no results")
	// ErrInvalidBoundingBox is returned when the first result has no usable bounding box.
	ErrInvalidBoundingBox = errors.New("nominatim: invalid bounding box")
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	URL        string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Place is the first search hit.
type Place struct {
	DisplayName string
	Location    geo.Coordinate
	BoundingBox geo.BoundingBox
}

// Client is a Nominatim search client.
type Client struct {
	url        string
	userAgent  string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = 1
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = &cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		url:        endpoint,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

type searchResult struct {
	DisplayName string   `json:"display_name"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	BoundingBox []string `json:"boundingbox"`
}

// Search returns the first place matching q.
func (c *Client) Search(ctx context.Context, q string) (*Place, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug().Str("q", q).Msg("searching place")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNotFound, q)
	}

	return toPlace(results[0])
}

// toPlace parses boundingbox, which Nominatim returns as
// [south, north, west, east] strings.
func toPlace(r searchResult) (*Place, error) {
	if len(r.BoundingBox) != 4 {
		return nil, fmt.Errorf("%w: expected 4 values, got %d", ErrInvalidBoundingBox, len(r.BoundingBox))
	}

	var vals [4]float64
	for i, s := range r.BoundingBox {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBoundingBox, err)
		}
		vals[i] = v
	}

	box := geo.BoundingBox{South: vals[0], North: vals[1], West: vals[2], East: vals[3]}
	if err := box.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBoundingBox, err)
	}

	place := &Place{DisplayName: r.DisplayName, BoundingBox: box, Location: box.Center()}
	lat, latErr := strconv.ParseFloat(r.Lat, 64)
	lon, lonErr := strconv.ParseFloat(r.Lon, 64)
	if latErr == nil && lonErr == nil {
		place.Location = geo.Coordinate{Lat: lat, Lon: lon}
	}
	return place, nil
}
