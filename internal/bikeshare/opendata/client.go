// Package opendata reads bike-share stations from a Socrata open-data
// resource (datos.gov.co publishes the EnCicla network this way).
package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/bikeshare"
	"github.com/movilityai/movility/internal/provider/resilience"
	"github.com/movilityai/movility/pkg/geo"
)

const (
	// ProviderName identifies this bike-share provider.
	ProviderName = "encicla"

	// DefaultURL is the EnCicla stations resource.
	DefaultURL = "https://www.datos.gov.co/resource/hmuf-kqju.json"

	DefaultLimit   = 200
	DefaultTimeout = 20 * time.Second
)

// Field aliases, tried in order. Datasets on the portal are not consistent
// about column names.
var (
	idKeys           = []string{"id", "codigo", "objectid"}
	nameKeys         = []string{"nombre", "estacion", "nombre_estacion"}
	latKeys          = []string{"lat", "latitude", "y"}
	lonKeys          = []string{"lon", "longitude", "x"}
	municipalityKeys = []string{"municipio", "ciudad"}
	typeKeys         = []string{"tipo", "tipo_estacion"}
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the open-data client.
type ClientConfig struct {
	URL        string
	Limit      int
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client fetches stations from the open-data portal.
type Client struct {
	url        string
	limit      int
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new open-data client.
func NewClient(cfg ClientConfig) *Client {
	u := cfg.URL
	if u == "" {
		u = DefaultURL
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = 2
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = &cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		url:        u,
		limit:      limit,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Stations fetches and normalizes the station list. Rows without usable
// coordinates are dropped.
func (c *Client) Stations(ctx context.Context) ([]bikeshare.Station, error) {
	reqURL, err := c.requestURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching stations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching stations: unexpected status code %d", resp.StatusCode)
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding stations: %w", err)
	}

	stations := Normalize(rows)
	c.logger.Debug().
		Int("rows", len(rows)).
		Int("stations", len(stations)).
		Msg("bike-share stations fetched")
	return stations, nil
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parsing stations url: %w", err)
	}
	q := u.Query()
	q.Set("$limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Normalize maps raw rows to stations using the field alias lists.
func Normalize(rows []map[string]any) []bikeshare.Station {
	stations := make([]bikeshare.Station, 0, len(rows))
	for _, row := range rows {
		lat, okLat := firstNumber(row, latKeys)
		lon, okLon := firstNumber(row, lonKeys)
		if !okLat || !okLon {
			continue
		}
		loc := geo.Coordinate{Lat: lat, Lon: lon}
		if loc.Validate() != nil {
			continue
		}
		stations = append(stations, bikeshare.Station{
			ID:           firstString(row, idKeys),
			Name:         firstString(row, nameKeys),
			Location:     loc,
			Municipality: firstString(row, municipalityKeys),
			Type:         firstString(row, typeKeys),
		})
	}
	return stations
}

func firstString(row map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := row[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func firstNumber(row map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		switch v := row[k].(type) {
		case float64:
			return v, true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
