// Package osrm provides a client for OSRM-compatible /route/v1 endpoints,
// such as the per-profile instances hosted at routing.openstreetmap.de.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/provider/resilience"
	"github.com/movilityai/movility/internal/routing"
	"github.com/movilityai/movility/pkg/geo"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	// DefaultBaseURL hosts one OSRM instance per profile under a path prefix.
	DefaultBaseURL = "https://routing.openstreetmap.de"

	// DefaultTimeout bounds a single route request.
	DefaultTimeout = 20 * time.Second
)

// DefaultProfilePaths maps each profile to its instance path prefix.
var DefaultProfilePaths = map[routing.Profile]string{
	routing.ProfileCar:  "/routed-car",
	routing.ProfileBike: "/routed-bike",
	routing.ProfileFoot: "/routed-foot",
}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OSRM client.
type ClientConfig struct {
	BaseURL string

	// ProfilePaths overrides DefaultProfilePaths. Profiles missing from the
	// map are unsupported.
	ProfilePaths map[routing.Profile]string

	// HTTPClient defaults to a single-shot resilient client.
	HTTPClient HTTPDoer

	Timeout   time.Duration
	UserAgent string
	Registry  *resilience.Registry
	Logger    zerolog.Logger
}

// Client is an OSRM route client. It never retries.
type Client struct {
	baseURL    string
	paths      map[routing.Profile]string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OSRM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	paths := cfg.ProfilePaths
	if len(paths) == 0 {
		paths = DefaultProfilePaths
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.DisableRetries = true
		clientCfg.UserAgent = cfg.UserAgent
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = &cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		paths:      paths,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedProfiles returns the profiles that have a configured path.
func (c *Client) SupportedProfiles() []routing.Profile {
	profiles := make([]routing.Profile, 0, len(c.paths))
	for _, p := range []routing.Profile{routing.ProfileCar, routing.ProfileBike, routing.ProfileFoot} {
		if _, ok := c.paths[p]; ok {
			profiles = append(profiles, p)
		}
	}
	return profiles
}

// Route requests one route through req.Waypoints.
func (c *Client) Route(ctx context.Context, req routing.Request) (*routing.Response, error) {
	path, ok := c.paths[req.Profile]
	if !ok {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "UNSUPPORTED_PROFILE",
			Message:  fmt.Sprintf("profile %q is not configured", req.Profile),
			Err:      routing.ErrUnsupportedProfile,
		}
	}
	if len(req.Waypoints) < 2 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "TOO_FEW_WAYPOINTS",
			Message:  "at least two waypoints are required",
			Err:      routing.ErrInvalidCoordinates,
		}
	}

	url := c.routeURL(path, req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", string(req.Profile)).
		Int("waypoints", len(req.Waypoints)).
		Msg("requesting route from OSRM")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing engine: " + err.Error(),
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "reading routing engine response: " + err.Error(),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "MALFORMED_RESPONSE",
			Message:  "decoding routing engine response: " + err.Error(),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	return c.toResponse(&parsed)
}

// routeURL builds {base}{path}/route/v1/{profile}/{lon,lat;...}. OSRM takes
// longitude first.
func (c *Client) routeURL(path string, req routing.Request) string {
	points := make([]string, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		points[i] = strconv.FormatFloat(wp.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(wp.Lat, 'f', -1, 64)
	}
	return fmt.Sprintf("%s%s/route/v1/%s/%s?overview=full&geometries=polyline&annotations=duration,distance",
		c.baseURL, path, req.Profile, strings.Join(points, ";"))
}

func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var parsed osrmResponse
	_ = json.Unmarshal(body, &parsed) //nolint:errcheck // message is optional

	if statusCode == http.StatusBadRequest && (parsed.Code == codeNoRoute || parsed.Code == codeNoMatch) {
		return &routing.Error{
			Provider: ProviderName,
			Code:     parsed.Code,
			Message:  parsed.Message,
			Err:      routing.ErrNoRouteFound,
		}
	}

	routingErr := &routing.Error{
		Provider: ProviderName,
		Code:     fmt.Sprintf("HTTP_%d", statusCode),
		Message:  fmt.Sprintf("routing engine returned status %d", statusCode),
		Err:      routing.ErrProviderUnavailable,
	}
	if statusCode == http.StatusTooManyRequests {
		routingErr.Code = "RATE_LIMIT"
		routingErr.Err = routing.ErrRateLimitExceeded
	}
	if parsed.Message != "" {
		routingErr.Message += ": " + parsed.Message
	}
	return routingErr
}

func (c *Client) toResponse(parsed *osrmResponse) (*routing.Response, error) {
	if parsed.Code != codeOK || len(parsed.Routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     parsed.Code,
			Message:  "routing engine returned no route",
			Err:      routing.ErrNoRouteFound,
		}
	}

	route := parsed.Routes[0]
	distance := route.Distance
	if distance == 0 && route.Geometry != "" {
		distance = geo.PathLength(geo.DecodePolyline(route.Geometry))
	}

	return &routing.Response{
		DurationSeconds: route.Duration,
		DistanceMeters:  distance,
		Geometry:        route.Geometry,
		Provider:        ProviderName,
	}, nil
}
