// Package openweathermap implements weather.Provider against the
// OpenWeather 2.5 current-weather and 5 day / 3 hour forecast endpoints.
package openweathermap

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

	"github.com/movilityai/movility/internal/provider/resilience"
	"github.com/movilityai/movility/internal/weather"
	"github.com/movilityai/movility/pkg/geo"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeather API host.
	DefaultBaseURL = "https://api.openweathermap.org"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second

	// DefaultLanguage is used for condition descriptions.
	DefaultLanguage = "es"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenWeather client.
type ClientConfig struct {
	// APIKey is the OpenWeather key. Empty leaves the client unconfigured.
	APIKey string

	BaseURL  string
	Language string
	Timeout  time.Duration

	// HTTPClient defaults to a resilient client with retries.
	HTTPClient HTTPDoer

	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// Client is an OpenWeather API client.
type Client struct {
	apiKey     string
	baseURL    string
	lang       string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeather client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	lang := cfg.Language
	if lang == "" {
		lang = DefaultLanguage
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
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		lang:       lang,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GetCurrentWeather fetches current conditions at point.
func (c *Client) GetCurrentWeather(ctx context.Context, point geo.Coordinate) (*weather.Observation, error) {
	var resp currentWeatherResponse
	if err := c.get(ctx, "/data/2.5/weather", point, nil, &resp); err != nil {
		return nil, err
	}
	return toObservation(&resp, point), nil
}

// GetForecast fetches the next forecast slots at point.
func (c *Client) GetForecast(ctx context.Context, point geo.Coordinate) (*weather.Forecast, error) {
	var resp forecastResponse
	if err := c.get(ctx, "/data/2.5/forecast", point, url.Values{"cnt": {"2"}}, &resp); err != nil {
		return nil, err
	}
	return toForecast(&resp, point), nil
}

func (c *Client) get(ctx context.Context, path string, point geo.Coordinate, extra url.Values, out any) error {
	if !c.Configured() {
		return weather.ErrNotConfigured
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(point.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(point.Lon, 'f', 6, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", c.lang)
	for k, v := range extra {
		q[k] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &weather.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach weather service",
			Err:      fmt.Errorf("%w: %w", weather.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &weather.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("weather service returned status %d", resp.StatusCode),
			Err:      weather.ErrProviderUnavailable,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &weather.Error{
			Provider: ProviderName,
			Code:     "MALFORMED_RESPONSE",
			Message:  "decoding weather response",
			Err:      fmt.Errorf("%w: %w", weather.ErrProviderUnavailable, err),
		}
	}

	c.logger.Debug().Str("path", path).Msg("weather fetched")
	return nil
}

func toObservation(resp *currentWeatherResponse, point geo.Coordinate) *weather.Observation {
	obs := &weather.Observation{
		Location:    point,
		Temperature: resp.Main.Temp,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		Condition:   weather.ConditionUnknown,
		FetchedAt:   time.Now(),
	}
	if resp.Dt > 0 {
		obs.ObservedAt = time.Unix(resp.Dt, 0)
	} else {
		obs.ObservedAt = obs.FetchedAt
	}
	if len(resp.Weather) > 0 {
		obs.Condition = mapCondition(resp.Weather[0].Main)
		obs.Description = resp.Weather[0].Description
	}
	return obs
}

func toForecast(resp *forecastResponse, point geo.Coordinate) *weather.Forecast {
	forecast := &weather.Forecast{
		Location:  point,
		Slots:     make([]weather.ForecastSlot, 0, len(resp.List)),
		FetchedAt: time.Now(),
	}
	for _, item := range resp.List {
		slot := weather.ForecastSlot{
			Time:        time.Unix(item.Dt, 0),
			Temperature: item.Main.Temp,
			Condition:   weather.ConditionUnknown,
			PrecipProb:  item.Pop,
		}
		if len(item.Weather) > 0 {
			slot.Condition = mapCondition(item.Weather[0].Main)
		}
		forecast.Slots = append(forecast.Slots, slot)
	}
	return forecast
}

// mapCondition maps an OpenWeather "main" group to a Condition.
func mapCondition(main string) weather.Condition {
	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionClouds
	case "Rain":
		return weather.ConditionRain
	case "Drizzle":
		return weather.ConditionDrizzle
	case "Thunderstorm":
		return weather.ConditionThunderstorm
	case "Snow":
		return weather.ConditionSnow
	case "Mist":
		return weather.ConditionMist
	case "Fog":
		return weather.ConditionFog
	case "Haze", "Smoke", "Dust", "Sand", "Ash", "Squall", "Tornado":
		return weather.ConditionHaze
	default:
		return weather.ConditionUnknown
	}
}

type conditionGroup struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

type currentWeatherResponse struct {
	Weather []conditionGroup `json:"weather"`
	Main    struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []conditionGroup `json:"weather"`
		Pop     float64          `json:"pop"`
	} `json:"list"`
}
