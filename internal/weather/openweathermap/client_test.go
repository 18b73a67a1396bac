package openweathermap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movilityai/movility/internal/provider/resilience"
	"github.com/movilityai/movility/internal/weather"
	"github.com/movilityai/movility/internal/weather/openweathermap"
	"github.com/movilityai/movility/pkg/geo"
)

var poblado = geo.Coordinate{Lat: 6.2087, Lon: -75.5679}

func newClient(serverURL, key string) *openweathermap.Client {
	cfg := resilience.DefaultClientConfig("openweathermap-test")
	cfg.MaxRetries = 1
	cfg.InitialInterval = time.Millisecond
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     key,
		BaseURL:    serverURL,
		HTTPClient: resilience.NewClient(cfg),
		Logger:     zerolog.Nop(),
	})
}

func TestClient_GetCurrentWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "6.208700", r.URL.Query().Get("lat"))
		assert.Equal(t, "-75.567900", r.URL.Query().Get("lon"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "es", r.URL.Query().Get("lang"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"weather": []map[string]any{{"id": 501, "main": "Rain", "description": "lluvia moderada"}},
			"main":    map[string]float64{"temp": 21.4, "humidity": 88},
			"wind":    map[string]float64{"speed": 2.1},
			"dt":      1760000000,
			"name":    "Medellín",
		})
	}))
	defer server.Close()

	obs, err := newClient(server.URL, "secret").GetCurrentWeather(context.Background(), poblado)
	require.NoError(t, err)

	assert.Equal(t, weather.ConditionRain, obs.Condition)
	assert.Equal(t, "lluvia moderada", obs.Description)
	assert.InDelta(t, 21.4, obs.Temperature, 1e-9)
	assert.InDelta(t, 88.0, obs.Humidity, 1e-9)
	assert.InDelta(t, 2.1, obs.WindSpeed, 1e-9)
	assert.Equal(t, time.Unix(1760000000, 0), obs.ObservedAt)
	assert.Equal(t, poblado, obs.Location)
}

func TestClient_GetForecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/forecast", r.URL.Path)
		_, _ = w.Write([]byte(`{"list":[
			{"dt":1760000000,"main":{"temp":20},"weather":[{"main":"Clouds"}],"pop":0.42},
			{"dt":1760010800,"main":{"temp":19},"weather":[{"main":"Rain"}],"pop":0.9}
		]}`))
	}))
	defer server.Close()

	forecast, err := newClient(server.URL, "secret").GetForecast(context.Background(), poblado)
	require.NoError(t, err)

	require.Len(t, forecast.Slots, 2)
	assert.InDelta(t, 0.42, forecast.Slots[0].PrecipProb, 1e-9)
	assert.Equal(t, weather.ConditionClouds, forecast.Slots[0].Condition)
	assert.Equal(t, weather.ConditionRain, forecast.Slots[1].Condition)
}

func TestClient_NotConfigured(t *testing.T) {
	var called atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called.Store(true)
	}))
	defer server.Close()

	client := newClient(server.URL, "")
	assert.False(t, client.Configured())

	_, err := client.GetCurrentWeather(context.Background(), poblado)
	assert.ErrorIs(t, err, weather.ErrNotConfigured)
	assert.EqualError(t, err, "OPENWEATHER_API_KEY not configured")
	assert.False(t, called.Load())
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"cod":401,"message":"Invalid API key"}`},
		{"server error", http.StatusInternalServerError, ``},
		{"malformed body", http.StatusOK, `{"weather": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(server.URL, "secret").GetCurrentWeather(context.Background(), poblado)
			require.Error(t, err)
			assert.ErrorIs(t, err, weather.ErrProviderUnavailable)

			var weatherErr *weather.Error
			assert.ErrorAs(t, err, &weatherErr)
			assert.Equal(t, openweathermap.ProviderName, weatherErr.Provider)
		})
	}
}

func TestClient_UnknownConditionMapsToUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"weather":[{"main":"Volcano"}],"main":{"temp":10}}`))
	}))
	defer server.Close()

	obs, err := newClient(server.URL, "secret").GetCurrentWeather(context.Background(), poblado)
	require.NoError(t, err)
	assert.Equal(t, weather.ConditionUnknown, obs.Condition)
	assert.False(t, obs.ObservedAt.IsZero())
}
