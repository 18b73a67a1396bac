package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movilityai/movility/internal/planner"
)

var envKeys = []string{
	"PORT", "ENVIRONMENT", "LOG_LEVEL", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"OSRM_BASE_URL", "OSRM_PROFILE_CAR", "OSRM_PROFILE_BIKE", "OSRM_PROFILE_FOOT", "OSRM_TIMEOUT_S",
	"OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL",
	"OVERPASS_URL", "OVERPASS_TIMEOUT_S", "OVERPASS_RETRIES", "OVERPASS_SLEEP_S", "OVERPASS_UA", "OVERPASS_CACHE_TTL",
	"NOMINATIM_URL", "ENCICLA_STATIONS_URL", "ENCICLA_LIMIT", "GTFS_RT_ALERTS_URL",
	"REDIS_URL", "CITY_PROFILE", "TIMEZONE", "STOPS_REQUIRED", "REQUIRE_TLS",
	"REFRESH_INTERVAL", "FEATURE_FLAGS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "https://routing.openstreetmap.de", cfg.OSRM.BaseURL)
	assert.Equal(t, "/routed-bike", cfg.OSRM.ProfileBike)
	assert.Equal(t, 20*time.Second, cfg.OSRM.Timeout)
	assert.Empty(t, cfg.Weather.APIKey)
	assert.Empty(t, cfg.Overpass.URLs)
	assert.Equal(t, 60*time.Second, cfg.Overpass.Timeout)
	assert.Equal(t, 2, cfg.Overpass.Retries)
	assert.Equal(t, 1500*time.Millisecond, cfg.Overpass.Sleep)
	assert.Equal(t, 6*time.Hour, cfg.Overpass.CacheTTL)
	assert.Equal(t, 200, cfg.BikeShare.Limit)
	assert.Empty(t, cfg.GTFSRTAlertsURL)
	assert.True(t, cfg.StopsRequired)
	assert.False(t, cfg.RequireTLS)
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OSRM_TIMEOUT_S", "2.5")
	t.Setenv("OPENWEATHER_API_KEY", "secret")
	t.Setenv("OVERPASS_URL", "https://a.example/api/interpreter, https://b.example/api/interpreter")
	t.Setenv("OVERPASS_CACHE_TTL", "90m")
	t.Setenv("OVERPASS_SLEEP_S", "0")
	t.Setenv("ENCICLA_LIMIT", "50")
	t.Setenv("GTFS_RT_ALERTS_URL", "https://feeds.example/alerts.pb")
	t.Setenv("STOPS_REQUIRED", "false")
	t.Setenv("REQUIRE_TLS", "true")
	t.Setenv("REFRESH_INTERVAL", "0")
	t.Setenv("FEATURE_FLAGS", "disable_bike_mode=true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 2500*time.Millisecond, cfg.OSRM.Timeout)
	assert.Equal(t, "secret", cfg.Weather.APIKey)
	assert.Equal(t, []string{"https://a.example/api/interpreter", "https://b.example/api/interpreter"}, cfg.Overpass.URLs)
	assert.Equal(t, 90*time.Minute, cfg.Overpass.CacheTTL)
	assert.Zero(t, cfg.Overpass.Sleep)
	assert.Equal(t, 50, cfg.BikeShare.Limit)
	assert.Equal(t, "https://feeds.example/alerts.pb", cfg.GTFSRTAlertsURL)
	assert.False(t, cfg.StopsRequired)
	assert.True(t, cfg.RequireTLS)
	assert.Zero(t, cfg.RefreshInterval)
	assert.Equal(t, "disable_bike_mode=true", cfg.FeatureFlags)
}

func TestFromEnv_CacheTTLInSeconds(t *testing.T) {
	clearEnv(t)
	t.Setenv("OVERPASS_CACHE_TTL", "3600")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Overpass.CacheTTL)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"malformed number":  {"ENCICLA_LIMIT": "many"},
		"malformed bool":    {"STOPS_REQUIRED": "maybe"},
		"malformed seconds": {"OSRM_TIMEOUT_S": "fast"},
		"unknown env":       {"ENVIRONMENT": "moon"},
		"bad osrm url":      {"OSRM_BASE_URL": "not a url"},
		"bad mirror":        {"OVERPASS_URL": "nope"},
		"zero retries":      {"OVERPASS_RETRIES": "0"},
		"port":              {"PORT": "http"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestDefaultCityProfile(t *testing.T) {
	p := DefaultCityProfile()

	assert.Equal(t, "Medellín", p.Name)
	assert.Equal(t, "America/Bogota", p.Timezone)
	assert.Equal(t, int64(3150), p.Fares.Regular)
	assert.InDelta(t, 18.0, p.Transit.LegMinutes, 1e-9)
	assert.Len(t, p.Area.Filters, 3)

	assert.Equal(t, map[planner.FareType]int64{
		planner.FareRegular: 3150,
		planner.FareStudent: 1700,
		planner.FareSenior:  1575,
	}, p.PlannerFares())

	area := p.StopsArea()
	assert.Equal(t, "Medellín", area.City)
	assert.Equal(t, 60, area.TimeoutSeconds)
}

func TestLoadCityProfile_EmptyPath(t *testing.T) {
	p, err := LoadCityProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCityProfile(), p)
}

func TestLoadCityProfile_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogota.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Bogotá
area:
  city: Bogotá
  name_pattern: "(?i)bogot[aá]"
  place_query: "Bogotá, Colombia"
  filters:
    - '["railway"="station"]'
fares:
  regular: 3200
transit:
  leg_minutes: 25
`), 0o600))

	p, err := LoadCityProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "Bogotá", p.Name)
	assert.Equal(t, "America/Bogota", p.Timezone)
	assert.Equal(t, []string{`["railway"="station"]`}, p.Area.Filters)
	assert.Equal(t, "6|7|8", p.Area.AdminLevels)
	assert.Equal(t, int64(3200), p.Fares.Regular)
	assert.Equal(t, int64(1700), p.Fares.Student)
	assert.InDelta(t, 25.0, p.Transit.LegMinutes, 1e-9)
	assert.InDelta(t, 4.8, p.Transit.WalkingSpeedKmh, 1e-9)
}

func TestLoadCityProfile_Errors(t *testing.T) {
	_, err := LoadCityProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := map[string]string{
		"malformed yaml":   "name: [",
		"zero fare":        "fares:\n  senior: 0\n",
		"no filters":       "area:\n  filters: []\n",
		"unknown timezone": "timezone: Mars/Olympus\n",
		"negative walking": "transit:\n  walking_speed_kmh: -1\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCityProfile([]byte(doc), DefaultCityProfile())
			assert.Error(t, err)
		})
	}
}

func TestCityProfileLocation(t *testing.T) {
	p := DefaultCityProfile()

	loc, err := p.Location("")
	require.NoError(t, err)
	assert.Equal(t, "America/Bogota", loc.String())

	loc, err = p.Location("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = p.Location("Nowhere/Special")
	assert.Error(t, err)
}
