// Package config loads process configuration from the environment and the
// city profile file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds every environment-driven option.
type Config struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"required,oneof=development test staging production"`
	LogLevel    string `validate:"required,oneof=trace debug info warn error"`

	Telemetry Telemetry
	OSRM      OSRM
	Weather   Weather
	Overpass  Overpass
	Nominatim Nominatim
	BikeShare BikeShare

	// GTFSRTAlertsURL disables service alerts when empty.
	GTFSRTAlertsURL string `validate:"omitempty,url"`

	// RedisURL selects the Redis cache; empty uses an in-process cache.
	RedisURL string `validate:"omitempty,url"`

	// CityProfile is a YAML file path; empty uses the built-in profile.
	CityProfile string

	// Timezone overrides the city profile's timezone when set.
	Timezone string

	// StopsRequired makes an empty stop index fatal at startup.
	StopsRequired bool

	// RequireTLS rejects requests a proxy forwarded as plain HTTP.
	RequireTLS bool

	// FeatureFlags holds "key=value" overrides applied at startup.
	FeatureFlags string

	// RefreshInterval is the cache warm-up period; zero disables it.
	RefreshInterval time.Duration `validate:"gte=0"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Enabled      bool
	OTLPEndpoint string `validate:"required_if=Enabled true"`
}

// OSRM configures the routing engine.
type OSRM struct {
	BaseURL     string        `validate:"required,url"`
	ProfileCar  string        `validate:"required"`
	ProfileBike string        `validate:"required"`
	ProfileFoot string        `validate:"required"`
	Timeout     time.Duration `validate:"gt=0"`
}

// Weather configures the OpenWeather provider.
type Weather struct {
	// APIKey leaves weather unconfigured when empty.
	APIKey  string
	BaseURL string `validate:"required,url"`
}

// Overpass configures the geodata query mirrors.
type Overpass struct {
	// URLs replaces the built-in mirror list when non-empty.
	URLs      []string      `validate:"dive,url"`
	Timeout   time.Duration `validate:"gt=0"`
	Retries   int           `validate:"gte=1,lte=10"`
	Sleep     time.Duration `validate:"gte=0"`
	UserAgent string        `validate:"required"`
	CacheTTL  time.Duration `validate:"gte=0"`
}

// Nominatim configures the place-search fallback.
type Nominatim struct {
	URL string `validate:"required,url"`
}

// BikeShare configures the EnCicla stations feed.
type BikeShare struct {
	StationsURL string `validate:"required,url"`
	Limit       int    `validate:"gte=1,lte=5000"`
}

// FromEnv builds a Config from environment variables and validates it.
// Malformed numbers and durations are reported together.
func FromEnv() (Config, error) {
	p := parser{}

	cfg := Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Environment: strings.ToLower(getEnvOrDefault("ENVIRONMENT", "development")),
		LogLevel:    strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Telemetry: Telemetry{
			Enabled:      p.bool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		OSRM: OSRM{
			BaseURL:     getEnvOrDefault("OSRM_BASE_URL", "https://routing.openstreetmap.de"),
			ProfileCar:  getEnvOrDefault("OSRM_PROFILE_CAR", "/routed-car"),
			ProfileBike: getEnvOrDefault("OSRM_PROFILE_BIKE", "/routed-bike"),
			ProfileFoot: getEnvOrDefault("OSRM_PROFILE_FOOT", "/routed-foot"),
			Timeout:     p.seconds("OSRM_TIMEOUT_S", 20*time.Second),
		},
		Weather: Weather{
			APIKey:  os.Getenv("OPENWEATHER_API_KEY"),
			BaseURL: getEnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		},
		Overpass: Overpass{
			URLs:      splitList(os.Getenv("OVERPASS_URL")),
			Timeout:   p.seconds("OVERPASS_TIMEOUT_S", 60*time.Second),
			Retries:   p.int("OVERPASS_RETRIES", 2),
			Sleep:     p.seconds("OVERPASS_SLEEP_S", 1500*time.Millisecond),
			UserAgent: getEnvOrDefault("OVERPASS_UA", "MovilityAI/1.0 (contact: dev@example.com)"),
			CacheTTL:  p.duration("OVERPASS_CACHE_TTL", 6*time.Hour),
		},
		Nominatim: Nominatim{
			URL: getEnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		},
		BikeShare: BikeShare{
			StationsURL: getEnvOrDefault("ENCICLA_STATIONS_URL", "https://www.datos.gov.co/resource/hmuf-kqju.json"),
			Limit:       p.int("ENCICLA_LIMIT", 200),
		},
		GTFSRTAlertsURL: os.Getenv("GTFS_RT_ALERTS_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		CityProfile:     os.Getenv("CITY_PROFILE"),
		Timezone:        os.Getenv("TIMEZONE"),
		StopsRequired:   p.bool("STOPS_REQUIRED", true),
		RequireTLS:      p.bool("REQUIRE_TLS", false),
		FeatureFlags:    os.Getenv("FEATURE_FLAGS"),
		RefreshInterval: p.duration("REFRESH_INTERVAL", 10*time.Minute),
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether the process runs locally.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser reads typed values and collects the malformed ones.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

// seconds reads a possibly fractional number of seconds.
func (p *parser) seconds(key string, def time.Duration) time.Duration {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return time.Duration(v * float64(time.Second))
}

// duration reads a Go duration ("6h") or a plain number of seconds.
func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return p.seconds(key, def)
}
