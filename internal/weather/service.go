package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/cache"
	"github.com/movilityai/movility/pkg/geo"
)

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetCurrentWeather fetches current weather at a point.
	GetCurrentWeather(ctx context.Context, point geo.Coordinate) (*Observation, error)

	// GetForecast fetches upcoming forecast slots at a point.
	GetForecast(ctx context.Context, point geo.Coordinate) (*Forecast, error)

	// Configured reports whether the provider has credentials.
	Configured() bool

	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// Cache, when set, holds reports per grid cell for CacheTTL.
	Cache cache.Store

	// CacheTTL defaults to 10 minutes.
	CacheTTL time.Duration

	// CacheGridSize is the cell size in degrees (default 0.01, about 1 km).
	CacheGridSize float64
}

// Service turns provider observations into planner-ready reports.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	cache    cache.Store
	cacheTTL time.Duration
	gridSize float64
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	grid := cfg.CacheGridSize
	if grid == 0 {
		grid = 0.01
	}
	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger.With().Str("component", "weather").Logger(),
		cache:    cfg.Cache,
		cacheTTL: ttl,
		gridSize: grid,
	}
}

// Configured reports whether a configured provider is attached.
func (s *Service) Configured() bool {
	return s != nil && s.provider != nil && s.provider.Configured()
}

// Current returns the weather report at point. The precipitation
// probability comes from the nearest forecast slot and falls back to an
// estimate from the current condition when the forecast is unavailable.
func (s *Service) Current(ctx context.Context, point geo.Coordinate) (*Report, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if err := point.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCoordinates, err)
	}

	key := s.cacheKey(point)
	if report, ok := s.fromCache(ctx, key); ok {
		return report, nil
	}

	obs, err := s.provider.GetCurrentWeather(ctx, point)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", s.provider.Name()).Msg("current weather unavailable")
		return nil, err
	}

	report := &Report{
		Condition:                obs.Condition,
		Description:              obs.Description,
		TemperatureC:             obs.Temperature,
		Humidity:                 obs.Humidity,
		WindSpeedMS:              obs.WindSpeed,
		PrecipitationProbability: ConditionProbability(obs.Condition),
		ProbabilitySource:        ProbabilityFromCondition,
		Location:                 point,
		ObservedAt:               obs.ObservedAt,
		Provider:                 s.provider.Name(),
	}

	forecast, err := s.provider.GetForecast(ctx, point)
	switch {
	case err != nil:
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Info().Err(err).Msg("forecast unavailable, estimating precipitation from condition")
	case len(forecast.Slots) > 0:
		report.PrecipitationProbability = math.Round(clamp(forecast.Slots[0].PrecipProb, 0, 1) * 100)
		report.ProbabilitySource = ProbabilityFromForecast
	}

	s.toCache(ctx, key, report)
	return report, nil
}

func (s *Service) cacheKey(point geo.Coordinate) string {
	lat := math.Floor(point.Lat/s.gridSize) * s.gridSize
	lon := math.Floor(point.Lon/s.gridSize) * s.gridSize
	return fmt.Sprintf("weather:%.4f,%.4f", lat, lon)
}

func (s *Service) fromCache(ctx context.Context, key string) (*Report, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("weather cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false
	}
	return &report, true
}

func (s *Service) toCache(ctx context.Context, key string, report *Report) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("weather cache write failed")
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
