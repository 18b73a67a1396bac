package bikeshare

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/cache"
)

// ServiceConfig holds configuration for the stations service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// Cache holds the normalized station list. Optional.
	Cache cache.Store

	// CacheTTL defaults to 15 minutes.
	CacheTTL time.Duration
}

// Service serves the station list through a shared cache.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	cache    cache.Store
	cacheTTL time.Duration
}

// NewService creates a stations service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger.With().Str("component", "bikeshare").Logger(),
		cache:    cfg.Cache,
		cacheTTL: ttl,
	}
}

// Stations returns every station, from cache when fresh.
func (s *Service) Stations(ctx context.Context) ([]Station, error) {
	key := "bikeshare:stations:" + s.provider.Name()

	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("cache", s.cache.Name()).Msg("stations cache read failed")
		case ok:
			var stations []Station
			if err := json.Unmarshal(raw, &stations); err == nil {
				return stations, nil
			}
		}
	}

	stations, err := s.provider.Stations(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int("count", len(stations)).Msg("stations fetched")

	// An empty feed is not cached so the next request retries.
	if s.cache != nil && len(stations) > 0 {
		raw, err := json.Marshal(stations)
		if err == nil {
			err = s.cache.Set(ctx, key, raw, s.cacheTTL)
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("stations cache write failed")
		}
	}
	return stations, nil
}

// Name returns the underlying provider name.
func (s *Service) Name() string {
	return s.provider.Name()
}
