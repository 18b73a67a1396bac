package featureflags

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL is how long flags are cached in memory. Default: 1 minute.
	CacheTTL time.Duration

	// DefaultFlags answer when the repository fails or lacks a key.
	DefaultFlags map[string]*Flag
}

// Service provides feature flag evaluation with caching and fallback.
// A nil *Service reports every flag as unset.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger.With().Str("component", "featureflags").Logger(),
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		cache:        make(map[string]*Flag),
	}
}

// GetFlag retrieves a feature flag by key: cache, then repository, then
// defaults. Returns nil for an unknown key.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if s == nil {
		return nil
	}
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	if s.repo != nil {
		flag, err := s.repo.GetFlag(ctx, key)
		if err == nil {
			s.setCached(key, flag)
			return flag
		}
		if !errors.Is(err, ErrFlagNotFound) {
			s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
		}
	}

	return s.defaultFlags[key]
}

// GetAllFlags returns defaults overlaid with repository flags, sorted by key.
func (s *Service) GetAllFlags(ctx context.Context) []Flag {
	if s == nil {
		return nil
	}

	merged := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		merged[k] = v
	}

	if s.repo != nil {
		flags, err := s.repo.GetAllFlags(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		} else {
			for k, v := range flags {
				merged[k] = v
			}
			s.mu.Lock()
			s.cache = flags
			s.cacheExpiry = time.Now().Add(s.cacheTTL)
			s.mu.Unlock()
		}
	}

	out := make([]Flag, 0, len(merged))
	for _, f := range merged {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SetFlags updates multiple feature flags and refreshes the cache.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	if s == nil || s.repo == nil {
		return errors.New("feature flags have no repository")
	}
	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = flag
	}
	s.mu.Unlock()

	for _, flag := range flags {
		s.logger.Info().Str("flag", flag.Key).Interface("value", flag.Value).Msg("feature flag set")
	}
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cacheExpiry = time.Time{}
}

// IsEnabled returns true if the flag with the given key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	if s.cacheExpiry.Before(time.Now()) {
		s.cacheExpiry = time.Now().Add(s.cacheTTL)
	}
}

// Convenience methods for well-known flags.

// TransitModeDisabled reports whether plans must leave out the metro.
func (s *Service) TransitModeDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableTransitMode)
}

// BikeModeDisabled reports whether plans must leave out bikes.
func (s *Service) BikeModeDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableBikeMode)
}

// ServiceAlertsDisabled reports whether plans skip the alerts feed.
func (s *Service) ServiceAlertsDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableServiceAlerts)
}
