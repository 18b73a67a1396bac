package transit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Provider defines the interface for service alert feeds.
type Provider interface {
	// Alerts fetches every alert in the feed, active or not.
	Alerts(ctx context.Context) ([]Alert, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the transit alerts service.
type ServiceConfig struct {
	// Provider is nil when no feed is configured.
	Provider Provider

	Logger zerolog.Logger

	// CacheTTL is how long a fetched feed is reused (default: 2 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving the last feed on provider errors
	// (default: 30 minutes).
	StaleIfErrorTTL time.Duration
}

// Service provides active alerts with a short in-process cache.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration

	mu        sync.RWMutex
	alerts    []Alert
	fetchedAt time.Time
}

// NewService creates a new transit alerts service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 2 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger.With().Str("component", "transit_alerts").Logger(),
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
	}
}

// Configured reports whether an alerts feed is attached.
func (s *Service) Configured() bool {
	return s != nil && s.provider != nil
}

// ActiveAlerts returns the alerts active at now, in feed order.
func (s *Service) ActiveAlerts(ctx context.Context, now time.Time) ([]Alert, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	all, err := s.allAlerts(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]Alert, 0, len(all))
	for i := range all {
		if all[i].ActiveAt(now) {
			active = append(active, all[i])
		}
	}
	return active, nil
}

func (s *Service) allAlerts(ctx context.Context) ([]Alert, error) {
	s.mu.RLock()
	if !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < s.cacheTTL {
		alerts := s.alerts
		s.mu.RUnlock()
		return alerts, nil
	}
	s.mu.RUnlock()

	alerts, err := s.provider.Alerts(ctx)
	if err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < s.staleIfErrorTTL {
			s.logger.Warn().
				Err(err).
				Dur("age", time.Since(s.fetchedAt)).
				Msg("serving stale service alerts due to provider error")
			return s.alerts, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.alerts = alerts
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug().Int("alerts", len(alerts)).Str("provider", s.provider.Name()).Msg("service alerts refreshed")
	return alerts, nil
}
