package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// MetricsRecorder records provider call outcomes.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger
	Metrics  MetricsRecorder
}

// Service validates routing requests before they reach the provider.
// It holds no per-request state; every call goes to the engine.
type Service struct {
	provider  Provider
	logger    zerolog.Logger
	metrics   MetricsRecorder
	supported map[Profile]bool
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	supported := make(map[Profile]bool)
	for _, p := range cfg.Provider.SupportedProfiles() {
		supported[p] = true
	}
	return &Service{
		provider:  cfg.Provider,
		logger:    cfg.Logger.With().Str("component", "routing").Logger(),
		metrics:   cfg.Metrics,
		supported: supported,
	}
}

// Route validates req and forwards it to the provider. Invalid waypoints and
// unsupported profiles fail before any network call.
func (s *Service) Route(ctx context.Context, req Request) (*Response, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.provider.Route(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordRequest(s.provider.Name(), "route_"+string(req.Profile), time.Since(start), err)
	}
	if err != nil {
		s.logger.Debug().
			Err(err).
			Str("profile", string(req.Profile)).
			Int("waypoints", len(req.Waypoints)).
			Msg("route request failed")
		return nil, err
	}

	s.logger.Debug().
		Str("profile", string(req.Profile)).
		Float64("duration_s", resp.DurationSeconds).
		Float64("distance_m", resp.DistanceMeters).
		Msg("route computed")

	return resp, nil
}

// Name returns the underlying provider name.
func (s *Service) Name() string {
	return s.provider.Name()
}

// SupportedProfiles returns the provider's profiles.
func (s *Service) SupportedProfiles() []Profile {
	return s.provider.SupportedProfiles()
}

func (s *Service) validate(req Request) error {
	if !s.supported[req.Profile] {
		return &Error{
			Provider: s.provider.Name(),
			Code:     "UNSUPPORTED_PROFILE",
			Message:  fmt.Sprintf("profile %q is not configured", req.Profile),
			Err:      ErrUnsupportedProfile,
		}
	}
	if len(req.Waypoints) < 2 {
		return &Error{
			Provider: s.provider.Name(),
			Code:     "TOO_FEW_WAYPOINTS",
			Message:  fmt.Sprintf("need at least 2 waypoints, got %d", len(req.Waypoints)),
			Err:      ErrInvalidCoordinates,
		}
	}
	for i, wp := range req.Waypoints {
		if err := wp.Validate(); err != nil {
			return &Error{
				Provider: s.provider.Name(),
				Code:     "INVALID_WAYPOINT",
				Message:  fmt.Sprintf("waypoint %d: %v", i, err),
				Err:      ErrInvalidCoordinates,
			}
		}
	}
	return nil
}
