package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/bikeshare"
	"github.com/movilityai/movility/internal/transit"
	"github.com/movilityai/movility/internal/weather"
	"github.com/movilityai/movility/pkg/geo"
)

// WeatherSource is refreshed per point.
type WeatherSource interface {
	Current(ctx context.Context, point geo.Coordinate) (*weather.Report, error)
}

// StationSource is refreshed once per run.
type StationSource interface {
	Stations(ctx context.Context) ([]bikeshare.Station, error)
}

// AlertSource is refreshed once per run.
type AlertSource interface {
	ActiveAlerts(ctx context.Context, now time.Time) ([]transit.Alert, error)
}

// RefreshJob warms the weather, bike-share and alerts caches so plan
// requests rarely wait on an upstream.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	// Sources (optional, nil if not configured)
	weather  WeatherSource
	stations StationSource
	alerts   AlertSource

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes   int64
	WeatherRefresh   int64
	StationsRefresh  int64
	AlertsRefresh    int64
	FailedOperations int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config   RefreshConfig
	Logger   zerolog.Logger
	Weather  WeatherSource
	Stations StationSource
	Alerts   AlertSource
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:   config,
		logger:   cfg.Logger.With().Str("component", "refresh").Logger(),
		weather:  cfg.Weather,
		stations: cfg.Stations,
		alerts:   cfg.Alerts,
		metrics:  &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	WeatherPoints int
	Successful    int
	Failed        int
	Errors        []RefreshError
}

// RefreshError is one failed refresh operation.
type RefreshError struct {
	Source string
	Point  *geo.Coordinate
	Error  string
}

// Start runs the job immediately and then every Interval until ctx is
// done. With a zero Interval it runs once.
func (j *RefreshJob) Start(ctx context.Context) {
	j.Run(ctx)
	if j.config.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

// Run executes one refresh of every configured source.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	result := &RefreshResult{StartTime: time.Now()}

	var mu sync.Mutex
	record := func(source string, point *geo.Coordinate, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			result.Successful++
			return
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{Source: source, Point: point, Error: err.Error()})
	}

	var wg sync.WaitGroup
	if j.config.RefreshStations && j.stations != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
			defer cancel()
			_, err := j.stations.Stations(opCtx)
			record("bikeshare", nil, err)
			if err == nil {
				j.bump(&j.metrics.StationsRefresh)
			}
		}()
	}
	if j.config.RefreshAlerts && j.alerts != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
			defer cancel()
			_, err := j.alerts.ActiveAlerts(opCtx, time.Now())
			record("alerts", nil, err)
			if err == nil {
				j.bump(&j.metrics.AlertsRefresh)
			}
		}()
	}
	if j.config.RefreshWeather && j.weather != nil {
		result.WeatherPoints = len(j.config.Points)
		j.refreshWeather(ctx, record)
	}
	wg.Wait()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("weather_points", result.WeatherPoints).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("cache refresh completed")

	return result
}

// refreshWeather fans the points out to Concurrency workers.
func (j *RefreshJob) refreshWeather(ctx context.Context, record func(string, *geo.Coordinate, error)) {
	points := make(chan geo.Coordinate, len(j.config.Points))
	for _, p := range j.config.Points {
		points <- p
	}
	close(points)

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for point := range points {
				if ctx.Err() != nil {
					return
				}
				opCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
				_, err := j.weather.Current(opCtx, point)
				cancel()

				p := point
				record("weather", &p, err)
				if err == nil {
					j.bump(&j.metrics.WeatherRefresh)
				}
			}
		}()
	}
	wg.Wait()
}

func (j *RefreshJob) bump(counter *int64) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	*counter++
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.FailedOperations += int64(result.Failed)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		WeatherRefresh:      j.metrics.WeatherRefresh,
		StationsRefresh:     j.metrics.StationsRefresh,
		AlertsRefresh:       j.metrics.AlertsRefresh,
		FailedOperations:    j.metrics.FailedOperations,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_refreshes":       m.TotalRefreshes,
		"weather_refreshes":     m.WeatherRefresh,
		"stations_refreshes":    m.StationsRefresh,
		"alerts_refreshes":      m.AlertsRefresh,
		"failed_operations":     m.FailedOperations,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
	}
}
