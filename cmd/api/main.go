// Package main provides the entrypoint for the Movility API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/api"
	"github.com/movilityai/movility/internal/api/handler"
	"github.com/movilityai/movility/internal/api/middleware"
	"github.com/movilityai/movility/internal/bikeshare"
	"github.com/movilityai/movility/internal/bikeshare/opendata"
	"github.com/movilityai/movility/internal/cache"
	"github.com/movilityai/movility/internal/config"
	"github.com/movilityai/movility/internal/featureflags"
	"github.com/movilityai/movility/internal/planner"
	"github.com/movilityai/movility/internal/provider/resilience"
	"github.com/movilityai/movility/internal/routing"
	"github.com/movilityai/movility/internal/routing/osrm"
	"github.com/movilityai/movility/internal/stops"
	"github.com/movilityai/movility/internal/stops/nominatim"
	"github.com/movilityai/movility/internal/stops/overpass"
	"github.com/movilityai/movility/internal/telemetry"
	"github.com/movilityai/movility/internal/transit"
	"github.com/movilityai/movility/internal/transit/gtfsrt"
	"github.com/movilityai/movility/internal/weather"
	"github.com/movilityai/movility/internal/weather/openweathermap"
	"github.com/movilityai/movility/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	serviceName = "movility-api"

	// memoryCacheSize bounds the in-process cache used without Redis.
	memoryCacheSize = 1024

	// refreshMaxPoints caps the weather points warmed per refresh run.
	refreshMaxPoints = 50
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load() //nolint:errcheck // optional file

	cfg, err := config.FromEnv()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	log := newLogger(cfg)
	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting Movility API")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	profile, err := config.LoadCityProfile(cfg.CityProfile)
	if err != nil {
		return err
	}
	loc, err := profile.Location(cfg.Timezone)
	if err != nil {
		return err
	}
	log.Info().
		Str("city", profile.Name).
		Str("timezone", loc.String()).
		Msg("city profile loaded")

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return err
	}
	planMetrics, err := telemetry.NewPlanMetrics()
	if err != nil {
		return err
	}

	store, closeStore := newCache(ctx, cfg, log)
	defer closeStore()

	registry := resilience.NewRegistry()

	// Stop index: built once, read-only afterwards.
	index, err := loadStops(ctx, cfg, profile, store, registry, log)
	if err != nil {
		return err
	}

	router := routing.NewService(routing.ServiceConfig{
		Provider: osrm.NewClient(osrm.ClientConfig{
			BaseURL: cfg.OSRM.BaseURL,
			ProfilePaths: map[routing.Profile]string{
				routing.ProfileCar:  cfg.OSRM.ProfileCar,
				routing.ProfileBike: cfg.OSRM.ProfileBike,
				routing.ProfileFoot: cfg.OSRM.ProfileFoot,
			},
			Timeout:  cfg.OSRM.Timeout,
			Registry: registry,
			Logger:   log,
		}),
		Logger:  log,
		Metrics: providerMetrics,
	})

	weatherService := weather.NewService(weather.ServiceConfig{
		Provider: openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:   cfg.Weather.APIKey,
			BaseURL:  cfg.Weather.BaseURL,
			Registry: registry,
			Logger:   log,
		}),
		Logger: log,
		Cache:  store,
	})
	if !weatherService.Configured() {
		log.Warn().Msg("OPENWEATHER_API_KEY not set, plans will carry no weather")
	}

	bikeShareService := bikeshare.NewService(bikeshare.ServiceConfig{
		Provider: opendata.NewClient(opendata.ClientConfig{
			URL:      cfg.BikeShare.StationsURL,
			Limit:    cfg.BikeShare.Limit,
			Registry: registry,
			Logger:   log,
		}),
		Logger: log,
		Cache:  store,
	})

	flags, err := newFlags(ctx, cfg, log)
	if err != nil {
		return err
	}

	plannerCfg := planner.Config{
		Router:            router,
		Stops:             index,
		Weather:           weatherService,
		Stations:          bikeShareService,
		Switches:          flags,
		Metrics:           planMetrics,
		Fares:             profile.PlannerFares(),
		TransitLegMinutes: profile.Transit.LegMinutes,
		WalkingSpeedKmh:   profile.Transit.WalkingSpeedKmh,
		MaxServiceAlerts:  profile.Transit.MaxServiceAlerts,
		Location:          loc,
		Logger:            log,
	}
	refreshCfg := worker.RefreshJobConfig{
		Config:   worker.DefaultRefreshConfig(worker.StationPoints(index.Stops(), 0.01, refreshMaxPoints)),
		Logger:   log,
		Stations: bikeShareService,
	}
	refreshCfg.Config.Interval = cfg.RefreshInterval
	if weatherService.Configured() {
		refreshCfg.Weather = weatherService
	}

	alertsConfigured := cfg.GTFSRTAlertsURL != ""
	if alertsConfigured {
		alertsService := transit.NewService(transit.ServiceConfig{
			Provider: gtfsrt.NewClient(gtfsrt.ClientConfig{
				URL:      cfg.GTFSRTAlertsURL,
				Registry: registry,
				Logger:   log,
			}),
			Logger: log,
		})
		plannerCfg.Alerts = alertsService
		refreshCfg.Alerts = alertsService
		log.Info().Msg("service alerts feed configured")
	}

	var refreshJob *worker.RefreshJob
	if cfg.RefreshInterval > 0 {
		refreshJob = worker.NewRefreshJob(refreshCfg)
		refreshCtx, stopRefresh := context.WithCancel(ctx)
		defer stopRefresh()
		go refreshJob.Start(refreshCtx)
		log.Info().
			Dur("interval", cfg.RefreshInterval).
			Int("weather_points", len(refreshCfg.Config.Points)).
			Msg("cache refresh started")
	}

	apiHandler := api.NewRouter(api.RouterConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		Logger:            log,
		Metrics:           httpMetrics,
		Planner:           planner.New(plannerCfg),
		Stops:             index,
		Stations:          bikeShareService,
		Providers:         registry,
		Refresh:           refreshReporter(refreshJob),
		Flags:             flags,
		WeatherConfigured: weatherService.Configured(),
		AlertsConfigured:  alertsConfigured,
		RequireTLS:        cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      apiHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newFlags seeds the in-memory flag store with FEATURE_FLAGS overrides.
func newFlags(ctx context.Context, cfg config.Config, log zerolog.Logger) (*featureflags.Service, error) {
	overrides, err := featureflags.ParseOverrides(cfg.FeatureFlags)
	if err != nil {
		return nil, err
	}
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     log,
	})
	if len(overrides) > 0 {
		if err := flags.SetFlags(ctx, overrides); err != nil {
			return nil, err
		}
	}
	return flags, nil
}

// refreshReporter keeps a disabled job out of /ready as a nil interface.
func refreshReporter(job *worker.RefreshJob) handler.RefreshReporter {
	if job == nil {
		return nil
	}
	return job
}

// newCache connects to Redis when configured and falls back to an
// in-process cache when Redis is unset or unreachable.
func newCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (cache.Store, func()) {
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			URL:       cfg.RedisURL,
			KeyPrefix: "movility:",
			Logger:    log,
		})
		if err == nil {
			log.Info().Msg("redis cache connected")
			return redisStore, func() {
				if err := redisStore.Close(); err != nil {
					log.Warn().Err(err).Msg("closing redis cache")
				}
			}
		}
		log.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
	}
	return cache.NewMemoryStore(memoryCacheSize), func() {}
}

// loadStops runs the fallback chain. An empty index is fatal unless
// STOPS_REQUIRED=false, in which case the server starts not ready.
func loadStops(
	ctx context.Context,
	cfg config.Config,
	profile config.CityProfile,
	store cache.Store,
	registry *resilience.Registry,
	log zerolog.Logger,
) (*stops.Index, error) {
	overpassClient := overpass.NewClient(overpass.ClientConfig{
		Mirrors:   cfg.Overpass.URLs,
		Timeout:   cfg.Overpass.Timeout,
		Retries:   cfg.Overpass.Retries,
		Sleep:     cfg.Overpass.Sleep,
		UserAgent: cfg.Overpass.UserAgent,
		Cache:     store,
		CacheTTL:  cfg.Overpass.CacheTTL,
		Registry:  registry,
		Logger:    log,
	})
	nominatimClient := nominatim.NewClient(nominatim.ClientConfig{
		URL:       cfg.Nominatim.URL,
		UserAgent: cfg.Overpass.UserAgent,
		Registry:  registry,
		Logger:    log,
	})

	// The admin-area strategy runs two Overpass queries back to back.
	index, err := stops.NewIndex(ctx, stops.IndexConfig{
		Strategies:      stops.DefaultStrategies(profile.StopsArea(), overpassClient, nominatimClient),
		StrategyTimeout: 2 * overpassClient.Budget(),
		Logger:          log,
	})
	if err != nil {
		if cfg.StopsRequired {
			return nil, err
		}
		log.Error().Err(err).Msg("starting without transit stops")
		return nil, nil
	}

	log.Info().
		Int("stops", index.Len()).
		Str("source", index.Source()).
		Msg("stop index built")
	return index, nil
}
