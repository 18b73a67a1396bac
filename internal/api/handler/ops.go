package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/movilityai/movility/internal/api/models"
	"github.com/movilityai/movility/internal/api/response"
	"github.com/movilityai/movility/internal/featureflags"
	"github.com/movilityai/movility/internal/provider/resilience"
)

// HealthReporter snapshots provider health.
type HealthReporter interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// RefreshReporter snapshots the background cache refresh.
type RefreshReporter interface {
	MetricsSnapshot() map[string]any
}

// FlagLister lists the runtime feature flags.
type FlagLister interface {
	GetAllFlags(ctx context.Context) []featureflags.Flag
}

// OpsConfig configures the OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	Stops     StopIndex
	Providers HealthReporter
	Refresh   RefreshReporter
	Flags     FlagLister

	// WeatherConfigured and AlertsConfigured are reported by /ready.
	WeatherConfigured bool
	AlertsConfigured  bool
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":    h.cfg.Version,
			"build_time": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready once the
// stop index holds at least one stop; missing weather or alerts only
// degrade it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	stopCount := 0
	source := ""
	if h.cfg.Stops != nil {
		stopCount = h.cfg.Stops.Len()
		source = h.cfg.Stops.Source()
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"stops":              stopCount,
			"stops_source":       source,
			"weather_configured": h.cfg.WeatherConfigured,
			"alerts_configured":  h.cfg.AlertsConfigured,
		},
	}

	if h.cfg.Refresh != nil {
		health.Details["refresh"] = h.cfg.Refresh.MetricsSnapshot()
	}

	status := http.StatusOK
	switch {
	case stopCount == 0:
		health.Status = models.HealthStatusFail
		status = http.StatusServiceUnavailable
	case !h.cfg.WeatherConfigured:
		health.Status = models.HealthStatusDegraded
	}
	response.JSON(w, r, status, health)
}

// Providers handles GET /v1/ops/providers - circuit state per upstream.
func (h *OpsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	out := models.ProvidersStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.now()),
		Providers: []models.ProviderStatus{},
	}
	if h.cfg.Providers == nil {
		response.JSON(w, r, http.StatusOK, out)
		return
	}

	for _, ph := range h.cfg.Providers.GetAllHealth() {
		ps := models.ProviderStatus{
			Provider:            ph.Name,
			Status:              healthStatus(ph.Status()),
			CircuitState:        ph.CircuitState.String(),
			Requests:            ph.Counts.Requests,
			ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
			LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
			LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		out.Providers = append(out.Providers, ps)

		// One open or half-open circuit degrades the service as a whole.
		if ps.Status != models.HealthStatusOK {
			out.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, out)
}

// Flags handles GET /v1/ops/flags - current runtime switches.
func (h *OpsHandler) Flags(w http.ResponseWriter, r *http.Request) {
	out := models.FlagList{Items: []models.Flag{}}
	if h.cfg.Flags != nil {
		for _, f := range h.cfg.Flags.GetAllFlags(r.Context()) {
			out.Items = append(out.Items, models.Flag{
				Key:       f.Key,
				Value:     f.Value,
				UpdatedAt: models.Timestamp(f.UpdatedAt),
			})
		}
	}
	response.JSON(w, r, http.StatusOK, out)
}

func healthStatus(s string) models.HealthStatus {
	switch s {
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
