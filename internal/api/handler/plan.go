package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/api/middleware"
	"github.com/movilityai/movility/internal/api/models"
	"github.com/movilityai/movility/internal/api/response"
	"github.com/movilityai/movility/internal/planner"
	"github.com/movilityai/movility/internal/routing"
	"github.com/movilityai/movility/pkg/geo"
)

// Planner composes itineraries.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (*planner.Result, error)
	PlanDirect(ctx context.Context, origin, destination geo.Coordinate) (*planner.Itinerary, error)
}

// PlanHandler serves the route planning endpoints.
type PlanHandler struct {
	planner Planner
	logger  zerolog.Logger
	now     func() time.Time
}

// NewPlanHandler creates a PlanHandler.
func NewPlanHandler(p Planner, logger zerolog.Logger) *PlanHandler {
	return &PlanHandler{
		planner: p,
		logger:  logger.With().Str("component", "plan_handler").Logger(),
		now:     time.Now,
	}
}

// Plan handles POST /v1/routes:plan. A trip with no viable route is a 200
// with a null recommended_route.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var body models.PlanRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := h.planner.Plan(r.Context(), body.ToPlanner())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewPlanResponse(res))
}

// Direct handles POST /v1/routes:direct.
func (h *PlanHandler) Direct(w http.ResponseWriter, r *http.Request) {
	var body models.DirectRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	it, err := h.planner.PlanDirect(r.Context(), body.Origin.Coordinate(), body.Destination.Coordinate())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.DirectResponse{
		Route:     models.NewItinerary(*it),
		Timestamp: models.Timestamp(h.now()),
	})
}

func (h *PlanHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, planner.ErrInvalidRequest),
		errors.Is(err, routing.ErrInvalidCoordinates),
		errors.Is(err, geo.ErrInvalidCoordinate):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, routing.ErrNoRouteFound):
		response.NoRoute(w, r, "no route found between origin and destination")
	case errors.Is(err, routing.ErrProviderUnavailable),
		errors.Is(err, routing.ErrRateLimitExceeded),
		errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("routing unavailable")
		response.ServiceUnavailable(w, r, "routing service is temporarily unavailable")
	case errors.Is(err, context.Canceled):
		h.logger.Debug().Str("request_id", middleware.GetRequestID(r.Context())).Msg("client cancelled plan")
		response.ServiceUnavailable(w, r, "request cancelled")
	default:
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("plan failed")
		response.InternalError(w, r, "failed to plan route")
	}
}
