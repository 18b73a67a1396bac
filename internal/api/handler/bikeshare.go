package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/api/models"
	"github.com/movilityai/movility/internal/api/response"
	"github.com/movilityai/movility/internal/bikeshare"
)

// maxStationLimit caps the limit query parameter.
const maxStationLimit = 500

// StationLister lists bike-share stations.
type StationLister interface {
	Stations(ctx context.Context) ([]bikeshare.Station, error)
	Name() string
}

// BikeShareHandler serves bike-share station lookups.
type BikeShareHandler struct {
	stations StationLister
	logger   zerolog.Logger
}

// NewBikeShareHandler creates a BikeShareHandler. A nil lister makes every
// request answer 503.
func NewBikeShareHandler(stations StationLister, logger zerolog.Logger) *BikeShareHandler {
	return &BikeShareHandler{
		stations: stations,
		logger:   logger.With().Str("component", "bikeshare_handler").Logger(),
	}
}

// Stations handles GET /v1/bikeshare/stations?lat=&lon=&limit=. With a
// reference point the stations come sorted by distance, closest first.
func (h *BikeShareHandler) Stations(w http.ResponseWriter, r *http.Request) {
	point, fields := queryPoint(r, false)
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStationLimit {
			fields = append(fields, models.FieldError{
				Field:   "limit",
				Message: "must be an integer between 1 and " + strconv.Itoa(maxStationLimit),
				Code:    "range",
			})
		}
		limit = n
	}
	if len(fields) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fields)
		return
	}

	if h.stations == nil {
		response.ServiceUnavailable(w, r, "bike-share data is not configured")
		return
	}

	stations, err := h.stations.Stations(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Str("provider", h.stations.Name()).Msg("bike-share stations unavailable")
		response.ServiceUnavailable(w, r, "bike-share stations are temporarily unavailable")
		return
	}

	items := make([]models.Station, 0, len(stations))
	if point != nil {
		for _, sd := range bikeshare.ByDistance(stations, *point, limit) {
			item := models.NewStation(sd.Station)
			d := sd.DistanceMeters
			item.DistanceMeters = &d
			items = append(items, item)
		}
	} else {
		if limit > 0 && len(stations) > limit {
			stations = stations[:limit]
		}
		for _, s := range stations {
			items = append(items, models.NewStation(s))
		}
	}

	response.JSON(w, r, http.StatusOK, models.StationsResponse{
		Provider: h.stations.Name(),
		Count:    len(items),
		Items:    items,
	})
}
