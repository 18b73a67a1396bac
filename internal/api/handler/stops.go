package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/movilityai/movility/internal/api/models"
	"github.com/movilityai/movility/internal/api/response"
	"github.com/movilityai/movility/internal/stops"
	"github.com/movilityai/movility/pkg/geo"
)

// StopIndex is the read side of the stop index.
type StopIndex interface {
	Nearest(point geo.Coordinate) (stops.Nearest, error)
	Stops() []stops.Stop
	Len() int
	Source() string
	BuiltAt() time.Time
}

// StopsHandler serves stop lookups.
type StopsHandler struct {
	index StopIndex
}

// NewStopsHandler creates a StopsHandler.
func NewStopsHandler(index StopIndex) *StopsHandler {
	return &StopsHandler{index: index}
}

// Nearest handles GET /v1/stops/nearest?lat=&lon=.
func (h *StopsHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	point, fields := queryPoint(r, true)
	if len(fields) > 0 {
		response.BadRequest(w, r, "lat and lon query parameters are required", fields)
		return
	}

	nearest, err := h.index.Nearest(*point)
	switch {
	case errors.Is(err, stops.ErrEmptyIndex):
		response.ServiceUnavailable(w, r, "stop index is not loaded")
		return
	case err != nil:
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NearestStopResponse{
		Stop:           models.NewStop(nearest.Stop),
		DistanceMeters: nearest.DistanceMeters,
	})
}

// List handles GET /v1/stops.
func (h *StopsHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.index.Stops()
	items := make([]models.Stop, 0, len(all))
	for _, s := range all {
		items = append(items, models.NewStop(s))
	}
	response.JSON(w, r, http.StatusOK, models.StopsResponse{
		Source:  h.index.Source(),
		BuiltAt: models.Timestamp(h.index.BuiltAt()),
		Count:   len(items),
		Items:   items,
	})
}

// queryPoint parses lat and lon from the query string. With required unset,
// a request carrying neither returns a nil point and no errors.
func queryPoint(r *http.Request, required bool) (*geo.Coordinate, []models.FieldError) {
	q := r.URL.Query()
	rawLat, rawLon := q.Get("lat"), q.Get("lon")
	if !required && rawLat == "" && rawLon == "" {
		return nil, nil
	}

	var fields []models.FieldError
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || lat < -90 || lat > 90 {
		fields = append(fields, models.FieldError{Field: "lat", Message: "must be a number between -90 and 90", Code: "range"})
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil || lon < -180 || lon > 180 {
		fields = append(fields, models.FieldError{Field: "lon", Message: "must be a number between -180 and 180", Code: "range"})
	}
	if len(fields) > 0 {
		return nil, fields
	}
	return &geo.Coordinate{Lat: lat, Lon: lon}, nil
}
