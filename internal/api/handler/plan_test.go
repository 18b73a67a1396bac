package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movilityai/movility/internal/api/handler"
	"github.com/movilityai/movility/internal/api/models"
	"github.com/movilityai/movility/internal/planner"
	"github.com/movilityai/movility/internal/routing"
	"github.com/movilityai/movility/pkg/geo"
)

type mockPlanner struct {
	result    *planner.Result
	direct    *planner.Itinerary
	err       error
	gotReq    planner.Request
	gotOrigin geo.Coordinate
}

func (m *mockPlanner) Plan(_ context.Context, req planner.Request) (*planner.Result, error) {
	m.gotReq = req
	return m.result, m.err
}

func (m *mockPlanner) PlanDirect(_ context.Context, origin, _ geo.Coordinate) (*planner.Itinerary, error) {
	m.gotOrigin = origin
	return m.direct, m.err
}

const planBody = `{
	"origin": {"lat": 6.2442, "lon": -75.5812},
	"destination": {"lat": 6.2308, "lon": -75.5906},
	"preferences": {"priority": "cost", "allow_bike": false, "max_budget": 5000, "fare_type": "student"},
	"departure_time": "2024-05-06T08:00:00"
}`

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/routes:plan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func metroItinerary() planner.Itinerary {
	return planner.NewItinerary(planner.NameTransit, []planner.Leg{
		{Mode: planner.ModeFoot, Summary: "Walk to Exposiciones", DurationMinutes: 6, DistanceKm: 0.5},
		{Mode: planner.ModeTransit, Summary: "Metro from Exposiciones to Industriales", DurationMinutes: 18, DistanceKm: 2.1},
	}, 1700)
}

func TestPlanHandler_Plan(t *testing.T) {
	metro := metroItinerary()
	departure := time.Date(2024, 5, 6, 8, 0, 0, 0, time.FixedZone("COT", -5*3600))
	mock := &mockPlanner{result: &planner.Result{
		Recommended:       &metro,
		Alternatives:      []planner.Itinerary{},
		Weather:           planner.WeatherSummary{Available: false, Error: "weather provider not configured"},
		Alerts:            []string{planner.AlertPeakTraffic},
		TrafficMultiplier: 1.5,
		DepartureTime:     departure,
		Timestamp:         departure,
	}}
	h := handler.NewPlanHandler(mock, zerolog.Nop())

	rec := postJSON(h.Plan, planBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, geo.Coordinate{Lat: 6.2442, Lon: -75.5812}, mock.gotReq.Origin)
	assert.Equal(t, planner.Priority("cost"), mock.gotReq.Preferences.Priority)
	assert.Equal(t, planner.FareType("student"), mock.gotReq.Preferences.FareType)
	require.NotNil(t, mock.gotReq.Preferences.AllowBike)
	assert.False(t, *mock.gotReq.Preferences.AllowBike)
	require.NotNil(t, mock.gotReq.Preferences.MaxBudget)
	assert.Equal(t, int64(5000), *mock.gotReq.Preferences.MaxBudget)
	assert.Equal(t, "2024-05-06T08:00:00", mock.gotReq.DepartureTime)

	var resp models.PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.RecommendedRoute)
	assert.Equal(t, planner.NameTransit, resp.RecommendedRoute.Name)
	assert.Equal(t, int64(1700), resp.RecommendedRoute.TotalCost)
	assert.Len(t, resp.RecommendedRoute.Legs, 2)
	assert.Empty(t, resp.AlternativeRoutes)
	assert.False(t, resp.Weather.Available)
	assert.Equal(t, "weather provider not configured", resp.Weather.Error)
	assert.Equal(t, []string{planner.AlertPeakTraffic}, resp.Alerts)
	assert.InDelta(t, 1.5, resp.TrafficMultiplier, 1e-9)
	assert.Contains(t, rec.Body.String(), `"departure_time":"2024-05-06T08:00:00-05:00"`)
}

func TestPlanHandler_Plan_NoRouteIsNullRecommendation(t *testing.T) {
	mock := &mockPlanner{result: &planner.Result{Alternatives: []planner.Itinerary{}}}
	h := handler.NewPlanHandler(mock, zerolog.Nop())

	rec := postJSON(h.Plan, planBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recommended_route":null`)
	assert.Contains(t, rec.Body.String(), `"alternative_routes":[]`)
	assert.Contains(t, rec.Body.String(), `"alerts":[]`)
}

func TestPlanHandler_Plan_InvalidBodies(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"empty", "", nil},
		{"malformed", `{"origin":`, nil},
		{"missing destination", `{"origin":{"lat":6.2,"lon":-75.5}}`, []string{"destination"}},
		{"latitude out of range", `{"origin":{"lat":91,"lon":-75.5},"destination":{"lat":6.2,"lon":-75.5}}`, []string{"origin.lat"}},
		{"longitude out of range", `{"origin":{"lat":6.2,"lon":-75.5},"destination":{"lat":6.2,"lon":-181}}`, []string{"destination.lon"}},
		{"negative budget", `{"origin":{"lat":6.2,"lon":-75.5},"destination":{"lat":6.2,"lon":-75.5},"preferences":{"max_budget":-1}}`, []string{"preferences.max_budget"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPlanner{}
			rec := postJSON(handler.NewPlanHandler(mock, zerolog.Nop()).Plan, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.Equal(t, "/v1/routes:plan", problem.Instance)

			var fields []string
			for _, fe := range problem.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestPlanHandler_Plan_ZeroCoordinatesAreValid(t *testing.T) {
	mock := &mockPlanner{result: &planner.Result{}}
	rec := postJSON(handler.NewPlanHandler(mock, zerolog.Nop()).Plan,
		`{"origin":{"lat":0,"lon":0},"destination":{"lat":0.01,"lon":0.01}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, geo.Coordinate{}, mock.gotReq.Origin)
}

func TestPlanHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		ptype  string
	}{
		{"invalid request", planner.ErrInvalidRequest, http.StatusBadRequest, models.ProblemTypeValidation},
		{"no route", &routing.Error{Provider: "osrm", Code: "NO_ROUTE", Err: routing.ErrNoRouteFound}, http.StatusUnprocessableEntity, models.ProblemTypeNoRoute},
		{"provider down", &routing.Error{Provider: "osrm", Code: "UNAVAILABLE", Err: routing.ErrProviderUnavailable}, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"upstream rate limit", routing.ErrRateLimitExceeded, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, models.ProblemTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewPlanHandler(&mockPlanner{err: tt.err}, zerolog.Nop())
			rec := postJSON(h.Direct, `{"origin":{"lat":6.2,"lon":-75.5},"destination":{"lat":6.3,"lon":-75.6}}`)

			assert.Equal(t, tt.status, rec.Code)
			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.ptype, problem.Type)
		})
	}
}

func TestPlanHandler_Direct(t *testing.T) {
	metro := metroItinerary()
	mock := &mockPlanner{direct: &metro}
	h := handler.NewPlanHandler(mock, zerolog.Nop())

	rec := postJSON(h.Direct, `{"origin":{"lat":6.2442,"lon":-75.5812},"destination":{"lat":6.2308,"lon":-75.5906}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, geo.Coordinate{Lat: 6.2442, Lon: -75.5812}, mock.gotOrigin)

	var resp models.DirectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, planner.NameTransit, resp.Route.Name)
	assert.Len(t, resp.Route.Steps, 2)
	assert.False(t, resp.Timestamp.Time().IsZero())
}
