package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movilityai/movility/internal/api/handler"
	"github.com/movilityai/movility/internal/api/models"
	"github.com/movilityai/movility/internal/bikeshare"
	"github.com/movilityai/movility/pkg/geo"
)

type mockStations struct {
	stations []bikeshare.Station
	err      error
}

func (m *mockStations) Stations(_ context.Context) ([]bikeshare.Station, error) {
	return m.stations, m.err
}

func (m *mockStations) Name() string { return "encicla" }

func enciclaStations() *mockStations {
	return &mockStations{stations: []bikeshare.Station{
		{ID: "25", Name: "Parque Berrío", Location: geo.Coordinate{Lat: 6.2500, Lon: -75.5680}},
		{ID: "41", Name: "Universidad EAFIT", Location: geo.Coordinate{Lat: 6.2000, Lon: -75.5780}, Municipality: "Medellín"},
		{ID: "7", Name: "Exposiciones", Location: geo.Coordinate{Lat: 6.2290, Lon: -75.5720}},
	}}
}

func TestBikeShareHandler_Stations(t *testing.T) {
	h := handler.NewBikeShareHandler(enciclaStations(), zerolog.Nop())

	rec := get(h.Stations, "/v1/bikeshare/stations")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.StationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "encicla", resp.Provider)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "25", resp.Items[0].ID)
	assert.Nil(t, resp.Items[0].DistanceMeters)
	assert.Equal(t, "Medellín", resp.Items[1].Municipality)
}

func TestBikeShareHandler_Stations_SortedByDistance(t *testing.T) {
	h := handler.NewBikeShareHandler(enciclaStations(), zerolog.Nop())

	rec := get(h.Stations, "/v1/bikeshare/stations?lat=6.2010&lon=-75.5775&limit=2")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.StationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "41", resp.Items[0].ID)
	assert.Equal(t, "7", resp.Items[1].ID)
	require.NotNil(t, resp.Items[0].DistanceMeters)
	require.NotNil(t, resp.Items[1].DistanceMeters)
	assert.Less(t, *resp.Items[0].DistanceMeters, *resp.Items[1].DistanceMeters)
}

func TestBikeShareHandler_Stations_LimitWithoutPoint(t *testing.T) {
	rec := get(handler.NewBikeShareHandler(enciclaStations(), zerolog.Nop()).Stations, "/v1/bikeshare/stations?limit=1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestBikeShareHandler_Stations_InvalidQuery(t *testing.T) {
	h := handler.NewBikeShareHandler(enciclaStations(), zerolog.Nop())

	for _, target := range []string{
		"/v1/bikeshare/stations?lat=6.2",
		"/v1/bikeshare/stations?lat=6.2&lon=x",
		"/v1/bikeshare/stations?limit=0",
		"/v1/bikeshare/stations?limit=abc",
		"/v1/bikeshare/stations?limit=501",
	} {
		assert.Equal(t, http.StatusBadRequest, get(h.Stations, target).Code, target)
	}
}

func TestBikeShareHandler_Stations_Unavailable(t *testing.T) {
	failing := handler.NewBikeShareHandler(&mockStations{err: errors.New("feed down")}, zerolog.Nop())
	assert.Equal(t, http.StatusServiceUnavailable, get(failing.Stations, "/v1/bikeshare/stations").Code)

	unconfigured := handler.NewBikeShareHandler(nil, zerolog.Nop())
	assert.Equal(t, http.StatusServiceUnavailable, get(unconfigured.Stations, "/v1/bikeshare/stations").Code)
}
