package models

import (
	"github.com/movilityai/movility/internal/bikeshare"
	"github.com/movilityai/movility/internal/stops"
)

// Stop is one transit station.
type Stop struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location Point  `json:"location"`
}

// NewStop maps a stop record.
func NewStop(s stops.Stop) Stop {
	return Stop{ID: s.ID, Name: s.Name, Location: PointFrom(s.Location)}
}

// NearestStopResponse is the body of GET /v1/stops/nearest.
type NearestStopResponse struct {
	Stop           Stop    `json:"stop"`
	DistanceMeters float64 `json:"distance_m"`
}

// StopsResponse is the body of GET /v1/stops.
type StopsResponse struct {
	Source  string    `json:"source"`
	BuiltAt Timestamp `json:"built_at"`
	Count   int       `json:"count"`
	Items   []Stop    `json:"items"`
}

// Station is one bike-share dock. DistanceMeters is set when the request
// gave a reference point.
type Station struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Location       Point    `json:"location"`
	Municipality   string   `json:"municipality,omitempty"`
	Type           string   `json:"type,omitempty"`
	DistanceMeters *float64 `json:"distance_m,omitempty"`
}

// NewStation maps a bike-share station.
func NewStation(s bikeshare.Station) Station {
	return Station{
		ID:           s.ID,
		Name:         s.Name,
		Location:     PointFrom(s.Location),
		Municipality: s.Municipality,
		Type:         s.Type,
	}
}

// StationsResponse is the body of GET /v1/bikeshare/stations.
type StationsResponse struct {
	Provider string    `json:"provider"`
	Count    int       `json:"count"`
	Items    []Station `json:"items"`
}
