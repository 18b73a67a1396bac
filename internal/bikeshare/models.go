// Package bikeshare models public bike-share stations.
package bikeshare

import (
	"context"
	"errors"
	"sort"

	"github.com/movilityai/movility/pkg/geo"
)

// ErrNoStations is returned by Nearest when the station list is empty.
var ErrNoStations = errors.New("no bike-share stations")

// Station is one bike-share dock.
type Station struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Location     geo.Coordinate `json:"location"`
	Municipality string         `json:"municipality,omitempty"`
	Type         string         `json:"type,omitempty"`
}

// Provider lists stations.
type Provider interface {
	Stations(ctx context.Context) ([]Station, error)
	Name() string
}

// StationDistance pairs a station with its distance to a query point.
type StationDistance struct {
	Station
	DistanceMeters float64 `json:"distance_m"`
}

// Nearest returns the station closest to point. Ties keep the first station.
func Nearest(stations []Station, point geo.Coordinate) (StationDistance, error) {
	if len(stations) == 0 {
		return StationDistance{}, ErrNoStations
	}
	best := StationDistance{Station: stations[0], DistanceMeters: geo.Distance(point, stations[0].Location)}
	for _, s := range stations[1:] {
		if d := geo.Distance(point, s.Location); d < best.DistanceMeters {
			best = StationDistance{Station: s, DistanceMeters: d}
		}
	}
	return best, nil
}

// ByDistance returns stations sorted by distance to point, closest first,
// truncated to limit when limit > 0.
func ByDistance(stations []Station, point geo.Coordinate, limit int) []StationDistance {
	out := make([]StationDistance, len(stations))
	for i, s := range stations {
		out[i] = StationDistance{Station: s, DistanceMeters: geo.Distance(point, s.Location)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
