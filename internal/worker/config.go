// Package worker keeps provider caches warm in the background.
package worker

import (
	"math"
	"time"

	"github.com/movilityai/movility/internal/stops"
	"github.com/movilityai/movility/pkg/geo"
)

// RefreshConfig holds configuration for the cache refresh job.
type RefreshConfig struct {
	// Points are where weather is prefetched, typically the metro stations.
	Points []geo.Coordinate

	// Interval between runs. Zero disables the periodic loop.
	Interval time.Duration

	// Concurrency is the number of concurrent weather lookups.
	// Default: 3
	Concurrency int

	// Timeout bounds each refresh operation.
	// Default: 30 seconds
	Timeout time.Duration

	RefreshWeather  bool
	RefreshStations bool
	RefreshAlerts   bool
}

// DefaultRefreshConfig returns the default refresh configuration for points.
func DefaultRefreshConfig(points []geo.Coordinate) RefreshConfig {
	return RefreshConfig{
		Points:          points,
		Interval:        10 * time.Minute,
		Concurrency:     3,
		Timeout:         30 * time.Second,
		RefreshWeather:  true,
		RefreshStations: true,
		RefreshAlerts:   true,
	}
}

// StationPoints returns one point per grid cell of cellDegrees covering the
// given stops, in stop order, capped at maxPoints when maxPoints > 0.
// Lookups inside one cell share a weather cache entry, so one call per
// cell is enough.
func StationPoints(list []stops.Stop, cellDegrees float64, maxPoints int) []geo.Coordinate {
	if cellDegrees <= 0 {
		cellDegrees = 0.01
	}
	type cell struct{ lat, lon int64 }

	seen := make(map[cell]bool, len(list))
	var points []geo.Coordinate
	for _, s := range list {
		c := cell{
			lat: int64(math.Floor(s.Location.Lat / cellDegrees)),
			lon: int64(math.Floor(s.Location.Lon / cellDegrees)),
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		points = append(points, s.Location)
		if maxPoints > 0 && len(points) == maxPoints {
			break
		}
	}
	return points
}
