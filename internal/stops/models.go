// Package stops builds the in-memory transit stop index from OpenStreetMap
// and answers nearest-stop queries.
package stops

import (
	"errors"

	"github.com/movilityai/movility/pkg/geo"
)

var (
	// ErrEmptyIndex is returned by lookups on an index with no stops.
	ErrEmptyIndex = errors.New("stop index is empty")
	// ErrNoStopsResolved is returned when every loading strategy yields zero stops.
	ErrNoStopsResolved = errors.New("no transit stops resolved by any strategy")
)

// Stop is one transit station.
type Stop struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
}

// Nearest is a stop together with its distance from the query point.
type Nearest struct {
	Stop           Stop
	DistanceMeters float64
}
