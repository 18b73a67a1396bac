// Package planner composes multimodal itineraries from single-mode quotes
// and ranks them by the rider's priority.
package planner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/movilityai/movility/internal/weather"
	"github.com/movilityai/movility/pkg/geo"
)

// Planner errors.
var (
	ErrInvalidRequest = errors.New("invalid plan request")
	ErrNoStops        = errors.New("nearest stops unavailable")

	// ErrTransitDisabled is the fallback reason when the metro is switched off.
	ErrTransitDisabled = errors.New("transit mode disabled")
)

// Mode is the travel mode of a leg.
type Mode string

const (
	ModeFoot    Mode = "foot"
	ModeBike    Mode = "bike"
	ModeCar     Mode = "car"
	ModeTransit Mode = "transit"
)

// Priority selects the scoring formula.
type Priority string

const (
	PriorityTime           Priority = "time"
	PriorityCost           Priority = "cost"
	PrioritySustainability Priority = "sustainability"
	PriorityBalanced       Priority = "balanced"
)

// ParsePriority maps user input to a Priority. Empty means time; anything
// unrecognized means balanced.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityTime
	case PriorityTime, PriorityCost, PrioritySustainability, PriorityBalanced:
		return p
	default:
		return PriorityBalanced
	}
}

// FareType selects the metro tariff.
type FareType string

const (
	FareRegular FareType = "regular"
	FareStudent FareType = "student"
	FareSenior  FareType = "senior"
)

// DefaultFares are the integrated metro fares in COP.
var DefaultFares = map[FareType]int64{
	FareRegular: 3150,
	FareStudent: 1700,
	FareSenior:  1575,
}

// DefaultMaxBudget applies when the request sets no budget.
const DefaultMaxBudget int64 = 10000

// Preferences are the rider's planning options.
type Preferences struct {
	Priority  Priority
	AllowBike *bool
	MaxBudget *int64
	FareType  FareType
}

// BikeAllowed reports AllowBike, defaulting to true.
func (p Preferences) BikeAllowed() bool {
	return p.AllowBike == nil || *p.AllowBike
}

// Budget reports MaxBudget, defaulting to DefaultMaxBudget.
func (p Preferences) Budget() int64 {
	if p.MaxBudget == nil {
		return DefaultMaxBudget
	}
	return *p.MaxBudget
}

// Leg is one mode-homogeneous segment.
type Leg struct {
	Mode            Mode
	Summary         string
	DurationMinutes float64
	DistanceKm      float64
	Geometry        string
	Metadata        map[string]string
}

// Itinerary is an ordered sequence of legs with aggregate metrics.
type Itinerary struct {
	Name                 string
	Legs                 []Leg
	TotalDurationMinutes float64
	TotalDistanceKm      float64
	TotalCost            int64
	CO2Kg                float64
	CO2SavedKg           float64
	Score                float64
	Steps                []string
}

// NewItinerary derives totals, emissions and steps from legs.
func NewItinerary(name string, legs []Leg, cost int64) Itinerary {
	it := Itinerary{
		Name:      name,
		Legs:      legs,
		TotalCost: cost,
		Steps:     make([]string, 0, len(legs)),
	}
	for _, l := range legs {
		it.TotalDurationMinutes += l.DurationMinutes
		it.TotalDistanceKm += l.DistanceKm
		it.Steps = append(it.Steps, describeLeg(l))
	}
	it.CO2Kg = Emissions(legs)
	return it
}

// Modes returns the distinct leg modes in order of first use.
func (it *Itinerary) Modes() []Mode {
	var modes []Mode
	seen := map[Mode]bool{}
	for _, l := range it.Legs {
		if !seen[l.Mode] {
			seen[l.Mode] = true
			modes = append(modes, l.Mode)
		}
	}
	return modes
}

func describeLeg(l Leg) string {
	return fmt.Sprintf("%s (%s, %.0f min, %.1f km)", l.Summary, l.Mode, l.DurationMinutes, l.DistanceKm)
}

// Request is a multimodal planning request.
type Request struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	Preferences Preferences

	// DepartureTime is "now", RFC 3339, or a local "2006-01-02T15:04:05"
	// timestamp. Unparseable values mean now.
	DepartureTime string
}

// Validate checks both endpoints.
func (r Request) Validate() error {
	if err := r.Origin.Validate(); err != nil {
		return fmt.Errorf("%w: origin: %w", ErrInvalidRequest, err)
	}
	if err := r.Destination.Validate(); err != nil {
		return fmt.Errorf("%w: destination: %w", ErrInvalidRequest, err)
	}
	return nil
}

// WeatherSummary is the advisory weather block of a result. When
// Available is false, Error explains why.
type WeatherSummary struct {
	Available bool
	Error     string
	Report    *weather.Report
}

// Result is the assembled planning response.
type Result struct {
	Recommended       *Itinerary
	Alternatives      []Itinerary
	Weather           WeatherSummary
	Alerts            []string
	TrafficMultiplier float64

	// DrivingBaseline is the car trip with the traffic multiplier applied.
	// It is never ranked; CO2SavedKg is measured against it.
	DrivingBaseline *Itinerary

	DepartureTime time.Time
	Timestamp     time.Time
}
