// Package weather provides current conditions and precipitation probability
// at a point. Weather is advisory: callers degrade when it is unavailable.
package weather

import (
	"errors"
	"time"

	"github.com/movilityai/movility/pkg/geo"
)

// Weather errors.
var (
	// ErrNotConfigured is returned when the provider has no API credential.
	ErrNotConfigured = errors.New("OPENWEATHER_API_KEY not configured")

	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Condition is the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// IsWet reports whether the condition makes cycling a poor choice.
func (c Condition) IsWet() bool {
	return c == ConditionRain || c == ConditionThunderstorm
}

// Observation is the current weather at a point.
type Observation struct {
	Location    geo.Coordinate
	Temperature float64 // Celsius
	Humidity    float64 // percent
	WindSpeed   float64 // m/s
	Condition   Condition
	Description string
	ObservedAt  time.Time
	FetchedAt   time.Time
}

// Forecast holds forecast slots in time order.
type Forecast struct {
	Location  geo.Coordinate
	Slots     []ForecastSlot
	FetchedAt time.Time
}

// ForecastSlot is one forecast step.
type ForecastSlot struct {
	Time        time.Time
	Temperature float64
	Condition   Condition
	PrecipProb  float64 // 0..1
}

// Probability sources reported on a Report.
const (
	ProbabilityFromForecast  = "forecast"
	ProbabilityFromCondition = "condition"
)

// Report is what the planner consumes: current conditions plus a
// precipitation probability in percent.
type Report struct {
	Condition                Condition
	Description              string
	TemperatureC             float64
	Humidity                 float64
	WindSpeedMS              float64
	PrecipitationProbability float64 // 0..100
	ProbabilitySource        string
	Location                 geo.Coordinate
	ObservedAt               time.Time
	Provider                 string
}

// Error is a structured weather provider failure.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure may succeed on another attempt.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable)
}

// ConditionProbability estimates precipitation probability (percent) from
// the current condition when no forecast is available.
func ConditionProbability(c Condition) float64 {
	switch c {
	case ConditionClear:
		return 5
	case ConditionClouds:
		return 30
	case ConditionRain, ConditionDrizzle, ConditionThunderstorm, ConditionSnow:
		return 85
	default:
		return 20
	}
}
