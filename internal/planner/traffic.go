package planner

import (
	"strings"
	"time"
)

const (
	// PeakMultiplier scales driving time inside peak windows.
	PeakMultiplier = 1.5

	localLayout = "2006-01-02T15:04:05"
)

// peakWindows are inclusive hour ranges in local time.
var peakWindows = [][2]int{{7, 9}, {17, 19}}

// TrafficMultiplier returns the driving-time multiplier for t's hour.
func TrafficMultiplier(t time.Time) float64 {
	h := t.Hour()
	for _, w := range peakWindows {
		if h >= w[0] && h <= w[1] {
			return PeakMultiplier
		}
	}
	return 1.0
}

// ParseDeparture resolves a departure string in loc. "now", empty and
// unparseable values resolve to now.
func ParseDeparture(s string, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return now.In(loc)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc)
	}
	if t, err := time.ParseInLocation(localLayout, s, loc); err == nil {
		return t
	}
	return now.In(loc)
}
