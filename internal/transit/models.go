// Package transit provides public-transport service alerts.
package transit

import (
	"errors"
	"time"
)

// Transit errors.
var (
	ErrProviderUnavailable = errors.New("transit alerts provider unavailable")
	ErrNotConfigured       = errors.New("transit alerts feed not configured")
)

// Period is an active window. A zero Start or End is open-ended.
type Period struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Contains reports whether t falls inside the period, inclusive on both ends.
func (p Period) Contains(t time.Time) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

// Alert is a service alert for the transit network.
type Alert struct {
	ID          string `json:"id"`
	Header      string `json:"header"`
	Description string `json:"description,omitempty"`

	// Cause and Effect use the GTFS-Realtime enum names, e.g. MAINTENANCE
	// and REDUCED_SERVICE.
	Cause  string `json:"cause,omitempty"`
	Effect string `json:"effect,omitempty"`

	ActivePeriods []Period `json:"active_periods,omitempty"`
	RouteIDs      []string `json:"route_ids,omitempty"`
	StopIDs       []string `json:"stop_ids,omitempty"`
}

// ActiveAt reports whether the alert applies at t. An alert without
// periods is always active.
func (a *Alert) ActiveAt(t time.Time) bool {
	if len(a.ActivePeriods) == 0 {
		return true
	}
	for _, p := range a.ActivePeriods {
		if p.Contains(t) {
			return true
		}
	}
	return false
}

// AffectsStop returns true if the alert names the given stop.
func (a *Alert) AffectsStop(stopID string) bool {
	for _, s := range a.StopIDs {
		if s == stopID {
			return true
		}
	}
	return false
}

// AffectsRoute returns true if the alert names the given route.
func (a *Alert) AffectsRoute(routeID string) bool {
	for _, r := range a.RouteIDs {
		if r == routeID {
			return true
		}
	}
	return false
}
