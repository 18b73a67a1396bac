// Package featureflags provides runtime switches for planner modes.
package featureflags

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagDisableTransitMode removes the metro from plans.
	FlagDisableTransitMode = "disable_transit_mode"

	// FlagDisableBikeMode removes bike and bike-share options from plans.
	FlagDisableBikeMode = "disable_bike_mode"

	// FlagDisableServiceAlerts stops plans from reading the alerts feed.
	FlagDisableServiceAlerts = "disable_service_alerts"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	case int:
		return v != 0
	default:
		return defaultValue
	}
}

// DefaultFlags returns every well-known flag switched off.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagDisableTransitMode: {
			Key:       FlagDisableTransitMode,
			Value:     false,
			UpdatedAt: now,
		},
		FlagDisableBikeMode: {
			Key:       FlagDisableBikeMode,
			Value:     false,
			UpdatedAt: now,
		},
		FlagDisableServiceAlerts: {
			Key:       FlagDisableServiceAlerts,
			Value:     false,
			UpdatedAt: now,
		},
	}
}

// ParseOverrides parses a comma-separated "key=value" list. Values that
// parse as booleans or numbers keep that type; anything else is a string.
// A bare key means true.
func ParseOverrides(s string) ([]*Flag, error) {
	var flags []*Flag
	now := time.Now()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, raw, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("feature flag %q: empty key", part)
		}

		var value any = true
		if found {
			value = parseValue(strings.TrimSpace(raw))
		}
		flags = append(flags, &Flag{Key: key, Value: value, UpdatedAt: now})
	}
	return flags, nil
}

func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
