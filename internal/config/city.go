package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // timezone database for minimal images

	"gopkg.in/yaml.v3"

	"github.com/movilityai/movility/internal/planner"
	"github.com/movilityai/movility/internal/stops"
)

// CityProfile describes one city: where its stations are and what its
// metro costs.
type CityProfile struct {
	Name     string  `yaml:"name" validate:"required"`
	Timezone string  `yaml:"timezone" validate:"required"`
	Area     Area    `yaml:"area"`
	Fares    Fares   `yaml:"fares"`
	Transit  Transit `yaml:"transit"`
}

// Area holds the station lookup parameters.
type Area struct {
	City           string   `yaml:"city" validate:"required"`
	NamePattern    string   `yaml:"name_pattern" validate:"required"`
	AdminLevels    string   `yaml:"admin_levels" validate:"required"`
	PlaceQuery     string   `yaml:"place_query" validate:"required"`
	Filters        []string `yaml:"filters" validate:"min=1,dive,required"`
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"gte=1,lte=600"`
}

// Fares are metro tariffs in COP.
type Fares struct {
	Regular int64 `yaml:"regular" validate:"gt=0"`
	Student int64 `yaml:"student" validate:"gt=0"`
	Senior  int64 `yaml:"senior" validate:"gt=0"`
}

// Transit holds planning heuristics.
type Transit struct {
	LegMinutes       float64 `yaml:"leg_minutes" validate:"gt=0"`
	WalkingSpeedKmh  float64 `yaml:"walking_speed_kmh" validate:"gt=0"`
	MaxServiceAlerts int     `yaml:"max_service_alerts" validate:"gte=0"`
}

// DefaultCityProfile returns the Medellín profile.
func DefaultCityProfile() CityProfile {
	area := stops.DefaultArea()
	return CityProfile{
		Name:     "Medellín",
		Timezone: "America/Bogota",
		Area: Area{
			City:           area.City,
			NamePattern:    area.NamePattern,
			AdminLevels:    area.AdminLevels,
			PlaceQuery:     area.PlaceQuery,
			Filters:        area.Filters,
			TimeoutSeconds: area.TimeoutSeconds,
		},
		Fares: Fares{
			Regular: planner.DefaultFares[planner.FareRegular],
			Student: planner.DefaultFares[planner.FareStudent],
			Senior:  planner.DefaultFares[planner.FareSenior],
		},
		Transit: Transit{
			LegMinutes:       planner.DefaultTransitLegMinutes,
			WalkingSpeedKmh:  planner.DefaultWalkingSpeedKmh,
			MaxServiceAlerts: planner.DefaultMaxServiceAlerts,
		},
	}
}

// LoadCityProfile reads a YAML profile. Fields the file omits keep their
// Medellín defaults. An empty path returns the default profile.
func LoadCityProfile(path string) (CityProfile, error) {
	profile := DefaultCityProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return CityProfile{}, fmt.Errorf("reading city profile: %w", err)
	}
	return ParseCityProfile(data, profile)
}

// ParseCityProfile decodes YAML over base and validates the result.
func ParseCityProfile(data []byte, base CityProfile) (CityProfile, error) {
	if err := yaml.Unmarshal(data, &base); err != nil {
		return CityProfile{}, fmt.Errorf("decoding city profile: %w", err)
	}
	if err := validate.Struct(base); err != nil {
		return CityProfile{}, fmt.Errorf("invalid city profile: %w", err)
	}
	if _, err := time.LoadLocation(base.Timezone); err != nil {
		return CityProfile{}, fmt.Errorf("invalid city profile timezone: %w", err)
	}
	return base, nil
}

// StopsArea converts the profile into the stop loader's area.
func (p CityProfile) StopsArea() stops.Area {
	return stops.Area{
		City:           p.Area.City,
		NamePattern:    p.Area.NamePattern,
		AdminLevels:    p.Area.AdminLevels,
		PlaceQuery:     p.Area.PlaceQuery,
		Filters:        append([]string(nil), p.Area.Filters...),
		TimeoutSeconds: p.Area.TimeoutSeconds,
	}
}

// PlannerFares returns the fare table keyed by fare type.
func (p CityProfile) PlannerFares() map[planner.FareType]int64 {
	return map[planner.FareType]int64{
		planner.FareRegular: p.Fares.Regular,
		planner.FareStudent: p.Fares.Student,
		planner.FareSenior:  p.Fares.Senior,
	}
}

// Location resolves the timezone, preferring override when non-empty.
func (p CityProfile) Location(override string) (*time.Location, error) {
	name := p.Timezone
	if override != "" {
		name = override
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}
