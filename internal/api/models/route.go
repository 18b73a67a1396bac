package models

import (
	"github.com/movilityai/movility/internal/planner"
	"github.com/movilityai/movility/internal/weather"
)

// PlanRequest is the body of POST /v1/routes:plan.
type PlanRequest struct {
	Origin      *Point           `json:"origin" validate:"required"`
	Destination *Point           `json:"destination" validate:"required"`
	Preferences *PreferenceInput `json:"preferences,omitempty"`

	// DepartureTime is "now", RFC 3339 or a local "2006-01-02T15:04:05".
	DepartureTime string `json:"departure_time,omitempty" validate:"omitempty,max=40"`
}

// PreferenceInput carries the rider's options. Unknown priorities and fare
// types fall back to balanced and regular.
type PreferenceInput struct {
	Priority  string `json:"priority,omitempty" validate:"omitempty,max=32"`
	AllowBike *bool  `json:"allow_bike,omitempty"`
	MaxBudget *int64 `json:"max_budget,omitempty" validate:"omitempty,gte=0"`
	FareType  string `json:"fare_type,omitempty" validate:"omitempty,max=32"`
}

// ToPlanner converts the body into a planner request.
func (r PlanRequest) ToPlanner() planner.Request {
	req := planner.Request{
		Origin:        r.Origin.Coordinate(),
		Destination:   r.Destination.Coordinate(),
		DepartureTime: r.DepartureTime,
	}
	if p := r.Preferences; p != nil {
		req.Preferences = planner.Preferences{
			Priority:  planner.Priority(p.Priority),
			AllowBike: p.AllowBike,
			MaxBudget: p.MaxBudget,
			FareType:  planner.FareType(p.FareType),
		}
	}
	return req
}

// DirectRequest is the body of POST /v1/routes:direct.
type DirectRequest struct {
	Origin      *Point `json:"origin" validate:"required"`
	Destination *Point `json:"destination" validate:"required"`
}

// PlanResponse is the multimodal plan.
type PlanResponse struct {
	RecommendedRoute  *Itinerary  `json:"recommended_route"`
	AlternativeRoutes []Itinerary `json:"alternative_routes"`
	Weather           WeatherInfo `json:"weather"`
	Alerts            []string    `json:"alerts"`
	TrafficMultiplier float64     `json:"traffic_multiplier"`
	DrivingBaseline   *Itinerary  `json:"driving_baseline,omitempty"`
	DepartureTime     Timestamp   `json:"departure_time"`
	Timestamp         Timestamp   `json:"timestamp"`
}

// DirectResponse is the single itinerary of the direct planner.
type DirectResponse struct {
	Route     Itinerary `json:"route"`
	Timestamp Timestamp `json:"timestamp"`
}

// Itinerary is one ranked trip option.
type Itinerary struct {
	Name                 string   `json:"name"`
	Legs                 []Leg    `json:"legs"`
	TotalDurationMinutes float64  `json:"total_duration_min"`
	TotalDistanceKm      float64  `json:"total_distance_km"`
	TotalCost            int64    `json:"total_cost"`
	CO2Kg                float64  `json:"co2_kg"`
	CO2SavedKg           float64  `json:"co2_saved_kg"`
	Score                float64  `json:"score"`
	Steps                []string `json:"steps"`
}

// Leg is one single-mode segment.
type Leg struct {
	Mode            string            `json:"mode"`
	Summary         string            `json:"summary"`
	DurationMinutes float64           `json:"duration_min"`
	DistanceKm      float64           `json:"distance_km"`
	Geometry        string            `json:"geometry,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// WeatherInfo is the advisory weather block. When Available is false the
// report fields are omitted and Error says why.
type WeatherInfo struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
	*WeatherReport
}

// WeatherReport is the weather at the origin.
type WeatherReport struct {
	Condition                string    `json:"condition"`
	Description              string    `json:"description,omitempty"`
	TemperatureC             float64   `json:"temperature_c"`
	Humidity                 float64   `json:"humidity"`
	WindSpeedMS              float64   `json:"wind_speed_ms"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	ProbabilitySource        string    `json:"probability_source"`
	Provider                 string    `json:"provider"`
	ObservedAt               Timestamp `json:"observed_at"`
}

// NewPlanResponse maps a planner result.
func NewPlanResponse(res *planner.Result) PlanResponse {
	out := PlanResponse{
		AlternativeRoutes: make([]Itinerary, 0, len(res.Alternatives)),
		Weather:           newWeatherInfo(res.Weather),
		Alerts:            res.Alerts,
		TrafficMultiplier: res.TrafficMultiplier,
		DepartureTime:     Timestamp(res.DepartureTime),
		Timestamp:         Timestamp(res.Timestamp),
	}
	if out.Alerts == nil {
		out.Alerts = []string{}
	}
	if res.Recommended != nil {
		it := NewItinerary(*res.Recommended)
		out.RecommendedRoute = &it
	}
	for _, alt := range res.Alternatives {
		out.AlternativeRoutes = append(out.AlternativeRoutes, NewItinerary(alt))
	}
	if res.DrivingBaseline != nil {
		it := NewItinerary(*res.DrivingBaseline)
		out.DrivingBaseline = &it
	}
	return out
}

// NewItinerary maps a planner itinerary.
func NewItinerary(it planner.Itinerary) Itinerary {
	out := Itinerary{
		Name:                 it.Name,
		Legs:                 make([]Leg, 0, len(it.Legs)),
		TotalDurationMinutes: it.TotalDurationMinutes,
		TotalDistanceKm:      it.TotalDistanceKm,
		TotalCost:            it.TotalCost,
		CO2Kg:                it.CO2Kg,
		CO2SavedKg:           it.CO2SavedKg,
		Score:                it.Score,
		Steps:                it.Steps,
	}
	if out.Steps == nil {
		out.Steps = []string{}
	}
	for _, l := range it.Legs {
		out.Legs = append(out.Legs, Leg{
			Mode:            string(l.Mode),
			Summary:         l.Summary,
			DurationMinutes: l.DurationMinutes,
			DistanceKm:      l.DistanceKm,
			Geometry:        l.Geometry,
			Metadata:        l.Metadata,
		})
	}
	return out
}

func newWeatherInfo(w planner.WeatherSummary) WeatherInfo {
	info := WeatherInfo{Available: w.Available, Error: w.Error}
	if w.Report != nil {
		info.WeatherReport = newWeatherReport(w.Report)
	}
	return info
}

func newWeatherReport(r *weather.Report) *WeatherReport {
	return &WeatherReport{
		Condition:                string(r.Condition),
		Description:              r.Description,
		TemperatureC:             r.TemperatureC,
		Humidity:                 r.Humidity,
		WindSpeedMS:              r.WindSpeedMS,
		PrecipitationProbability: r.PrecipitationProbability,
		ProbabilitySource:        r.ProbabilitySource,
		Provider:                 r.Provider,
		ObservedAt:               Timestamp(r.ObservedAt),
	}
}
