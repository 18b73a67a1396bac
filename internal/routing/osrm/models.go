package osrm

// osrmResponse is the /route/v1 response body.
type osrmResponse struct {
	Code      string      `json:"code"`
	Message   string      `json:"message,omitempty"`
	Routes    []osrmRoute `json:"routes"`
	Waypoints []waypoint  `json:"waypoints,omitempty"`
}

type osrmRoute struct {
	Duration float64   `json:"duration"`
	Distance float64   `json:"distance"`
	Geometry string    `json:"geometry"`
	Legs     []osrmLeg `json:"legs,omitempty"`
}

type osrmLeg struct {
	Duration float64 `json:"duration"`
	Distance float64 `json:"distance"`
	Summary  string  `json:"summary"`
}

type waypoint struct {
	Name     string    `json:"name"`
	Location []float64 `json:"location"`
}

// OSRM response codes that mean "answered, but no usable route".
const (
	codeOK      = "Ok"
	codeNoRoute = "NoRoute"
	codeNoMatch = "NoSegment"
)
