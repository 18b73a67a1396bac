// Package routing defines the point-to-point routing provider boundary used
// for foot, bike and car legs.
package routing

import (
	"context"
	"errors"

	"github.com/movilityai/movility/pkg/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates a transport failure or non-2xx response from the engine.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates the engine answered but found no route.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrUnsupportedProfile indicates the profile has no configured engine path.
	ErrUnsupportedProfile = errors.New("unsupported routing profile")
	// ErrInvalidCoordinates indicates a waypoint is out of range or too few waypoints were given.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrRateLimitExceeded indicates the engine rejected the call with 429.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Provider computes a single route for one travel profile.
type Provider interface {
	Route(ctx context.Context, req Request) (*Response, error)
	Name() string
	SupportedProfiles() []Profile
}

// Profile is a routing-engine travel mode.
type Profile string

const (
	ProfileCar  Profile = "car"
	ProfileBike Profile = "bike"
	ProfileFoot Profile = "foot"
)

// ParseProfile converts s into a Profile. Unknown values fail with
// ErrUnsupportedProfile rather than falling back to a default.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(s); p {
	case ProfileCar, ProfileBike, ProfileFoot:
		return p, nil
	default:
		return "", &Error{
			Code:    "UNSUPPORTED_PROFILE",
			Message: "unsupported routing profile " + s,
			Err:     ErrUnsupportedProfile,
		}
	}
}

// Request is an ordered sequence of waypoints to route through.
type Request struct {
	Waypoints []geo.Coordinate
	Profile   Profile
}

// Response is the normalized route: duration, distance and encoded geometry.
type Response struct {
	DurationSeconds float64
	DistanceMeters  float64
	Geometry        string
	Provider        string
}

// DurationMinutes returns the duration in minutes.
func (r *Response) DurationMinutes() float64 {
	return r.DurationSeconds / 60
}

// DistanceKm returns the distance in kilometers.
func (r *Response) DistanceKm() float64 {
	return r.DistanceMeters / 1000
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the caller may retry the request.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
