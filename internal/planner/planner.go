package planner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/movilityai/movility/internal/bikeshare"
	"github.com/movilityai/movility/internal/routing"
	"github.com/movilityai/movility/internal/stops"
	"github.com/movilityai/movility/internal/transit"
	"github.com/movilityai/movility/internal/weather"
	"github.com/movilityai/movility/pkg/geo"
)

// Itinerary names.
const (
	NameTransit     = "Metro"
	NameBikeTransit = "EnCicla + Metro"
	NameWalk        = "Walk"
	NameBike        = "Bike"
	NameDriving     = "Car"
)

const (
	// DefaultTransitLegMinutes is the assumed in-vehicle time between any
	// two stations. There is no live schedule.
	DefaultTransitLegMinutes = 18.0

	// DefaultWalkingSpeedKmh is used for estimated walking legs.
	DefaultWalkingSpeedKmh = 4.8

	// DefaultMaxServiceAlerts caps service alert lines per result.
	DefaultMaxServiceAlerts = 3

	// Blend weights for the bike + transit candidate.
	bikeShare    = 0.3
	transitShare = 0.7

	maxWalkMinutes       = 60.0
	maxRainForBike       = 50.0
	rainAlertThreshold   = 70.0
	trafficAlertMultiple = 1.3
	maxAlternatives      = 2

	tracerName = "github.com/movilityai/movility/internal/planner"
)

// Router computes single-mode routes.
type Router interface {
	Route(ctx context.Context, req routing.Request) (*routing.Response, error)
}

// StopLocator finds the transit stop nearest a point.
type StopLocator interface {
	Nearest(point geo.Coordinate) (stops.Nearest, error)
}

// WeatherSource reports the weather at a point.
type WeatherSource interface {
	Current(ctx context.Context, point geo.Coordinate) (*weather.Report, error)
}

// StationSource lists bike-share stations.
type StationSource interface {
	Stations(ctx context.Context) ([]bikeshare.Station, error)
}

// AlertSource lists active service alerts.
type AlertSource interface {
	ActiveAlerts(ctx context.Context, now time.Time) ([]transit.Alert, error)
}

// ModeSwitches turns whole modes off at runtime.
type ModeSwitches interface {
	TransitModeDisabled(ctx context.Context) bool
	BikeModeDisabled(ctx context.Context) bool
	ServiceAlertsDisabled(ctx context.Context) bool
}

// MetricsRecorder records plan outcomes.
type MetricsRecorder interface {
	RecordPlan(recommended string, candidates int, duration time.Duration)
}

// Config holds the planner's collaborators and tunables. Only Router is
// required; every other source is optional enrichment.
type Config struct {
	Router   Router
	Stops    StopLocator
	Weather  WeatherSource
	Stations StationSource
	Alerts   AlertSource
	Switches ModeSwitches
	Metrics  MetricsRecorder

	// Fares overrides DefaultFares per fare type.
	Fares map[FareType]int64

	TransitLegMinutes float64
	WalkingSpeedKmh   float64
	MaxServiceAlerts  int

	// Location is the city's timezone for peak-hour detection.
	Location *time.Location

	// Now is the clock, for tests.
	Now func() time.Time

	Logger zerolog.Logger
}

// Planner composes and ranks itineraries.
type Planner struct {
	router   Router
	stops    StopLocator
	weather  WeatherSource
	stations StationSource
	alerts   AlertSource
	switches ModeSwitches
	metrics  MetricsRecorder

	fares          map[FareType]int64
	transitMinutes float64
	walkingKmh     float64
	maxAlerts      int
	loc            *time.Location
	now            func() time.Time
	logger         zerolog.Logger
}

// New creates a planner.
func New(cfg Config) *Planner {
	fares := make(map[FareType]int64, len(DefaultFares))
	for k, v := range DefaultFares {
		fares[k] = v
	}
	for k, v := range cfg.Fares {
		fares[k] = v
	}

	p := &Planner{
		router:         cfg.Router,
		stops:          cfg.Stops,
		weather:        cfg.Weather,
		stations:       cfg.Stations,
		alerts:         cfg.Alerts,
		switches:       cfg.Switches,
		metrics:        cfg.Metrics,
		fares:          fares,
		transitMinutes: cfg.TransitLegMinutes,
		walkingKmh:     cfg.WalkingSpeedKmh,
		maxAlerts:      cfg.MaxServiceAlerts,
		loc:            cfg.Location,
		now:            cfg.Now,
		logger:         cfg.Logger.With().Str("component", "planner").Logger(),
	}
	if p.transitMinutes <= 0 {
		p.transitMinutes = DefaultTransitLegMinutes
	}
	if p.walkingKmh <= 0 {
		p.walkingKmh = DefaultWalkingSpeedKmh
	}
	if p.maxAlerts == 0 {
		p.maxAlerts = DefaultMaxServiceAlerts
	}
	if p.loc == nil {
		p.loc = time.UTC
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Fare returns the metro fare for t, falling back to the regular fare.
func (p *Planner) Fare(t FareType) int64 {
	if f, ok := p.fares[t]; ok {
		return f
	}
	return p.fares[FareRegular]
}

// planContext is everything gathered for one request.
type planContext struct {
	origin geo.Coordinate

	report     *weather.Report
	weatherErr error

	foot, bike, car *routing.Response

	metro    *transitQuote
	stations []bikeshare.Station
	alerts   []transit.Alert

	departure  time.Time
	multiplier float64
}

func (pc *planContext) precipitation() float64 {
	if pc.report == nil {
		return 0
	}
	return pc.report.PrecipitationProbability
}

// transitQuote is access walk, fixed in-vehicle leg and egress walk.
type transitQuote struct {
	legs     []Leg
	from, to stops.Stop
}

func (q *transitQuote) durationMinutes() float64 {
	var d float64
	for _, l := range q.legs {
		d += l.DurationMinutes
	}
	return d
}

func (q *transitQuote) distanceKm() float64 {
	var d float64
	for _, l := range q.legs {
		d += l.DistanceKm
	}
	return d
}

// Plan gathers quotes, builds candidates, ranks them and assembles the
// result. Provider failures degrade the result; they never fail the plan.
func (p *Planner) Plan(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "planner.Plan")
	defer span.End()

	begin := time.Now()
	prefs := req.Preferences
	priority := ParsePriority(string(prefs.Priority))
	fare := p.Fare(prefs.FareType)

	pc := p.gather(ctx, req, p.now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := p.candidates(pc, prefs, fare)
	baseline := p.drivingBaseline(pc)
	rank(candidates, priority, baseline)

	result := p.assemble(pc, candidates, baseline)

	span.SetAttributes(
		attribute.String("plan.priority", string(priority)),
		attribute.Int("plan.candidates", len(candidates)),
		attribute.Float64("plan.traffic_multiplier", pc.multiplier),
	)
	if p.metrics != nil {
		name := ""
		if result.Recommended != nil {
			name = result.Recommended.Name
		}
		p.metrics.RecordPlan(name, len(candidates), time.Since(begin))
	}

	p.logger.Debug().
		Str("priority", string(priority)).
		Int("candidates", len(candidates)).
		Float64("traffic_multiplier", pc.multiplier).
		Msg("plan composed")

	return result, nil
}

// gather runs every independent lookup concurrently. None of them returns
// an error to the group; failures are recorded as missing data.
func (p *Planner) gather(ctx context.Context, req Request, now time.Time) *planContext {
	pc := &planContext{
		origin:    req.Origin,
		departure: ParseDeparture(req.DepartureTime, now, p.loc),
	}
	pc.multiplier = TrafficMultiplier(pc.departure)
	noTransit, noBike, noAlerts := p.disabledModes(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pc.report, pc.weatherErr = p.weatherAt(gctx, req.Origin)
		return nil
	})
	g.Go(func() error {
		pc.foot = p.quote(gctx, routing.ProfileFoot, req.Origin, req.Destination)
		return nil
	})
	if !noBike {
		g.Go(func() error {
			pc.bike = p.quote(gctx, routing.ProfileBike, req.Origin, req.Destination)
			return nil
		})
	}
	g.Go(func() error {
		pc.car = p.quote(gctx, routing.ProfileCar, req.Origin, req.Destination)
		return nil
	})
	if !noTransit {
		g.Go(func() error {
			q, err := p.transitQuote(gctx, req.Origin, req.Destination)
			if err != nil {
				p.logger.Warn().Err(err).Msg("transit quote unavailable")
			}
			pc.metro = q
			return nil
		})
	}
	if p.stations != nil && !noBike {
		g.Go(func() error {
			list, err := p.stations.Stations(gctx)
			if err != nil {
				p.logger.Warn().Err(err).Msg("bike-share stations unavailable")
			}
			pc.stations = list
			return nil
		})
	}
	if p.alerts != nil && !noAlerts {
		g.Go(func() error {
			list, err := p.alerts.ActiveAlerts(gctx, pc.departure)
			if err != nil {
				p.logger.Warn().Err(err).Msg("service alerts unavailable")
			}
			pc.alerts = list
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors
	return pc
}

// disabledModes reads the runtime switches once per request.
func (p *Planner) disabledModes(ctx context.Context) (noTransit, noBike, noAlerts bool) {
	if p.switches == nil {
		return false, false, false
	}
	return p.switches.TransitModeDisabled(ctx),
		p.switches.BikeModeDisabled(ctx),
		p.switches.ServiceAlertsDisabled(ctx)
}

func (p *Planner) weatherAt(ctx context.Context, point geo.Coordinate) (*weather.Report, error) {
	if p.weather == nil {
		return nil, weather.ErrNotConfigured
	}
	report, err := p.weather.Current(ctx, point)
	if err != nil {
		p.logger.Info().Err(err).Msg("planning without weather")
		return nil, err
	}
	return report, nil
}

func (p *Planner) quote(ctx context.Context, profile routing.Profile, from, to geo.Coordinate) *routing.Response {
	resp, err := p.router.Route(ctx, routing.Request{
		Waypoints: []geo.Coordinate{from, to},
		Profile:   profile,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("profile", string(profile)).Msg("route quote unavailable")
		return nil
	}
	return resp
}

// transitQuote resolves the nearest stops and builds access, ride and
// egress legs. Walking legs fall back to a straight-line estimate.
func (p *Planner) transitQuote(ctx context.Context, origin, destination geo.Coordinate) (*transitQuote, error) {
	from, to, err := p.nearestStops(origin, destination)
	if err != nil {
		return nil, err
	}

	var access, egress Leg
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		access = p.walkLeg(gctx, origin, from.Location, "Walk to "+from.Name+" station")
		return nil
	})
	g.Go(func() error {
		egress = p.walkLeg(gctx, to.Location, destination, "Walk from "+to.Name+" station to destination")
		return nil
	})
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	return &transitQuote{
		legs: []Leg{access, p.transitLeg(from, to), egress},
		from: from,
		to:   to,
	}, nil
}

func (p *Planner) nearestStops(origin, destination geo.Coordinate) (stops.Stop, stops.Stop, error) {
	if p.stops == nil {
		return stops.Stop{}, stops.Stop{}, ErrNoStops
	}
	from, err := p.stops.Nearest(origin)
	if err != nil {
		return stops.Stop{}, stops.Stop{}, fmt.Errorf("%w: origin: %w", ErrNoStops, err)
	}
	to, err := p.stops.Nearest(destination)
	if err != nil {
		return stops.Stop{}, stops.Stop{}, fmt.Errorf("%w: destination: %w", ErrNoStops, err)
	}
	return from.Stop, to.Stop, nil
}

func (p *Planner) walkLeg(ctx context.Context, from, to geo.Coordinate, summary string) Leg {
	resp, err := p.router.Route(ctx, routing.Request{
		Waypoints: []geo.Coordinate{from, to},
		Profile:   routing.ProfileFoot,
	})
	if err == nil {
		return legFromResponse(ModeFoot, summary, resp)
	}

	km := geo.Distance(from, to) / 1000
	p.logger.Info().Err(err).Float64("distance_km", km).Msg("estimating walking leg")
	return Leg{
		Mode:            ModeFoot,
		Summary:         summary,
		DurationMinutes: km / p.walkingKmh * 60,
		DistanceKm:      km,
		Metadata:        map[string]string{"estimated": "true"},
	}
}

func (p *Planner) transitLeg(from, to stops.Stop) Leg {
	return Leg{
		Mode:            ModeTransit,
		Summary:         "Metro from " + from.Name + " to " + to.Name,
		DurationMinutes: p.transitMinutes,
		DistanceKm:      geo.Distance(from.Location, to.Location) / 1000,
		Metadata: map[string]string{
			"origin_stop_id": from.ID,
			"dest_stop_id":   to.ID,
			"note":           "average in-vehicle time, no live schedule",
		},
	}
}

func legFromResponse(mode Mode, summary string, resp *routing.Response) Leg {
	return Leg{
		Mode:            mode,
		Summary:         summary,
		DurationMinutes: resp.DurationMinutes(),
		DistanceKm:      resp.DistanceKm(),
		Geometry:        resp.Geometry,
	}
}

// candidates builds every itinerary whose precondition holds, in a fixed
// order so that equal scores keep a stable ranking.
func (p *Planner) candidates(pc *planContext, prefs Preferences, fare int64) []Itinerary {
	var out []Itinerary
	rain := pc.precipitation()
	bikeOK := prefs.BikeAllowed() && pc.bike != nil && rain < maxRainForBike

	// The budget applies to this candidate only.
	if pc.metro != nil && fare <= prefs.Budget() {
		out = append(out, NewItinerary(NameTransit, cloneLegs(pc.metro.legs), fare))
	}

	if bikeOK && pc.metro != nil {
		out = append(out, NewItinerary(NameBikeTransit, p.bikeTransitLegs(pc), fare))
	}

	if pc.foot != nil && pc.foot.DurationMinutes() < maxWalkMinutes {
		out = append(out, NewItinerary(NameWalk, []Leg{legFromResponse(ModeFoot, "Walk to destination", pc.foot)}, 0))
	}

	if bikeOK {
		out = append(out, NewItinerary(NameBike, []Leg{legFromResponse(ModeBike, "Ride to destination", pc.bike)}, 0))
	}

	return out
}

// bikeTransitLegs blends 30% of the bike trip with 70% of the transit trip.
// The split has no geometric basis; it approximates a first-mile ride.
func (p *Planner) bikeTransitLegs(pc *planContext) []Leg {
	ride := Leg{
		Mode:            ModeBike,
		Summary:         "Ride EnCicla to " + pc.metro.from.Name + " station",
		DurationMinutes: pc.bike.DurationMinutes() * bikeShare,
		DistanceKm:      pc.bike.DistanceKm() * bikeShare,
		Metadata:        map[string]string{"share": strconv.FormatFloat(bikeShare, 'f', -1, 64)},
	}
	if nearest, err := bikeshare.Nearest(pc.stations, pc.origin); err == nil {
		ride.Summary = "Take an EnCicla bike at " + nearest.Name
		ride.Metadata["station_id"] = nearest.ID
	}

	metro := Leg{
		Mode:            ModeTransit,
		Summary:         "Drop the bike and take the Metro from " + pc.metro.from.Name + " to " + pc.metro.to.Name,
		DurationMinutes: pc.metro.durationMinutes() * transitShare,
		DistanceKm:      pc.metro.distanceKm() * transitShare,
		Metadata: map[string]string{
			"share":          strconv.FormatFloat(transitShare, 'f', -1, 64),
			"origin_stop_id": pc.metro.from.ID,
			"dest_stop_id":   pc.metro.to.ID,
		},
	}
	return []Leg{ride, metro}
}

func (p *Planner) drivingBaseline(pc *planContext) *Itinerary {
	if pc.car == nil {
		return nil
	}
	leg := legFromResponse(ModeCar, "Drive to destination", pc.car)
	leg.DurationMinutes *= pc.multiplier
	if pc.multiplier != 1 {
		leg.Metadata = map[string]string{"traffic_multiplier": strconv.FormatFloat(pc.multiplier, 'f', -1, 64)}
	}
	it := NewItinerary(NameDriving, []Leg{leg}, 0)
	return &it
}

// rank scores candidates and sorts them best first. Ties keep build order.
func rank(candidates []Itinerary, priority Priority, baseline *Itinerary) {
	for i := range candidates {
		c := &candidates[i]
		c.Score = Score(c.TotalDurationMinutes, c.TotalCost, c.CO2Kg, priority)
		if baseline != nil && baseline.CO2Kg > c.CO2Kg {
			c.CO2SavedKg = baseline.CO2Kg - c.CO2Kg
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

func cloneLegs(legs []Leg) []Leg {
	out := make([]Leg, len(legs))
	for i, l := range legs {
		out[i] = l
		if l.Metadata != nil {
			out[i].Metadata = make(map[string]string, len(l.Metadata))
			for k, v := range l.Metadata {
				out[i].Metadata[k] = v
			}
		}
	}
	return out
}
