package planner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/movilityai/movility/internal/routing"
	"github.com/movilityai/movility/pkg/geo"
)

// PlanDirect builds exactly one itinerary without scoring: first mile,
// fixed transit leg and last mile when both nearest stops resolve, or a
// single bike ride otherwise. First and last mile are walked when the
// current condition is rain or thunderstorm, or bikes are switched off;
// unknown weather keeps the bike. Routing failures are returned, since
// routing is the only data source here.
func (p *Planner) PlanDirect(ctx context.Context, origin, destination geo.Coordinate) (*Itinerary, error) {
	req := Request{Origin: origin, Destination: destination}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	noTransit, noBike, _ := p.disabledModes(ctx)

	mode := ModeBike
	if noBike {
		mode = ModeFoot
	} else if report, err := p.weatherAt(ctx, origin); err == nil && report.Condition.IsWet() {
		mode = ModeFoot
	}

	from, to, err := p.nearestStops(origin, destination)
	if noTransit {
		err = ErrTransitDisabled
	}
	if err != nil {
		p.logger.Info().Err(err).Str("mode", string(mode)).Msg("direct plan falling back to a single leg")
		return p.singleLeg(ctx, noBike, origin, destination)
	}

	var first, last Leg
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		first, err = p.mileLeg(gctx, mode, origin, from.Location, "to "+from.Name+" station")
		return err
	})
	g.Go(func() error {
		var err error
		last, err = p.mileLeg(gctx, mode, to.Location, destination, "from "+to.Name+" station to destination")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s with %s first and last mile", NameTransit, mode)
	it := NewItinerary(name, []Leg{first, p.transitLeg(from, to), last}, p.Fare(FareRegular))
	return &it, nil
}

// singleLeg rides the whole trip, or walks it when bikes are switched off.
func (p *Planner) singleLeg(ctx context.Context, walk bool, origin, destination geo.Coordinate) (*Itinerary, error) {
	mode, profile, name, summary := ModeBike, routing.ProfileBike, NameBike, "Ride to destination"
	if walk {
		mode, profile, name, summary = ModeFoot, routing.ProfileFoot, NameWalk, "Walk to destination"
	}

	resp, err := p.router.Route(ctx, routing.Request{
		Waypoints: []geo.Coordinate{origin, destination},
		Profile:   profile,
	})
	if err != nil {
		return nil, err
	}
	it := NewItinerary(name, []Leg{legFromResponse(mode, summary, resp)}, 0)
	return &it, nil
}

func (p *Planner) mileLeg(ctx context.Context, mode Mode, from, to geo.Coordinate, where string) (Leg, error) {
	profile, verb := routing.ProfileFoot, "Walk "
	if mode == ModeBike {
		profile, verb = routing.ProfileBike, "Ride "
	}
	resp, err := p.router.Route(ctx, routing.Request{
		Waypoints: []geo.Coordinate{from, to},
		Profile:   profile,
	})
	if err != nil {
		return Leg{}, err
	}
	return legFromResponse(mode, verb+where, resp), nil
}
