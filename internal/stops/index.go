package stops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/pkg/geo"
)

// Strategy is one step of the loading fallback chain. A strategy that
// returns no stops, or an error, hands over to the next one.
type Strategy struct {
	Name string
	Load func(ctx context.Context) ([]Stop, error)
}

// IndexConfig holds configuration for building an index.
type IndexConfig struct {
	Strategies []Strategy

	// StrategyTimeout bounds each strategy on its own. A strategy that runs
	// out of time hands over to the next one. Zero means no bound.
	StrategyTimeout time.Duration

	Logger zerolog.Logger
}

// Index is an immutable set of stops. It is safe for concurrent use.
type Index struct {
	stops   []Stop
	byID    map[string]int
	source  string
	builtAt time.Time
}

// NewIndex runs the strategies in order and builds the index from the first
// one that yields stops. If all of them come back empty, it fails with
// ErrNoStopsResolved; an empty index is never returned.
func NewIndex(ctx context.Context, cfg IndexConfig) (*Index, error) {
	logger := cfg.Logger.With().Str("component", "stops").Logger()

	var failures []error
	for _, s := range cfg.Strategies {
		start := time.Now()
		loaded, err := loadStrategy(ctx, s, cfg.StrategyTimeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("building stop index: %w", ctxErr)
			}
			logger.Warn().Err(err).Str("strategy", s.Name).Msg("stop strategy failed")
			failures = append(failures, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		if len(loaded) == 0 {
			logger.Warn().Str("strategy", s.Name).Msg("stop strategy returned no stops")
			failures = append(failures, fmt.Errorf("%s: no stops", s.Name))
			continue
		}

		idx, err := NewIndexFromStops(loaded, s.Name)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("strategy", s.Name).
			Int("stops", idx.Len()).
			Dur("elapsed", time.Since(start)).
			Msg("stop index built")
		return idx, nil
	}

	if len(failures) == 0 {
		return nil, ErrNoStopsResolved
	}
	return nil, fmt.Errorf("%w: %w", ErrNoStopsResolved, errors.Join(failures...))
}

func loadStrategy(ctx context.Context, s Strategy, timeout time.Duration) ([]Stop, error) {
	if timeout <= 0 {
		return s.Load(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Load(ctx)
}

// NewIndexFromStops builds an index from known records. Records with an
// already-seen ID are dropped so the first occurrence wins.
func NewIndexFromStops(records []Stop, source string) (*Index, error) {
	idx := &Index{
		stops:   make([]Stop, 0, len(records)),
		byID:    make(map[string]int, len(records)),
		source:  source,
		builtAt: time.Now(),
	}
	for _, s := range records {
		if _, dup := idx.byID[s.ID]; dup {
			continue
		}
		idx.byID[s.ID] = len(idx.stops)
		idx.stops = append(idx.stops, s)
	}
	if len(idx.stops) == 0 {
		return nil, ErrNoStopsResolved
	}
	return idx, nil
}

// Nearest returns the stop closest to point by haversine distance. It is a
// linear scan; on equal distances the stop loaded first wins.
func (ix *Index) Nearest(point geo.Coordinate) (Nearest, error) {
	if ix == nil || len(ix.stops) == 0 {
		return Nearest{}, ErrEmptyIndex
	}
	if err := point.Validate(); err != nil {
		return Nearest{}, err
	}

	best := -1
	bestDist := 0.0
	for i := range ix.stops {
		d := geo.Distance(point, ix.stops[i].Location)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return Nearest{Stop: ix.stops[best], DistanceMeters: bestDist}, nil
}

// Get returns the stop with the given ID.
func (ix *Index) Get(id string) (Stop, bool) {
	if ix == nil {
		return Stop{}, false
	}
	i, ok := ix.byID[id]
	if !ok {
		return Stop{}, false
	}
	return ix.stops[i], true
}

// Stops returns a copy of all stops in load order.
func (ix *Index) Stops() []Stop {
	if ix == nil {
		return nil
	}
	out := make([]Stop, len(ix.stops))
	copy(out, ix.stops)
	return out
}

// Len returns the number of stops.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.stops)
}

// Source returns the name of the strategy that produced the stops.
func (ix *Index) Source() string {
	if ix == nil {
		return ""
	}
	return ix.source
}

// BuiltAt returns when the index was built.
func (ix *Index) BuiltAt() time.Time {
	if ix == nil {
		return time.Time{}
	}
	return ix.builtAt
}
