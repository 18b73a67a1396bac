package stops

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movilityai/movility/internal/stops/nominatim"
	"github.com/movilityai/movility/internal/stops/overpass"
	"github.com/movilityai/movility/pkg/geo"
)

func ptr(f float64) *float64 { return &f }

// fakeOverpass answers queries by substring match, in order.
type fakeOverpass struct {
	answers []fakeAnswer
	queries []string
}

type fakeAnswer struct {
	contains string
	resp     *overpass.Response
	err      error
}

func (f *fakeOverpass) Query(_ context.Context, ql string) (*overpass.Response, error) {
	f.queries = append(f.queries, ql)
	for _, a := range f.answers {
		if strings.Contains(ql, a.contains) {
			return a.resp, a.err
		}
	}
	return &overpass.Response{}, nil
}

type fakePlaces struct {
	place *nominatim.Place
	err   error
	q     string
}

func (f *fakePlaces) Search(_ context.Context, q string) (*nominatim.Place, error) {
	f.q = q
	return f.place, f.err
}

func stationNodes() *overpass.Response {
	return &overpass.Response{Elements: []overpass.Element{
		{Type: "node", ID: 101, Lat: ptr(6.2500), Lon: ptr(-75.5683), Tags: map[string]string{"name": "Parque Berrío"}},
		{Type: "node", ID: 102, Lat: ptr(6.2125), Lon: ptr(-75.5779), Tags: map[string]string{"name": "Poblado"}},
	}}
}

func TestFromElements(t *testing.T) {
	got := FromElements([]overpass.Element{
		{Type: "way", ID: 1, Lat: ptr(6.1), Lon: ptr(-75.1)},
		{Type: "node", ID: 2, Lat: ptr(6.2), Lon: nil, Tags: map[string]string{"name": "No lon"}},
		{Type: "node", ID: 3, Lat: ptr(6.3), Lon: ptr(-75.3), Tags: map[string]string{"name": "Named", "ref": "A1"}},
		{Type: "node", ID: 4, Lat: ptr(6.4), Lon: ptr(-75.4), Tags: map[string]string{"ref": "A2"}},
		{Type: "node", ID: 0, Lat: ptr(6.5), Lon: ptr(-75.5)},
	})

	require.Len(t, got, 3)
	assert.Equal(t, Stop{ID: "3", Name: "Named", Location: geo.Coordinate{Lat: 6.3, Lon: -75.3}}, got[0])
	assert.Equal(t, "A2", got[1].Name)
	assert.Equal(t, "4", got[1].ID)
	// Counter covers parsed stops only: this is the third one.
	assert.Equal(t, "Station 3", got[2].Name)
	assert.Equal(t, "3", got[2].ID)
}

func TestGeocodeAreaQuery(t *testing.T) {
	q := GeocodeAreaQuery(DefaultArea())

	assert.True(t, strings.HasPrefix(q, "[out:json][timeout:60];"))
	assert.Contains(t, q, "area({{geocodeArea:Medellín}})->.a;")
	assert.Contains(t, q, `node(area.a)["railway"="station"]["subway"="yes"];`)
	assert.Contains(t, q, `node(area.a)["public_transport"="station"]["subway"="yes"];`)
	assert.Contains(t, q, `node(area.a)["railway"="station"]["network"~"(?i)medell"];`)
	assert.Contains(t, q, "out body;")
}

func TestAdminAreaQueries(t *testing.T) {
	lookup := AdminAreaLookupQuery(DefaultArea())
	assert.Contains(t, lookup, `area["boundary"="administrative"]["name"~"(?i)medell[ií]n"]["admin_level"~"6|7|8"];`)
	assert.Contains(t, lookup, "out ids;")

	nodes := AreaStopsQuery(DefaultArea(), 3600386447)
	assert.Contains(t, nodes, `node(area:3600386447)["railway"="station"]["subway"="yes"];`)
}

func TestBoundingBoxQuery(t *testing.T) {
	q := BoundingBoxQuery(DefaultArea(), 6.162117, -75.7192, 6.375432, -75.47374)
	assert.Contains(t, q, `node["railway"="station"]["subway"="yes"](6.162117,-75.7192,6.375432,-75.47374);`)
}

func TestDefaultStrategies_GeocodeAreaSucceeds(t *testing.T) {
	q := &fakeOverpass{answers: []fakeAnswer{{contains: "geocodeArea", resp: stationNodes()}}}

	idx, err := NewIndex(context.Background(), IndexConfig{
		Strategies: DefaultStrategies(DefaultArea(), q, &fakePlaces{}),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyGeocodeArea, idx.Source())
	assert.Len(t, q.queries, 1)
}

func TestDefaultStrategies_FallsBackToAdminArea(t *testing.T) {
	q := &fakeOverpass{answers: []fakeAnswer{
		{contains: "geocodeArea", err: overpass.ErrAllMirrorsFailed},
		{contains: "out ids", resp: &overpass.Response{Elements: []overpass.Element{
			{Type: "relation", ID: 1},
			{Type: "area", ID: 3600386447},
			{Type: "area", ID: 3600000001},
		}}},
		{contains: "node(area:3600386447)", resp: stationNodes()},
	}}

	idx, err := NewIndex(context.Background(), IndexConfig{
		Strategies: DefaultStrategies(DefaultArea(), q, &fakePlaces{}),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyAdminArea, idx.Source())
	assert.Equal(t, 2, idx.Len())
}

func TestDefaultStrategies_FallsBackToBoundingBox(t *testing.T) {
	q := &fakeOverpass{answers: []fakeAnswer{
		{contains: "geocodeArea", resp: &overpass.Response{}},
		{contains: "out ids", resp: &overpass.Response{}},
		{contains: "(6.16,-75.72,6.38,-75.47)", resp: stationNodes()},
	}}
	places := &fakePlaces{place: &nominatim.Place{
		BoundingBox: geo.BoundingBox{South: 6.16, West: -75.72, North: 6.38, East: -75.47},
	}}

	idx, err := NewIndex(context.Background(), IndexConfig{
		Strategies: DefaultStrategies(DefaultArea(), q, places),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyBoundingBox, idx.Source())
	assert.Equal(t, "Medellín, Antioquia, Colombia", places.q)
}

func TestDefaultStrategies_EverythingEmptyFails(t *testing.T) {
	q := &fakeOverpass{}
	places := &fakePlaces{err: nominatim.ErrNotFound}

	idx, err := NewIndex(context.Background(), IndexConfig{
		Strategies: DefaultStrategies(DefaultArea(), q, places),
		Logger:     zerolog.Nop(),
	})

	assert.Nil(t, idx)
	assert.ErrorIs(t, err, ErrNoStopsResolved)
	assert.True(t, errors.Is(err, ErrAreaNotFound))
	assert.True(t, errors.Is(err, nominatim.ErrNotFound))
}

func TestDefaultStrategies_WithoutPlaceSearch(t *testing.T) {
	strategies := DefaultStrategies(DefaultArea(), &fakeOverpass{}, nil)
	require.Len(t, strategies, 2)
	assert.Equal(t, StrategyGeocodeArea, strategies[0].Name)
	assert.Equal(t, StrategyAdminArea, strategies[1].Name)
}
