package stops

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/movilityai/movility/internal/stops/nominatim"
	"github.com/movilityai/movility/internal/stops/overpass"
	"github.com/movilityai/movility/pkg/geo"
)

// Strategy names, in fallback order.
const (
	StrategyGeocodeArea = "geocode-area"
	StrategyAdminArea   = "admin-area"
	StrategyBoundingBox = "bounding-box"
)

// ErrAreaNotFound is returned when the administrative area lookup has no area element.
var ErrAreaNotFound = errors.New("administrative area not found")

// OverpassQuerier runs an Overpass QL query.
type OverpassQuerier interface {
	Query(ctx context.Context, ql string) (*overpass.Response, error)
}

// PlaceSearcher geocodes a free-text place name.
type PlaceSearcher interface {
	Search(ctx context.Context, q string) (*nominatim.Place, error)
}

// Area describes where to look for stations and which OSM tags mark them.
type Area struct {
	// City is the name used in {{geocodeArea:...}}.
	City string
	// NamePattern matches the administrative boundary name.
	NamePattern string
	// AdminLevels is an admin_level regex, e.g. "6|7|8".
	AdminLevels string
	// PlaceQuery is the free-text Nominatim query.
	PlaceQuery string
	// Filters are Overpass tag filters; a node matching any of them is a station.
	Filters []string
	// TimeoutSeconds is sent as [timeout:N] in every query.
	TimeoutSeconds int
}

// DefaultArea returns the Medellín metro area.
func DefaultArea() Area {
	return Area{
		City:        "Medellín",
		NamePattern: "(?i)medell[ií]n",
		AdminLevels: "6|7|8",
		PlaceQuery:  "Medellín, Antioquia, Colombia",
		Filters: []string{
			`["railway"="station"]["subway"="yes"]`,
			`["public_transport"="station"]["subway"="yes"]`,
			`["railway"="station"]["network"~"(?i)medell"]`,
		},
		TimeoutSeconds: 60,
	}
}

// DefaultStrategies returns the geocode-area, admin-area and bounding-box
// strategies for area, in that order. places may be nil, in which case the
// bounding-box strategy is omitted.
func DefaultStrategies(area Area, q OverpassQuerier, places PlaceSearcher) []Strategy {
	strategies := []Strategy{
		{
			Name: StrategyGeocodeArea,
			Load: func(ctx context.Context) ([]Stop, error) {
				return queryStops(ctx, q, GeocodeAreaQuery(area))
			},
		},
		{
			Name: StrategyAdminArea,
			Load: func(ctx context.Context) ([]Stop, error) {
				resp, err := q.Query(ctx, AdminAreaLookupQuery(area))
				if err != nil {
					return nil, err
				}
				areaID, ok := firstAreaID(resp.Elements)
				if !ok {
					return nil, ErrAreaNotFound
				}
				return queryStops(ctx, q, AreaStopsQuery(area, areaID))
			},
		},
	}

	if places != nil {
		strategies = append(strategies, Strategy{
			Name: StrategyBoundingBox,
			Load: func(ctx context.Context) ([]Stop, error) {
				place, err := places.Search(ctx, area.PlaceQuery)
				if err != nil {
					return nil, err
				}
				b := place.BoundingBox
				return queryStops(ctx, q, BoundingBoxQuery(area, b.South, b.West, b.North, b.East))
			},
		})
	}
	return strategies
}

func queryStops(ctx context.Context, q OverpassQuerier, ql string) ([]Stop, error) {
	resp, err := q.Query(ctx, ql)
	if err != nil {
		return nil, err
	}
	return FromElements(resp.Elements), nil
}

func firstAreaID(elements []overpass.Element) (int64, bool) {
	for _, el := range elements {
		if el.Type == overpass.TypeArea {
			return el.ID, true
		}
	}
	return 0, false
}

func header(area Area) string {
	timeout := area.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	return fmt.Sprintf("[out:json][timeout:%d];\n", timeout)
}

// GeocodeAreaQuery selects stations inside {{geocodeArea:City}}.
func GeocodeAreaQuery(area Area) string {
	var b strings.Builder
	b.WriteString(header(area))
	fmt.Fprintf(&b, "area({{geocodeArea:%s}})->.a;\n(\n", area.City)
	for _, f := range area.Filters {
		fmt.Fprintf(&b, "  node(area.a)%s;\n", f)
	}
	b.WriteString(");\nout body;\n")
	return b.String()
}

// AdminAreaLookupQuery resolves the administrative boundary to area ids.
func AdminAreaLookupQuery(area Area) string {
	return header(area) + fmt.Sprintf(
		"area[\"boundary\"=\"administrative\"][\"name\"~\"%s\"][\"admin_level\"~\"%s\"];\nout ids;\n",
		area.NamePattern, area.AdminLevels)
}

// AreaStopsQuery selects stations inside the area with the given id.
func AreaStopsQuery(area Area, areaID int64) string {
	var b strings.Builder
	b.WriteString(header(area))
	b.WriteString("(\n")
	for _, f := range area.Filters {
		fmt.Fprintf(&b, "  node(area:%d)%s;\n", areaID, f)
	}
	b.WriteString(");\nout body;\n")
	return b.String()
}

// BoundingBoxQuery selects stations inside (south,west,north,east).
func BoundingBoxQuery(area Area, south, west, north, east float64) string {
	bbox := fmt.Sprintf("(%s,%s,%s,%s)", ftoa(south), ftoa(west), ftoa(north), ftoa(east))
	var b strings.Builder
	b.WriteString(header(area))
	b.WriteString("(\n")
	for _, f := range area.Filters {
		fmt.Fprintf(&b, "  node%s%s;\n", f, bbox)
	}
	b.WriteString(");\nout body;\n")
	return b.String()
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FromElements converts Overpass elements into stops. Only nodes carrying
// both coordinates are kept. The name falls back from tags.name to tags.ref
// to "Station N", and the ID from the element id to N, where N counts the
// stops parsed so far starting at 1.
func FromElements(elements []overpass.Element) []Stop {
	out := make([]Stop, 0, len(elements))
	for _, el := range elements {
		if el.Type != overpass.TypeNode || el.Lat == nil || el.Lon == nil {
			continue
		}
		n := len(out) + 1

		name := el.Tags["name"]
		if name == "" {
			name = el.Tags["ref"]
		}
		if name == "" {
			name = "Station " + strconv.Itoa(n)
		}

		id := strconv.Itoa(n)
		if el.ID != 0 {
			id = strconv.FormatInt(el.ID, 10)
		}

		out = append(out, Stop{
			ID:       id,
			Name:     name,
			Location: geo.Coordinate{Lat: *el.Lat, Lon: *el.Lon},
		})
	}
	return out
}
