package overpass

// Response is the subset of an Overpass JSON response the stop index reads.
type Response struct {
	Version   float64   `json:"version,omitempty"`
	Generator string    `json:"generator,omitempty"`
	Elements  []Element `json:"elements"`
	Remark    string    `json:"remark,omitempty"`
}

// Element is one OSM element. Lat and Lon are nil when the element carries
// no coordinates (ways, relations, areas, "out ids").
type Element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  *float64          `json:"lat,omitempty"`
	Lon  *float64          `json:"lon,omitempty"`
	Tags map[string]string `json:"tags,omitempty"`
}

// Element types.
const (
	TypeNode = "node"
	TypeArea = "area"
)
