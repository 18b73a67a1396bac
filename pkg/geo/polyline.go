package geo

import "math"

// Polyline precision used by OSRM (geometries=polyline) and Google: 5 decimals.
const polylineFactor = 1e5

// DecodePolyline decodes an encoded polyline into its coordinates.
// Returns nil for an empty string.
func DecodePolyline(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	var (
		coords   []Coordinate
		lat, lon int
		pos      int
	)
	for pos < len(encoded) {
		var d int
		d, pos = readVarint(encoded, pos)
		lat += d
		d, pos = readVarint(encoded, pos)
		lon += d

		coords = append(coords, Coordinate{
			Lat: float64(lat) / polylineFactor,
			Lon: float64(lon) / polylineFactor,
		})
	}
	return coords
}

func readVarint(s string, pos int) (int, int) {
	var result, shift int
	for pos < len(s) {
		chunk := int(s[pos]) - 63
		pos++
		result |= (chunk & 0x1f) << shift
		shift += 5
		if chunk < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), pos
	}
	return result >> 1, pos
}

// EncodePolyline encodes coordinates with 5-decimal precision.
func EncodePolyline(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	out := make([]byte, 0, len(coords)*6)
	var prevLat, prevLon int
	for _, c := range coords {
		lat := int(math.Round(c.Lat * polylineFactor))
		lon := int(math.Round(c.Lon * polylineFactor))
		out = writeVarint(out, lat-prevLat)
		out = writeVarint(out, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(out)
}

func writeVarint(buf []byte, v int) []byte {
	if v < 0 {
		v = ^(v << 1)
	} else {
		v <<= 1
	}
	for v >= 0x20 {
		buf = append(buf, byte((v&0x1f)|0x20)+63)
		v >>= 5
	}
	return append(buf, byte(v)+63)
}

// PathLength sums the haversine distance along coords in meters.
func PathLength(coords []Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Distance(coords[i-1], coords[i])
	}
	return total
}
