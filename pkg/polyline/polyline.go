// Package polyline encodes coordinate paths with Google's encoded polyline
// algorithm (precision 1e5), the format map clients draw route shapes from.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
	"strings"
)

// ErrTruncated is returned when an encoded string ends inside a value.
var ErrTruncated = errors.New("polyline: truncated input")

const scale = 1e5

// LatLng is a point on a path.
type LatLng struct {
	Lat float64
	Lng float64
}

// Encode encodes path. An empty path encodes to "".
func Encode(path []LatLng) string {
	var sb strings.Builder
	sb.Grow(len(path) * 8)

	var lastLat, lastLng int
	for _, p := range path {
		lat := int(math.Round(p.Lat * scale))
		lng := int(math.Round(p.Lng * scale))
		writeDelta(&sb, lat-lastLat)
		writeDelta(&sb, lng-lastLng)
		lastLat, lastLng = lat, lng
	}
	return sb.String()
}

func writeDelta(sb *strings.Builder, delta int) {
	v := delta << 1
	if delta < 0 {
		v = ^v
	}
	for v >= 0x20 {
		sb.WriteByte(byte(0x20|(v&0x1f)) + 63)
		v >>= 5
	}
	sb.WriteByte(byte(v) + 63)
}

// Decode is the inverse of Encode.
func Decode(encoded string) ([]LatLng, error) {
	var (
		path     []LatLng
		lat, lng int
	)
	for i := 0; i < len(encoded); {
		dLat, next, err := readDelta(encoded, i)
		if err != nil {
			return nil, err
		}
		dLng, next, err := readDelta(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lng += dLng
		path = append(path, LatLng{Lat: float64(lat) / scale, Lng: float64(lng) / scale})
	}
	return path, nil
}

func readDelta(s string, i int) (int, int, error) {
	var v, shift int
	for {
		if i >= len(s) {
			return 0, i, ErrTruncated
		}
		b := int(s[i]) - 63
		i++
		v |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if v&1 == 1 {
		return ^(v >> 1), i, nil
	}
	return v >> 1, i, nil
}

const earthRadiusKm = 6371.0

// LengthKm returns the great-circle length of path in kilometres.
func LengthKm(path []LatLng) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += haversine(path[i-1], path[i])
	}
	return total
}

func haversine(a, b LatLng) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Pow(math.Sin(dLng/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
