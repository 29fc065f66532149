package tracking

import (
	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/pkg/polyline"
)

// Shape is a route's path through its stops.
type Shape struct {
	RouteID  string  `json:"routeId"`
	Polyline string  `json:"polyline"`
	LengthKm float64 `json:"lengthKm"`
}

// RouteShape encodes the straight-line path between a route's stops.
func RouteShape(route network.Route) Shape {
	path := make([]polyline.LatLng, 0, len(route.Stops))
	for _, s := range route.Stops {
		path = append(path, polyline.LatLng{Lat: s.Coordinates.Latitude, Lng: s.Coordinates.Longitude})
	}
	return Shape{
		RouteID:  route.ID,
		Polyline: polyline.Encode(path),
		LengthKm: polyline.LengthKm(path),
	}
}
