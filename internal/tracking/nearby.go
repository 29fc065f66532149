package tracking

import (
	"cmp"
	"slices"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/simulator"
)

// DefaultNearbyLimit is how many buses NearbyBuses returns by default.
const DefaultNearbyLimit = 5

// NearbyBus is a bus with its distance from the rider, when known.
type NearbyBus struct {
	Bus        network.Bus `json:"bus"`
	DistanceKm *float64    `json:"distanceKm,omitempty"`
}

// NearbyBuses returns up to limit buses that are in service. With a
// location they are ordered nearest first; without one they keep fleet
// order. A limit of zero or less means DefaultNearbyLimit.
func NearbyBuses(location *network.Coordinates, buses []network.Bus, limit int) []NearbyBus {
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}

	out := make([]NearbyBus, 0, len(buses))
	for _, b := range buses {
		if !b.InService() {
			continue
		}
		nb := NearbyBus{Bus: b}
		if location != nil {
			d := simulator.Distance(*location, b.Coordinates)
			nb.DistanceKm = &d
		}
		out = append(out, nb)
	}

	if location != nil {
		slices.SortStableFunc(out, func(a, b NearbyBus) int {
			return cmp.Compare(*a.DistanceKm, *b.DistanceKm)
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
