package simulator

import (
	"time"

	"github.com/nagarbus/nagarbus/internal/network"
)

// PassResult summarizes one simulation pass over the fleet.
type PassResult struct {
	Buses     []network.Bus
	Moved     int
	Arrivals  int
	Unchanged int
}

// AdvancePositions applies Advance to every active bus against its own route.
// Broken-down buses and buses whose route is unknown are returned unchanged.
func AdvancePositions(buses []network.Bus, routes []network.Route, now time.Time, rnd RandomSource) []network.Bus {
	return Pass(buses, routes, now, rnd).Buses
}

// Pass is AdvancePositions with per-pass counts for metrics. A breakdown
// stays in place until an operator changes the bus's status.
func Pass(buses []network.Bus, routes []network.Route, now time.Time, rnd RandomSource) PassResult {
	byID := make(map[string]network.Route, len(routes))
	for _, r := range routes {
		byID[r.ID] = r
	}

	res := PassResult{Buses: make([]network.Bus, len(buses))}
	for i, bus := range buses {
		route, ok := byID[bus.RouteID]
		if !ok || bus.Status == network.StatusBreakdown {
			res.Buses[i] = bus
			res.Unchanged++
			continue
		}

		next := Advance(bus, route, now, rnd)
		res.Buses[i] = next
		switch {
		case next.LastUpdated.Equal(bus.LastUpdated):
			res.Unchanged++
		case next.CurrentStopIndex != bus.CurrentStopIndex:
			res.Moved++
			res.Arrivals++
		default:
			res.Moved++
		}
	}
	return res
}
