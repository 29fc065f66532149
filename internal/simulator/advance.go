// Package simulator moves buses along their routes over time.
//
// Advance is a pure function of a bus, its route and the current time. It
// holds no state between calls, so callers may apply it to any number of
// buses in any order.
package simulator

import (
	"math"
	"time"

	"github.com/nagarbus/nagarbus/internal/network"
)

const (
	// MinInterval is the shortest elapsed time that moves a bus. Calls made
	// sooner return the bus unchanged.
	MinInterval = 30 * time.Second

	// KmPerDegree converts planar degree distance to kilometres.
	KmPerDegree = 111.0

	// ArrivalThreshold is the hop progress at which a bus counts as arrived.
	ArrivalThreshold = 0.95

	// DelayChance is the probability that a tick adds delay.
	DelayChance = 0.2

	// MaxAddedDelay is the exclusive upper bound of minutes added per tick.
	MaxAddedDelay = 3

	// DelayedAfter is the delay in minutes above which a bus is reported delayed.
	DelayedAfter = 5

	// BaseETA is the flat arrival estimate before delay is added.
	BaseETA = 5 * time.Minute
)

// RandomSource supplies randomness for delay injection.
type RandomSource interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// Advance returns the state of bus at now as it travels along route.
//
// The bus is returned unchanged if less than MinInterval has passed since its
// last update or if its stop indices do not resolve on route.
func Advance(bus network.Bus, route network.Route, now time.Time, rnd RandomSource) network.Bus {
	elapsed := now.Sub(bus.LastUpdated).Minutes()
	if elapsed < MinInterval.Minutes() {
		return bus
	}

	current, ok := route.StopAt(bus.CurrentStopIndex)
	if !ok {
		return bus
	}
	next, ok := route.StopAt(bus.NextStopIndex)
	if !ok {
		return bus
	}

	traveled := bus.Speed / 60 * elapsed
	progress := hopProgress(current.Coordinates, next.Coordinates, traveled)

	bus.Coordinates = Interpolate(current.Coordinates, next.Coordinates, progress)
	if progress >= ArrivalThreshold {
		bus.CurrentStopIndex = bus.NextStopIndex
		bus.NextStopIndex = (bus.NextStopIndex + 1) % len(route.Stops)
	}

	bus.DelayMinutes = nextDelay(bus.DelayMinutes, rnd)
	if bus.DelayMinutes > DelayedAfter {
		bus.Status = network.StatusDelayed
	} else {
		bus.Status = network.StatusOnTime
	}
	bus.EstimatedArrival = now.Add(BaseETA + time.Duration(bus.DelayMinutes)*time.Minute)
	bus.LastUpdated = now
	return bus
}

// Distance is the planar distance in kilometres between two points using a
// flat 111 km per degree.
func Distance(a, b network.Coordinates) float64 {
	dLat := b.Latitude - a.Latitude
	dLon := b.Longitude - a.Longitude
	return math.Sqrt(dLat*dLat+dLon*dLon) * KmPerDegree
}

// Interpolate returns the point at fraction t of the way from a to b.
func Interpolate(a, b network.Coordinates, t float64) network.Coordinates {
	return network.Coordinates{
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*t,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*t,
	}
}

// hopProgress is the clamped fraction of the hop covered after traveling km.
// A zero-length hop is complete immediately.
func hopProgress(from, to network.Coordinates, km float64) float64 {
	total := Distance(from, to)
	if total == 0 {
		return 1
	}
	return math.Min(km/total, 1)
}

func nextDelay(delay int, rnd RandomSource) int {
	if rnd.Float64() < DelayChance {
		delay += rnd.IntN(MaxAddedDelay)
	}
	return max(delay-1, 0)
}
