// Package tracking derives rider-facing views of the simulated fleet: stop
// timelines, arrival countdowns, service notices and nearby buses.
package tracking

import (
	"fmt"
	"math"
	"time"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/planner"
)

// StopStatus is where a stop sits relative to the bus serving it.
type StopStatus string

// Stop statuses.
const (
	StopScheduled   StopStatus = "scheduled"
	StopDeparted    StopStatus = "departed"
	StopCurrent     StopStatus = "current"
	StopApproaching StopStatus = "approaching"
	StopUpcoming    StopStatus = "upcoming"
)

// ArrivingText is shown instead of a countdown once a bus is due.
const ArrivingText = "Arriving"

// TimelineEntry is one stop of a route with the bus serving it, if any.
type TimelineEntry struct {
	Index  int          `json:"index"`
	Stop   network.Stop `json:"stop"`
	Status StopStatus   `json:"status"`
	BusID  string       `json:"busId,omitempty"`
	ETA    string       `json:"eta,omitempty"`
}

// StopTimeline lists every stop of route in order. Each stop is matched to
// the first bus whose current or next stop it is, failing that to the bus
// furthest along the route that has not yet passed it. Stops with no such
// bus are scheduled.
func StopTimeline(route network.Route, buses []network.Bus, now time.Time) []TimelineEntry {
	onRoute := network.BusesOnRoute(buses, route.ID)

	entries := make([]TimelineEntry, 0, len(route.Stops))
	for i, stop := range route.Stops {
		entry := TimelineEntry{Index: i, Stop: stop, Status: StopScheduled}

		bus, ok := busForStop(onRoute, i)
		if ok {
			entry.BusID = bus.ID
			entry.Status = stopStatus(i, bus)
			entry.ETA = stopETA(i, entry.Status, bus, now)
		}
		entries = append(entries, entry)
	}
	return entries
}

func busForStop(buses []network.Bus, index int) (network.Bus, bool) {
	for _, b := range buses {
		if b.CurrentStopIndex == index || b.NextStopIndex == index {
			return b, true
		}
	}

	var (
		behind network.Bus
		found  bool
	)
	for _, b := range buses {
		if b.CurrentStopIndex < index && (!found || b.CurrentStopIndex > behind.CurrentStopIndex) {
			behind, found = b, true
		}
	}
	return behind, found
}

func stopStatus(index int, bus network.Bus) StopStatus {
	switch {
	case index < bus.CurrentStopIndex:
		return StopDeparted
	case index == bus.CurrentStopIndex:
		return StopCurrent
	case index == bus.NextStopIndex:
		return StopApproaching
	default:
		return StopUpcoming
	}
}

func stopETA(index int, status StopStatus, bus network.Bus, now time.Time) string {
	switch status {
	case StopCurrent, StopApproaching:
		if m := MinutesUntilArrival(bus, now); m > 0 {
			return fmt.Sprintf("%d min", m)
		}
		return ArrivingText
	case StopUpcoming:
		return fmt.Sprintf("~%d min", (index-bus.CurrentStopIndex)*planner.MinutesPerHop)
	}
	return ""
}

// MinutesUntilArrival rounds the time to the bus's estimated arrival up to
// whole minutes. A bus that is due reports 0.
func MinutesUntilArrival(bus network.Bus, now time.Time) int {
	m := int(math.Ceil(bus.EstimatedArrival.Sub(now).Minutes()))
	return max(m, 0)
}
