package planner

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nagarbus/nagarbus/internal/network"
)

// InvalidCallError reports a planning request that cannot be interpreted,
// as opposed to one that simply has no answer.
type InvalidCallError struct {
	Field  string
	Reason string
}

func (e *InvalidCallError) Error() string {
	return fmt.Sprintf("invalid plan request: %s %s", e.Field, e.Reason)
}

// Config holds configuration for a Planner.
type Config struct {
	// NewID generates plan identifiers (default: "journey-" + UUID).
	NewID func() string

	// Logger for planner operations.
	Logger zerolog.Logger
}

// Planner builds journey plans over an in-memory network.
type Planner struct {
	newID  func() string
	logger zerolog.Logger
}

// New creates a planner.
func New(cfg Config) *Planner {
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return "journey-" + uuid.New().String() }
	}
	return &Planner{newID: newID, logger: cfg.Logger}
}

// Plan finds direct and one-transfer options from origin to destination
// and keeps the MaxOptions fastest. An empty plan is a valid result and
// carries an empty, non-nil Options slice.
func (p *Planner) Plan(origin, destination network.Stop, routes []network.Route, buses []network.Bus, now time.Time) (JourneyPlan, error) {
	if origin.ID == "" {
		return JourneyPlan{}, &InvalidCallError{Field: "origin", Reason: "is required"}
	}
	if destination.ID == "" {
		return JourneyPlan{}, &InvalidCallError{Field: "destination", Reason: "is required"}
	}

	options := directOptions(origin, destination, routes, buses)
	direct := len(options)
	options = append(options, transferOptions(origin, destination, routes, buses)...)

	slices.SortStableFunc(options, func(a, b RouteOption) int {
		return a.TotalDuration - b.TotalDuration
	})
	if len(options) > MaxOptions {
		options = options[:MaxOptions]
	}

	plan := JourneyPlan{
		ID:        p.newID(),
		FromStop:  origin,
		ToStop:    destination,
		Options:   options,
		CreatedAt: now,
	}
	if best, ok := plan.Best(); ok {
		plan.TotalDuration = best.TotalDuration
	}

	p.logger.Debug().
		Str("plan_id", plan.ID).
		Str("origin", origin.ID).
		Str("destination", destination.ID).
		Int("direct_candidates", direct).
		Int("options", len(plan.Options)).
		Int("total_duration", plan.TotalDuration).
		Msg("journey planned")

	return plan, nil
}

func directOptions(origin, destination network.Stop, routes []network.Route, buses []network.Bus) []RouteOption {
	options := []RouteOption{}
	for _, route := range routes {
		from := route.StopIndex(origin.ID)
		to := route.StopIndex(destination.ID)
		if from < 0 || to < 0 || from >= to {
			continue
		}

		serving := inService(buses, route.ID)
		if len(serving) == 0 {
			continue
		}

		steps := Steps{BusStep{
			Route:    route,
			From:     origin,
			To:       destination,
			Duration: (to - from) * MinutesPerHop,
		}}
		options = append(options, RouteOption{
			ID:              "direct-" + route.ID,
			Buses:           serving,
			Routes:          []network.Route{route},
			Transfers:       0,
			TotalDuration:   steps.TotalMinutes(),
			WalkingDistance: 0,
			EstimatedFare:   DirectFare,
			Steps:           steps,
		})
	}
	return options
}

func transferOptions(origin, destination network.Stop, routes []network.Route, buses []network.Bus) []RouteOption {
	var options []RouteOption
	for _, first := range routes {
		boardAt := first.StopIndex(origin.ID)
		if boardAt < 0 {
			continue
		}

		for _, second := range routes {
			if first.ID == second.ID {
				continue
			}
			alightAt := second.StopIndex(destination.ID)
			if alightAt < 0 {
				continue
			}

			// Only the first shared stop along the first route is considered.
			transfer, ok := firstSharedStop(first, second)
			if !ok {
				continue
			}
			leaveFirst := first.StopIndex(transfer.ID)
			joinSecond := second.StopIndex(transfer.ID)
			if leaveFirst <= boardAt || joinSecond >= alightAt {
				continue
			}

			firstBuses := inService(buses, first.ID)
			secondBuses := inService(buses, second.ID)
			if len(firstBuses) == 0 || len(secondBuses) == 0 {
				continue
			}

			steps := Steps{
				BusStep{
					Route:    first,
					From:     origin,
					To:       transfer,
					Duration: (leaveFirst - boardAt) * MinutesPerHop,
				},
				TransferStep{At: transfer, Duration: TransferMinutes},
				BusStep{
					Route:    second,
					From:     transfer,
					To:       destination,
					Duration: (alightAt - joinSecond) * MinutesPerHop,
				},
			}
			options = append(options, RouteOption{
				ID:              "transfer-" + first.ID + "-" + second.ID,
				Buses:           append(firstBuses, secondBuses...),
				Routes:          []network.Route{first, second},
				Transfers:       1,
				TotalDuration:   steps.TotalMinutes(),
				WalkingDistance: TransferWalkMeters,
				EstimatedFare:   TransferFare,
				Steps:           steps,
			})
		}
	}
	return options
}

func firstSharedStop(first, second network.Route) (network.Stop, bool) {
	for _, stop := range first.Stops {
		if second.Serves(stop.ID) {
			return stop, true
		}
	}
	return network.Stop{}, false
}

func inService(buses []network.Bus, routeID string) []network.Bus {
	var out []network.Bus
	for _, b := range buses {
		if b.RouteID == routeID && b.InService() {
			out = append(out, b)
		}
	}
	return out
}
