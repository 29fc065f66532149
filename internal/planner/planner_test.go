package planner_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/planner"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func stop(id string) network.Stop {
	return network.Stop{ID: id, Name: "Stop " + id, NameHindi: "स्टॉप " + id}
}

func route(id string, stopIDs ...string) network.Route {
	r := network.Route{ID: id, RouteNumber: strings.ToUpper(id), IsActive: true}
	for _, s := range stopIDs {
		r.Stops = append(r.Stops, stop(s))
	}
	return r
}

func bus(id, routeID string, status network.BusStatus) network.Bus {
	return network.Bus{ID: id, RouteID: routeID, Status: status}
}

func newPlanner() *planner.Planner {
	n := 0
	return planner.New(planner.Config{
		NewID: func() string {
			n++
			return "journey-test-" + string(rune('0'+n))
		},
		Logger: zerolog.Nop(),
	})
}

func TestPlan_Direct(t *testing.T) {
	routes := []network.Route{route("r1", "A", "B", "C", "D")}
	buses := []network.Bus{bus("b1", "r1", network.StatusOnTime)}

	plan, err := newPlanner().Plan(stop("A"), stop("C"), routes, buses, now)
	require.NoError(t, err)

	require.Len(t, plan.Options, 1)
	opt := plan.Options[0]
	assert.Equal(t, "direct-r1", opt.ID)
	assert.Equal(t, 6, opt.TotalDuration)
	assert.Equal(t, 0, opt.Transfers)
	assert.Equal(t, 0, opt.WalkingDistance)
	assert.Equal(t, planner.DirectFare, opt.EstimatedFare)
	require.Len(t, opt.Steps, 1)

	step, ok := opt.Steps[0].(planner.BusStep)
	require.True(t, ok)
	assert.Equal(t, "A", step.From.ID)
	assert.Equal(t, "C", step.To.ID)
	assert.Equal(t, "Take Bus R1 from Stop A to Stop C", step.Text().Default)
	assert.Equal(t, "बस R1 से स्टॉप A से स्टॉप C जाएं", step.Text().Hindi)

	assert.Equal(t, 6, plan.TotalDuration)
	assert.Equal(t, now, plan.CreatedAt)
	assert.Equal(t, "journey-test-1", plan.ID)
}

func TestPlan_DirectionSensitive(t *testing.T) {
	routes := []network.Route{route("r1", "A", "B", "C", "D")}
	buses := []network.Bus{bus("b1", "r1", network.StatusOnTime)}

	plan, err := newPlanner().Plan(stop("C"), stop("A"), routes, buses, now)
	require.NoError(t, err)
	assert.Empty(t, plan.Options)
	assert.Equal(t, 0, plan.TotalDuration)
}

func TestPlan_EmptyPlanEncodesEmptyRoutes(t *testing.T) {
	routes := []network.Route{route("r1", "A", "B", "C", "D")}
	buses := []network.Bus{bus("b1", "r1", network.StatusOnTime)}

	plan, err := newPlanner().Plan(stop("D"), stop("A"), routes, buses, now)
	require.NoError(t, err)
	require.NotNil(t, plan.Options)

	raw, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"routes":[]`)
}

func TestPlan_BreakdownExcluded(t *testing.T) {
	routes := []network.Route{route("r1", "A", "B", "C")}
	buses := []network.Bus{
		bus("b1", "r1", network.StatusBreakdown),
		bus("b2", "r1", network.StatusBreakdown),
	}

	plan, err := newPlanner().Plan(stop("A"), stop("C"), routes, buses, now)
	require.NoError(t, err)
	assert.Empty(t, plan.Options)
}

func TestPlan_OnlyInServiceBusesListed(t *testing.T) {
	routes := []network.Route{route("r1", "A", "B")}
	buses := []network.Bus{
		bus("b1", "r1", network.StatusBreakdown),
		bus("b2", "r1", network.StatusDelayed),
		bus("b3", "r2", network.StatusOnTime),
	}

	plan, err := newPlanner().Plan(stop("A"), stop("B"), routes, buses, now)
	require.NoError(t, err)
	require.Len(t, plan.Options, 1)
	require.Len(t, plan.Options[0].Buses, 1)
	assert.Equal(t, "b2", plan.Options[0].Buses[0].ID)
}

func TestPlan_Transfer(t *testing.T) {
	routes := []network.Route{
		route("r1", "A", "X", "B"),
		route("r2", "C", "X", "D"),
	}
	buses := []network.Bus{
		bus("b1", "r1", network.StatusOnTime),
		bus("b2", "r2", network.StatusOnTime),
	}

	plan, err := newPlanner().Plan(stop("A"), stop("D"), routes, buses, now)
	require.NoError(t, err)
	require.Len(t, plan.Options, 1)

	opt := plan.Options[0]
	assert.Equal(t, "transfer-r1-r2", opt.ID)
	assert.Equal(t, 1, opt.Transfers)
	assert.Equal(t, (1-0)*3+5+(2-1)*3, opt.TotalDuration)
	assert.Equal(t, planner.TransferWalkMeters, opt.WalkingDistance)
	assert.Equal(t, planner.TransferFare, opt.EstimatedFare)
	assert.Len(t, opt.Buses, 2)
	require.Len(t, opt.Routes, 2)
	assert.Equal(t, "r1", opt.Routes[0].ID)
	assert.Equal(t, "r2", opt.Routes[1].ID)

	require.Len(t, opt.Steps, 3)
	kinds := []planner.StepKind{opt.Steps[0].Kind(), opt.Steps[1].Kind(), opt.Steps[2].Kind()}
	assert.Equal(t, []planner.StepKind{planner.KindBus, planner.KindTransfer, planner.KindBus}, kinds)

	transfer := opt.Steps[1].(planner.TransferStep)
	assert.Equal(t, "X", transfer.At.ID)
	assert.Equal(t, 5, transfer.Minutes())
	assert.Equal(t, "Transfer at Stop X", transfer.Text().Default)
	assert.Equal(t, "स्टॉप X पर बदलें", transfer.Text().Hindi)
}

func TestPlan_TransferUsesFirstSharedStopOnly(t *testing.T) {
	// The first shared stop along r1 is A itself, which is not after the
	// origin, so the pairing is dropped even though X would work.
	routes := []network.Route{
		route("r1", "A", "X", "B"),
		route("r2", "A", "X", "D"),
	}
	buses := []network.Bus{
		bus("b1", "r1", network.StatusOnTime),
		bus("b2", "r2", network.StatusOnTime),
	}

	plan, err := newPlanner().Plan(stop("A"), stop("D"), routes, buses, now)
	require.NoError(t, err)

	ids := optionIDs(plan)
	assert.Equal(t, []string{"direct-r2"}, ids)
}

func TestPlan_TransferGeometry(t *testing.T) {
	tests := []struct {
		name   string
		routes []network.Route
	}{
		{
			name: "transfer before origin",
			routes: []network.Route{
				route("r1", "X", "A", "B"),
				route("r2", "C", "X", "D"),
			},
		},
		{
			name: "transfer after destination",
			routes: []network.Route{
				route("r1", "A", "X", "B"),
				route("r2", "D", "C", "X"),
			},
		},
		{
			name: "no shared stop",
			routes: []network.Route{
				route("r1", "A", "B"),
				route("r2", "C", "D"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buses := []network.Bus{
				bus("b1", "r1", network.StatusOnTime),
				bus("b2", "r2", network.StatusOnTime),
			}
			plan, err := newPlanner().Plan(stop("A"), stop("D"), tt.routes, buses, now)
			require.NoError(t, err)
			assert.Empty(t, plan.Options)
		})
	}
}

func TestPlan_TransferNeedsBusesOnBothRoutes(t *testing.T) {
	routes := []network.Route{
		route("r1", "A", "X", "B"),
		route("r2", "C", "X", "D"),
	}
	buses := []network.Bus{
		bus("b1", "r1", network.StatusOnTime),
		bus("b2", "r2", network.StatusBreakdown),
	}

	plan, err := newPlanner().Plan(stop("A"), stop("D"), routes, buses, now)
	require.NoError(t, err)
	assert.Empty(t, plan.Options)
}

func TestPlan_RankingAndCap(t *testing.T) {
	routes := []network.Route{
		route("r1", "A", "p", "q", "r", "B"), // 12
		route("r2", "A", "s", "B"),           // 6
		route("r3", "A", "B"),                // 3
		route("r4", "A", "t", "u", "B"),      // 9
		route("r5", "A", "v", "B"),           // 6, discovered after r2
	}
	var buses []network.Bus
	for _, r := range routes {
		buses = append(buses, bus("bus-"+r.ID, r.ID, network.StatusOnTime))
	}

	plan, err := newPlanner().Plan(stop("A"), stop("B"), routes, buses, now)
	require.NoError(t, err)

	require.Len(t, plan.Options, planner.MaxOptions)
	assert.Equal(t, []string{"direct-r3", "direct-r2", "direct-r5"}, optionIDs(plan))
	assert.Equal(t, 3, plan.TotalDuration)
}

func TestPlan_TransferCanOutrankDirect(t *testing.T) {
	// Direct A..D on r3 takes 4 hops (12 min); the transfer via X is
	// 1 hop + 5 + 1 hop (11 min).
	routes := []network.Route{
		route("r1", "A", "X", "B"),
		route("r2", "C", "X", "D"),
		route("r3", "A", "e", "f", "g", "D"),
	}
	buses := []network.Bus{
		bus("b1", "r1", network.StatusOnTime),
		bus("b2", "r2", network.StatusOnTime),
		bus("b3", "r3", network.StatusOnTime),
	}

	plan, err := newPlanner().Plan(stop("A"), stop("D"), routes, buses, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"transfer-r1-r2", "direct-r3"}, optionIDs(plan))
	assert.Equal(t, 11, plan.TotalDuration)
}

func TestPlan_UnknownStopsYieldEmptyPlan(t *testing.T) {
	routes := []network.Route{route("r1", "A", "B")}
	plan, err := newPlanner().Plan(stop("Q"), stop("Z"), routes, nil, now)
	require.NoError(t, err)
	assert.Empty(t, plan.Options)
	assert.NotEmpty(t, plan.ID)
}

func TestPlan_InvalidCall(t *testing.T) {
	_, err := newPlanner().Plan(network.Stop{}, stop("B"), nil, nil, now)

	var invalid *planner.InvalidCallError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "origin", invalid.Field)

	_, err = newPlanner().Plan(stop("A"), network.Stop{}, nil, nil, now)
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "destination", invalid.Field)
}

func TestPlan_DefaultIDsAreUnique(t *testing.T) {
	p := planner.New(planner.Config{})
	a, err := p.Plan(stop("A"), stop("B"), nil, nil, now)
	require.NoError(t, err)
	b, err := p.Plan(stop("A"), stop("B"), nil, nil, now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.ID, "journey-"))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPlan_SeedNetwork(t *testing.T) {
	seed, err := network.DefaultSeed()
	require.NoError(t, err)
	snap := network.Snapshot{Stops: seed.Stops, Routes: seed.Routes, Buses: seed.Buses(now)}

	kalyanpur, _ := snap.StopByID("stop4")
	ramadevi, _ := snap.StopByID("stop7")

	plan, err := newPlanner().Plan(kalyanpur, ramadevi, snap.Routes, snap.Buses, now)
	require.NoError(t, err)

	assert.Equal(t, []string{"direct-route3", "transfer-route3-route2"}, optionIDs(plan))
	assert.Equal(t, 12, plan.Options[0].TotalDuration)
	assert.Equal(t, 20, plan.Options[1].TotalDuration)

	transfer := plan.Options[1].Steps[1].(planner.TransferStep)
	assert.Equal(t, "Kanpur Central", transfer.At.Name)
}

func TestSteps_JSONRoundTrip(t *testing.T) {
	a, x := stop("A"), stop("X")
	r1 := route("r1", "A", "X")
	steps := planner.Steps{
		planner.WalkStep{From: a, To: x, Distance: 120, Duration: 2},
		planner.BusStep{Route: r1, From: a, To: x, Duration: 3},
		planner.TransferStep{At: x, Duration: 5},
	}

	raw, err := json.Marshal(steps)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "walk", decoded[0]["type"])
	assert.Equal(t, float64(120), decoded[0]["distance"])
	assert.Equal(t, "Walk 120 m to Stop X", decoded[0]["description"])
	assert.Equal(t, "bus", decoded[1]["type"])
	assert.Contains(t, decoded[1], "route")
	assert.Equal(t, "transfer", decoded[2]["type"])
	assert.NotContains(t, decoded[2], "route")

	var back planner.Steps
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, steps, back)
}

func TestSteps_UnknownType(t *testing.T) {
	var steps planner.Steps
	err := json.Unmarshal([]byte(`[{"type":"ferry","duration":3}]`), &steps)
	assert.Error(t, err)
}

func optionIDs(plan planner.JourneyPlan) []string {
	ids := make([]string, 0, len(plan.Options))
	for _, o := range plan.Options {
		ids = append(ids, o.ID)
	}
	return ids
}
