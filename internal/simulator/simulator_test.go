package simulator_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/simulator"
)

// scriptedRand replays fixed values. Float64 defaults to 0.99 (no delay added).
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.99
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0] % n
	r.ints = r.ints[1:]
	return v
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testRoute() network.Route {
	return network.Route{
		ID: "r1",
		Stops: []network.Stop{
			{ID: "A", Coordinates: network.Coordinates{Latitude: 0, Longitude: 0}},
			{ID: "B", Coordinates: network.Coordinates{Latitude: 0, Longitude: 0.1}},
			{ID: "C", Coordinates: network.Coordinates{Latitude: 0.1, Longitude: 0.1}},
		},
	}
}

func testBus() network.Bus {
	return network.Bus{
		ID:               "b1",
		RouteID:          "r1",
		CurrentStopIndex: 0,
		NextStopIndex:    1,
		Speed:            30,
		Status:           network.StatusOnTime,
		LastUpdated:      t0,
	}
}

func TestAdvance_RateLimited(t *testing.T) {
	bus := testBus()
	route := testRoute()

	got := simulator.Advance(bus, route, t0.Add(29*time.Second), &scriptedRand{})
	assert.Equal(t, bus, got)

	// Two calls less than 30s apart after a real update are identical.
	first := simulator.Advance(bus, route, t0.Add(time.Minute), &scriptedRand{})
	second := simulator.Advance(first, route, t0.Add(time.Minute+20*time.Second), &scriptedRand{floats: []float64{0}, ints: []int{2}})
	assert.Equal(t, first, second)
}

func TestAdvance_ClockBehindLastUpdate(t *testing.T) {
	bus := testBus()
	got := simulator.Advance(bus, testRoute(), t0.Add(-time.Hour), &scriptedRand{})
	assert.Equal(t, bus, got)
}

func TestAdvance_Interpolates(t *testing.T) {
	bus := testBus()

	got := simulator.Advance(bus, testRoute(), t0.Add(time.Minute), &scriptedRand{})

	// 30 km/h for one minute is 0.5 km of an 11.1 km hop.
	assert.InDelta(t, 0.0, got.Coordinates.Latitude, 1e-9)
	assert.InDelta(t, 0.1*0.5/11.1, got.Coordinates.Longitude, 1e-9)
	assert.Equal(t, 0, got.CurrentStopIndex)
	assert.Equal(t, 1, got.NextStopIndex)
	assert.Equal(t, t0.Add(time.Minute), got.LastUpdated)
}

func TestAdvance_ArrivalRollover(t *testing.T) {
	route := testRoute()
	bus := testBus()
	bus.CurrentStopIndex, bus.NextStopIndex = 1, 2

	// Long enough to cover the whole hop.
	got := simulator.Advance(bus, route, t0.Add(time.Hour), &scriptedRand{})
	assert.Equal(t, 2, got.CurrentStopIndex)
	assert.Equal(t, 0, got.NextStopIndex, "next index wraps past the last stop")
	assert.Equal(t, route.Stops[2].Coordinates, got.Coordinates)

	// From the last stop the bus heads back to the first.
	again := simulator.Advance(got, route, t0.Add(3*time.Hour), &scriptedRand{})
	assert.Equal(t, 0, again.CurrentStopIndex)
	assert.Equal(t, 1, again.NextStopIndex)
}

func TestAdvance_ArrivalThreshold(t *testing.T) {
	bus := testBus()
	bus.Speed = 60

	// 11.1 km hop at 1 km/min: 10.5 min is 0.946, 10.6 min is 0.955.
	before := simulator.Advance(bus, testRoute(), t0.Add(630*time.Second), &scriptedRand{})
	assert.Equal(t, 0, before.CurrentStopIndex)

	after := simulator.Advance(bus, testRoute(), t0.Add(636*time.Second), &scriptedRand{})
	assert.Equal(t, 1, after.CurrentStopIndex)
	assert.Equal(t, 2, after.NextStopIndex)
}

func TestAdvance_ZeroLengthHop(t *testing.T) {
	route := network.Route{Stops: []network.Stop{{ID: "A"}, {ID: "B"}}}
	bus := testBus()
	bus.Speed = 0

	got := simulator.Advance(bus, route, t0.Add(time.Minute), &scriptedRand{})
	assert.Equal(t, 1, got.CurrentStopIndex)
	assert.Equal(t, 0, got.NextStopIndex)
}

func TestAdvance_MalformedIndices(t *testing.T) {
	tests := []struct {
		name          string
		current, next int
	}{
		{"current out of range", 7, 1},
		{"next out of range", 0, 3},
		{"negative", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := testBus()
			bus.CurrentStopIndex, bus.NextStopIndex = tt.current, tt.next
			got := simulator.Advance(bus, testRoute(), t0.Add(time.Hour), &scriptedRand{})
			assert.Equal(t, bus, got)
		})
	}
}

func TestAdvance_DelayEvolution(t *testing.T) {
	tests := []struct {
		name       string
		delay      int
		rnd        *scriptedRand
		wantDelay  int
		wantStatus network.BusStatus
	}{
		{"no injection decays", 4, &scriptedRand{floats: []float64{0.5}}, 3, network.StatusOnTime},
		{"floor at zero", 0, &scriptedRand{floats: []float64{0.5}}, 0, network.StatusOnTime},
		{"injection of two", 5, &scriptedRand{floats: []float64{0.1}, ints: []int{2}}, 6, network.StatusDelayed},
		{"injection of zero", 6, &scriptedRand{floats: []float64{0.19}, ints: []int{0}}, 5, network.StatusOnTime},
		{"boundary probability adds nothing", 7, &scriptedRand{floats: []float64{0.2}, ints: []int{2}}, 6, network.StatusDelayed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := testBus()
			bus.DelayMinutes = tt.delay
			now := t0.Add(time.Minute)

			got := simulator.Advance(bus, testRoute(), now, tt.rnd)
			assert.Equal(t, tt.wantDelay, got.DelayMinutes)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, now.Add(time.Duration(5+tt.wantDelay)*time.Minute), got.EstimatedArrival)
		})
	}
}

func TestAdvance_DelayNeverNegative(t *testing.T) {
	bus := testBus()
	bus.DelayMinutes = 3
	route := testRoute()
	rnd := &scriptedRand{}

	now := t0
	for range 20 {
		now = now.Add(time.Minute)
		bus = simulator.Advance(bus, route, now, rnd)
		assert.GreaterOrEqual(t, bus.DelayMinutes, 0)
	}
	assert.Equal(t, 0, bus.DelayMinutes)
}

func TestAdvance_ClearsEarlyAndBreakdown(t *testing.T) {
	for _, status := range []network.BusStatus{network.StatusEarly, network.StatusBreakdown} {
		bus := testBus()
		bus.Status = status

		got := simulator.Advance(bus, testRoute(), t0.Add(time.Minute), &scriptedRand{})
		assert.Equal(t, network.StatusOnTime, got.Status, "from %s", status)
	}
}

func TestPass(t *testing.T) {
	route := testRoute()
	moving := testBus()
	arriving := testBus()
	arriving.ID = "b2"
	arriving.Speed = 1200
	fresh := testBus()
	fresh.ID = "b3"
	fresh.LastUpdated = t0.Add(time.Minute)
	orphan := testBus()
	orphan.ID = "b4"
	orphan.RouteID = "missing"
	broken := testBus()
	broken.ID = "b5"
	broken.Status = network.StatusBreakdown

	now := t0.Add(time.Minute)
	res := simulator.Pass([]network.Bus{moving, arriving, fresh, orphan, broken}, []network.Route{route}, now, &scriptedRand{})

	require.Len(t, res.Buses, 5)
	assert.Equal(t, 2, res.Moved)
	assert.Equal(t, 1, res.Arrivals)
	assert.Equal(t, 3, res.Unchanged)
	assert.Equal(t, orphan, res.Buses[3])
	assert.Equal(t, fresh, res.Buses[2])
	assert.Equal(t, broken, res.Buses[4], "a broken-down bus keeps its status and position")

	buses := simulator.AdvancePositions([]network.Bus{moving}, []network.Route{route}, now, &scriptedRand{})
	assert.Equal(t, now, buses[0].LastUpdated)
}

func TestNewRand_Deterministic(t *testing.T) {
	a := simulator.NewRand(42)
	b := simulator.NewRand(42)
	for range 10 {
		assert.Equal(t, a.Float64(), b.Float64())
		v := a.IntN(3)
		assert.Equal(t, v, b.IntN(3))
		assert.True(t, v >= 0 && v < 3)
	}
}

type countingAdvancer struct {
	calls atomic.Int32
}

func (c *countingAdvancer) AdvanceFleet(_ context.Context, now time.Time) (simulator.PassResult, error) {
	c.calls.Add(1)
	return simulator.PassResult{Buses: []network.Bus{{ID: "b1", DelayMinutes: 7, Status: network.StatusDelayed, LastUpdated: now}}, Moved: 1}, nil
}

func TestTicker_Defaults(t *testing.T) {
	tk := simulator.NewTicker(simulator.TickerConfig{Advancer: &countingAdvancer{}})
	bg, fc := tk.Intervals()
	assert.Equal(t, 30*time.Second, bg)
	assert.Equal(t, 5*time.Second, fc)

	tk = simulator.NewTicker(simulator.TickerConfig{Advancer: &countingAdvancer{}, Focused: time.Minute})
	_, fc = tk.Intervals()
	assert.Equal(t, 10*time.Second, fc)
}

func TestTicker_TickAndMetrics(t *testing.T) {
	adv := &countingAdvancer{}
	metrics := simulator.NewCollector(30*time.Second, 5*time.Second)

	var seen []network.Bus
	tk := simulator.NewTicker(simulator.TickerConfig{
		Advancer: adv,
		Metrics:  metrics,
		Now:      func() time.Time { return t0 },
		Logger:   zerolog.Nop(),
		OnPass: func(_ context.Context, trigger simulator.Trigger, buses []network.Bus) {
			assert.Equal(t, simulator.TriggerManual, trigger)
			seen = buses
		},
	})

	require.NoError(t, tk.Tick(context.Background(), simulator.TriggerManual))

	assert.Equal(t, int32(1), adv.calls.Load())
	require.Len(t, seen, 1)
	assert.Equal(t, t0, seen[0].LastUpdated)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Passes.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Moved))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Delayed))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.BusDelay.WithLabelValues("b1")))
}

func TestTicker_RunAndFocus(t *testing.T) {
	adv := &countingAdvancer{}
	tk := simulator.NewTicker(simulator.TickerConfig{
		Advancer:   adv,
		Background: 10 * time.Millisecond,
		Logger:     zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tk.Run(ctx) }()

	require.Eventually(t, func() bool { return adv.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	tk.Focus(simulator.Target{BusID: "bus1"})
	assert.Equal(t, "bus1", tk.Target().BusID)
	tk.Unfocus()
	assert.True(t, tk.Target().IsZero())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
