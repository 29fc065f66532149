package network_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarbus/nagarbus/internal/network"
)

func TestDefaultSeed(t *testing.T) {
	seed, err := network.DefaultSeed()
	require.NoError(t, err)

	assert.Len(t, seed.Stops, 22)
	assert.Len(t, seed.Routes, 7)

	k1 := seed.Routes[0]
	assert.Equal(t, "K1", k1.RouteNumber)
	ids := make([]string, 0, len(k1.Stops))
	for _, s := range k1.Stops {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"stop1", "stop2", "stop16", "stop3", "stop4", "stop5"}, ids)
	assert.True(t, k1.Stops[0].HasAmenity(network.AmenityDisplayBoard))

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	buses := seed.Buses(now)
	require.Len(t, buses, 5)
	assert.Equal(t, network.StatusDelayed, buses[4].Status)
	assert.Equal(t, 10, buses[4].DelayMinutes)
	assert.Equal(t, now.Add(15*time.Minute), buses[4].EstimatedArrival)
	assert.Equal(t, now, buses[0].LastUpdated)
}

func TestStopsWithAmenity(t *testing.T) {
	stops := []network.Stop{
		{ID: "a", Amenities: []network.Amenity{network.AmenityShelter, network.AmenityWifi}},
		{ID: "b", Amenities: []network.Amenity{network.AmenityShelter}},
		{ID: "c"},
	}

	got := network.StopsWithAmenity(stops, network.AmenityShelter)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	assert.NotNil(t, network.StopsWithAmenity(stops, network.AmenityFoodCourt))
	assert.Empty(t, network.StopsWithAmenity(stops, network.AmenityFoodCourt))
}

func TestLoadSeed_UnknownStop(t *testing.T) {
	fsys := fstest.MapFS{
		"stops.csv":   {Data: []byte("id,name,name_hindi,latitude,longitude,amenities\nA,Alpha,अ,1,1,shelter\n")},
		"routes.yaml": {Data: []byte("routes:\n  - id: r1\n    number: R1\n    active: true\n    stops: [A, B]\n")},
		"buses.csv":   {Data: []byte("id,route_id,bus_number,current_stop_index,next_stop_index,latitude,longitude,speed,capacity,current_occupancy,is_ac,is_accessible,status,delay_minutes,eta_offset_minutes\n")},
	}

	_, err := network.LoadSeed(fsys)
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrInvalidSeed))
}

func TestValidate(t *testing.T) {
	a := network.Stop{ID: "A"}
	b := network.Stop{ID: "B"}
	route := network.Route{ID: "r1", Stops: []network.Stop{a, b}}

	tests := []struct {
		name    string
		routes  []network.Route
		buses   []network.Bus
		wantErr bool
	}{
		{
			name:   "consistent",
			routes: []network.Route{route},
			buses:  []network.Bus{{ID: "b1", RouteID: "r1", CurrentStopIndex: 0, NextStopIndex: 1, Status: network.StatusOnTime}},
		},
		{
			name:    "duplicate stop in route",
			routes:  []network.Route{{ID: "r1", Stops: []network.Stop{a, b, a}}},
			wantErr: true,
		},
		{
			name:    "bus on unknown route",
			routes:  []network.Route{route},
			buses:   []network.Bus{{ID: "b1", RouteID: "r9", Status: network.StatusOnTime}},
			wantErr: true,
		},
		{
			name:    "bus index out of range",
			routes:  []network.Route{route},
			buses:   []network.Bus{{ID: "b1", RouteID: "r1", CurrentStopIndex: 1, NextStopIndex: 2, Status: network.StatusOnTime}},
			wantErr: true,
		},
		{
			name:    "unknown status",
			routes:  []network.Route{route},
			buses:   []network.Bus{{ID: "b1", RouteID: "r1", NextStopIndex: 1, Status: "lost"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := network.Validate([]network.Stop{a, b}, tt.routes, tt.buses)
			if tt.wantErr {
				assert.ErrorIs(t, err, network.ErrInvalidSeed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRoute_StopIndex(t *testing.T) {
	route := network.Route{Stops: []network.Stop{{ID: "A"}, {ID: "B"}, {ID: "C"}}}

	assert.Equal(t, 0, route.StopIndex("A"))
	assert.Equal(t, 2, route.StopIndex("C"))
	assert.Equal(t, -1, route.StopIndex("Z"))
	assert.True(t, route.Serves("B"))

	_, ok := route.StopAt(3)
	assert.False(t, ok)
}

func newTestService(t *testing.T) *network.Service {
	t.Helper()
	seed, err := network.DefaultSeed()
	require.NoError(t, err)

	repo := network.NewInMemoryRepository(seed.Stops, seed.Routes, seed.Buses(time.Now()))
	return network.NewService(network.ServiceConfig{Repository: repo, Logger: zerolog.Nop()})
}

func TestService_Lookups(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	stop, err := svc.Stop(ctx, "stop5")
	require.NoError(t, err)
	assert.Equal(t, "IIT Kanpur", stop.Name)

	_, err = svc.Stop(ctx, "stop99")
	assert.ErrorIs(t, err, network.ErrStopNotFound)

	route, err := svc.Route(ctx, "route6")
	require.NoError(t, err)
	assert.Len(t, route.Stops, 4)

	_, err = svc.Route(ctx, "route99")
	assert.ErrorIs(t, err, network.ErrRouteNotFound)

	_, err = svc.Bus(ctx, "bus99")
	assert.ErrorIs(t, err, network.ErrBusNotFound)
}

func TestService_SnapshotIsCopy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	snap.Routes[0].Stops[0].Name = "changed"
	snap.Buses[0].DelayMinutes = 99

	again, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kanpur Central", again.Routes[0].Stops[0].Name)
	assert.Equal(t, 0, again.Buses[0].DelayMinutes)
}

func TestService_SetBusStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	bus, err := svc.SetBusStatus(ctx, "bus3", network.StatusBreakdown)
	require.NoError(t, err)
	assert.False(t, bus.InService())

	stored, err := svc.Bus(ctx, "bus3")
	require.NoError(t, err)
	assert.Equal(t, network.StatusBreakdown, stored.Status)

	_, err = svc.SetBusStatus(ctx, "bus3", "parked")
	assert.Error(t, err)
}

func TestInMemoryRepository_SaveUnknownBus(t *testing.T) {
	repo := network.NewInMemoryRepository(nil, nil, []network.Bus{{ID: "b1"}})

	err := repo.SaveBuses(context.Background(), []network.Bus{{ID: "b2"}})
	assert.ErrorIs(t, err, network.ErrBusNotFound)
}

func TestInMemoryRepository_RejectsStaleSave(t *testing.T) {
	ctx := context.Background()
	repo := network.NewInMemoryRepository(nil, nil, []network.Bus{{ID: "b1", Status: network.StatusOnTime}})

	read, err := repo.ListBuses(ctx)
	require.NoError(t, err)
	first, second := read[0], read[0]

	first.Status = network.StatusBreakdown
	require.NoError(t, repo.SaveBuses(ctx, []network.Bus{first}))

	second.DelayMinutes = 4
	err = repo.SaveBuses(ctx, []network.Bus{second})
	require.ErrorIs(t, err, network.ErrStaleBus)

	stored, err := repo.ListBuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, network.StatusBreakdown, stored[0].Status, "the later write built on old state must not land")
	assert.Equal(t, 0, stored[0].DelayMinutes)
	assert.Equal(t, int64(1), stored[0].Revision)
}

func TestService_SetBusStatusThenPassSave(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	before, err := svc.Buses(ctx)
	require.NoError(t, err)

	bus, err := svc.SetBusStatus(ctx, "bus1", network.StatusBreakdown)
	require.NoError(t, err)
	assert.Equal(t, before[0].Revision+1, bus.Revision)

	err = svc.SaveBuses(ctx, before)
	require.ErrorIs(t, err, network.ErrStaleBus)

	stored, err := svc.Bus(ctx, "bus1")
	require.NoError(t, err)
	assert.Equal(t, network.StatusBreakdown, stored.Status)
}
