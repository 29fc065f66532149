package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/simulator"
	"github.com/nagarbus/nagarbus/internal/worker"
)

type fakeFleet struct {
	ticks    []simulator.Trigger
	tickErr  error
	statuses map[string]network.BusStatus
	target   simulator.Target
}

func (f *fakeFleet) Tick(_ context.Context, trigger simulator.Trigger) error {
	f.ticks = append(f.ticks, trigger)
	return f.tickErr
}

func (f *fakeFleet) SetBusStatus(_ context.Context, busID string, status network.BusStatus) (network.Bus, error) {
	if busID != "bus1" {
		return network.Bus{}, network.ErrBusNotFound
	}
	if f.statuses == nil {
		f.statuses = make(map[string]network.BusStatus)
	}
	f.statuses[busID] = status
	return network.Bus{ID: busID, Status: status}, nil
}

func (f *fakeFleet) Focus(_ context.Context, target simulator.Target) error {
	if target.RouteID == "missing" {
		return network.ErrRouteNotFound
	}
	f.target = target
	return nil
}

func (f *fakeFleet) Unfocus() {
	f.target = simulator.Target{}
}

func TestDispatcher_Handle(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		tickErr error
		want    worker.Outcome
		wantErr bool
		check   func(t *testing.T, f *fakeFleet)
	}{
		{
			name:    "advance fleet",
			payload: `{"job_type":"advance_fleet"}`,
			want:    worker.Ack,
			check: func(t *testing.T, f *fakeFleet) {
				assert.Equal(t, []simulator.Trigger{simulator.TriggerManual}, f.ticks)
			},
		},
		{
			name:    "advance fleet transient failure",
			payload: `{"job_type":"advance_fleet"}`,
			tickErr: errors.New("db down"),
			want:    worker.Nack,
			wantErr: true,
		},
		{
			name:    "set status",
			payload: `{"job_type":"set_status","bus_id":"bus1","status":"breakdown"}`,
			want:    worker.Ack,
			check: func(t *testing.T, f *fakeFleet) {
				assert.Equal(t, network.StatusBreakdown, f.statuses["bus1"])
			},
		},
		{
			name:    "set status invalid",
			payload: `{"job_type":"set_status","bus_id":"bus1","status":"parked"}`,
			want:    worker.Ack,
			wantErr: true,
		},
		{
			name:    "set status unknown bus",
			payload: `{"job_type":"set_status","bus_id":"bus9","status":"on_time"}`,
			want:    worker.Ack,
			wantErr: true,
		},
		{
			name:    "focus",
			payload: `{"job_type":"focus","route_id":"route2"}`,
			want:    worker.Ack,
			check: func(t *testing.T, f *fakeFleet) {
				assert.Equal(t, "route2", f.target.RouteID)
			},
		},
		{
			name:    "focus unknown route",
			payload: `{"job_type":"focus","route_id":"missing"}`,
			want:    worker.Ack,
			wantErr: true,
		},
		{
			name:    "unfocus",
			payload: `{"job_type":"unfocus"}`,
			want:    worker.Ack,
			check: func(t *testing.T, f *fakeFleet) {
				assert.True(t, f.target.IsZero())
			},
		},
		{
			name:    "unknown job",
			payload: `{"job_type":"repaint_buses"}`,
			want:    worker.Ack,
		},
		{
			name:    "malformed",
			payload: `{"job_type":`,
			want:    worker.Nack,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fleet := &fakeFleet{tickErr: tt.tickErr, target: simulator.Target{BusID: "bus1"}}
			d := worker.NewDispatcher(fleet, zerolog.Nop())

			outcome, err := d.Handle(context.Background(), []byte(tt.payload))
			assert.Equal(t, tt.want, outcome)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.check != nil {
				tt.check(t, fleet)
			}
		})
	}
}
