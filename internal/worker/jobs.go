// Package worker runs the fleet simulation in the background and accepts
// operator jobs from Pub/Sub.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/simulator"
)

// Job types accepted on the jobs subscription.
const (
	JobAdvanceFleet = "advance_fleet"
	JobSetStatus    = "set_status"
	JobFocus        = "focus"
	JobUnfocus      = "unfocus"
	JobHealthCheck  = "health_check"
)

// JobMessage is the payload of a job message.
type JobMessage struct {
	JobType string `json:"job_type"`
	BusID   string `json:"bus_id,omitempty"`
	RouteID string `json:"route_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Fleet is what jobs act on. *app.App implements it.
type Fleet interface {
	Tick(ctx context.Context, trigger simulator.Trigger) error
	SetBusStatus(ctx context.Context, busID string, status network.BusStatus) (network.Bus, error)
	Focus(ctx context.Context, target simulator.Target) error
	Unfocus()
}

// Outcome says what to do with a message after handling it.
type Outcome int

// Outcomes.
const (
	// Ack removes the message.
	Ack Outcome = iota
	// Nack asks for redelivery.
	Nack
)

// ErrPermanent marks a job that will fail the same way on redelivery.
var ErrPermanent = errors.New("permanent job failure")

// Dispatcher routes job messages to the fleet.
type Dispatcher struct {
	fleet  Fleet
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(fleet Fleet, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{fleet: fleet, logger: logger}
}

// Handle runs the job in data. Unknown and permanently failing jobs are
// acked so they are not redelivered. Unparseable messages and transient
// failures are nacked.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) (Outcome, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Nack, fmt.Errorf("parse job: %w", err)
	}

	var err error
	switch msg.JobType {
	case JobAdvanceFleet:
		err = d.fleet.Tick(ctx, simulator.TriggerManual)
	case JobSetStatus:
		err = d.setStatus(ctx, msg)
	case JobFocus:
		err = d.fleet.Focus(ctx, simulator.Target{BusID: msg.BusID, RouteID: msg.RouteID})
		if errors.Is(err, network.ErrBusNotFound) || errors.Is(err, network.ErrRouteNotFound) {
			err = fmt.Errorf("%w: %w", ErrPermanent, err)
		}
	case JobUnfocus:
		d.fleet.Unfocus()
	case JobHealthCheck:
		d.logger.Debug().Msg("health check job received")
	default:
		d.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return Ack, nil
	}

	if err != nil {
		if errors.Is(err, ErrPermanent) {
			return Ack, err
		}
		return Nack, err
	}
	return Ack, nil
}

func (d *Dispatcher) setStatus(ctx context.Context, msg JobMessage) error {
	status := network.BusStatus(msg.Status)
	if msg.BusID == "" || !status.IsValid() {
		return fmt.Errorf("%w: set_status needs bus_id and a valid status, got %q/%q", ErrPermanent, msg.BusID, msg.Status)
	}
	_, err := d.fleet.SetBusStatus(ctx, msg.BusID, status)
	if errors.Is(err, network.ErrBusNotFound) {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	return err
}
