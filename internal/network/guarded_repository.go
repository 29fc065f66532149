package network

import (
	"context"
	"errors"

	"github.com/nagarbus/nagarbus/internal/resilience"
)

// GuardedRepository runs every call to a remote store through a guard, so
// a struggling database trips the breaker instead of stalling each pass.
type GuardedRepository struct {
	next  Repository
	guard *resilience.Guard
}

var _ Repository = (*GuardedRepository)(nil)

// NewGuardedRepository wraps next.
func NewGuardedRepository(next Repository, guard *resilience.Guard) *GuardedRepository {
	return &GuardedRepository{next: next, guard: guard}
}

// ListStops implements Repository.
func (g *GuardedRepository) ListStops(ctx context.Context) ([]Stop, error) {
	var out []Stop
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.ListStops(ctx)
		return err
	})
	return out, err
}

// ListRoutes implements Repository.
func (g *GuardedRepository) ListRoutes(ctx context.Context) ([]Route, error) {
	var out []Route
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.ListRoutes(ctx)
		return err
	})
	return out, err
}

// ListBuses implements Repository.
func (g *GuardedRepository) ListBuses(ctx context.Context) ([]Bus, error) {
	var out []Bus
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.ListBuses(ctx)
		return err
	})
	return out, err
}

// SaveBuses implements Repository. A failed save writes nothing, so retries
// are safe. Missing and stale buses are not retried.
func (g *GuardedRepository) SaveBuses(ctx context.Context, buses []Bus) error {
	return g.guard.Do(ctx, func(ctx context.Context) error {
		err := g.next.SaveBuses(ctx, buses)
		if errors.Is(err, ErrBusNotFound) || errors.Is(err, ErrStaleBus) {
			return resilience.Permanent(err)
		}
		return err
	})
}
