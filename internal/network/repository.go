package network

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Repository errors.
var (
	ErrStopNotFound  = errors.New("stop not found")
	ErrRouteNotFound = errors.New("route not found")
	ErrBusNotFound   = errors.New("bus not found")
	ErrStaleBus      = errors.New("bus was changed by another writer")
)

// Repository defines persistence for the network and the live fleet.
type Repository interface {
	// ListStops returns every stop in load order.
	ListStops(ctx context.Context) ([]Stop, error)

	// ListRoutes returns every route in load order.
	ListRoutes(ctx context.Context) ([]Route, error)

	// ListBuses returns the current state of every bus.
	ListBuses(ctx context.Context) ([]Bus, error)

	// SaveBuses stores the state of the given buses, replacing existing entries
	// by ID and bumping each Revision. If any stored bus has moved past the
	// revision being saved nothing is written and ErrStaleBus is returned.
	SaveBuses(ctx context.Context, buses []Bus) error
}

// InMemoryRepository keeps the network in process memory.
type InMemoryRepository struct {
	mu     sync.RWMutex
	stops  []Stop
	routes []Route
	buses  []Bus
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a repository holding the given network.
func NewInMemoryRepository(stops []Stop, routes []Route, buses []Bus) *InMemoryRepository {
	r := &InMemoryRepository{}
	for _, s := range stops {
		r.stops = append(r.stops, cloneStop(s))
	}
	for _, rt := range routes {
		r.routes = append(r.routes, cloneRoute(rt))
	}
	r.buses = slices.Clone(buses)
	return r
}

// ListStops returns a copy of all stops.
func (r *InMemoryRepository) ListStops(_ context.Context) ([]Stop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Stop, 0, len(r.stops))
	for _, s := range r.stops {
		out = append(out, cloneStop(s))
	}
	return out, nil
}

// ListRoutes returns a copy of all routes.
func (r *InMemoryRepository) ListRoutes(_ context.Context) ([]Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Route, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, cloneRoute(rt))
	}
	return out, nil
}

// ListBuses returns a copy of the fleet.
func (r *InMemoryRepository) ListBuses(_ context.Context) ([]Bus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.buses), nil
}

// SaveBuses replaces stored buses by ID. Unknown IDs and stale revisions are
// rejected before anything is written.
func (r *InMemoryRepository) SaveBuses(_ context.Context, buses []Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := make(map[string]int, len(r.buses))
	for i, b := range r.buses {
		index[b.ID] = i
	}
	for _, b := range buses {
		i, ok := index[b.ID]
		if !ok {
			return ErrBusNotFound
		}
		if r.buses[i].Revision != b.Revision {
			return fmt.Errorf("%w: %s", ErrStaleBus, b.ID)
		}
	}
	for _, b := range buses {
		b.Revision++
		r.buses[index[b.ID]] = b
	}
	return nil
}
