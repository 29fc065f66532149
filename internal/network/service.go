package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the network service.
type ServiceConfig struct {
	// Repository stores the network and fleet.
	Repository Repository

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service gives read access to the reference network and write access to
// bus state. Stops and routes are loaded once and cached since they never
// change after load.
type Service struct {
	repo   Repository
	logger zerolog.Logger

	mu     sync.RWMutex
	stops  []Stop
	routes []Route
	loaded bool
}

// NewService creates a new network service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}
}

func (s *Service) reference(ctx context.Context) ([]Stop, []Route, error) {
	s.mu.RLock()
	if s.loaded {
		stops, routes := s.stops, s.routes
		s.mu.RUnlock()
		return stops, routes, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.stops, s.routes, nil
	}

	stops, err := s.repo.ListStops(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load stops: %w", err)
	}
	routes, err := s.repo.ListRoutes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load routes: %w", err)
	}

	s.stops, s.routes, s.loaded = stops, routes, true
	s.logger.Debug().
		Int("stops", len(stops)).
		Int("routes", len(routes)).
		Msg("network reference data loaded")
	return stops, routes, nil
}

// Snapshot returns copies of all stops, routes and buses.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	stops, routes, err := s.reference(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	buses, err := s.repo.ListBuses(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load buses: %w", err)
	}

	snap := Snapshot{
		Stops:  make([]Stop, 0, len(stops)),
		Routes: make([]Route, 0, len(routes)),
		Buses:  buses,
	}
	for _, st := range stops {
		snap.Stops = append(snap.Stops, cloneStop(st))
	}
	for _, rt := range routes {
		snap.Routes = append(snap.Routes, cloneRoute(rt))
	}
	return snap, nil
}

// Stops returns all stops.
func (s *Service) Stops(ctx context.Context) ([]Stop, error) {
	stops, _, err := s.reference(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Stop, 0, len(stops))
	for _, st := range stops {
		out = append(out, cloneStop(st))
	}
	return out, nil
}

// Routes returns all routes.
func (s *Service) Routes(ctx context.Context) ([]Route, error) {
	_, routes, err := s.reference(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Route, 0, len(routes))
	for _, rt := range routes {
		out = append(out, cloneRoute(rt))
	}
	return out, nil
}

// Buses returns the current fleet.
func (s *Service) Buses(ctx context.Context) ([]Bus, error) {
	return s.repo.ListBuses(ctx)
}

// Stop returns a single stop.
func (s *Service) Stop(ctx context.Context, id string) (Stop, error) {
	stops, _, err := s.reference(ctx)
	if err != nil {
		return Stop{}, err
	}
	for _, st := range stops {
		if st.ID == id {
			return cloneStop(st), nil
		}
	}
	return Stop{}, ErrStopNotFound
}

// Route returns a single route.
func (s *Service) Route(ctx context.Context, id string) (Route, error) {
	_, routes, err := s.reference(ctx)
	if err != nil {
		return Route{}, err
	}
	for _, rt := range routes {
		if rt.ID == id {
			return cloneRoute(rt), nil
		}
	}
	return Route{}, ErrRouteNotFound
}

// Bus returns a single bus.
func (s *Service) Bus(ctx context.Context, id string) (Bus, error) {
	buses, err := s.repo.ListBuses(ctx)
	if err != nil {
		return Bus{}, err
	}
	for _, b := range buses {
		if b.ID == id {
			return b, nil
		}
	}
	return Bus{}, ErrBusNotFound
}

// SaveBuses persists advanced bus state.
func (s *Service) SaveBuses(ctx context.Context, buses []Bus) error {
	return s.repo.SaveBuses(ctx, buses)
}

// SetBusStatus overrides the operational status of a bus, for example to
// take it out of service after a breakdown report.
func (s *Service) SetBusStatus(ctx context.Context, id string, status BusStatus) (Bus, error) {
	if !status.IsValid() {
		return Bus{}, fmt.Errorf("unknown bus status %q", status)
	}
	bus, err := s.Bus(ctx, id)
	if err != nil {
		return Bus{}, err
	}
	bus.Status = status
	if err := s.repo.SaveBuses(ctx, []Bus{bus}); err != nil {
		return Bus{}, err
	}
	bus.Revision++

	s.logger.Info().
		Str("bus_id", id).
		Str("status", string(status)).
		Msg("bus status changed")
	return bus, nil
}
