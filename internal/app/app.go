// Package app holds the state of one rider session: the network, the
// simulated fleet, the current journey plan and the rider's preferences.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/planner"
	"github.com/nagarbus/nagarbus/internal/preferences"
	"github.com/nagarbus/nagarbus/internal/simulator"
	"github.com/nagarbus/nagarbus/internal/telemetry"
)

// Controller errors.
var (
	ErrNoCurrentPlan = errors.New("no current journey plan")
)

// Config holds configuration for the controller.
type Config struct {
	// Network provides stops, routes and bus state.
	Network *network.Service

	// Planner plans journeys. Default: planner.New with Logger.
	Planner *planner.Planner

	// Preferences holds the rider's preferences. Default: in-memory only.
	Preferences *preferences.Service

	// Random drives the delay model. Default: simulator.NewRand(0).
	Random simulator.RandomSource

	// Background and Focused are the ticker intervals.
	Background time.Duration
	Focused    time.Duration

	// OnPass is called with the fleet after every ticker pass.
	OnPass func(ctx context.Context, trigger simulator.Trigger, buses []network.Bus)

	// Metrics is optional.
	Metrics *simulator.Collector

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// Logger for controller operations.
	Logger zerolog.Logger
}

// App is the session controller. It implements simulator.Advancer and owns
// the ticker that calls it.
type App struct {
	network *network.Service
	planner *planner.Planner
	prefs   *preferences.Service
	rnd     simulator.RandomSource
	ticker  *simulator.Ticker
	now     func() time.Time
	logger  zerolog.Logger

	// passMu serializes simulation passes from every trigger.
	passMu sync.Mutex

	planMu   sync.RWMutex
	current  *planner.JourneyPlan
	planning atomic.Bool
}

var _ simulator.Advancer = (*App)(nil)

// New creates a controller.
func New(cfg Config) *App {
	if cfg.Planner == nil {
		cfg.Planner = planner.New(planner.Config{Logger: cfg.Logger})
	}
	if cfg.Preferences == nil {
		cfg.Preferences = preferences.NewService(preferences.ServiceConfig{Logger: cfg.Logger})
	}
	if cfg.Random == nil {
		cfg.Random = simulator.NewRand(0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	a := &App{
		network: cfg.Network,
		planner: cfg.Planner,
		prefs:   cfg.Preferences,
		rnd:     cfg.Random,
		now:     cfg.Now,
		logger:  cfg.Logger,
	}
	a.ticker = simulator.NewTicker(simulator.TickerConfig{
		Advancer:   a,
		Background: cfg.Background,
		Focused:    cfg.Focused,
		OnPass:     cfg.OnPass,
		Metrics:    cfg.Metrics,
		Now:        cfg.Now,
		Logger:     cfg.Logger,
	})
	return a
}

// Run drives the background and focused timers until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.ticker.Run(ctx)
}

// Ticker returns the simulation ticker.
func (a *App) Ticker() *simulator.Ticker {
	return a.ticker
}

// Network returns the network service.
func (a *App) Network() *network.Service {
	return a.network
}

// Now returns the controller clock.
func (a *App) Now() time.Time {
	return a.now()
}

// AdvanceFleet runs one pass over the whole fleet and stores the result.
func (a *App) AdvanceFleet(ctx context.Context, now time.Time) (res simulator.PassResult, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "advance fleet")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pass failed")
		}
		span.End()
	}()

	a.passMu.Lock()
	defer a.passMu.Unlock()

	routes, err := a.network.Routes(ctx)
	if err != nil {
		return simulator.PassResult{}, err
	}
	buses, err := a.network.Buses(ctx)
	if err != nil {
		return simulator.PassResult{}, err
	}

	res = simulator.Pass(buses, routes, now, a.rnd)
	span.SetAttributes(
		attribute.Int("fleet.buses", len(res.Buses)),
		attribute.Int("fleet.moved", res.Moved),
		attribute.Int("fleet.arrivals", res.Arrivals),
	)
	if err := a.network.SaveBuses(ctx, res.Buses); err != nil {
		return simulator.PassResult{}, fmt.Errorf("save buses: %w", err)
	}
	for i := range res.Buses {
		res.Buses[i].Revision++
	}
	return res, nil
}

// AdvancePositions advances every bus to now and returns the new fleet.
func (a *App) AdvancePositions(ctx context.Context, now time.Time) ([]network.Bus, error) {
	res, err := a.AdvanceFleet(ctx, now)
	if err != nil {
		return nil, err
	}
	return res.Buses, nil
}

// Focus starts the focused timer for a watched bus or route.
func (a *App) Focus(ctx context.Context, target simulator.Target) error {
	if target.BusID != "" {
		if _, err := a.network.Bus(ctx, target.BusID); err != nil {
			return err
		}
	}
	if target.RouteID != "" {
		if _, err := a.network.Route(ctx, target.RouteID); err != nil {
			return err
		}
	}
	a.ticker.Focus(target)
	return nil
}

// Unfocus stops the focused timer.
func (a *App) Unfocus() {
	a.ticker.Unfocus()
}

// Snapshot returns copies of the stops, routes and buses.
func (a *App) Snapshot(ctx context.Context) (network.Snapshot, error) {
	return a.network.Snapshot(ctx)
}

// PlanJourney plans between two stops, makes the result the current plan
// and records it in the rider's history.
func (a *App) PlanJourney(ctx context.Context, originID, destinationID string) (planner.JourneyPlan, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "plan journey", trace.WithAttributes(
		attribute.String("journey.origin", originID),
		attribute.String("journey.destination", destinationID),
	))
	defer span.End()

	a.planning.Store(true)
	defer a.planning.Store(false)

	if originID == "" || destinationID == "" {
		return planner.JourneyPlan{}, &planner.InvalidCallError{Field: "stop", Reason: "origin and destination are required"}
	}

	origin, err := a.network.Stop(ctx, originID)
	if err != nil {
		return planner.JourneyPlan{}, fmt.Errorf("origin %s: %w", originID, err)
	}
	destination, err := a.network.Stop(ctx, destinationID)
	if err != nil {
		return planner.JourneyPlan{}, fmt.Errorf("destination %s: %w", destinationID, err)
	}

	routes, err := a.network.Routes(ctx)
	if err != nil {
		return planner.JourneyPlan{}, err
	}
	buses, err := a.network.Buses(ctx)
	if err != nil {
		return planner.JourneyPlan{}, err
	}

	plan, err := a.planner.Plan(origin, destination, routes, buses, a.now())
	if err != nil {
		return planner.JourneyPlan{}, err
	}

	span.SetAttributes(attribute.Int("journey.options", len(plan.Options)))

	a.planMu.Lock()
	a.current = &plan
	a.planMu.Unlock()

	a.prefs.AddRecentJourney(ctx, plan)
	return plan, nil
}

// IsPlanning reports whether a plan is being computed. Callers that want a
// single plan in flight check it before calling PlanJourney.
func (a *App) IsPlanning() bool {
	return a.planning.Load()
}

// CurrentPlan returns the most recent plan.
func (a *App) CurrentPlan() (planner.JourneyPlan, error) {
	a.planMu.RLock()
	defer a.planMu.RUnlock()
	if a.current == nil {
		return planner.JourneyPlan{}, ErrNoCurrentPlan
	}
	return *a.current, nil
}

// ClearCurrentPlan forgets the current plan. History is kept.
func (a *App) ClearCurrentPlan() {
	a.planMu.Lock()
	a.current = nil
	a.planMu.Unlock()
}

// Preferences returns a copy of the rider's preferences.
func (a *App) Preferences() preferences.Preferences {
	return a.prefs.Get()
}

// LoadPreferences reloads preferences from the store.
func (a *App) LoadPreferences(ctx context.Context) preferences.Preferences {
	return a.prefs.Load(ctx)
}

// SetLanguage changes the interface language.
func (a *App) SetLanguage(ctx context.Context, code string) (preferences.Preferences, error) {
	return a.prefs.SetLanguage(ctx, code)
}

// AddRecentSearch records a search query.
func (a *App) AddRecentSearch(ctx context.Context, text string) (preferences.Preferences, error) {
	return a.prefs.AddRecentSearch(ctx, text)
}

// ToggleFavoriteRoute adds or removes a known route from the favorites.
func (a *App) ToggleFavoriteRoute(ctx context.Context, routeID string) (preferences.Preferences, error) {
	if routeID != "" {
		if _, err := a.network.Route(ctx, routeID); err != nil {
			return preferences.Preferences{}, err
		}
	}
	return a.prefs.ToggleFavoriteRoute(ctx, routeID)
}

// ToggleFavoriteStop adds or removes a known stop from the favorites.
func (a *App) ToggleFavoriteStop(ctx context.Context, stopID string) (preferences.Preferences, error) {
	if stopID != "" {
		if _, err := a.network.Stop(ctx, stopID); err != nil {
			return preferences.Preferences{}, err
		}
	}
	return a.prefs.ToggleFavoriteStop(ctx, stopID)
}

// Tick runs one pass now, outside the timers.
func (a *App) Tick(ctx context.Context, trigger simulator.Trigger) error {
	return a.ticker.Tick(ctx, trigger)
}

// SetBusStatus overrides a bus's status, for example after a breakdown report.
func (a *App) SetBusStatus(ctx context.Context, busID string, status network.BusStatus) (network.Bus, error) {
	a.passMu.Lock()
	defer a.passMu.Unlock()
	return a.network.SetBusStatus(ctx, busID, status)
}
