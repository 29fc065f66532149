// Package bootstrap assembles the session controller and its stores from
// configuration. Both the API server and the worker start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nagarbus/nagarbus/internal/app"
	"github.com/nagarbus/nagarbus/internal/config"
	"github.com/nagarbus/nagarbus/internal/database"
	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/preferences"
	"github.com/nagarbus/nagarbus/internal/resilience"
	"github.com/nagarbus/nagarbus/internal/simulator"
)

// Guard names reported on /ready.
const (
	GuardNetwork     = "network-postgres"
	GuardPreferences = "preferences-store"
)

// Options are the per-binary hooks.
type Options struct {
	OnPass  func(ctx context.Context, trigger simulator.Trigger, buses []network.Bus)
	Metrics *simulator.Collector
	Logger  zerolog.Logger
}

// Runtime is a wired controller plus what must be closed on shutdown.
type Runtime struct {
	App      *app.App
	Registry *resilience.Registry

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Build connects the configured stores and creates the controller with the
// rider's preferences loaded.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	log := opts.Logger
	rt := &Runtime{Registry: resilience.NewRegistry()}

	if cfg.NeedsPostgres() {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		if err := database.Migrate(ctx, pool); err != nil {
			rt.Close()
			return nil, err
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	}

	netRepo, err := rt.networkRepository(ctx, cfg, log)
	if err != nil {
		rt.Close()
		return nil, err
	}

	prefsRepo, err := rt.preferencesRepository(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var prefsGuard *resilience.Guard
	if cfg.Preferences.Store != config.StoreMemory {
		gc := resilience.DefaultGuardConfig(GuardPreferences)
		gc.Registry = rt.Registry
		prefsGuard = resilience.NewGuard(gc)
	}

	rt.App = app.New(app.Config{
		Network: network.NewService(network.ServiceConfig{Repository: netRepo, Logger: log}),
		Preferences: preferences.NewService(preferences.ServiceConfig{
			Repository: prefsRepo,
			Profile:    cfg.Preferences.Profile,
			Guard:      prefsGuard,
			Logger:     log,
		}),
		Random:     simulator.NewRand(cfg.Simulation.Seed),
		Background: cfg.Simulation.Background,
		Focused:    cfg.Simulation.Focused,
		OnPass:     opts.OnPass,
		Metrics:    opts.Metrics,
		Logger:     log,
	})

	prefs := rt.App.LoadPreferences(ctx)
	log.Info().
		Str("store", cfg.Preferences.Store).
		Str("profile", cfg.Preferences.Profile).
		Str("language", string(prefs.Language)).
		Msg("preferences loaded")

	return rt, nil
}

func (rt *Runtime) networkRepository(ctx context.Context, cfg *config.Config, log zerolog.Logger) (network.Repository, error) {
	seed, err := network.DefaultSeed()
	if err != nil {
		return nil, fmt.Errorf("load seed network: %w", err)
	}

	if cfg.Simulation.NetworkStore != config.StorePostgres {
		return network.NewInMemoryRepository(seed.Stops, seed.Routes, seed.Buses(time.Now())), nil
	}

	pg := network.NewPostgresRepository(rt.pool)
	stops, err := pg.ListStops(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stored network: %w", err)
	}
	if len(stops) == 0 {
		if err := pg.Import(ctx, seed, time.Now()); err != nil {
			return nil, fmt.Errorf("import seed network: %w", err)
		}
		log.Info().
			Int("stops", len(seed.Stops)).
			Int("routes", len(seed.Routes)).
			Msg("seed network imported")
	}

	gc := resilience.DefaultGuardConfig(GuardNetwork)
	gc.Registry = rt.Registry
	return network.NewGuardedRepository(pg, resilience.NewGuard(gc)), nil
}

func (rt *Runtime) preferencesRepository(ctx context.Context, cfg *config.Config) (preferences.Repository, error) {
	switch cfg.Preferences.Store {
	case config.StorePostgres:
		return preferences.NewPostgresRepository(rt.pool), nil
	case config.StoreRedis:
		client, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		rt.redis = client
		return preferences.NewRedisRepository(client), nil
	default:
		return preferences.NewInMemoryRepository(), nil
	}
}

// Close releases the store connections.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
	return errors.Join(errs...)
}
