// Package main provides the entrypoint for the Nagar Bus simulation worker.
// It advances the fleet on its own timers, publishes positions over NATS
// and takes operator jobs from Pub/Sub.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/nagarbus/nagarbus/internal/bootstrap"
	"github.com/nagarbus/nagarbus/internal/config"
	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/publisher"
	"github.com/nagarbus/nagarbus/internal/resilience"
	"github.com/nagarbus/nagarbus/internal/simulator"
	"github.com/nagarbus/nagarbus/internal/telemetry"
	"github.com/nagarbus/nagarbus/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "nagarbus-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Nagar Bus worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	collector := simulator.NewCollector(cfg.Simulation.Background, cfg.Simulation.Focused)

	var nc *nats.Conn
	var onPass func(context.Context, simulator.Trigger, []network.Bus)
	if cfg.NATS.URL != "" {
		nc, err = publisher.ConnectNATS(cfg.NATS.URL, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("failed to connect to nats")
		}
		defer publisher.Close(nc)

		pub := publisher.New(publisher.Config{
			Conn:          nc,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Guard:         resilience.NewGuard(resilience.DefaultGuardConfig("positions-nats")),
			Metrics:       collector,
			Logger:        log,
		})
		onPass = pub.OnPass
		log.Info().Str("url", cfg.NATS.URL).Str("subject_prefix", cfg.NATS.SubjectPrefix).Msg("publishing positions")
	}

	rt, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		OnPass:  onPass,
		Metrics: collector,
		Logger:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start controller")
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close stores")
		}
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = collector.Serve(cfg.MetricsAddr, log)
	}

	var wg conc.WaitGroup
	if cfg.Simulation.Enabled {
		wg.Go(func() {
			if runErr := rt.App.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.Error().Err(runErr).Msg("simulation stopped")
				stop()
			}
		})
	} else {
		log.Warn().Msg("simulation timers disabled, the worker only serves jobs")
	}

	if cfg.PubSub.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Dispatcher:       worker.NewDispatcher(rt.App, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		wg.Go(func() {
			if startErr := handler.Start(ctx); startErr != nil && !errors.Is(startErr, context.Canceled) {
				log.Error().Err(startErr).Msg("pubsub handler stopped")
				stop()
			}
		})
	}

	background, focused := rt.App.Ticker().Intervals()
	log.Info().
		Str("background", background.String()).
		Str("focused", focused.String()).
		Int("guarded_dependencies", len(rt.Registry.AllHealth())).
		Msg("worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	wg.Wait()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server forced to shutdown")
		}
	}

	log.Info().Msg("worker stopped")
}
