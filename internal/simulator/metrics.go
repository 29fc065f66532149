package simulator

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nagarbus/nagarbus/internal/network"
)

// Collector holds Prometheus instruments for the simulator on a private registry.
type Collector struct {
	reg *prometheus.Registry

	Passes     *prometheus.CounterVec // trigger label
	PassErrors prometheus.Counter
	Moved      prometheus.Counter
	Arrivals   prometheus.Counter
	Fleet      prometheus.Gauge
	Delayed    prometheus.Gauge
	Focused    prometheus.Gauge
	BusDelay   *prometheus.GaugeVec // bus_id label

	Published     prometheus.Counter
	PublishErrors prometheus.Counter

	PassDuration prometheus.Histogram

	BackgroundInterval prometheus.Gauge // seconds
	FocusedInterval    prometheus.Gauge // seconds
}

// NewCollector creates and registers the simulator metrics.
func NewCollector(background, focused time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_passes_total",
			Help: "Simulation passes by trigger.",
		}, []string{"trigger"}),
		PassErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_pass_errors_total",
			Help: "Simulation passes that failed to load or save fleet state.",
		}),
		Moved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_buses_moved_total",
			Help: "Bus position updates applied.",
		}),
		Arrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_stop_arrivals_total",
			Help: "Stop arrivals (index rollovers).",
		}),
		Fleet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_fleet_size",
			Help: "Buses seen in the last pass.",
		}),
		Delayed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_delayed_buses",
			Help: "Buses reported delayed after the last pass.",
		}),
		Focused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_focused",
			Help: "1 while a bus or route is being watched, 0 otherwise.",
		}),
		BusDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simulator_bus_delay_minutes",
			Help: "Current delay per bus.",
		}, []string{"bus_id"}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_positions_published_total",
			Help: "Bus positions published.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_position_publish_errors_total",
			Help: "Bus position publish failures.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_pass_duration_seconds",
			Help:    "Duration of a simulation pass including persistence.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		BackgroundInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_background_interval_seconds",
			Help: "Background refresh interval in seconds.",
		}),
		FocusedInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_focused_interval_seconds",
			Help: "Focused refresh interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Passes, c.PassErrors, c.Moved, c.Arrivals,
		c.Fleet, c.Delayed, c.Focused, c.BusDelay,
		c.Published, c.PublishErrors, c.PassDuration,
		c.BackgroundInterval, c.FocusedInterval,
	)

	c.BackgroundInterval.Set(background.Seconds())
	c.FocusedInterval.Set(focused.Seconds())

	return c
}

// ObservePass records the outcome of one pass.
func (c *Collector) ObservePass(trigger Trigger, res PassResult, took time.Duration) {
	c.Passes.WithLabelValues(string(trigger)).Inc()
	c.Moved.Add(float64(res.Moved))
	c.Arrivals.Add(float64(res.Arrivals))
	c.PassDuration.Observe(took.Seconds())
	c.Fleet.Set(float64(len(res.Buses)))

	delayed := 0
	for _, b := range res.Buses {
		if b.Status == network.StatusDelayed {
			delayed++
		}
		c.BusDelay.WithLabelValues(b.ID).Set(float64(b.DelayMinutes))
	}
	c.Delayed.Set(float64(delayed))
}

// SetFocused flips the focus gauge.
func (c *Collector) SetFocused(on bool) {
	if on {
		c.Focused.Set(1)
	} else {
		c.Focused.Set(0)
	}
}

// PublishOK implements the publisher metrics hook.
func (c *Collector) PublishOK() { c.Published.Inc() }

// PublishFailed implements the publisher metrics hook.
func (c *Collector) PublishFailed() { c.PublishErrors.Inc() }

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on addr.
func (c *Collector) Serve(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}
