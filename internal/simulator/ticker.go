package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nagarbus/nagarbus/internal/network"
)

// Trigger identifies which timer started a pass.
type Trigger string

const (
	TriggerBackground Trigger = "background"
	TriggerFocused    Trigger = "focused"
	TriggerManual     Trigger = "manual"
)

// Interval bounds for the two timers.
const (
	DefaultBackgroundInterval = 30 * time.Second
	DefaultFocusedInterval    = 5 * time.Second
	MinFocusedInterval        = 5 * time.Second
	MaxFocusedInterval        = 10 * time.Second
)

// Advancer runs one simulation pass over the whole fleet.
type Advancer interface {
	AdvanceFleet(ctx context.Context, now time.Time) (PassResult, error)
}

// Target is the bus or route a rider is currently watching.
type Target struct {
	BusID   string `json:"busId,omitempty"`
	RouteID string `json:"routeId,omitempty"`
}

// IsZero reports whether nothing is being watched.
func (t Target) IsZero() bool {
	return t.BusID == "" && t.RouteID == ""
}

// TickerConfig holds configuration for the simulation ticker.
type TickerConfig struct {
	// Advancer performs each pass.
	Advancer Advancer

	// Background is the coarse refresh interval (default: 30s).
	Background time.Duration

	// Focused is the fine refresh interval while a target is watched
	// (default: 5s, clamped to 5s..10s).
	Focused time.Duration

	// OnPass is called after every successful pass.
	OnPass func(ctx context.Context, trigger Trigger, buses []network.Bus)

	// Metrics is optional.
	Metrics *Collector

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	// Logger for ticker operations.
	Logger zerolog.Logger
}

// Ticker drives the fleet with a background timer and, while a target is
// watched, a faster focused timer. All passes run on one goroutine so a pass
// always completes before the next starts.
type Ticker struct {
	advancer   Advancer
	background time.Duration
	focused    time.Duration
	onPass     func(ctx context.Context, trigger Trigger, buses []network.Bus)
	metrics    *Collector
	now        func() time.Time
	logger     zerolog.Logger

	mu     sync.Mutex
	target Target
	wake   chan struct{}
}

// NewTicker creates a ticker. Call Run to start it.
func NewTicker(cfg TickerConfig) *Ticker {
	background := cfg.Background
	if background <= 0 {
		background = DefaultBackgroundInterval
	}

	focused := cfg.Focused
	if focused <= 0 {
		focused = DefaultFocusedInterval
	}
	focused = min(max(focused, MinFocusedInterval), MaxFocusedInterval)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Ticker{
		advancer:   cfg.Advancer,
		background: background,
		focused:    focused,
		onPass:     cfg.OnPass,
		metrics:    cfg.Metrics,
		now:        now,
		logger:     cfg.Logger,
		wake:       make(chan struct{}, 1),
	}
}

// Intervals returns the effective background and focused intervals.
func (t *Ticker) Intervals() (background, focused time.Duration) {
	return t.background, t.focused
}

// Focus starts the focused timer for target. A zero target stops it.
func (t *Ticker) Focus(target Target) {
	t.mu.Lock()
	t.target = target
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Unfocus stops the focused timer.
func (t *Ticker) Unfocus() {
	t.Focus(Target{})
}

// Target returns what is currently being watched.
func (t *Ticker) Target() Target {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// Run blocks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	bg := time.NewTicker(t.background)
	defer bg.Stop()

	var (
		fast   *time.Ticker
		fastCh <-chan time.Time
	)
	stopFast := func() {
		if fast != nil {
			fast.Stop()
			fast, fastCh = nil, nil
		}
	}
	defer stopFast()

	t.logger.Info().
		Dur("background", t.background).
		Dur("focused", t.focused).
		Msg("simulation ticker started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("simulation ticker stopped")
			return ctx.Err()

		case <-bg.C:
			_ = t.Tick(ctx, TriggerBackground)

		case <-fastCh:
			_ = t.Tick(ctx, TriggerFocused)

		case <-t.wake:
			target := t.Target()
			stopFast()
			if !target.IsZero() {
				fast = time.NewTicker(t.focused)
				fastCh = fast.C
			}
			if t.metrics != nil {
				t.metrics.SetFocused(!target.IsZero())
			}
			t.logger.Debug().
				Str("bus_id", target.BusID).
				Str("route_id", target.RouteID).
				Msg("focus changed")
		}
	}
}

// Tick runs a single pass immediately. Errors are logged and returned.
func (t *Ticker) Tick(ctx context.Context, trigger Trigger) error {
	start := time.Now()
	res, err := t.advancer.AdvanceFleet(ctx, t.now())
	if err != nil {
		t.logger.Error().Err(err).Str("trigger", string(trigger)).Msg("simulation pass failed")
		if t.metrics != nil {
			t.metrics.PassErrors.Inc()
		}
		return err
	}

	if t.metrics != nil {
		t.metrics.ObservePass(trigger, res, time.Since(start))
	}
	t.logger.Debug().
		Str("trigger", string(trigger)).
		Int("moved", res.Moved).
		Int("arrivals", res.Arrivals).
		Int("unchanged", res.Unchanged).
		Msg("simulation pass complete")

	if t.onPass != nil {
		t.onPass(ctx, trigger, res.Buses)
	}
	return nil
}
