package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for guarded operations.
var (
	// ErrCircuitOpen is returned without calling the operation while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// GuardConfig holds configuration for a Guard.
type GuardConfig struct {
	// Name identifies the guarded dependency (e.g. "preferences-redis").
	Name string

	// Timeout bounds each attempt. Default: 2 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Default: 2
	MaxRetries uint64

	// InitialInterval is the first retry delay. Default: 50ms
	InitialInterval time.Duration

	// MaxInterval caps the retry delay. Default: 1 second
	MaxInterval time.Duration

	// Breaker overrides the breaker settings.
	Breaker *BreakerConfig

	// Registry receives success and failure reports when set.
	Registry *Registry
}

// DefaultGuardConfig returns the settings used for store writes.
func DefaultGuardConfig(name string) GuardConfig {
	cb := DefaultBreakerConfig(name)
	return GuardConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		Breaker:         &cb,
	}
}

// Guard runs operations through a circuit breaker with retry.
type Guard struct {
	cb       *gobreaker.CircuitBreaker[struct{}]
	config   GuardConfig
	registry *Registry
}

// NewGuard creates a guard and registers it when cfg.Registry is set.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = time.Second
	}

	cbCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		cbCfg = *cfg.Breaker
	}

	g := &Guard{
		cb:       newBreaker(cbCfg),
		config:   cfg,
		registry: cfg.Registry,
	}
	if g.registry != nil {
		g.registry.Register(cfg.Name, g)
	}
	return g
}

// Name returns the guarded dependency name.
func (g *Guard) Name() string {
	return g.config.Name
}

// Do runs op, retrying transient failures with exponential backoff.
// Errors wrapped with Permanent are not retried and do not count against
// the dependency's health. Returns ErrCircuitOpen immediately while the
// breaker is open.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.config.InitialInterval
	bo.MaxInterval = g.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, g.config.MaxRetries), ctx)

	var rejected bool
	attempt := func() error {
		_, err := g.cb.Execute(func() (struct{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
			defer cancel()
			return struct{}{}, op(attemptCtx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			rejected = false
			return backoff.Permanent(ErrCircuitOpen)
		}
		rejected = err != nil && answered(err)
		return err
	}

	err := backoff.Retry(attempt, policy)
	if g.registry != nil {
		if err != nil && !rejected {
			g.registry.RecordFailure(g.config.Name, err)
		} else {
			g.registry.RecordSuccess(g.config.Name)
		}
	}
	return err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// State returns the breaker state.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

// Counts returns the breaker counters.
func (g *Guard) Counts() gobreaker.Counts {
	return g.cb.Counts()
}
