// Package resilience wraps calls to backing stores and brokers with a
// circuit breaker and bounded exponential retry.
package resilience

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the breaker in front of one store or broker.
type BreakerConfig struct {
	// Name identifies the dependency in logs and readiness reports.
	Name string

	// HalfOpenCalls is how many trial calls pass while half-open. Default: 1
	HalfOpenCalls uint32

	// OpenFor is how long the breaker rejects calls before trying again.
	// Default: 30 seconds
	OpenFor time.Duration

	// MinCalls and FailureRatio decide when a closed breaker opens: after at
	// least MinCalls calls of which FailureRatio or more failed.
	// Defaults: 5 and 0.5
	MinCalls     uint32
	FailureRatio float64

	// TripWhen replaces the MinCalls/FailureRatio rule when set.
	TripWhen func(counts gobreaker.Counts) bool

	// OnStateChange is called on every state transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultBreakerConfig returns the breaker settings used for stores.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:          name,
		HalfOpenCalls: 1,
		OpenFor:       30 * time.Second,
		MinCalls:      5,
		FailureRatio:  0.5,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	def := DefaultBreakerConfig(c.Name)
	if c.HalfOpenCalls == 0 {
		c.HalfOpenCalls = def.HalfOpenCalls
	}
	if c.OpenFor == 0 {
		c.OpenFor = def.OpenFor
	}
	if c.MinCalls == 0 {
		c.MinCalls = def.MinCalls
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = def.FailureRatio
	}
	return c
}

func (c BreakerConfig) tripRule() func(gobreaker.Counts) bool {
	if c.TripWhen != nil {
		return c.TripWhen
	}
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < c.MinCalls {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
	}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[struct{}] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenCalls,
		Timeout:       cfg.OpenFor,
		ReadyToTrip:   cfg.tripRule(),
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  answered,
	})
}

// answered reports whether the dependency did its job. Errors marked
// Permanent are the caller's problem (an unknown bus, a stale write, a bad
// payload), so they never count towards opening the circuit.
func answered(err error) bool {
	if err == nil {
		return true
	}
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}
