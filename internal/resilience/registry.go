package resilience

import (
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// DependencyHealth is the observed health of one guarded dependency.
type DependencyHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy reports whether the breaker is closed.
func (h *DependencyHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the breaker is half-open.
func (h *DependencyHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// Registry tracks guards for readiness reporting.
type Registry struct {
	mu     sync.RWMutex
	guards map[string]*trackedGuard
}

type trackedGuard struct {
	guard         *Guard
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{guards: make(map[string]*trackedGuard)}
}

// Register adds or replaces a guard.
func (r *Registry) Register(name string, g *Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[name] = &trackedGuard{guard: g}
}

// RecordSuccess stamps the last success time.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.guards[name]; ok {
		now := time.Now()
		t.lastSuccessAt = &now
	}
}

// RecordFailure stamps the last failure time and error.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.guards[name]; ok {
		now := time.Now()
		t.lastFailureAt = &now
		if err != nil {
			t.lastError = err.Error()
		}
	}
}

// Health returns the health of one dependency, or nil if unknown.
func (r *Registry) Health(name string) *DependencyHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.guards[name]
	if !ok {
		return nil
	}
	return t.health(name)
}

// AllHealth returns the health of every dependency sorted by name.
func (r *Registry) AllHealth() []*DependencyHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.guards))
	for name := range r.guards {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]*DependencyHealth, 0, len(names))
	for _, name := range names {
		out = append(out, r.guards[name].health(name))
	}
	return out
}

func (t *trackedGuard) health(name string) *DependencyHealth {
	return &DependencyHealth{
		Name:          name,
		CircuitState:  t.guard.State(),
		Counts:        t.guard.Counts(),
		LastSuccessAt: t.lastSuccessAt,
		LastFailureAt: t.lastFailureAt,
		LastError:     t.lastError,
	}
}
