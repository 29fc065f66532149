package simulator

import (
	"math/rand/v2"
	"sync"
)

// LockedRand is a RandomSource safe for use by several tickers.
type LockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand returns a seeded random source. A zero seed draws a random seed.
func NewRand(seed uint64) *LockedRand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &LockedRand{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a value in [0, 1).
func (r *LockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

// IntN returns a value in [0, n).
func (r *LockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}
