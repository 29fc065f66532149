package preferences

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Repository errors.
var (
	ErrPreferencesNotFound = errors.New("preferences not found")
)

// Repository stores encoded preference records keyed by profile.
// Records are opaque to the repository so that decoding, and backfilling of
// older layouts, happens in one place.
type Repository interface {
	// Load returns the stored record or ErrPreferencesNotFound.
	Load(ctx context.Context, profile string) ([]byte, error)

	// Save replaces the stored record.
	Save(ctx context.Context, profile string, data []byte) error
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a new in-memory preferences repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string][]byte)}
}

// Load returns a copy of the stored record.
func (r *InMemoryRepository) Load(_ context.Context, profile string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.records[profile]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	return slices.Clone(data), nil
}

// Save stores a copy of data.
func (r *InMemoryRepository) Save(_ context.Context, profile string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[profile] = slices.Clone(data)
	return nil
}
