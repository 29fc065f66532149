package network_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/resilience"
)

// flakyRepository fails the first n ListBuses calls.
type flakyRepository struct {
	*network.InMemoryRepository
	failures int
	calls    int
}

func (f *flakyRepository) ListBuses(ctx context.Context) ([]network.Bus, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.InMemoryRepository.ListBuses(ctx)
}

func testGuard() *resilience.Guard {
	cfg := resilience.DefaultGuardConfig("network-test")
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = time.Millisecond
	return resilience.NewGuard(cfg)
}

func TestGuardedRepository_RetriesTransientFailures(t *testing.T) {
	inner := &flakyRepository{
		InMemoryRepository: network.NewInMemoryRepository(nil, nil, []network.Bus{{ID: "b1"}}),
		failures:           1,
	}
	repo := network.NewGuardedRepository(inner, testGuard())

	buses, err := repo.ListBuses(context.Background())
	require.NoError(t, err)
	assert.Len(t, buses, 1)
	assert.Equal(t, 2, inner.calls)
}

func TestGuardedRepository_UnknownBusIsNotRetried(t *testing.T) {
	inner := network.NewInMemoryRepository(nil, nil, []network.Bus{{ID: "b1"}})
	repo := network.NewGuardedRepository(inner, testGuard())

	err := repo.SaveBuses(context.Background(), []network.Bus{{ID: "b2"}})
	assert.ErrorIs(t, err, network.ErrBusNotFound)
}

func TestGuardedRepository_StaleSaveIsNotRetried(t *testing.T) {
	ctx := context.Background()
	inner := network.NewInMemoryRepository(nil, nil, []network.Bus{{ID: "b1"}})
	repo := network.NewGuardedRepository(inner, testGuard())

	require.NoError(t, repo.SaveBuses(ctx, []network.Bus{{ID: "b1"}}))

	err := repo.SaveBuses(ctx, []network.Bus{{ID: "b1"}})
	assert.ErrorIs(t, err, network.ErrStaleBus)
}
