package preferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces preference records.
const RedisKeyPrefix = "preferences:"

// RedisRepository is a Redis implementation of Repository.
type RedisRepository struct {
	client redis.UniversalClient
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository creates a new Redis preferences repository.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

// Load retrieves the record for a profile.
func (r *RedisRepository) Load(ctx context.Context, profile string) ([]byte, error) {
	data, err := r.client.Get(ctx, RedisKeyPrefix+profile).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("load preferences %s: %w", profile, err)
	}
	return data, nil
}

// Save stores the record for a profile without expiry.
func (r *RedisRepository) Save(ctx context.Context, profile string, data []byte) error {
	if err := r.client.Set(ctx, RedisKeyPrefix+profile, data, 0).Err(); err != nil {
		return fmt.Errorf("save preferences %s: %w", profile, err)
	}
	return nil
}
