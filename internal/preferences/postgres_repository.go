package preferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL preferences repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Load retrieves the record for a profile.
func (r *PostgresRepository) Load(ctx context.Context, profile string) ([]byte, error) {
	query := `
		SELECT data
		FROM user_preferences
		WHERE profile_id = $1
	`

	var data []byte
	err := r.pool.QueryRow(ctx, query, profile).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("load preferences %s: %w", profile, err)
	}
	return data, nil
}

// Save upserts the record for a profile.
func (r *PostgresRepository) Save(ctx context.Context, profile string, data []byte) error {
	query := `
		INSERT INTO user_preferences (profile_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (profile_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, profile, data); err != nil {
		return fmt.Errorf("save preferences %s: %w", profile, err)
	}
	return nil
}
