package network

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL network repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListStops returns every stop ordered by load position.
func (r *PostgresRepository) ListStops(ctx context.Context) ([]Stop, error) {
	query := `
		SELECT stop_id, name, name_hindi, latitude, longitude, amenities
		FROM stops
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		stop, err := scanStop(rows)
		if err != nil {
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

// ListRoutes returns every route with its ordered stops.
func (r *PostgresRepository) ListRoutes(ctx context.Context) ([]Route, error) {
	stops, err := r.ListStops(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Stop, len(stops))
	for _, s := range stops {
		byID[s.ID] = s
	}

	query := `
		SELECT route_id, route_number, route_name, route_name_hindi, is_active, estimated_duration
		FROM routes
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	var routes []Route
	for rows.Next() {
		var rt Route
		if err := rows.Scan(&rt.ID, &rt.RouteNumber, &rt.RouteName, &rt.RouteNameHindi, &rt.IsActive, &rt.EstimatedDuration); err != nil {
			rows.Close()
			return nil, err
		}
		routes = append(routes, rt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stopRows, err := r.pool.Query(ctx, `SELECT route_id, stop_id FROM route_stops ORDER BY route_id, stop_order`)
	if err != nil {
		return nil, fmt.Errorf("query route stops: %w", err)
	}
	defer stopRows.Close()

	sequence := make(map[string][]Stop)
	for stopRows.Next() {
		var routeID, stopID string
		if err := stopRows.Scan(&routeID, &stopID); err != nil {
			return nil, err
		}
		stop, ok := byID[stopID]
		if !ok {
			return nil, fmt.Errorf("%w: route %q references unknown stop %q", ErrInvalidSeed, routeID, stopID)
		}
		sequence[routeID] = append(sequence[routeID], cloneStop(stop))
	}
	if err := stopRows.Err(); err != nil {
		return nil, err
	}

	for i := range routes {
		routes[i].Stops = sequence[routes[i].ID]
	}
	return routes, nil
}

// ListBuses returns the current fleet state.
func (r *PostgresRepository) ListBuses(ctx context.Context) ([]Bus, error) {
	query := `
		SELECT
			bus_id, route_id, bus_number, current_stop_index, next_stop_index,
			latitude, longitude, speed, capacity, current_occupancy,
			is_ac, is_accessible, status, delay_minutes, estimated_arrival, last_updated, revision
		FROM buses
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query buses: %w", err)
	}
	defer rows.Close()

	var buses []Bus
	for rows.Next() {
		var (
			b      Bus
			status string
		)
		err := rows.Scan(
			&b.ID, &b.RouteID, &b.BusNumber, &b.CurrentStopIndex, &b.NextStopIndex,
			&b.Coordinates.Latitude, &b.Coordinates.Longitude, &b.Speed, &b.Capacity, &b.CurrentOccupancy,
			&b.IsAC, &b.IsAccessible, &status, &b.DelayMinutes, &b.EstimatedArrival, &b.LastUpdated, &b.Revision,
		)
		if err != nil {
			return nil, err
		}
		b.Status = BusStatus(status)
		buses = append(buses, b)
	}
	return buses, rows.Err()
}

// SaveBuses writes the mutable part of each bus in one transaction. Each row
// is only updated while its revision still matches the one that was read.
func (r *PostgresRepository) SaveBuses(ctx context.Context, buses []Bus) error {
	query := `
		UPDATE buses SET
			current_stop_index = $2,
			next_stop_index = $3,
			latitude = $4,
			longitude = $5,
			status = $6,
			delay_minutes = $7,
			estimated_arrival = $8,
			last_updated = $9,
			revision = revision + 1
		WHERE bus_id = $1 AND revision = $10
	`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, b := range buses {
			result, err := tx.Exec(ctx, query,
				b.ID, b.CurrentStopIndex, b.NextStopIndex,
				b.Coordinates.Latitude, b.Coordinates.Longitude,
				string(b.Status), b.DelayMinutes, b.EstimatedArrival, b.LastUpdated, b.Revision,
			)
			if err != nil {
				return fmt.Errorf("update bus %s: %w", b.ID, err)
			}
			if result.RowsAffected() > 0 {
				continue
			}
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM buses WHERE bus_id = $1)`, b.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check bus %s: %w", b.ID, err)
			}
			if !exists {
				return ErrBusNotFound
			}
			return fmt.Errorf("%w: %s", ErrStaleBus, b.ID)
		}
		return nil
	})
}

// Import replaces the stored network with the given seed.
func (r *PostgresRepository) Import(ctx context.Context, seed *Seed, now time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{`DELETE FROM buses`, `DELETE FROM route_stops`, `DELETE FROM routes`, `DELETE FROM stops`} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}

		for i, s := range seed.Stops {
			amenities := make([]string, len(s.Amenities))
			for j, a := range s.Amenities {
				amenities[j] = string(a)
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO stops (stop_id, name, name_hindi, latitude, longitude, amenities, position) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				s.ID, s.Name, s.NameHindi, s.Coordinates.Latitude, s.Coordinates.Longitude, amenities, i,
			)
			if err != nil {
				return fmt.Errorf("insert stop %s: %w", s.ID, err)
			}
		}

		for i, rt := range seed.Routes {
			_, err := tx.Exec(ctx,
				`INSERT INTO routes (route_id, route_number, route_name, route_name_hindi, is_active, estimated_duration, position) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				rt.ID, rt.RouteNumber, rt.RouteName, rt.RouteNameHindi, rt.IsActive, rt.EstimatedDuration, i,
			)
			if err != nil {
				return fmt.Errorf("insert route %s: %w", rt.ID, err)
			}
			for order, s := range rt.Stops {
				if _, err := tx.Exec(ctx,
					`INSERT INTO route_stops (route_id, stop_id, stop_order) VALUES ($1, $2, $3)`,
					rt.ID, s.ID, order,
				); err != nil {
					return fmt.Errorf("insert route stop %s/%s: %w", rt.ID, s.ID, err)
				}
			}
		}

		for i, b := range seed.Buses(now) {
			_, err := tx.Exec(ctx, `
				INSERT INTO buses (
					bus_id, route_id, bus_number, current_stop_index, next_stop_index,
					latitude, longitude, speed, capacity, current_occupancy,
					is_ac, is_accessible, status, delay_minutes, estimated_arrival, last_updated, position
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
				b.ID, b.RouteID, b.BusNumber, b.CurrentStopIndex, b.NextStopIndex,
				b.Coordinates.Latitude, b.Coordinates.Longitude, b.Speed, b.Capacity, b.CurrentOccupancy,
				b.IsAC, b.IsAccessible, string(b.Status), b.DelayMinutes, b.EstimatedArrival, b.LastUpdated, i,
			)
			if err != nil {
				return fmt.Errorf("insert bus %s: %w", b.ID, err)
			}
		}
		return nil
	})
}

func scanStop(row pgx.Row) (Stop, error) {
	var (
		s         Stop
		amenities []string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.NameHindi, &s.Coordinates.Latitude, &s.Coordinates.Longitude, &amenities); err != nil {
		return Stop{}, err
	}
	s.Amenities = make([]Amenity, len(amenities))
	for i, a := range amenities {
		s.Amenities[i] = Amenity(a)
	}
	return s, nil
}
