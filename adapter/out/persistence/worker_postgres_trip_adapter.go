package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"travel_server/core/domain"
	"travel_server/core/port/out"
)

// PostgresTripAdapter stores one JSONB row per user
type PostgresTripAdapter struct {
	db    *sqlx.DB
	table string
}

var _ out.TripRepository = (*PostgresTripAdapter)(nil)

// tripRow represents the database row
type tripRow struct {
	UserID string `db:"user_id"`
	Items  []byte `db:"items"` // JSONB
}

// NewPostgresTripAdapter creates an adapter over table. The name is quoted, so
// any identifier is safe.
func NewPostgresTripAdapter(db *sqlx.DB, table string) *PostgresTripAdapter {
	if table == "" {
		table = "user_trips"
	}
	return &PostgresTripAdapter{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the trips table when missing
func (a *PostgresTripAdapter) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id    TEXT PRIMARY KEY,
			items      JSONB NOT NULL DEFAULT '[]'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, a.table)
	_, err := a.db.ExecContext(ctx, query)
	return err
}

// LoadTrips returns nil when the user has no row
func (a *PostgresTripAdapter) LoadTrips(ctx context.Context, userID string) ([]domain.TravelItem, error) {
	query := fmt.Sprintf(`SELECT user_id, items FROM %s WHERE user_id = $1`, a.table)

	var row tripRow
	err := a.db.QueryRowxContext(ctx, query, userID).StructScan(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := domain.DecodeTravelItems(row.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return items, nil
}

// SaveTrips upserts the user's row
func (a *PostgresTripAdapter) SaveTrips(ctx context.Context, userID string, items []domain.TravelItem) error {
	if userID == "" {
		return ErrInvalidUser
	}
	if items == nil {
		items = []domain.TravelItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode trips: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, items, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			items = EXCLUDED.items,
			updated_at = NOW()
	`, a.table)

	_, err = a.db.ExecContext(ctx, query, userID, string(itemsJSON))
	return err
}

// ListUsers returns user ids in order
func (a *PostgresTripAdapter) ListUsers(ctx context.Context) ([]string, error) {
	var users []string
	query := fmt.Sprintf(`SELECT user_id FROM %s ORDER BY user_id`, a.table)
	if err := a.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}

func (a *PostgresTripAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *PostgresTripAdapter) Close() error {
	return a.db.Close()
}
