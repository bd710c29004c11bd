package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

// PriceRepo archives real price samples. Synthetic filler never lands
// here; it exists only to pad in-memory charts.
type PriceRepo struct {
	db *DB
}

// NewPriceRepo creates a new PostgreSQL price repository.
func NewPriceRepo(db *DB) *PriceRepo {
	return &PriceRepo{db: db}
}

// SavePricePoints upserts samples by timestamp. Re-saving the whole
// in-memory series after each mutation is idempotent.
func (r *PriceRepo) SavePricePoints(ctx context.Context, points []domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		if p.Synthetic {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO price_points (ts, price)
			VALUES ($1, $2)
			ON CONFLICT (ts) DO NOTHING`,
			p.Timestamp, p.Price); err != nil {
			return fmt.Errorf("insert price point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadRecent returns up to limit most recent samples, oldest first.
func (r *PriceRepo) LoadRecent(ctx context.Context, limit int) ([]domain.PricePoint, error) {
	var points []domain.PricePoint
	err := r.db.SelectContext(ctx, &points, `
		SELECT ts, price, false AS synthetic
		FROM (
			SELECT ts, price FROM price_points ORDER BY ts DESC LIMIT $1
		) recent
		ORDER BY ts ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("select price points: %w", err)
	}
	return points, nil
}
