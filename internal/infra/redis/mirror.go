package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/ticketdash/internal/core/domain"
)

// snapshotTTL bounds how long a mirrored snapshot survives. A restart
// after this window starts cold rather than serving ancient data.
const snapshotTTL = 24 * time.Hour

// ErrNotFound is returned when no mirrored value exists.
var ErrNotFound = errors.New("not found in mirror")

// Mirror persists the latest cache snapshot and price series so a
// restarting process can serve warm data before its first refresh.
// Best-effort: the in-memory store stays authoritative.
type Mirror struct {
	rdb     *redis.Client
	account string
}

// NewMirror creates a mirror scoped to one watched account.
func NewMirror(client *Client, account string) *Mirror {
	return &Mirror{rdb: client.rdb, account: account}
}

// Key helpers
func (m *Mirror) snapshotKey() string {
	return fmt.Sprintf("dashcore:snapshot:%s", m.account)
}

func (m *Mirror) seriesKey() string {
	return fmt.Sprintf("dashcore:price_series:%s", m.account)
}

// SaveSnapshot stores the snapshot as JSON.
func (m *Mirror) SaveSnapshot(ctx context.Context, snap domain.CacheSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := m.rdb.Set(ctx, m.snapshotKey(), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves the last stored snapshot.
func (m *Mirror) LoadSnapshot(ctx context.Context) (domain.CacheSnapshot, error) {
	var snap domain.CacheSnapshot

	data, err := m.rdb.Get(ctx, m.snapshotKey()).Bytes()
	if err == redis.Nil {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// SaveSeries stores the price series as JSON, replacing the previous one.
func (m *Mirror) SaveSeries(ctx context.Context, points []domain.PricePoint) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal price series: %w", err)
	}
	if err := m.rdb.Set(ctx, m.seriesKey(), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to set price series: %w", err)
	}
	return nil
}

// LoadSeries retrieves the last stored price series.
func (m *Mirror) LoadSeries(ctx context.Context) ([]domain.PricePoint, error) {
	data, err := m.rdb.Get(ctx, m.seriesKey()).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price series: %w", err)
	}

	var points []domain.PricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price series: %w", err)
	}
	return points, nil
}
