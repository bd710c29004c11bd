// Package cache holds the latest authoritative snapshot of balances
// and price. Single-writer discipline: only the refresh orchestrator
// calls the setters; everything else reads copies via Snapshot.
package cache

import (
	"sync"
	"time"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

// Store owns the cache snapshot. Each setter replaces its partition
// atomically; readers never observe a half-written partition.
type Store struct {
	mu   sync.RWMutex
	snap domain.CacheSnapshot
}

// NewStore creates an empty store. LastUpdated is zero until the first
// write, which consumers treat as "never refreshed".
func NewStore() *Store {
	return &Store{}
}

// Seed installs a previously persisted snapshot (warm start). It keeps
// the snapshot's original LastUpdated so staleness stays visible.
func (s *Store) Seed(snap domain.CacheSnapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// SetBalances replaces the balances partition. LastUpdated is set at
// write time, not request time, so consumers can detect staleness.
func (s *Store) SetBalances(b domain.Balances) {
	s.mu.Lock()
	s.snap.Balances = b
	s.snap.LastUpdated = time.Now()
	s.mu.Unlock()
}

// SetPrice replaces the price partition.
func (s *Store) SetPrice(q domain.PriceQuote) {
	s.mu.Lock()
	s.snap.Price = q
	s.snap.LastUpdated = time.Now()
	s.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot. Callers may read it
// freely but mutations never reach the store.
func (s *Store) Snapshot() domain.CacheSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Age returns time since the last write, or a negative duration when
// the store has never been written.
func (s *Store) Age() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.LastUpdated.IsZero() {
		return -1
	}
	return time.Since(s.snap.LastUpdated)
}
