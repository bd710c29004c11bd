package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/ticketdash/internal/cache"
	"github.com/vietddude/ticketdash/internal/infra/ledger"
	"github.com/vietddude/ticketdash/internal/pricing"
)

// staleThreshold is how old the snapshot may get before the system
// reports degraded. Worst case for this layer is stale data, never a
// crash, so staleness is the health signal that matters.
const staleThreshold = 5 * time.Minute

// Monitor aggregates health from the ledger client and derived stores.
type Monitor struct {
	client ledger.Client
	store  *cache.Store
	agg    *pricing.Aggregator

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a health monitor.
func NewMonitor(client ledger.Client, store *cache.Store, agg *pricing.Aggregator) *Monitor {
	return &Monitor{client: client, store: store, agg: agg}
}

// CheckHealth probes the ledger and inspects snapshot staleness.
// Results are cached for 10s to avoid spamming the node.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := Report{
		Status:       StatusHealthy,
		SeriesLength: m.agg.Len(),
	}

	head, err := m.client.LatestBlock(ctx)
	if err == nil {
		report.LedgerReachable = true
		report.LedgerHead = head
	}

	age := m.store.Age()
	if age >= 0 {
		report.SnapshotAgeSecs = age.Seconds()
	}

	switch {
	case !report.LedgerReachable && age > staleThreshold:
		report.Status = StatusCritical
	case !report.LedgerReachable || age > staleThreshold || age < 0:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
