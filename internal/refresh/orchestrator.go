// Package refresh coordinates every path that rewrites derived state:
// periodic timers, transaction-success invalidation and the live swap
// feed. It is the cache store's only writer.
//
// Two mechanisms keep overlapping triggers safe. Coalescing: a refresh
// for a partition that is already being fetched joins the in-flight
// fetch instead of issuing a second one. Generation counters: every
// fetch is stamped when it starts, and its result is discarded if a
// newer fetch for the same partition started while it was in flight,
// so a slow old response can never overwrite a newer value.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/ticketdash/internal/bus"
	"github.com/vietddude/ticketdash/internal/cache"
	"github.com/vietddude/ticketdash/internal/core/domain"
	"github.com/vietddude/ticketdash/internal/infra/ledger"
	"github.com/vietddude/ticketdash/internal/lifecycle"
	"github.com/vietddude/ticketdash/internal/metrics"
	"github.com/vietddude/ticketdash/internal/pricing"
	"github.com/vietddude/ticketdash/internal/timeline"
)

// Mirror persists snapshots and series for warm restarts. Best-effort;
// a nil Mirror disables mirroring.
type Mirror interface {
	SaveSnapshot(ctx context.Context, snap domain.CacheSnapshot) error
	SaveSeries(ctx context.Context, points []domain.PricePoint) error
}

// Archive persists derived history rows. Best-effort; nil disables it.
type Archive interface {
	ReplaceTickets(ctx context.Context, account string, records []domain.TicketRecord) error
	SavePricePoints(ctx context.Context, points []domain.PricePoint) error
}

// Config holds orchestrator settings. All values come from the app
// config object; there is no package-level mutable state.
type Config struct {
	Account         string
	BalanceInterval time.Duration
	PriceInterval   time.Duration
	LookbackBlocks  uint64
	Policy          Policy // nil = DefaultPolicy
}

// Orchestrator schedules refreshes and applies their results.
type Orchestrator struct {
	cfg     Config
	client  ledger.Client
	store   *cache.Store
	agg     *pricing.Aggregator
	reducer *lifecycle.Reducer
	bus     *bus.Bus
	mirror  Mirror
	archive Archive
	log     *slog.Logger

	// mu guards generation bookkeeping and the in-flight table.
	mu       sync.Mutex
	started  map[domain.Partition]uint64
	applied  map[domain.Partition]uint64
	inflight map[domain.Partition]*inflightFetch

	histMu  sync.RWMutex
	history lifecycle.Result

	running atomic.Bool
	closed  atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// inflightFetch lets late callers await a fetch another caller started.
type inflightFetch struct {
	done chan struct{}
	err  error
}

// NewOrchestrator wires the orchestrator. mirror and archive may be nil.
func NewOrchestrator(
	cfg Config,
	client ledger.Client,
	store *cache.Store,
	agg *pricing.Aggregator,
	reducer *lifecycle.Reducer,
	b *bus.Bus,
	mirror Mirror,
	archive Archive,
	log *slog.Logger,
) *Orchestrator {
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		store:    store,
		agg:      agg,
		reducer:  reducer,
		bus:      b,
		mirror:   mirror,
		archive:  archive,
		log:      log,
		started:  make(map[domain.Partition]uint64),
		applied:  make(map[domain.Partition]uint64),
		inflight: make(map[domain.Partition]*inflightFetch),
		stop:     make(chan struct{}),
	}
}

// Start launches the periodic refresh loops: a short-interval one for
// balances and a longer one for price. Both stop on ctx cancellation
// or Stop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("orchestrator already running")
	}

	o.wg.Add(2)
	go o.tickLoop(ctx, domain.PartitionBalances, o.cfg.BalanceInterval)
	go o.tickLoop(ctx, domain.PartitionPrice, o.cfg.PriceInterval)
	return nil
}

// Stop tears down the timers and marks the orchestrator closed so
// fetches completing afterwards are discarded, not applied.
func (o *Orchestrator) Stop() {
	if o.running.CompareAndSwap(true, false) {
		close(o.stop)
	}
	o.closed.Store(true)
	o.wg.Wait()
}

func (o *Orchestrator) tickLoop(ctx context.Context, p domain.Partition, interval time.Duration) {
	defer o.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stop:
			return
		case <-ticker.C:
			if err := o.refresh(ctx, p, "timer"); err != nil {
				// Stale cache stays in place; the next tick retries.
				o.log.Warn("periodic refresh failed", "partition", p, "error", err)
			}
		}
	}
}

// OnTransactionSuccess refetches the cache partitions implicated by a
// just-confirmed transaction and announces the policy's topics. Each
// partition fails independently; the first error is returned after all
// partitions were attempted.
func (o *Orchestrator) OnTransactionSuccess(ctx context.Context, txType domain.TxType) error {
	entry := o.cfg.Policy.Lookup(txType)

	var wg sync.WaitGroup
	errs := make([]error, len(entry.Partitions))
	for i, p := range entry.Partitions {
		wg.Add(1)
		go func(i int, p domain.Partition) {
			defer wg.Done()
			errs[i] = o.refresh(ctx, p, "transaction")
		}(i, p)
	}
	wg.Wait()

	snap := o.store.Snapshot()
	for _, topic := range entry.Topics {
		o.bus.Publish(topic, snap)
	}

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("refresh %s after %s: %w", entry.Partitions[i], txType, err)
		}
	}
	return nil
}

// OnSwapEvent feeds a live swap into the price series and triggers a
// coalesced price refresh so the quote catches up with the pool.
func (o *Orchestrator) OnSwapEvent(ctx context.Context, ev domain.LedgerEvent) {
	if o.agg.RecordSwap(&ev) {
		o.bus.Publish(domain.TopicPoolDataChanged, nil)
		o.saveSeries(ctx)
	}
	if err := o.refresh(ctx, domain.PartitionPrice, "swap_event"); err != nil {
		o.log.Warn("price refresh after swap failed", "error", err)
	}
}

// RefreshAll refetches every partition; used at warm-up and as the
// unmapped-transaction fallback path. Partition failures are isolated.
func (o *Orchestrator) RefreshAll(ctx context.Context) {
	for _, p := range domain.AllPartitions {
		if err := o.refresh(ctx, p, "warmup"); err != nil {
			o.log.Warn("warm-up refresh failed", "partition", p, "error", err)
		}
	}
}

// History returns the latest reconstructed lifecycle result.
func (o *Orchestrator) History() lifecycle.Result {
	o.histMu.RLock()
	defer o.histMu.RUnlock()
	return o.history
}

// refresh fetches one partition, coalescing with any in-flight fetch.
func (o *Orchestrator) refresh(ctx context.Context, p domain.Partition, trigger string) error {
	o.mu.Lock()
	if f := o.inflight[p]; f != nil {
		o.mu.Unlock()
		metrics.CoalescedRefreshesTotal.WithLabelValues(string(p)).Inc()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.started[p]++
	gen := o.started[p]
	f := &inflightFetch{done: make(chan struct{})}
	o.inflight[p] = f
	o.mu.Unlock()

	metrics.RefreshesTotal.WithLabelValues(string(p), trigger).Inc()

	err := o.fetchAndApply(ctx, p, gen)
	if err != nil {
		metrics.RefreshErrorsTotal.WithLabelValues(string(p)).Inc()
	}

	o.mu.Lock()
	if o.inflight[p] == f {
		delete(o.inflight, p)
	}
	o.mu.Unlock()

	f.err = err
	close(f.done)
	return err
}

// fetchAndApply performs the partition's ledger calls (the only
// suspension points) and applies the result if still current.
func (o *Orchestrator) fetchAndApply(ctx context.Context, p domain.Partition, gen uint64) error {
	switch p {
	case domain.PartitionBalances:
		return o.refreshBalances(ctx, gen)
	case domain.PartitionPrice:
		return o.refreshPrice(ctx, gen)
	case domain.PartitionHistory:
		return o.refreshHistory(ctx, gen)
	default:
		return fmt.Errorf("unknown partition %q", p)
	}
}

func (o *Orchestrator) refreshBalances(ctx context.Context, gen uint64) error {
	balances, err := o.client.AccountBalances(ctx, o.cfg.Account)
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	if !o.applyIfCurrent(domain.PartitionBalances, gen, func() {
		o.store.SetBalances(balances)
	}) {
		return nil
	}

	o.bus.Publish(domain.TopicBalancesUpdated, o.store.Snapshot())
	o.saveSnapshot(ctx)
	return nil
}

func (o *Orchestrator) refreshPrice(ctx context.Context, gen uint64) error {
	reserves, err := o.client.PoolReserves(ctx)
	if err != nil {
		return fmt.Errorf("fetch pool reserves: %w", err)
	}
	if reserves.Counter == 0 {
		return fmt.Errorf("pool has zero counter reserve, price undefined")
	}

	quote := domain.PriceQuote{
		Value:       reserves.Base / reserves.Counter,
		LastUpdated: time.Now(),
	}

	if !o.applyIfCurrent(domain.PartitionPrice, gen, func() {
		o.store.SetPrice(quote)
	}) {
		return nil
	}

	o.bus.Publish(domain.TopicPriceUpdated, o.store.Snapshot())
	o.saveSnapshot(ctx)
	return nil
}

// refreshHistory refetches the lifecycle events over the lookback
// window and rebuilds ticket records wholesale. A query failure fails
// only this partition; the previous records stay.
func (o *Orchestrator) refreshHistory(ctx context.Context, gen uint64) error {
	from, to, err := o.window(ctx)
	if err != nil {
		return err
	}

	events, err := o.client.QueryEvents(ctx, ledger.EventFilter{
		Kinds:   []domain.EventKind{domain.KindPurchase, domain.KindStake, domain.KindRedeem},
		Account: o.cfg.Account,
	}, from, to)
	if err != nil {
		return fmt.Errorf("query lifecycle events: %w", err)
	}

	// Split per kind so same-block events without a log index tie-break
	// in lifecycle order: purchase, then stake, then redeem.
	result := o.reducer.Reduce(timeline.Merge(
		timeline.FilterKind(events, domain.KindPurchase),
		timeline.FilterKind(events, domain.KindStake),
		timeline.FilterKind(events, domain.KindRedeem),
	))

	if !o.applyIfCurrent(domain.PartitionHistory, gen, func() {
		o.histMu.Lock()
		o.history = result
		o.histMu.Unlock()
	}) {
		return nil
	}

	o.bus.Publish(domain.TopicTicketStatusChanged, result)
	if o.archive != nil {
		if err := o.archive.ReplaceTickets(ctx, o.cfg.Account, result.Records); err != nil {
			o.log.Warn("archiving ticket records failed", "error", err)
		}
	}
	return nil
}

// BackfillPrices seeds the price series from historical swap events
// over the lookback window. Called once at warm-up.
func (o *Orchestrator) BackfillPrices(ctx context.Context) error {
	from, to, err := o.window(ctx)
	if err != nil {
		return err
	}

	events, err := o.client.QueryEvents(ctx, ledger.EventFilter{
		Kinds: []domain.EventKind{domain.KindSwapIn, domain.KindSwapOut},
	}, from, to)
	if err != nil {
		return fmt.Errorf("query swap history: %w", err)
	}

	ordered := timeline.Merge(events)
	points := make([]domain.PricePoint, 0, len(ordered))
	for i := range ordered {
		if price, ok := pricing.SampleFromSwap(&ordered[i]); ok {
			points = append(points, domain.PricePoint{Timestamp: ordered[i].Timestamp, Price: price})
		} else {
			metrics.PriceSamplesDropped.Inc()
		}
	}

	o.agg.Backfill(points)
	o.saveSeries(ctx)
	return nil
}

// window resolves the bounded lookback query range. Events older than
// the window are invisible; that trade-off is documented on the
// timeline package.
func (o *Orchestrator) window(ctx context.Context) (from, to uint64, err error) {
	head, err := o.client.LatestBlock(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve head: %w", err)
	}
	from = 0
	if head > o.cfg.LookbackBlocks {
		from = head - o.cfg.LookbackBlocks
	}
	return from, head, nil
}

// applyIfCurrent runs apply only when gen is still the newest started
// fetch for p and the orchestrator is not torn down. Returns false
// when the result was discarded as stale.
func (o *Orchestrator) applyIfCurrent(p domain.Partition, gen uint64, apply func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed.Load() || gen != o.started[p] || gen <= o.applied[p] {
		metrics.StaleResultsDiscarded.WithLabelValues(string(p)).Inc()
		o.log.Debug("discarding stale fetch result", "partition", p, "generation", gen)
		return false
	}
	o.applied[p] = gen
	apply()
	return true
}

func (o *Orchestrator) saveSnapshot(ctx context.Context) {
	if o.mirror == nil {
		return
	}
	if err := o.mirror.SaveSnapshot(ctx, o.store.Snapshot()); err != nil {
		o.log.Warn("mirroring snapshot failed", "error", err)
	}
}

func (o *Orchestrator) saveSeries(ctx context.Context) {
	points := o.agg.Points()
	if o.mirror != nil {
		if err := o.mirror.SaveSeries(ctx, points); err != nil {
			o.log.Warn("mirroring price series failed", "error", err)
		}
	}
	if o.archive != nil {
		if err := o.archive.SavePricePoints(ctx, points); err != nil {
			o.log.Warn("archiving price series failed", "error", err)
		}
	}
}
