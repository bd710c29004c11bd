package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/ticketdash/internal/bus"
	"github.com/vietddude/ticketdash/internal/cache"
	"github.com/vietddude/ticketdash/internal/core/domain"
	"github.com/vietddude/ticketdash/internal/infra/ledger"
	"github.com/vietddude/ticketdash/internal/lifecycle"
	"github.com/vietddude/ticketdash/internal/pricing"
)

// fakeLedger counts fetches per method and can gate or fail them.
type fakeLedger struct {
	mu sync.Mutex

	balanceCalls int32
	poolCalls    int32
	eventCalls   int32

	balanceErr error
	poolErr    error
	eventErr   error

	balanceGate chan struct{} // non-nil: AccountBalances blocks until closed

	head   uint64
	events []domain.LedgerEvent

	balances domain.Balances
	reserves domain.PoolReserves
}

func (f *fakeLedger) AccountBalances(ctx context.Context, account string) (domain.Balances, error) {
	atomic.AddInt32(&f.balanceCalls, 1)
	if f.balanceGate != nil {
		select {
		case <-f.balanceGate:
		case <-ctx.Done():
			return domain.Balances{}, ctx.Err()
		}
	}
	if f.balanceErr != nil {
		return domain.Balances{}, f.balanceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances, nil
}

func (f *fakeLedger) PoolReserves(ctx context.Context) (domain.PoolReserves, error) {
	atomic.AddInt32(&f.poolCalls, 1)
	if f.poolErr != nil {
		return domain.PoolReserves{}, f.poolErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserves, nil
}

func (f *fakeLedger) RoleFlags(ctx context.Context, account string) (domain.RoleFlags, error) {
	return domain.RoleFlags{}, nil
}

func (f *fakeLedger) CycleUnitSeconds(ctx context.Context) (uint64, error) { return 86400, nil }

func (f *fakeLedger) LatestBlock(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeLedger) QueryEvents(
	ctx context.Context,
	filter ledger.EventFilter,
	fromBlock, toBlock uint64,
) ([]domain.LedgerEvent, error) {
	atomic.AddInt32(&f.eventCalls, 1)
	if f.eventErr != nil {
		return nil, f.eventErr
	}

	want := make(map[domain.EventKind]bool)
	for _, k := range filter.Kinds {
		want[k] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LedgerEvent
	for _, ev := range f.events {
		if want[ev.Kind] && ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeLedger) Close() error { return nil }

func newTestOrchestrator(client ledger.Client) (*Orchestrator, *cache.Store, *bus.Bus) {
	store := cache.NewStore()
	b := bus.New(nil)
	agg := pricing.New(pricing.DefaultCapacity, nil)
	reducer := lifecycle.NewReducer(86400, nil)

	o := NewOrchestrator(Config{
		Account:         "0xabc",
		BalanceInterval: time.Hour, // timers irrelevant unless Start is called
		PriceInterval:   time.Hour,
		LookbackBlocks:  1000,
	}, client, store, agg, reducer, b, nil, nil, nil)
	return o, store, b
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeLedger{balanceGate: gate, balances: domain.Balances{TokenA: 5}}
	o, store, _ := newTestOrchestrator(client)

	const callers = 5
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.refresh(context.Background(), domain.PartitionBalances, "test"); err != nil {
				t.Errorf("refresh: %v", err)
			}
		}()
	}

	// Let all callers pile up on the single in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := atomic.LoadInt32(&client.balanceCalls); n != 1 {
		t.Errorf("expected exactly 1 underlying fetch, got %d", n)
	}
	if store.Snapshot().Balances.TokenA != 5 {
		t.Error("coalesced refresh did not apply the result")
	}
}

func TestCoalescedCallersShareTheError(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeLedger{balanceGate: gate, balanceErr: errors.New("node down")}
	o, _, _ := newTestOrchestrator(client)

	var wg sync.WaitGroup
	errsCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errsCh <- o.refresh(context.Background(), domain.PartitionBalances, "test")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errsCh)

	for err := range errsCh {
		if err == nil {
			t.Error("both callers must observe the fetch failure")
		}
	}
}

func TestStaleGenerationDiscarded(t *testing.T) {
	client := &fakeLedger{balances: domain.Balances{TokenA: 1}}
	o, store, _ := newTestOrchestrator(client)

	// Simulate a fetch that was superseded while in flight.
	o.mu.Lock()
	o.started[domain.PartitionBalances] = 2
	o.mu.Unlock()

	applied := o.applyIfCurrent(domain.PartitionBalances, 1, func() {
		store.SetBalances(domain.Balances{TokenA: 99})
	})
	if applied {
		t.Error("superseded generation must be discarded")
	}
	if store.Snapshot().Balances.TokenA == 99 {
		t.Error("stale result reached the store")
	}

	// The current generation still applies.
	if !o.applyIfCurrent(domain.PartitionBalances, 2, func() {}) {
		t.Error("current generation must apply")
	}

	// And a generation can only apply once.
	if o.applyIfCurrent(domain.PartitionBalances, 2, func() {}) {
		t.Error("generation applied twice")
	}
}

func TestResultsAfterStopDiscarded(t *testing.T) {
	client := &fakeLedger{balances: domain.Balances{TokenA: 7}}
	o, store, _ := newTestOrchestrator(client)

	o.Stop()

	if err := o.refresh(context.Background(), domain.PartitionBalances, "test"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.Snapshot().Balances.TokenA == 7 {
		t.Error("fetch completing after teardown must not be applied")
	}
}

func TestTransactionPolicyTargetsPartitions(t *testing.T) {
	client := &fakeLedger{
		balances: domain.Balances{TokenA: 3},
		reserves: domain.PoolReserves{Base: 50, Counter: 100},
	}
	o, store, b := newTestOrchestrator(client)

	topics := make(map[domain.Topic]int)
	var mu sync.Mutex
	for _, topic := range allTopics {
		topic := topic
		b.Subscribe(topic, func(any) {
			mu.Lock()
			topics[topic]++
			mu.Unlock()
		})
	}

	if err := o.OnTransactionSuccess(context.Background(), domain.TxSwap); err != nil {
		t.Fatalf("OnTransactionSuccess: %v", err)
	}

	if atomic.LoadInt32(&client.balanceCalls) != 1 {
		t.Errorf("swap must fetch balances once, got %d", client.balanceCalls)
	}
	if atomic.LoadInt32(&client.poolCalls) != 1 {
		t.Errorf("swap must fetch pool once, got %d", client.poolCalls)
	}
	if atomic.LoadInt32(&client.eventCalls) != 0 {
		t.Errorf("swap must not refetch history, got %d event queries", client.eventCalls)
	}

	snap := store.Snapshot()
	if snap.Balances.TokenA != 3 {
		t.Errorf("balances not applied: %+v", snap)
	}
	if snap.Price.Value != 0.5 {
		t.Errorf("price = %v, want 0.5", snap.Price.Value)
	}

	mu.Lock()
	defer mu.Unlock()
	if topics[domain.TopicPoolDataChanged] == 0 {
		t.Error("poolDataChanged not announced after swap")
	}
	if topics[domain.TopicTicketStatusChanged] != 0 {
		t.Error("ticketStatusChanged announced for a swap")
	}
}

func TestUnmappedTransactionRefreshesEverything(t *testing.T) {
	client := &fakeLedger{
		reserves: domain.PoolReserves{Base: 1, Counter: 2},
		head:     500,
	}
	o, _, _ := newTestOrchestrator(client)

	if err := o.OnTransactionSuccess(context.Background(), domain.TxType("mystery")); err != nil {
		t.Fatalf("OnTransactionSuccess: %v", err)
	}

	if atomic.LoadInt32(&client.balanceCalls) == 0 {
		t.Error("fallback skipped balances")
	}
	if atomic.LoadInt32(&client.poolCalls) == 0 {
		t.Error("fallback skipped price")
	}
	if atomic.LoadInt32(&client.eventCalls) == 0 {
		t.Error("fallback skipped history")
	}
}

func TestPartitionFailureIsolated(t *testing.T) {
	client := &fakeLedger{
		balanceErr: errors.New("balance endpoint down"),
		reserves:   domain.PoolReserves{Base: 30, Counter: 60},
	}
	o, store, _ := newTestOrchestrator(client)

	err := o.OnTransactionSuccess(context.Background(), domain.TxSwap)
	if err == nil {
		t.Fatal("expected the balances failure to surface")
	}

	// Price still landed despite the balances failure.
	if got := store.Snapshot().Price.Value; got != 0.5 {
		t.Errorf("price partition corrupted by balances failure: %v", got)
	}
}

func TestFailedFetchKeepsStaleValue(t *testing.T) {
	client := &fakeLedger{balances: domain.Balances{TokenA: 11}}
	o, store, _ := newTestOrchestrator(client)

	if err := o.refresh(context.Background(), domain.PartitionBalances, "test"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	stamp := store.Snapshot().LastUpdated

	client.balanceErr = errors.New("temporarily unreachable")
	if err := o.refresh(context.Background(), domain.PartitionBalances, "test"); err == nil {
		t.Fatal("expected fetch error")
	}

	snap := store.Snapshot()
	if snap.Balances.TokenA != 11 {
		t.Errorf("stale value lost on failed refresh: %+v", snap)
	}
	if !snap.LastUpdated.Equal(stamp) {
		t.Error("failed refresh must not touch lastUpdated")
	}
}

func TestHistoryRefreshRebuildsRecords(t *testing.T) {
	client := &fakeLedger{
		head: 200,
		events: []domain.LedgerEvent{
			{Kind: domain.KindPurchase, Account: "0xabc", BlockNumber: 100, LogIndex: 0, Amount: 100, Timestamp: 1000},
			{Kind: domain.KindPurchase, Account: "0xabc", BlockNumber: 110, LogIndex: 0, Amount: 200, Timestamp: 2000},
		},
	}
	o, _, _ := newTestOrchestrator(client)

	if err := o.OnTransactionSuccess(context.Background(), domain.TxPurchase); err != nil {
		t.Fatalf("OnTransactionSuccess: %v", err)
	}

	hist := o.History()
	if len(hist.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(hist.Records))
	}
	if hist.MaxUnresolvedAmount != 200 {
		t.Errorf("maxUnresolved = %v, want 200", hist.MaxUnresolvedAmount)
	}

	// All three lifecycle kinds come back in one query.
	if got := atomic.LoadInt32(&client.eventCalls); got != 1 {
		t.Errorf("history refresh issued %d event queries, want 1", got)
	}
}

func TestBackfillPricesSeedsSeries(t *testing.T) {
	client := &fakeLedger{
		head: 1000,
		events: []domain.LedgerEvent{
			{Kind: domain.KindSwapIn, BlockNumber: 900, LogIndex: 0, Timestamp: 10, AmountIn: 100, AmountOut: 50},
			{Kind: domain.KindSwapIn, BlockNumber: 901, LogIndex: 0, Timestamp: 20, AmountIn: 0, AmountOut: 10},
			{Kind: domain.KindSwapOut, BlockNumber: 902, LogIndex: 0, Timestamp: 30, AmountIn: 60, AmountOut: 100},
		},
	}

	store := cache.NewStore()
	agg := pricing.New(pricing.DefaultCapacity, nil)
	o := NewOrchestrator(Config{
		Account:        "0xabc",
		LookbackBlocks: 1000,
	}, client, store, agg, lifecycle.NewReducer(60, nil), bus.New(nil), nil, nil, nil)

	if err := o.BackfillPrices(context.Background()); err != nil {
		t.Fatalf("BackfillPrices: %v", err)
	}

	points := agg.Points()
	realSamples := 0
	for _, p := range points {
		if !p.Synthetic {
			realSamples++
		}
	}
	// Two valid samples; zero-input swap dropped; filler pads to minimum.
	if realSamples != 2 {
		t.Errorf("expected 2 real samples, got %d", realSamples)
	}
	if len(points) != pricing.MinChartPoints {
		t.Errorf("sparse series not padded: len = %d", len(points))
	}
}

func TestPeriodicTimersStopCleanly(t *testing.T) {
	client := &fakeLedger{
		balances: domain.Balances{TokenA: 2},
		reserves: domain.PoolReserves{Base: 1, Counter: 1},
	}
	store := cache.NewStore()
	o := NewOrchestrator(Config{
		Account:         "0xabc",
		BalanceInterval: 5 * time.Millisecond,
		PriceInterval:   5 * time.Millisecond,
		LookbackBlocks:  100,
	}, client, store, pricing.New(10, nil), lifecycle.NewReducer(60, nil), bus.New(nil), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Start(ctx); err == nil {
		t.Error("second Start must fail")
	}

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&client.balanceCalls) == 0 || atomic.LoadInt32(&client.poolCalls) == 0 {
		select {
		case <-deadline:
			t.Fatal("timers never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	o.Stop()

	// No further fetches after Stop returns.
	balancesAfter := atomic.LoadInt32(&client.balanceCalls)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&client.balanceCalls); got != balancesAfter {
		t.Errorf("fetches continued after Stop: %d -> %d", balancesAfter, got)
	}
}
