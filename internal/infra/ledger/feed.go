package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

// SwapHandler receives live swap events in arrival order.
type SwapHandler func(ev domain.LedgerEvent)

// SwapFeed delivers swap events by polling QueryEvents from the last
// seen block. The node surface has no push channel, so "subscription"
// is a poll loop; delivery is at-least-once across restarts of the
// feed (the first poll re-reads the current head block).
type SwapFeed struct {
	client   Client
	interval time.Duration
	handler  SwapHandler
	log      *slog.Logger

	lastBlock uint64
	running   atomic.Bool
	stopped   atomic.Bool
	stop      chan struct{}
}

// NewSwapFeed creates a feed that invokes handler for each swap event.
func NewSwapFeed(client Client, interval time.Duration, handler SwapHandler, log *slog.Logger) *SwapFeed {
	if log == nil {
		log = slog.Default()
	}
	return &SwapFeed{
		client:   client,
		interval: interval,
		handler:  handler,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start runs the poll loop until ctx is done or Stop is called.
func (f *SwapFeed) Start(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return fmt.Errorf("swap feed already running")
	}
	defer f.running.Store(false)

	head, err := f.client.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("resolve head block: %w", err)
	}
	f.lastBlock = head

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.stop:
			return nil
		case <-ticker.C:
			if err := f.poll(ctx); err != nil {
				f.log.Warn("swap feed poll failed", "error", err)
			}
		}
	}
}

// Stop terminates the poll loop. Safe to call more than once.
func (f *SwapFeed) Stop() {
	if f.stopped.CompareAndSwap(false, true) {
		close(f.stop)
	}
}

func (f *SwapFeed) poll(ctx context.Context) error {
	head, err := f.client.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("get head: %w", err)
	}
	if head <= f.lastBlock {
		return nil
	}

	events, err := f.client.QueryEvents(ctx, EventFilter{
		Kinds: []domain.EventKind{domain.KindSwapIn, domain.KindSwapOut},
	}, f.lastBlock+1, head)
	if err != nil {
		return fmt.Errorf("query swaps: %w", err)
	}

	// Advance even when empty; these blocks are done.
	f.lastBlock = head

	for _, ev := range events {
		f.handler(ev)
	}
	return nil
}
