// Package timeline merges independently fetched ledger event streams
// into one causally ordered sequence.
//
// Known limitation: callers fetch streams over a bounded lookback
// window (latest - N blocks), so events older than the window never
// enter the timeline. This is a deliberate query-cost trade-off, not a
// bug; derived state is only as complete as the window.
package timeline

import (
	"sort"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

// Merge combines N event streams into one sequence ordered ascending by
// (blockNumber, logIndex). Each input stream must be internally ordered
// by arrival. Events missing a log index sort ahead of indexed events
// in the same block. The sort is stable: events tied on the ordering
// key keep stream-declaration order, then arrival order within a
// stream.
//
// Merge is pure; inputs are not modified.
func Merge(streams ...[]domain.LedgerEvent) []domain.LedgerEvent {
	total := 0
	for _, s := range streams {
		total += len(s)
	}
	if total == 0 {
		return nil
	}

	// Flatten in stream-declaration order so stable sort preserves it
	// as the tiebreak.
	merged := make([]domain.LedgerEvent, 0, total)
	for _, s := range streams {
		merged = append(merged, s...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Before(&merged[j])
	})
	return merged
}

// FilterKind returns the subsequence of events matching any of the
// given kinds, preserving order.
func FilterKind(events []domain.LedgerEvent, kinds ...domain.EventKind) []domain.LedgerEvent {
	want := make(map[domain.EventKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	var out []domain.LedgerEvent
	for _, ev := range events {
		if want[ev.Kind] {
			out = append(out, ev)
		}
	}
	return out
}
