package domain

// EventKind identifies the protocol log an event was decoded from.
type EventKind string

const (
	KindPurchase EventKind = "purchase"
	KindStake    EventKind = "stake"
	KindRedeem   EventKind = "redeem"
	KindSwapIn   EventKind = "swap_in"
	KindSwapOut  EventKind = "swap_out"
)

// LedgerEvent is an immutable fact decoded from the protocol's event log.
// Events are never mutated; every refresh fetches them fresh for its window.
//
// Ordering key is (BlockNumber, LogIndex), ascending = chronological.
// LogIndex < 0 means the node did not report one; such events sort
// ahead of indexed events in the same block, and the sequencer's
// stable sort keeps stream-declaration order among them.
type LedgerEvent struct {
	Kind        EventKind
	Account     string
	BlockNumber uint64
	LogIndex    int64
	Timestamp   uint64 // unix seconds

	// Purchase / stake / redeem payload.
	Amount      float64
	CycleLength uint64 // staking cycles, stake events only

	// Swap payload.
	AmountIn  float64
	AmountOut float64
}

// Before reports whether e precedes other in chronological order.
// All missing log indices collapse to one sentinel so the ordering is
// a strict weak order: unindexed events tie with each other (never
// with indexed ones) and a stable sort resolves those ties.
func (e *LedgerEvent) Before(other *LedgerEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	ei, oi := e.LogIndex, other.LogIndex
	if ei < 0 {
		ei = -1
	}
	if oi < 0 {
		oi = -1
	}
	return ei < oi
}
