package domain

// TicketStatus is the lifecycle state of a reconstructed ticket.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusMining    TicketStatus = "mining"
	TicketStatusCompleted TicketStatus = "completed"
	// TicketStatusExpired is declared for time-based expiry. The reducer
	// computes EndTime but deliberately never applies this transition;
	// see the lifecycle package notes.
	TicketStatusExpired TicketStatus = "expired"
)

// rank orders statuses for the forward-only invariant.
var statusRank = map[TicketStatus]int{
	TicketStatusPending:   0,
	TicketStatusMining:    1,
	TicketStatusCompleted: 2,
	TicketStatusExpired:   2,
}

// CanAdvance reports whether a transition from s to next moves forward.
// Regressions are ignored by the reducer, never applied.
func (s TicketStatus) CanAdvance(next TicketStatus) bool {
	return statusRank[next] > statusRank[s]
}

// TicketRecord is derived per-ticket state, rebuilt wholesale from the
// ordered event timeline on every refresh. It has no persistent identity
// across fetches.
type TicketRecord struct {
	ID           string       `json:"id" db:"ticket_id"`
	Account      string       `json:"account" db:"account"`
	Amount       float64      `json:"amount" db:"amount"`
	PurchaseTime uint64       `json:"purchase_time" db:"purchase_time"`
	Status       TicketStatus `json:"status" db:"status"`
	CycleLength  uint64       `json:"cycle_length,omitempty" db:"cycle_length"`
	StartTime    uint64       `json:"start_time,omitempty" db:"start_time"`
	EndTime      uint64       `json:"end_time,omitempty" db:"end_time"`

	// CorrelationAmbiguous marks records whose stake/redeem attachment
	// was chosen among multiple open candidates. Stake and redeem events
	// carry no ticket id, so correlation is temporal adjacency only.
	CorrelationAmbiguous bool `json:"correlation_ambiguous,omitempty" db:"correlation_ambiguous"`
}

// Open reports whether the record still ties up funds (not yet redeemed).
func (t *TicketRecord) Open() bool {
	return t.Status == TicketStatusPending || t.Status == TicketStatusMining
}
