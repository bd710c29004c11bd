// Package lifecycle folds an ordered ledger event timeline into
// per-ticket lifecycle records.
//
// Correlation caveat: stake and redeem events carry no ticket id, so
// the reducer attaches each one by temporal adjacency — a stake goes to
// the most recent still-pending purchase, a redeem closes the most
// recent mining record. With overlapping open records for one account
// this is a best-effort guess; affected records are flagged
// CorrelationAmbiguous rather than silently resolved. Fixing this for
// real needs an explicit ticket id in the upstream event schema.
package lifecycle

import (
	"fmt"
	"log/slog"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

// Reducer rebuilds ticket lifecycle records from an ordered timeline.
// It is stateless across calls; every Reduce starts from scratch.
type Reducer struct {
	unitSeconds uint64 // length of one staking cycle, resolved from the ledger
	log         *slog.Logger
}

// Result is the output of one fold over the timeline.
type Result struct {
	// Records lists reconstructed tickets, newest purchase first.
	Records []domain.TicketRecord

	// MaxUnresolvedAmount is the largest amount among records still
	// Pending or Mining. The UI uses it as a minimum-liquidity floor.
	MaxUnresolvedAmount float64
}

// NewReducer creates a reducer. unitSeconds is the protocol's cycle
// unit (minutes-mode or days-mode), read from a ledger constant.
func NewReducer(unitSeconds uint64, log *slog.Logger) *Reducer {
	if log == nil {
		log = slog.Default()
	}
	return &Reducer{unitSeconds: unitSeconds, log: log}
}

// Reduce folds events, which must already be in (block, logIndex)
// order, into lifecycle records. Non-lifecycle kinds are skipped.
// Reduce is deterministic: the same input always yields the same
// records, so re-running it is safe and refreshes rebuild wholesale.
func (r *Reducer) Reduce(events []domain.LedgerEvent) Result {
	var records []domain.TicketRecord

	for i := range events {
		ev := &events[i]
		switch ev.Kind {
		case domain.KindPurchase:
			records = append(records, domain.TicketRecord{
				ID:           recordID(ev),
				Account:      ev.Account,
				Amount:       ev.Amount,
				PurchaseTime: ev.Timestamp,
				Status:       domain.TicketStatusPending,
			})

		case domain.KindStake:
			r.applyStake(records, ev)

		case domain.KindRedeem:
			r.applyRedeem(records, ev)
		}
	}

	var maxUnresolved float64
	for i := range records {
		if records[i].Open() && records[i].Amount > maxUnresolved {
			maxUnresolved = records[i].Amount
		}
	}

	// Newest first for display.
	reverse(records)

	return Result{Records: records, MaxUnresolvedAmount: maxUnresolved}
}

// applyStake attaches a stake to the most recent pending purchase.
func (r *Reducer) applyStake(records []domain.TicketRecord, ev *domain.LedgerEvent) {
	idx, open := latestWithStatus(records, domain.TicketStatusPending)
	if idx < 0 {
		r.log.Debug("stake event with no pending purchase, ignoring",
			"account", ev.Account, "block", ev.BlockNumber)
		return
	}

	rec := &records[idx]
	if !rec.Status.CanAdvance(domain.TicketStatusMining) {
		return
	}
	rec.Status = domain.TicketStatusMining
	rec.CycleLength = ev.CycleLength
	rec.StartTime = ev.Timestamp
	rec.EndTime = ev.Timestamp + ev.CycleLength*r.unitSeconds
	rec.CorrelationAmbiguous = open > 1

	// Expiry is intentionally not applied: EndTime may be in the past
	// here, but status stays Mining until a redeem arrives. The
	// protocol UI treats expiry as informational only.
}

// applyRedeem closes the most recent mining record.
func (r *Reducer) applyRedeem(records []domain.TicketRecord, ev *domain.LedgerEvent) {
	idx, open := latestWithStatus(records, domain.TicketStatusMining)
	if idx < 0 {
		r.log.Debug("redeem event with no mining record, ignoring",
			"account", ev.Account, "block", ev.BlockNumber)
		return
	}

	rec := &records[idx]
	if !rec.Status.CanAdvance(domain.TicketStatusCompleted) {
		return
	}
	rec.Status = domain.TicketStatusCompleted
	if open > 1 {
		rec.CorrelationAmbiguous = true
	}
}

// latestWithStatus returns the index of the most recently created
// record in the given status, plus how many records share that status.
// The count lets callers flag ambiguous correlation.
func latestWithStatus(records []domain.TicketRecord, status domain.TicketStatus) (int, int) {
	idx, count := -1, 0
	for i := range records {
		if records[i].Status == status {
			idx = i
			count++
		}
	}
	return idx, count
}

func recordID(ev *domain.LedgerEvent) string {
	return fmt.Sprintf("%d-%d", ev.BlockNumber, ev.LogIndex)
}

func reverse(records []domain.TicketRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
