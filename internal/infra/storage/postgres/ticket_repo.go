package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

// TicketRepo archives reconstructed ticket records per account.
type TicketRepo struct {
	db *DB
}

// NewTicketRepo creates a new PostgreSQL ticket repository.
func NewTicketRepo(db *DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// ReplaceTickets swaps the archived records for account with the fresh
// rebuild. Records have no identity across fetches, so replace-all is
// the only write shape that stays consistent with the reducer.
func (r *TicketRepo) ReplaceTickets(
	ctx context.Context,
	account string,
	records []domain.TicketRecord,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ticket_records WHERE account = $1`, account); err != nil {
		return fmt.Errorf("clear ticket records: %w", err)
	}

	for _, rec := range records {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO ticket_records
				(ticket_id, account, amount, purchase_time, status,
				 cycle_length, start_time, end_time, correlation_ambiguous)
			VALUES
				(:ticket_id, :account, :amount, :purchase_time, :status,
				 :cycle_length, :start_time, :end_time, :correlation_ambiguous)`,
			rec)
		if err != nil {
			return fmt.Errorf("insert ticket record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByAccount returns archived records, newest purchase first.
func (r *TicketRepo) GetByAccount(ctx context.Context, account string) ([]domain.TicketRecord, error) {
	var records []domain.TicketRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT ticket_id, account, amount, purchase_time, status,
		       cycle_length, start_time, end_time, correlation_ambiguous
		FROM ticket_records
		WHERE account = $1
		ORDER BY purchase_time DESC`, account)
	if err != nil {
		return nil, fmt.Errorf("select ticket records: %w", err)
	}
	return records, nil
}
