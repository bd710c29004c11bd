// Package ledger is the read-only client surface into the protocol
// node. The contract (methods, event shapes) is external; this package
// only consumes it.
package ledger

import (
	"context"

	"github.com/vietddude/ticketdash/internal/core/domain"
)

// EventFilter scopes an event query.
type EventFilter struct {
	Kinds   []domain.EventKind
	Account string // empty = all accounts
}

// Client exposes the point queries, windowed event queries and the
// swap subscription the derived-state core depends on.
type Client interface {
	// AccountBalances returns the current token balances of account.
	AccountBalances(ctx context.Context, account string) (domain.Balances, error)

	// PoolReserves returns the current swap pool state.
	PoolReserves(ctx context.Context) (domain.PoolReserves, error)

	// RoleFlags returns ownership/permission bits for account.
	RoleFlags(ctx context.Context, account string) (domain.RoleFlags, error)

	// CycleUnitSeconds resolves the protocol's staking cycle unit
	// (minutes-mode or days-mode). Never hardcoded client-side.
	CycleUnitSeconds(ctx context.Context) (uint64, error)

	// LatestBlock returns the current chain head number.
	LatestBlock(ctx context.Context) (uint64, error)

	// QueryEvents returns events matching filter in [fromBlock, toBlock],
	// ordered by arrival (not necessarily causally).
	QueryEvents(ctx context.Context, filter EventFilter, fromBlock, toBlock uint64) ([]domain.LedgerEvent, error)

	// Close releases client resources.
	Close() error
}
