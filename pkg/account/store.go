package account

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the durable storage collaborator. The concurrency core never caches
// balances across operations: every mutating handler re-reads through Get
// while holding the account's lock, so Store only needs read-your-writes
// consistency within one connection, not its own cross-record ordering.
type Store interface {
	// Get retrieves an account by id. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Account, error)

	// SetBalance overwrites the balance of an existing account.
	SetBalance(ctx context.Context, id string, balance decimal.Decimal) error

	// AppendTransaction adds one history record. Append-only.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// Create inserts a new account. Returns ErrAlreadyExists on id collision.
	Create(ctx context.Context, acc Account) error

	// ListRecent returns up to limit records for the account, newest first.
	ListRecent(ctx context.Context, id string, limit int) ([]Transaction, error)

	// Close releases the store's resources.
	Close() error
}
