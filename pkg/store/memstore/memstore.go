// Package memstore provides an in-memory account.Store used by tests and by
// standalone runs without a database.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bankwire/pkg/account"
)

// Store is a mutex-guarded in-memory implementation of account.Store.
// The mutex only covers individual store calls; serializing read-modify-write
// sequences is the caller's job, exactly as with a real database.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]account.Account
	history  map[string][]account.Transaction
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]account.Account),
		history:  make(map[string][]account.Transaction),
	}
}

// Get implements account.Store.
func (s *Store) Get(ctx context.Context, id string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &acc, nil
}

// SetBalance implements account.Store.
func (s *Store) SetBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	acc.Balance = balance
	acc.UpdatedAt = time.Now()
	s.accounts[id] = acc
	return nil
}

// AppendTransaction implements account.Store.
func (s *Store) AppendTransaction(ctx context.Context, tx account.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	s.history[tx.AccountID] = append(s.history[tx.AccountID], tx)
	return nil
}

// Create implements account.Store.
func (s *Store) Create(ctx context.Context, acc account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acc.ID]; exists {
		return account.ErrAlreadyExists
	}
	now := time.Now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	s.accounts[acc.ID] = acc
	return nil
}

// ListRecent implements account.Store. Records come back newest first.
func (s *Store) ListRecent(ctx context.Context, id string, limit int) ([]account.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.history[id]
	if limit > len(all) {
		limit = len(all)
	}

	// History is appended in commit order, so the tail holds the newest.
	out := make([]account.Transaction, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Close implements account.Store.
func (s *Store) Close() error { return nil }
