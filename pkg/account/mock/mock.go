// Package mock provides a test double for the account.Store interface with
// injectable behavior per method and race-free call counting.
package mock

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"bankwire/pkg/account"
)

// Store is a mock implementation of account.Store. Set the *Func hooks to
// customize behavior; unset hooks return zero values.
type Store struct {
	GetFunc               func(ctx context.Context, id string) (*account.Account, error)
	SetBalanceFunc        func(ctx context.Context, id string, balance decimal.Decimal) error
	AppendTransactionFunc func(ctx context.Context, tx account.Transaction) error
	CreateFunc            func(ctx context.Context, acc account.Account) error
	ListRecentFunc        func(ctx context.Context, id string, limit int) ([]account.Transaction, error)

	getCalls    int64
	setCalls    int64
	appendCalls int64
	createCalls int64
	listCalls   int64
}

// Get implements account.Store.
func (m *Store) Get(ctx context.Context, id string) (*account.Account, error) {
	atomic.AddInt64(&m.getCalls, 1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, account.ErrNotFound
}

// SetBalance implements account.Store.
func (m *Store) SetBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	atomic.AddInt64(&m.setCalls, 1)
	if m.SetBalanceFunc != nil {
		return m.SetBalanceFunc(ctx, id, balance)
	}
	return nil
}

// AppendTransaction implements account.Store.
func (m *Store) AppendTransaction(ctx context.Context, tx account.Transaction) error {
	atomic.AddInt64(&m.appendCalls, 1)
	if m.AppendTransactionFunc != nil {
		return m.AppendTransactionFunc(ctx, tx)
	}
	return nil
}

// Create implements account.Store.
func (m *Store) Create(ctx context.Context, acc account.Account) error {
	atomic.AddInt64(&m.createCalls, 1)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, acc)
	}
	return nil
}

// ListRecent implements account.Store.
func (m *Store) ListRecent(ctx context.Context, id string, limit int) ([]account.Transaction, error) {
	atomic.AddInt64(&m.listCalls, 1)
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, id, limit)
	}
	return nil, nil
}

// Close implements account.Store.
func (m *Store) Close() error { return nil }

// GetCalls returns the number of Get calls (thread-safe).
func (m *Store) GetCalls() int { return int(atomic.LoadInt64(&m.getCalls)) }

// SetBalanceCalls returns the number of SetBalance calls (thread-safe).
func (m *Store) SetBalanceCalls() int { return int(atomic.LoadInt64(&m.setCalls)) }

// AppendTransactionCalls returns the number of AppendTransaction calls (thread-safe).
func (m *Store) AppendTransactionCalls() int { return int(atomic.LoadInt64(&m.appendCalls)) }

// CreateCalls returns the number of Create calls (thread-safe).
func (m *Store) CreateCalls() int { return int(atomic.LoadInt64(&m.createCalls)) }

// ListRecentCalls returns the number of ListRecent calls (thread-safe).
func (m *Store) ListRecentCalls() int { return int(atomic.LoadInt64(&m.listCalls)) }
