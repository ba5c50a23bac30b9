// Package postgres implements the durable account.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"bankwire/pkg/account"
)

// Store wraps a PostgreSQL connection pool and implements account.Store.
//
// A bloom filter of known account ids fronts Get: an id that was never
// created is rejected without touching the database. The filter is seeded
// from the accounts table at startup and updated on Create; a false positive
// only costs one extra SELECT.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// ExpectedAccounts sizes the bloom filter (default: 100000).
	ExpectedAccounts uint
}

// DefaultConfig returns default PostgreSQL configuration.
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "bankwire",
		SSLMode:  "disable",
	}
}

// New opens a connection pool, verifies it with a ping, creates the schema if
// missing, and seeds the bloom filter from the accounts table.
func New(cfg Config) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if cfg.ExpectedAccounts == 0 {
		cfg.ExpectedAccounts = 100000
	}

	s := &Store{
		db:     db,
		filter: bloom.NewWithEstimates(cfg.ExpectedAccounts, 0.01),
	}

	if err := s.initTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init tables: %w", err)
	}
	if err := s.seedFilter(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed id filter: %w", err)
	}

	return s, nil
}

func (s *Store) initTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			balance NUMERIC(15,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			kind TEXT NOT NULL,
			amount NUMERIC(15,2) NOT NULL,
			balance NUMERIC(15,2) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) seedFilter(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts`)
	if err != nil {
		return err
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		s.filter.AddString(id)
	}
	return rows.Err()
}

func (s *Store) mayExist(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.TestString(id)
}

// Get implements account.Store.
func (s *Store) Get(ctx context.Context, id string) (*account.Account, error) {
	if !s.mayExist(id) {
		return nil, account.ErrNotFound
	}

	query := `
		SELECT id, first_name, last_name, balance, created_at, updated_at
		FROM accounts WHERE id = $1
	`

	var (
		acc     account.Account
		balance string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&acc.ID, &acc.FirstName, &acc.LastName, &balance, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}

	acc.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return &acc, nil
}

// SetBalance implements account.Store.
func (s *Store) SetBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, updated_at = now() WHERE id = $2`,
		balance.String(), id,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.ErrNotFound
	}
	return nil
}

// AppendTransaction implements account.Store.
func (s *Store) AppendTransaction(ctx context.Context, tx account.Transaction) error {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, kind, amount, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), tx.AccountID, string(tx.Kind),
		tx.Amount.String(), tx.Balance.String(), createdAt,
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// Create implements account.Store.
func (s *Store) Create(ctx context.Context, acc account.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, first_name, last_name, balance)
		 VALUES ($1, $2, $3, $4)`,
		acc.ID, acc.FirstName, acc.LastName, acc.Balance.String(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return account.ErrAlreadyExists
		}
		return fmt.Errorf("create account: %w", err)
	}

	s.mu.Lock()
	s.filter.AddString(acc.ID)
	s.mu.Unlock()
	return nil
}

// ListRecent implements account.Store.
func (s *Store) ListRecent(ctx context.Context, id string, limit int) ([]account.Transaction, error) {
	query := `
		SELECT account_id, kind, amount, balance, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []account.Transaction
	for rows.Next() {
		var (
			tx      account.Transaction
			kind    string
			amount  string
			balance string
		)
		if err := rows.Scan(&tx.AccountID, &kind, &amount, &balance, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = account.Kind(kind)
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		if tx.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse balance: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
