package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bankwire/pkg/account"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DefaultConfig())
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// uniqueID returns a fresh valid account id so runs don't collide.
func uniqueID() string {
	return fmt.Sprintf("0%d", time.Now().UnixNano())
}

func TestCreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id := uniqueID()

	err := s.Create(ctx, account.Account{
		ID:        id,
		FirstName: "Maria",
		LastName:  "Perez",
		Balance:   decimal.RequireFromString("150.25"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	acc, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acc.FirstName != "Maria" || !acc.Balance.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("Get = %+v", acc)
	}

	err = s.Create(ctx, account.Account{ID: id, FirstName: "X", LastName: "Y"})
	if !errors.Is(err, account.ErrAlreadyExists) {
		t.Errorf("duplicate Create err = %v, want ErrAlreadyExists", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := setupTestStore(t)

	// Never-created ids are rejected by the bloom guard without a query.
	_, err := s.Get(context.Background(), uniqueID())
	if !account.IsNotFound(err) {
		t.Errorf("Get missing err = %v, want not-found", err)
	}
}

func TestBalanceAndHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id := uniqueID()

	err := s.Create(ctx, account.Account{ID: id, FirstName: "Luis", LastName: "Gomez"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 1; i <= 3; i++ {
		balance := decimal.NewFromInt(int64(i * 10))
		if err := s.SetBalance(ctx, id, balance); err != nil {
			t.Fatalf("SetBalance: %v", err)
		}
		err := s.AppendTransaction(ctx, account.Transaction{
			AccountID: id,
			Kind:      account.KindDeposit,
			Amount:    decimal.NewFromInt(10),
			Balance:   balance,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("AppendTransaction: %v", err)
		}
	}

	records, err := s.ListRecent(ctx, id, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListRecent len = %d, want 2", len(records))
	}
	// Newest first.
	if !records[0].Balance.Equal(decimal.NewFromInt(30)) {
		t.Errorf("records[0].Balance = %s, want 30", records[0].Balance)
	}

	acc, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !acc.Balance.Equal(decimal.NewFromInt(30)) {
		t.Errorf("balance = %s, want 30", acc.Balance)
	}
}
