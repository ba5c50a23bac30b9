package proto

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"bankwire/pkg/account"
	"bankwire/pkg/account/mock"
	"bankwire/pkg/event"
	"bankwire/pkg/lockmap"
	"bankwire/pkg/metrics/memory"
	"bankwire/pkg/stats"
	"bankwire/pkg/store/memstore"
)

// recordingSink captures notifications for assertions.
type recordingSink struct {
	event.NoOpSink
	mu           sync.Mutex
	transactions []account.Transaction
	alerts       []string
	transfers    int
	statsCalls   int
}

func (r *recordingSink) NotifyTransaction(tx account.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions = append(r.transactions, tx)
}

func (r *recordingSink) NotifyAlert(alertType, message, accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alertType+":"+accountID)
}

func (r *recordingSink) NotifyTransfer(from, to string, amount, fromBalance, toBalance decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers++
}

func (r *recordingSink) NotifyStats(snap stats.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsCalls++
}

type fixture struct {
	proc  *Processor
	store *memstore.Store
	stats *stats.Stats
	sink  *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(),
		stats: stats.New(),
		sink:  &recordingSink{},
	}
	f.proc = NewProcessor(f.store, lockmap.New(), f.sink, f.stats, nil)
	return f
}

func (f *fixture) mustCreate(t *testing.T, id string, balance int64) {
	t.Helper()
	err := f.store.Create(context.Background(), account.Account{
		ID:        id,
		FirstName: "Maria",
		LastName:  "Perez",
		Balance:   decimal.NewFromInt(balance),
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", id, err)
	}
}

func (f *fixture) dispatch(t *testing.T, line string) string {
	t.Helper()
	reply, _ := f.proc.Dispatch(context.Background(), line)
	return reply
}

func TestDispatchReplies(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "0100", 100)

	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "query", line: "QUERY 0100", want: "OK|Maria|Perez|100.00"},
		{name: "query unknown", line: "QUERY 0999", want: "ERROR|Account not found"},
		{name: "credit", line: "CREDIT 0100 50", want: "OK|Deposit successful|150.00"},
		{name: "debit", line: "DEBIT 0100 30", want: "OK|Withdrawal successful|120.00"},
		{name: "debit too much", line: "DEBIT 0100 1000", want: "ERROR|Insufficient funds|120.00"},
		{name: "bad amount", line: "CREDIT 0100 abc", want: "ERROR|Invalid amount format"},
		{name: "negative amount", line: "CREDIT 0100 -5", want: "ERROR|Amount must be positive"},
		{name: "zero amount", line: "DEBIT 0100 0", want: "ERROR|Amount must be positive"},
		{name: "unknown verb", line: "FROBNICATE 0100", want: "ERROR|Bad command"},
		{name: "missing args", line: "CREDIT 0100", want: "ERROR|Bad command"},
		{name: "empty line", line: "", want: "ERROR|Bad command"},
		{name: "case insensitive verb", line: "query 0100", want: "OK|Maria|Perez|120.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.dispatch(t, tt.line); got != tt.want {
				t.Errorf("Dispatch(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	reply, quit := f.proc.Dispatch(context.Background(), "QUIT")
	if reply != "OK|Goodbye" {
		t.Errorf("reply = %q, want OK|Goodbye", reply)
	}
	if !quit {
		t.Error("QUIT must end the session")
	}

	_, quit = f.proc.Dispatch(context.Background(), "STATS")
	if quit {
		t.Error("only QUIT ends the session")
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "two name tokens",
			line: "CREATE 0300 Maria Perez",
			want: "OK|Account created|Maria|Perez|0.00",
		},
		{
			name: "four tokens split evenly",
			line: "CREATE 0301 Ana Maria Perez Gomez",
			want: "OK|Account created|Ana Maria|Perez Gomez|0.00",
		},
		{
			name: "three tokens floor split",
			line: "CREATE 0302 Jose Perez Gomez",
			want: "OK|Account created|Jose|Perez Gomez|0.00",
		},
		{
			name: "id must start with the required digit",
			line: "CREATE 9300 Maria Perez",
			want: "ERROR|Invalid id format",
		},
		{
			name: "single name token rejected",
			line: "CREATE 0303 Cher",
			want: "ERROR|First and last name required",
		},
		{
			name: "duplicate id",
			line: "CREATE 0300 Maria Perez",
			want: "ERROR|Account already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.dispatch(t, tt.line); got != tt.want {
				t.Errorf("Dispatch(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}

	// Invalid-id create must not leave an account behind.
	if got := f.dispatch(t, "QUERY 9300"); got != "ERROR|Account not found" {
		t.Errorf("account with invalid id was created: %q", got)
	}
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "0100", 70)
	f.mustCreate(t, "0200", 0)

	if got := f.dispatch(t, "TRANSFER 0100 0200 20"); got != "OK|Transfer successful|50.00|20.00" {
		t.Fatalf("transfer reply = %q", got)
	}

	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "insufficient", line: "TRANSFER 0100 0200 1000", want: "ERROR|Insufficient funds|50.00"},
		{name: "source missing", line: "TRANSFER 0999 0200 10", want: "ERROR|Source account not found"},
		{name: "destination missing", line: "TRANSFER 0100 0999 10", want: "ERROR|Destination account not found"},
		{name: "self transfer", line: "TRANSFER 0100 0100 10", want: "ERROR|Cannot transfer to the same account"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.dispatch(t, tt.line); got != tt.want {
				t.Errorf("Dispatch(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}

	// Failed transfers must not move funds.
	if got := f.dispatch(t, "QUERY 0100"); !strings.HasSuffix(got, "|50.00") {
		t.Errorf("source balance changed on failed transfer: %q", got)
	}

	// A transfer writes one record per side and counts two transactions.
	recent, err := f.store.ListRecent(context.Background(), "0200", 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Kind != account.KindTransferReceived {
		t.Errorf("destination history = %+v, want one TRANSFER_RECEIVED", recent)
	}
	if got := f.stats.Snapshot().Transactions; got != 2 {
		t.Errorf("transaction counter = %d, want 2", got)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "0100", 0)

	if got := f.dispatch(t, "HISTORY 0100"); got != "OK|No transactions" {
		t.Errorf("empty history reply = %q", got)
	}

	for i := 0; i < 12; i++ {
		if got := f.dispatch(t, "CREDIT 0100 10"); !strings.HasPrefix(got, "OK") {
			t.Fatalf("credit %d failed: %q", i, got)
		}
	}

	reply := f.dispatch(t, "HISTORY 0100")
	if !strings.HasPrefix(reply, "OK|") {
		t.Fatalf("history reply = %q", reply)
	}
	fields := strings.Split(reply, "|")[1:]
	if len(fields) != HistoryLimit*4 {
		t.Fatalf("history carries %d fields, want %d (10 records x 4 fields)", len(fields), HistoryLimit*4)
	}
	// Newest first: the first record shows the final balance.
	if fields[0] != string(account.KindDeposit) || fields[2] != "120.00" {
		t.Errorf("newest record = %v, want DEPOSIT at 120.00", fields[:4])
	}
}

func TestStatsReply(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "0100", 0)
	f.stats.ConnectionOpened("10.0.0.1")
	f.dispatch(t, "CREDIT 0100 10")

	got := f.dispatch(t, "STATS")
	want := "OK|Connections: 1|Transactions: 1|Active peers: 1"
	if got != want {
		t.Errorf("STATS = %q, want %q", got, want)
	}
	if f.sink.statsCalls != 1 {
		t.Errorf("stats snapshot forwarded %d times, want 1", f.sink.statsCalls)
	}
}

func TestLowBalanceAlert(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "0100", 500)

	f.dispatch(t, "DEBIT 0100 100") // 400.00, no alert
	if len(f.sink.alerts) != 0 {
		t.Fatalf("unexpected alert above threshold: %v", f.sink.alerts)
	}

	f.dispatch(t, "DEBIT 0100 350") // 50.00, alert
	if len(f.sink.alerts) != 1 || f.sink.alerts[0] != event.AlertLowBalance+":0100" {
		t.Errorf("alerts = %v, want one LOW_BALANCE for 0100", f.sink.alerts)
	}
}

func TestQueryIdempotent(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "0100", 100)

	first := f.dispatch(t, "QUERY 0100")
	second := f.dispatch(t, "QUERY 0100")
	if first != second {
		t.Errorf("QUERY is not idempotent: %q vs %q", first, second)
	}
}

func TestCommandMetrics(t *testing.T) {
	collector := memory.NewMemoryCollector()
	store := memstore.New()
	err := store.Create(context.Background(), account.Account{
		ID:        "0100",
		FirstName: "Maria",
		LastName:  "Perez",
		Balance:   decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	proc := NewProcessor(store, lockmap.New(), event.NoOpSink{}, stats.New(), collector)

	for _, line := range []string{
		"CREDIT 0100 50",
		"DEBIT 0100 30",
		"DEBIT 0100 9999",
		"BOGUS",
	} {
		proc.Dispatch(context.Background(), line)
	}

	snap := collector.Snapshot()
	if got := snap.Commands["CREDIT"]; got.OK != 1 || got.Failed != 0 {
		t.Errorf("CREDIT metrics = %+v, want 1 ok", got)
	}
	if got := snap.Commands["DEBIT"]; got.OK != 1 || got.Failed != 1 {
		t.Errorf("DEBIT metrics = %+v, want 1 ok 1 failed", got)
	}
	if got := snap.Commands["BOGUS"]; got.Failed != 1 {
		t.Errorf("BOGUS metrics = %+v, want 1 failed", got)
	}
	if snap.Transactions[account.KindDeposit] != 1 || snap.Transactions[account.KindWithdrawal] != 1 {
		t.Errorf("transaction metrics = %v", snap.Transactions)
	}
}

func TestStoreFailureReplies(t *testing.T) {
	boom := errors.New("connection reset")
	balance := decimal.NewFromInt(100)

	store := &mock.Store{
		GetFunc: func(ctx context.Context, id string) (*account.Account, error) {
			return &account.Account{ID: id, Balance: balance}, nil
		},
		SetBalanceFunc: func(ctx context.Context, id string, b decimal.Decimal) error {
			return boom
		},
	}
	proc := NewProcessor(store, lockmap.New(), event.NoOpSink{}, stats.New(), nil)

	// Store internals never leak into the reply line.
	reply, _ := proc.Dispatch(context.Background(), "CREDIT 0100 50")
	if reply != "ERROR|Internal error" {
		t.Errorf("reply = %q, want ERROR|Internal error", reply)
	}
	if strings.Contains(reply, "connection reset") {
		t.Errorf("store error text leaked into reply: %q", reply)
	}
	if store.SetBalanceCalls() != 1 {
		t.Errorf("SetBalance calls = %d, want 1", store.SetBalanceCalls())
	}
	if store.AppendTransactionCalls() != 0 {
		t.Errorf("AppendTransaction calls = %d, want 0 after failed SetBalance", store.AppendTransactionCalls())
	}

	// Unset hooks report not-found, which has its own reply.
	missing := &mock.Store{}
	proc = NewProcessor(missing, lockmap.New(), event.NoOpSink{}, stats.New(), nil)
	if reply, _ := proc.Dispatch(context.Background(), "QUERY 0100"); reply != "ERROR|Account not found" {
		t.Errorf("reply = %q, want ERROR|Account not found", reply)
	}
}
