package proto

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankwire/pkg/account"
	"bankwire/pkg/event"
	"bankwire/pkg/lockmap"
	"bankwire/pkg/logging"
	"bankwire/pkg/metrics"
	"bankwire/pkg/money"
	"bankwire/pkg/stats"
)

// HistoryLimit is the maximum number of records a HISTORY reply carries.
const HistoryLimit = 10

// historyTimeFormat renders record timestamps in replies.
const historyTimeFormat = "2006-01-02 15:04:05"

// LowBalanceThreshold triggers an alert notification when a withdrawal leaves
// the balance below it.
var LowBalanceThreshold = decimal.NewFromInt(100)

// Processor validates parsed commands and runs the operation handlers.
// Handlers own the concurrency protocol: single-account mutations hold that
// account's lock for the whole read-modify-write, transfers hold both locks
// acquired in id order. Handlers are free of parsing concerns; Dispatch is
// free of business logic.
type Processor struct {
	store   account.Store
	locks   *lockmap.Registry
	sink    event.Sink
	stats   *stats.Stats
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewProcessor wires a processor. sink may be event.NoOpSink{}; collector may
// be nil for no metrics.
func NewProcessor(store account.Store, locks *lockmap.Registry, sink event.Sink, st *stats.Stats, collector metrics.Collector) *Processor {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Processor{
		store:   store,
		locks:   locks,
		sink:    sink,
		stats:   st,
		metrics: collector,
		logger:  logging.L().Named("proto"),
	}
}

// Dispatch parses one request line, runs the matching handler, and returns
// the reply line plus whether the session should end (QUIT). Every failure is
// reported in the reply; Dispatch never returns an error because one failed
// command must not terminate the connection.
func (p *Processor) Dispatch(ctx context.Context, line string) (reply string, quit bool) {
	cmd := Parse(line)
	start := time.Now()
	defer func() {
		verb := cmd.Verb
		if verb == "" {
			verb = "EMPTY"
		}
		p.metrics.RecordCommand(verb, reply[0] == 'O', time.Since(start))
	}()

	switch cmd.Verb {
	case VerbQuery:
		if len(cmd.Args) < 1 {
			return replyBadCommand, false
		}
		return p.handleQuery(ctx, cmd.Args[0]), false

	case VerbCredit:
		if len(cmd.Args) < 2 {
			return replyBadCommand, false
		}
		return p.handleCredit(ctx, cmd.Args[0], cmd.Args[1]), false

	case VerbDebit:
		if len(cmd.Args) < 2 {
			return replyBadCommand, false
		}
		return p.handleDebit(ctx, cmd.Args[0], cmd.Args[1]), false

	case VerbCreate:
		if len(cmd.Args) < 2 {
			return replyBadCommand, false
		}
		return p.handleCreate(ctx, cmd.Args[0], cmd.Args[1:]), false

	case VerbTransfer:
		if len(cmd.Args) < 3 {
			return replyBadCommand, false
		}
		return p.handleTransfer(ctx, cmd.Args[0], cmd.Args[1], cmd.Args[2]), false

	case VerbHistory:
		if len(cmd.Args) < 1 {
			return replyBadCommand, false
		}
		return p.handleHistory(ctx, cmd.Args[0]), false

	case VerbStats:
		return p.handleStats(), false

	case VerbQuit:
		return ok("Goodbye"), true

	default:
		return replyBadCommand, false
	}
}

// handleQuery reads an account without locking; a point-in-time read needs no
// serialization against concurrent mutations.
func (p *Processor) handleQuery(ctx context.Context, id string) string {
	acc, err := p.store.Get(ctx, id)
	if err != nil {
		return p.storeFailure("query", err)
	}
	return ok(acc.FirstName, acc.LastName, money.Format(acc.Balance))
}

func (p *Processor) handleCredit(ctx context.Context, id, amountTok string) string {
	amount, errReply := parseAmount(amountTok)
	if errReply != "" {
		return errReply
	}

	lock := p.locks.AcquireFor(id)
	lock.Lock()
	defer lock.Unlock()

	// Re-read inside the lock; balances are never cached across operations.
	acc, err := p.store.Get(ctx, id)
	if err != nil {
		return p.storeFailure("credit", err)
	}

	previous := acc.Balance
	newBalance := previous.Add(amount)

	tx, errReply := p.commit(ctx, id, account.KindDeposit, amount, newBalance)
	if errReply != "" {
		return errReply
	}

	p.sink.NotifyTransaction(tx)
	p.sink.NotifyBalance(id, newBalance, previous)

	p.logger.Info("deposit committed",
		zap.String("account", id),
		zap.String("amount", money.Format(amount)),
		zap.String("balance", money.Format(newBalance)),
	)
	return ok("Deposit successful", money.Format(newBalance))
}

func (p *Processor) handleDebit(ctx context.Context, id, amountTok string) string {
	amount, errReply := parseAmount(amountTok)
	if errReply != "" {
		return errReply
	}

	lock := p.locks.AcquireFor(id)
	lock.Lock()
	defer lock.Unlock()

	acc, err := p.store.Get(ctx, id)
	if err != nil {
		return p.storeFailure("debit", err)
	}

	previous := acc.Balance
	if previous.LessThan(amount) {
		return fail("Insufficient funds", money.Format(previous))
	}
	newBalance := previous.Sub(amount)

	tx, errReply := p.commit(ctx, id, account.KindWithdrawal, amount, newBalance)
	if errReply != "" {
		return errReply
	}

	p.sink.NotifyTransaction(tx)
	p.sink.NotifyBalance(id, newBalance, previous)
	if newBalance.LessThan(LowBalanceThreshold) {
		p.sink.NotifyAlert(event.AlertLowBalance,
			"Balance below "+money.Format(LowBalanceThreshold), id)
	}

	p.logger.Info("withdrawal committed",
		zap.String("account", id),
		zap.String("amount", money.Format(amount)),
		zap.String("balance", money.Format(newBalance)),
	)
	return ok("Withdrawal successful", money.Format(newBalance))
}

func (p *Processor) handleCreate(ctx context.Context, id string, nameTokens []string) string {
	if !account.ValidID(id) {
		return replyInvalidID
	}
	if len(nameTokens) < 2 {
		return replyNameRequired
	}

	first, last := account.SplitName(nameTokens)
	acc := account.Account{
		ID:        id,
		FirstName: first,
		LastName:  last,
		Balance:   decimal.Zero,
	}

	if err := p.store.Create(ctx, acc); err != nil {
		if errors.Is(err, account.ErrAlreadyExists) {
			return replyExists
		}
		return p.storeFailure("create", err)
	}

	p.logger.Info("account created", zap.String("account", id))
	return ok("Account created", first, last, money.Format(decimal.Zero))
}

// handleTransfer moves funds between two accounts while holding both account
// locks, acquired in lexicographic id order regardless of direction. The
// fixed global order is the sole deadlock-avoidance mechanism: concurrent
// transfers cannot form a cyclic wait when every one locks the lower id
// first.
func (p *Processor) handleTransfer(ctx context.Context, from, to, amountTok string) string {
	amount, errReply := parseAmount(amountTok)
	if errReply != "" {
		return errReply
	}
	if from == to {
		return replySelfTransfer
	}

	first, second := p.locks.OrderedPair(from, to)
	first.Lock()
	defer first.Unlock()
	second.Lock()
	defer second.Unlock()

	src, err := p.store.Get(ctx, from)
	if err != nil {
		if account.IsNotFound(err) {
			return replySourceMissing
		}
		return p.storeFailure("transfer", err)
	}
	dst, err := p.store.Get(ctx, to)
	if err != nil {
		if account.IsNotFound(err) {
			return replyDestMissing
		}
		return p.storeFailure("transfer", err)
	}

	if src.Balance.LessThan(amount) {
		return fail("Insufficient funds", money.Format(src.Balance))
	}

	newFrom := src.Balance.Sub(amount)
	newTo := dst.Balance.Add(amount)

	sent, errReply := p.commit(ctx, from, account.KindTransferSent, amount, newFrom)
	if errReply != "" {
		return errReply
	}
	received, errReply := p.commit(ctx, to, account.KindTransferReceived, amount, newTo)
	if errReply != "" {
		return errReply
	}

	p.sink.NotifyTransfer(from, to, amount, newFrom, newTo)
	p.sink.NotifyTransaction(sent)
	p.sink.NotifyTransaction(received)
	p.sink.NotifyBalance(from, newFrom, src.Balance)
	p.sink.NotifyBalance(to, newTo, dst.Balance)

	p.logger.Info("transfer committed",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", money.Format(amount)),
	)
	return ok("Transfer successful", money.Format(newFrom), money.Format(newTo))
}

// handleHistory reads without locking; it tolerates eventual consistency with
// in-flight mutations.
func (p *Processor) handleHistory(ctx context.Context, id string) string {
	records, err := p.store.ListRecent(ctx, id, HistoryLimit)
	if err != nil {
		return p.storeFailure("history", err)
	}
	if len(records) == 0 {
		return ok("No transactions")
	}

	fields := make([]string, 0, len(records)*4)
	for _, tx := range records {
		fields = append(fields,
			string(tx.Kind),
			money.Format(tx.Amount),
			money.Format(tx.Balance),
			tx.CreatedAt.Format(historyTimeFormat),
		)
	}
	return ok(fields...)
}

func (p *Processor) handleStats() string {
	snap := p.stats.Snapshot()
	p.sink.NotifyStats(snap)
	return ok(
		"Connections: "+strconv.FormatUint(snap.Connections, 10),
		"Transactions: "+strconv.FormatUint(snap.Transactions, 10),
		"Active peers: "+strconv.Itoa(snap.ActivePeers),
	)
}

// commit persists a balance and its history record, then bumps the counters.
// Returns the written record, or a non-empty failure reply.
func (p *Processor) commit(ctx context.Context, id string, kind account.Kind, amount, balance decimal.Decimal) (account.Transaction, string) {
	if err := p.store.SetBalance(ctx, id, balance); err != nil {
		return account.Transaction{}, p.storeFailure("set balance", err)
	}

	tx := account.Transaction{
		AccountID: id,
		Kind:      kind,
		Amount:    amount,
		Balance:   balance,
		CreatedAt: time.Now(),
	}
	if err := p.store.AppendTransaction(ctx, tx); err != nil {
		return account.Transaction{}, p.storeFailure("append transaction", err)
	}

	p.stats.AddTransactions(1)
	p.metrics.RecordTransaction(kind)
	return tx, ""
}

// storeFailure maps a store error to its reply and logs anything unexpected.
// Store internals never leak into the reply line.
func (p *Processor) storeFailure(op string, err error) string {
	if account.IsNotFound(err) {
		return replyNotFound
	}
	p.logger.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return replyInternalError
}

// parseAmount maps amount-token errors to their replies.
func parseAmount(token string) (decimal.Decimal, string) {
	amount, err := money.ParsePositive(token)
	if err != nil {
		if errors.Is(err, money.ErrNonPositiveAmount) {
			return decimal.Zero, replyNonPositive
		}
		return decimal.Zero, replyBadAmount
	}
	return amount, ""
}
