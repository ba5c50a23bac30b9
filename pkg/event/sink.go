// Package event delivers best-effort notifications about committed
// transactions to an external channel. Delivery is fire-and-forget: a failure
// or an absent broker never propagates back into the command path.
package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bankwire/pkg/account"
	"bankwire/pkg/money"
	"bankwire/pkg/stats"
)

// Topic names mirror the notification channel layout: one firehose topic for
// all transactions, one per-kind topic, and a per-account balance topic.
const (
	TopicTransactions = "bank.transactions"
	TopicDeposits     = "bank.deposits"
	TopicWithdrawals  = "bank.withdrawals"
	TopicTransfers    = "bank.transfers"
	TopicBalance      = "bank.balance" // suffixed with ".<account id>"
	TopicStats        = "bank.stats"
	TopicAlerts       = "bank.alerts"
)

// AlertLowBalance is published when a withdrawal leaves a balance below the
// low-balance threshold.
const AlertLowBalance = "LOW_BALANCE"

// Sink is the notification collaborator the command processor talks to.
// Implementations must never block the caller beyond a bounded enqueue and
// must swallow delivery failures.
type Sink interface {
	NotifyTransaction(tx account.Transaction)
	NotifyBalance(accountID string, balance, previous decimal.Decimal)
	NotifyTransfer(from, to string, amount, fromBalance, toBalance decimal.Decimal)
	NotifyAlert(alertType, message, accountID string)
	NotifyStats(snap stats.Snapshot)
	Close() error
}

// Publisher is the transport a Sink publishes through. The payload is
// marshaled to JSON by the caller.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// TransactionEvent is the JSON payload for transaction topics.
type TransactionEvent struct {
	AccountID string `json:"account_id"`
	Kind      string `json:"kind"`
	Amount    string `json:"amount"`
	Balance   string `json:"balance"`
	Timestamp string `json:"timestamp"`
}

// BalanceEvent is the JSON payload for per-account balance topics.
type BalanceEvent struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
	Previous  string `json:"previous"`
	Timestamp string `json:"timestamp"`
}

// TransferEvent is the JSON payload for the transfers topic.
type TransferEvent struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	FromBalance string `json:"from_balance"`
	ToBalance   string `json:"to_balance"`
	Timestamp   string `json:"timestamp"`
}

// AlertEvent is the JSON payload for the alerts topic.
type AlertEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	AccountID string `json:"account_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// StatsEvent is the JSON payload for the stats topic.
type StatsEvent struct {
	Connections  uint64 `json:"connections"`
	Transactions uint64 `json:"transactions"`
	ActivePeers  int    `json:"active_peers"`
	Timestamp    string `json:"timestamp"`
}

func newTransactionEvent(tx account.Transaction) TransactionEvent {
	return TransactionEvent{
		AccountID: tx.AccountID,
		Kind:      string(tx.Kind),
		Amount:    money.Format(tx.Amount),
		Balance:   money.Format(tx.Balance),
		Timestamp: tx.CreatedAt.Format(time.RFC3339),
	}
}

// NoOpSink discards every notification. It is the default when no broker is
// configured; the command path does not branch on its presence.
type NoOpSink struct{}

// NotifyTransaction does nothing.
func (NoOpSink) NotifyTransaction(tx account.Transaction) {}

// NotifyBalance does nothing.
func (NoOpSink) NotifyBalance(accountID string, balance, previous decimal.Decimal) {}

// NotifyTransfer does nothing.
func (NoOpSink) NotifyTransfer(from, to string, amount, fromBalance, toBalance decimal.Decimal) {}

// NotifyAlert does nothing.
func (NoOpSink) NotifyAlert(alertType, message, accountID string) {}

// NotifyStats does nothing.
func (NoOpSink) NotifyStats(snap stats.Snapshot) {}

// Close does nothing.
func (NoOpSink) Close() error { return nil }
