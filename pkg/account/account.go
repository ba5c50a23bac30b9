// Package account defines the domain model of the transaction server: accounts,
// transaction records, and the storage contract the concurrency core depends on.
package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a transaction record.
type Kind string

const (
	// KindDeposit is a balance increase via CREDIT.
	KindDeposit Kind = "DEPOSIT"
	// KindWithdrawal is a balance decrease via DEBIT.
	KindWithdrawal Kind = "WITHDRAWAL"
	// KindTransferSent is the debit half of a TRANSFER, recorded on the source.
	KindTransferSent Kind = "TRANSFER_SENT"
	// KindTransferReceived is the credit half of a TRANSFER, recorded on the destination.
	KindTransferReceived Kind = "TRANSFER_RECEIVED"
)

// Account is a balance-holding entity. Balances are fixed-point decimals and
// are never negative after a committed operation.
type Account struct {
	ID        string
	FirstName string
	LastName  string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is one append-only history record. Records are written only
// after the corresponding balance mutation committed, and are never updated
// or deleted.
type Transaction struct {
	AccountID string
	Kind      Kind
	Amount    decimal.Decimal
	Balance   decimal.Decimal // balance after the mutation
	CreatedAt time.Time
}

// IDPrefix is the structural rule account ids must satisfy at creation time.
const IDPrefix = "0"

// ValidID reports whether id satisfies the structural format rule.
// The rule is checked at creation only; lookups accept any id.
func ValidID(id string) bool {
	return len(id) > 0 && id[:1] == IDPrefix
}

// SplitName divides a free-text full name into first-name and last-name halves
// by token count, floor division: with three tokens the first token is the
// first name and the remaining two are the last name.
func SplitName(tokens []string) (first, last string) {
	mid := len(tokens) / 2
	return join(tokens[:mid]), join(tokens[mid:])
}

func join(tokens []string) string {
	out := ""
	for i, tok := range tokens {
		if i > 0 {
			out += " "
		}
		out += tok
	}
	return out
}
