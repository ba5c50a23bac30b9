// Command seed bootstraps the PostgreSQL schema and loads a set of sample
// accounts with a short transaction history, for demos and manual testing.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankwire/pkg/account"
	"bankwire/pkg/config"
	"bankwire/pkg/logging"
	"bankwire/pkg/store/postgres"
)

type sampleAccount struct {
	id      string
	first   string
	last    string
	balance string
}

type sampleTransaction struct {
	id      string
	kind    account.Kind
	amount  string
	balance string
}

var sampleAccounts = []sampleAccount{
	{"0315151515", "Juan", "Perez Garcia", "1500.00"},
	{"0720304050", "Maria Elena", "Rodriguez Lopez", "2350.75"},
	{"0987654321", "Pedro Jose", "Martinez Silva", "890.50"},
	{"0104567890", "Ana Maria", "Gonzalez Torres", "3200.00"},
	{"0912345678", "Luis Alberto", "Fernandez Ruiz", "450.25"},
}

var sampleTransactions = []sampleTransaction{
	{"0315151515", account.KindDeposit, "500.00", "1500.00"},
	{"0315151515", account.KindWithdrawal, "200.00", "1300.00"},
	{"0315151515", account.KindDeposit, "200.00", "1500.00"},
	{"0720304050", account.KindDeposit, "1000.00", "2350.75"},
	{"0987654321", account.KindWithdrawal, "100.00", "790.50"},
	{"0104567890", account.KindDeposit, "3200.00", "3200.00"},
}

func main() {
	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.FromEnv()
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}

	// New creates the schema if it does not exist yet.
	store, err := postgres.New(postgres.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	for _, sa := range sampleAccounts {
		err := store.Create(ctx, account.Account{
			ID:        sa.id,
			FirstName: sa.first,
			LastName:  sa.last,
			Balance:   decimal.RequireFromString(sa.balance),
		})
		if errors.Is(err, account.ErrAlreadyExists) {
			logger.Info("account already present", zap.String("account", sa.id))
			continue
		}
		if err != nil {
			logger.Fatal("create failed", zap.String("account", sa.id), zap.Error(err))
		}
		created++
	}
	logger.Info("accounts seeded", zap.Int("created", created))

	if created == 0 {
		logger.Info("skipping sample transactions, accounts existed")
		return
	}

	for _, tx := range sampleTransactions {
		amount := decimal.RequireFromString(tx.amount)
		balance := decimal.RequireFromString(tx.balance)
		err := store.AppendTransaction(ctx, account.Transaction{
			AccountID: tx.id,
			Kind:      tx.kind,
			Amount:    amount,
			Balance:   balance,
			CreatedAt: time.Now(),
		})
		if err != nil {
			logger.Fatal("transaction insert failed", zap.String("account", tx.id), zap.Error(err))
		}
	}
	logger.Info("sample transactions seeded", zap.Int("count", len(sampleTransactions)))
}
