// Command bankd runs the transaction server: the TCP wire-protocol listener,
// the event sink, and the HTTP operations endpoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bankwire/pkg/account"
	"bankwire/pkg/config"
	"bankwire/pkg/event"
	"bankwire/pkg/event/redis"
	"bankwire/pkg/lockmap"
	"bankwire/pkg/logging"
	prommetrics "bankwire/pkg/metrics/prometheus"
	"bankwire/pkg/ops"
	"bankwire/pkg/proto"
	"bankwire/pkg/server"
	"bankwire/pkg/stats"
	"bankwire/pkg/store/memstore"
	"bankwire/pkg/store/postgres"
)

func main() {
	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	cfg := config.FromEnv()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer store.Close()

	collector := prommetrics.NewPrometheusCollector("bankwire")
	registry := prometheus.NewRegistry()
	if err := collector.Register(registry); err != nil {
		logger.Fatal("metrics registration failed", zap.Error(err))
	}

	sink := openSink(cfg, collector, logger)
	defer sink.Close()

	st := stats.New()
	proc := proto.NewProcessor(store, lockmap.New(), sink, st, collector)
	srv := server.New(proc, st, collector, server.Config{Addr: cfg.ListenAddr})
	if err := srv.Start(); err != nil {
		logger.Fatal("listen failed", zap.Error(err))
	}

	var opsServer *ops.Server
	if cfg.MetricsAddr != "" {
		opsServer = ops.NewServer(cfg.MetricsAddr, st, registry)
		opsServer.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if opsServer != nil {
		opsServer.Stop(ctx)
	}
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// openStore selects postgres when DB_HOST is set and the in-memory store
// otherwise.
func openStore(cfg config.Config, logger *logging.Logger) (account.Store, error) {
	if cfg.DB.Host == "" {
		logger.Info("using in-memory store")
		return memstore.New(), nil
	}
	logger.Info("using postgres store",
		zap.String("host", cfg.DB.Host),
		zap.String("database", cfg.DB.Name))
	return postgres.New(postgres.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	})
}

// openSink selects the async Redis sink when REDIS_ADDR is set. Event
// delivery is best effort: a missing or failing broker falls back to the
// no-op sink rather than blocking startup.
func openSink(cfg config.Config, collector *prommetrics.PrometheusCollector, logger *logging.Logger) event.Sink {
	if cfg.Redis.Addr == "" {
		logger.Info("event sink disabled")
		return event.NoOpSink{}
	}
	publisher, err := redis.NewPublisher(redis.Config{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("redis unavailable, events disabled", zap.Error(err))
		return event.NoOpSink{}
	}
	logger.Info("publishing events to redis", zap.String("addr", cfg.Redis.Addr))
	return event.NewAsyncSink(publisher, event.AsyncSinkConfig{}, collector)
}
