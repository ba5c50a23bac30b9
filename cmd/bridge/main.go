// Command bridge serves the HTTP/WebSocket facade in front of a running
// transaction server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bankwire/pkg/bridge"
	"bankwire/pkg/config"
	"bankwire/pkg/logging"
)

func main() {
	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	cfg := config.FromEnv()

	b := bridge.New(bridge.Config{
		Addr:       cfg.BridgeAddr,
		ServerAddr: cfg.ServerAddr,
	}, logger)
	if err := b.Start(); err != nil {
		logger.Fatal("bridge start failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
