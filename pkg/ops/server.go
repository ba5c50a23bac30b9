// Package ops serves the operational HTTP endpoints: health, a JSON
// statistics snapshot, and Prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bankwire/pkg/logging"
	"bankwire/pkg/stats"
)

// Server provides HTTP endpoints for monitoring. It is separate from the
// wire-protocol listener so scrapes never compete with client traffic.
type Server struct {
	stats  *stats.Stats
	server *http.Server
	logger *logging.Logger
}

// NewServer creates an ops server. registry may be nil to skip /metrics.
func NewServer(addr string, st *stats.Stats, registry *prometheus.Registry) *Server {
	s := &Server{
		stats:  st,
		logger: logging.L().Named("ops"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("ops server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"connections":  snap.Connections,
		"transactions": snap.Transactions,
		"active_peers": snap.ActivePeers,
	})
}
