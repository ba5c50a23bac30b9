// Package bridge exposes the TCP wire protocol over HTTP and WebSocket so
// that browser and REST clients can reach the transaction server without
// speaking the line protocol themselves.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bankwire/pkg/logging"
)

// Config holds the bridge HTTP server settings.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string

	// ServerAddr is the transaction server's TCP address.
	ServerAddr string

	// CommandTimeout bounds each proxied command round trip.
	CommandTimeout time.Duration
}

// Bridge is the HTTP/WebSocket facade over the wire protocol.
type Bridge struct {
	config   Config
	client   *Client
	logger   *logging.Logger
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	started bool
}

// New creates a bridge. Call Start to begin serving.
func New(config Config, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	b := &Bridge{
		config: config,
		client: NewClient(config.ServerAddr, config.CommandTimeout),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", b.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/query", b.handleQuery).Methods(http.MethodPost)
	router.HandleFunc("/api/deposit", b.handleDeposit).Methods(http.MethodPost)
	router.HandleFunc("/api/withdraw", b.handleWithdraw).Methods(http.MethodPost)
	router.HandleFunc("/api/create", b.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/api/transfer", b.handleTransfer).Methods(http.MethodPost)
	router.HandleFunc("/api/history/{id}", b.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", b.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/ws", b.handleWebSocket)

	b.server = &http.Server{
		Addr:         config.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return b
}

// Handler returns the bridge's HTTP handler, for tests and embedding.
func (b *Bridge) Handler() http.Handler {
	return b.server.Handler
}

// Start begins serving HTTP in the background.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("bridge: already started")
	}
	b.started = true

	go func() {
		b.logger.Info("bridge listening",
			zap.String("addr", b.config.Addr),
			zap.String("server_addr", b.config.ServerAddr))
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.logger.Error("bridge server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (b *Bridge) Stop(ctx context.Context) error {
	return b.server.Shutdown(ctx)
}

type accountRequest struct {
	AccountID string `json:"account_id"`
}

type amountRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

type createRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (b *Bridge) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b.proxy(w, fmt.Sprintf("QUERY %s", req.AccountID))
}

func (b *Bridge) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b.proxy(w, fmt.Sprintf("CREDIT %s %s", req.AccountID, req.Amount))
}

func (b *Bridge) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b.proxy(w, fmt.Sprintf("DEBIT %s %s", req.AccountID, req.Amount))
}

func (b *Bridge) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b.proxy(w, fmt.Sprintf("CREATE %s %s", req.AccountID, req.Name))
}

func (b *Bridge) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b.proxy(w, fmt.Sprintf("TRANSFER %s %s %s", req.From, req.To, req.Amount))
}

func (b *Bridge) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.proxy(w, fmt.Sprintf("HISTORY %s", id))
}

func (b *Bridge) handleStats(w http.ResponseWriter, r *http.Request) {
	b.proxy(w, "STATS")
}

// handleWebSocket forwards raw command lines from a WebSocket client to the
// transaction server, one reply per message.
func (b *Bridge) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	b.logger.Info("websocket client connected",
		zap.String("remote", conn.RemoteAddr().String()))

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		reply, err := b.client.Do(string(payload))
		if err != nil {
			b.logger.Warn("websocket command failed", zap.Error(err))
			reply = "ERROR|Internal error"
		}
		if err := conn.WriteJSON(parseReply(reply)); err != nil {
			break
		}
	}
}

// proxy forwards one command to the transaction server and writes the parsed
// reply as JSON.
func (b *Bridge) proxy(w http.ResponseWriter, command string) {
	line, err := b.client.Do(command)
	if err != nil {
		b.logger.Warn("proxied command failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "transaction server unavailable"})
		return
	}
	reply := parseReply(line)
	status := http.StatusOK
	if !reply.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, reply)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
