// Package server owns the TCP side of the transaction service: the accept
// loop that spawns one handler goroutine per client and the per-connection
// read/dispatch/reply loop.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"bankwire/pkg/logging"
	"bankwire/pkg/metrics"
	"bankwire/pkg/proto"
	"bankwire/pkg/stats"
)

// Greeting is the banner sent to every client on connect.
const Greeting = "WELCOME|Distributed Banking System v1.0"

// Config holds the listener configuration.
type Config struct {
	// Addr is the TCP listen address, e.g. ":5000". Use ":0" in tests.
	Addr string

	// MaxLineBytes bounds one request line (default: 4096).
	MaxLineBytes int
}

// DefaultConfig returns the default listener configuration.
func DefaultConfig() Config {
	return Config{Addr: ":5000", MaxLineBytes: 4096}
}

// Server accepts client connections and runs one handler goroutine per
// client. The accept loop and all handlers run concurrently; the only shared
// per-connection state is the statistics record, which has its own lock.
type Server struct {
	proc    *proto.Processor
	stats   *stats.Stats
	metrics metrics.Collector
	logger  *logging.Logger
	config  Config

	listener net.Listener
	wg       sync.WaitGroup

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
}

// New creates a server. collector may be nil for no metrics.
func New(proc *proto.Processor, st *stats.Stats, collector metrics.Collector, config Config) *Server {
	if config.MaxLineBytes <= 0 {
		config.MaxLineBytes = 4096
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Server{
		proc:    proc,
		stats:   st,
		metrics: collector,
		logger:  logging.L().Named("server"),
		config:  config,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start binds the listen address and launches the accept loop. It returns
// once the socket is bound; accepting happens in the background.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.logger.Info("listening", zap.String("addr", l.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listen address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", zap.Error(err))
			continue
		}

		host := peerHost(conn)
		s.stats.ConnectionOpened(host)
		s.metrics.RecordConnectionOpened()

		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			conn.Close()
			s.stats.ConnectionClosed(host)
			s.metrics.RecordConnectionClosed()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn, host)
	}
}

// handleConnection runs one client's session: greeting, then a blocking
// read/dispatch/reply loop until QUIT, peer disconnect, or a transport
// error. Every exit path releases the connection and removes the peer from
// the active set exactly once.
func (s *Server) handleConnection(conn net.Conn, host string) {
	logger := s.logger.With(zap.String("peer", conn.RemoteAddr().String()))

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.stats.ConnectionClosed(host)
		s.metrics.RecordConnectionClosed()
		s.wg.Done()
		logger.Info("connection closed")
	}()

	logger.Info("client connected")

	if _, err := conn.Write([]byte(Greeting + "\n")); err != nil {
		logger.Warn("greeting write failed", zap.Error(err))
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), s.config.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("request", zap.String("line", line))

		reply, quit := s.dispatch(logger, line)

		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			logger.Warn("reply write failed", zap.Error(err))
			return
		}
		if quit {
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("read failed", zap.Error(err))
	}
}

// dispatch runs one command and recovers a handler panic into a generic
// error reply, so a single bad command never takes down the connection.
func (s *Server) dispatch(logger *logging.Logger, line string) (reply string, quit bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", zap.Any("panic", r), zap.String("line", line))
			reply, quit = "ERROR|Internal error", false
		}
	}()
	return s.proc.Dispatch(context.Background(), line)
}

// Stop closes the listener, waits up to the context deadline for in-flight
// handlers, then forcibly closes whatever is left.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return ctx.Err()
	}
}

func peerHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
