// Package stats tracks aggregate server statistics: monotonically increasing
// connection and transaction counters plus the set of currently-active peer
// addresses. All state sits behind one short-duration mutex, independent of
// the per-account locks.
package stats

import "sync"

// Stats is the mutable server statistics record.
type Stats struct {
	mu           sync.Mutex
	connections  uint64
	transactions uint64
	activePeers  map[string]int
}

// Snapshot is an immutable copy of the counters at one point in time.
type Snapshot struct {
	Connections  uint64
	Transactions uint64
	ActivePeers  int
}

// New creates an empty Stats.
func New() *Stats {
	return &Stats{activePeers: make(map[string]int)}
}

// ConnectionOpened increments the connection counter and adds the peer host
// to the active set.
func (s *Stats) ConnectionOpened(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections++
	s.activePeers[host]++
}

// ConnectionClosed removes one reference to the peer host from the active set.
// The connection counter is monotonic and is not decremented.
func (s *Stats) ConnectionClosed(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.activePeers[host]; n <= 1 {
		delete(s.activePeers, host)
	} else {
		s.activePeers[host] = n - 1
	}
}

// AddTransactions increments the transaction counter by n. A transfer counts
// as two transactions, one per history record written.
func (s *Stats) AddTransactions(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions += n
}

// Snapshot returns a consistent copy of the three counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Connections:  s.connections,
		Transactions: s.transactions,
		ActivePeers:  len(s.activePeers),
	}
}
