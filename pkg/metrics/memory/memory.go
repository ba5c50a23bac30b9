// Package memory provides an in-memory metrics Collector for tests.
package memory

import (
	"sync"
	"time"

	"bankwire/pkg/account"
)

// MemoryCollector implements metrics.Collector for in-memory testing.
type MemoryCollector struct {
	mu sync.RWMutex

	connectionsOpened int64
	connectionsClosed int64

	commands        map[string]*CommandMetrics
	transactions    map[account.Kind]int64
	sinkPublished   map[string]int64
	sinkFailed      map[string]int64
	sinkDropped     int64
	sinkQueueDepth  int
	commandDuration []time.Duration
}

// CommandMetrics holds per-verb command counts.
type CommandMetrics struct {
	OK     int64
	Failed int64
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		commands:      make(map[string]*CommandMetrics),
		transactions:  make(map[account.Kind]int64),
		sinkPublished: make(map[string]int64),
		sinkFailed:    make(map[string]int64),
	}
}

// RecordConnectionOpened records an accepted connection.
func (mc *MemoryCollector) RecordConnectionOpened() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.connectionsOpened++
}

// RecordConnectionClosed records a closed connection.
func (mc *MemoryCollector) RecordConnectionClosed() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.connectionsClosed++
}

// RecordCommand records a dispatched command.
func (mc *MemoryCollector) RecordCommand(verb string, ok bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	cm, exists := mc.commands[verb]
	if !exists {
		cm = &CommandMetrics{}
		mc.commands[verb] = cm
	}
	if ok {
		cm.OK++
	} else {
		cm.Failed++
	}
	mc.commandDuration = append(mc.commandDuration, duration)
}

// RecordTransaction records a committed balance mutation.
func (mc *MemoryCollector) RecordTransaction(kind account.Kind) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.transactions[kind]++
}

// RecordSinkPublish records one event-sink publish attempt.
func (mc *MemoryCollector) RecordSinkPublish(topic string, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if success {
		mc.sinkPublished[topic]++
	} else {
		mc.sinkFailed[topic]++
	}
}

// RecordSinkDropped records a notification dropped on backpressure.
func (mc *MemoryCollector) RecordSinkDropped() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.sinkDropped++
}

// RecordSinkQueueDepth records the current sink queue depth.
func (mc *MemoryCollector) RecordSinkQueueDepth(depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.sinkQueueDepth = depth
}

// Snapshot is a copy of the current metrics state.
type Snapshot struct {
	ConnectionsOpened int64
	ConnectionsClosed int64
	Commands          map[string]CommandMetrics
	Transactions      map[account.Kind]int64
	SinkPublished     map[string]int64
	SinkFailed        map[string]int64
	SinkDropped       int64
	SinkQueueDepth    int
}

// Snapshot returns a copy of the current metrics state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snap := Snapshot{
		ConnectionsOpened: mc.connectionsOpened,
		ConnectionsClosed: mc.connectionsClosed,
		Commands:          make(map[string]CommandMetrics),
		Transactions:      make(map[account.Kind]int64),
		SinkPublished:     make(map[string]int64),
		SinkFailed:        make(map[string]int64),
		SinkDropped:       mc.sinkDropped,
		SinkQueueDepth:    mc.sinkQueueDepth,
	}
	for verb, cm := range mc.commands {
		snap.Commands[verb] = *cm
	}
	for kind, n := range mc.transactions {
		snap.Transactions[kind] = n
	}
	for topic, n := range mc.sinkPublished {
		snap.SinkPublished[topic] = n
	}
	for topic, n := range mc.sinkFailed {
		snap.SinkFailed[topic] = n
	}
	return snap
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.connectionsOpened = 0
	mc.connectionsClosed = 0
	mc.commands = make(map[string]*CommandMetrics)
	mc.transactions = make(map[account.Kind]int64)
	mc.sinkPublished = make(map[string]int64)
	mc.sinkFailed = make(map[string]int64)
	mc.sinkDropped = 0
	mc.sinkQueueDepth = 0
	mc.commandDuration = nil
}
