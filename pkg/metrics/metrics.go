package metrics

import (
	"time"

	"bankwire/pkg/account"
)

// Collector defines the interface for exporting server metrics.
// Implementations can target various backends (Prometheus, in-memory, etc.).
type Collector interface {
	// Connections
	RecordConnectionOpened()
	RecordConnectionClosed()

	// Commands
	RecordCommand(verb string, ok bool, duration time.Duration)

	// Balance mutations
	RecordTransaction(kind account.Kind)

	// Event sink
	RecordSinkPublish(topic string, success bool)
	RecordSinkDropped()
	RecordSinkQueueDepth(depth int)
}

// NoOpCollector is a no-op implementation of Collector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordConnectionOpened does nothing.
func (NoOpCollector) RecordConnectionOpened() {}

// RecordConnectionClosed does nothing.
func (NoOpCollector) RecordConnectionClosed() {}

// RecordCommand does nothing.
func (NoOpCollector) RecordCommand(verb string, ok bool, duration time.Duration) {}

// RecordTransaction does nothing.
func (NoOpCollector) RecordTransaction(kind account.Kind) {}

// RecordSinkPublish does nothing.
func (NoOpCollector) RecordSinkPublish(topic string, success bool) {}

// RecordSinkDropped does nothing.
func (NoOpCollector) RecordSinkDropped() {}

// RecordSinkQueueDepth does nothing.
func (NoOpCollector) RecordSinkQueueDepth(depth int) {}
