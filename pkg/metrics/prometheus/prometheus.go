// Package prometheus exports server metrics to a Prometheus registry.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bankwire/pkg/account"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	namespace string

	connectionsTotal  prometheus.Counter
	activeConnections prometheus.Gauge

	commandsTotal  *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
	transactions   *prometheus.CounterVec
	sinkPublishes  *prometheus.CounterVec
	sinkDropped    prometheus.Counter
	sinkQueueDepth prometheus.Gauge
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		namespace: namespace,
		connectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Total number of accepted client connections",
			},
		),
		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of currently open client connections",
			},
		),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of dispatched commands per verb and status",
			},
			[]string{"verb", "status"},
		),
		commandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Command dispatch latency per verb",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"verb"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of committed balance mutations per kind",
			},
			[]string{"kind"},
		),
		sinkPublishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_publishes_total",
				Help:      "Total number of event-sink publish attempts per topic and status",
			},
			[]string{"topic", "status"},
		),
		sinkDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_dropped_total",
				Help:      "Total number of notifications dropped on sink backpressure",
			},
		),
		sinkQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sink_queue_depth",
				Help:      "Current event-sink queue depth",
			},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		pc.connectionsTotal,
		pc.activeConnections,
		pc.commandsTotal,
		pc.commandLatency,
		pc.transactions,
		pc.sinkPublishes,
		pc.sinkDropped,
		pc.sinkQueueDepth,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordConnectionOpened records an accepted connection.
func (pc *PrometheusCollector) RecordConnectionOpened() {
	pc.connectionsTotal.Inc()
	pc.activeConnections.Inc()
}

// RecordConnectionClosed records a closed connection.
func (pc *PrometheusCollector) RecordConnectionClosed() {
	pc.activeConnections.Dec()
}

// RecordCommand records a dispatched command.
func (pc *PrometheusCollector) RecordCommand(verb string, ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	pc.commandsTotal.WithLabelValues(verb, status).Inc()
	pc.commandLatency.WithLabelValues(verb).Observe(duration.Seconds())
}

// RecordTransaction records a committed balance mutation.
func (pc *PrometheusCollector) RecordTransaction(kind account.Kind) {
	pc.transactions.WithLabelValues(string(kind)).Inc()
}

// RecordSinkPublish records one event-sink publish attempt.
func (pc *PrometheusCollector) RecordSinkPublish(topic string, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	pc.sinkPublishes.WithLabelValues(topic, status).Inc()
}

// RecordSinkDropped records a notification dropped on backpressure.
func (pc *PrometheusCollector) RecordSinkDropped() {
	pc.sinkDropped.Inc()
}

// RecordSinkQueueDepth records the current sink queue depth.
func (pc *PrometheusCollector) RecordSinkQueueDepth(depth int) {
	pc.sinkQueueDepth.Set(float64(depth))
}
