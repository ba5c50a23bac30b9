package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankwire/pkg/account"
	"bankwire/pkg/logging"
	"bankwire/pkg/metrics"
	"bankwire/pkg/money"
	"bankwire/pkg/stats"
)

// ErrQueueFull is returned internally when a notification is dropped because
// the queue stayed full past the enqueue wait. It never reaches the caller.
var ErrQueueFull = errors.New("event: queue full, notification dropped")

type publishOp struct {
	topic   string
	payload []byte
}

// AsyncSink implements Sink on top of a Publisher with a bounded queue and a
// worker pool, so a slow or dead broker costs each command at most the
// enqueue wait. Notifications that cannot be enqueued in time are dropped
// and counted.
type AsyncSink struct {
	publisher Publisher
	queue     chan publishOp
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	config    AsyncSinkConfig
	metrics   metrics.Collector
	logger    *logging.Logger

	depthTicker *time.Ticker
	depthStop   chan struct{}

	dropped int64
	total   int64
}

// AsyncSinkConfig configures the async sink behavior.
type AsyncSinkConfig struct {
	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int

	// Workers is the number of concurrent publishers (default: 2)
	Workers int

	// MaxWaitTime is the max time to wait if the queue is full before
	// dropping (default: 10ms)
	MaxWaitTime time.Duration

	// PublishTimeout bounds each broker publish (default: 3s)
	PublishTimeout time.Duration
}

// NewAsyncSink creates a sink publishing through p. The sink starts its
// workers immediately and must be closed with Close().
func NewAsyncSink(p Publisher, config AsyncSinkConfig, collector metrics.Collector) *AsyncSink {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.PublishTimeout == 0 {
		config.PublishTimeout = 3 * time.Second
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &AsyncSink{
		publisher:   p,
		queue:       make(chan publishOp, config.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
		metrics:     collector,
		logger:      logging.L().Named("event"),
		depthTicker: time.NewTicker(5 * time.Second),
		depthStop:   make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	go s.reportDepth()

	return s
}

// NotifyTransaction publishes the record to the firehose topic and to the
// kind-specific deposits or withdrawals topic.
func (s *AsyncSink) NotifyTransaction(tx account.Transaction) {
	payload := newTransactionEvent(tx)
	s.enqueue(TopicTransactions, payload)
	switch tx.Kind {
	case account.KindDeposit, account.KindTransferReceived:
		s.enqueue(TopicDeposits, payload)
	case account.KindWithdrawal, account.KindTransferSent:
		s.enqueue(TopicWithdrawals, payload)
	}
}

// NotifyBalance publishes a balance change on the per-account balance topic.
func (s *AsyncSink) NotifyBalance(accountID string, balance, previous decimal.Decimal) {
	s.enqueue(TopicBalance+"."+accountID, BalanceEvent{
		AccountID: accountID,
		Balance:   money.Format(balance),
		Previous:  money.Format(previous),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// NotifyTransfer publishes one event describing both sides of a transfer.
func (s *AsyncSink) NotifyTransfer(from, to string, amount, fromBalance, toBalance decimal.Decimal) {
	s.enqueue(TopicTransfers, TransferEvent{
		From:        from,
		To:          to,
		Amount:      money.Format(amount),
		FromBalance: money.Format(fromBalance),
		ToBalance:   money.Format(toBalance),
		Timestamp:   time.Now().Format(time.RFC3339),
	})
}

// NotifyAlert publishes to the alerts topic.
func (s *AsyncSink) NotifyAlert(alertType, message, accountID string) {
	s.enqueue(TopicAlerts, AlertEvent{
		Type:      alertType,
		Message:   message,
		AccountID: accountID,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// NotifyStats publishes a statistics snapshot.
func (s *AsyncSink) NotifyStats(snap stats.Snapshot) {
	s.enqueue(TopicStats, StatsEvent{
		Connections:  snap.Connections,
		Transactions: snap.Transactions,
		ActivePeers:  snap.ActivePeers,
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

func (s *AsyncSink) enqueue(topic string, payload interface{}) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("event payload marshal failed", zap.String("topic", topic), zap.Error(err))
		return
	}

	op := publishOp{topic: topic, payload: data}

	timer := time.NewTimer(s.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case s.queue <- op:
		atomic.AddInt64(&s.total, 1)
	case <-timer.C:
		atomic.AddInt64(&s.dropped, 1)
		s.metrics.RecordSinkDropped()
	case <-s.ctx.Done():
	}
}

func (s *AsyncSink) worker() {
	defer s.wg.Done()

	for {
		select {
		case op, ok := <-s.queue:
			if !ok {
				return
			}
			s.publish(op)
		case <-s.ctx.Done():
			// Drain whatever is already queued before exiting.
			for {
				select {
				case op, ok := <-s.queue:
					if !ok {
						return
					}
					s.publish(op)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncSink) publish(op publishOp) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.PublishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, op.topic, op.payload)
	s.metrics.RecordSinkPublish(op.topic, err == nil)
	if err != nil {
		s.logger.Debug("event publish failed", zap.String("topic", op.topic), zap.Error(err))
	}
}

// Stats returns enqueue/drop counters for introspection.
func (s *AsyncSink) Stats() (total, dropped int64) {
	return atomic.LoadInt64(&s.total), atomic.LoadInt64(&s.dropped)
}

// Close stops accepting notifications, drains the queue, and closes the
// underlying publisher.
func (s *AsyncSink) Close() error {
	close(s.depthStop)
	s.depthTicker.Stop()

	s.cancel()
	s.wg.Wait()

	return s.publisher.Close()
}

func (s *AsyncSink) reportDepth() {
	for {
		select {
		case <-s.depthTicker.C:
			s.metrics.RecordSinkQueueDepth(len(s.queue))
		case <-s.depthStop:
			return
		}
	}
}
