package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bankwire/pkg/account"
	"bankwire/pkg/metrics"
	"bankwire/pkg/stats"
)

// capturePublisher records published topics/payloads for assertions.
type capturePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
	delay    time.Duration
	closed   int64
}

func (c *capturePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload)
	return c.err
}

func (c *capturePublisher) Close() error {
	atomic.AddInt64(&c.closed, 1)
	return nil
}

func (c *capturePublisher) published() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.topics))
	copy(out, c.topics)
	return out
}

func TestAsyncSinkPublishesTransactionTopics(t *testing.T) {
	pub := &capturePublisher{}
	sink := NewAsyncSink(pub, AsyncSinkConfig{QueueSize: 16, Workers: 1}, metrics.NoOpCollector{})

	sink.NotifyTransaction(account.Transaction{
		AccountID: "0101",
		Kind:      account.KindDeposit,
		Amount:    decimal.NewFromInt(50),
		Balance:   decimal.NewFromInt(150),
		CreatedAt: time.Now(),
	})

	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	topics := pub.published()
	if len(topics) != 2 {
		t.Fatalf("expected 2 publishes (firehose + kind topic), got %d: %v", len(topics), topics)
	}
	if topics[0] != TopicTransactions {
		t.Errorf("first topic = %q, want %q", topics[0], TopicTransactions)
	}
	if topics[1] != TopicDeposits {
		t.Errorf("second topic = %q, want %q", topics[1], TopicDeposits)
	}
	if atomic.LoadInt64(&pub.closed) != 1 {
		t.Error("Close must close the underlying publisher exactly once")
	}
}

func TestAsyncSinkBalanceTopicPerAccount(t *testing.T) {
	pub := &capturePublisher{}
	sink := NewAsyncSink(pub, AsyncSinkConfig{QueueSize: 16, Workers: 1}, metrics.NoOpCollector{})

	sink.NotifyBalance("0202", decimal.NewFromInt(80), decimal.NewFromInt(100))
	sink.Close()

	topics := pub.published()
	if len(topics) != 1 || topics[0] != "bank.balance.0202" {
		t.Errorf("topics = %v, want [bank.balance.0202]", topics)
	}
}

func TestAsyncSinkDropsOnBackpressure(t *testing.T) {
	pub := &capturePublisher{delay: 50 * time.Millisecond}
	sink := NewAsyncSink(pub, AsyncSinkConfig{
		QueueSize:   1,
		Workers:     1,
		MaxWaitTime: time.Millisecond,
	}, metrics.NoOpCollector{})
	defer sink.Close()

	for i := 0; i < 20; i++ {
		sink.NotifyStats(stats.Snapshot{})
	}

	total, dropped := sink.Stats()
	if dropped == 0 {
		t.Error("expected drops under backpressure, got none")
	}
	if total+dropped != 20 {
		t.Errorf("total (%d) + dropped (%d) should account for all 20 notifications", total, dropped)
	}
}

func TestAsyncSinkFailuresDoNotPropagate(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	sink := NewAsyncSink(pub, AsyncSinkConfig{QueueSize: 16, Workers: 2}, metrics.NoOpCollector{})

	// None of these may panic or block despite every publish failing.
	sink.NotifyAlert(AlertLowBalance, "balance below threshold", "0303")
	sink.NotifyTransfer("0101", "0202", decimal.NewFromInt(5), decimal.NewFromInt(95), decimal.NewFromInt(5))
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestAsyncSinkCloseDrainsQueue(t *testing.T) {
	pub := &capturePublisher{}
	sink := NewAsyncSink(pub, AsyncSinkConfig{QueueSize: 100, Workers: 1}, metrics.NoOpCollector{})

	for i := 0; i < 10; i++ {
		sink.NotifyStats(stats.Snapshot{Transactions: uint64(i)})
	}
	sink.Close()

	if got := len(pub.published()); got != 10 {
		t.Errorf("published %d events after Close, want 10 (queue must drain)", got)
	}
}
