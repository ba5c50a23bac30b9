// Package redis publishes sink events over Redis pub/sub channels.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"bankwire/pkg/logging"
)

// Publisher implements event.Publisher over Redis pub/sub. A circuit breaker
// wraps every publish so a dead broker is skipped cheaply instead of costing
// each notification a full connection timeout.
type Publisher struct {
	client rueidis.Client
	cb     *gobreaker.CircuitBreaker
	logger *logging.Logger
	config Config
}

// Config holds the Redis connection configuration for the publisher.
type Config struct {
	// Addr is the Redis server address, e.g. "localhost:6379".
	Addr     string
	Username string
	Password string
	// DB is the Redis database number (0-15).
	DB int
	// DialTimeout bounds the initial connect/ping (default: 5s).
	DialTimeout time.Duration
	// WriteTimeout bounds each publish write (default: 3s).
	WriteTimeout time.Duration
}

// DefaultConfig returns a local single-node publisher configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewPublisher connects to Redis and verifies the connection with a ping.
func NewPublisher(config Config) (*Publisher, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis: no address configured")
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 3 * time.Second
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      []string{config.Addr},
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	logger := logging.L().Named("redis")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-publisher",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("publisher circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Publisher{
		client: client,
		cb:     cb,
		logger: logger,
		config: config,
	}, nil
}

// Publish sends payload on the given channel through the circuit breaker.
// Subscribers may be absent; pub/sub delivery is best-effort by nature.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		cmd := p.client.B().Publish().Channel(topic).Message(string(payload)).Build()
		if err := p.client.Do(ctx, cmd).Error(); err != nil {
			return nil, fmt.Errorf("redis publish %s: %w", topic, err)
		}
		return nil, nil
	})
	return err
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	p.client.Close()
	return nil
}
