package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"ordertrack/internal/domain"
)

const (
	DefaultQueueSize    = 1024
	DefaultWriteTimeout = 5 * time.Second
)

// Relay mirrors committed status events to a Kafka topic for downstream
// consumers. Messages are keyed by order id so a partition keeps per-order
// ordering. Publish only enqueues; a single goroutine drains the queue into
// the writer, and events are dropped when the queue is full.
type Relay struct {
	writer       *kafka.Writer
	logger       *zap.Logger
	writeTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan kafka.Message
	done    chan struct{}
	dropped atomic.Int64
}

type Option func(*Relay)

func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queue = make(chan kafka.Message, n)
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewRelay(brokers []string, topic string, logger *zap.Logger, opts ...Option) *Relay {
	logger = logger.With(zap.String("component", "kafka_relay"))
	if len(brokers) == 0 || topic == "" {
		return &Relay{logger: logger}
	}

	r := &Relay{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Warn("status events not relayed", zap.Int("count", len(messages)), zap.Error(err))
				}
			},
		},
		logger:       logger,
		writeTimeout: DefaultWriteTimeout,
		queue:        make(chan kafka.Message, DefaultQueueSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.run()
	return r
}

func (r *Relay) Enabled() bool {
	return r.writer != nil
}

func NewMessage(event domain.StatusEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding status event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("order_status_update")},
		},
	}, nil
}

// Publish queues the event without blocking. The registry calls it while
// holding the order lock.
func (r *Relay) Publish(orderID string, event domain.StatusEvent) {
	if !r.Enabled() {
		return
	}

	msg, err := NewMessage(event)
	if err != nil {
		r.logger.Error("building relay message", zap.String("orderId", orderID), zap.Error(err))
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- msg:
	default:
		r.dropped.Add(1)
		r.logger.Warn("relay queue full, dropping status event",
			zap.String("orderId", orderID),
			zap.String("status", string(event.Status)),
		)
	}
}

func (r *Relay) run() {
	defer close(r.done)
	for msg := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		if err := r.writer.WriteMessages(ctx, msg); err != nil {
			r.logger.Warn("relaying status event", zap.String("orderId", string(msg.Key)), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events, drains the queue and closes the writer.
func (r *Relay) Close() error {
	if !r.Enabled() {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.writer.Close()
}
