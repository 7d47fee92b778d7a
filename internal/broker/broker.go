// Package broker maps order ids to the connections subscribed to them and fans
// status events out to those rooms.
package broker

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/infrastructure/metrics"
)

// Subscriber is a non-owning handle to a client connection. Deliver must not
// block; an error means the connection can no longer receive events.
type Subscriber interface {
	ID() string
	Deliver(event domain.StatusEvent) error
}

type Config struct {
	Shards                int
	MaxRooms              int
	MaxRoomsPerSubscriber int
}

func DefaultConfig() Config {
	return Config{
		Shards:                32,
		MaxRooms:              0,
		MaxRoomsPerSubscriber: 64,
	}
}

type room struct {
	subscribers map[string]Subscriber
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// memberShard indexes subscriber id -> order ids so UnsubscribeAll does not
// need to scan every room.
type memberShard struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
}

// Broker is safe for concurrent use. Lock order is member shard, then room shard.
type Broker struct {
	cfg          Config
	roomShards   []*roomShard
	memberShards []*memberShard
	roomCount    atomic.Int64
	logger       *zap.Logger
	metrics      *metrics.BrokerMetrics
}

func New(cfg Config, logger *zap.Logger, m *metrics.BrokerMetrics) *Broker {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultConfig().Shards
	}
	if m == nil {
		m = metrics.NewBrokerMetrics(nil)
	}

	b := &Broker{
		cfg:          cfg,
		roomShards:   make([]*roomShard, cfg.Shards),
		memberShards: make([]*memberShard, cfg.Shards),
		logger:       logger.With(zap.String("component", "room_broker")),
		metrics:      m,
	}
	for i := 0; i < cfg.Shards; i++ {
		b.roomShards[i] = &roomShard{rooms: make(map[string]*room)}
		b.memberShards[i] = &memberShard{members: make(map[string]map[string]struct{})}
	}
	return b
}

func (b *Broker) shardIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(b.roomShards)))
}

func (b *Broker) roomShardFor(orderID string) *roomShard {
	return b.roomShards[b.shardIndex(orderID)]
}

func (b *Broker) memberShardFor(subscriberID string) *memberShard {
	return b.memberShards[b.shardIndex(subscriberID)]
}

// Subscribe adds sub to the room for orderID. Subscribing twice is a no-op.
func (b *Broker) Subscribe(orderID string, sub Subscriber) error {
	ms := b.memberShardFor(sub.ID())
	ms.mu.Lock()
	defer ms.mu.Unlock()

	joined := ms.members[sub.ID()]
	if _, ok := joined[orderID]; ok {
		return nil
	}
	if limit := b.cfg.MaxRoomsPerSubscriber; limit > 0 && len(joined) >= limit {
		return apperrors.NewResourceExhaustedError("rooms per connection", limit)
	}

	rs := b.roomShardFor(orderID)
	rs.mu.Lock()
	r, ok := rs.rooms[orderID]
	if !ok {
		if !b.reserveRoom() {
			rs.mu.Unlock()
			return apperrors.NewResourceExhaustedError("rooms", b.cfg.MaxRooms)
		}
		r = &room{subscribers: make(map[string]Subscriber)}
		rs.rooms[orderID] = r
		b.metrics.Rooms.Inc()
	}
	r.subscribers[sub.ID()] = sub
	rs.mu.Unlock()

	if joined == nil {
		joined = make(map[string]struct{})
		ms.members[sub.ID()] = joined
	}
	joined[orderID] = struct{}{}
	b.metrics.Subscriptions.Inc()

	b.logger.Debug("subscribed", zap.String("orderId", orderID), zap.String("connectionId", sub.ID()))
	return nil
}

// reserveRoom counts a new room against MaxRooms. Rooms are created under
// different shard locks, so the count is claimed with compare-and-swap.
func (b *Broker) reserveRoom() bool {
	limit := int64(b.cfg.MaxRooms)
	if limit <= 0 {
		b.roomCount.Add(1)
		return true
	}
	for {
		n := b.roomCount.Load()
		if n >= limit {
			return false
		}
		if b.roomCount.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Unsubscribe removes sub from the room for orderID. Unknown pairs are ignored.
func (b *Broker) Unsubscribe(orderID string, sub Subscriber) {
	ms := b.memberShardFor(sub.ID())
	ms.mu.Lock()
	defer ms.mu.Unlock()

	joined, ok := ms.members[sub.ID()]
	if !ok {
		return
	}
	if _, ok := joined[orderID]; !ok {
		return
	}

	b.leaveRoom(orderID, sub.ID())
	delete(joined, orderID)
	if len(joined) == 0 {
		delete(ms.members, sub.ID())
	}
}

// UnsubscribeAll removes sub from every room it joined. It is called when the
// underlying connection is lost.
func (b *Broker) UnsubscribeAll(sub Subscriber) {
	ms := b.memberShardFor(sub.ID())
	ms.mu.Lock()
	defer ms.mu.Unlock()

	joined, ok := ms.members[sub.ID()]
	if !ok {
		return
	}
	for orderID := range joined {
		b.leaveRoom(orderID, sub.ID())
	}
	delete(ms.members, sub.ID())

	b.logger.Debug("unsubscribed from all rooms", zap.String("connectionId", sub.ID()), zap.Int("rooms", len(joined)))
}

// leaveRoom must be called with the subscriber's member shard locked.
func (b *Broker) leaveRoom(orderID, subscriberID string) {
	rs := b.roomShardFor(orderID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r, ok := rs.rooms[orderID]
	if !ok {
		return
	}
	if _, ok := r.subscribers[subscriberID]; !ok {
		return
	}
	delete(r.subscribers, subscriberID)
	b.metrics.Subscriptions.Dec()

	if len(r.subscribers) == 0 {
		delete(rs.rooms, orderID)
		b.roomCount.Add(-1)
		b.metrics.Rooms.Dec()
	}
}

// Publish delivers event to every subscriber of orderID at the time of the
// call. Subscribers whose delivery fails are removed from the room; the
// failure is never returned to the caller.
func (b *Broker) Publish(orderID string, event domain.StatusEvent) {
	rs := b.roomShardFor(orderID)
	rs.mu.RLock()
	r, ok := rs.rooms[orderID]
	var targets []Subscriber
	if ok {
		targets = make([]Subscriber, 0, len(r.subscribers))
		for _, sub := range r.subscribers {
			targets = append(targets, sub)
		}
	}
	rs.mu.RUnlock()

	b.metrics.Published.Inc()
	if len(targets) == 0 {
		return
	}

	var failed []Subscriber
	for _, sub := range targets {
		if err := sub.Deliver(event); err != nil {
			failed = append(failed, sub)
			b.logger.Debug("delivery failed, evicting subscriber",
				zap.String("orderId", orderID),
				zap.String("connectionId", sub.ID()),
				zap.Error(err),
			)
			continue
		}
		b.metrics.Delivered.Inc()
	}

	for _, sub := range failed {
		b.metrics.DeliveryFailures.Inc()
		b.Unsubscribe(orderID, sub)
	}
}

func (b *Broker) Subscribers(orderID string) int {
	rs := b.roomShardFor(orderID)
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	if r, ok := rs.rooms[orderID]; ok {
		return len(r.subscribers)
	}
	return 0
}

func (b *Broker) Rooms() int {
	return int(b.roomCount.Load())
}
