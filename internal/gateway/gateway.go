// Package gateway accepts websocket clients and relays their room requests to
// the broker. Every connection is handed to the broker only after an explicit
// join_order frame, and is removed from all rooms exactly once when it goes
// away.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ordertrack/internal/broker"
	"ordertrack/internal/infrastructure/metrics"
)

type Broker interface {
	Subscribe(orderID string, sub broker.Subscriber) error
	Unsubscribe(orderID string, sub broker.Subscriber)
	UnsubscribeAll(sub broker.Subscriber)
}

type Config struct {
	MaxConnections int
	SendBuffer     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		MaxConnections: 10000,
		SendBuffer:     64,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

type Gateway struct {
	broker   Broker
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *metrics.GatewayMetrics

	active atomic.Int64
	mu     sync.Mutex
	conns  map[string]*Connection
}

func New(b Broker, cfg Config, logger *zap.Logger, m *metrics.GatewayMetrics) *Gateway {
	defaults := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if m == nil {
		m = metrics.NewGatewayMetrics(nil)
	}

	return &Gateway{
		broker: b,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger.With(zap.String("component", "connection_gateway")),
		metrics: m,
		conns:   make(map[string]*Connection),
	}
}

// ServeHTTP upgrades the request and starts the connection pumps.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.reserve() {
		g.metrics.Rejected.Inc()
		g.logger.Warn("connection limit reached", zap.Int("limit", g.cfg.MaxConnections))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "RESOURCE_EXHAUSTED",
			"message": "too many connections",
		})
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.release()
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newConnection(uuid.NewString(), ws, g)
	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()
	g.metrics.Connections.Inc()

	g.logger.Info("client connected", zap.String("connectionId", c.id), zap.String("remoteAddr", r.RemoteAddr))
	_ = c.sendText(eventResponse, "Connected")

	go c.writePump()
	go c.readPump()
}

func (g *Gateway) reserve() bool {
	n := g.active.Add(1)
	if g.cfg.MaxConnections > 0 && n > int64(g.cfg.MaxConnections) {
		g.active.Add(-1)
		return false
	}
	return true
}

func (g *Gateway) release() {
	g.active.Add(-1)
}

// disconnected runs once per connection, after its read pump stops.
func (g *Gateway) disconnected(c *Connection) {
	g.broker.UnsubscribeAll(c)

	g.mu.Lock()
	delete(g.conns, c.id)
	g.mu.Unlock()
	g.release()
	g.metrics.Connections.Dec()

	g.logger.Info("client disconnected", zap.String("connectionId", c.id))
}

func (g *Gateway) Connections() int {
	return int(g.active.Load())
}

// Close asks every open connection to shut down.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}
