package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
)

const (
	eventResponse          = "response"
	eventMessage           = "message"
	eventError             = "error"
	eventJoinOrder         = "join_order"
	eventLeaveOrder        = "leave_order"
	eventOrderStatusUpdate = "order_status_update"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("send queue full")
)

// Frame is the envelope for every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type TextData struct {
	Data string `json:"data"`
}

// Connection is owned by the gateway. The broker only holds it as a
// broker.Subscriber; once done is closed every Deliver fails.
type Connection struct {
	id   string
	ws   *websocket.Conn
	gw   *Gateway
	send chan []byte
	done chan struct{}

	closeOnce    sync.Once
	teardownOnce sync.Once
}

func newConnection(id string, ws *websocket.Conn, gw *Gateway) *Connection {
	return &Connection{
		id:   id,
		ws:   ws,
		gw:   gw,
		send: make(chan []byte, gw.cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Deliver queues a status event without blocking. A full queue evicts the
// connection.
func (c *Connection) Deliver(event domain.StatusEvent) error {
	payload, err := encodeFrame(eventOrderStatusUpdate, event)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Connection) sendText(event, text string) error {
	payload, err := encodeFrame(event, TextData{Data: text})
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Connection) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.gw.metrics.Evicted.Inc()
		c.gw.logger.Warn("send queue full, closing connection", zap.String("connectionId", c.id))
		c.close()
		return ErrSlowConsumer
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) teardown() {
	c.teardownOnce.Do(func() {
		c.close()
		_ = c.ws.Close()
		c.gw.disconnected(c)
	})
}

func (c *Connection) readPump() {
	defer c.teardown()

	cfg := c.gw.cfg
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.logger.Debug("read failed", zap.String("connectionId", c.id), zap.Error(err))
			}
			return
		}
		c.handleFrame(msg)
	}
}

func (c *Connection) writePump() {
	cfg := c.gw.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cfg.WriteWait),
			)
			return
		}
	}
}

func (c *Connection) handleFrame(msg []byte) {
	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		_ = c.sendText(eventError, "malformed frame")
		return
	}

	switch frame.Event {
	case eventJoinOrder:
		orderID, ok := c.orderID(frame)
		if !ok {
			return
		}
		if err := c.gw.broker.Subscribe(orderID, c); err != nil {
			if re, ok := apperrors.IsResourceExhaustedError(err); ok {
				_ = c.sendText(eventError, re.Error())
				return
			}
			c.gw.logger.Error("subscribe failed", zap.String("connectionId", c.id), zap.String("orderId", orderID), zap.Error(err))
			_ = c.sendText(eventError, "could not join order")
			return
		}
		_ = c.sendText(eventMessage, fmt.Sprintf("Joined order %s", orderID))

	case eventLeaveOrder:
		orderID, ok := c.orderID(frame)
		if !ok {
			return
		}
		c.gw.broker.Unsubscribe(orderID, c)
		_ = c.sendText(eventMessage, fmt.Sprintf("Left order %s", orderID))

	default:
		_ = c.sendText(eventError, fmt.Sprintf("unknown event %q", frame.Event))
	}
}

func (c *Connection) orderID(frame Frame) (string, bool) {
	var req OrderRequest
	if len(frame.Data) == 0 || json.Unmarshal(frame.Data, &req) != nil || req.OrderID == "" {
		_ = c.sendText(eventError, "order_id is required")
		return "", false
	}
	return req.OrderID, true
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
