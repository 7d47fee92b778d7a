package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ordertrack/internal/broker"
	"ordertrack/internal/domain"
	"ordertrack/internal/infrastructure/metrics"
)

type countingBroker struct {
	*broker.Broker

	mu                  sync.Mutex
	unsubscribeAllCalls map[string]int
}

func newCountingBroker() *countingBroker {
	return &countingBroker{
		Broker:              broker.New(broker.DefaultConfig(), zap.NewNop(), nil),
		unsubscribeAllCalls: make(map[string]int),
	}
}

func (b *countingBroker) UnsubscribeAll(sub broker.Subscriber) {
	b.mu.Lock()
	b.unsubscribeAllCalls[sub.ID()]++
	b.mu.Unlock()
	b.Broker.UnsubscribeAll(sub)
}

func (b *countingBroker) calls() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.unsubscribeAllCalls))
	for k, v := range b.unsubscribeAllCalls {
		out[k] = v
	}
	return out
}

func newTestGateway(t *testing.T, b Broker, cfg Config) (*Gateway, *metrics.GatewayMetrics, string) {
	t.Helper()
	m := metrics.NewGatewayMetrics(nil)
	gw := New(b, cfg, zap.NewNop(), m)
	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		gw.Close()
		srv.Close()
	})
	return gw, m, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func readText(t *testing.T, conn *websocket.Conn, event string) string {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, event, frame.Event)
	var data TextData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	return data.Data
}

func sendFrame(t *testing.T, conn *websocket.Conn, event, orderID string) {
	t.Helper()
	data, err := json.Marshal(OrderRequest{OrderID: orderID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Event: event, Data: data}))
}

func TestGateway_GreetingOnConnect(t *testing.T) {
	_, _, url := newTestGateway(t, newCountingBroker(), DefaultConfig())

	conn := dial(t, url)

	assert.Equal(t, "Connected", readText(t, conn, eventResponse))
}

func TestGateway_JoinThenReceiveStatusEvents(t *testing.T) {
	b := newCountingBroker()
	_, _, url := newTestGateway(t, b, DefaultConfig())

	conn := dial(t, url)
	readText(t, conn, eventResponse)

	sendFrame(t, conn, eventJoinOrder, "o1")
	assert.Equal(t, "Joined order o1", readText(t, conn, eventMessage))
	assert.Equal(t, 1, b.Subscribers("o1"))

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.Publish("o1", domain.StatusEvent{OrderID: "o1", Status: domain.StatusProcessing, Timestamp: ts})
	b.Publish("o2", domain.StatusEvent{OrderID: "o2", Status: domain.StatusProcessing, Timestamp: ts})
	b.Publish("o1", domain.StatusEvent{OrderID: "o1", Status: domain.StatusShipped, Timestamp: ts})

	for _, want := range []domain.Status{domain.StatusProcessing, domain.StatusShipped} {
		frame := readFrame(t, conn)
		require.Equal(t, eventOrderStatusUpdate, frame.Event)

		var event domain.StatusEvent
		require.NoError(t, json.Unmarshal(frame.Data, &event))
		assert.Equal(t, "o1", event.OrderID)
		assert.Equal(t, want, event.Status)
		assert.True(t, ts.Equal(event.Timestamp))
	}
}

func TestGateway_LeaveStopsDelivery(t *testing.T) {
	b := newCountingBroker()
	_, _, url := newTestGateway(t, b, DefaultConfig())

	conn := dial(t, url)
	readText(t, conn, eventResponse)

	sendFrame(t, conn, eventJoinOrder, "o1")
	readText(t, conn, eventMessage)
	sendFrame(t, conn, eventLeaveOrder, "o1")
	assert.Equal(t, "Left order o1", readText(t, conn, eventMessage))

	assert.Equal(t, 0, b.Subscribers("o1"))
}

func TestGateway_DisconnectUnsubscribesOnce(t *testing.T) {
	b := newCountingBroker()
	gw, m, url := newTestGateway(t, b, DefaultConfig())

	conn := dial(t, url)
	readText(t, conn, eventResponse)
	sendFrame(t, conn, eventJoinOrder, "o1")
	readText(t, conn, eventMessage)
	sendFrame(t, conn, eventJoinOrder, "o2")
	readText(t, conn, eventMessage)
	require.Equal(t, 1, gw.Connections())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return gw.Connections() == 0 && b.Rooms() == 0
	}, 2*time.Second, 10*time.Millisecond)

	calls := b.calls()
	require.Len(t, calls, 1)
	for _, n := range calls {
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Connections))
}

func TestGateway_MalformedAndUnknownFrames(t *testing.T) {
	_, _, url := newTestGateway(t, newCountingBroker(), DefaultConfig())

	conn := dial(t, url)
	readText(t, conn, eventResponse)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "malformed frame", readText(t, conn, eventError))

	require.NoError(t, conn.WriteJSON(Frame{Event: "dance"}))
	assert.Contains(t, readText(t, conn, eventError), "unknown event")

	require.NoError(t, conn.WriteJSON(Frame{Event: eventJoinOrder}))
	assert.Equal(t, "order_id is required", readText(t, conn, eventError))

	// the connection survives bad frames
	sendFrame(t, conn, eventJoinOrder, "o1")
	assert.Equal(t, "Joined order o1", readText(t, conn, eventMessage))
}

func TestGateway_RoomLimitReportedToClient(t *testing.T) {
	cfg := broker.DefaultConfig()
	cfg.MaxRoomsPerSubscriber = 1
	b := broker.New(cfg, zap.NewNop(), nil)
	_, _, url := newTestGateway(t, b, DefaultConfig())

	conn := dial(t, url)
	readText(t, conn, eventResponse)

	sendFrame(t, conn, eventJoinOrder, "o1")
	readText(t, conn, eventMessage)
	sendFrame(t, conn, eventJoinOrder, "o2")

	assert.Equal(t, "rooms per connection limit of 1 reached", readText(t, conn, eventError))
	assert.Equal(t, 0, b.Subscribers("o2"))
}

func TestGateway_ConnectionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	_, m, url := newTestGateway(t, newCountingBroker(), cfg)

	first := dial(t, url)
	readText(t, first, eventResponse)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Rejected))
}

func TestConnection_FullQueueEvicts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendBuffer = 1
	m := metrics.NewGatewayMetrics(nil)
	gw := New(newCountingBroker(), cfg, zap.NewNop(), m)
	c := newConnection("c1", nil, gw)

	event := domain.StatusEvent{OrderID: "o1", Status: domain.StatusProcessing, Timestamp: time.Now()}

	assert.NoError(t, c.Deliver(event))
	assert.ErrorIs(t, c.Deliver(event), ErrSlowConsumer)
	assert.ErrorIs(t, c.Deliver(event), ErrConnectionClosed)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Evicted))
}

func TestGateway_SlowConsumerDroppedFromRoom(t *testing.T) {
	b := broker.New(broker.DefaultConfig(), zap.NewNop(), nil)
	gw := New(b, Config{SendBuffer: 1}, zap.NewNop(), nil)
	c := newConnection("c1", nil, gw)
	require.NoError(t, b.Subscribe("o1", c))

	b.Publish("o1", domain.StatusEvent{OrderID: "o1", Status: domain.StatusProcessing})
	b.Publish("o1", domain.StatusEvent{OrderID: "o1", Status: domain.StatusShipped})

	assert.Equal(t, 0, b.Subscribers("o1"))
}
