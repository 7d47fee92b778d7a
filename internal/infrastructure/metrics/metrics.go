package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ordertrack"

// A nil Registerer creates unregistered collectors.

type BrokerMetrics struct {
	Rooms            prometheus.Gauge
	Subscriptions    prometheus.Gauge
	Published        prometheus.Counter
	Delivered        prometheus.Counter
	DeliveryFailures prometheus.Counter
}

func NewBrokerMetrics(reg prometheus.Registerer) *BrokerMetrics {
	f := promauto.With(reg)
	return &BrokerMetrics{
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "rooms",
			Help:      "Number of order rooms with at least one subscriber.",
		}),
		Subscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "subscriptions",
			Help:      "Number of active (room, connection) subscriptions.",
		}),
		Published: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "events_published_total",
			Help:      "Total number of status events published to rooms.",
		}),
		Delivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "events_delivered_total",
			Help:      "Total number of status events handed to subscribers.",
		}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "delivery_failures_total",
			Help:      "Deliveries that failed and evicted the subscriber from the room.",
		}),
	}
}

type LifecycleMetrics struct {
	Tracked  prometheus.Gauge
	Advanced *prometheus.CounterVec
	Dropped  prometheus.Counter
	Errors   prometheus.Counter
}

func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	f := promauto.With(reg)
	return &LifecycleMetrics{
		Tracked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "tracked_orders",
			Help:      "Orders currently scheduled for automatic advancement.",
		}),
		Advanced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Automatic status transitions by target status.",
		}, []string{"status"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "dropped_total",
			Help:      "Orders removed from scheduling because they became terminal.",
		}),
		Errors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "errors_total",
			Help:      "Unexpected errors while advancing orders.",
		}),
	}
}

type GatewayMetrics struct {
	Connections prometheus.Gauge
	Rejected    prometheus.Counter
	Evicted     prometheus.Counter
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	f := promauto.With(reg)
	return &GatewayMetrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "rejected_total",
			Help:      "Connections refused because the connection limit was reached.",
		}),
		Evicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "evicted_total",
			Help:      "Connections closed because their send queue was full.",
		}),
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
