package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ordertrack/internal/order/controller"
)

type Authenticator interface {
	Middleware(next http.Handler) http.Handler
}

type Gateway interface {
	http.Handler
	Connections() int
}

type RoomCounter interface {
	Rooms() int
}

type Routes struct {
	Orders  *controller.OrderController
	Gateway Gateway
	Rooms   RoomCounter
	Metrics http.Handler
	Auth    Authenticator
}

type healthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}

func NewRouter(routes Routes, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if routes.Rooms != nil {
			resp.Rooms = routes.Rooms.Rooms()
		}
		if routes.Gateway != nil {
			resp.Connections = routes.Gateway.Connections()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode response", zap.Error(err))
		}
	})
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}
	if routes.Gateway != nil {
		r.Method(http.MethodGet, "/ws", routes.Gateway)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(routes.Auth.Middleware)

		r.Post("/cart/checkout", routes.Orders.Checkout)
		r.Get("/orders", routes.Orders.ListOrders)
		r.Get("/orders/{orderId}", routes.Orders.GetOrder)
		r.Post("/orders/{orderId}/cancel", routes.Orders.CancelOrder)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				zap.String("requestId", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
