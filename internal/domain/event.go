package domain

import "time"

// StatusEvent is broadcast to an order's room after every committed status change.
type StatusEvent struct {
	OrderID   string    `json:"order_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
