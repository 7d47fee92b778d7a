package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID          string
	OwnerID     string
	Status      Status
	Items       []OrderItem
	TotalPrice  decimal.Decimal
	Address     string
	PhoneNumber string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeliveredAt *time.Time
}

// NewOrder is the checkout payload accepted by the registry.
type NewOrder struct {
	OwnerID     string
	Items       []OrderItem
	TotalPrice  decimal.Decimal
	Address     string
	PhoneNumber string
	Notes       string
}

// Clone returns a snapshot that shares no mutable state with o.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return c
}

// StatusEvent returns the broadcast payload for the order's current status.
func (o Order) StatusEvent() StatusEvent {
	return StatusEvent{
		OrderID:   o.ID,
		Status:    o.Status,
		Timestamp: o.UpdatedAt,
	}
}
