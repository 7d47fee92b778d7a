package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	Items       []CheckoutItem   `json:"items" validate:"required,min=1,max=100,dive"`
	TotalPrice  *decimal.Decimal `json:"total_price" validate:"required"`
	Address     string           `json:"address" validate:"required,max=500"`
	PhoneNumber string           `json:"phone_number" validate:"required,max=32"`
	Notes       string           `json:"notes" validate:"max=1000"`
}

type CheckoutItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity" validate:"gte=1,lte=10000"`
	Price     decimal.Decimal `json:"price"`
}

type CheckoutResponse struct {
	OrderID    string          `json:"order_id"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}
