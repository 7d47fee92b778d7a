package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"ordertrack/internal/domain"
)

type OrderDTO struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Status      string             `json:"status"`
	Items       []domain.OrderItem `json:"items"`
	TotalPrice  decimal.Decimal    `json:"total_price"`
	Address     string             `json:"address"`
	PhoneNumber string             `json:"phone_number"`
	Notes       string             `json:"notes"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	DeliveredAt *time.Time         `json:"delivered_at"`
}

func NewOrderDTO(o domain.Order) OrderDTO {
	items := o.Items
	if items == nil {
		items = []domain.OrderItem{}
	}
	return OrderDTO{
		ID:          o.ID,
		UserID:      o.OwnerID,
		Status:      o.Status.String(),
		Items:       items,
		TotalPrice:  o.TotalPrice,
		Address:     o.Address,
		PhoneNumber: o.PhoneNumber,
		Notes:       o.Notes,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		DeliveredAt: o.DeliveredAt,
	}
}

type OrderListResponse struct {
	Orders   []OrderDTO `json:"orders"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

type CancelOrderResponse struct {
	Message string   `json:"message"`
	Order   OrderDTO `json:"order"`
}

type ErrorResponse struct {
	TraceID   string    `json:"traceId"`
	Status    int       `json:"status"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
