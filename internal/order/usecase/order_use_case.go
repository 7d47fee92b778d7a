package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type OrderRegistry interface {
	Create(ctx context.Context, payload domain.NewOrder) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByOwner(ctx context.Context, ownerID string) []domain.Order
	Cancel(ctx context.Context, id string, requesterID string) (domain.Order, error)
}

type LifecycleTracker interface {
	Track(orderID string, since time.Time)
}

type OrderPage struct {
	Orders   []domain.Order
	Total    int
	Page     int
	PageSize int
}

type OrderUseCase struct {
	orders  OrderRegistry
	tracker LifecycleTracker
	logger  *zap.Logger
}

func NewOrderUseCase(orders OrderRegistry, tracker LifecycleTracker, logger *zap.Logger) *OrderUseCase {
	return &OrderUseCase{
		orders:  orders,
		tracker: tracker,
		logger:  logger,
	}
}

// Checkout creates a pending order for the caller and hands it to the
// lifecycle driver.
func (uc *OrderUseCase) Checkout(ctx context.Context, payload domain.NewOrder) (domain.Order, error) {
	if payload.TotalPrice.IsNegative() {
		return domain.Order{}, apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
			Field:   "total_price",
			Message: "total_price must be non-negative",
		})
	}

	order, err := uc.orders.Create(ctx, payload)
	if err != nil {
		return domain.Order{}, err
	}

	uc.tracker.Track(order.ID, order.CreatedAt)
	uc.logger.Info("checkout completed",
		zap.String("orderId", order.ID),
		zap.String("userId", order.OwnerID),
		zap.Int("itemCount", len(order.Items)),
		zap.String("totalPrice", order.TotalPrice.String()),
	)
	return order, nil
}

func (uc *OrderUseCase) GetOrder(ctx context.Context, requesterID, orderID string) (domain.Order, error) {
	order, err := uc.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.OwnerID != requesterID {
		return domain.Order{}, apperrors.NewForbiddenError("Unauthorized")
	}
	return order, nil
}

// ListOrders pages through the caller's orders in creation order. Out of range
// paging values fall back to the defaults.
func (uc *OrderUseCase) ListOrders(ctx context.Context, ownerID string, page, pageSize int) OrderPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	all := uc.orders.ListByOwner(ctx, ownerID)
	result := OrderPage{
		Orders:   []domain.Order{},
		Total:    len(all),
		Page:     page,
		PageSize: pageSize,
	}

	start := (page - 1) * pageSize
	if start >= len(all) {
		return result
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	result.Orders = all[start:end]
	return result
}

func (uc *OrderUseCase) CancelOrder(ctx context.Context, requesterID, orderID string) (domain.Order, error) {
	order, err := uc.orders.Cancel(ctx, orderID, requesterID)
	if err != nil {
		return domain.Order{}, err
	}

	uc.logger.Info("order cancelled", zap.String("orderId", order.ID), zap.String("userId", requesterID))
	return order, nil
}
