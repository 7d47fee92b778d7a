package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ordertrack/internal/auth"
	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/order/usecase"
)

type OrderUseCase interface {
	Checkout(ctx context.Context, payload domain.NewOrder) (domain.Order, error)
	GetOrder(ctx context.Context, requesterID, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, ownerID string, page, pageSize int) usecase.OrderPage
	CancelOrder(ctx context.Context, requesterID, orderID string) (domain.Order, error)
}

type OrderController struct {
	useCase  OrderUseCase
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderController(useCase OrderUseCase, logger *zap.Logger) *OrderController {
	return &OrderController{
		useCase:  useCase,
		validate: newValidator(),
		logger:   logger,
	}
}

func (c *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	userID, ok := c.requester(w, r, traceID)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	if err := validateStruct(c.validate, req); err != nil {
		ve, _ := apperrors.IsValidationError(err)
		c.writeValidationError(w, ve.Message, ve.Details...)
		return
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	order, err := c.useCase.Checkout(r.Context(), domain.NewOrder{
		OwnerID:     userID,
		Items:       items,
		TotalPrice:  *req.TotalPrice,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
		Notes:       req.Notes,
	})
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusCreated, dto.CheckoutResponse{
		OrderID:    order.ID,
		Status:     order.Status.String(),
		TotalPrice: order.TotalPrice,
		CreatedAt:  order.CreatedAt,
	})
}

func (c *OrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	userID, ok := c.requester(w, r, traceID)
	if !ok {
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		c.writeValidationError(w, "invalid page", apperrors.ValidationDetail{
			Field:   "page",
			Message: "page must be an integer",
		})
		return
	}
	pageSize, err := queryInt(r, "page_size", usecase.DefaultPageSize)
	if err != nil {
		c.writeValidationError(w, "invalid page_size", apperrors.ValidationDetail{
			Field:   "page_size",
			Message: "page_size must be an integer",
		})
		return
	}

	result := c.useCase.ListOrders(r.Context(), userID, page, pageSize)

	orders := make([]dto.OrderDTO, len(result.Orders))
	for i, o := range result.Orders {
		orders[i] = dto.NewOrderDTO(o)
	}
	c.writeJSON(w, http.StatusOK, dto.OrderListResponse{
		Orders:   orders,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	userID, ok := c.requester(w, r, traceID)
	if !ok {
		return
	}

	order, err := c.useCase.GetOrder(r.Context(), userID, chi.URLParam(r, "orderId"))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderDTO(order))
}

func (c *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	userID, ok := c.requester(w, r, traceID)
	if !ok {
		return
	}

	order, err := c.useCase.CancelOrder(r.Context(), userID, chi.URLParam(r, "orderId"))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.CancelOrderResponse{
		Message: "Order cancelled successfully",
		Order:   dto.NewOrderDTO(order),
	})
}

func (c *OrderController) requester(w http.ResponseWriter, r *http.Request, traceID string) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		c.writeErrorResponse(w, traceID, http.StatusUnauthorized, "UNAUTHORIZED", "Token missing")
		return "", false
	}
	return userID, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (c *OrderController) handleUseCaseError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}

	if _, ok := apperrors.IsForbiddenError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusForbidden, "FORBIDDEN", "Unauthorized")
		return
	}

	if ite, ok := apperrors.IsInvalidTransitionError(err); ok {
		logger.Info("transition rejected", zap.String("orderId", ite.OrderID), zap.String("from", ite.From), zap.String("to", ite.To))
		c.writeErrorResponse(w, traceID, http.StatusConflict, "INVALID_TRANSITION", "Cannot cancel order in this status")
		return
	}

	if _, ok := apperrors.IsUnauthorizedError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func (c *OrderController) writeErrorResponse(w http.ResponseWriter, traceID string, statusCode int, code string, message string) {
	c.writeJSON(w, statusCode, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    statusCode,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

type validationErrorResponse struct {
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *OrderController) writeValidationError(w http.ResponseWriter, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func (c *OrderController) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
