// Package registry holds the canonical in-memory state of every order.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
)

// Publisher receives every committed status change. Publish is called while
// the order is still locked, so it must not block.
type Publisher interface {
	Publish(orderID string, event domain.StatusEvent)
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

// entry.mu guards order for the check-and-set in Transition and Cancel.
type entry struct {
	mu    sync.Mutex
	order domain.Order
}

type Registry struct {
	mu      sync.RWMutex
	orders  map[string]*entry
	byOwner map[string][]string

	publishers []Publisher
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
}

func New(logger *zap.Logger, publishers []Publisher, opts ...Option) *Registry {
	r := &Registry{
		orders:     make(map[string]*entry),
		byOwner:    make(map[string][]string),
		publishers: publishers,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		logger:     logger.With(zap.String("component", "order_registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores a new pending order and returns its snapshot.
func (r *Registry) Create(ctx context.Context, payload domain.NewOrder) (domain.Order, error) {
	if payload.OwnerID == "" {
		return domain.Order{}, apperrors.NewValidationError("owner is required", apperrors.ValidationDetail{
			Field:   "owner_id",
			Message: "owner_id must not be empty",
		})
	}

	now := r.now()
	order := domain.Order{
		OwnerID:     payload.OwnerID,
		Status:      domain.StatusPending,
		Items:       payload.Items,
		TotalPrice:  payload.TotalPrice,
		Address:     payload.Address,
		PhoneNumber: payload.PhoneNumber,
		Notes:       payload.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	order = order.Clone()

	r.mu.Lock()
	id := r.newID()
	if _, exists := r.orders[id]; exists {
		r.mu.Unlock()
		return domain.Order{}, apperrors.NewInternalError("allocating order id", fmt.Errorf("duplicate id %s", id))
	}
	order.ID = id
	r.orders[id] = &entry{order: order}
	r.byOwner[order.OwnerID] = append(r.byOwner[order.OwnerID], id)
	r.mu.Unlock()

	r.logger.Info("order created", zap.String("orderId", id), zap.String("ownerId", order.OwnerID))
	return order.Clone(), nil
}

func (r *Registry) Get(ctx context.Context, id string) (domain.Order, error) {
	e, err := r.lookup(id)
	if err != nil {
		return domain.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Clone(), nil
}

// ListByOwner returns the owner's orders oldest first.
func (r *Registry) ListByOwner(ctx context.Context, ownerID string) []domain.Order {
	r.mu.RLock()
	ids := r.byOwner[ownerID]
	entries := make([]*entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, r.orders[id])
	}
	r.mu.RUnlock()

	orders := make([]domain.Order, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		orders = append(orders, e.order.Clone())
		e.mu.Unlock()
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders
}

// Transition moves the order to target if the transition lattice allows it.
func (r *Registry) Transition(ctx context.Context, id string, target domain.Status) (domain.Order, error) {
	if err := target.Validate(); err != nil {
		return domain.Order{}, apperrors.NewValidationError(err.Error(), apperrors.ValidationDetail{
			Field:   "status",
			Message: err.Error(),
		})
	}

	e, err := r.lookup(id)
	if err != nil {
		return domain.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return r.applyLocked(e, target)
}

// Cancel cancels the order on behalf of requesterID, who must own it.
func (r *Registry) Cancel(ctx context.Context, id string, requesterID string) (domain.Order, error) {
	e, err := r.lookup(id)
	if err != nil {
		return domain.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.order.OwnerID != requesterID {
		r.logger.Warn("cancel rejected, requester is not the owner", zap.String("orderId", id), zap.String("requesterId", requesterID))
		return domain.Order{}, apperrors.NewForbiddenError(fmt.Sprintf("order %s does not belong to requester", id))
	}
	return r.applyLocked(e, domain.StatusCancelled)
}

func (r *Registry) applyLocked(e *entry, target domain.Status) (domain.Order, error) {
	current := e.order.Status
	if !current.CanTransitionTo(target) {
		return domain.Order{}, apperrors.NewInvalidTransitionError(e.order.ID, string(current), string(target), current.IsTerminal())
	}

	now := r.now()
	e.order.Status = target
	e.order.UpdatedAt = now
	if target == domain.StatusDelivered && e.order.DeliveredAt == nil {
		e.order.DeliveredAt = &now
	}

	snapshot := e.order.Clone()
	event := snapshot.StatusEvent()
	for _, p := range r.publishers {
		p.Publish(snapshot.ID, event)
	}

	r.logger.Info("order status changed",
		zap.String("orderId", snapshot.ID),
		zap.String("from", string(current)),
		zap.String("to", string(target)),
	)
	return snapshot, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.orders[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	return e, nil
}
