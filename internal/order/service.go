package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderInvalid            = errors.New("order validation failed")
	ErrStatusAlreadySet        = errors.New("status is already set to the desired value")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

type Service interface {
	CreateOrder(ctx context.Context, o *Order) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus Status) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// CreateOrder validates checkout input, computes the money fields from the
// items and persists the order in its initial pending state. The payment ref
// is required up front: it is the key the payment webhook correlates by.
func (s *service) CreateOrder(ctx context.Context, o *Order) (*Order, error) {
	if len(o.Items) == 0 {
		log.Warn().Msg("service: attempt to create order with no items")
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalid)
	}
	if o.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id cannot be nil", ErrOrderInvalid)
	}
	if o.PaymentRef == "" {
		return nil, fmt.Errorf("%w: payment ref is required", ErrOrderInvalid)
	}

	o.ID = uuid.Nil
	subtotal := 0.0

	for i := range o.Items {
		item := &o.Items[i]

		if item.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product id in order item cannot be nil", ErrOrderInvalid)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %s must be greater than zero", ErrOrderInvalid, item.ProductID)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price for product %s cannot be negative", ErrOrderInvalid, item.ProductID)
		}

		item.ID = uuid.Nil
		item.OrderID = uuid.Nil
		item.Subtotal = float64(item.Quantity) * item.UnitPrice
		subtotal += item.Subtotal
	}

	o.Subtotal = subtotal
	o.Total = subtotal + o.Tax + o.ShippingCost
	o.Status = StatusPending
	o.PaymentStatus = PaymentPending

	if o.OrderNumber == "" {
		num, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate order number: %w", err)
		}
		o.OrderNumber = "ORD-" + strings.ToUpper(num.String()[:8])
	}

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Stringer("order_id", o.ID).
		Str("order_number", o.OrderNumber).
		Stringer("user_id", o.UserID).
		Msg("service: order created")

	return o, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus Status) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if current.Status == newStatus {
		return ErrStatusAlreadySet
	}

	if !CanTransition(current.Status, newStatus) {
		log.Warn().
			Stringer("order_id", id).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	if err := s.repo.UpdateStatus(ctx, id, newStatus); err != nil {
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", id).
		Stringer("old_status", current.Status).
		Stringer("new_status", newStatus).
		Msg("service: order status updated")
	return nil
}
