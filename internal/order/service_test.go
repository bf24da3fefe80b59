package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"

	"storefront/internal/order"
)

type mockRepository struct {
	createFunc       func(ctx context.Context, o *order.Order) error
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	updateStatusFunc func(ctx context.Context, id uuid.UUID, status order.Status) error
}

func (m *mockRepository) Create(ctx context.Context, o *order.Order) error {
	return m.createFunc(ctx, o)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) GetByPaymentRef(ctx context.Context, paymentRef string) (*order.Order, error) {
	panic("not expected")
}

func (m *mockRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, paidAt time.Time) error {
	panic("not expected")
}

func (m *mockRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	panic("not expected")
}

func (m *mockRepository) SetShipmentCreated(ctx context.Context, id uuid.UUID, sync order.ShipmentSync) (bool, error) {
	panic("not expected")
}

func (m *mockRepository) SetWaybill(ctx context.Context, id uuid.UUID, awbCode, courierID, courierName string) error {
	panic("not expected")
}

func (m *mockRepository) SetPickupScheduled(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not expected")
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error {
	return m.updateStatusFunc(ctx, id, status)
}

func TestService_CreateOrder(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	productID := uuid.Must(uuid.NewV4())

	validInput := func() *order.Order {
		return &order.Order{
			UserID:       userID,
			PaymentRef:   "order_abc",
			Tax:          20,
			ShippingCost: 50,
			Items: []order.Item{
				{ProductID: productID, Name: "Mug", Quantity: 2, UnitPrice: 150},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(o *order.Order)
		wantErrIs error
	}{
		{
			name:   "valid_order",
			mutate: func(o *order.Order) {},
		},
		{
			name:      "no_items",
			mutate:    func(o *order.Order) { o.Items = nil },
			wantErrIs: order.ErrOrderInvalid,
		},
		{
			name:      "nil_user_id",
			mutate:    func(o *order.Order) { o.UserID = uuid.Nil },
			wantErrIs: order.ErrOrderInvalid,
		},
		{
			name:      "missing_payment_ref",
			mutate:    func(o *order.Order) { o.PaymentRef = "" },
			wantErrIs: order.ErrOrderInvalid,
		},
		{
			name:      "nil_product_id",
			mutate:    func(o *order.Order) { o.Items[0].ProductID = uuid.Nil },
			wantErrIs: order.ErrOrderInvalid,
		},
		{
			name:      "zero_quantity",
			mutate:    func(o *order.Order) { o.Items[0].Quantity = 0 },
			wantErrIs: order.ErrOrderInvalid,
		},
		{
			name:      "negative_unit_price",
			mutate:    func(o *order.Order) { o.Items[0].UnitPrice = -1 },
			wantErrIs: order.ErrOrderInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			repo := &mockRepository{
				createFunc: func(ctx context.Context, o *order.Order) error {
					created = true
					return nil
				},
			}

			input := validInput()
			tt.mutate(input)

			svc := order.NewService(repo)
			got, err := svc.CreateOrder(context.Background(), input)

			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				assert.False(t, created, "invalid orders must never reach the repository")
				return
			}

			assert.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, 300.0, got.Subtotal)
			assert.Equal(t, 370.0, got.Total)
			assert.Equal(t, order.StatusPending, got.Status)
			assert.Equal(t, order.PaymentPending, got.PaymentStatus)
			assert.NotEmpty(t, got.OrderNumber)
		})
	}
}

func TestService_CreateOrder_KeepsProvidedOrderNumber(t *testing.T) {
	repo := &mockRepository{
		createFunc: func(ctx context.Context, o *order.Order) error { return nil },
	}

	input := &order.Order{
		OrderNumber: "ORD-CUSTOM1",
		UserID:      uuid.Must(uuid.NewV4()),
		PaymentRef:  "order_xyz",
		Items: []order.Item{
			{ProductID: uuid.Must(uuid.NewV4()), Name: "Mug", Quantity: 1, UnitPrice: 99},
		},
	}

	svc := order.NewService(repo)
	got, err := svc.CreateOrder(context.Background(), input)

	assert.NoError(t, err)
	assert.Equal(t, "ORD-CUSTOM1", got.OrderNumber)
}

func TestService_CreateOrder_RepositoryFailure(t *testing.T) {
	repo := &mockRepository{
		createFunc: func(ctx context.Context, o *order.Order) error {
			return errors.New("connection refused")
		},
	}

	input := &order.Order{
		UserID:     uuid.Must(uuid.NewV4()),
		PaymentRef: "order_abc",
		Items: []order.Item{
			{ProductID: uuid.Must(uuid.NewV4()), Name: "Mug", Quantity: 1, UnitPrice: 99},
		},
	}

	svc := order.NewService(repo)
	_, err := svc.CreateOrder(context.Background(), input)

	assert.ErrorContains(t, err, "failed to create order")
}

func TestService_UpdateOrderStatus(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name          string
		currentStatus order.Status
		newStatus     order.Status
		wantErrIs     error
		wantUpdated   bool
	}{
		{
			name:          "valid_transition",
			currentStatus: order.StatusConfirmed,
			newStatus:     order.StatusProcessing,
			wantUpdated:   true,
		},
		{
			name:          "ready_to_ship_to_shipped",
			currentStatus: order.StatusReadyToShip,
			newStatus:     order.StatusShipped,
			wantUpdated:   true,
		},
		{
			name:          "already_set",
			currentStatus: order.StatusConfirmed,
			newStatus:     order.StatusConfirmed,
			wantErrIs:     order.ErrStatusAlreadySet,
		},
		{
			name:          "invalid_transition",
			currentStatus: order.StatusDelivered,
			newStatus:     order.StatusPending,
			wantErrIs:     order.ErrInvalidStatusTransition,
		},
		{
			name:          "cannot_regress_from_shipped",
			currentStatus: order.StatusShipped,
			newStatus:     order.StatusConfirmed,
			wantErrIs:     order.ErrInvalidStatusTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := false
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return &order.Order{ID: orderID, Status: tt.currentStatus}, nil
				},
				updateStatusFunc: func(ctx context.Context, id uuid.UUID, status order.Status) error {
					updated = true
					assert.Equal(t, tt.newStatus, status)
					return nil
				},
			}

			svc := order.NewService(repo)
			err := svc.UpdateOrderStatus(context.Background(), orderID, tt.newStatus)

			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUpdated, updated)
		})
	}
}

func TestService_GetOrderByID_NotFound(t *testing.T) {
	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}

	svc := order.NewService(repo)
	_, err := svc.GetOrderByID(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}
