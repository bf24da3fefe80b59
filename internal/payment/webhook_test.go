package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/fulfillment"
	"storefront/internal/order"
	"storefront/internal/payment"
)

const testSecret = "whsec_test"

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type mockOrderRepository struct {
	getByPaymentRefFunc   func(ctx context.Context, paymentRef string) (*order.Order, error)
	markPaidFunc          func(ctx context.Context, id uuid.UUID, paymentID string, paidAt time.Time) error
	markPaymentFailedFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *mockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	panic("not expected")
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	panic("not expected")
}

func (m *mockOrderRepository) GetByPaymentRef(ctx context.Context, paymentRef string) (*order.Order, error) {
	return m.getByPaymentRefFunc(ctx, paymentRef)
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, paidAt time.Time) error {
	return m.markPaidFunc(ctx, id, paymentID, paidAt)
}

func (m *mockOrderRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	return m.markPaymentFailedFunc(ctx, id)
}

func (m *mockOrderRepository) SetShipmentCreated(ctx context.Context, id uuid.UUID, sync order.ShipmentSync) (bool, error) {
	panic("not expected")
}

func (m *mockOrderRepository) SetWaybill(ctx context.Context, id uuid.UUID, awbCode, courierID, courierName string) error {
	panic("not expected")
}

func (m *mockOrderRepository) SetPickupScheduled(ctx context.Context, id uuid.UUID, at time.Time) error {
	panic("not expected")
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error {
	panic("not expected")
}

type mockOrchestrator struct {
	syncOrderFunc func(ctx context.Context, orderID uuid.UUID) (*fulfillment.SyncResult, error)
}

func (m *mockOrchestrator) SyncOrder(ctx context.Context, orderID uuid.UUID) (*fulfillment.SyncResult, error) {
	return m.syncOrderFunc(ctx, orderID)
}

type mockLogRepository struct {
	entries []fulfillment.LogEntry
}

func (m *mockLogRepository) Append(ctx context.Context, entry *fulfillment.LogEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockLogRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]fulfillment.LogEntry, error) {
	return m.entries, nil
}

func capturedBody(paymentRef string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_123","order_id":"%s","method":"upi"}}}}`,
		paymentRef,
	))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, payment.VerifySignature(body, sign(body, testSecret), testSecret))

	tampered := append([]byte(nil), body...)
	tampered[0] = '['
	assert.False(t, payment.VerifySignature(tampered, sign(body, testSecret), testSecret))
	assert.False(t, payment.VerifySignature(body, sign(body, "wrong_secret"), testSecret))
	assert.False(t, payment.VerifySignature(body, "", testSecret))
}

func TestHandler_HandleWebhook_RejectsBadSignature(t *testing.T) {
	mutated := false
	repo := &mockOrderRepository{
		getByPaymentRefFunc: func(ctx context.Context, ref string) (*order.Order, error) {
			mutated = true
			return nil, nil
		},
	}
	h := payment.NewHandler(repo, &mockOrchestrator{}, &mockLogRepository{}, testSecret)

	body := capturedBody("order_abc")
	err := h.HandleWebhook(context.Background(), body, "deadbeef")

	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.False(t, mutated, "no state may be touched on signature failure")
}

func TestHandler_HandleWebhook_PaymentCaptured(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	var markedPaid, synced bool
	repo := &mockOrderRepository{
		getByPaymentRefFunc: func(ctx context.Context, ref string) (*order.Order, error) {
			assert.Equal(t, "order_abc", ref)
			return &order.Order{ID: orderID, PaymentRef: ref}, nil
		},
		markPaidFunc: func(ctx context.Context, id uuid.UUID, paymentID string, paidAt time.Time) error {
			markedPaid = true
			assert.Equal(t, orderID, id)
			assert.Equal(t, "pay_123", paymentID)
			return nil
		},
	}
	orch := &mockOrchestrator{
		syncOrderFunc: func(ctx context.Context, id uuid.UUID) (*fulfillment.SyncResult, error) {
			synced = true
			assert.Equal(t, orderID, id)
			return &fulfillment.SyncResult{CarrierOrderID: "5001"}, nil
		},
	}
	logs := &mockLogRepository{}
	h := payment.NewHandler(repo, orch, logs, testSecret)

	body := capturedBody("order_abc")
	err := h.HandleWebhook(context.Background(), body, sign(body, testSecret))

	require.NoError(t, err)
	assert.True(t, markedPaid)
	assert.True(t, synced)
	assert.Empty(t, logs.entries, "a successful sync writes its own entries via the orchestrator")
}

func TestHandler_HandleWebhook_SyncFailureDoesNotFailWebhook(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	repo := &mockOrderRepository{
		getByPaymentRefFunc: func(ctx context.Context, ref string) (*order.Order, error) {
			return &order.Order{ID: orderID, PaymentRef: ref}, nil
		},
		markPaidFunc: func(ctx context.Context, id uuid.UUID, paymentID string, paidAt time.Time) error {
			return nil
		},
	}
	orch := &mockOrchestrator{
		syncOrderFunc: func(ctx context.Context, id uuid.UUID) (*fulfillment.SyncResult, error) {
			return nil, fulfillment.ErrSyncInProgress
		},
	}
	logs := &mockLogRepository{}
	h := payment.NewHandler(repo, orch, logs, testSecret)

	body := capturedBody("order_abc")
	err := h.HandleWebhook(context.Background(), body, sign(body, testSecret))

	assert.NoError(t, err, "the payment mutation is durable; the provider must not re-deliver")

	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	assert.Equal(t, orderID, entry.OrderID)
	assert.Equal(t, fulfillment.ActionCreateOrder, entry.Action)
	assert.Equal(t, fulfillment.OutcomeError, entry.Outcome)
	assert.Contains(t, entry.ErrorMessage, "sync already in progress")
}

func TestHandler_HandleWebhook_OrderNotFound(t *testing.T) {
	repo := &mockOrderRepository{
		getByPaymentRefFunc: func(ctx context.Context, ref string) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}
	h := payment.NewHandler(repo, &mockOrchestrator{}, &mockLogRepository{}, testSecret)

	body := capturedBody("order_missing")
	err := h.HandleWebhook(context.Background(), body, sign(body, testSecret))

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestHandler_HandleWebhook_PaymentFailed(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	var markedFailed bool
	repo := &mockOrderRepository{
		getByPaymentRefFunc: func(ctx context.Context, ref string) (*order.Order, error) {
			return &order.Order{ID: orderID, PaymentRef: ref}, nil
		},
		markPaymentFailedFunc: func(ctx context.Context, id uuid.UUID) error {
			markedFailed = true
			return nil
		},
	}
	orch := &mockOrchestrator{
		syncOrderFunc: func(ctx context.Context, id uuid.UUID) (*fulfillment.SyncResult, error) {
			t.Fatal("fulfillment must not run for a failed payment")
			return nil, nil
		},
	}
	h := payment.NewHandler(repo, orch, &mockLogRepository{}, testSecret)

	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_123","order_id":"order_abc"}}}}`)
	err := h.HandleWebhook(context.Background(), body, sign(body, testSecret))

	require.NoError(t, err)
	assert.True(t, markedFailed)
}

func TestHandler_HandleWebhook_UnknownEventIsNoOp(t *testing.T) {
	repo := &mockOrderRepository{
		getByPaymentRefFunc: func(ctx context.Context, ref string) (*order.Order, error) {
			t.Fatal("unknown events must not touch orders")
			return nil, nil
		},
	}
	h := payment.NewHandler(repo, &mockOrchestrator{}, &mockLogRepository{}, testSecret)

	body := []byte(`{"event":"refund.processed","payload":{}}`)
	err := h.HandleWebhook(context.Background(), body, sign(body, testSecret))

	assert.NoError(t, err)
}
