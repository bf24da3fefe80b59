package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"storefront/internal/fulfillment"
	"storefront/internal/order"
)

var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Method  string `json:"method"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// VerifySignature recomputes the HMAC-SHA256 of the raw webhook body and
// compares it byte-for-byte with the provider's hex-encoded signature.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Orchestrator is the slice of the fulfillment service the webhook handler
// triggers after recording a captured payment.
type Orchestrator interface {
	SyncOrder(ctx context.Context, orderID uuid.UUID) (*fulfillment.SyncResult, error)
}

// Handler routes verified payment provider events onto local order state.
// It holds no state of its own beyond the order's payment/fulfillment status.
type Handler struct {
	orders order.Repository
	sync   Orchestrator
	logs   fulfillment.LogRepository
	secret string
}

func NewHandler(orders order.Repository, sync Orchestrator, logs fulfillment.LogRepository, secret string) *Handler {
	return &Handler{orders: orders, sync: sync, logs: logs, secret: secret}
}

// HandleWebhook verifies and processes one webhook delivery. No event is
// processed without a matching signature. Unknown event types are
// acknowledged as no-ops so new provider events cannot break deliveries.
func (h *Handler) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if !VerifySignature(rawBody, signature, h.secret) {
		return ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return fmt.Errorf("payment: failed to parse webhook body: %w", err)
	}

	switch event.Event {
	case EventPaymentCaptured:
		return h.handleCaptured(ctx, event)
	case EventPaymentFailed:
		return h.handleFailed(ctx, event)
	default:
		log.Debug().Str("event", event.Event).Msg("payment: ignoring unrecognized webhook event")
		return nil
	}
}

func (h *Handler) handleCaptured(ctx context.Context, event webhookEvent) error {
	entity := event.Payload.Payment.Entity

	o, err := h.orders.GetByPaymentRef(ctx, entity.OrderID)
	if err != nil {
		return err
	}

	if err := h.orders.MarkPaid(ctx, o.ID, entity.ID, time.Now().UTC()); err != nil {
		return err
	}

	log.Info().Stringer("order_id", o.ID).Str("payment_id", entity.ID).Msg("payment: captured, order confirmed")

	// The payment mutation is durable at this point. A fulfillment failure
	// must not bubble up, or the provider would re-deliver the webhook for
	// an already-recorded payment; the sync is retriable from the admin API.
	if _, err := h.sync.SyncOrder(ctx, o.ID); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("payment: fulfillment sync failed after capture, left for retry")
		h.appendSyncFailure(ctx, o.ID, err)
	}

	return nil
}

// appendSyncFailure records a sync failure triggered by a captured payment in
// the order's audit trail, so even failures that occur before any carrier
// call is attempted leave an error entry.
func (h *Handler) appendSyncFailure(ctx context.Context, orderID uuid.UUID, cause error) {
	entry := &fulfillment.LogEntry{
		OrderID:      orderID,
		Action:       fulfillment.ActionCreateOrder,
		Outcome:      fulfillment.OutcomeError,
		ErrorMessage: cause.Error(),
	}
	if err := h.logs.Append(ctx, entry); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("payment: failed to append sync failure log entry")
	}
}

func (h *Handler) handleFailed(ctx context.Context, event webhookEvent) error {
	entity := event.Payload.Payment.Entity

	o, err := h.orders.GetByPaymentRef(ctx, entity.OrderID)
	if err != nil {
		return err
	}

	if err := h.orders.MarkPaymentFailed(ctx, o.ID); err != nil {
		return err
	}

	log.Info().Stringer("order_id", o.ID).Msg("payment: failed, order marked payment_failed")
	return nil
}
