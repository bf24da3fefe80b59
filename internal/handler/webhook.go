package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"storefront/internal/payment"
)

// SignatureHeader carries the payment provider's HMAC over the raw body.
const SignatureHeader = "X-Razorpay-Signature"

type PaymentEventHandler interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) error
}

type WebhookHandler struct {
	payments PaymentEventHandler
}

func NewWebhookHandler(payments PaymentEventHandler) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// HandlePaymentWebhook receives one delivery from the payment provider.
// Anything other than a 2xx makes the provider re-deliver, so only
// signature/parse problems and genuine processing failures are non-2xx.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		respondError(w, http.StatusBadRequest, "missing signature header")
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), rawBody, signature); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			respondError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		log.Error().Err(err).Msg("handler: payment webhook processing failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
