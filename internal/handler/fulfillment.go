package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"storefront/internal/carrier"
	"storefront/internal/fulfillment"
	"storefront/internal/order"
)

// FulfillmentHandler exposes the orchestrator's sync steps as operator
// endpoints, so soft failures (waybill, pickup) can be re-invoked manually.
type FulfillmentHandler struct {
	svc *fulfillment.Service
}

func NewFulfillmentHandler(svc *fulfillment.Service) *FulfillmentHandler {
	return &FulfillmentHandler{svc: svc}
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *FulfillmentHandler) SyncOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.svc.SyncOrder(r.Context(), id)
	if err != nil {
		respondFulfillmentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *FulfillmentHandler) AssignWaybill(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	awb, err := h.svc.AssignWaybill(r.Context(), id)
	if err != nil {
		respondFulfillmentError(w, err)
		return
	}
	// A nil waybill means the carrier declined; the attempt is logged and
	// independently retriable.
	respondJSON(w, http.StatusOK, map[string]any{"awb": awb})
}

func (h *FulfillmentHandler) SchedulePickup(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.SchedulePickup(r.Context(), id)
	if err != nil {
		respondFulfillmentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *FulfillmentHandler) Track(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	status, err := h.svc.Track(r.Context(), id)
	if err != nil {
		respondFulfillmentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *FulfillmentHandler) CancelShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.CancelShipment(r.Context(), id)
	if err != nil {
		respondFulfillmentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *FulfillmentHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	entries, err := h.svc.Logs(r.Context(), id)
	if err != nil {
		respondFulfillmentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func respondFulfillmentError(w http.ResponseWriter, err error) {
	var apiErr *carrier.APIError
	var authErr *carrier.AuthError

	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, fulfillment.ErrSyncInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, fulfillment.ErrShipmentRequired),
		errors.Is(err, fulfillment.ErrWaybillRequired):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &apiErr), errors.As(err, &authErr), errors.Is(err, carrier.ErrMissingCredentials):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Msg("handler: fulfillment operation failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
