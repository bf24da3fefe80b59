package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"storefront/internal/order"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	svc order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// CreateOrder handles the creation of a new order.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var o order.Order

	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.CreateOrder(r.Context(), &o)
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, created)
	case errors.Is(err, order.ErrOrderInvalid):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("handler: failed to create order")
		respondError(w, http.StatusInternalServerError, "failed to create order")
	}
}

// GetOrderByID handles retrieving an order by its ID.
func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Error().Err(err).Msg("handler: failed to get order by id")
		respondError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	respondJSON(w, http.StatusOK, o)
}

// UpdateOrderStatus handles operator-driven status transitions.
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var body struct {
		Status order.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.svc.UpdateOrderStatus(r.Context(), id, body.Status)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrStatusAlreadySet), errors.Is(err, order.ErrInvalidStatusTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("handler: failed to update order status")
		respondError(w, http.StatusInternalServerError, "failed to update order status")
	}
}
