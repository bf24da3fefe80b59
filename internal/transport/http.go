package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/handler"
)

type Handlers struct {
	Orders      *handler.OrderHandler
	Fulfillment *handler.FulfillmentHandler
	Webhooks    *handler.WebhookHandler
}

func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Post("/webhooks/payment", h.Webhooks.HandlePaymentWebhook)

	r.Post("/orders", h.Orders.CreateOrder)
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.Orders.GetOrderByID)
		r.Patch("/status", h.Orders.UpdateOrderStatus)

		r.Post("/sync", h.Fulfillment.SyncOrder)
		r.Post("/awb", h.Fulfillment.AssignWaybill)
		r.Post("/pickup", h.Fulfillment.SchedulePickup)
		r.Get("/tracking", h.Fulfillment.Track)
		r.Post("/shipment/cancel", h.Fulfillment.CancelShipment)
		r.Get("/logs", h.Fulfillment.Logs)
	})

	return r
}
