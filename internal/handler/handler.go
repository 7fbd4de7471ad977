// Package handler exposes the order engine over HTTP. Handlers decode JSON,
// delegate to the order service, and map domain errors to stable wire kinds.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/order"
)

// Handler serves the order API.
type Handler struct {
	orders *order.Service
}

// NewHandler constructs a Handler around the order service.
func NewHandler(orders *order.Service) *Handler {
	return &Handler{orders: orders}
}

// Routes mounts all API routes on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
		r.Post("/{orderID}/cancel", h.cancelOrder)
		r.Post("/{orderID}/status", h.updateStatus)
	})
	r.Post("/discounts/validate", h.validateDiscount)
	return r
}

// writeJSON encodes v with the given status. Encoding failures are logged,
// not surfaced; the status line is already on the wire.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r).Error("encode response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
