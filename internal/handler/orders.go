package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/domain/order"
	"github.com/xenking/orderflow/internal/domain/reservation"
)

type addressJSON struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone,omitempty"`
}

type createOrderRequest struct {
	BuyerID         string          `json:"buyerId"`
	Items           []orderItemJSON `json:"items"`
	ShippingAddress addressJSON     `json:"shippingAddress"`
	BillingAddress  addressJSON     `json:"billingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	DiscountCode    string          `json:"discountCode,omitempty"`
}

type orderItemJSON struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type lineItemJSON struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type pricingJSON struct {
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

type statusChangeJSON struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

type orderJSON struct {
	ID              string             `json:"id"`
	BuyerID         string             `json:"buyerId"`
	Items           []lineItemJSON     `json:"items"`
	ShippingAddress addressJSON        `json:"shippingAddress"`
	BillingAddress  addressJSON        `json:"billingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	DiscountCode    string             `json:"discountCode,omitempty"`
	Pricing         pricingJSON        `json:"pricing"`
	Status          string             `json:"status"`
	StatusHistory   []statusChangeJSON `json:"statusHistory"`
	CreatedAt       time.Time          `json:"createdAt"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{KindValidation, "malformed request body"})
		return
	}

	items := make([]reservation.Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = reservation.Item{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		BuyerID:         req.BuyerID,
		Items:           items,
		ShippingAddress: toDomainAddress(req.ShippingAddress),
		BillingAddress:  toDomainAddress(req.BillingAddress),
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
		DiscountCode:    req.DiscountCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toOrderJSON(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderJSON(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, r, http.StatusBadRequest, ErrorResponse{KindValidation, "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	orders, err := h.orders.ListOrders(r.Context(), q.Get("buyerId"), order.ListFilter{
		Status: order.Status(q.Get("status")),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderJSON, len(orders))
	for i := range orders {
		out[i] = toOrderJSON(&orders[i])
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{KindValidation, "malformed request body"})
		return
	}

	o, err := h.orders.CancelOrder(r.Context(), chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderJSON(o))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{KindValidation, "malformed request body"})
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), order.Status(req.Status), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderJSON(o))
}

func toDomainAddress(a addressJSON) order.Address {
	return order.Address(a)
}

func toOrderJSON(o *order.Order) orderJSON {
	items := make([]lineItemJSON, len(o.Items))
	for i, item := range o.Items {
		items[i] = lineItemJSON{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal.StringFixed(2),
		}
	}

	history := make([]statusChangeJSON, len(o.StatusHistory))
	for i, c := range o.StatusHistory {
		history[i] = statusChangeJSON{
			Status:    string(c.Status),
			Timestamp: c.Timestamp,
			Reason:    c.Reason,
		}
	}

	return orderJSON{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		Items:           items,
		ShippingAddress: addressJSON(o.ShippingAddress),
		BillingAddress:  addressJSON(o.BillingAddress),
		PaymentMethod:   string(o.PaymentMethod),
		DiscountCode:    o.DiscountCode,
		Pricing: pricingJSON{
			Subtotal: o.Pricing.Subtotal.StringFixed(2),
			Discount: o.Pricing.Discount.StringFixed(2),
			Tax:      o.Pricing.Tax.StringFixed(2),
			Total:    o.Pricing.Total.StringFixed(2),
		},
		Status:        string(o.Status),
		StatusHistory: history,
		CreatedAt:     o.CreatedAt,
	}
}

// parseAmount parses a decimal amount from its JSON string form.
func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
