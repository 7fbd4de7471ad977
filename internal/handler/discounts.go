package handler

import (
	"net/http"
)

type validateDiscountRequest struct {
	Code     string `json:"code"`
	Subtotal string `json:"subtotal"`
}

type validateDiscountResponse struct {
	Code       string `json:"code"`
	PercentOff string `json:"percentOff"`
	Amount     string `json:"amount"`
}

// validateDiscount dry-runs a discount code against a subtotal. It never
// consumes a use, so storefronts can call it on every cart change.
func (h *Handler) validateDiscount(w http.ResponseWriter, r *http.Request) {
	var req validateDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{KindValidation, "malformed request body"})
		return
	}

	subtotal, ok := parseAmount(req.Subtotal)
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{KindValidation, "subtotal must be a non-negative decimal"})
		return
	}

	applied, err := h.orders.ValidateDiscount(r.Context(), req.Code, subtotal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, validateDiscountResponse{
		Code:       applied.Code,
		PercentOff: applied.PercentOff.String(),
		Amount:     applied.Amount.StringFixed(2),
	})
}
