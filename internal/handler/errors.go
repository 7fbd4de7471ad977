package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderflow/internal/domain/catalog"
	"github.com/xenking/orderflow/internal/domain/discount"
	"github.com/xenking/orderflow/internal/domain/order"
	"github.com/xenking/orderflow/internal/domain/reservation"
)

// ErrorKind is the stable machine-readable error classification carried in
// every error response. Callers branch on the kind; the message is for humans.
type ErrorKind string

const (
	KindValidation            ErrorKind = "validation"
	KindProductUnavailable    ErrorKind = "product_unavailable"
	KindInsufficientStock     ErrorKind = "insufficient_stock"
	KindInvalidDiscount       ErrorKind = "invalid_discount"
	KindInvalidTransition     ErrorKind = "invalid_transition"
	KindNotFound              ErrorKind = "not_found"
	KindConflict              ErrorKind = "conflict"
	KindDependencyUnavailable ErrorKind = "dependency_unavailable"
)

// ErrorResponse is the wire shape of every error.
type ErrorResponse struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// writeError classifies err and writes the matching status and envelope.
// Unclassified errors are reported as dependency_unavailable: from the
// caller's perspective they are retryable infrastructure failures, and the
// internal detail stays in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		loggerFrom(r).Error("request failed", zap.Error(err))
		resp.Message = "dependency unavailable, retry later"
	}
	writeJSON(w, r, status, resp)
}

func classify(err error) (int, ErrorResponse) {
	var (
		quantityErr    *order.InvalidQuantityError
		duplicateErr   *order.DuplicateProductError
		unavailableErr *catalog.ProductUnavailableError
		stockErr       *reservation.InsufficientStockError
		transitionErr  *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrMissingBuyer),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrReasonRequired):
		return http.StatusBadRequest, ErrorResponse{KindValidation, err.Error()}

	case errors.As(err, &quantityErr):
		return http.StatusBadRequest, ErrorResponse{KindValidation, err.Error()}

	case errors.As(err, &duplicateErr):
		return http.StatusBadRequest, ErrorResponse{KindValidation, err.Error()}

	case errors.As(err, &unavailableErr):
		return http.StatusUnprocessableEntity, ErrorResponse{KindProductUnavailable, err.Error()}

	case errors.As(err, &stockErr):
		return http.StatusConflict, ErrorResponse{KindInsufficientStock, err.Error()}

	case errors.Is(err, discount.ErrInvalidCode),
		errors.Is(err, discount.ErrExpired),
		errors.Is(err, discount.ErrBelowMinimum),
		errors.Is(err, discount.ErrUsageLimitReached):
		return http.StatusUnprocessableEntity, ErrorResponse{KindInvalidDiscount, err.Error()}

	case errors.As(err, &transitionErr):
		return http.StatusConflict, ErrorResponse{KindInvalidTransition, err.Error()}

	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{KindNotFound, err.Error()}

	case errors.Is(err, order.ErrConflictingUpdate):
		return http.StatusConflict, ErrorResponse{KindConflict, err.Error()}
	}

	return http.StatusServiceUnavailable, ErrorResponse{KindDependencyUnavailable, err.Error()}
}

func loggerFrom(r *http.Request) *zap.Logger {
	return zctx.From(r.Context())
}
