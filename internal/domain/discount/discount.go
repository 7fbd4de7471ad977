// Package discount validates storefront discount codes against an order's
// subtotal and the current time.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCode is returned when a discount code does not exist or is inactive.
	ErrInvalidCode = errors.New("invalid discount code")
	// ErrExpired is returned when a code is outside its valid time window.
	ErrExpired = errors.New("discount code expired")
	// ErrBelowMinimum is returned when the order subtotal does not reach the
	// code's minimum order value.
	ErrBelowMinimum = errors.New("order below discount minimum")
	// ErrUsageLimitReached is returned when a code has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("discount usage limit reached")
)

// Code defines a discount code's terms. A zero UsageLimit means unlimited.
// MinOrderValue and MaxDiscountAmount are optional; nil means no constraint.
type Code struct {
	Code              string
	PercentOff        decimal.Decimal
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	MinOrderValue     *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        int
	UsageCount        int
}

// Applied is the outcome of a successful validation: the percentage and the
// concrete capped amount for the subtotal it was validated against.
type Applied struct {
	Code       string
	PercentOff decimal.Decimal
	Amount     decimal.Decimal
}

// Repository provides lookup and usage accounting for discount codes.
// IncrementUsage is called once per durably created order, never during
// validation.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Code, error)
	IncrementUsage(ctx context.Context, code string) error
}
