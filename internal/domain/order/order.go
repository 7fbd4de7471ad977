// Package order owns the order model, its status state machine, and the
// lifecycle service coordinating catalog snapshots, stock reservation,
// discount validation and pricing into a single checkout flow.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderflow/internal/domain/pricing"
)

// Status is an order's position in the fulfilment lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

// transitions is the full state machine. Absence means InvalidTransition.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusReturned},
	StatusCancelled:  {},
	StatusReturned:   {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// PaymentMethod enumerates the accepted payment options.
type PaymentMethod string

const (
	PaymentCOD        PaymentMethod = "cod"
	PaymentUPI        PaymentMethod = "upi"
	PaymentCard       PaymentMethod = "card"
	PaymentNetbanking PaymentMethod = "netbanking"
)

// ValidPaymentMethod reports whether m is one of the accepted options.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCOD, PaymentUPI, PaymentCard, PaymentNetbanking:
		return true
	}
	return false
}

// LineItem is one product line within an order. UnitPrice is the catalog
// snapshot taken at order time and never changes once persisted.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Address is a shipping or billing address.
type Address struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone,omitempty"`
}

// StatusChange records one entry in an order's status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// Order is the unit of consistency: its pricing fields satisfy
// total = subtotal - discount + tax at every observable state.
type Order struct {
	ID              string
	BuyerID         string
	Items           []LineItem
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   PaymentMethod
	DiscountCode    string
	Pricing         pricing.Pricing
	Status          Status
	StatusHistory   []StatusChange
	CreatedAt       time.Time

	// Version supports optimistic concurrency on status updates.
	Version int
}

// Validation errors raised before any side effect.
var (
	ErrEmptyItems           = errors.New("order items required")
	ErrMissingBuyer         = errors.New("buyer id required")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrReasonRequired       = errors.New("cancellation reason required")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// DuplicateProductError indicates the same product appears in more than one
// line item. Callers combine quantities into a single line instead.
type DuplicateProductError struct {
	ProductID string
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("product %s appears in multiple line items", e.ProductID)
}

// InvalidTransitionError indicates a disallowed status transition.
// The order's status is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// Store errors.
var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrConflictingUpdate is returned when optimistic versioning detects a
	// racing writer; the caller should re-read and retry.
	ErrConflictingUpdate = errors.New("conflicting order update")
)

// ListFilter narrows a buyer's order listing. A zero Limit means no limit.
type ListFilter struct {
	Status Status
	Limit  int
}

// Store is the persistence abstraction for orders. UpdateStatus must compare
// the order's Version and fail with ErrConflictingUpdate on mismatch.
type Store interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID string, filter ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, o *Order) error
}
