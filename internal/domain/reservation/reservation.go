// Package reservation manages temporary stock holds for in-progress orders.
// A hold is the only mechanism that decrements apparent availability before an
// order is finalized, so the Manager is the single point of truth for the
// invariant that held+confirmed quantity never exceeds a product's stock.
package reservation

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of a single product hold.
type Status string

const (
	// StatusHeld marks stock claimed by an in-progress order.
	StatusHeld Status = "held"
	// StatusConfirmed marks stock permanently allocated to an accepted order.
	StatusConfirmed Status = "confirmed"
	// StatusReleased marks stock returned to availability.
	StatusReleased Status = "released"
)

// Reservation is one product's hold within an order.
type Reservation struct {
	ProductID string
	OrderID   string
	Quantity  int
	Status    Status
	CreatedAt time.Time
}

// Item is a reservation request line.
type Item struct {
	ProductID string
	Quantity  int
}

// InsufficientStockError reports the first product that could not be held.
// When it is returned, nothing from the batch remains held.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Manager reserves, confirms and releases stock for orders.
//
// Reserve is all-or-nothing across the batch and linearizable per product:
// two concurrent reservations whose combined quantity exceeds availability
// must not both succeed. Confirm and Release are idempotent; Release restores
// availability exactly once per hold. ExpireStaleHolds releases held
// reservations older than maxAge and returns how many it released.
type Manager interface {
	Reserve(ctx context.Context, orderID string, items []Item) error
	Confirm(ctx context.Context, orderID string) error
	Release(ctx context.Context, orderID string) error
	ExpireStaleHolds(ctx context.Context, maxAge time.Duration) (int, error)
}
