// Package catalog exposes the read-only product snapshot the order engine
// prices against. Snapshots are authoritative: unit prices always come from
// here, never from the client.
package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Snapshot is the state of a single product at order-creation time.
type Snapshot struct {
	ProductID      string
	Price          decimal.Decimal
	AvailableStock int
	Active         bool
}

// ProductUnavailableError indicates a requested product is unknown, inactive,
// or lacks the requested quantity. Any single unavailable product fails the
// whole snapshot request; there are no partial checkouts.
type ProductUnavailableError struct {
	ProductID string
	Reason    string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s unavailable: %s", e.ProductID, e.Reason)
}

// Reader returns price, stock and activity for a set of products.
// Implementations must be side-effect free.
type Reader interface {
	GetSnapshot(ctx context.Context, productIDs []string) (map[string]Snapshot, error)
}
