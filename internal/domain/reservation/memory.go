package reservation

import (
	"context"
	"sync"
	"time"
)

// MemoryManager is an in-process Manager keeping availability counters and
// holds under a single mutex. It backs unit tests and local development; the
// production implementation lives in internal/repository and pushes the
// conditional decrement down to PostgreSQL.
type MemoryManager struct {
	mu        sync.Mutex
	available map[string]int
	holds     map[string][]*Reservation // keyed by order ID
	now       func() time.Time
}

var _ Manager = (*MemoryManager)(nil)

// NewMemoryManager creates a MemoryManager with the given per-product
// availability.
func NewMemoryManager(available map[string]int) *MemoryManager {
	avail := make(map[string]int, len(available))
	for id, n := range available {
		avail[id] = n
	}
	return &MemoryManager{
		available: avail,
		holds:     make(map[string][]*Reservation),
		now:       time.Now,
	}
}

// Available returns the current availability for a product.
func (m *MemoryManager) Available(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[productID]
}

// Reserve holds the requested quantities for the order. The whole batch is
// checked before any counter moves, so a failing line leaves nothing held.
// Quantities are summed per product first; a batch naming the same product
// twice must not pass two independent checks against the same counter.
func (m *MemoryManager) Reserve(_ context.Context, orderID string, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	requested := make(map[string]int, len(items))
	for _, item := range items {
		requested[item.ProductID] += item.Quantity
	}
	for _, item := range items {
		if avail := m.available[item.ProductID]; avail < requested[item.ProductID] {
			return &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: requested[item.ProductID],
				Available: avail,
			}
		}
	}

	now := m.now()
	holds := make([]*Reservation, len(items))
	for i, item := range items {
		m.available[item.ProductID] -= item.Quantity
		holds[i] = &Reservation{
			ProductID: item.ProductID,
			OrderID:   orderID,
			Quantity:  item.Quantity,
			Status:    StatusHeld,
			CreatedAt: now,
		}
	}
	m.holds[orderID] = append(m.holds[orderID], holds...)
	return nil
}

// Confirm marks the order's held reservations as confirmed. Confirming an
// order with no held reservations is a no-op.
func (m *MemoryManager) Confirm(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.holds[orderID] {
		if r.Status == StatusHeld {
			r.Status = StatusConfirmed
		}
	}
	return nil
}

// Release returns held or confirmed quantities to availability. Calling it
// again for the same order is a no-op: stock is restored exactly once.
func (m *MemoryManager) Release(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.holds[orderID] {
		if r.Status == StatusReleased {
			continue
		}
		m.available[r.ProductID] += r.Quantity
		r.Status = StatusReleased
	}
	return nil
}

// ExpireStaleHolds releases held reservations created more than maxAge ago.
func (m *MemoryManager) ExpireStaleHolds(_ context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	released := 0
	for _, holds := range m.holds {
		for _, r := range holds {
			if r.Status == StatusHeld && r.CreatedAt.Before(cutoff) {
				m.available[r.ProductID] += r.Quantity
				r.Status = StatusReleased
				released++
			}
		}
	}
	return released, nil
}

// Holds returns a snapshot of the reservations recorded for an order.
func (m *MemoryManager) Holds(orderID string) []Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Reservation, 0, len(m.holds[orderID]))
	for _, r := range m.holds[orderID] {
		out = append(out, *r)
	}
	return out
}
