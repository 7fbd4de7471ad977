package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderflow/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, buyer_id, items, shipping_address, billing_address,
		payment_method, discount_code, subtotal, discount, tax, total, status, status_history, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getOrderByIDSQL = `SELECT id, buyer_id, items, shipping_address, billing_address,
		payment_method, discount_code, subtotal, discount, tax, total, status, status_history, version, created_at
		FROM orders WHERE id = $1`

	listOrdersByBuyerSQL = `SELECT id, buyer_id, items, shipping_address, billing_address,
		payment_method, discount_code, subtotal, discount, tax, total, status, status_history, version, created_at
		FROM orders WHERE buyer_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT CASE WHEN $3 > 0 THEN $3 END`

	updateOrderStatusSQL = `UPDATE orders
		SET status = $2, status_history = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $4`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Items, addresses
// and status history live in JSONB columns; pricing is flattened into NUMERIC
// columns so reports can query it directly.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create persists a new order.
func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshaling status history: %w", err)
	}

	_, err = s.pool.Exec(ctx, createOrderSQL,
		o.ID, o.BuyerID, items, shipping, billing,
		string(o.PaymentMethod), o.DiscountCode,
		o.Pricing.Subtotal, o.Pricing.Discount, o.Pricing.Tax, o.Pricing.Total,
		string(o.Status), history, o.Version, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID fetches a single order. Returns order.ErrNotFound when absent.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByBuyer lists a buyer's orders newest first, optionally filtered by
// status and limited.
func (s *OrderStore) ListByBuyer(ctx context.Context, buyerID string, filter order.ListFilter) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersByBuyerSQL, buyerID, string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders for buyer %q: %w", buyerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus writes the order's status and history guarded by optimistic
// versioning. Returns order.ErrConflictingUpdate when a racing writer bumped
// the version first.
func (s *OrderStore) UpdateStatus(ctx context.Context, o *order.Order) error {
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshaling status history: %w", err)
	}

	tag, err := s.pool.Exec(ctx, updateOrderStatusSQL, o.ID, string(o.Status), history, o.Version)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the order vanished or the version moved under us.
		if _, getErr := s.GetByID(ctx, o.ID); getErr != nil {
			return getErr
		}
		return order.ErrConflictingUpdate
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		items         []byte
		shipping      []byte
		billing       []byte
		history       []byte
		paymentMethod string
		status        string
		version       int32
	)
	err := row.Scan(
		&o.ID, &o.BuyerID, &items, &shipping, &billing,
		&paymentMethod, &o.DiscountCode,
		&o.Pricing.Subtotal, &o.Pricing.Discount, &o.Pricing.Tax, &o.Pricing.Total,
		&status, &history, &version, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling billing address: %w", err)
	}
	if err := json.Unmarshal(history, &o.StatusHistory); err != nil {
		return o, fmt.Errorf("unmarshaling status history: %w", err)
	}

	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.Status = order.Status(status)
	o.Version = int(version)
	return o, nil
}
