package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderflow/internal/domain/reservation"
)

const (
	// The conditional decrement is the linearization point: the row lock taken
	// by UPDATE serializes concurrent reservations per product, and the WHERE
	// clause guarantees available_stock never goes negative.
	holdStockSQL = `UPDATE products SET available_stock = available_stock - $2
		WHERE id = $1 AND available_stock >= $2`

	availableStockSQL = `SELECT available_stock FROM products WHERE id = $1`

	insertReservationSQL = `INSERT INTO stock_reservations (order_id, product_id, quantity, status)
		VALUES ($1, $2, $3, 'held')`

	confirmReservationsSQL = `UPDATE stock_reservations
		SET status = 'confirmed', updated_at = now()
		WHERE order_id = $1 AND status = 'held'`

	releaseReservationsSQL = `UPDATE stock_reservations
		SET status = 'released', updated_at = now()
		WHERE order_id = $1 AND status IN ('held', 'confirmed')
		RETURNING product_id, quantity`

	expireStaleHoldsSQL = `UPDATE stock_reservations
		SET status = 'released', updated_at = now()
		WHERE status = 'held' AND created_at < $1
		RETURNING product_id, quantity`

	restoreStockSQL = `UPDATE products SET available_stock = available_stock + $2
		WHERE id = $1`
)

var _ reservation.Manager = (*ReservationManager)(nil)

// ReservationManager implements reservation.Manager backed by PostgreSQL.
// Each operation runs in a single transaction so the batch is all-or-nothing.
type ReservationManager struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewReservationManager returns a ReservationManager that uses the given pool.
func NewReservationManager(pool *pgxpool.Pool) *ReservationManager {
	return &ReservationManager{pool: pool, now: time.Now}
}

// Reserve holds the requested quantities for the order. If any product lacks
// stock the transaction rolls back and nothing remains held.
func (m *ReservationManager) Reserve(ctx context.Context, orderID string, items []reservation.Item) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		for _, item := range items {
			tag, err := tx.Exec(ctx, holdStockSQL, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("holding stock for product %q: %w", item.ProductID, err)
			}
			if tag.RowsAffected() == 0 {
				available := 0
				// Best effort: report how much was actually available.
				_ = tx.QueryRow(ctx, availableStockSQL, item.ProductID).Scan(&available)
				return &reservation.InsufficientStockError{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: available,
				}
			}

			if _, err := tx.Exec(ctx, insertReservationSQL, orderID, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("recording reservation for product %q: %w", item.ProductID, err)
			}
		}
		return nil
	})
}

// Confirm transitions the order's held reservations to confirmed. Stock stays
// allocated. Confirming an already confirmed order is a no-op.
func (m *ReservationManager) Confirm(ctx context.Context, orderID string) error {
	_, err := m.pool.Exec(ctx, confirmReservationsSQL, orderID)
	if err != nil {
		return fmt.Errorf("confirming reservations for order %q: %w", orderID, err)
	}
	return nil
}

// Release transitions held or confirmed reservations to released and restores
// availability. The status guard in the UPDATE makes double release restore
// stock exactly once.
func (m *ReservationManager) Release(ctx context.Context, orderID string) error {
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, releaseReservationsSQL, orderID)
		if err != nil {
			return err
		}
		released, err := pgx.CollectRows(rows, scanReleasedLine)
		if err != nil {
			return err
		}
		return restoreStock(ctx, tx, released)
	})
	if err != nil {
		return fmt.Errorf("releasing reservations for order %q: %w", orderID, err)
	}
	return nil
}

// ExpireStaleHolds releases held reservations older than maxAge and restores
// their stock. Returns the number of released holds.
func (m *ReservationManager) ExpireStaleHolds(ctx context.Context, maxAge time.Duration) (int, error) {
	count := 0
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		cutoff := m.now().Add(-maxAge)
		rows, err := tx.Query(ctx, expireStaleHoldsSQL, cutoff)
		if err != nil {
			return err
		}
		released, err := pgx.CollectRows(rows, scanReleasedLine)
		if err != nil {
			return err
		}
		count = len(released)
		return restoreStock(ctx, tx, released)
	})
	if err != nil {
		return 0, fmt.Errorf("expiring stale holds: %w", err)
	}
	return count, nil
}

type releasedLine struct {
	productID string
	quantity  int
}

func scanReleasedLine(row pgx.CollectableRow) (releasedLine, error) {
	var l releasedLine
	err := row.Scan(&l.productID, &l.quantity)
	return l, err
}

func restoreStock(ctx context.Context, tx pgx.Tx, released []releasedLine) error {
	for _, l := range released {
		if _, err := tx.Exec(ctx, restoreStockSQL, l.productID, l.quantity); err != nil {
			return fmt.Errorf("restoring stock for product %q: %w", l.productID, err)
		}
	}
	return nil
}
