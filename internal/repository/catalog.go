package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderflow/internal/domain/catalog"
)

const getSnapshotSQL = `SELECT id, price, available_stock, active
	FROM products WHERE id = ANY($1)`

var _ catalog.Reader = (*SnapshotReader)(nil)

// SnapshotReader implements catalog.Reader backed by PostgreSQL.
// available_stock already accounts for outstanding holds, so the snapshot
// reflects apparent availability without joining reservations.
type SnapshotReader struct {
	pool *pgxpool.Pool
}

// NewSnapshotReader returns a SnapshotReader that uses the given pool.
func NewSnapshotReader(pool *pgxpool.Pool) *SnapshotReader {
	return &SnapshotReader{pool: pool}
}

// GetSnapshot fetches price, availability and activity for all requested
// products in a single query. A missing or inactive product fails the whole
// request.
func (r *SnapshotReader) GetSnapshot(ctx context.Context, productIDs []string) (map[string]catalog.Snapshot, error) {
	rows, err := r.pool.Query(ctx, getSnapshotSQL, productIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching product snapshot: %w", err)
	}

	snaps, err := pgx.CollectRows(rows, scanSnapshot)
	if err != nil {
		return nil, fmt.Errorf("fetching product snapshot: %w", err)
	}

	out := make(map[string]catalog.Snapshot, len(snaps))
	for _, s := range snaps {
		out[s.ProductID] = s
	}

	for _, id := range productIDs {
		snap, ok := out[id]
		if !ok {
			return nil, &catalog.ProductUnavailableError{ProductID: id, Reason: "not found"}
		}
		if !snap.Active {
			return nil, &catalog.ProductUnavailableError{ProductID: id, Reason: "inactive"}
		}
	}

	return out, nil
}

func scanSnapshot(row pgx.CollectableRow) (catalog.Snapshot, error) {
	var s catalog.Snapshot
	err := row.Scan(&s.ProductID, &s.Price, &s.AvailableStock, &s.Active)
	return s, err
}
