package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/orderflow/internal/domain/discount"
)

const (
	getDiscountByCodeSQL = `SELECT code, percent_off, valid_from, valid_until,
		min_order_value, max_discount, usage_limit, usage_count
		FROM discount_codes WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	incrementDiscountUsageSQL = `UPDATE discount_codes SET usage_count = usage_count + 1
		WHERE UPPER(code) = UPPER($1)`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up an active discount code (case-insensitive).
// Returns discount.ErrInvalidCode when no matching active code exists.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Code, error) {
	rows, err := r.pool.Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanDiscountCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrInvalidCode
		}
		return nil, fmt.Errorf("finding discount code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUsage atomically increments the usage counter for a code.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, incrementDiscountUsageSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing usage for discount %q: %w", code, err)
	}
	return nil
}

func scanDiscountCode(row pgx.CollectableRow) (discount.Code, error) {
	var (
		c          discount.Code
		usageLimit int32
		usageCount int32
	)
	err := row.Scan(
		&c.Code, &c.PercentOff, &c.ValidFrom, &c.ValidUntil,
		&c.MinOrderValue, &c.MaxDiscountAmount, &usageLimit, &usageCount,
	)
	c.UsageLimit = int(usageLimit)
	c.UsageCount = int(usageCount)
	return c, err
}
