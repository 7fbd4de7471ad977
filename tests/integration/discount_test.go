//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/orderflow/internal/domain/catalog"
	"github.com/xenking/orderflow/internal/domain/discount"
	"github.com/xenking/orderflow/internal/repository"
)

func seedDiscount(t *testing.T, code string, percentOff string, usageLimit int, active bool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		INSERT INTO discount_codes (code, percent_off, usage_limit, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			percent_off = EXCLUDED.percent_off,
			usage_limit = EXCLUDED.usage_limit,
			usage_count = 0,
			active = EXCLUDED.active`,
		code, decimal.RequireFromString(percentOff), usageLimit, active,
	)
	if err != nil {
		t.Fatalf("seed discount %s: %v", code, err)
	}
}

func TestDiscountFindByCode(t *testing.T) {
	ctx := context.Background()
	seedDiscount(t, "TENOFF", "10", 0, true)

	repo := repository.NewDiscountRepository(pool)

	got, err := repo.FindByCode(ctx, "TENOFF")
	require.NoError(t, err)
	assert.Equal(t, "TENOFF", got.Code)
	assert.True(t, got.PercentOff.Equal(decimal.NewFromInt(10)))

	// Lookup is case-insensitive.
	got, err = repo.FindByCode(ctx, "tenoff")
	require.NoError(t, err)
	assert.Equal(t, "TENOFF", got.Code)
}

func TestDiscountUnknownOrInactive(t *testing.T) {
	ctx := context.Background()
	seedDiscount(t, "RETIRED", "20", 0, false)

	repo := repository.NewDiscountRepository(pool)

	_, err := repo.FindByCode(ctx, "NOSUCHCODE")
	assert.ErrorIs(t, err, discount.ErrInvalidCode)

	_, err = repo.FindByCode(ctx, "RETIRED")
	assert.ErrorIs(t, err, discount.ErrInvalidCode)
}

func TestDiscountIncrementUsage(t *testing.T) {
	ctx := context.Background()
	seedDiscount(t, "LIMITED", "25", 2, true)

	repo := repository.NewDiscountRepository(pool)

	require.NoError(t, repo.IncrementUsage(ctx, "LIMITED"))
	require.NoError(t, repo.IncrementUsage(ctx, "limited"))

	got, err := repo.FindByCode(ctx, "LIMITED")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)

	// The validator rejects exhausted codes end to end.
	v := discount.NewRepoValidator(repo)
	_, err = v.Validate(ctx, "LIMITED", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, discount.ErrUsageLimitReached)
}

func TestDiscountValidatorWindow(t *testing.T) {
	ctx := context.Background()

	future := time.Now().Add(24 * time.Hour).UTC()
	_, err := pool.Exec(ctx, `
		INSERT INTO discount_codes (code, percent_off, valid_from, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (code) DO UPDATE SET valid_from = EXCLUDED.valid_from`,
		"NOTYET", decimal.NewFromInt(10), future,
	)
	require.NoError(t, err)

	v := discount.NewRepoValidator(repository.NewDiscountRepository(pool))
	_, err = v.Validate(ctx, "NOTYET", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, discount.ErrExpired)
}

func TestCatalogSnapshotReflectsHolds(t *testing.T) {
	ctx := context.Background()
	seedProduct(t, "snap-item", "50.00", 10, true)
	seedProduct(t, "snap-inactive", "50.00", 10, false)

	reader := repository.NewSnapshotReader(pool)

	snaps, err := reader.GetSnapshot(ctx, []string{"snap-item"})
	require.NoError(t, err)
	assert.Equal(t, 10, snaps["snap-item"].AvailableStock)
	assert.True(t, snaps["snap-item"].Price.Equal(decimal.RequireFromString("50.00")))

	_, err = reader.GetSnapshot(ctx, []string{"snap-item", "snap-inactive"})
	var unavailable *catalog.ProductUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "snap-inactive", unavailable.ProductID)

	_, err = reader.GetSnapshot(ctx, []string{"snap-missing"})
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "snap-missing", unavailable.ProductID)
}
