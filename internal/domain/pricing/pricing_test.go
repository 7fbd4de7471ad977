package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		lines        []Line
		discount     decimal.Decimal
		wantSubtotal string
		wantDiscount string
		wantTax      string
		wantTotal    string
	}{
		{
			name: "single line no discount",
			lines: []Line{
				{ProductID: "p1", UnitPrice: dec("100"), Quantity: 2},
			},
			discount:     decimal.Zero,
			wantSubtotal: "200",
			wantDiscount: "0",
			wantTax:      "36",
			wantTotal:    "236",
		},
		{
			name: "capped discount on 1000",
			lines: []Line{
				{ProductID: "p1", UnitPrice: dec("250"), Quantity: 4},
			},
			discount:     dec("150"),
			wantSubtotal: "1000",
			wantDiscount: "150",
			wantTax:      "153",
			wantTotal:    "1003",
		},
		{
			name: "discount clamped to subtotal",
			lines: []Line{
				{ProductID: "p1", UnitPrice: dec("10"), Quantity: 1},
			},
			discount:     dec("999"),
			wantSubtotal: "10",
			wantDiscount: "10",
			wantTax:      "0",
			wantTotal:    "0",
		},
		{
			name: "negative discount treated as zero",
			lines: []Line{
				{ProductID: "p1", UnitPrice: dec("50"), Quantity: 1},
			},
			discount:     dec("-5"),
			wantSubtotal: "50",
			wantDiscount: "0",
			wantTax:      "9",
			wantTotal:    "59",
		},
		{
			name: "tax rounds half up",
			lines: []Line{
				// taxable 0.25 -> tax 0.045 -> rounds to 0.05
				{ProductID: "p1", UnitPrice: dec("0.25"), Quantity: 1},
			},
			discount:     decimal.Zero,
			wantSubtotal: "0.25",
			wantDiscount: "0",
			wantTax:      "0.05",
			wantTotal:    "0.30",
		},
		{
			name:         "empty lines price to zero",
			lines:        nil,
			discount:     decimal.Zero,
			wantSubtotal: "0",
			wantDiscount: "0",
			wantTax:      "0",
			wantTotal:    "0",
		},
		{
			name: "multi-line cart",
			lines: []Line{
				{ProductID: "p1", UnitPrice: dec("19.99"), Quantity: 3},
				{ProductID: "p2", UnitPrice: dec("4.50"), Quantity: 2},
			},
			discount:     dec("10"),
			wantSubtotal: "68.97",
			wantDiscount: "10",
			wantTax:      "10.61",
			wantTotal:    "69.58",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.lines, tt.discount)

			assert.True(t, dec(tt.wantSubtotal).Equal(got.Subtotal),
				"subtotal: want %s, got %s", tt.wantSubtotal, got.Subtotal)
			assert.True(t, dec(tt.wantDiscount).Equal(got.Discount),
				"discount: want %s, got %s", tt.wantDiscount, got.Discount)
			assert.True(t, dec(tt.wantTax).Equal(got.Tax),
				"tax: want %s, got %s", tt.wantTax, got.Tax)
			assert.True(t, dec(tt.wantTotal).Equal(got.Total),
				"total: want %s, got %s", tt.wantTotal, got.Total)

			// Total = Subtotal - Discount + Tax must hold for every input.
			identity := got.Subtotal.Sub(got.Discount).Add(got.Tax)
			assert.True(t, identity.Equal(got.Total))
			assert.False(t, got.Subtotal.IsNegative())
			assert.False(t, got.Discount.IsNegative())
			assert.False(t, got.Tax.IsNegative())
			assert.False(t, got.Total.IsNegative())
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	lines := []Line{
		{ProductID: "p1", UnitPrice: dec("33.33"), Quantity: 3},
		{ProductID: "p2", UnitPrice: dec("0.01"), Quantity: 7},
	}
	first := Compute(lines, dec("12.34"))
	for range 50 {
		again := Compute(lines, dec("12.34"))
		require.Equal(t, first.Total.String(), again.Total.String())
		require.Equal(t, first.Tax.String(), again.Tax.String())
	}
}

func TestLineTotal(t *testing.T) {
	l := Line{ProductID: "p1", UnitPrice: dec("2.50"), Quantity: 4}
	assert.True(t, dec("10").Equal(l.LineTotal()))
}
