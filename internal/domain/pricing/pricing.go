// Package pricing computes order totals. Compute is a pure function: same
// lines and discount always produce the identical Pricing, which keeps order
// totals reproducible for auditing.
package pricing

import (
	"github.com/shopspring/decimal"
)

// TaxRate is the flat tax applied to the discounted subtotal.
var TaxRate = decimal.RequireFromString("0.18")

// Line is a priced order line. UnitPrice is the catalog snapshot price.
type Line struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Pricing holds the money breakdown of an order.
// Invariant: Total = Subtotal - Discount + Tax, all fields non-negative.
type Pricing struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Compute derives the full pricing breakdown from order lines and an already
// computed discount amount. The discount is clamped to the subtotal so the
// total never goes negative. Tax is TaxRate of (subtotal - discount), rounded
// half-up to two decimal places.
func Compute(lines []Line, discount decimal.Decimal) Pricing {
	subtotal := decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		subtotal = subtotal.Add(l.UnitPrice.Mul(qty))
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	discount = discount.Round(2)

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(TaxRate).Round(2)

	return Pricing{
		Subtotal: subtotal.Round(2),
		Discount: discount,
		Tax:      tax,
		Total:    subtotal.Round(2).Sub(discount).Add(tax),
	}
}

// LineTotal returns the extended price of a single line.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}
