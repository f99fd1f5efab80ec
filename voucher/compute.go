/*
compute.go - The approval-time financial computation

PURPOSE:
  Given the requested peso amount, the resolved price per liter, and the
  resolved discount per liter, derive the four frozen monetary fields:

    liters_requested = round(amount / price, 2)
    discount_total   = round(liters_requested * discount, 2)
    total_dispensed  = round(amount + discount_total, 2)
    liters_dispensed = round(liters_requested + discount_total / price, 2)

ZERO-PRICE GUARD:
  When price <= 0 or amount <= 0, all derived totals are zero except
  total_dispensed, which carries the raw amount. The approval transition
  still succeeds in that case. This mirrors the long-standing production
  behavior; whether a missing price should instead hard-fail is tracked as
  an open question in DESIGN.md.
*/
package voucher

import "github.com/shopspring/decimal"

// Computation is the result of the approval math together with the inputs
// that were actually used, so callers can persist both.
type Computation struct {
	Price            decimal.Decimal
	DiscountPerLiter decimal.Decimal

	LitersRequested decimal.Decimal
	DiscountTotal   decimal.Decimal
	TotalDispensed  decimal.Decimal
	LitersDispensed decimal.Decimal
}

// Compute derives the frozen monetary fields. All money values round to two
// decimal places, half away from zero.
func Compute(amount, price, discountPerLiter decimal.Decimal) Computation {
	c := Computation{Price: price, DiscountPerLiter: discountPerLiter}

	if !amount.IsPositive() || !price.IsPositive() {
		// Zero-price guard: totals collapse, amount passes through.
		c.LitersRequested = decimal.Zero
		c.DiscountTotal = decimal.Zero
		c.TotalDispensed = amount
		c.LitersDispensed = decimal.Zero
		return c
	}

	c.LitersRequested = amount.DivRound(price, 2)
	c.DiscountTotal = c.LitersRequested.Mul(discountPerLiter).Round(2)
	c.TotalDispensed = amount.Add(c.DiscountTotal).Round(2)
	c.LitersDispensed = c.LitersRequested.Add(c.DiscountTotal.Div(price)).Round(2)
	return c
}
