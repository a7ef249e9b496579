// Package tax implements the GST slab model shared by order creation and invoice rendering.
//
// All amounts are tax-inclusive on the way in. Nothing in this package rounds; callers round once,
// at the presentation boundary, with Round.
package tax

import "github.com/shopspring/decimal"

var (
	// SlabThreshold is the highest unit price, in whole currency units, taxed at LowRate.
	SlabThreshold = decimal.NewFromInt(2500)

	LowRate  = decimal.RequireFromString("0.05")
	HighRate = decimal.RequireFromString("0.18")
)

// Breakdown is a tax-inclusive amount split into its net and tax parts.
// Net + Tax equals the inclusive amount exactly.
type Breakdown struct {
	Rate decimal.Decimal
	Net  decimal.Decimal
	Tax  decimal.Decimal
}

// Gross returns the tax-inclusive amount the breakdown was derived from.
func (b Breakdown) Gross() decimal.Decimal {
	return b.Net.Add(b.Tax)
}

// RateFor picks the slab for a single unit's inclusive price.
func RateFor(unitPrice decimal.Decimal) decimal.Decimal {
	if unitPrice.LessThanOrEqual(SlabThreshold) {
		return LowRate
	}
	return HighRate
}

// SplitUnit splits a single unit's inclusive price.
func SplitUnit(unitPrice decimal.Decimal) Breakdown {
	return Split(unitPrice, 1)
}

// Split derives the net and tax of a line. The rate is chosen from the unit price, never from the
// line total, so quantity does not move an item between slabs.
func Split(unitPrice decimal.Decimal, quantity int) Breakdown {
	rate := RateFor(unitPrice)
	lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	net := lineTotal.Div(decimal.NewFromInt(1).Add(rate))
	return Breakdown{
		Rate: rate,
		Net:  net,
		Tax:  lineTotal.Sub(net),
	}
}

// Round rounds an amount to the nearest whole currency unit.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(0)
}

// Totals accumulates unrounded line breakdowns.
type Totals struct {
	Net decimal.Decimal
	Tax decimal.Decimal
}

// Add folds a line breakdown into the running totals.
func (t *Totals) Add(b Breakdown) {
	t.Net = t.Net.Add(b.Net)
	t.Tax = t.Tax.Add(b.Tax)
}

// Rounded returns the totals rounded once, after summation.
func (t Totals) Rounded() (net, tax decimal.Decimal) {
	return Round(t.Net), Round(t.Tax)
}

// Percent renders a rate as a whole percentage, e.g. 0.18 -> 18.
func Percent(rate decimal.Decimal) int64 {
	return rate.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
