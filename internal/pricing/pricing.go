package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Line is a priced cart entry: an item id, a quantity and the unit price captured when
// the line was created.
type Line struct {
	ItemID    string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Cost returns quantity * unit price.
func (l Line) Cost() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineCost is a line together with its computed cost.
type LineCost struct {
	Line
	Cost decimal.Decimal
}

// Breakdown contains the per-line costs and the intermediate sums of a calculation.
type Breakdown struct {
	Lines          []LineCost
	ManualSubtotal decimal.Decimal
	Derived        *LineCost
	DerivedCost    decimal.Decimal
}

// Totals contains roll-up values from the pricing calculation.
type Totals struct {
	Total decimal.Decimal
}

// Result groups the full pricing output, including detailed breakdown and totals.
type Result struct {
	Breakdown Breakdown
	Totals    Totals
}

// Calculate prices the manually selected lines and the optional derived line.
func Calculate(lines []Line, derived *Line) Result {
	breakdown := Breakdown{
		Lines:          make([]LineCost, 0, len(lines)),
		ManualSubtotal: decimal.Zero,
		DerivedCost:    decimal.Zero,
	}

	for _, l := range lines {
		cost := l.Cost()
		breakdown.Lines = append(breakdown.Lines, LineCost{Line: l, Cost: cost})
		breakdown.ManualSubtotal = breakdown.ManualSubtotal.Add(cost)
	}

	if derived != nil {
		cost := derived.Cost()
		breakdown.Derived = &LineCost{Line: *derived, Cost: cost}
		breakdown.DerivedCost = cost
	}

	return Result{
		Breakdown: breakdown,
		Totals:    Totals{Total: breakdown.ManualSubtotal.Add(breakdown.DerivedCost)},
	}
}

// TotalCost returns the sum of all manual line costs plus the derived line cost.
func TotalCost(lines []Line, derived *Line) decimal.Decimal {
	return Calculate(lines, derived).Totals.Total
}

// Format renders an amount for display as "1 500,00 ₽". The result is for humans only
// and is never parsed back into an amount.
func Format(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	b.WriteString(" ₽")
	return b.String()
}
