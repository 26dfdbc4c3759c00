package calculator

import (
	"github.com/Simplici0/labsite/internal/catalog"
	"github.com/Simplici0/labsite/internal/pricing"
)

// RequiredSamples sums samples-per-unit * quantity over every selected line that has a
// sample rule. Lines without a rule contribute nothing.
func RequiredSamples(lines []pricing.Line, rules catalog.SampleRules) int {
	total := 0
	for _, l := range lines {
		total += rules.SamplesPerUnit(l.ItemID) * l.Quantity
	}
	return total
}

// Derive computes the automatic preparation line for the current selection.
// It returns nil for ready-made specimens and whenever no specimens are needed or the
// catalog lacks the preparation item.
func Derive(lines []pricing.Line, source catalog.MaterialSource, c Lookup, rules catalog.SampleRules, prep catalog.Preparation) *pricing.Line {
	if source == catalog.SourceReadyMade {
		return nil
	}

	required := RequiredSamples(lines, rules)
	if required <= 0 {
		return nil
	}

	id, ok := prep.ItemFor(source)
	if !ok {
		return nil
	}
	it, ok := c.FindByID(id)
	if !ok {
		return nil
	}

	return &pricing.Line{ItemID: it.ID, Quantity: required, UnitPrice: it.UnitPrice}
}
