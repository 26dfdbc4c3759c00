package calculator

import (
	"math"

	"github.com/Simplici0/labsite/internal/catalog"
	"github.com/Simplici0/labsite/internal/pricing"
)

// MaxQuantity caps a single line so huge inputs cannot overflow the integer quantity.
const MaxQuantity = 1_000_000

// Lookup resolves catalog items by id.
type Lookup interface {
	FindByID(id string) (catalog.Item, bool)
}

// Selection is the set of line items the user picked by hand, in insertion order.
// It never recomputes anything on its own.
type Selection struct {
	catalog Lookup
	lines   []pricing.Line
}

// NewSelection returns an empty selection backed by the given catalog.
func NewSelection(c Lookup) *Selection {
	return &Selection{catalog: c}
}

// Add inserts the item with quantity 1 and the current catalog price.
// It reports false and does nothing when the item is unknown or already selected.
func (s *Selection) Add(id string) bool {
	if s.indexOf(id) >= 0 {
		return false
	}
	it, ok := s.catalog.FindByID(id)
	if !ok {
		return false
	}
	s.lines = append(s.lines, pricing.Line{ItemID: it.ID, Quantity: 1, UnitPrice: it.UnitPrice})
	return true
}

// Remove deletes the line for id if present.
func (s *Selection) Remove(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return true
}

// SetQuantity stores max(1, round(q)) for an existing line.
func (s *Selection) SetQuantity(id string, q float64) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.lines[i].Quantity = ClampQuantity(q)
	return true
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id string) bool {
	return s.indexOf(id) >= 0
}

// Items returns a copy of the selected lines in insertion order.
func (s *Selection) Items() []pricing.Line {
	return append([]pricing.Line(nil), s.lines...)
}

// Len returns the number of selected lines.
func (s *Selection) Len() int {
	return len(s.lines)
}

// restore appends a line carrying a previously captured price. Duplicates are dropped.
func (s *Selection) restore(l pricing.Line) {
	if l.ItemID == "" || s.indexOf(l.ItemID) >= 0 {
		return
	}
	l.Quantity = ClampQuantity(float64(l.Quantity))
	s.lines = append(s.lines, l)
}

func (s *Selection) indexOf(id string) int {
	for i, l := range s.lines {
		if l.ItemID == id {
			return i
		}
	}
	return -1
}

// ClampQuantity converts user input into a valid line quantity: max(1, round(q)), except
// that anything rounding above MaxQuantity is stored as MaxQuantity.
func ClampQuantity(q float64) int {
	if math.IsNaN(q) || q < 1 {
		return 1
	}
	r := math.Round(q)
	if r > MaxQuantity {
		return MaxQuantity
	}
	return int(r)
}

// SourceState holds the single active material source. The zero value is SourceCore.
type SourceState struct {
	value catalog.MaterialSource
}

// Set changes the active source. Unknown values are ignored.
func (s *SourceState) Set(v catalog.MaterialSource) bool {
	if !v.Valid() {
		return false
	}
	s.value = v
	return true
}

// Get returns the active source.
func (s *SourceState) Get() catalog.MaterialSource {
	return s.value
}
