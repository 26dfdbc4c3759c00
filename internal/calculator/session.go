package calculator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/labsite/internal/catalog"
	"github.com/Simplici0/labsite/internal/pricing"
)

// DefaultStatusTTL is how long a save status stays visible.
const DefaultStatusTTL = 4 * time.Second

// Catalog is the part of the catalog a calculator session needs.
type Catalog interface {
	Lookup
	Rules() catalog.SampleRules
	Preparation() catalog.Preparation
}

// Session is one user's calculator: manual selection, material source and the derived
// preparation line. Every mutation recomputes the derived line before returning, so
// reads never observe a stale value.
type Session struct {
	catalog   Catalog
	rules     catalog.SampleRules
	prep      catalog.Preparation
	selection *Selection
	source    SourceState
	derived   *pricing.Line
	status    Status
	statusTTL time.Duration
}

// NewSession returns an empty session with the default material source.
func NewSession(c Catalog, statusTTL time.Duration) *Session {
	if statusTTL <= 0 {
		statusTTL = DefaultStatusTTL
	}
	return &Session{
		catalog:   c,
		rules:     c.Rules(),
		prep:      c.Preparation(),
		selection: NewSelection(c),
		statusTTL: statusTTL,
	}
}

// Automatic reports whether id is a preparation item derived by the session itself.
func (s *Session) Automatic(id string) bool {
	return s.prep.Automatic(id)
}

// Applicable reports whether the item may be added under the current material source.
func (s *Session) Applicable(id string) bool {
	it, ok := s.catalog.FindByID(id)
	if !ok {
		return false
	}
	return catalog.IsApplicable(it, s.source.Get())
}

// Add selects an item. Items that are unknown, already selected, derived automatically
// or not applicable to the current material source are refused.
func (s *Session) Add(id string) bool {
	if s.Automatic(id) || !s.Applicable(id) {
		return false
	}
	ok := s.selection.Add(id)
	s.recompute()
	return ok
}

// Remove drops a manual line.
func (s *Session) Remove(id string) bool {
	ok := s.selection.Remove(id)
	s.recompute()
	return ok
}

// SetQuantity updates a manual line quantity, clamping it to at least 1.
func (s *Session) SetQuantity(id string, q float64) bool {
	ok := s.selection.SetQuantity(id, q)
	s.recompute()
	return ok
}

// SetSource switches the material source. Manual lines are kept even when they are no
// longer applicable to the new source.
func (s *Session) SetSource(v catalog.MaterialSource) bool {
	ok := s.source.Set(v)
	s.recompute()
	return ok
}

// Source returns the active material source.
func (s *Session) Source() catalog.MaterialSource {
	return s.source.Get()
}

// Lines returns the manual lines in insertion order.
func (s *Session) Lines() []pricing.Line {
	return s.selection.Items()
}

// Selected reports whether id is among the manual lines.
func (s *Session) Selected(id string) bool {
	return s.selection.Contains(id)
}

// Derived returns a copy of the automatic preparation line, or nil.
func (s *Session) Derived() *pricing.Line {
	if s.derived == nil {
		return nil
	}
	d := *s.derived
	return &d
}

// RequiredSamples returns the number of specimens the current selection consumes.
func (s *Session) RequiredSamples() int {
	return RequiredSamples(s.selection.Items(), s.rules)
}

// Result prices the session.
func (s *Session) Result() pricing.Result {
	return pricing.Calculate(s.selection.Items(), s.derived)
}

// Total returns the total cost of the session.
func (s *Session) Total() decimal.Decimal {
	return pricing.TotalCost(s.selection.Items(), s.derived)
}

// Status returns the last save status while it is still visible at now.
func (s *Session) Status(now time.Time) Status {
	if s.status.Kind == StatusNone || !now.Before(s.status.Expires) {
		return Status{}
	}
	return s.status
}

func (s *Session) setStatus(kind StatusKind, msg string, now time.Time) {
	s.status = Status{Kind: kind, Message: msg, Expires: now.Add(s.statusTTL)}
}

func (s *Session) recompute() {
	s.derived = Derive(s.selection.Items(), s.source.Get(), s.catalog, s.rules, s.prep)
}

// StatusKind classifies a save status.
type StatusKind int

const (
	StatusNone StatusKind = iota
	StatusSaved
	StatusFailed
)

// Status is a transient message shown after a save attempt.
type Status struct {
	Kind    StatusKind
	Message string
	Expires time.Time
}
