package calculator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/labsite/internal/catalog"
	"github.com/Simplici0/labsite/internal/pricing"
)

// State is the serialisable form of a session kept between requests.
// The derived line is not stored; it is recomputed on restore.
type State struct {
	Source string      `json:"source"`
	Lines  []StateLine `json:"lines"`
	Status *StateFlash `json:"status,omitempty"`
}

// StateLine is a stored manual line with its captured unit price.
type StateLine struct {
	ItemID    string          `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// StateFlash is a stored save status.
type StateFlash struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
	Expires time.Time  `json:"expires"`
}

// State exports the session.
func (s *Session) State() State {
	st := State{Source: s.source.Get().String(), Lines: make([]StateLine, 0, s.selection.Len())}
	for _, l := range s.selection.Items() {
		st.Lines = append(st.Lines, StateLine{ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	if s.status.Kind != StatusNone {
		st.Status = &StateFlash{Kind: s.status.Kind, Message: s.status.Message, Expires: s.status.Expires}
	}
	return st
}

// Restore rebuilds a session from stored state. Lines keep their captured prices even
// if the catalog has changed since; an unknown source falls back to the default.
// Stored lines for automatic preparation items are dropped because the session derives
// them itself.
func Restore(c Catalog, st State, statusTTL time.Duration) *Session {
	s := NewSession(c, statusTTL)
	if src, err := catalog.ParseMaterialSource(st.Source); err == nil {
		s.source.Set(src)
	}
	for _, l := range st.Lines {
		if s.Automatic(l.ItemID) {
			continue
		}
		s.selection.restore(pricing.Line{ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	if st.Status != nil {
		s.status = Status{Kind: st.Status.Kind, Message: st.Status.Message, Expires: st.Status.Expires}
	}
	s.recompute()
	return s
}
