package calculator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/labsite/internal/catalog"
	"github.com/Simplici0/labsite/internal/pricing"
)

// AutomaticSuffix marks the derived preparation line in saved calculations.
const AutomaticSuffix = " (автоматически)"

// PersistenceBridge stores finished calculations for the current user.
type PersistenceBridge interface {
	IsAuthenticated() bool
	// RequestAuthentication asks the user to sign in. hint names where to return.
	RequestAuthentication(hint string)
	Persist(ctx context.Context, calc SavedCalculation) error
}

// SavedLine is one itemised line of a saved calculation.
type SavedLine struct {
	ItemID    string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Automatic bool
}

// SavedCalculation is an immutable snapshot of a finished cart.
type SavedCalculation struct {
	Source catalog.MaterialSource
	Total  decimal.Decimal
	Lines  []SavedLine
}

// SaveOutcome reports what Save did.
type SaveOutcome int

const (
	SaveAuthRequired SaveOutcome = iota
	SaveEmpty
	SaveSucceeded
	SaveFailed
)

func (o SaveOutcome) String() string {
	switch o {
	case SaveAuthRequired:
		return "auth_required"
	case SaveEmpty:
		return "empty"
	case SaveSucceeded:
		return "saved"
	case SaveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Save hands the current calculation to the bridge. An unauthenticated user is sent to
// sign in and nothing is built. The selection is left intact whatever the outcome; the
// persist error, if any, is returned for logging.
func (s *Session) Save(ctx context.Context, bridge PersistenceBridge, hint string, now time.Time) (SaveOutcome, error) {
	if !bridge.IsAuthenticated() {
		bridge.RequestAuthentication(hint)
		return SaveAuthRequired, nil
	}
	if s.selection.Len() == 0 {
		return SaveEmpty, nil
	}

	if err := bridge.Persist(ctx, s.Snapshot()); err != nil {
		s.setStatus(StatusFailed, "Не удалось сохранить расчёт. Попробуйте ещё раз.", now)
		return SaveFailed, err
	}
	s.setStatus(StatusSaved, "Расчёт сохранён в личном кабинете.", now)
	return SaveSucceeded, nil
}

// Snapshot builds the SavedCalculation for the current state.
func (s *Session) Snapshot() SavedCalculation {
	lines := s.selection.Items()
	calc := SavedCalculation{
		Source: s.source.Get(),
		Total:  pricing.TotalCost(lines, s.derived),
		Lines:  make([]SavedLine, 0, len(lines)+1),
	}
	for _, l := range lines {
		calc.Lines = append(calc.Lines, s.savedLine(l, false))
	}
	if s.derived != nil {
		calc.Lines = append(calc.Lines, s.savedLine(*s.derived, true))
	}
	return calc
}

func (s *Session) savedLine(l pricing.Line, automatic bool) SavedLine {
	name := l.ItemID
	if it, ok := s.catalog.FindByID(l.ItemID); ok {
		name = it.Name
	}
	if automatic {
		name += AutomaticSuffix
	}
	return SavedLine{
		ItemID:    l.ItemID,
		Name:      name,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice,
		Automatic: automatic,
	}
}
