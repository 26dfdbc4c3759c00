package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/labsite/internal/calculator"
	"github.com/Simplici0/labsite/internal/catalog"
)

// Calculation is a saved calculation as stored for a user.
type Calculation struct {
	PublicID  string
	CreatedAt time.Time
	Source    catalog.MaterialSource
	Total     decimal.Decimal
	Lines     []calculator.SavedLine
}

type storedLine struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Automatic bool            `json:"automatic,omitempty"`
}

// SaveCalculation stores calc for the user and returns its public id.
func (s *Store) SaveCalculation(ctx context.Context, userID int64, calc calculator.SavedCalculation) (string, error) {
	lines := make([]storedLine, 0, len(calc.Lines))
	for _, l := range calc.Lines {
		lines = append(lines, storedLine{
			ItemID:    l.ItemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Automatic: l.Automatic,
		})
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("marshal calculation lines: %w", err)
	}

	publicID := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calculations (public_id, user_id, created_at, material_source, total, lines_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, publicID, userID, s.now().UTC().Format(timeLayout), calc.Source.String(), calc.Total.String(), string(linesJSON))
	if err != nil {
		return "", fmt.Errorf("insert calculation: %w", err)
	}

	return publicID, nil
}

// likeEscaper escapes the LIKE wildcards of a search query; the queries declare '\' as
// their escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListCalculations returns the user's calculations, newest first. A non-empty query keeps
// only calculations whose id or line names contain it literally.
func (s *Store) ListCalculations(ctx context.Context, userID int64, query string) ([]Calculation, error) {
	query = strings.TrimSpace(query)
	search := "%" + likeEscaper.Replace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT public_id, created_at, material_source, total, lines_json
		FROM calculations
		WHERE user_id = ?
			AND (? = ''
				OR public_id LIKE ? ESCAPE '\'
				OR EXISTS (
					SELECT 1 FROM json_each(calculations.lines_json) AS line
					WHERE json_extract(line.value, '$.name') LIKE ? ESCAPE '\'
				))
		ORDER BY datetime(created_at) DESC, id DESC
	`, userID, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query calculations: %w", err)
	}
	defer rows.Close()

	calcs := make([]Calculation, 0)
	for rows.Next() {
		var (
			c         Calculation
			createdAt string
			source    string
			total     string
			linesJSON string
		)
		if err := rows.Scan(&c.PublicID, &createdAt, &source, &total, &linesJSON); err != nil {
			return nil, fmt.Errorf("scan calculation: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		if c.Source, err = catalog.ParseMaterialSource(source); err != nil {
			return nil, fmt.Errorf("calculation %s: %w", c.PublicID, err)
		}
		if c.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("calculation %s: parse total: %w", c.PublicID, err)
		}
		if c.Lines, err = decodeLines(linesJSON); err != nil {
			return nil, fmt.Errorf("calculation %s: %w", c.PublicID, err)
		}
		calcs = append(calcs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calculations: %w", err)
	}

	return calcs, nil
}

// DeleteCalculation removes one of the user's calculations.
func (s *Store) DeleteCalculation(ctx context.Context, userID int64, publicID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calculations WHERE user_id = ? AND public_id = ?`, userID, publicID)
	if err != nil {
		return fmt.Errorf("delete calculation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete calculation: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeLines(raw string) ([]calculator.SavedLine, error) {
	var stored []storedLine
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}
	lines := make([]calculator.SavedLine, 0, len(stored))
	for _, l := range stored {
		lines = append(lines, calculator.SavedLine{
			ItemID:    l.ItemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Automatic: l.Automatic,
		})
	}
	return lines, nil
}
