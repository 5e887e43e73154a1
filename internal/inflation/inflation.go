// Package inflation converts nominal dollar columns to base-year dollars
// with a fixed year→deflator mapping supplied at startup.
package inflation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	apperrors "spendtrend/internal/errors"
	"spendtrend/internal/panel"
)

// StageName labels issues raised by the normalizer
const StageName = "inflation"

// Deflators maps a year to the factor that converts that year's dollars to
// base-year dollars: real = nominal / deflator.
type Deflators map[int]float64

// DefaultDeflators is the CPI table with 2018 as base year
func DefaultDeflators() Deflators {
	return Deflators{
		2018: 1.00,
		2019: 1.02,
		2020: 1.03,
		2021: 1.08,
		2022: 1.16,
		2023: 1.20,
	}
}

// Validate checks that every factor is positive and finite and that the base
// year maps to exactly 1.0.
func (d Deflators) Validate(baseYear int) error {
	if len(d) == 0 {
		return apperrors.NewConfigError("deflator mapping is empty", nil)
	}
	for _, y := range d.Years() {
		f := d[y]
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return apperrors.NewConfigError(fmt.Sprintf("deflator for %d must be positive, got %g", y, f), nil).
				WithContext("year", y)
		}
	}
	base, ok := d[baseYear]
	if !ok {
		return apperrors.NewConfigError(fmt.Sprintf("deflator mapping has no entry for base year %d", baseYear), nil)
	}
	if base != 1.0 {
		return apperrors.NewConfigError(fmt.Sprintf("base year %d deflator must be 1.0, got %g", baseYear, base), nil)
	}
	return nil
}

// Years returns the covered years in ascending order
func (d Deflators) Years() []int {
	years := make([]int, 0, len(d))
	for y := range d {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Clone returns an independent copy
func (d Deflators) Clone() Deflators {
	out := make(Deflators, len(d))
	for y, f := range d {
		out[y] = f
	}
	return out
}

// NominalColumns returns the default columns converted to real terms: every
// numerator and its per-unit column.
func NominalColumns() []string {
	var cols []string
	for _, f := range panel.NumeratorFields() {
		cols = append(cols, f, panel.PerUnit(f))
	}
	return cols
}

// Result reports the rows whose year had no deflator
type Result struct {
	Rows   int           `json:"rows"`
	Issues []panel.Issue `json:"issues,omitempty"`
}

// Normalizer adds <column>_real columns to a panel
type Normalizer struct {
	deflators Deflators
	baseYear  int
	columns   []string
	logger    *slog.Logger
}

// NewNormalizer validates the mapping and creates a normalizer. The mapping
// is copied, so later changes by the caller have no effect.
func NewNormalizer(deflators Deflators, baseYear int, logger *slog.Logger, columns ...string) (*Normalizer, error) {
	if err := deflators.Validate(baseYear); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(columns) == 0 {
		columns = NominalColumns()
	}
	return &Normalizer{
		deflators: deflators.Clone(),
		baseYear:  baseYear,
		columns:   columns,
		logger:    logger,
	}, nil
}

// Normalize returns a copy of t with real = nominal / deflator(year) for
// each configured column. Rows whose year is absent from the mapping get
// null real columns and an Issue; the rest of the table is unaffected.
func (n *Normalizer) Normalize(ctx context.Context, t *panel.Table) (*panel.Table, Result) {
	out := t.Clone()
	rows := out.Rows()
	res := Result{Rows: len(rows)}

	for i := range rows {
		row := &rows[i]
		factor, ok := n.deflators[row.Year]
		for _, col := range n.columns {
			if !ok {
				row.Set(panel.Real(col), panel.Null())
				continue
			}
			row.Set(panel.Real(col), row.Get(col).Div(panel.Of(factor)))
		}
		if !ok {
			res.Issues = append(res.Issues, panel.Issue{
				EntityID: row.EntityID,
				Year:     row.Year,
				Stage:    StageName,
				Reason:   fmt.Sprintf("no deflator for year %d", row.Year),
			})
		}
	}

	if len(res.Issues) > 0 {
		n.logger.WarnContext(ctx, "rows without deflator left with null real values",
			"rows", len(res.Issues),
			"covered_years", n.deflators.Years(),
		)
	}
	n.logger.InfoContext(ctx, "inflation adjustment completed",
		"base_year", n.baseYear,
		"rows", res.Rows,
		"columns", len(n.columns),
	)
	return out, res
}
