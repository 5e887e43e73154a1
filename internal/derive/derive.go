// Package derive computes per-unit (per-FTE) and share-of-total columns.
//
// Per-unit columns are recomputed from the finalized numerator and
// denominator of each row; they depend on nothing outside that row. Share
// columns are derived once from the loaded numerators and are left alone by
// FTE correction, which never touches total spending.
package derive

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"spendtrend/internal/panel"
)

// chunkSize is the number of rows handed to one worker
const chunkSize = 512

// Result reports how many derived cells came out null
type Result struct {
	Rows int `json:"rows"`
	// NullPerUnit counts per-unit cells left null by a missing numerator or
	// a null denominator
	NullPerUnit map[string]int `json:"null_per_unit"`
}

// Recalculator rebuilds the per-unit columns of a panel
type Recalculator struct {
	fields  []string
	workers int
	logger  *slog.Logger
}

// NewRecalculator creates a recalculator over the given numerator fields.
// With no fields, every numerator of the panel schema is used.
func NewRecalculator(logger *slog.Logger, fields ...string) *Recalculator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(fields) == 0 {
		fields = panel.NumeratorFields()
	}
	return &Recalculator{
		fields:  fields,
		workers: runtime.GOMAXPROCS(0),
		logger:  logger,
	}
}

// Recalculate returns a copy of t where every <field>_per_fte column equals
// field / fte for its row. A null or zero denominator, or a null numerator,
// yields a null cell; non-finite results never leave this stage.
func (r *Recalculator) Recalculate(ctx context.Context, t *panel.Table) (*panel.Table, Result, error) {
	out := t.Clone()
	rows := out.Rows()

	// Each chunk keeps its own null counts; they are merged after Wait.
	nChunks := (len(rows) + chunkSize - 1) / chunkSize
	counts := make([]map[string]int, nChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for c := 0; c < nChunks; c++ {
		lo := c * chunkSize
		hi := min(lo+chunkSize, len(rows))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			counts[c] = r.recalculateRows(rows[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Result{}, fmt.Errorf("recalculate per-unit metrics: %w", err)
	}

	res := Result{Rows: len(rows), NullPerUnit: make(map[string]int)}
	for _, m := range counts {
		for col, n := range m {
			res.NullPerUnit[col] += n
		}
	}

	r.logger.InfoContext(ctx, "per-unit metrics recalculated",
		"rows", res.Rows,
		"fields", len(r.fields),
		"null_cells", res.NullPerUnit,
	)
	return out, res, nil
}

func (r *Recalculator) recalculateRows(rows []panel.Row) map[string]int {
	nulls := make(map[string]int)
	for i := range rows {
		row := &rows[i]
		for _, f := range r.fields {
			col := panel.PerUnit(f)
			v := row.Get(f).Div(row.FTE)
			row.Set(col, v)
			if v.IsNull() {
				nulls[col]++
			}
		}
	}
	return nulls
}

// Shares returns a copy of t with <field>_pct = field / total filled in for
// each share field. Shares are fractions in [0, 1], the same scale as the
// _pct columns of the source panels. Shares supplied by the loader are kept
// as they are.
func Shares(t *panel.Table, fields ...string) *panel.Table {
	if len(fields) == 0 {
		fields = panel.ShareFields()
	}

	out := t.Clone()
	rows := out.Rows()
	for i := range rows {
		row := &rows[i]
		total := row.Get(panel.ColTotal)
		for _, f := range fields {
			col := panel.Share(f)
			if _, supplied := row.Columns[col]; supplied {
				continue
			}
			row.Set(col, row.Get(f).Div(total))
		}
	}
	return out
}
