// Package correction repairs the FTE series of entities whose break-year
// observation jumps implausibly against the prior year. Every year from the
// break year onward is rebuilt from the entity's own pre-break trajectory.
package correction

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "spendtrend/internal/errors"
	"spendtrend/internal/panel"
)

// DefaultThreshold flags entities whose break-year FTE more than doubles
const DefaultThreshold = 2.0

// YearChange records one rewritten denominator
type YearChange struct {
	Year      int         `json:"year"`
	Original  panel.Value `json:"original"`
	Corrected float64     `json:"corrected"`
}

// EntityCorrection describes how one flagged entity was rebuilt
type EntityCorrection struct {
	EntityID string `json:"entity_id"`
	// Ratio is fte[break] / fte[break-1], the value compared to the threshold
	Ratio float64 `json:"ratio"`
	// Anchor is fte[break-1], the last trusted observation
	Anchor     float64 `json:"anchor"`
	GrowthRate float64 `json:"growth_rate"`
	// FlatFallback is set when no usable pre-break pair existed and g = 0
	FlatFallback bool         `json:"flat_fallback"`
	Changes      []YearChange `json:"changes"`
}

// Report summarizes a correction run
type Report struct {
	BreakYear int     `json:"break_year"`
	Threshold float64 `json:"threshold"`
	LastYear  int     `json:"last_year"`
	// Candidates counts entities with both break-year and prior-year FTE
	Candidates int                `json:"candidates"`
	Corrected  []EntityCorrection `json:"corrected"`
	// AlreadyCorrected lists flagged entities skipped because their
	// break-year row was rebuilt by an earlier run
	AlreadyCorrected []string `json:"already_corrected,omitempty"`
}

// CorrectedIDs returns the ids of the entities rebuilt in this run
func (r Report) CorrectedIDs() []string {
	ids := make([]string, len(r.Corrected))
	for i, c := range r.Corrected {
		ids[i] = c.EntityID
	}
	return ids
}

// Corrector rebuilds the FTE series of flagged entities
type Corrector struct {
	breakYear int
	threshold float64
	lastYear  int
	workers   int
	logger    *slog.Logger
}

// Option configures a Corrector
type Option func(*Corrector)

// WithLastYear bounds the rebuilt years. By default the last year present in
// the table is used.
func WithLastYear(year int) Option {
	return func(c *Corrector) { c.lastYear = year }
}

// WithWorkers sets the number of entities extrapolated concurrently
func WithWorkers(n int) Option {
	return func(c *Corrector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewCorrector creates a corrector. A threshold at or below 1.0 would treat
// any growth as a defect and is rejected as a configuration error.
func NewCorrector(breakYear int, threshold float64, logger *slog.Logger, opts ...Option) (*Corrector, error) {
	if threshold <= 1.0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, apperrors.NewConfigError(fmt.Sprintf("anomaly threshold must be greater than 1.0, got %g", threshold), nil)
	}
	if breakYear <= 0 {
		return nil, apperrors.NewConfigError(fmt.Sprintf("invalid break year %d", breakYear), nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Corrector{
		breakYear: breakYear,
		threshold: threshold,
		workers:   runtime.GOMAXPROCS(0),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Correct returns a new table in which every flagged entity's FTE for
// break year .. last year is replaced by
//
//	fte[break-1] * (1+g)^(y - (break-1))
//
// where g is the entity's growth between the two years before the break, or
// zero when that pair is unavailable. The input table is not modified.
// Only existing rows are rewritten; missing years are never imputed.
func (c *Corrector) Correct(ctx context.Context, t *panel.Table) (*panel.Table, Report, error) {
	start := time.Now()

	report := Report{
		BreakYear: c.breakYear,
		Threshold: c.threshold,
		LastYear:  c.lastYear,
	}
	if report.LastYear == 0 {
		_, last, ok := t.YearBounds()
		if !ok {
			return t.Clone(), report, nil
		}
		report.LastYear = last
	}

	flagged := c.flag(t, &report)

	// Plans are computed concurrently into a side slice and applied in one
	// pass afterwards so no worker ever writes to the table.
	plans := make([]EntityCorrection, len(flagged))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, id := range flagged {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plans[i] = c.plan(t, id, report.LastYear)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, fmt.Errorf("extrapolate flagged entities: %w", err)
	}

	out := t.Clone()
	rows := out.Rows()
	for _, p := range plans {
		for _, ch := range p.Changes {
			idx, ok := out.IndexOf(panel.Key{EntityID: p.EntityID, Year: ch.Year})
			if !ok {
				continue
			}
			row := &rows[idx]
			if !row.FTECorrected {
				row.OriginalFTE = row.FTE
			}
			row.FTE = panel.Of(ch.Corrected)
			row.FTECorrected = true
		}

		c.logger.DebugContext(ctx, "corrected entity FTE",
			"entity_id", p.EntityID,
			"ratio", p.Ratio,
			"growth_rate", p.GrowthRate,
			"flat_fallback", p.FlatFallback,
			"years", len(p.Changes),
		)
	}
	report.Corrected = plans

	c.logger.InfoContext(ctx, "FTE correction completed",
		"break_year", c.breakYear,
		"threshold", c.threshold,
		"candidates", report.Candidates,
		"corrected", len(report.Corrected),
		"already_corrected", len(report.AlreadyCorrected),
		"duration", time.Since(start),
	)

	return out, report, nil
}

// flag returns the entities whose break-year ratio exceeds the threshold
func (c *Corrector) flag(t *panel.Table, report *Report) []string {
	var flagged []string
	for _, id := range t.Entities() {
		prior, okPrior := t.FTE(id, c.breakYear-1).Get()
		cur, okCur := t.FTE(id, c.breakYear).Get()
		if !okPrior || !okCur || prior == 0 {
			continue
		}
		report.Candidates++

		if cur/prior <= c.threshold {
			continue
		}

		if row, _ := t.Lookup(id, c.breakYear); row.FTECorrected {
			report.AlreadyCorrected = append(report.AlreadyCorrected, id)
			continue
		}
		flagged = append(flagged, id)
	}
	return flagged
}

// plan computes the replacement series for one flagged entity
func (c *Corrector) plan(t *panel.Table, id string, lastYear int) EntityCorrection {
	anchorYear := c.breakYear - 1
	anchor, _ := t.FTE(id, anchorYear).Get()
	breakVal, _ := t.FTE(id, c.breakYear).Get()

	p := EntityCorrection{
		EntityID: id,
		Ratio:    breakVal / anchor,
		Anchor:   anchor,
	}

	if base, ok := t.FTE(id, c.breakYear-2).Get(); ok && base != 0 {
		p.GrowthRate = (anchor - base) / base
	} else {
		p.FlatFallback = true
	}

	for y := c.breakYear; y <= lastYear; y++ {
		row, ok := t.Lookup(id, y)
		if !ok {
			continue
		}
		original := row.FTE
		if row.FTECorrected {
			original = row.OriginalFTE
		}
		p.Changes = append(p.Changes, YearChange{
			Year:      y,
			Original:  original,
			Corrected: anchor * math.Pow(1+p.GrowthRate, float64(y-anchorYear)),
		})
	}
	return p
}
