// Package diagnosis scans the denominator (FTE) series for implausible
// year-over-year swings and reports their prevalence per year. It never
// modifies the panel and makes no correction decisions.
package diagnosis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"spendtrend/internal/panel"
	"spendtrend/internal/stats"
)

// DefaultSwing flags changes of more than 100% in either direction
const DefaultSwing = 1.0

// YearDiagnosis is the change-rate profile of one year against the previous
type YearDiagnosis struct {
	Year int `json:"year"`
	// AnomalyCount is the number of entities with |change rate| > swing
	AnomalyCount int `json:"anomaly_count"`
	// DefinedCount is the number of entities observed in both years
	DefinedCount int `json:"defined_count"`
	// AnomalyRate is AnomalyCount / DefinedCount, zero when nothing is defined
	AnomalyRate  float64     `json:"anomaly_rate"`
	MeanChange   panel.Value `json:"mean_change"`
	MedianChange panel.Value `json:"median_change"`

	AnomalousEntities []string `json:"anomalous_entities,omitempty"`
}

// Report is the per-year diagnosis over a year range
type Report struct {
	FromYear int             `json:"from_year"`
	ToYear   int             `json:"to_year"`
	Swing    float64         `json:"swing"`
	Years    []YearDiagnosis `json:"years"`
}

// Year returns the diagnosis for year y
func (r Report) Year(y int) (YearDiagnosis, bool) {
	for _, yd := range r.Years {
		if yd.Year == y {
			return yd, true
		}
	}
	return YearDiagnosis{}, false
}

// Alerts returns the years with at least one anomalous entity
func (r Report) Alerts() []YearDiagnosis {
	var out []YearDiagnosis
	for _, yd := range r.Years {
		if yd.AnomalyCount > 0 {
			out = append(out, yd)
		}
	}
	return out
}

// Diagnoser computes change-rate statistics for the FTE series
type Diagnoser struct {
	swing  float64
	logger *slog.Logger
}

// NewDiagnoser creates a diagnoser. A non-positive swing falls back to DefaultSwing.
func NewDiagnoser(swing float64, logger *slog.Logger) *Diagnoser {
	if logger == nil {
		logger = slog.Default()
	}
	if swing <= 0 || math.IsNaN(swing) {
		swing = DefaultSwing
	}
	return &Diagnoser{swing: swing, logger: logger}
}

// Diagnose reports, for each year y in [fromYear, toYear], the change rate
// fte[y]/fte[y-1] - 1 across entities observed with a non-null FTE in both
// years. Years with no defined change rate report zero counts and rate.
func (d *Diagnoser) Diagnose(ctx context.Context, t *panel.Table, fromYear, toYear int) (Report, error) {
	if fromYear > toYear {
		return Report{}, fmt.Errorf("invalid diagnosis range %d-%d", fromYear, toYear)
	}

	report := Report{FromYear: fromYear, ToYear: toYear, Swing: d.swing}
	entities := t.Entities()

	for y := fromYear; y <= toYear; y++ {
		yd := YearDiagnosis{Year: y}
		var changes []float64

		for _, id := range entities {
			prev, okPrev := t.FTE(id, y-1).Get()
			cur, okCur := t.FTE(id, y).Get()
			if !okPrev || !okCur || prev == 0 {
				continue
			}

			change := cur/prev - 1
			changes = append(changes, change)
			if math.Abs(change) > d.swing {
				yd.AnomalyCount++
				yd.AnomalousEntities = append(yd.AnomalousEntities, id)
			}
		}

		yd.DefinedCount = len(changes)
		if yd.DefinedCount > 0 {
			yd.AnomalyRate = float64(yd.AnomalyCount) / float64(yd.DefinedCount)
		}
		if mean, ok := stats.Mean(changes); ok {
			yd.MeanChange = panel.Of(mean)
		}
		if median, ok := stats.Median(changes); ok {
			yd.MedianChange = panel.Of(median)
		}
		sort.Strings(yd.AnomalousEntities)

		d.logger.DebugContext(ctx, "diagnosed year",
			"year", y,
			"anomalies", yd.AnomalyCount,
			"defined", yd.DefinedCount,
			"anomaly_rate", yd.AnomalyRate,
		)
		report.Years = append(report.Years, yd)
	}

	return report, nil
}
