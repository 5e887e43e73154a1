// Package trend aggregates panel metrics per year, fits a linear trend
// against year and classifies the significance of the slope.
package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"spendtrend/internal/panel"
	"spendtrend/internal/stats"
)

// Engine runs the per-year aggregation and regression pipeline
type Engine struct {
	cuts   CutPoints
	logger *slog.Logger
}

// NewEngine creates an engine with validated cut points
func NewEngine(cuts CutPoints, logger *slog.Logger) (*Engine, error) {
	if err := cuts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cuts: cuts, logger: logger}, nil
}

// Analyze computes one MetricTrend per metric and group. With
// GroupCategory the pipeline runs independently for each category; rows are
// never pooled across categories. Metrics or groups that cannot be evaluated
// are reported with StatusInsufficientData while the others proceed.
func (e *Engine) Analyze(ctx context.Context, t *panel.Table, specs []MetricSpec, groupBy GroupBy) (Result, error) {
	for _, s := range specs {
		if s.Column == "" || s.Aggregator == nil {
			return Result{}, fmt.Errorf("invalid metric spec %+v: column and aggregator are required", s)
		}
	}

	groups, err := e.split(t, groupBy)
	if err != nil {
		return Result{}, err
	}

	res := Result{GroupBy: groupBy}
	for _, g := range groups {
		for _, spec := range specs {
			mt := e.evaluate(spec, g.name, g.rows)
			if mt.Status == StatusInsufficientData {
				e.logger.WarnContext(ctx, "trend not evaluated",
					"metric", mt.Metric,
					"group", mt.Group,
					"reason", mt.Note,
				)
			}
			res.Trends = append(res.Trends, mt)
		}
	}

	e.logger.InfoContext(ctx, "trend analysis completed",
		"group_by", string(groupBy),
		"metrics", len(specs),
		"trends", len(res.Trends),
		"insufficient", len(res.Insufficient()),
	)
	return res, nil
}

type group struct {
	name string
	rows []panel.Row
}

func (e *Engine) split(t *panel.Table, groupBy GroupBy) ([]group, error) {
	switch groupBy {
	case GroupNone:
		return []group{{name: AllGroup, rows: t.Rows()}}, nil
	case GroupCategory:
		byCat := make(map[panel.Category][]panel.Row)
		for _, r := range t.Rows() {
			byCat[r.Category] = append(byCat[r.Category], r)
		}
		groups := make([]group, 0, len(panel.Categories()))
		for _, c := range panel.Categories() {
			groups = append(groups, group{name: string(c), rows: byCat[c]})
		}
		return groups, nil
	default:
		return nil, fmt.Errorf("unsupported grouping %q", groupBy)
	}
}

// evaluate aggregates one metric per year and fits the trend
func (e *Engine) evaluate(spec MetricSpec, groupName string, rows []panel.Row) MetricTrend {
	mt := MetricTrend{
		Metric:     spec.Column,
		Label:      spec.Label,
		Aggregator: spec.Aggregator.Name(),
		Group:      groupName,
		Series:     aggregate(spec, rows),
	}

	x := make([]float64, len(mt.Series))
	y := make([]float64, len(mt.Series))
	for i, p := range mt.Series {
		x[i] = float64(p.Year)
		y[i] = p.Value
	}

	fit, err := stats.LinearRegression(x, y)
	if errors.Is(err, stats.ErrInsufficientData) {
		mt.Status = StatusInsufficientData
		mt.Note = fmt.Sprintf("%d year(s) with data; at least 2 are required", len(mt.Series))
		return mt
	}
	if err != nil {
		mt.Status = StatusInsufficientData
		mt.Note = err.Error()
		return mt
	}

	mt.Status = StatusOK
	mt.Slope = panel.Of(fit.Slope)
	mt.Intercept = panel.Of(fit.Intercept)
	mt.RSquared = panel.Of(fit.RSquared)
	if fit.HasPValue {
		mt.PValue = panel.Of(fit.PValue)
		mt.Significance = e.cuts.Classify(fit.PValue)
	} else {
		mt.Significance = TierNotSignificant
		mt.Note = "p-value requires at least 3 years"
	}

	first, last := mt.Series[0], mt.Series[len(mt.Series)-1]
	mt.FirstYear, mt.LastYear = first.Year, last.Year
	if first.Value != 0 {
		mt.PercentChange = panel.Of((last.Value - first.Value) / first.Value * 100)
	}
	return mt
}

// aggregate builds the year series; years without observations are dropped
func aggregate(spec MetricSpec, rows []panel.Row) []Point {
	byYear := make(map[int][]float64)
	for _, r := range rows {
		if v, ok := r.Get(spec.Column).Get(); ok {
			byYear[r.Year] = append(byYear[r.Year], v)
		}
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	series := make([]Point, 0, len(years))
	for _, y := range years {
		v, ok := spec.Aggregator.Aggregate(byYear[y])
		if !ok {
			continue
		}
		if p := panel.Of(v); p.Valid {
			series = append(series, Point{Year: y, Value: v, N: len(byYear[y])})
		}
	}
	return series
}
