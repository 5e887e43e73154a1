package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"spendtrend/internal/derive"
	"spendtrend/internal/panel"
	"spendtrend/internal/trend"
)

// validateStep summarizes the panel and annotates rows outside the
// configured year range. Those rows stay in the exported panel but are
// left out of the trends. Structural violations were already rejected when
// the table was built.
type validateStep struct {
	baseStep
	p *Pipeline
}

func (s *validateStep) Execute(ctx context.Context, out *Output) error {
	cfg := s.p.cfg
	if out.Panel.Len() == 0 {
		return fmt.Errorf("panel is empty")
	}

	out.Summary = out.Panel.Summarize()

	_, outside := out.Panel.SplitYearRange(cfg.StartYear, cfg.EndYear)
	issues := make([]panel.Issue, 0, len(outside))
	for _, r := range outside {
		issues = append(issues, panel.Issue{
			EntityID: r.EntityID,
			Year:     r.Year,
			Stage:    s.ID(),
			Reason:   fmt.Sprintf("year outside analysis range %d-%d, excluded from trends", cfg.StartYear, cfg.EndYear),
		})
	}
	s.p.addIssues(ctx, out, s.ID(), issues)

	s.p.logger.InfoContext(ctx, "panel loaded",
		"rows", out.Summary.Rows,
		"entities", out.Summary.Entities,
		"min_year", out.Summary.MinYear,
		"max_year", out.Summary.MaxYear,
		"rows_by_category", out.Summary.RowsByCategory,
		"missing_values", out.Summary.MissingValues,
		"out_of_range_rows", len(issues),
	)
	return nil
}

type sharesStep struct {
	baseStep
	p *Pipeline
}

func (s *sharesStep) Execute(ctx context.Context, out *Output) error {
	out.Panel = derive.Shares(out.Panel)
	return nil
}

// diagnoseStep profiles year-over-year FTE changes on the loaded table and
// raises a warning when the break year itself is anomalous.
type diagnoseStep struct {
	baseStep
	p *Pipeline
}

func (s *diagnoseStep) Execute(ctx context.Context, out *Output) error {
	cfg := s.p.cfg
	report, err := s.p.diagnoser.Diagnose(ctx, out.Panel, cfg.StartYear+1, cfg.EndYear)
	if err != nil {
		return err
	}
	out.Diagnosis = report

	if yd, ok := report.Year(cfg.BreakYear); ok && yd.AnomalyCount > 0 {
		out.BreakYearAlert = &BreakYearAlert{
			Year:         yd.Year,
			AnomalyCount: yd.AnomalyCount,
			AnomalyRate:  yd.AnomalyRate,
			MeanChange:   yd.MeanChange,
		}
		s.p.logger.WarnContext(ctx, "severe FTE anomaly in break year",
			"year", yd.Year,
			"anomalous_entities", yd.AnomalyCount,
			"anomaly_rate", yd.AnomalyRate,
			"mean_change", yd.MeanChange,
		)
	}
	return nil
}

type correctStep struct {
	baseStep
	p *Pipeline
}

func (s *correctStep) Execute(ctx context.Context, out *Output) error {
	corrected, report, err := s.p.corrector.Correct(ctx, out.Panel)
	if err != nil {
		return err
	}
	out.Panel = corrected
	out.Corrections = report
	s.p.metrics.EntitiesCorrected.Add(ctx, int64(len(report.Corrected)))

	// Rows past the correction window still carry the unreliable FTE.
	var issues []panel.Issue
	for _, id := range report.CorrectedIDs() {
		for _, r := range corrected.Rows() {
			if r.EntityID == id && r.Year > report.LastYear {
				issues = append(issues, panel.Issue{
					EntityID: id,
					Year:     r.Year,
					Stage:    s.ID(),
					Reason:   fmt.Sprintf("FTE after %d not corrected for a flagged entity", report.LastYear),
				})
			}
		}
	}
	s.p.addIssues(ctx, out, s.ID(), issues)
	return nil
}

type recalculateStep struct {
	baseStep
	p *Pipeline
}

func (s *recalculateStep) Execute(ctx context.Context, out *Output) error {
	recalculated, res, err := s.p.recalculator.Recalculate(ctx, out.Panel)
	if err != nil {
		return err
	}
	out.Panel = recalculated
	out.Recalculation = res
	return nil
}

type normalizeStep struct {
	baseStep
	p *Pipeline
}

func (s *normalizeStep) Execute(ctx context.Context, out *Output) error {
	normalized, res := s.p.normalizer.Normalize(ctx, out.Panel)
	out.Panel = normalized
	out.Inflation = res
	s.p.addIssues(ctx, out, s.ID(), res.Issues)
	return nil
}

// rediagnoseStep looks for discontinuities after the break year that the
// single-break correction left in place.
type rediagnoseStep struct {
	baseStep
	p *Pipeline
}

func (s *rediagnoseStep) Execute(ctx context.Context, out *Output) error {
	cfg := s.p.cfg
	report, err := s.p.diagnoser.Diagnose(ctx, out.Panel, cfg.StartYear+1, cfg.EndYear)
	if err != nil {
		return err
	}
	out.PostBreakDiagnosis = report

	out.PostBreakAlerts = nil
	for _, yd := range report.Alerts() {
		if yd.Year <= cfg.BreakYear {
			continue
		}
		out.PostBreakAlerts = append(out.PostBreakAlerts, yd)
		s.p.logger.WarnContext(ctx, "FTE discontinuity after break year left uncorrected",
			"year", yd.Year,
			"anomalous_entities", yd.AnomalousEntities,
			"anomaly_rate", yd.AnomalyRate,
		)
	}
	return nil
}

type trendStep struct {
	baseStep
	p *Pipeline
}

func (s *trendStep) Execute(ctx context.Context, out *Output) error {
	cfg := s.p.cfg
	inRange, _ := out.Panel.SplitYearRange(cfg.StartYear, cfg.EndYear)

	overall, err := s.p.engine.Analyze(ctx, inRange, s.p.overall, trend.GroupNone)
	if err != nil {
		return err
	}
	out.Trends = overall

	out.CategoryTrends = trend.Result{GroupBy: trend.GroupCategory}
	if len(s.p.byCategory) > 0 {
		byCategory, err := s.p.engine.Analyze(ctx, inRange, s.p.byCategory, trend.GroupCategory)
		if err != nil {
			return err
		}
		out.CategoryTrends = byCategory
	}

	insufficient := len(out.Trends.Insufficient()) + len(out.CategoryTrends.Insufficient())
	if insufficient > 0 {
		s.p.metrics.MetricsInsufficient.Add(ctx, int64(insufficient),
			metric.WithAttributes(attribute.String("stage", s.ID())))
	}
	return nil
}
