// Package pipeline chains the analysis stages: validate, derive shares,
// diagnose, correct, recalculate per-unit metrics, normalize for inflation,
// re-diagnose the corrected series and fit trends. Every stage returns a new
// table; the input passed to Run is never modified.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"spendtrend/internal/config"
	"spendtrend/internal/correction"
	"spendtrend/internal/derive"
	"spendtrend/internal/diagnosis"
	"spendtrend/internal/inflation"
	"spendtrend/internal/infrastructure"
	"spendtrend/internal/panel"
	"spendtrend/internal/trend"
)

// BreakYearAlert is raised when the break year itself shows anomalous FTE swings
type BreakYearAlert struct {
	Year         int         `json:"year"`
	AnomalyCount int         `json:"anomaly_count"`
	AnomalyRate  float64     `json:"anomaly_rate"`
	MeanChange   panel.Value `json:"mean_change"`
}

// Output collects everything one run produced
type Output struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Panel is the table after the last executed step
	Panel   *panel.Table  `json:"-"`
	Summary panel.Summary `json:"summary"`

	Diagnosis      diagnosis.Report `json:"diagnosis"`
	BreakYearAlert *BreakYearAlert  `json:"break_year_alert,omitempty"`

	Corrections   correction.Report `json:"corrections"`
	Recalculation derive.Result     `json:"recalculation"`
	Inflation     inflation.Result  `json:"inflation"`

	// PostBreakDiagnosis re-runs the diagnoser on the corrected table;
	// PostBreakAlerts lists later years that still show anomalies. They are
	// reported only and never corrected.
	PostBreakDiagnosis diagnosis.Report          `json:"post_break_diagnosis"`
	PostBreakAlerts    []diagnosis.YearDiagnosis `json:"post_break_alerts,omitempty"`

	Trends         trend.Result `json:"trends"`
	CategoryTrends trend.Result `json:"category_trends"`

	Issues []panel.Issue `json:"issues,omitempty"`
	Steps  []*StepState  `json:"steps"`
}

// Pipeline runs the configured stage chain
type Pipeline struct {
	cfg     config.AnalysisConfig
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics

	diagnoser    *diagnosis.Diagnoser
	corrector    *correction.Corrector
	recalculator *derive.Recalculator
	normalizer   *inflation.Normalizer
	engine       *trend.Engine

	overall    []trend.MetricSpec
	byCategory []trend.MetricSpec
}

// New validates the analysis configuration and builds every stage. Any
// configuration problem is returned before a table is touched.
func New(cfg config.AnalysisConfig, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) (*Pipeline, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = infrastructure.WithComponent(logger, "pipeline")

	if metrics == nil {
		m, err := infrastructure.NewPipelineMetrics(nil)
		if err != nil {
			return nil, fmt.Errorf("create pipeline metrics: %w", err)
		}
		metrics = m
	}

	corrector, err := correction.NewCorrector(cfg.BreakYear, cfg.AnomalyThreshold, logger,
		correction.WithLastYear(cfg.EndYear),
		correction.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return nil, err
	}
	normalizer, err := inflation.NewNormalizer(cfg.DeflatorTable(), cfg.BaseYear, logger)
	if err != nil {
		return nil, err
	}
	engine, err := trend.NewEngine(cfg.CutPoints(), logger)
	if err != nil {
		return nil, err
	}
	overall, byCategory, err := cfg.MetricSpecs()
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		diagnoser:    diagnosis.NewDiagnoser(cfg.DiagnosisSwing, logger),
		corrector:    corrector,
		recalculator: derive.NewRecalculator(logger),
		normalizer:   normalizer,
		engine:       engine,
		overall:      overall,
		byCategory:   byCategory,
	}, nil
}

// Steps returns the full analysis chain in execution order
func (p *Pipeline) Steps() []Step {
	return []Step{
		&validateStep{baseStep{"validate", "Validate panel"}, p},
		&sharesStep{baseStep{"shares", "Derive spending shares"}, p},
		&diagnoseStep{baseStep{"diagnose", "Diagnose FTE discontinuities"}, p},
		&correctStep{baseStep{"correct", "Correct FTE series"}, p},
		&recalculateStep{baseStep{"recalculate", "Recalculate per-FTE metrics"}, p},
		&normalizeStep{baseStep{"normalize", "Adjust for inflation"}, p},
		&rediagnoseStep{baseStep{"rediagnose", "Re-diagnose corrected series"}, p},
		&trendStep{baseStep{"trend", "Fit metric trends"}, p},
	}
}

// DiagnosisSteps returns the read-only subset used to inspect a panel
func (p *Pipeline) DiagnosisSteps() []Step {
	return p.Steps()[:3]
}

// Run executes the full chain on t
func (p *Pipeline) Run(ctx context.Context, t *panel.Table) (*Output, error) {
	return p.Execute(ctx, t, p.Steps())
}

// Diagnose validates and diagnoses t without correcting it
func (p *Pipeline) Diagnose(ctx context.Context, t *panel.Table) (*Output, error) {
	return p.Execute(ctx, t, p.DiagnosisSteps())
}

// Execute runs steps in order. The first failing step aborts the run; the
// returned output then holds the step states up to the failure.
func (p *Pipeline) Execute(ctx context.Context, t *panel.Table, steps []Step) (*Output, error) {
	if t == nil {
		return nil, fmt.Errorf("pipeline input table is nil")
	}
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := infrastructure.StartSpan(ctx, "pipeline.run",
		attribute.Int("rows", t.Len()),
		attribute.Int("steps", len(steps)),
	)
	defer span.End()

	out := &Output{
		RunID:     infrastructure.GetTraceID(ctx),
		StartedAt: time.Now(),
		Panel:     t,
	}
	for _, s := range steps {
		out.Steps = append(out.Steps, NewStepState(s.ID(), s.Name()))
	}

	p.logger.InfoContext(ctx, "pipeline started",
		"run_id", out.RunID,
		"rows", t.Len(),
		"steps", len(steps),
	)

	for i, s := range steps {
		if err := p.runStep(ctx, s, out.Steps[i], out); err != nil {
			for _, rest := range out.Steps[i+1:] {
				rest.Skip("previous step failed")
			}
			out.FinishedAt = time.Now()
			p.metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failed")))
			infrastructure.RecordError(ctx, err)
			p.logger.ErrorContext(ctx, "pipeline failed",
				"run_id", out.RunID,
				"step", s.ID(),
				"error", err,
			)
			return out, fmt.Errorf("step %s: %w", s.ID(), err)
		}
	}

	out.FinishedAt = time.Now()
	p.metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	p.logger.InfoContext(ctx, "pipeline completed",
		"run_id", out.RunID,
		"duration", out.FinishedAt.Sub(out.StartedAt),
		"corrected_entities", len(out.Corrections.Corrected),
		"issues", len(out.Issues),
	)
	return out, nil
}

func (p *Pipeline) runStep(ctx context.Context, s Step, state *StepState, out *Output) error {
	if err := ctx.Err(); err != nil {
		state.Fail(err)
		return err
	}

	ctx, span := infrastructure.StartSpan(ctx, "pipeline."+s.ID())
	defer span.End()

	state.Start()
	p.logger.DebugContext(ctx, "step started", "step", s.ID())

	err := s.Execute(ctx, out)
	p.metrics.StageDuration.Record(ctx, state.Duration().Seconds(),
		metric.WithAttributes(attribute.String("stage", s.ID())))
	if err != nil {
		state.Fail(err)
		infrastructure.RecordError(ctx, err)
		return err
	}
	state.Complete("")
	p.logger.DebugContext(ctx, "step completed", "step", s.ID(), "duration", state.Duration())
	return nil
}

func (p *Pipeline) addIssues(ctx context.Context, out *Output, stage string, issues []panel.Issue) {
	if len(issues) == 0 {
		return
	}
	out.Issues = append(out.Issues, issues...)
	p.metrics.RowIssues.Add(ctx, int64(len(issues)), metric.WithAttributes(attribute.String("stage", stage)))
}
