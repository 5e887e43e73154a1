package config

import (
	"fmt"

	apperrors "spendtrend/internal/errors"
	"spendtrend/internal/inflation"
	"spendtrend/internal/panel"
	"spendtrend/internal/trend"
)

// AnalysisConfig holds every knob of the analysis pipeline
type AnalysisConfig struct {
	StartYear        int     `yaml:"start_year" envconfig:"START_YEAR" default:"2018" validate:"gt=0"`
	EndYear          int     `yaml:"end_year" envconfig:"END_YEAR" default:"2023" validate:"gtefield=StartYear"`
	BreakYear        int     `yaml:"break_year" envconfig:"BREAK_YEAR" default:"2020" validate:"gt=0"`
	AnomalyThreshold float64 `yaml:"anomaly_threshold" envconfig:"ANOMALY_THRESHOLD" default:"2.0" validate:"gt=1"`
	DiagnosisSwing   float64 `yaml:"diagnosis_swing" envconfig:"DIAGNOSIS_SWING" default:"1.0" validate:"gt=0"`
	Workers          int     `yaml:"workers" envconfig:"WORKERS" default:"0" validate:"gte=0"`

	BaseYear  int             `yaml:"base_year" envconfig:"BASE_YEAR" default:"2018" validate:"gt=0"`
	Deflators map[int]float64 `yaml:"deflators" envconfig:"DEFLATORS" default:"2018:1.00,2019:1.02,2020:1.03,2021:1.08,2022:1.16,2023:1.20" validate:"required"`

	Significance SignificanceConfig `yaml:"significance" envconfig:"SIGNIFICANCE"`
	Metrics      []MetricConfig     `yaml:"metrics" ignored:"true" validate:"min=1,dive"`
}

// SignificanceConfig holds the p-value cut points of the tiers
type SignificanceConfig struct {
	Strongest float64 `yaml:"strongest" envconfig:"STRONGEST" default:"0.001"`
	Strong    float64 `yaml:"strong" envconfig:"STRONG" default:"0.01"`
	Weak      float64 `yaml:"weak" envconfig:"WEAK" default:"0.05"`
}

// MetricConfig names one trend metric
type MetricConfig struct {
	Column     string `yaml:"column" json:"column" validate:"required"`
	Aggregator string `yaml:"aggregator" json:"aggregator" validate:"required"`
	Label      string `yaml:"label" json:"label"`
	// ByCategory also runs the metric separately for each category
	ByCategory bool `yaml:"by_category" json:"by_category"`
}

// DefaultDeflatorTable returns the CPI deflators with base year 2018
func DefaultDeflatorTable() map[int]float64 {
	return map[int]float64(inflation.DefaultDeflators())
}

// DefaultMetrics returns the standard metric groups: spending shares by
// mean, nominal and real per-FTE spending by median, and real institutional
// spending by median. Real per-FTE metrics are also split by category.
func DefaultMetrics() []MetricConfig {
	var metrics []MetricConfig
	for _, f := range panel.ShareFields() {
		metrics = append(metrics, MetricConfig{
			Column: panel.Share(f), Aggregator: "mean", Label: fmt.Sprintf("%s share of total (fraction)", f), ByCategory: true,
		})
	}

	fields := []string{panel.ColAdmin, panel.ColInstruction, panel.ColTotal}
	for _, f := range fields {
		metrics = append(metrics, MetricConfig{
			Column: panel.PerUnit(f), Aggregator: "median", Label: fmt.Sprintf("%s per FTE (nominal)", f),
		})
	}
	for _, f := range fields {
		metrics = append(metrics, MetricConfig{
			Column: panel.Real(panel.PerUnit(f)), Aggregator: "median", Label: fmt.Sprintf("%s per FTE (real)", f), ByCategory: true,
		})
	}
	for _, f := range fields {
		metrics = append(metrics, MetricConfig{
			Column: panel.Real(f), Aggregator: "median", Label: fmt.Sprintf("%s (real)", f),
		})
	}
	return metrics
}

// DefaultAnalysis returns the default analysis section
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		StartYear:        2018,
		EndYear:          2023,
		BreakYear:        2020,
		AnomalyThreshold: 2.0,
		DiagnosisSwing:   1.0,
		BaseYear:         2018,
		Deflators:        DefaultDeflatorTable(),
		Significance: SignificanceConfig{
			Strongest: 0.001,
			Strong:    0.01,
			Weak:      0.05,
		},
		Metrics: DefaultMetrics(),
	}
}

// CutPoints converts the significance section
func (a AnalysisConfig) CutPoints() trend.CutPoints {
	return trend.CutPoints{
		Strongest: a.Significance.Strongest,
		Strong:    a.Significance.Strong,
		Weak:      a.Significance.Weak,
	}
}

// DeflatorTable returns a copy of the deflator mapping
func (a AnalysisConfig) DeflatorTable() inflation.Deflators {
	return inflation.Deflators(a.Deflators).Clone()
}

// MetricSpecs resolves the configured metrics. The second slice holds the
// metrics that are also analyzed per category.
func (a AnalysisConfig) MetricSpecs() (overall, byCategory []trend.MetricSpec, err error) {
	for _, m := range a.Metrics {
		spec, err := trend.NewMetricSpec(m.Column, m.Aggregator, m.Label)
		if err != nil {
			return nil, nil, apperrors.NewConfigError("invalid metric", err)
		}
		overall = append(overall, spec)
		if m.ByCategory {
			byCategory = append(byCategory, spec)
		}
	}
	return overall, byCategory, nil
}

// validate checks the rules struct tags cannot express
func (a AnalysisConfig) validate() error {
	if a.BreakYear <= a.StartYear || a.BreakYear > a.EndYear {
		return apperrors.NewConfigError(
			fmt.Sprintf("break year %d must lie in (%d, %d] so a prior year exists", a.BreakYear, a.StartYear, a.EndYear), nil)
	}
	if err := a.DeflatorTable().Validate(a.BaseYear); err != nil {
		return err
	}
	if err := a.CutPoints().Validate(); err != nil {
		return err
	}
	if _, _, err := a.MetricSpecs(); err != nil {
		return err
	}
	return nil
}
