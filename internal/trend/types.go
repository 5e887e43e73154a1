package trend

import (
	"fmt"

	"spendtrend/internal/panel"
)

// GroupBy selects how the panel is split before aggregation
type GroupBy string

const (
	// GroupNone pools every row into one series per metric
	GroupNone GroupBy = ""
	// GroupCategory runs the series independently for each category
	GroupCategory GroupBy = "category"
)

// AllGroup is the group label of ungrouped trends
const AllGroup = "All"

// Status tells whether a trend could be evaluated
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// MetricSpec names a panel column and the aggregator applied to it per year
type MetricSpec struct {
	Column     string
	Aggregator Aggregator
	Label      string
}

// NewMetricSpec resolves an aggregator by name
func NewMetricSpec(column, aggregator, label string) (MetricSpec, error) {
	agg, err := LookupAggregator(aggregator)
	if err != nil {
		return MetricSpec{}, fmt.Errorf("metric %s: %w", column, err)
	}
	if label == "" {
		label = column
	}
	return MetricSpec{Column: column, Aggregator: agg, Label: label}, nil
}

// Point is one aggregated year
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
	// N is the number of non-null observations behind the point
	N int `json:"n"`
}

// MetricTrend is the trend of one metric within one group
type MetricTrend struct {
	Metric     string  `json:"metric"`
	Label      string  `json:"label"`
	Aggregator string  `json:"aggregator"`
	Group      string  `json:"group"`
	Series     []Point `json:"series"`

	Status Status `json:"status"`
	// Note explains an insufficient status or a missing p-value
	Note string `json:"note,omitempty"`

	Slope        panel.Value `json:"slope"`
	Intercept    panel.Value `json:"intercept"`
	RSquared     panel.Value `json:"r_squared"`
	PValue       panel.Value `json:"p_value"`
	Significance Tier        `json:"significance,omitempty"`

	FirstYear     int         `json:"first_year,omitempty"`
	LastYear      int         `json:"last_year,omitempty"`
	PercentChange panel.Value `json:"percent_change"`
}

// Value returns the aggregated value for year
func (m MetricTrend) Value(year int) (float64, bool) {
	for _, p := range m.Series {
		if p.Year == year {
			return p.Value, true
		}
	}
	return 0, false
}

// Result holds every metric trend of one analysis
type Result struct {
	GroupBy GroupBy       `json:"group_by"`
	Trends  []MetricTrend `json:"trends"`
}

// Find returns the trend of metric within group
func (r Result) Find(metric, group string) (MetricTrend, bool) {
	for _, m := range r.Trends {
		if m.Metric == metric && m.Group == group {
			return m, true
		}
	}
	return MetricTrend{}, false
}

// Insufficient returns the trends that could not be evaluated
func (r Result) Insufficient() []MetricTrend {
	var out []MetricTrend
	for _, m := range r.Trends {
		if m.Status == StatusInsufficientData {
			out = append(out, m)
		}
	}
	return out
}
