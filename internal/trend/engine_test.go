package trend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "spendtrend/internal/errors"
	"spendtrend/internal/panel"
)

func row(id string, year int, cat panel.Category, cols map[string]float64) panel.Row {
	r := panel.Row{EntityID: id, Year: year, Category: cat, FTE: panel.Of(10)}
	for k, v := range cols {
		r.Set(k, panel.Of(v))
	}
	return r
}

func newTable(t *testing.T, rows ...panel.Row) *panel.Table {
	t.Helper()
	tbl, err := panel.New(rows)
	require.NoError(t, err)
	return tbl
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultCutPoints(), nil)
	require.NoError(t, err)
	return e
}

func meanSpec(t *testing.T, col string) MetricSpec {
	t.Helper()
	s, err := NewMetricSpec(col, "mean", "")
	require.NoError(t, err)
	return s
}

// TestAnalyze_PerfectLinearSeries tests a series rising by exactly two per year
func TestAnalyze_PerfectLinearSeries(t *testing.T) {
	var rows []panel.Row
	for i, y := range []int{2018, 2019, 2020, 2021, 2022, 2023} {
		rows = append(rows, row("A", y, panel.CategoryPublic, map[string]float64{"m": 10 + 2*float64(i)}))
	}

	res, err := newEngine(t).Analyze(context.Background(), newTable(t, rows...), []MetricSpec{meanSpec(t, "m")}, GroupNone)
	require.NoError(t, err)

	mt, ok := res.Find("m", AllGroup)
	require.True(t, ok)
	assert.Equal(t, StatusOK, mt.Status)
	assert.InDelta(t, 2.0, mt.Slope.Float, 1e-9)
	assert.InDelta(t, 1.0, mt.RSquared.Float, 1e-12)
	assert.Equal(t, TierStrongest, mt.Significance)
	assert.Equal(t, 2018, mt.FirstYear)
	assert.Equal(t, 2023, mt.LastYear)
	assert.InDelta(t, 100.0, mt.PercentChange.Float, 1e-9)
	assert.Len(t, mt.Series, 6)
}

// TestAnalyze_SingleYear tests that one year of data is reported, not fitted
func TestAnalyze_SingleYear(t *testing.T) {
	tbl := newTable(t,
		row("A", 2020, panel.CategoryPublic, map[string]float64{"m": 1}),
		row("B", 2020, panel.CategoryPublic, map[string]float64{"m": 3}),
	)

	res, err := newEngine(t).Analyze(context.Background(), tbl, []MetricSpec{meanSpec(t, "m")}, GroupNone)
	require.NoError(t, err)

	mt, ok := res.Find("m", AllGroup)
	require.True(t, ok)
	assert.Equal(t, StatusInsufficientData, mt.Status)
	assert.NotEmpty(t, mt.Note)
	assert.True(t, mt.Slope.IsNull())
	assert.True(t, mt.PercentChange.IsNull())
	assert.Len(t, res.Insufficient(), 1)
}

// TestAnalyze_TwoYears tests that a two point fit has no p-value
func TestAnalyze_TwoYears(t *testing.T) {
	tbl := newTable(t,
		row("A", 2018, panel.CategoryPublic, map[string]float64{"m": 1}),
		row("A", 2019, panel.CategoryPublic, map[string]float64{"m": 3}),
	)

	res, err := newEngine(t).Analyze(context.Background(), tbl, []MetricSpec{meanSpec(t, "m")}, GroupNone)
	require.NoError(t, err)

	mt, _ := res.Find("m", AllGroup)
	assert.Equal(t, StatusOK, mt.Status)
	assert.InDelta(t, 2.0, mt.Slope.Float, 1e-12)
	assert.True(t, mt.PValue.IsNull())
	assert.Equal(t, TierNotSignificant, mt.Significance)
}

// TestAnalyze_DropsEmptyYears tests that years with only nulls leave the series
func TestAnalyze_DropsEmptyYears(t *testing.T) {
	empty := row("A", 2019, panel.CategoryPublic, nil)
	empty.Set("m", panel.Null())
	tbl := newTable(t,
		row("A", 2018, panel.CategoryPublic, map[string]float64{"m": 1}),
		empty,
		row("A", 2020, panel.CategoryPublic, map[string]float64{"m": 5}),
		row("A", 2021, panel.CategoryPublic, map[string]float64{"m": 7}),
	)

	res, err := newEngine(t).Analyze(context.Background(), tbl, []MetricSpec{meanSpec(t, "m")}, GroupNone)
	require.NoError(t, err)

	mt, _ := res.Find("m", AllGroup)
	require.Len(t, mt.Series, 3)
	_, has2019 := mt.Value(2019)
	assert.False(t, has2019)
}

// TestAnalyze_GroupByCategory tests that categories are never pooled
func TestAnalyze_GroupByCategory(t *testing.T) {
	var rows []panel.Row
	for i, y := range []int{2018, 2019, 2020} {
		rows = append(rows,
			row("pub", y, panel.CategoryPublic, map[string]float64{"m": 100 + float64(i)}),
			row("priv", y, panel.CategoryPrivate, map[string]float64{"m": 50 - 5*float64(i)}),
		)
	}

	res, err := newEngine(t).Analyze(context.Background(), newTable(t, rows...), []MetricSpec{meanSpec(t, "m")}, GroupCategory)
	require.NoError(t, err)
	require.Len(t, res.Trends, 2)

	pub, ok := res.Find("m", "Public")
	require.True(t, ok)
	assert.InDelta(t, 1.0, pub.Slope.Float, 1e-9)

	priv, ok := res.Find("m", "Private")
	require.True(t, ok)
	assert.InDelta(t, -5.0, priv.Slope.Float, 1e-9)
	v, _ := priv.Value(2018)
	assert.Equal(t, 50.0, v)
}

// TestAnalyze_MissingCategory tests that an empty category is reported as insufficient
func TestAnalyze_MissingCategory(t *testing.T) {
	tbl := newTable(t,
		row("pub", 2018, panel.CategoryPublic, map[string]float64{"m": 1}),
		row("pub", 2019, panel.CategoryPublic, map[string]float64{"m": 2}),
		row("pub", 2020, panel.CategoryPublic, map[string]float64{"m": 4}),
	)

	res, err := newEngine(t).Analyze(context.Background(), tbl, []MetricSpec{meanSpec(t, "m")}, GroupCategory)
	require.NoError(t, err)

	pub, _ := res.Find("m", "Public")
	assert.Equal(t, StatusOK, pub.Status)
	priv, _ := res.Find("m", "Private")
	assert.Equal(t, StatusInsufficientData, priv.Status)
}

// TestAnalyze_PercentChangeFromZero tests that a zero base year yields no percent change
func TestAnalyze_PercentChangeFromZero(t *testing.T) {
	tbl := newTable(t,
		row("A", 2018, panel.CategoryPublic, map[string]float64{"m": 0}),
		row("A", 2019, panel.CategoryPublic, map[string]float64{"m": 1}),
		row("A", 2020, panel.CategoryPublic, map[string]float64{"m": 2}),
	)

	res, err := newEngine(t).Analyze(context.Background(), tbl, []MetricSpec{meanSpec(t, "m")}, GroupNone)
	require.NoError(t, err)

	mt, _ := res.Find("m", AllGroup)
	assert.True(t, mt.PercentChange.IsNull())
}

func TestAnalyze_MedianAggregator(t *testing.T) {
	spec, err := NewMetricSpec("m", "median", "Median m")
	require.NoError(t, err)
	tbl := newTable(t,
		row("A", 2018, panel.CategoryPublic, map[string]float64{"m": 1}),
		row("B", 2018, panel.CategoryPublic, map[string]float64{"m": 2}),
		row("C", 2018, panel.CategoryPublic, map[string]float64{"m": 100}),
		row("A", 2019, panel.CategoryPublic, map[string]float64{"m": 3}),
		row("B", 2019, panel.CategoryPublic, map[string]float64{"m": 5}),
	)

	res, err := newEngine(t).Analyze(context.Background(), tbl, []MetricSpec{spec}, GroupNone)
	require.NoError(t, err)

	mt, _ := res.Find("m", AllGroup)
	assert.Equal(t, "Median m", mt.Label)
	assert.Equal(t, "median", mt.Aggregator)
	v18, _ := mt.Value(2018)
	v19, _ := mt.Value(2019)
	assert.Equal(t, 2.0, v18)
	assert.Equal(t, 4.0, v19)
	assert.Equal(t, 3, mt.Series[0].N)
}

func TestAnalyze_Errors(t *testing.T) {
	tbl := newTable(t, row("A", 2018, panel.CategoryPublic, map[string]float64{"m": 1}))
	e := newEngine(t)

	_, err := e.Analyze(context.Background(), tbl, []MetricSpec{{Column: "m"}}, GroupNone)
	assert.Error(t, err)

	_, err = e.Analyze(context.Background(), tbl, []MetricSpec{meanSpec(t, "m")}, GroupBy("state"))
	assert.Error(t, err)
}

func TestLookupAggregator(t *testing.T) {
	a, err := LookupAggregator("mean")
	require.NoError(t, err)
	assert.Equal(t, "mean", a.Name())

	_, err = LookupAggregator("mode")
	assert.Error(t, err)

	_, err = NewMetricSpec("m", "mode", "")
	assert.Error(t, err)
}

func TestCutPoints(t *testing.T) {
	cuts := DefaultCutPoints()
	require.NoError(t, cuts.Validate())

	tests := []struct {
		p    float64
		want Tier
	}{
		{0.0005, TierStrongest},
		{0.001, TierStrong},
		{0.005, TierStrong},
		{0.01, TierWeak},
		{0.049, TierWeak},
		{0.05, TierNotSignificant},
		{0.8, TierNotSignificant},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cuts.Classify(tt.p), "p=%g", tt.p)
	}

	bad := CutPoints{Strongest: 0.05, Strong: 0.01, Weak: 0.001}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))

	_, err = NewEngine(bad, nil)
	assert.Error(t, err)
}
