package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"spendtrend/internal/config"
	"spendtrend/internal/panel"
	"spendtrend/internal/pipeline"
	"spendtrend/internal/trend"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// runOutput analyzes a small panel where entity X quadruples its FTE in 2020
func runOutput(t *testing.T) *pipeline.Output {
	t.Helper()
	xFTE := map[int]float64{2018: 100, 2019: 105, 2020: 420, 2021: 430, 2022: 440, 2023: 450}

	var rows []panel.Row
	for i, y := range []int{2018, 2019, 2020, 2021, 2022, 2023} {
		total := 10000 * (1 + 0.05*float64(i))
		for _, e := range []struct {
			id  string
			cat panel.Category
			fte float64
		}{{"X", panel.CategoryPublic, xFTE[y]}, {"B", panel.CategoryPrivate, 40}} {
			r := panel.Row{EntityID: e.id, Year: y, Category: e.cat, FTE: panel.Of(e.fte)}
			r.Set(panel.ColAdmin, panel.Of(total*0.2))
			r.Set(panel.ColInstruction, panel.Of(total*0.5))
			r.Set(panel.ColResearch, panel.Of(total*0.1))
			r.Set(panel.ColState, panel.Of(total*0.3))
			r.Set(panel.ColTotal, panel.Of(total))
			rows = append(rows, r)
		}
	}
	tbl, err := panel.New(rows)
	require.NoError(t, err)

	p, err := pipeline.New(config.DefaultAnalysis(), testLogger(), nil)
	require.NoError(t, err)
	out, err := p.Run(context.Background(), tbl)
	require.NoError(t, err)
	return out
}

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "out")
	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	return paths
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM), "missing BOM in %s", path)
	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	return records
}

func column(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %s not found in %v", name, header)
	return -1
}

func TestExportAll(t *testing.T) {
	out := runOutput(t)
	paths := testPaths(t)

	files, err := New(paths, testLogger()).ExportAll(context.Background(), out)
	require.NoError(t, err)

	for _, f := range []string{files.PanelCSV, files.TrendsCSV, files.Workbook, files.SummaryText} {
		assert.FileExists(t, f)
	}
	assert.NotEmpty(t, files.Charts)
	assert.FileExists(t, filepath.Join(paths.ChartsDir, "admin_pct.png"))
	assert.FileExists(t, filepath.Join(paths.ChartsDir, "admin_pct_by_category.png"))

	t.Run("panel", func(t *testing.T) {
		records := readCSV(t, files.PanelCSV)
		require.Len(t, records, 13)
		header := records[0]
		assert.Equal(t, []string{"entity_id", "year", "category", "fte", "fte_original", "fte_corrected"}, header[:6])

		corrected := column(t, header, ColFTECorrected)
		original := column(t, header, ColFTEOriginal)
		for _, rec := range records[1:] {
			if rec[0] == "X" && rec[1] == "2020" {
				assert.Equal(t, "true", rec[corrected])
				assert.Equal(t, "420", rec[original])
			}
			if rec[0] == "B" {
				assert.Equal(t, "false", rec[corrected])
			}
		}
	})

	t.Run("trends", func(t *testing.T) {
		records := readCSV(t, files.TrendsCSV)
		require.Len(t, records, 1+len(out.Trends.Trends)+len(out.CategoryTrends.Trends))
		header := records[0]
		assert.Equal(t, "2018", header[len(trendFitHeaders)])
		assert.Equal(t, "2023", header[len(header)-1])
	})

	t.Run("summary", func(t *testing.T) {
		data, err := os.ReadFile(files.SummaryText)
		require.NoError(t, err)
		text := string(data)
		assert.Contains(t, text, "SPENDING TREND ANALYSIS")
		assert.Contains(t, text, "1 corrected")
		assert.Contains(t, text, "ALERT")
	})
}

func TestExportAll_WithoutCharts(t *testing.T) {
	out := runOutput(t)
	paths := testPaths(t)

	files, err := New(paths, testLogger(), WithCharts(false)).ExportAll(context.Background(), out)
	require.NoError(t, err)
	assert.Empty(t, files.Charts)

	entries, err := os.ReadDir(paths.ChartsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportAll_Errors(t *testing.T) {
	paths := testPaths(t)
	exp := New(paths, testLogger(), WithCharts(false))

	_, err := exp.ExportAll(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.ExportAll(ctx, runOutput(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteWorkbook(t *testing.T) {
	out := runOutput(t)
	path := filepath.Join(t.TempDir(), "analysis.xlsx")
	require.NoError(t, WriteWorkbook(path, out))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPanel, SheetDiagnosis, SheetCorrections, SheetTrends, SheetIssues}, f.GetSheetList())

	panelRows, err := f.GetRows(SheetPanel)
	require.NoError(t, err)
	assert.Len(t, panelRows, 13)

	corrections, err := f.GetRows(SheetCorrections)
	require.NoError(t, err)
	// X is rebuilt from 2020 through 2023
	require.Len(t, corrections, 5)
	assert.Equal(t, "X", corrections[1][0])
	assert.Equal(t, "2020", corrections[1][5])

	diag, err := f.GetRows(SheetDiagnosis)
	require.NoError(t, err)
	assert.Len(t, diag, 1+len(out.Diagnosis.Years)+len(out.PostBreakDiagnosis.Years))
}

func TestPanelRecord_Labels(t *testing.T) {
	r := panel.Row{EntityID: "A", Year: 2020, Category: panel.CategoryPublic, FTE: panel.Of(10)}
	r.SetLabel("instnm", "Alpha College")
	r.Set(panel.ColTotal, panel.Of(100))
	other := panel.Row{EntityID: "B", Year: 2020, Category: panel.CategoryPrivate, FTE: panel.Of(5)}
	tbl, err := panel.New([]panel.Row{r, other})
	require.NoError(t, err)

	headers := PanelHeaders(tbl)
	assert.Equal(t, []string{"instnm", "total"}, headers[6:])

	labels, columns := tbl.LabelColumns(), tbl.Columns()
	assert.Equal(t, []string{"A", "2020", "Public", "10", "10", "false", "Alpha College", "100"},
		PanelRecord(tbl.Rows()[0], labels, columns))
	assert.Equal(t, "", PanelRecord(tbl.Rows()[1], labels, columns)[6])
}

func TestTrendRecord(t *testing.T) {
	ok := trend.MetricTrend{
		Metric: "admin_pct", Label: "Admin share", Aggregator: "mean", Group: trend.AllGroup,
		Series:        []trend.Point{{Year: 2018, Value: 10, N: 2}, {Year: 2020, Value: 14, N: 2}},
		Status:        trend.StatusOK,
		Slope:         panel.Of(2),
		Intercept:     panel.Of(-4026),
		RSquared:      panel.Of(1),
		PValue:        panel.Null(),
		Significance:  trend.TierNotSignificant,
		FirstYear:     2018,
		LastYear:      2020,
		PercentChange: panel.Of(40),
	}
	short := trend.MetricTrend{
		Metric: "admin_pct", Label: "Admin share", Aggregator: "mean", Group: "Private",
		Series: []trend.Point{{Year: 2019, Value: 12, N: 1}},
		Status: trend.StatusInsufficientData, Note: "1 year with data",
	}
	res := trend.Result{Trends: []trend.MetricTrend{ok, short}}

	headers, years := TrendHeaders(res)
	assert.Equal(t, []int{2018, 2019, 2020}, years)
	assert.Len(t, headers, len(trendFitHeaders)+3)

	rec := TrendRecord(ok, years)
	assert.Equal(t, "2", rec[6])
	assert.Equal(t, "", rec[9])
	assert.Equal(t, "NS", rec[10])
	assert.Equal(t, "2018", rec[11])
	assert.Equal(t, []string{"10", "", "14"}, rec[len(trendFitHeaders):])

	rec = TrendRecord(short, years)
	assert.Equal(t, "insufficient_data", rec[4])
	assert.Equal(t, "", rec[11])
	assert.Equal(t, "", rec[6])
	assert.Equal(t, []string{"", "12", ""}, rec[len(trendFitHeaders):])
}

func TestWriteSummary_Sections(t *testing.T) {
	out := runOutput(t)
	var buf strings.Builder
	require.NoError(t, WriteSummary(&buf, out))

	text := buf.String()
	for _, section := range []string{"Panel", "FTE diagnosis (before correction)", "FTE correction", "Trends", "Trends by category"} {
		assert.Contains(t, text, section)
	}
	assert.NotContains(t, text, "Issues")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteSummary_WriteError(t *testing.T) {
	err := WriteSummary(failingWriter{}, runOutput(t))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "", formatValue(panel.Null()))
	assert.Equal(t, "0.125", formatValue(panel.Of(0.125)))
	assert.Equal(t, "n/a", formatFixed(panel.Null(), 2))
	assert.Equal(t, "1.50", formatFixed(panel.Of(1.5), 2))
	assert.Equal(t, "12.5%", formatPercent(0.125))
	assert.Equal(t, "1.00e-05", formatPValue(panel.Of(0.00001)))
	assert.Equal(t, "0.0300", formatPValue(panel.Of(0.03)))
}
