package exporter

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"spendtrend/internal/diagnosis"
	"spendtrend/internal/panel"
	"spendtrend/internal/pipeline"
	"spendtrend/internal/trend"
)

// Workbook sheet names
const (
	SheetPanel       = "Panel"
	SheetDiagnosis   = "Diagnosis"
	SheetCorrections = "Corrections"
	SheetTrends      = "Trends"
	SheetIssues      = "Issues"
)

// WriteWorkbook writes every result of a run into one XLSX file
func WriteWorkbook(filePath string, out *pipeline.Output) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	writers := []struct {
		name  string
		write func(*excelize.File, string, int) error
	}{
		{SheetPanel, func(f *excelize.File, s string, st int) error { return writePanelSheet(f, s, st, out.Panel) }},
		{SheetDiagnosis, func(f *excelize.File, s string, st int) error { return writeDiagnosisSheet(f, s, st, out) }},
		{SheetCorrections, func(f *excelize.File, s string, st int) error { return writeCorrectionsSheet(f, s, st, out) }},
		{SheetTrends, func(f *excelize.File, s string, st int) error { return writeTrendsSheet(f, s, st, out) }},
		{SheetIssues, func(f *excelize.File, s string, st int) error { return writeIssuesSheet(f, s, st, out.Issues) }},
	}
	for _, w := range writers {
		if _, err := f.NewSheet(w.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", w.name, err)
		}
		if err := w.write(f, w.name, header); err != nil {
			return fmt.Errorf("write sheet %s: %w", w.name, err)
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SheetPanel); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("save workbook %s: %w", filePath, err)
	}
	return nil
}

// cellValue converts a nullable value into an excelize cell value
func cellValue(v panel.Value) interface{} {
	if f, ok := v.Get(); ok {
		return f
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// writePanelSheet streams the panel, which is the only large sheet
func writePanelSheet(f *excelize.File, sheet string, style int, t *panel.Table) error {
	if t == nil {
		return nil
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	headers := PanelHeaders(t)
	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = excelize.Cell{StyleID: style, Value: h}
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return err
	}

	labels, columns := t.LabelColumns(), t.Columns()
	for i, r := range t.Rows() {
		original := r.FTE
		if r.FTECorrected {
			original = r.OriginalFTE
		}
		row := []interface{}{r.EntityID, r.Year, string(r.Category), cellValue(r.FTE), cellValue(original), r.FTECorrected}
		for _, l := range labels {
			row = append(row, r.Labels[l])
		}
		for _, c := range columns {
			row = append(row, cellValue(r.Get(c)))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func writeDiagnosisSheet(f *excelize.File, sheet string, style int, out *pipeline.Output) error {
	headers := []string{"pass", "year", "anomaly_count", "defined_count", "anomaly_rate", "mean_change", "median_change", "anomalous_entities"}
	if err := writeHeader(f, sheet, style, headers); err != nil {
		return err
	}

	var rows [][]interface{}
	passes := []struct {
		name   string
		report diagnosis.Report
	}{{"before_correction", out.Diagnosis}, {"after_correction", out.PostBreakDiagnosis}}
	for _, pass := range passes {
		for _, yd := range pass.report.Years {
			rows = append(rows, []interface{}{
				pass.name, yd.Year, yd.AnomalyCount, yd.DefinedCount, yd.AnomalyRate,
				cellValue(yd.MeanChange), cellValue(yd.MedianChange), strings.Join(yd.AnomalousEntities, " "),
			})
		}
	}
	return writeRows(f, sheet, rows)
}

func writeCorrectionsSheet(f *excelize.File, sheet string, style int, out *pipeline.Output) error {
	headers := []string{"entity_id", "ratio", "anchor", "growth_rate", "flat_fallback", "year", "original_fte", "corrected_fte"}
	if err := writeHeader(f, sheet, style, headers); err != nil {
		return err
	}

	var rows [][]interface{}
	for _, c := range out.Corrections.Corrected {
		for _, ch := range c.Changes {
			rows = append(rows, []interface{}{
				c.EntityID, c.Ratio, c.Anchor, c.GrowthRate, c.FlatFallback, ch.Year, cellValue(ch.Original), ch.Corrected,
			})
		}
	}
	return writeRows(f, sheet, rows)
}

func writeTrendsSheet(f *excelize.File, sheet string, style int, out *pipeline.Output) error {
	headers, years := TrendHeaders(out.Trends, out.CategoryTrends)
	if err := writeHeader(f, sheet, style, headers); err != nil {
		return err
	}

	var rows [][]interface{}
	for _, res := range []trend.Result{out.Trends, out.CategoryTrends} {
		for _, mt := range res.Trends {
			row := []interface{}{
				mt.Metric, mt.Label, mt.Aggregator, mt.Group, string(mt.Status), mt.Note,
				cellValue(mt.Slope), cellValue(mt.Intercept), cellValue(mt.RSquared), cellValue(mt.PValue),
				string(mt.Significance), nil, nil, cellValue(mt.PercentChange),
			}
			if mt.Status == trend.StatusOK {
				row[11], row[12] = mt.FirstYear, mt.LastYear
			}
			for _, y := range years {
				if v, ok := mt.Value(y); ok {
					row = append(row, v)
				} else {
					row = append(row, nil)
				}
			}
			rows = append(rows, row)
		}
	}
	return writeRows(f, sheet, rows)
}

func writeIssuesSheet(f *excelize.File, sheet string, style int, issues []panel.Issue) error {
	if err := writeHeader(f, sheet, style, []string{"entity_id", "year", "stage", "reason"}); err != nil {
		return err
	}
	rows := make([][]interface{}, len(issues))
	for i, is := range issues {
		rows[i] = []interface{}{is.EntityID, is.Year, is.Stage, is.Reason}
	}
	return writeRows(f, sheet, rows)
}
