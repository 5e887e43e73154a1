// Package exporter writes the results of an analysis run.
//
// It contains four components:
//
// CSVWriter: CSV output with a UTF-8 BOM for Excel, used for the corrected
// panel and the trend summary.
//
// WriteWorkbook: one XLSX file with Panel, Diagnosis, Corrections, Trends
// and Issues sheets.
//
// WriteSummary: a plain-text report of the run.
//
// RenderCharts: PNG line charts of every metric, one line per group.
//
// Exporter ties them together for the command line:
//
//	exp := exporter.New(paths, logger)
//	files, err := exp.ExportAll(ctx, out)
package exporter
