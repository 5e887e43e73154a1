package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendtrend/internal/config"
	"spendtrend/internal/pipeline"
)

// Files lists what ExportAll wrote
type Files struct {
	PanelCSV    string   `json:"panel_csv,omitempty"`
	TrendsCSV   string   `json:"trends_csv"`
	Workbook    string   `json:"workbook"`
	SummaryText string   `json:"summary_text"`
	Charts      []string `json:"charts,omitempty"`
}

// Exporter writes every artifact of a run below one output directory
type Exporter struct {
	paths  *config.Paths
	csv    *CSVWriter
	charts bool
	logger *slog.Logger
}

// Option configures an Exporter
type Option func(*Exporter)

// WithCharts enables or disables chart rendering
func WithCharts(enabled bool) Option {
	return func(e *Exporter) { e.charts = enabled }
}

// New creates an exporter writing to paths
func New(paths *config.Paths, logger *slog.Logger, opts ...Option) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Exporter{
		paths:  paths,
		csv:    NewCSVWriter(logger),
		charts: true,
		logger: logger.With(slog.String("component", "exporter")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportAll writes the corrected panel, trend summary, workbook, text
// report and charts. The artifacts are independent and written concurrently;
// the first failure cancels the rest.
func (e *Exporter) ExportAll(ctx context.Context, out *pipeline.Output) (Files, error) {
	if out == nil {
		return Files{}, fmt.Errorf("no output to export")
	}
	if err := e.paths.EnsureDirectories(); err != nil {
		return Files{}, err
	}
	start := time.Now()

	files := Files{
		TrendsCSV:   e.paths.TrendsCSV,
		Workbook:    e.paths.Workbook,
		SummaryText: e.paths.SummaryText,
	}
	if out.Panel != nil {
		files.PanelCSV = e.paths.PanelCSV
	}

	g, gctx := errgroup.WithContext(ctx)
	run := func(name string, fn func() error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(); err != nil {
				return fmt.Errorf("export %s: %w", name, err)
			}
			return nil
		})
	}

	if out.Panel != nil {
		run("panel", func() error { return e.csv.WritePanel(e.paths.PanelCSV, out.Panel) })
	}
	run("trends", func() error { return e.csv.WriteTrends(e.paths.TrendsCSV, out.Trends, out.CategoryTrends) })
	run("workbook", func() error { return WriteWorkbook(e.paths.Workbook, out) })
	run("summary", func() error { return e.writeSummaryFile(out) })
	if e.charts {
		run("charts", func() error {
			charts, err := RenderCharts(e.paths.ChartsDir, out.Trends, out.CategoryTrends)
			files.Charts = charts
			return err
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.ErrorContext(ctx, "export failed", slog.String("error", err.Error()))
		return files, err
	}

	e.logger.InfoContext(ctx, "export completed",
		slog.String("output_dir", e.paths.OutputDir),
		slog.Int("charts", len(files.Charts)),
		slog.Duration("duration", time.Since(start)))
	return files, nil
}

func (e *Exporter) writeSummaryFile(out *pipeline.Output) error {
	f, err := os.Create(e.paths.SummaryText)
	if err != nil {
		return err
	}
	if err := WriteSummary(f, out); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
