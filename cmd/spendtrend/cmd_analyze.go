package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spendtrend/internal/app"
	"spendtrend/internal/exporter"
	"spendtrend/internal/pipeline"
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	application, err := app.NewApplication(cfg)
	if err != nil {
		return err
	}
	defer application.Stop(cmd.Context())

	report, err := application.Analyze(cmd.Context(), cfg.Paths.Input, exporter.WithCharts(!noCharts))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(w, report.Output)
	}

	if err := exporter.WriteSummary(w, report.Output); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Files written:")
	for _, f := range []string{report.Files.PanelCSV, report.Files.TrendsCSV, report.Files.Workbook, report.Files.SummaryText} {
		if f != "" {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	if n := len(report.Files.Charts); n > 0 {
		fmt.Fprintf(w, "  %d charts in %s\n", n, application.Paths.ChartsDir)
	}
	return nil
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	application, err := app.NewApplication(cfg)
	if err != nil {
		return err
	}
	defer application.Stop(cmd.Context())

	out, err := application.Diagnose(cmd.Context(), cfg.Paths.Input)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	return writeDiagnosis(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDiagnosis(w io.Writer, out *pipeline.Output) error {
	s := out.Summary
	fmt.Fprintf(w, "%d rows, %d entities, %d-%d\n\n", s.Rows, s.Entities, s.MinYear, s.MaxYear)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tANOMALIES\tDEFINED\tRATE\tMEAN CHANGE\tMEDIAN CHANGE")
	for _, yd := range out.Diagnosis.Years {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.1f%%\t%s\t%s\n", yd.Year, yd.AnomalyCount, yd.DefinedCount,
			yd.AnomalyRate*100, yd.MeanChange, yd.MedianChange)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if a := out.BreakYearAlert; a != nil {
		fmt.Fprintf(w, "\nALERT: %d entities changed FTE beyond the swing threshold in break year %d\n", a.AnomalyCount, a.Year)
	}
	return nil
}
