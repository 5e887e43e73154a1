package exporter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"spendtrend/internal/panel"
	"spendtrend/internal/pipeline"
	"spendtrend/internal/trend"
)

const rule = "============================================================"

// WriteSummary writes the human-readable analysis report
func WriteSummary(w io.Writer, out *pipeline.Output) error {
	rw := &reportWriter{w: w}

	rw.title("SPENDING TREND ANALYSIS")
	rw.line("Run:      %s", out.RunID)
	rw.line("Started:  %s", out.StartedAt.Format("2006-01-02 15:04:05"))
	if !out.FinishedAt.IsZero() {
		rw.line("Duration: %s", out.FinishedAt.Sub(out.StartedAt).Round(time.Millisecond))
	}

	rw.section("Panel")
	s := out.Summary
	rw.line("Rows: %d  Entities: %d  Years: %d-%d", s.Rows, s.Entities, s.MinYear, s.MaxYear)
	for _, cat := range panel.Categories() {
		if n := s.RowsByCategory[cat]; n > 0 {
			rw.line("  %-8s %d rows", cat, n)
		}
	}

	rw.section("FTE diagnosis (before correction)")
	rw.table([]string{"Year", "Anomalies", "Defined", "Rate", "Mean chg", "Median chg"}, func(tw io.Writer) {
		for _, yd := range out.Diagnosis.Years {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n", yd.Year, yd.AnomalyCount, yd.DefinedCount,
				formatPercent(yd.AnomalyRate), formatFixed(yd.MeanChange, 3), formatFixed(yd.MedianChange, 3))
		}
	})
	if a := out.BreakYearAlert; a != nil {
		rw.line("ALERT: %d entities (%s) changed FTE by more than the swing threshold in %d",
			a.AnomalyCount, formatPercent(a.AnomalyRate), a.Year)
	}

	rw.section("FTE correction")
	c := out.Corrections
	rw.line("Break year %d, threshold %.2f, %d candidates, %d corrected", c.BreakYear, c.Threshold, c.Candidates, len(c.Corrected))
	for _, ec := range c.Corrected {
		fallback := ""
		if ec.FlatFallback {
			fallback = " (flat)"
		}
		rw.line("  %-12s ratio %.2f  anchor %.2f  growth %s%s", ec.EntityID, ec.Ratio, ec.Anchor, formatPercent(ec.GrowthRate), fallback)
	}
	if len(c.AlreadyCorrected) > 0 {
		rw.line("Skipped (already corrected): %s", strings.Join(c.AlreadyCorrected, ", "))
	}
	if len(out.PostBreakAlerts) > 0 {
		rw.line("Later discontinuities (reported, not corrected):")
		for _, yd := range out.PostBreakAlerts {
			rw.line("  %d: %s", yd.Year, strings.Join(yd.AnomalousEntities, ", "))
		}
	}

	rw.section("Trends")
	rw.trends(out.Trends)
	if len(out.CategoryTrends.Trends) > 0 {
		rw.section("Trends by category")
		rw.trends(out.CategoryTrends)
	}

	if len(out.Issues) > 0 {
		rw.section("Issues")
		rw.line("%d rows annotated", len(out.Issues))
		for _, is := range out.Issues {
			rw.line("  [%s] %s@%d: %s", is.Stage, is.EntityID, is.Year, is.Reason)
		}
	}

	rw.line("")
	rw.line("Significance: *** p<0.001, ** p<0.01, * p<0.05, NS not significant")
	return rw.err
}

// reportWriter keeps the first write error so sections stay linear
type reportWriter struct {
	w   io.Writer
	err error
}

func (rw *reportWriter) line(format string, args ...interface{}) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format+"\n", args...)
}

func (rw *reportWriter) title(s string) {
	rw.line(rule)
	rw.line("%s", s)
	rw.line(rule)
}

func (rw *reportWriter) section(s string) {
	rw.line("")
	rw.line("%s", s)
	rw.line("%s", strings.Repeat("-", len(s)))
}

func (rw *reportWriter) table(headers []string, body func(io.Writer)) {
	if rw.err != nil {
		return
	}
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(headers, "\t")+"\t")
	body(tw)
	rw.err = tw.Flush()
}

func (rw *reportWriter) trends(res trend.Result) {
	rw.table([]string{"Metric", "Group", "Slope", "R2", "p", "Sig", "Change"}, func(tw io.Writer) {
		for _, mt := range res.Trends {
			if mt.Status != trend.StatusOK {
				fmt.Fprintf(tw, "%s\t%s\t%s\t\t\t\t\n", mt.Label, mt.Group, mt.Status)
				continue
			}
			change := "n/a"
			if pc, ok := mt.PercentChange.Get(); ok {
				change = fmt.Sprintf("%+.1f%%", pc)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", mt.Label, mt.Group,
				formatFixed(mt.Slope, 4), formatFixed(mt.RSquared, 3), formatPValue(mt.PValue), mt.Significance, change)
		}
	})
}
