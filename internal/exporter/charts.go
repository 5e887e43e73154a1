package exporter

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"spendtrend/internal/trend"
)

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
)

var (
	seriesColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	fitColor    = color.RGBA{R: 139, G: 0, B: 0, A: 255}
)

// RenderCharts draws one PNG per metric into dir. Ungrouped results get the
// observed series with its fitted line; grouped results get one line per
// group. Metrics without any observed year are skipped.
func RenderCharts(dir string, results ...trend.Result) ([]string, error) {
	var files []string
	for _, res := range results {
		switch res.GroupBy {
		case trend.GroupNone:
			for _, mt := range res.Trends {
				if len(mt.Series) == 0 {
					continue
				}
				path := filepath.Join(dir, mt.Metric+".png")
				if err := renderTrend(path, mt); err != nil {
					return files, fmt.Errorf("render %s: %w", mt.Metric, err)
				}
				files = append(files, path)
			}
		default:
			for _, metric := range metricOrder(res) {
				groups := groupsOf(res, metric)
				if len(groups) == 0 {
					continue
				}
				path := filepath.Join(dir, metric+"_by_"+string(res.GroupBy)+".png")
				if err := renderGroups(path, groups); err != nil {
					return files, fmt.Errorf("render %s by %s: %w", metric, res.GroupBy, err)
				}
				files = append(files, path)
			}
		}
	}
	return files, nil
}

func newChart(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TickerFunc(yearTicks)
	p.Add(plotter.NewGrid())
	return p
}

func seriesXYs(series []trend.Point) plotter.XYs {
	xys := make(plotter.XYs, len(series))
	for i, pt := range series {
		xys[i].X = float64(pt.Year)
		xys[i].Y = pt.Value
	}
	return xys
}

func renderTrend(path string, mt trend.MetricTrend) error {
	title := mt.Label
	if mt.Status == trend.StatusOK {
		title = fmt.Sprintf("%s (%s)", mt.Label, mt.Significance)
	}
	p := newChart(title, mt.Aggregator)

	line, points, err := plotter.NewLinePoints(seriesXYs(mt.Series))
	if err != nil {
		return err
	}
	line.Color = seriesColor
	line.Width = vg.Points(2)
	points.Color = seriesColor
	points.Shape = draw.CircleGlyph{}
	p.Add(line, points)
	p.Legend.Add("observed", line, points)

	slope, okSlope := mt.Slope.Get()
	intercept, okIntercept := mt.Intercept.Get()
	if okSlope && okIntercept {
		fit := plotter.NewFunction(func(x float64) float64 { return intercept + slope*x })
		fit.Color = fitColor
		fit.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(fit)
		p.Legend.Add("fit", fit)
	}
	p.Legend.Top = true

	return p.Save(chartWidth, chartHeight, path)
}

func renderGroups(path string, groups []trend.MetricTrend) error {
	p := newChart(groups[0].Label+" by group", groups[0].Aggregator)

	var lines []interface{}
	for _, mt := range groups {
		lines = append(lines, mt.Group, seriesXYs(mt.Series))
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return err
	}
	p.Legend.Top = true

	return p.Save(chartWidth, chartHeight, path)
}

// metricOrder returns each metric once in first-seen order
func metricOrder(res trend.Result) []string {
	seen := make(map[string]bool)
	var out []string
	for _, mt := range res.Trends {
		if !seen[mt.Metric] {
			seen[mt.Metric] = true
			out = append(out, mt.Metric)
		}
	}
	return out
}

func groupsOf(res trend.Result, metric string) []trend.MetricTrend {
	var out []trend.MetricTrend
	for _, mt := range res.Trends {
		if mt.Metric == metric && len(mt.Series) > 0 {
			out = append(out, mt)
		}
	}
	return out
}

// yearTicks places a labeled tick on every whole year
func yearTicks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for y := int(min); float64(y) <= max; y++ {
		if float64(y) < min {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: float64(y), Label: fmt.Sprintf("%d", y)})
	}
	return ticks
}
