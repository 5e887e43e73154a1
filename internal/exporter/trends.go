package exporter

import (
	"fmt"
	"sort"
	"strconv"

	"spendtrend/internal/trend"
)

var trendFitHeaders = []string{
	"metric", "label", "aggregator", "group", "status", "note",
	"slope", "intercept", "r_squared", "p_value", "significance",
	"first_year", "last_year", "percent_change",
}

// TrendHeaders returns the fit columns followed by one column per year seen
// in any series
func TrendHeaders(results ...trend.Result) ([]string, []int) {
	seen := make(map[int]bool)
	for _, res := range results {
		for _, mt := range res.Trends {
			for _, p := range mt.Series {
				seen[p.Year] = true
			}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)

	headers := append([]string(nil), trendFitHeaders...)
	for _, y := range years {
		headers = append(headers, strconv.Itoa(y))
	}
	return headers, years
}

// TrendRecord renders one metric trend in TrendHeaders order
func TrendRecord(mt trend.MetricTrend, years []int) []string {
	first, last := "", ""
	if mt.Status == trend.StatusOK {
		first, last = strconv.Itoa(mt.FirstYear), strconv.Itoa(mt.LastYear)
	}
	rec := []string{
		mt.Metric, mt.Label, mt.Aggregator, mt.Group, string(mt.Status), mt.Note,
		formatValue(mt.Slope), formatValue(mt.Intercept), formatValue(mt.RSquared),
		formatValue(mt.PValue), string(mt.Significance),
		first, last, formatValue(mt.PercentChange),
	}
	for _, y := range years {
		if v, ok := mt.Value(y); ok {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		} else {
			rec = append(rec, "")
		}
	}
	return rec
}

// WriteTrends writes one row per metric and group with its yearly series
func (w *CSVWriter) WriteTrends(filePath string, results ...trend.Result) error {
	headers, years := TrendHeaders(results...)
	var records [][]string
	for _, res := range results {
		for _, mt := range res.Trends {
			records = append(records, TrendRecord(mt, years))
		}
	}
	if err := w.WriteCSV(filePath, WriteOptions{Headers: headers, Records: records, BOMPrefix: true}); err != nil {
		return fmt.Errorf("write trend summary: %w", err)
	}
	return nil
}
