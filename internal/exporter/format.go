package exporter

import (
	"fmt"
	"strconv"

	"spendtrend/internal/panel"
)

// formatValue writes a nullable cell at full precision; null is empty
func formatValue(v panel.Value) string {
	f, ok := v.Get()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatFixed formats a nullable value with the given number of decimals
func formatFixed(v panel.Value, decimals int) string {
	f, ok := v.Get()
	if !ok {
		return "n/a"
	}
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// formatPercent formats a fraction as a percentage
func formatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// formatPValue prints small p-values in scientific notation
func formatPValue(v panel.Value) string {
	p, ok := v.Get()
	if !ok {
		return "n/a"
	}
	if p < 0.0001 {
		return fmt.Sprintf("%.2e", p)
	}
	return fmt.Sprintf("%.4f", p)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
