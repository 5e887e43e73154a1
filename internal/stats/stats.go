// Package stats holds the small numerical kernel shared by the diagnoser and
// the trend engine: location statistics and an ordinary least-squares fit
// with a two-sided Student-t test on the slope.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned when a fit has fewer than two distinct x values
var ErrInsufficientData = errors.New("insufficient data: regression needs at least two distinct points")

// tiny guards the t statistic against division by zero on a perfect fit
const tiny = 1.0e-20

// Mean returns the arithmetic mean. ok is false for an empty input.
func Mean(values []float64) (mean float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// Median returns the middle value, averaging the two middle values for an
// even count. ok is false for an empty input.
func Median(values []float64) (median float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2, true
	}
	return sorted[n/2], true
}

// Fit is the result of a simple linear regression of y on x
type Fit struct {
	N         int
	Slope     float64
	Intercept float64
	R         float64
	RSquared  float64
	StdErr    float64
	// PValue is the two-sided p-value for slope = 0. It is only defined when
	// HasPValue is true, i.e. with at least three points.
	PValue    float64
	HasPValue bool
}

// LinearRegression fits y = Intercept + Slope*x by ordinary least squares.
func LinearRegression(x, y []float64) (Fit, error) {
	if len(x) != len(y) {
		return Fit{}, errors.New("x and y must have the same length")
	}
	if distinct(x) < 2 {
		return Fit{}, ErrInsufficientData
	}

	n := len(x)
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	fit := Fit{N: n, Slope: beta, Intercept: alpha}

	// A constant series has no correlation and no detectable trend.
	if constant(y) {
		fit.Slope = 0
		fit.Intercept = y[0]
		if n > 2 {
			fit.PValue, fit.HasPValue = 1, true
		}
		return fit, nil
	}

	r := math.Max(-1, math.Min(1, stat.Correlation(x, y, nil)))
	fit.R = r
	fit.RSquared = r * r

	df := float64(n - 2)
	if df < 1 {
		return fit, nil
	}

	fit.StdErr = math.Sqrt((1 - fit.RSquared) * stat.Variance(y, nil) / stat.Variance(x, nil) / df)

	t := r * math.Sqrt(df/((1-r+tiny)*(1+r+tiny)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	if math.IsNaN(p) {
		p = 0
	}
	fit.PValue = math.Min(math.Max(p, 0), 1)
	fit.HasPValue = true

	return fit, nil
}

func constant(y []float64) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

func distinct(x []float64) int {
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		seen[v] = struct{}{}
	}
	return len(seen)
}
