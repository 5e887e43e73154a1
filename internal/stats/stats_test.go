package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		ok     bool
	}{
		{"empty", nil, 0, false},
		{"single", []float64{4}, 4, true},
		{"odd", []float64{9, 1, 5}, 5, true},
		{"even", []float64{4, 1, 3, 2}, 2.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.values)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	t.Run("input is not reordered", func(t *testing.T) {
		values := []float64{3, 1, 2}
		_, _ = Median(values)
		assert.Equal(t, []float64{3, 1, 2}, values)
	})
}

func TestMean(t *testing.T) {
	_, ok := Mean(nil)
	assert.False(t, ok)

	m, ok := Mean([]float64{1, 2, 3, 6})
	assert.True(t, ok)
	assert.InDelta(t, 3.0, m, 1e-12)
}

func TestLinearRegression(t *testing.T) {
	t.Run("perfectly linear series", func(t *testing.T) {
		x := []float64{2018, 2019, 2020, 2021, 2022, 2023}
		y := []float64{10, 12, 14, 16, 18, 20}

		fit, err := LinearRegression(x, y)
		require.NoError(t, err)
		assert.Equal(t, 6, fit.N)
		assert.InDelta(t, 2.0, fit.Slope, 1e-9)
		assert.InDelta(t, 1.0, fit.RSquared, 1e-12)
		require.True(t, fit.HasPValue)
		assert.Less(t, fit.PValue, 0.001)
	})

	t.Run("noisy series matches reference values", func(t *testing.T) {
		// Reference: scipy.stats.linregress([1,2,3,4,5], [2,4,5,4,5])
		// slope=0.6, intercept=2.2, r=0.7745966692, p=0.1240270
		x := []float64{1, 2, 3, 4, 5}
		y := []float64{2, 4, 5, 4, 5}

		fit, err := LinearRegression(x, y)
		require.NoError(t, err)
		assert.InDelta(t, 0.6, fit.Slope, 1e-9)
		assert.InDelta(t, 2.2, fit.Intercept, 1e-9)
		assert.InDelta(t, 0.6, fit.RSquared, 1e-9)
		require.True(t, fit.HasPValue)
		assert.InDelta(t, 0.1240270, fit.PValue, 1e-5)
	})

	t.Run("slope standard error and t-test", func(t *testing.T) {
		// sxy=15.5, sxx=syy=17.5, t=3.8158 with 4 degrees of freedom
		x := []float64{1, 2, 3, 4, 5, 6}
		y := []float64{1, 3, 2, 5, 4, 6}

		fit, err := LinearRegression(x, y)
		require.NoError(t, err)
		assert.InDelta(t, 15.5/17.5, fit.Slope, 1e-12)
		assert.InDelta(t, 15.5/17.5, fit.R, 1e-12)
		assert.InDelta(t, 0.232116, fit.StdErr, 1e-6)
		require.True(t, fit.HasPValue)
		assert.InDelta(t, 0.018845, fit.PValue, 1e-5)
	})

	t.Run("constant series", func(t *testing.T) {
		fit, err := LinearRegression([]float64{1, 2, 3}, []float64{5, 5, 5})
		require.NoError(t, err)
		assert.Equal(t, 0.0, fit.Slope)
		assert.Equal(t, 0.0, fit.RSquared)
		assert.True(t, fit.HasPValue)
		assert.Equal(t, 1.0, fit.PValue)
	})

	t.Run("two points have no p-value", func(t *testing.T) {
		fit, err := LinearRegression([]float64{2018, 2023}, []float64{1, 6})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, fit.Slope, 1e-12)
		assert.False(t, fit.HasPValue)
	})

	t.Run("insufficient data", func(t *testing.T) {
		_, err := LinearRegression([]float64{2020}, []float64{1})
		assert.ErrorIs(t, err, ErrInsufficientData)

		_, err = LinearRegression([]float64{2020, 2020}, []float64{1, 2})
		assert.ErrorIs(t, err, ErrInsufficientData)

		_, err = LinearRegression(nil, nil)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}
