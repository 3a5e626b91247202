package rescale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mathext"
)

func ptr(v float64) *float64 { return &v }

func TestLinear(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		values []float64
		opts   LinearOptions
		want   []float64
	}{
		{"defaults", []float64{0, 5, 10}, LinearOptions{}, []float64{1, 5, 9}},
		{"reversed", []float64{0, 5, 10}, LinearOptions{Start: ptr(10), End: ptr(0)}, []float64{9, 5, 1}},
		{"clamped", []float64{0, 5, 10}, LinearOptions{Start: ptr(2), End: ptr(8)}, []float64{1, 5, 9}},
		{"reversed clamped", []float64{0, 5, 10}, LinearOptions{Start: ptr(8), End: ptr(2)}, []float64{9, 5, 1}},
		{"custom range", []float64{0, 5, 10}, LinearOptions{Min: 0, Max: 100}, []float64{0, 50, 100}},
		{"nan kept", []float64{0, nan, 10}, LinearOptions{}, []float64{1, nan, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Linear(tt.values, tt.opts)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				if math.IsNaN(tt.want[i]) {
					assert.True(t, math.IsNaN(got[i]))
					continue
				}
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestLinear_Errors(t *testing.T) {
	_, err := Linear([]float64{3, 3}, LinearOptions{})
	require.Error(t, err)

	_, err = Linear([]float64{math.NaN()}, LinearOptions{})
	require.Error(t, err)
}

func TestParseRules(t *testing.T) {
	r, err := ParseRules("1=10, 2=20")
	require.NoError(t, err)
	assert.Equal(t, map[float64]float64{1: 10, 2: 20}, r.Categories)

	r, err = ParseRules("10:20=2,0:10=1")
	require.NoError(t, err)
	assert.Equal(t, []Interval{{Lo: 10, Hi: 20, Value: 2}, {Lo: 0, Hi: 10, Value: 1}}, r.Intervals)

	for _, bad := range []string{"", "1", "a=1", "1=b", "1=2,0:1=3", "5:5=1", "x:1=1"} {
		_, err := ParseRules(bad)
		assert.Error(t, err, bad)
	}
}

func TestReclassify_Categories(t *testing.T) {
	got, err := Reclassify([]float64{1, 2, 3, math.NaN()}, Rules{Categories: map[float64]float64{1: 10, 2: 20}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 0, 0}, got)
}

func TestReclassify_Intervals(t *testing.T) {
	rules := Rules{Intervals: []Interval{{Lo: 10, Hi: 20, Value: 2}, {Lo: 0, Hi: 10, Value: 1}}}
	got, err := Reclassify([]float64{0, 5, 10, 15, 20, 25, -1}, rules, -9)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 2, 2, -9, -9}, got)

	_, err = Reclassify([]float64{1}, Rules{}, 0)
	require.Error(t, err)
}

func TestFitGamma(t *testing.T) {
	values := []float64{1, 2, 3, 4, math.NaN()}
	fit, err := FitGamma(values)
	require.NoError(t, err)

	s := math.Log(2.5) - (math.Log(1)+math.Log(2)+math.Log(3)+math.Log(4))/4
	assert.InDelta(t, s, math.Log(fit.Shape)-mathext.Digamma(fit.Shape), 1e-9)
	assert.InDelta(t, 2.5, fit.Shape*fit.Scale, 1e-9)
	assert.InDelta(t, 4.27, fit.Shape, 0.05)

	_, err = FitGamma([]float64{1, 0, 2})
	require.Error(t, err)
	_, err = FitGamma([]float64{2, 2, 2})
	require.Error(t, err)
	_, err = FitGamma([]float64{2})
	require.Error(t, err)
}

func TestGammaFit_CDF(t *testing.T) {
	exp := GammaFit{Shape: 1, Scale: 2}
	assert.InDelta(t, 1-math.Exp(-1), exp.CDF(2), 1e-12)
	assert.Equal(t, 0.0, exp.CDF(0))
}

func TestGamma(t *testing.T) {
	got, err := Gamma([]float64{1, 2, 3, 4, math.NaN()}, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := 0; i < 4; i++ {
		assert.Greater(t, got[i], 2.0)
		assert.Less(t, got[i], 8.0)
		if i > 0 {
			assert.Greater(t, got[i], got[i-1])
		}
	}
	assert.Equal(t, 1.0, got[4])
}
