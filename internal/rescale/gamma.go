package rescale

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// GammaFit is a two-parameter gamma distribution with location zero.
type GammaFit struct {
	Shape float64
	Scale float64
}

// FitGamma estimates shape and scale by maximum likelihood. The shape solves
// log k - ψ(k) = log(mean x) - mean(log x), found by bisection on log k; the
// scale is mean/k. Every value must be positive and not all equal.
func FitGamma(values []float64) (GammaFit, error) {
	var sum, sumLog float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v <= 0 {
			return GammaFit{}, eris.Errorf("rescale: gamma fit needs positive values, got %g", v)
		}
		sum += v
		sumLog += math.Log(v)
		n++
	}
	if n < 2 {
		return GammaFit{}, eris.Errorf("rescale: gamma fit needs at least 2 values, got %d", n)
	}
	mean := sum / float64(n)
	s := math.Log(mean) - sumLog/float64(n)
	if !(s > 0) {
		return GammaFit{}, eris.New("rescale: gamma fit of constant values")
	}

	// log k - ψ(k) falls monotonically from +Inf to 0.
	lo, hi := math.Log(1e-10), math.Log(1e10)
	for i := 0; i < 200 && hi-lo > 1e-14; i++ {
		mid := (lo + hi) / 2
		k := math.Exp(mid)
		if math.Log(k)-mathext.Digamma(k) > s {
			lo = mid
		} else {
			hi = mid
		}
	}
	k := math.Exp((lo + hi) / 2)
	return GammaFit{Shape: k, Scale: mean / k}, nil
}

// CDF evaluates the fitted distribution.
func (g GammaFit) CDF(x float64) float64 {
	return distuv.Gamma{Alpha: g.Shape, Beta: 1 / g.Scale}.CDF(x)
}

// Gamma fits a gamma distribution to the valid values and maps each value to
// outMin+1 + CDF(x)·(outMax-outMin-(outMin+1)). NaN becomes outMin. Both
// bounds zero select the default range.
func Gamma(values []float64, outMin, outMax float64) ([]float64, error) {
	if outMin == 0 && outMax == 0 {
		outMin, outMax = DefaultMin, DefaultMax
	}
	fit, err := FitGamma(values)
	if err != nil {
		return nil, err
	}
	start := outMin + 1
	span := (outMax - outMin) - start

	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = outMin
			continue
		}
		out[i] = fit.CDF(v)*span + start
	}

	zap.L().Debug("rescale: gamma fit",
		zap.Float64("shape", fit.Shape),
		zap.Float64("scale", fit.Scale),
		zap.Int("values", len(values)),
	)
	return out, nil
}
