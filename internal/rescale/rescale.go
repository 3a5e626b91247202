// Package rescale maps raw factor values onto a common suitability scale:
// linear stretches, reclassification tables and a gamma CDF transform.
package rescale

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// Default output range of Linear and Gamma.
const (
	DefaultMin = 1.0
	DefaultMax = 9.0
)

// LinearOptions configures Linear. Start and End default to the minimum and
// maximum of the valid values. Min and Max both zero select the default range.
type LinearOptions struct {
	Start *float64
	End   *float64
	Min   float64
	Max   float64
}

func (o LinearOptions) bounds() (float64, float64) {
	if o.Min == 0 && o.Max == 0 {
		return DefaultMin, DefaultMax
	}
	return o.Min, o.Max
}

// Linear stretches values from [Start, End] onto [Min, Max]. When End is above
// Start small inputs map to Min; when Start is above End the direction is
// reversed and small inputs map to Max. Values past either bound are clamped.
// NaN stays NaN.
func Linear(values []float64, opts LinearOptions) ([]float64, error) {
	lo, hi := validRange(values)
	start, end := lo, hi
	if opts.Start != nil {
		start = *opts.Start
	}
	if opts.End != nil {
		end = *opts.End
	}
	if math.IsNaN(start) || math.IsNaN(end) {
		return nil, eris.New("rescale: no valid values to derive the input range")
	}
	if start == end {
		return nil, eris.Errorf("rescale: empty input range [%g, %g]", start, end)
	}
	outMin, outMax := opts.bounds()
	inRange, outRange := math.Abs(end-start), math.Abs(outMax-outMin)

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = v
		case end > start && v > end, end < start && v < end:
			out[i] = outMax
		case end > start && v < start, end < start && v > start:
			out[i] = outMin
		case end > start:
			out[i] = outMin + (v-start)*outRange/inRange
		default:
			out[i] = outMax - (v-end)*outRange/inRange
		}
	}
	return out, nil
}

// validRange returns the min and max of the non-NaN values, or NaN twice.
func validRange(values []float64) (float64, float64) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Min(valid), floats.Max(valid)
}

// Interval maps the right-closed range (Lo, Hi] to Value.
type Interval struct {
	Lo, Hi float64
	Value  float64
}

// Rules is a reclassification table: either exact categories or intervals,
// never both.
type Rules struct {
	Categories map[float64]float64
	Intervals  []Interval
}

// ParseRules reads "1=10,2=20" as categories and "0:10=1,10:20=2" as
// intervals.
func ParseRules(s string) (Rules, error) {
	var r Rules
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, val, ok := strings.Cut(item, "=")
		if !ok {
			return Rules{}, eris.Errorf("rescale: rule %q must be key=value", item)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return Rules{}, eris.Wrapf(err, "rescale: rule %q value", item)
		}
		if lo, hi, isRange := strings.Cut(key, ":"); isRange {
			iv := Interval{Value: v}
			if iv.Lo, err = strconv.ParseFloat(strings.TrimSpace(lo), 64); err != nil {
				return Rules{}, eris.Wrapf(err, "rescale: rule %q lower bound", item)
			}
			if iv.Hi, err = strconv.ParseFloat(strings.TrimSpace(hi), 64); err != nil {
				return Rules{}, eris.Wrapf(err, "rescale: rule %q upper bound", item)
			}
			r.Intervals = append(r.Intervals, iv)
			continue
		}
		k, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
		if err != nil {
			return Rules{}, eris.Wrapf(err, "rescale: rule %q key", item)
		}
		if r.Categories == nil {
			r.Categories = make(map[float64]float64)
		}
		r.Categories[k] = v
	}
	return r, r.validate()
}

func (r Rules) validate() error {
	switch {
	case len(r.Categories) > 0 && len(r.Intervals) > 0:
		return eris.New("rescale: rules mix categories and intervals")
	case len(r.Categories) == 0 && len(r.Intervals) == 0:
		return eris.New("rescale: no reclassification rules")
	}
	for _, iv := range r.Intervals {
		if !(iv.Lo < iv.Hi) {
			return eris.Errorf("rescale: interval (%g, %g] is empty", iv.Lo, iv.Hi)
		}
	}
	return nil
}

// Reclassify maps every value through r. Values no rule covers, and NaN,
// become nodata. The lowest interval also includes its lower bound.
func Reclassify(values []float64, r Rules, nodata float64) ([]float64, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	intervals := append([]Interval(nil), r.Intervals...)
	sort.SliceStable(intervals, func(i, j int) bool { return intervals[i].Lo < intervals[j].Lo })

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = nodata
		if math.IsNaN(v) {
			continue
		}
		if len(intervals) == 0 {
			if nv, ok := r.Categories[v]; ok {
				out[i] = nv
			}
			continue
		}
		if v == intervals[0].Lo {
			out[i] = intervals[0].Value
			continue
		}
		for _, iv := range intervals {
			if v > iv.Lo && v <= iv.Hi {
				out[i] = iv.Value
				break
			}
		}
	}
	return out, nil
}
