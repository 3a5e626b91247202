// Package zonal summarizes raster cells under each zone geometry.
package zonal

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/landsuit/internal/grid"
)

// ErrUnknownStat is returned for a statistic name Compute does not know.
var ErrUnknownStat = eris.New("zonal: unknown statistic")

// Stat names a per-zone statistic.
type Stat string

const (
	Count    Stat = "count"
	Min      Stat = "min"
	Max      Stat = "max"
	Mean     Stat = "mean"
	Sum      Stat = "sum"
	Std      Stat = "std"
	Median   Stat = "median"
	Majority Stat = "majority"
	Minority Stat = "minority"
	Unique   Stat = "unique"
	Range    Stat = "range"
	NoData   Stat = "nodata"
	NaN      Stat = "nan"
)

// DefaultStats are computed when no statistics are requested.
var DefaultStats = []Stat{Count, Min, Max, Mean}

var known = map[Stat]bool{
	Count: true, Min: true, Max: true, Mean: true, Sum: true, Std: true,
	Median: true, Majority: true, Minority: true, Unique: true, Range: true,
	NoData: true, NaN: true,
}

// ParseStats splits a space- or comma-separated list. An empty list yields
// DefaultStats.
func ParseStats(s string) ([]Stat, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return append([]Stat(nil), DefaultStats...), nil
	}
	out := make([]Stat, 0, len(fields))
	for _, f := range fields {
		st := Stat(strings.ToLower(f))
		if !known[st] {
			return nil, eris.Wrapf(ErrUnknownStat, "zonal: %q", f)
		}
		out = append(out, st)
	}
	return out, nil
}

// Options selects statistics and the cell coverage rule.
type Options struct {
	Stats      []Stat
	AllTouched bool
}

// Compute returns one map per zone, in zone order, keyed by statistic name.
// Cells equal to r.NoData or NaN are excluded from value statistics and
// counted by "nodata" and "nan". A zone without valid cells gets NaN for
// value statistics and zero for the counts.
func Compute(zones []geom.T, r *grid.Raster, opts Options) ([]map[string]float64, error) {
	stats := opts.Stats
	if len(stats) == 0 {
		stats = DefaultStats
	}
	for _, st := range stats {
		if !known[st] {
			return nil, eris.Wrapf(ErrUnknownStat, "zonal: %q", string(st))
		}
	}

	out := make([]map[string]float64, len(zones))
	empty := 0
	for i, z := range zones {
		var values []float64
		var noData, nan int
		if z != nil {
			for _, c := range grid.Mask(z, r.Transform, r.Rows, r.Cols, opts.AllTouched) {
				v := r.At(c.Row, c.Col)
				switch {
				case math.IsNaN(v):
					nan++
				case v == r.NoData:
					noData++
				default:
					values = append(values, v)
				}
			}
		}
		if len(values) == 0 {
			empty++
		}
		out[i] = summarize(values, noData, nan, stats)
	}

	zap.L().Debug("zonal: computed statistics",
		zap.Int("zones", len(zones)),
		zap.Int("empty_zones", empty),
		zap.Int("rows", r.Rows),
		zap.Int("cols", r.Cols),
	)
	return out, nil
}

func summarize(values []float64, noData, nan int, stats []Stat) map[string]float64 {
	res := make(map[string]float64, len(stats))
	n := len(values)
	if n > 0 {
		sort.Float64s(values)
	}
	for _, st := range stats {
		switch st {
		case Count:
			res[string(st)] = float64(n)
		case NoData:
			res[string(st)] = float64(noData)
		case NaN:
			res[string(st)] = float64(nan)
		case Unique:
			res[string(st)] = float64(len(frequencies(values)))
		default:
			if n == 0 {
				res[string(st)] = math.NaN()
				continue
			}
			res[string(st)] = valueStat(st, values)
		}
	}
	return res
}

// valueStat computes st over sorted, non-empty values.
func valueStat(st Stat, sorted []float64) float64 {
	switch st {
	case Min:
		return floats.Min(sorted)
	case Max:
		return floats.Max(sorted)
	case Mean:
		return stat.Mean(sorted, nil)
	case Sum:
		return floats.Sum(sorted)
	case Std:
		_, std := stat.PopMeanStdDev(sorted, nil)
		return std
	case Median:
		n := len(sorted)
		return (sorted[(n-1)/2] + sorted[n/2]) / 2
	case Range:
		return sorted[len(sorted)-1] - sorted[0]
	case Majority, Minority:
		freq := frequencies(sorted)
		best := freq[0]
		for _, f := range freq[1:] {
			if (st == Majority && f.n > best.n) || (st == Minority && f.n < best.n) {
				best = f
			}
		}
		return best.v
	}
	return math.NaN()
}

type freq struct {
	v float64
	n int
}

// frequencies run-length encodes sorted values; ties later resolve to the
// smallest value.
func frequencies(sorted []float64) []freq {
	var out []freq
	for _, v := range sorted {
		if len(out) > 0 && out[len(out)-1].v == v {
			out[len(out)-1].n++
			continue
		}
		out = append(out, freq{v: v, n: 1})
	}
	return out
}
