package model

import (
	"math"

	"github.com/rotisserie/eris"
)

// Series is a named per-feature result aligned to a feature set's IDs.
// Missing values are NaN.
type Series struct {
	Name   string    `json:"name"`
	Kind   Kind      `json:"kind"`
	Index  []int     `json:"index"`
	Values []float64 `json:"values"`
}

// NewSeries builds a float64 series; index and values must have equal length.
func NewSeries(name string, index []int, values []float64) (*Series, error) {
	if len(index) != len(values) {
		return nil, eris.Errorf("model: series %q has %d index entries for %d values", name, len(index), len(values))
	}
	return &Series{Name: name, Kind: KindFloat64, Index: index, Values: values}, nil
}

// Len returns the number of values.
func (s *Series) Len() int { return len(s.Values) }

// Cast returns a copy whose values are converted to kind.
func (s *Series) Cast(kind Kind) (*Series, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	out := &Series{
		Name:   s.Name,
		Kind:   kind,
		Index:  append([]int(nil), s.Index...),
		Values: make([]float64, len(s.Values)),
	}
	for i, v := range s.Values {
		out.Values[i] = kind.Cast(v)
	}
	return out, nil
}

// Missing counts NaN values.
func (s *Series) Missing() int {
	n := 0
	for _, v := range s.Values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Table is a set of series sharing one index, e.g. zonal statistics.
type Table struct {
	Index   []int     `json:"index"`
	Columns []*Series `json:"columns"`
}

// NewTable groups series that share index.
func NewTable(index []int, columns ...*Series) (*Table, error) {
	for _, c := range columns {
		if len(c.Values) != len(index) {
			return nil, eris.Errorf("model: column %q has %d values for %d rows", c.Name, len(c.Values), len(index))
		}
	}
	return &Table{Index: index, Columns: columns}, nil
}

// Column returns the series with the given name, or nil.
func (t *Table) Column(name string) *Series {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}
