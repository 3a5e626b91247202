// Package scorer combines rescaled factor columns into a weighted
// suitability score and generates consistent AHP weights.
package scorer

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Layer is one weighted factor of a suitability model.
type Layer struct {
	// Name labels the factor; it defaults to Column.
	Name string `yaml:"name"`
	// Source is a CSV exported by an earlier run. Empty means a column of the
	// input layer itself.
	Source string  `yaml:"source"`
	Column string  `yaml:"column"`
	Weight float64 `yaml:"weight"`
}

// Key returns the layer's name, falling back to its column.
func (l Layer) Key() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Column
}

// Model is a suitability model read from YAML.
type Model struct {
	Name     string  `yaml:"name"`
	Layers   []Layer `yaml:"layers"`
	MinScore float64 `yaml:"min_score"`
	Limit    int     `yaml:"limit"`
	// RandomWeights replaces the layer weights with random consistent AHP
	// weights drawn from Seed.
	RandomWeights bool   `yaml:"random_weights"`
	Seed          uint64 `yaml:"seed"`
}

// LoadModel reads and validates a model file.
func LoadModel(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read model %s", path)
	}
	var m Model
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, eris.Wrapf(err, "scorer: parse model %s", path)
	}
	if m.RandomWeights {
		if err := m.ApplyRandomWeights(); err != nil {
			return nil, err
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ApplyRandomWeights overwrites every layer weight with RandomAHPWeights.
func (m *Model) ApplyRandomWeights() error {
	w, err := RandomAHPWeights(len(m.Layers), m.Seed)
	if err != nil {
		return err
	}
	for i := range m.Layers {
		m.Layers[i].Weight = w[i]
	}
	return nil
}

// WeightSum returns the sum of all layer weights.
func (m *Model) WeightSum() float64 {
	var sum float64
	for _, l := range m.Layers {
		sum += l.Weight
	}
	return sum
}

// Weights maps each layer key to its weight.
func (m *Model) Weights() map[string]float64 {
	out := make(map[string]float64, len(m.Layers))
	for _, l := range m.Layers {
		out[l.Key()] = l.Weight
	}
	return out
}

// Validate checks that a Model is internally consistent.
func (m *Model) Validate() error {
	var errs []string

	if len(m.Layers) == 0 {
		errs = append(errs, "at least one layer is required")
	}
	seen := make(map[string]bool, len(m.Layers))
	for i, l := range m.Layers {
		if l.Column == "" {
			errs = append(errs, fmt.Sprintf("layer %d: column is required", i))
		}
		if seen[l.Key()] {
			errs = append(errs, fmt.Sprintf("layer %q is defined twice", l.Key()))
		}
		seen[l.Key()] = true
		if l.Weight < 0 {
			errs = append(errs, fmt.Sprintf("layer %q: weight must be >= 0", l.Key()))
		}
	}

	// Weights are a priority vector.
	if sum := m.WeightSum(); len(m.Layers) > 0 && math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.3f", sum))
	}
	if m.Limit < 0 {
		errs = append(errs, "limit must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: model validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
