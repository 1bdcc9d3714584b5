package model

import (
	"github.com/rotisserie/eris"
)

// Coefficient slots in a grid entry.
const (
	CoeffMag = iota // unreddened magnitude
	CoeffR0         // reddening vector at Rv=0
	CoeffDR         // reddening vector change per unit Rv
)

// Grid is an immutable model grid shared read-only by all workers.
type Grid struct {
	// Coeffs is Nmodel x Nfilt magnitude coefficients (mag, r0, dr).
	Coeffs [][][3]float64 `json:"-"`

	// Labels is Nmodel x Nlabel; column names are in LabelNames.
	Labels     [][]float64 `json:"-"`
	LabelNames []string    `json:"label_names"`

	// LabelMask marks labels that define the grid (e.g. feh) as opposed to
	// ancillary predictions (e.g. logt).
	LabelMask []bool `json:"label_mask"`

	Filters []string `json:"filters"`
}

// NModels returns the number of models in the grid.
func (g *Grid) NModels() int { return len(g.Coeffs) }

// NFilters returns the number of photometric bands per model.
func (g *Grid) NFilters() int {
	if len(g.Coeffs) == 0 {
		return 0
	}
	return len(g.Coeffs[0])
}

// Label returns the column for the named label.
func (g *Grid) Label(name string) ([]float64, bool) {
	for j, n := range g.LabelNames {
		if n != name {
			continue
		}
		col := make([]float64, len(g.Labels))
		for i, row := range g.Labels {
			col[i] = row[j]
		}
		return col, true
	}
	return nil, false
}

// Validate checks the grid is rectangular and its label table matches.
func (g *Grid) Validate() error {
	if g.NModels() == 0 {
		return eris.New("model: grid has no models")
	}
	nfilt := g.NFilters()
	for i, c := range g.Coeffs {
		if len(c) != nfilt {
			return eris.Errorf("model: grid model %d has %d bands, want %d", i, len(c), nfilt)
		}
	}
	if len(g.Labels) > 0 && len(g.Labels) != g.NModels() {
		return eris.Errorf("model: grid has %d label rows for %d models", len(g.Labels), g.NModels())
	}
	for i, row := range g.Labels {
		if len(row) != len(g.LabelNames) {
			return eris.Errorf("model: label row %d has %d columns, want %d", i, len(row), len(g.LabelNames))
		}
	}
	if len(g.LabelMask) != 0 && len(g.LabelMask) != len(g.LabelNames) {
		return eris.Errorf("model: label mask has %d entries for %d labels", len(g.LabelMask), len(g.LabelNames))
	}
	return nil
}

// Bounds is a closed interval.
type Bounds struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// Contains reports whether x lies in [Min, Max].
func (b Bounds) Contains(x float64) bool { return x >= b.Min && x <= b.Max }

// Gaussian is a normal prior described by its mean and standard deviation.
type Gaussian struct {
	Mean float64 `yaml:"mean" mapstructure:"mean"`
	Std  float64 `yaml:"std" mapstructure:"std"`
}

// Precision returns 1/Std^2.
func (g Gaussian) Precision() float64 { return 1 / (g.Std * g.Std) }
