package prior

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sedfit/internal/model"
)

// Label names with special meaning to GridPrior.
const (
	LabelAgeWeight   = "agewt"
	LabelInitialMass = "mini"
)

// GridOptions controls how GridPrior builds the per-model log-prior.
type GridOptions struct {
	// Base is an explicit per-model log-prior. When nil, an IMF prior is used
	// if the grid carries initial masses, otherwise zero.
	Base []float64

	// ApplyAgeWeight adds ln|agewt| to reweight isochrone points into age.
	ApplyAgeWeight bool

	// ApplyGrad adds the log of the grid spacing along every defining label
	// so irregular grids are not over-weighted where they are dense.
	ApplyGrad bool
}

// GridPrior returns the log-prior of every model in the grid.
func GridPrior(grid *model.Grid, opts GridOptions) ([]float64, error) {
	n := grid.NModels()
	out := make([]float64, n)
	switch {
	case opts.Base != nil:
		if len(opts.Base) != n {
			return nil, eris.Errorf("prior: base prior has %d entries for %d models", len(opts.Base), n)
		}
		copy(out, opts.Base)
	default:
		if mini, ok := grid.Label(LabelInitialMass); ok {
			imf := DefaultIMF()
			for i, m := range mini {
				out[i] = imf.LnPrior(m)
			}
		}
	}

	if opts.ApplyAgeWeight {
		if wt, ok := grid.Label(LabelAgeWeight); ok {
			for i, w := range wt {
				out[i] += math.Log(math.Abs(w))
			}
		}
	}

	if opts.ApplyGrad {
		for j, name := range grid.LabelNames {
			if j >= len(grid.LabelMask) || !grid.LabelMask[j] {
				continue
			}
			col, _ := grid.Label(name)
			uniq := slices.Clone(col)
			slices.Sort(uniq)
			uniq = slices.Compact(uniq)
			if len(uniq) < 2 {
				continue
			}
			lngrad := logGradient(uniq)
			for i, v := range col {
				k, _ := slices.BinarySearch(uniq, v)
				out[i] += lngrad[k]
			}
		}
	}
	return out, nil
}

// logGradient returns the log of the local spacing of sorted unique values,
// using centred differences inside and one-sided differences at the ends.
func logGradient(u []float64) []float64 {
	n := len(u)
	out := make([]float64, n)
	for i := range u {
		var g float64
		switch i {
		case 0:
			g = u[1] - u[0]
		case n - 1:
			g = u[n-1] - u[n-2]
		default:
			g = (u[i+1] - u[i-1]) / 2
		}
		out[i] = math.Log(g)
	}
	return out
}

// IMF is a broken power-law initial mass function dN/dM ~ M^-alpha, normalized
// above the hydrogen-burning limit.
type IMF struct {
	AlphaLow  float64
	AlphaHigh float64
	MassBreak float64
	MassMin   float64
}

// DefaultIMF returns a Kroupa-like IMF.
func DefaultIMF() IMF {
	return IMF{AlphaLow: 1.3, AlphaHigh: 2.3, MassBreak: 0.5, MassMin: 0.08}
}

// LnPrior returns the normalized log-density at mass m (solar masses).
func (p IMF) LnPrior(m float64) float64 {
	if !(m > 0) {
		return math.Inf(-1)
	}
	var ln float64
	if m <= p.MassBreak {
		ln = -p.AlphaLow * math.Log(m)
	} else {
		ln = -p.AlphaHigh*math.Log(m) + (p.AlphaHigh-p.AlphaLow)*math.Log(p.MassBreak)
	}
	return ln - math.Log(p.norm())
}

// norm integrates the unnormalized density from MassMin to infinity.
func (p IMF) norm() float64 {
	low := (math.Pow(p.MassBreak, 1-p.AlphaLow) - math.Pow(p.MassMin, 1-p.AlphaLow)) / (1 - p.AlphaLow)
	high := math.Pow(p.MassBreak, p.AlphaHigh-p.AlphaLow) * math.Pow(p.MassBreak, 1-p.AlphaHigh) / (p.AlphaHigh - 1)
	return low + high
}
