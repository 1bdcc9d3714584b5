// Package likelihood fits every model of a grid to one star, solving for the
// scale factor, dust extinction (Av) and reddening-curve shape (Rv).
package likelihood

import (
	"math"

	"github.com/sells-group/sedfit/internal/model"
)

// Options configures the optimizer.
type Options struct {
	AvLim   model.Bounds
	RvLim   model.Bounds
	AvGauss model.Gaussian
	RvGauss model.Gaussian

	// LTol is the log-likelihood tolerance of the flux-space refinement. The
	// magnitude stage uses 2.5*LTol on the parameter steps.
	LTol float64

	// WtThresh selects the models (relative likelihood) that decide
	// convergence of the flux-space refinement.
	WtThresh float64

	// InitThresh culls models after the magnitude-space fit. It must not
	// exceed WtThresh.
	InitThresh float64

	// DimPrior replaces -chi2/2 with the chi-square log-density with Ndim-3
	// degrees of freedom.
	DimPrior bool

	// Optional per-model starting points; default to the prior means.
	AvInit []float64
	RvInit []float64
}

// DefaultOptions returns the optimizer defaults.
func DefaultOptions() Options {
	return Options{
		AvLim:      model.Bounds{Min: 0, Max: 20},
		RvLim:      model.Bounds{Min: 1, Max: 8},
		AvGauss:    model.Gaussian{Mean: 0, Std: 1e6},
		RvGauss:    model.Gaussian{Mean: 3.32, Std: 0.18},
		LTol:       3e-2,
		WtThresh:   1e-2,
		InitThresh: 5e-3,
		DimPrior:   true,
	}
}

// Validate checks the options once before any star is processed.
func (o Options) Validate() error {
	if o.InitThresh > o.WtThresh {
		return model.ConfigError("init threshold %g exceeds convergence threshold %g", o.InitThresh, o.WtThresh)
	}
	if !(o.InitThresh > 0) || !(o.WtThresh < 1) {
		return model.ConfigError("thresholds must lie in (0, 1) (init %g, convergence %g)", o.InitThresh, o.WtThresh)
	}
	if o.LTol <= 0 || math.IsNaN(o.LTol) {
		return model.ConfigError("likelihood tolerance must be positive, got %g", o.LTol)
	}
	if o.AvLim.Min > o.AvLim.Max {
		return model.ConfigError("av bounds inverted: [%g, %g]", o.AvLim.Min, o.AvLim.Max)
	}
	if o.RvLim.Min > o.RvLim.Max {
		return model.ConfigError("rv bounds inverted: [%g, %g]", o.RvLim.Min, o.RvLim.Max)
	}
	if !(o.AvGauss.Std > 0) || !(o.RvGauss.Std > 0) {
		return model.ConfigError("prior widths must be positive (av %g, rv %g)", o.AvGauss.Std, o.RvGauss.Std)
	}
	return nil
}

// ValidateGrid is Validate plus checks that depend on the grid size.
func (o Options) ValidateGrid(nmodels int) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.AvInit != nil && len(o.AvInit) != nmodels {
		return model.ConfigError("%d av starting points for %d models", len(o.AvInit), nmodels)
	}
	if o.RvInit != nil && len(o.RvInit) != nmodels {
		return model.ConfigError("%d rv starting points for %d models", len(o.RvInit), nmodels)
	}
	return nil
}
