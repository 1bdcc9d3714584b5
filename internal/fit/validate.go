package fit

import (
	"math"

	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/sed"
)

// Validate checks the configuration and every star of the catalog. It runs
// before any star is fit; every failure is a configuration error.
func (f *Fitter) Validate(cat *model.Catalog) error {
	cfg := f.cfg
	if err := cfg.Likelihood.ValidateGrid(f.grid.NModels()); err != nil {
		return err
	}
	if err := cfg.Posterior.Validate(); err != nil {
		return err
	}
	if cfg.NDraws < 1 {
		return model.ConfigError("ndraws must be at least 1, got %d", cfg.NDraws)
	}
	if cfg.Posterior.ReturnDraws && cfg.Posterior.NMC == 0 {
		return model.ConfigError("saving draws needs a positive monte carlo sample count")
	}
	nfilt := f.grid.NFilters()
	if cfg.PhotOffsets != nil && len(cfg.PhotOffsets) != nfilt {
		return model.ConfigError("%d photometric offsets for a %d-band grid", len(cfg.PhotOffsets), nfilt)
	}
	if f.lnprior != nil && len(f.lnprior) != f.grid.NModels() {
		return model.ConfigError("grid prior has %d entries for %d models", len(f.lnprior), f.grid.NModels())
	}

	for i := range cat.Observations {
		obs := &cat.Observations[i]
		if len(obs.Flux) != nfilt || len(obs.Err) != nfilt || (obs.Mask != nil && len(obs.Mask) != nfilt) {
			return model.ConfigError("star %d (%s) has %d bands, grid has %d", i, obs.ID, len(obs.Flux), nfilt)
		}
		if obs.Parallax != nil && obs.ParallaxErr == nil {
			return model.ConfigError("star %d (%s) has a parallax without an error", i, obs.ID)
		}
		if obs.ParallaxErr != nil && !(*obs.ParallaxErr > 0) {
			return model.ConfigError("star %d (%s) has non-positive parallax error %g", i, obs.ID, *obs.ParallaxErr)
		}
		if f.priors.NeedsCoords && obs.Coord == nil {
			return model.ConfigError("star %d (%s) has no coordinates, required by the default priors", i, obs.ID)
		}
		flux, ferr := f.applyOffsets(obs)
		if n := countTrue(f.cleanMask(obs, flux, ferr)); n < MinBands {
			return model.ConfigError("star %d (%s) has %d valid bands, need %d", i, obs.ID, n, MinBands)
		}
	}
	return nil
}

// applyOffsets returns the star's flux and error scaled by the photometric
// offsets.
func (f *Fitter) applyOffsets(obs *model.Observation) ([]float64, []float64) {
	flux := make([]float64, len(obs.Flux))
	ferr := make([]float64, len(obs.Err))
	for j := range obs.Flux {
		off := 1.0
		if f.cfg.PhotOffsets != nil {
			off = f.cfg.PhotOffsets[j]
		}
		flux[j] = obs.Flux[j] * off
		ferr[j] = obs.Err[j] * off
	}
	return flux, ferr
}

// cleanMask keeps observed bands with finite, positive-error photometry that
// is neither too faint nor too noisy. Non-positive fluxes have no magnitude and
// are kept; the optimizer down-weights them in magnitude space.
func (f *Fitter) cleanMask(obs *model.Observation, flux, ferr []float64) []bool {
	mask := make([]bool, len(flux))
	for j := range flux {
		if obs.Mask != nil && !obs.Mask[j] {
			continue
		}
		if !finite(flux[j]) || !finite(ferr[j]) || !(ferr[j] > 0) {
			continue
		}
		mag, magErr := sed.Magnitude(flux[j], ferr[j])
		mask[j] = !(mag > f.cfg.MagMax || magErr > f.cfg.MagErrMax)
	}
	return mask
}

func countTrue(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
