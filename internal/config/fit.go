package config

import (
	"github.com/sells-group/sedfit/internal/fit"
	"github.com/sells-group/sedfit/internal/likelihood"
	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/posterior"
	"github.com/sells-group/sedfit/internal/prior"
	"github.com/sells-group/sedfit/internal/resilience"
)

// unsetAvStd is the Av prior width used when no Av prior is configured.
const unsetAvStd = 1e6

// Validate checks the fit settings. Every failure is a configuration error.
func (f FitConfig) Validate() error {
	if f.InitThresh > f.LTolSubthresh {
		return model.ConfigError("fit.init_thresh %g exceeds fit.ltol_subthresh %g", f.InitThresh, f.LTolSubthresh)
	}
	if f.AvLim.Min > f.AvLim.Max || f.RvLim.Min > f.RvLim.Max {
		return model.ConfigError("fit bounds inverted: avlim %v, rvlim %v", f.AvLim, f.RvLim)
	}
	if f.AvGauss != nil && !(f.AvGauss.Std > 0) {
		return model.ConfigError("fit.av_gauss.std must be positive, got %g", f.AvGauss.Std)
	}
	if !(f.RvGauss.Std > 0) {
		return model.ConfigError("fit.rv_gauss.std must be positive, got %g", f.RvGauss.Std)
	}
	if f.NMCPrior < 0 {
		return model.ConfigError("fit.nmc_prior must be non-negative, got %d", f.NMCPrior)
	}
	return f.selection().Validate()
}

func (f FitConfig) selection() posterior.Selection {
	return posterior.Selection{
		Mode:      posterior.SelectionMode(f.Selection),
		WtThresh:  f.WtThresh,
		CDFThresh: f.CDFThresh,
	}
}

// FitterConfig converts the loaded settings into a fit.Config. It validates
// the fit settings first.
func (c *Config) FitterConfig() (fit.Config, error) {
	if err := c.Fit.Validate(); err != nil {
		return fit.Config{}, err
	}
	f := c.Fit

	avGauss := model.Gaussian{Mean: 0, Std: unsetAvStd}
	if f.AvGauss != nil {
		avGauss = *f.AvGauss
	}

	cfg := fit.DefaultConfig()
	cfg.Likelihood = likelihood.Options{
		AvLim:      f.AvLim,
		RvLim:      f.RvLim,
		AvGauss:    avGauss,
		RvGauss:    f.RvGauss,
		LTol:       f.LTol,
		WtThresh:   f.LTolSubthresh,
		InitThresh: f.InitThresh,
		DimPrior:   f.DimPrior,
	}
	cfg.Posterior = posterior.Options{
		NMC:         f.NMCPrior,
		Selection:   f.selection(),
		AvLim:       f.AvLim,
		RvLim:       f.RvLim,
		ApplyDust:   f.AvGauss == nil,
		ReturnDraws: c.Output.SaveDraws,
	}
	cfg.NDraws = c.Output.NDraws
	cfg.MagMax = f.MagMax
	cfg.MagErrMax = f.MerrMin
	cfg.PhotOffsets = f.PhotOffsets
	cfg.Workers = c.Batch.Workers
	return cfg, nil
}

// Priors builds the distance, dust and parallax priors.
func (c *Config) Priors() (prior.Set, error) {
	p := c.Prior
	set := prior.Set{Parallax: prior.GaussianParallax{}}

	switch p.Distance {
	case "galactic", "":
		g := prior.DefaultGalacticDisk()
		if p.Galactic != (GalacticConfig{}) {
			g = prior.GalacticDisk{R0: p.Galactic.R0, Z0: p.Galactic.Z0, Lr: p.Galactic.Lr, Lz: p.Galactic.Lz}
		}
		if !(g.Lr > 0) || !(g.Lz > 0) {
			return prior.Set{}, model.ConfigError("prior.galactic scale lengths must be positive (lr %g, lz %g)", g.Lr, g.Lz)
		}
		set.Distance = g
		set.NeedsCoords = true
	case "flat":
		set.Distance = prior.FlatDistance{}
	default:
		return prior.Set{}, model.ConfigError("prior.distance %q is not galactic or flat", p.Distance)
	}

	switch p.Dust {
	case "flat", "":
		set.Dust = prior.FlatDust{}
	case "linear":
		if !(p.DustStd > 0) {
			return prior.Set{}, model.ConfigError("prior.dust_std must be positive, got %g", p.DustStd)
		}
		set.Dust = prior.LinearDust{Rate: p.DustRate, Std: p.DustStd}
	default:
		return prior.Set{}, model.ConfigError("prior.dust %q is not flat or linear", p.Dust)
	}
	return set, nil
}

// GridOptions returns the grid prior settings.
func (c *Config) GridOptions() prior.GridOptions {
	return prior.GridOptions{ApplyAgeWeight: c.Prior.AgeWeight, ApplyGrad: c.Prior.Gradient}
}

// RetryPolicy returns the store retry policy.
func (c *Config) RetryPolicy() resilience.RetryConfig {
	return resilience.FromSettings(c.Retry.MaxAttempts, c.Retry.InitialBackoff, c.Retry.MaxBackoff)
}
