// Package fit drives Bayesian SED fits over a whole catalog: it cleans each
// star's photometry, optimizes the full grid, integrates the survivors'
// posteriors, resamples them and hands the result to a sink.
package fit

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sedfit/internal/likelihood"
	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/posterior"
	"github.com/sells-group/sedfit/internal/prior"
)

// MinBands is the minimum number of usable bands every star must have.
const MinBands = 4

// Config holds the numerical settings of a catalog fit.
type Config struct {
	Likelihood likelihood.Options
	Posterior  posterior.Options

	NDraws int // resampled draws stored per star

	// Bands fainter than MagMax or with magnitude errors above MagErrMax are
	// masked before fitting.
	MagMax    float64
	MagErrMax float64

	// PhotOffsets multiply the flux and error of each band. Nil means none.
	PhotOffsets []float64

	// DistanceLabels passes each model's grid labels to the distance prior.
	DistanceLabels bool

	Workers int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Likelihood: likelihood.DefaultOptions(),
		Posterior: posterior.Options{
			NMC:       50,
			Selection: posterior.Selection{Mode: posterior.SelectWeight, WtThresh: 5e-3, CDFThresh: 2e-3},
			AvLim:     model.Bounds{Min: 0, Max: 20},
			RvLim:     model.Bounds{Min: 1, Max: 8},
			ApplyDust: true,
		},
		NDraws:         250,
		MagMax:         50,
		MagErrMax:      0.25,
		DistanceLabels: true,
		Workers:        1,
	}
}

// Option customizes a Fitter.
type Option func(*Fitter)

// WithPriors replaces the default distance, dust and parallax priors.
func WithPriors(p prior.Set) Option {
	return func(f *Fitter) { f.priors = p }
}

// WithGridPrior sets the per-model log-prior. It must have one entry per model.
func WithGridPrior(lnprior []float64) Option {
	return func(f *Fitter) { f.lnprior = lnprior }
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fitter) { f.log = l }
}

// Fitter fits catalogs against one model grid. The grid and priors are shared
// read-only by all workers.
type Fitter struct {
	grid    *model.Grid
	lnprior []float64
	priors  prior.Set
	cfg     Config
	log     *zap.Logger
}

// New returns a Fitter for grid. The configuration is checked by Validate.
func New(grid *model.Grid, cfg Config, opts ...Option) (*Fitter, error) {
	if grid == nil {
		return nil, eris.New("fit: nil grid")
	}
	if err := grid.Validate(); err != nil {
		return nil, eris.Wrap(err, "fit: invalid grid")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	f := &Fitter{
		grid:   grid,
		priors: prior.Defaults(),
		cfg:    cfg,
		log:    zap.L(),
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Grid returns the model grid.
func (f *Fitter) Grid() *model.Grid { return f.grid }
