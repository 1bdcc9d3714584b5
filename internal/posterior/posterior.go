// Package posterior turns per-model likelihood fits into log-posteriors by
// thresholding the grid and integrating each survivor's local Gaussian against
// the distance, dust and parallax priors by Monte Carlo.
package posterior

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/sells-group/sedfit/internal/likelihood"
	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/prior"
)

const minScale = 1e-20

// Options configures the integrator.
type Options struct {
	NMC       int // Monte Carlo samples per survivor; 0 skips marginalization
	Selection Selection
	AvLim     model.Bounds
	RvLim     model.Bounds

	// ApplyDust evaluates the dust prior at each sample. It is off when an
	// explicit Av prior was already applied by the optimizer.
	ApplyDust bool

	ReturnDraws bool
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.NMC < 0 {
		return model.ConfigError("monte carlo sample count must be non-negative, got %d", o.NMC)
	}
	return o.Selection.Validate()
}

// Priors are the priors applied to one star. Nil members contribute nothing.
type Priors struct {
	Grid     []float64 // per-model log-prior
	Distance prior.DistancePrior
	Dust     prior.DustPrior
	Parallax prior.ParallaxPrior
}

// Input is one star's optimizer output and ancillary data.
type Input struct {
	Fit         *likelihood.Result
	Parallax    *float64
	ParallaxErr *float64
	Coord       model.Coord
	Labels      [][]float64 // grid labels passed to the distance prior, may be nil
}

// Sample is one Monte Carlo realization in physical units.
type Sample struct {
	Dist  float64 // kpc; 0 when the sampled scale is not positive
	Av    float64
	Rv    float64
	LogWt float64
}

// Result holds the survivors of one star.
type Result struct {
	Sel    []int           // grid indices of survivors, ascending
	LnPost []float64       // per survivor
	Cov    [][3][3]float64 // repaired covariance per survivor
	Draws  [][]Sample      // per survivor, NMC each; nil unless requested
}

// Integrate computes survivor log-posteriors for one star. rng is consumed
// only when opts.NMC > 0.
func Integrate(in Input, priors Priors, opts Options, rng *rand.Rand) (*Result, error) {
	fit := in.Fit
	n := len(fit.LnLike)
	if priors.Grid != nil && len(priors.Grid) != n {
		return nil, model.ConfigError("grid prior has %d entries for %d models", len(priors.Grid), n)
	}
	hasParallax := in.Parallax != nil && in.ParallaxErr != nil

	lnpost := make([]float64, n)
	lnprob := make([]float64, n)
	for i, l := range fit.LnLike {
		lnpost[i] = l
		if priors.Grid != nil {
			lnpost[i] += priors.Grid[i]
		}
		lnprob[i] = lnpost[i]
		if hasParallax {
			sErr := 1 / math.Sqrt(math.Abs(fit.ICov[i][0][0]))
			lnprob[i] += prior.ScaleParallax(fit.Scale[i], sErr, *in.Parallax, *in.ParallaxErr)
		}
	}
	clampNonFinite(lnprob)

	sel := opts.Selection.Apply(lnprob)
	res := &Result{
		Sel:    sel,
		LnPost: make([]float64, len(sel)),
		Cov:    make([][3][3]float64, len(sel)),
	}
	for k, i := range sel {
		res.Cov[k], _ = Repair(fit.ICov[i], fit.Scale[i])
	}

	if opts.NMC == 0 {
		for k, i := range sel {
			res.LnPost[k] = lnprob[i]
		}
		clampNonFinite(res.LnPost)
		return res, nil
	}

	if opts.ReturnDraws {
		res.Draws = make([][]Sample, len(sel))
	}
	mc := &overlap{in: in, priors: priors, opts: opts, hasParallax: hasParallax}
	for k, i := range sel {
		mean := []float64{fit.Scale[i], fit.Av[i], fit.Rv[i]}
		var labels []float64
		if in.Labels != nil {
			labels = in.Labels[i]
		}
		lnp, draws := mc.integrate(mean, res.Cov[k], labels, rng)
		res.LnPost[k] = lnpost[i] + lnp
		if res.Draws != nil {
			res.Draws[k] = draws
		}
	}
	clampNonFinite(res.LnPost)
	return res, nil
}

// overlap estimates the integral of a survivor's Gaussian against the priors.
type overlap struct {
	in          Input
	priors      Priors
	opts        Options
	hasParallax bool
}

func (o *overlap) integrate(mean []float64, cov [3][3]float64, labels []float64, rng *rand.Rand) (float64, []Sample) {
	nmc := o.opts.NMC
	sampler := newSampler(mean, cov, rng)
	lnp := make([]float64, nmc)
	draws := make([]Sample, nmc)
	x := make([]float64, 3)
	inBounds := 0
	for m := 0; m < nmc; m++ {
		sampler(x)
		s, av, rv := x[0], x[1], x[2]
		var par, dist float64
		if s > 0 {
			par = math.Sqrt(s)
			dist = 1 / par
		}

		var lp float64
		if o.priors.Distance != nil {
			lp += o.priors.Distance.LnPrior(dist, o.in.Coord, labels)
		}
		if o.opts.ApplyDust && o.priors.Dust != nil {
			lp += o.priors.Dust.LnPrior(dist, o.in.Coord, av)
		}
		if o.hasParallax && o.priors.Parallax != nil {
			lp += o.priors.Parallax.LnPrior(par, 0, *o.in.Parallax, *o.in.ParallaxErr)
		}
		if math.IsNaN(lp) || math.IsInf(lp, 0) {
			lp = model.LogZero
		}
		if s >= minScale && o.opts.AvLim.Contains(av) && o.opts.RvLim.Contains(rv) {
			inBounds++
		} else {
			lp = model.LogZero
		}
		lnp[m] = lp
		draws[m] = Sample{Dist: dist, Av: av, Rv: rv, LogWt: lp}
	}
	return floats.LogSumExp(lnp) - math.Log(float64(inBounds)), draws
}

// newSampler returns a function filling x with a draw from N(mean, cov). A
// covariance that fails Cholesky falls back to its absolute diagonal.
func newSampler(mean []float64, cov [3][3]float64, rng *rand.Rand) func(x []float64) {
	if n, ok := distmv.NewNormal(mean, symDense(cov), rng); ok {
		return func(x []float64) { n.Rand(x) }
	}
	sd := make([]float64, 3)
	for a := range sd {
		sd[a] = math.Sqrt(math.Abs(cov[a][a]))
	}
	return func(x []float64) {
		for a := range x {
			x[a] = mean[a] + sd[a]*rng.NormFloat64()
		}
	}
}

// clampNonFinite replaces NaN and infinities with model.LogZero.
func clampNonFinite(v []float64) {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = model.LogZero
		}
	}
}
