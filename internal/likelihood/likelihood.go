package likelihood

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/sed"
)

const (
	// stepShrink divides a model's flux-stage step size when a step lowers
	// its likelihood.
	stepShrink = 2.0

	// maxIterations bounds both optimization loops.
	maxIterations = 1000

	// unmeasuredMagVar is the magnitude variance given to bands whose flux
	// has no finite magnitude.
	unmeasuredMagVar = 1e50
)

// Data is the photometry of one star. Parallax fields are NaN when absent.
type Data struct {
	Flux        []float64
	Err         []float64
	Mask        []bool
	Parallax    float64
	ParallaxErr float64
}

// Result holds the per-model fits of one star against the full grid.
type Result struct {
	LnLike []float64
	Chi2   []float64
	Scale  []float64
	Av     []float64
	Rv     []float64
	ICov   [][3][3]float64 // precision matrices about (Scale, Av, Rv)
	NDim   int
}

// Fit computes the log-likelihood of every grid model, optimizing over the
// scale factor, Av and Rv. It is pure and deterministic.
func Fit(d Data, grid *model.Grid, opts Options) (*Result, error) {
	nmodel, nfilt := grid.NModels(), grid.NFilters()
	if err := opts.ValidateGrid(nmodel); err != nil {
		return nil, err
	}
	if len(d.Flux) != nfilt || len(d.Err) != nfilt || len(d.Mask) != nfilt {
		return nil, model.ConfigError("star has %d/%d/%d flux/err/mask values for a %d-band grid",
			len(d.Flux), len(d.Err), len(d.Mask), nfilt)
	}

	// Clean inputs.
	keep := make([]bool, nfilt)
	var flux, tvar []float64
	for j := range d.Flux {
		f, e := d.Flux[j], d.Err[j]
		if d.Mask[j] && isFinite(f) && isFinite(e) && e > 0 {
			keep[j] = true
			flux = append(flux, f)
			tvar = append(tvar, e*e)
		}
	}
	ndim := len(flux)
	if ndim == 0 {
		return nil, model.ConfigError("star has no valid bands")
	}
	if opts.DimPrior && ndim <= 3 {
		return nil, model.ConfigError("dimensional prior needs more than 3 bands, star has %d", ndim)
	}

	// Magnitude-space data.
	mags := make([]float64, ndim)
	magVar := make([]float64, ndim)
	for j, f := range flux {
		mags[j] = -2.5 * math.Log10(f)
		magVar[j] = math.Pow(2.5/math.Ln10, 2) * tvar[j] / (f * f)
		if !isFinite(mags[j]) {
			mags[j], magVar[j] = 0, unmeasuredMagVar
		}
	}

	fits := make([]*fitState, nmodel)
	for i := range fits {
		av, rv := opts.AvGauss.Mean, opts.RvGauss.Mean
		if opts.AvInit != nil {
			av = opts.AvInit[i]
		}
		if opts.RvInit != nil {
			rv = opts.RvInit[i]
		}
		fits[i] = newFitState(sed.Subset(grid.Coeffs[i], keep), clip(av, opts.AvLim), clip(rv, opts.RvLim))
	}

	o := &optimizer{opts: opts, flux: flux, tvar: tvar}
	o.magnitudeStage(fits, mags, magVar)
	for _, f := range fits {
		o.finalize(f)
	}

	// Cull poor fits before refining in flux.
	lnlInit := make([]float64, nmodel)
	for i, f := range fits {
		lnlInit[i] = -0.5 * o.chi2(f.resid)
		if isFinite(d.Parallax) && isFinite(d.ParallaxErr) {
			par := math.Sqrt(f.scale)
			lnlInit[i] -= 0.5 * (par - d.Parallax) * (par - d.Parallax) / (d.ParallaxErr * d.ParallaxErr)
		}
	}
	sel := above(lnlInit, math.Log(opts.InitThresh))
	survivors := make([]*fitState, len(sel))
	for k, i := range sel {
		survivors[k] = fits[i]
	}

	lnlSurv, chi2Surv := o.fluxStage(survivors)

	res := &Result{
		LnLike: make([]float64, nmodel),
		Chi2:   make([]float64, nmodel),
		Scale:  make([]float64, nmodel),
		Av:     make([]float64, nmodel),
		Rv:     make([]float64, nmodel),
		ICov:   make([][3][3]float64, nmodel),
		NDim:   ndim,
	}
	for i, f := range fits {
		res.LnLike[i], res.Chi2[i] = model.LogZero, model.Chi2Inf
		res.Scale[i], res.Av[i], res.Rv[i], res.ICov[i] = f.scale, f.av, f.rv, f.icov
	}

	norm := float64(ndim) * math.Log(2*math.Pi)
	for _, v := range tvar {
		norm += math.Log(v)
	}
	for k, i := range sel {
		res.Chi2[i] = chi2Surv[k]
		res.LnLike[i] = lnlSurv[k] - 0.5*norm
	}

	if opts.DimPrior {
		dist := distuv.ChiSquared{K: float64(ndim - 3)}
		for i, c := range res.Chi2 {
			res.LnLike[i] = dist.LogProb(c)
		}
	}
	return res, nil
}

// fluxStage refines the survivors in flux space until the log-likelihoods of
// the best models stop changing. It returns -chi2/2 and chi2 per survivor.
func (o *optimizer) fluxStage(fits []*fitState) ([]float64, []float64) {
	n := len(fits)
	lnl := make([]float64, n)
	chi2 := make([]float64, n)
	lnlOld := make([]float64, n)
	step := make([]float64, n)
	for k := range fits {
		lnlOld[k] = model.LogZero
		step[k] = 1
	}
	if n == 0 {
		return lnl, chi2
	}

	logThresh := math.Log(o.opts.WtThresh)
	for iter := 0; iter < maxIterations; iter++ {
		for k, f := range fits {
			o.fluxStep(f, step[k])
			o.finalize(f)
			chi2[k] = o.chi2(f.resid)
			lnl[k] = -0.5 * chi2[k]
		}

		lerr := 0.0
		for _, k := range above(lnl, logThresh) {
			lerr = math.Max(lerr, math.Abs(lnl[k]-lnlOld[k]))
		}
		for k := range fits {
			if lnl[k] < lnlOld[k] {
				step[k] /= stepShrink
			}
		}
		copy(lnlOld, lnl)
		if lerr <= o.opts.LTol {
			break
		}
	}
	return lnl, chi2
}

// above returns the indices with v[i] > max(v) + logThresh.
func above(v []float64, logThresh float64) []int {
	if len(v) == 0 {
		return nil
	}
	best := math.Inf(-1)
	for _, x := range v {
		if x > best {
			best = x
		}
	}
	var idx []int
	for i, x := range v {
		if x > best+logThresh {
			idx = append(idx, i)
		}
	}
	return idx
}

func clip(x float64, b model.Bounds) float64 {
	return math.Min(math.Max(x, b.Min), b.Max)
}

// clipStep limits a step so that x+dx stays within b.
func clipStep(dx, x float64, b model.Bounds) float64 {
	if math.IsNaN(dx) {
		return 0
	}
	if lo := b.Min - x; dx < lo {
		return lo
	}
	if hi := b.Max - x; dx > hi {
		return hi
	}
	return dx
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
