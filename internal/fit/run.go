package fit

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/sedfit/internal/likelihood"
	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/posterior"
	"github.com/sells-group/sedfit/internal/sink"
)

// progressInterval throttles per-chunk progress logs.
const progressInterval = 10 * time.Second

// Summary describes a finished catalog fit.
type Summary struct {
	Stars   int
	Chunks  int
	Elapsed time.Duration
}

// Run validates the catalog and fits every star, writing results to out in
// catalog order. Stars are processed in chunks of Workers; each chunk is
// fitted concurrently and fully written before the next one starts. The
// random stream of star i is derived from (seed, i), so results do not depend
// on the worker count.
func (f *Fitter) Run(ctx context.Context, cat *model.Catalog, out sink.Sink, seed uint64) (*Summary, error) {
	if err := f.Validate(cat); err != nil {
		return nil, err
	}

	start := time.Now()
	workers := f.cfg.Workers
	n := cat.Len()
	progress := rate.Sometimes{First: 1, Interval: progressInterval}
	sum := &Summary{Stars: n}

	f.log.Info("fitting catalog",
		zap.Int("stars", n),
		zap.Int("models", f.grid.NModels()),
		zap.Int("bands", f.grid.NFilters()),
		zap.Int("workers", workers),
		zap.Uint64("seed", seed),
	)

	for lo := 0; lo < n; lo += workers {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "fit: cancelled")
		}
		hi := min(lo+workers, n)
		recs := make([]*model.ResultRecord, hi-lo)

		g := new(errgroup.Group)
		g.SetLimit(workers)
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				rec, err := f.FitStar(i, &cat.Observations[i], seed)
				if err != nil {
					return eris.Wrapf(err, "fit: star %d", i)
				}
				recs[i-lo] = rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return sum, err
		}
		sum.Chunks++

		for k, rec := range recs {
			if err := out.Write(ctx, lo+k, rec); err != nil {
				return sum, err
			}
		}

		last := recs[len(recs)-1]
		progress.Do(func() {
			f.log.Info("fit progress",
				zap.Int("done", hi),
				zap.Int("total", n),
				zap.Float64("chi2_min", last.Chi2Min),
				zap.Int("n_bands", last.NBands),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}

	sum.Elapsed = time.Since(start)
	f.log.Info("catalog fit complete",
		zap.Int("stars", n),
		zap.Int("chunks", sum.Chunks),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// FitStar runs the full pipeline for one star. index selects the star's
// random stream.
func (f *Fitter) FitStar(index int, obs *model.Observation, seed uint64) (*model.ResultRecord, error) {
	rng := rand.New(rand.NewPCG(seed, uint64(index)))

	flux, ferr := f.applyOffsets(obs)
	par, parErr := obs.ParallaxValues()
	data := likelihood.Data{
		Flux:        flux,
		Err:         ferr,
		Mask:        f.cleanMask(obs, flux, ferr),
		Parallax:    par,
		ParallaxErr: parErr,
	}
	lres, err := likelihood.Fit(data, f.grid, f.cfg.Likelihood)
	if err != nil {
		return nil, err
	}

	in := posterior.Input{Fit: lres, Parallax: obs.Parallax, ParallaxErr: obs.ParallaxErr}
	if obs.Coord != nil {
		in.Coord = *obs.Coord
	}
	if f.cfg.DistanceLabels {
		in.Labels = f.grid.Labels
	}
	priors := posterior.Priors{
		Grid:     f.lnprior,
		Distance: f.priors.Distance,
		Dust:     f.priors.Dust,
		Parallax: f.priors.Parallax,
	}
	pres, err := posterior.Integrate(in, priors, f.cfg.Posterior, rng)
	if err != nil {
		return nil, err
	}

	rec := &model.ResultRecord{
		Index:    index,
		ObjectID: obs.ID,
		NBands:   lres.NDim,
		Chi2Min:  math.Inf(1),
	}
	hasParallax := finite(par) && finite(parErr)
	if hasParallax {
		rec.NBands++
	}
	for _, i := range pres.Sel {
		chi2 := lres.Chi2[i]
		if hasParallax {
			d := math.Sqrt(lres.Scale[i]) - par
			chi2 += d * d / (parErr * parErr)
		}
		rec.Chi2Min = math.Min(rec.Chi2Min, chi2)
	}
	rec.LogEvidence = floats.LogSumExp(pres.LnPost)

	f.resample(rec, lres, pres, rng)
	return rec, nil
}

// resample draws NDraws survivors with replacement by posterior weight, then
// one Monte Carlo realization of each draw by its prior weight.
func (f *Fitter) resample(rec *model.ResultRecord, lres *likelihood.Result, pres *posterior.Result, rng *rand.Rand) {
	nd := f.cfg.NDraws
	pick := distuv.NewCategorical(normWeights(pres.LnPost), rng)

	rec.ModelIdx = make([]int, nd)
	rec.Scale = make([]float64, nd)
	rec.Av = make([]float64, nd)
	rec.Rv = make([]float64, nd)
	rec.Cov = make([][3][3]float64, nd)
	rec.LogPost = make([]float64, nd)
	kidx := make([]int, nd)
	for d := 0; d < nd; d++ {
		k := int(pick.Rand())
		i := pres.Sel[k]
		kidx[d] = k
		rec.ModelIdx[d] = i
		rec.Scale[d] = lres.Scale[i]
		rec.Av[d] = lres.Av[i]
		rec.Rv[d] = lres.Rv[i]
		rec.Cov[d] = pres.Cov[k]
		rec.LogPost[d] = pres.LnPost[k]
	}

	if pres.Draws == nil {
		return
	}
	rec.Draws = &model.Draws{
		Dist:  make([]float64, nd),
		Av:    make([]float64, nd),
		Rv:    make([]float64, nd),
		LogWt: make([]float64, nd),
	}
	for d, k := range kidx {
		samples := pres.Draws[k]
		logwt := make([]float64, len(samples))
		for m, s := range samples {
			logwt[m] = s.LogWt
		}
		s := samples[int(distuv.NewCategorical(normWeights(logwt), rng).Rand())]
		rec.Draws.Dist[d] = s.Dist
		rec.Draws.Av[d] = s.Av
		rec.Draws.Rv[d] = s.Rv
		rec.Draws.LogWt[d] = s.LogWt
	}
}

// normWeights converts log-weights into probabilities summing to one. Weights
// with no finite total are treated as uniform.
func normWeights(logw []float64) []float64 {
	w := make([]float64, len(logw))
	norm := floats.LogSumExp(logw)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		for i := range w {
			w[i] = 1 / float64(len(w))
		}
		return w
	}
	for i, l := range logw {
		w[i] = math.Exp(l - norm)
		if math.IsNaN(w[i]) {
			w[i] = 0
		}
	}
	return w
}
