// Package prior provides the distance, dust, parallax and grid priors used
// when turning per-model likelihoods into posteriors.
package prior

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/sedfit/internal/model"
)

// DistancePrior evaluates the log-density of a distance (kpc) along a line of
// sight. labels is the grid label row of the model being integrated, or nil.
type DistancePrior interface {
	LnPrior(dist float64, coord model.Coord, labels []float64) float64
}

// DustPrior evaluates the log-density of an extinction at a distance.
type DustPrior interface {
	LnPrior(dist float64, coord model.Coord, av float64) float64
}

// ParallaxPrior evaluates the log-probability of an observed parallax given an
// estimate and its error.
type ParallaxPrior interface {
	LnPrior(est, estErr, obs, obsErr float64) float64
}

// DistanceFunc adapts a function to DistancePrior.
type DistanceFunc func(dist float64, coord model.Coord, labels []float64) float64

// LnPrior calls f.
func (f DistanceFunc) LnPrior(dist float64, coord model.Coord, labels []float64) float64 {
	return f(dist, coord, labels)
}

// DustFunc adapts a function to DustPrior.
type DustFunc func(dist float64, coord model.Coord, av float64) float64

// LnPrior calls f.
func (f DustFunc) LnPrior(dist float64, coord model.Coord, av float64) float64 {
	return f(dist, coord, av)
}

// ParallaxFunc adapts a function to ParallaxPrior.
type ParallaxFunc func(est, estErr, obs, obsErr float64) float64

// LnPrior calls f.
func (f ParallaxFunc) LnPrior(est, estErr, obs, obsErr float64) float64 {
	return f(est, estErr, obs, obsErr)
}

// Set bundles the priors applied to one catalog.
type Set struct {
	Distance DistancePrior
	Dust     DustPrior
	Parallax ParallaxPrior

	// NeedsCoords is true when Distance or Dust depend on sky position.
	NeedsCoords bool
}

// Defaults returns the Galactic disk distance prior, a flat dust prior and the
// Gaussian parallax prior.
func Defaults() Set {
	return Set{
		Distance:    DefaultGalacticDisk(),
		Dust:        FlatDust{},
		Parallax:    GaussianParallax{},
		NeedsCoords: true,
	}
}

func lnNormal(x, mean, variance float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: math.Sqrt(variance)}.LogProb(x)
}
