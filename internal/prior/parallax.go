package prior

import "math"

// minParallax floors the parallax used by ScaleParallax.
const minParallax = 1e-20

// GaussianParallax is N(obs | est, estErr^2 + obsErr^2).
type GaussianParallax struct{}

// LnPrior returns the Gaussian log-density of the observed parallax.
func (GaussianParallax) LnPrior(est, estErr, obs, obsErr float64) float64 {
	return lnNormal(obs, est, estErr*estErr+obsErr*obsErr)
}

// ScaleParallax scores a fitted scale factor s = parallax^2 against an
// observed parallax by moment-matching the parallax likelihood in scale space.
// It is only used to pre-select models before Monte Carlo integration.
func ScaleParallax(s, sErr, par, parErr float64) float64 {
	p := math.Max(par, minParallax)
	v := parErr * parErr
	mean := p*p + v
	variance := 2*v*v + 4*p*p*v
	return lnNormal(s, mean, sErr*sErr+variance)
}
