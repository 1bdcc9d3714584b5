// Package sed evaluates reddened model photometry from grid coefficients.
package sed

import (
	"math"

	"github.com/sells-group/sedfit/internal/model"
)

// fluxFactor converts magnitude derivatives into flux derivatives: d(flux) = fluxFactor * flux * d(mag).
var fluxFactor = -0.4 * math.Ln10

// Magnitudes returns the reddened magnitudes of one model together with its
// reddening vector dm/dAv and the Rv derivative of that vector.
func Magnitudes(coeffs [][3]float64, av, rv float64) (mags, rvec, drvec []float64) {
	n := len(coeffs)
	mags = make([]float64, n)
	rvec = make([]float64, n)
	drvec = make([]float64, n)
	for j, c := range coeffs {
		drvec[j] = c[model.CoeffDR]
		rvec[j] = c[model.CoeffR0] + rv*c[model.CoeffDR]
		mags[j] = c[model.CoeffMag] + av*rvec[j]
	}
	return mags, rvec, drvec
}

// Fluxes is Magnitudes expressed in flux densities: rvec becomes dF/dAv and
// drvec becomes dF/dRv.
func Fluxes(coeffs [][3]float64, av, rv float64) (flux, rvec, drvec []float64) {
	flux, rvec, drvec = Magnitudes(coeffs, av, rv)
	for j, m := range flux {
		f := math.Pow(10, -0.4*m)
		flux[j] = f
		rvec[j] *= fluxFactor * f
		drvec[j] *= fluxFactor * f * av
	}
	return flux, rvec, drvec
}

// Intrinsic returns the unreddened model fluxes.
func Intrinsic(coeffs [][3]float64) []float64 {
	out := make([]float64, len(coeffs))
	for j, c := range coeffs {
		out[j] = math.Pow(10, -0.4*c[model.CoeffMag])
	}
	return out
}

// Magnitude converts a flux density and its error into a magnitude and
// magnitude error. Non-positive fluxes give NaN/Inf, which callers mask.
func Magnitude(flux, err float64) (float64, float64) {
	return -2.5 * math.Log10(flux), 2.5 / math.Ln10 * err / flux
}

// Subset keeps only the bands with keep[j] set.
func Subset(coeffs [][3]float64, keep []bool) [][3]float64 {
	out := make([][3]float64, 0, len(coeffs))
	for j, c := range coeffs {
		if keep[j] {
			out = append(out, c)
		}
	}
	return out
}
