package likelihood

import (
	"math"

	"github.com/sells-group/sedfit/internal/sed"
)

// Precision ridge added to the Av and Rv diagonal terms so the local Gaussian
// approximation stays well conditioned.
const (
	minScale = 1e-20
	avRidge  = 1 / (0.05 * 0.05)
	rvRidge  = 1 / (0.1 * 0.1)
)

// fitState is the transient fit of one model to one star.
type fitState struct {
	coeffs [][3]float64

	// models, rvec and drvec are in magnitudes during the magnitude stage and
	// scaled flux densities afterwards.
	models []float64
	rvec   []float64
	drvec  []float64
	resid  []float64

	scale, av, rv float64
	icov          [3][3]float64
}

func newFitState(coeffs [][3]float64, av, rv float64) *fitState {
	models, rvec, drvec := sed.Magnitudes(coeffs, av, rv)
	return &fitState{
		coeffs: coeffs,
		models: models,
		rvec:   rvec,
		drvec:  drvec,
		resid:  make([]float64, len(coeffs)),
		av:     av,
		rv:     rv,
	}
}

// optimizer carries the cleaned photometry shared by every model of a star.
type optimizer struct {
	opts Options
	flux []float64
	tvar []float64
}

func (o *optimizer) chi2(resid []float64) float64 {
	var c float64
	for j, r := range resid {
		c += r * r / o.tvar[j]
	}
	return c
}

// magnitudeStage alternates closed-form Av and Rv updates in magnitude space.
// The scale factor enters as a free magnitude offset that is marginalized in
// the 2x2 normal equations of each update.
func (o *optimizer) magnitudeStage(fits []*fitState, mags, magVar []float64) {
	avMean, avPrec := o.opts.AvGauss.Mean, o.opts.AvGauss.Precision()
	rvMean, rvPrec := o.opts.RvGauss.Mean, o.opts.RvGauss.Precision()
	tol := 2.5 * o.opts.LTol

	var sDen float64
	for _, v := range magVar {
		sDen += 1 / v
	}
	rpDen := make([]float64, len(fits))
	srpMix := make([]float64, len(fits))
	for i, f := range fits {
		for j := range mags {
			f.resid[j] = mags[j] - f.models[j]
			rpDen[i] += f.drvec[j] * f.drvec[j] / magVar[j]
			srpMix[i] += f.drvec[j] / magVar[j]
		}
	}

	dav := make([]float64, len(fits))
	drv := make([]float64, len(fits))
	logwt := make([]float64, len(fits))
	for iter := 0; iter < maxIterations; iter++ {
		for i, f := range fits {
			// Av.
			var aDen, saMix, residS, residA float64
			for j, v := range magVar {
				aDen += f.rvec[j] * f.rvec[j] / v
				saMix += f.rvec[j] / v
				residS += f.resid[j] / v
				residA += f.resid[j] * f.rvec[j] / v
			}
			residA += (avMean - f.av) * avPrec
			aDen += avPrec
			dav[i] = (sDen*residA - saMix*residS) / (sDen*aDen - saMix*saMix)
			dav[i] = clipStep(dav[i], f.av, o.opts.AvLim)
			f.av += dav[i]
			for j := range f.resid {
				f.resid[j] -= dav[i] * f.rvec[j]
			}

			// Rv, using the updated Av in the cross terms.
			rDen := rpDen[i] * f.av * f.av
			srMix := srpMix[i] * f.av
			var residR float64
			residS = 0
			for j, v := range magVar {
				residS += f.resid[j] / v
				residR += f.resid[j] * f.drvec[j] / v
			}
			residR *= f.av
			residR += (rvMean - f.rv) * rvPrec
			rDen += rvPrec
			drv[i] = (sDen*residR - srMix*residS) / (sDen*rDen - srMix*srMix)
			drv[i] = clipStep(drv[i], f.rv, o.opts.RvLim)
			f.rv += drv[i]
			var chi2 float64
			for j := range f.resid {
				f.resid[j] -= f.av * drv[i] * f.drvec[j]
				f.rvec[j] += drv[i] * f.drvec[j]
				chi2 += f.resid[j] * f.resid[j] / magVar[j]
			}
			logwt[i] = -0.5 * chi2
		}

		var maxStep float64
		for _, i := range above(logwt, math.Log(o.opts.InitThresh)) {
			maxStep = math.Max(maxStep, math.Max(math.Abs(dav[i]), math.Abs(drv[i])))
		}
		if maxStep <= tol {
			return
		}
	}
}

// fluxStep takes one single-parameter ML step in Av and in Rv, scaled by the
// model's current step size. It expects flux-space vectors from finalize.
func (o *optimizer) fluxStep(f *fitState, step float64) {
	var aNum, aDen, rNum, rDen float64
	for j, v := range o.tvar {
		aNum += f.rvec[j] * f.resid[j] / v
		aDen += f.rvec[j] * f.rvec[j] / v
		rNum += f.drvec[j] * f.resid[j] / v
		rDen += f.drvec[j] * f.drvec[j] / v
	}
	aNum += (o.opts.AvGauss.Mean - f.av) * o.opts.AvGauss.Precision()
	aDen += o.opts.AvGauss.Precision()
	rNum += (o.opts.RvGauss.Mean - f.rv) * o.opts.RvGauss.Precision()
	rDen += o.opts.RvGauss.Precision()

	dav := clipStep(step*aNum/aDen, f.av, o.opts.AvLim)
	f.av += dav
	drv := clipStep(step*rNum/rDen, f.rv, o.opts.RvLim)
	f.rv += drv
}

// finalize recomputes the flux-space model at the current (Av, Rv), solves for
// the ML scale factor and builds the precision matrix about (scale, Av, Rv).
func (o *optimizer) finalize(f *fitState) {
	models, rvec, drvec := sed.Fluxes(f.coeffs, f.av, f.rv)
	intrinsic := sed.Intrinsic(f.coeffs)

	var sNum, sDen float64
	for j, v := range o.tvar {
		sNum += models[j] * o.flux[j] / v
		sDen += models[j] * models[j] / v
	}
	scale := sNum / sDen
	if !(scale > minScale) {
		scale = minScale
	}

	reddening := make([]float64, len(models))
	for j := range models {
		reddening[j] = models[j] - intrinsic[j]
		models[j] *= scale
		f.resid[j] = o.flux[j] - models[j]
	}

	var srMix, saMix float64
	for j, v := range o.tvar {
		srMix += drvec[j] * (models[j] - f.resid[j]) / v
		saMix += rvec[j] * (models[j] - f.resid[j]) / v
	}

	var arMix, aDen, rDen float64
	for j, v := range o.tvar {
		rvec[j] *= scale
		drvec[j] *= scale
		reddening[j] *= scale
		arMix += drvec[j] * (reddening[j] - f.resid[j]) / v
		aDen += rvec[j] * rvec[j] / v
		rDen += drvec[j] * drvec[j] / v
	}
	aDen += o.opts.AvGauss.Precision() + avRidge
	rDen += o.opts.RvGauss.Precision() + rvRidge

	f.models, f.rvec, f.drvec = models, rvec, drvec
	f.scale = scale
	f.icov = [3][3]float64{
		{sDen, saMix, srMix},
		{saMix, aDen, arMix},
		{srMix, arMix, rDen},
	}
}
