package posterior

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/sedfit/internal/model"
)

// SelectionMode picks how survivors are thresholded.
type SelectionMode string

// Selection modes. Exactly one applies per run.
const (
	SelectWeight SelectionMode = "weight"
	SelectCDF    SelectionMode = "cdf"
)

// Selection thresholds the log-probabilities of the grid.
type Selection struct {
	Mode      SelectionMode
	WtThresh  float64 // weight mode: keep lnprob > max + ln(WtThresh)
	CDFThresh float64 // cdf mode: keep the top 1-CDFThresh of probability mass
}

// Validate checks the mode and its threshold.
func (s Selection) Validate() error {
	switch s.Mode {
	case SelectWeight:
		if !(s.WtThresh > 0 && s.WtThresh < 1) {
			return model.ConfigError("weight threshold must lie in (0, 1), got %g", s.WtThresh)
		}
	case SelectCDF:
		if !(s.CDFThresh >= 0 && s.CDFThresh < 1) {
			return model.ConfigError("cdf threshold must lie in [0, 1), got %g", s.CDFThresh)
		}
	default:
		return model.ConfigError("unknown selection mode %q", s.Mode)
	}
	return nil
}

// Apply returns the selected indices of lnprob in ascending order.
func (s Selection) Apply(lnprob []float64) []int {
	if len(lnprob) == 0 {
		return nil
	}
	if s.Mode == SelectCDF {
		return selectCDF(lnprob, s.CDFThresh)
	}
	cut := floats.Max(lnprob) + math.Log(s.WtThresh)
	var sel []int
	for i, v := range lnprob {
		if v > cut {
			sel = append(sel, i)
		}
	}
	if len(sel) == 0 {
		// Every model sits at the sentinel floor.
		sel = append(sel, floats.MaxIdx(lnprob))
	}
	return sel
}

// selectCDF drops the least probable models that together hold at most
// thresh of the probability mass, keeping the top 1-thresh.
func selectCDF(lnprob []float64, thresh float64) []int {
	idx := make([]int, len(lnprob))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case lnprob[a] < lnprob[b]:
			return -1
		case lnprob[a] > lnprob[b]:
			return 1
		}
		return 0
	})

	norm := floats.LogSumExp(lnprob)
	var cdf float64
	var sel []int
	for _, i := range idx {
		cdf += math.Exp(lnprob[i] - norm)
		if cdf > thresh {
			sel = append(sel, i)
		}
	}
	if len(sel) == 0 {
		sel = append(sel, idx[len(idx)-1])
	}
	slices.Sort(sel)
	return sel
}
