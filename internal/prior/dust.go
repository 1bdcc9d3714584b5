package prior

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/sedfit/internal/model"
)

// FlatDust places no constraint on Av.
type FlatDust struct{}

// LnPrior returns 0.
func (FlatDust) LnPrior(float64, model.Coord, float64) float64 { return 0 }

// LinearDust models extinction growing linearly with distance: Av ~ N(Rate*d,
// Std), truncated at zero.
type LinearDust struct {
	Rate float64 // mag/kpc
	Std  float64 // mag
}

// LnPrior returns the truncated normal log-density of av.
func (p LinearDust) LnPrior(dist float64, _ model.Coord, av float64) float64 {
	if av < 0 {
		return math.Inf(-1)
	}
	n := distuv.Normal{Mu: p.Rate * dist, Sigma: p.Std}
	return n.LogProb(av) - math.Log(n.Survival(0))
}
