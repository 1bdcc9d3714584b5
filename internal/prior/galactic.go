package prior

import (
	"math"

	"github.com/sells-group/sedfit/internal/model"
)

// GalacticDisk is a double-exponential thin disk seen from the Sun, multiplied
// by the d^2 volume element. Lengths are in kpc.
type GalacticDisk struct {
	R0 float64 // Galactocentric radius of the Sun
	Z0 float64 // height of the Sun above the plane
	Lr float64 // radial scale length
	Lz float64 // vertical scale height
}

// DefaultGalacticDisk returns the thin disk with solar-neighbourhood values.
func DefaultGalacticDisk() GalacticDisk {
	return GalacticDisk{R0: 8.15, Z0: 0.025, Lr: 2.6, Lz: 0.3}
}

// LnPrior returns ln(d^2 * rho(R, Z)) with rho normalized to 1 at the Sun.
func (g GalacticDisk) LnPrior(dist float64, coord model.Coord, _ []float64) float64 {
	if !(dist > 0) {
		return math.Inf(-1)
	}
	r, z := g.galactocentric(dist, coord)
	return 2*math.Log(dist) - (r-g.R0)/g.Lr - (math.Abs(z)-math.Abs(g.Z0))/g.Lz
}

// galactocentric converts a heliocentric distance along (l, b) into
// cylindrical radius and height.
func (g GalacticDisk) galactocentric(dist float64, coord model.Coord) (r, z float64) {
	l := coord.L * math.Pi / 180
	b := coord.B * math.Pi / 180
	x := g.R0 - dist*math.Cos(b)*math.Cos(l)
	y := -dist * math.Cos(b) * math.Sin(l)
	return math.Hypot(x, y), dist*math.Sin(b) + g.Z0
}

// FlatDistance is uniform in space: only the volume element contributes.
type FlatDistance struct{}

// LnPrior returns ln(d^2).
func (FlatDistance) LnPrior(dist float64, _ model.Coord, _ []float64) float64 {
	if !(dist > 0) {
		return math.Inf(-1)
	}
	return 2 * math.Log(dist)
}
