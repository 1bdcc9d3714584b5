package posterior

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ridge fractions added per repair pass: 5% of the scale factor, 0.05 mag in
// Av and 0.1 in Rv.
const (
	scaleRidgeFrac = 0.05
	avRidgeWidth   = 0.05
	rvRidgeWidth   = 0.1

	// maxRepairs caps the ridge loop; matrices that are still degenerate
	// (non-finite input) fall back to the ridge alone.
	maxRepairs = 100
)

// Inverse3 inverts a 3x3 matrix by cofactor expansion.
func Inverse3(m [3][3]float64) [3][3]float64 {
	var c [3][3]float64
	c[0][0] = m[1][1]*m[2][2] - m[1][2]*m[2][1]
	c[0][1] = -(m[0][1]*m[2][2] - m[0][2]*m[2][1])
	c[0][2] = m[0][1]*m[1][2] - m[0][2]*m[1][1]
	c[1][0] = -(m[1][0]*m[2][2] - m[1][2]*m[2][0])
	c[1][1] = m[0][0]*m[2][2] - m[0][2]*m[2][0]
	c[1][2] = -(m[0][0]*m[1][2] - m[0][2]*m[1][0])
	c[2][0] = m[1][0]*m[2][1] - m[1][1]*m[2][0]
	c[2][1] = -(m[0][0]*m[2][1] - m[0][1]*m[2][0])
	c[2][2] = m[0][0]*m[1][1] - m[0][1]*m[1][0]

	det := m[0][0]*c[0][0] + m[0][1]*c[1][0] + m[0][2]*c[2][0]
	for a := range c {
		for b := range c[a] {
			c[a][b] /= det
		}
	}
	return c
}

// IsPSD reports whether m is finite, symmetric and has strictly positive
// eigenvalues.
func IsPSD(m [3][3]float64) bool {
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			if math.IsNaN(m[a][b]) || math.IsInf(m[a][b], 0) || m[a][b] != m[b][a] {
				return false
			}
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(symDense(m), false) {
		return false
	}
	for _, v := range eig.Values(nil) {
		if !(v > 0) {
			return false
		}
	}
	return true
}

// Repair returns the covariance of icov, adding a growing diagonal ridge to
// the precision until the covariance is positive definite. It also returns the
// number of ridge passes applied.
func Repair(icov [3][3]float64, scale float64) ([3][3]float64, int) {
	cov := Inverse3(icov)
	ridge := ridgeDiag(scale)
	count := 0
	for !IsPSD(cov) {
		count++
		if count > maxRepairs {
			var fallback [3][3]float64
			for a := range ridge {
				fallback[a][a] = 1 / ridge[a]
			}
			return fallback, count
		}
		for a := range ridge {
			icov[a][a] += float64(count) * ridge[a]
		}
		cov = Inverse3(icov)
	}
	return cov, count
}

func ridgeDiag(scale float64) [3]float64 {
	s := scaleRidgeFrac * scale
	return [3]float64{1 / (s * s), 1 / (avRidgeWidth * avRidgeWidth), 1 / (rvRidgeWidth * rvRidgeWidth)}
}

func symDense(m [3][3]float64) *mat.SymDense {
	return mat.NewSymDense(3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
}
