package prior

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/sedfit/internal/model"
)

// trapz integrates f over [a, b] with n intervals.
func trapz(f func(float64) float64, a, b float64, n int) float64 {
	h := (b - a) / float64(n)
	sum := 0.5 * (f(a) + f(b))
	for i := 1; i < n; i++ {
		sum += f(a + float64(i)*h)
	}
	return sum * h
}

func TestGalacticDisk_VolumeElementNearSun(t *testing.T) {
	g := DefaultGalacticDisk()
	c := model.Coord{L: 90, B: 0}

	// Tangent to the solar circle the density barely changes at 10 pc.
	got := g.LnPrior(0.01, c, nil)
	assert.InDelta(t, 2*math.Log(0.01), got, 1e-3)
}

func TestGalacticDisk_CentreDenserThanAnticentre(t *testing.T) {
	g := DefaultGalacticDisk()
	toward := g.LnPrior(3, model.Coord{L: 0, B: 0}, nil)
	away := g.LnPrior(3, model.Coord{L: 180, B: 0}, nil)
	assert.Greater(t, toward, away)
	assert.InDelta(t, 6/g.Lr, toward-away, 1e-9)
}

func TestGalacticDisk_FallsOffVertically(t *testing.T) {
	g := DefaultGalacticDisk()
	plane := g.LnPrior(1, model.Coord{L: 90, B: 0}, nil)
	pole := g.LnPrior(1, model.Coord{L: 90, B: 90}, nil)
	assert.Less(t, pole, plane)
}

func TestDistance_NonPositive(t *testing.T) {
	assert.True(t, math.IsInf(DefaultGalacticDisk().LnPrior(0, model.Coord{}, nil), -1))
	assert.True(t, math.IsInf(FlatDistance{}.LnPrior(-1, model.Coord{}, nil), -1))
	assert.InDelta(t, 2*math.Log(2), FlatDistance{}.LnPrior(2, model.Coord{}, nil), 1e-12)
}

func TestLinearDust_Normalized(t *testing.T) {
	p := LinearDust{Rate: 0.5, Std: 0.4}
	total := trapz(func(av float64) float64 {
		return math.Exp(p.LnPrior(0.2, model.Coord{}, av))
	}, 0, 10, 20000)
	assert.InDelta(t, 1.0, total, 1e-4)
	assert.True(t, math.IsInf(p.LnPrior(1, model.Coord{}, -0.1), -1))
}

func TestFlatDust(t *testing.T) {
	assert.Zero(t, FlatDust{}.LnPrior(3, model.Coord{L: 10}, 2))
}

func TestGaussianParallax(t *testing.T) {
	want := distuv.Normal{Mu: 1.2, Sigma: math.Sqrt(0.01 + 0.04)}.LogProb(1.0)
	assert.InDelta(t, want, GaussianParallax{}.LnPrior(1.2, 0.1, 1.0, 0.2), 1e-12)
}

func TestScaleParallax_PeaksNearSquaredParallax(t *testing.T) {
	par, parErr := 2.0, 0.05
	at := ScaleParallax(par*par, 0.01, par, parErr)
	off := ScaleParallax(1.0, 0.01, par, parErr)
	assert.Greater(t, at, off)

	// Negative parallaxes are floored rather than producing NaN.
	assert.False(t, math.IsNaN(ScaleParallax(1e-6, 1e-3, -0.5, 0.3)))
}

func TestAdapters(t *testing.T) {
	var d DistancePrior = DistanceFunc(func(dist float64, _ model.Coord, labels []float64) float64 {
		return dist + labels[0]
	})
	assert.Equal(t, 3.0, d.LnPrior(1, model.Coord{}, []float64{2}))

	var u DustPrior = DustFunc(func(_ float64, _ model.Coord, av float64) float64 { return -av })
	assert.Equal(t, -2.0, u.LnPrior(1, model.Coord{}, 2))

	var p ParallaxPrior = ParallaxFunc(func(est, _, obs, _ float64) float64 { return est - obs })
	assert.Equal(t, 1.0, p.LnPrior(3, 0, 2, 0))
}

func TestIMF_Normalized(t *testing.T) {
	imf := DefaultIMF()
	// Integrate in ln(m) to cover the long tail.
	total := trapz(func(lnm float64) float64 {
		m := math.Exp(lnm)
		return m * math.Exp(imf.LnPrior(m))
	}, math.Log(imf.MassMin), math.Log(1e5), 200000)
	assert.InDelta(t, 1.0, total, 1e-3)
}

func TestIMF_ContinuousAtBreak(t *testing.T) {
	imf := DefaultIMF()
	lo := imf.LnPrior(imf.MassBreak)
	hi := imf.LnPrior(imf.MassBreak + 1e-9)
	assert.InDelta(t, lo, hi, 1e-6)
}

func labelledGrid() *model.Grid {
	return &model.Grid{
		Coeffs:     make([][][3]float64, 5),
		LabelNames: []string{"feh", "agewt", "logt"},
		LabelMask:  []bool{true, false, false},
		Labels: [][]float64{
			{-1.0, 2, 3.7},
			{-0.5, 1, 3.7},
			{0.0, 0.5, 3.8},
			{0.0, -4, 3.8},
			{0.5, 1, 3.9},
		},
	}
}

func TestGridPrior_Gradient(t *testing.T) {
	out, err := GridPrior(labelledGrid(), GridOptions{ApplyGrad: true})
	require.NoError(t, err)

	// Unique feh = -1, -0.5, 0, 0.5: spacing 0.5 everywhere.
	for _, v := range out {
		assert.InDelta(t, math.Log(0.5), v, 1e-12)
	}
}

func TestGridPrior_IrregularSpacing(t *testing.T) {
	g := &model.Grid{
		Coeffs:     make([][][3]float64, 4),
		LabelNames: []string{"eep"},
		LabelMask:  []bool{true},
		Labels:     [][]float64{{0}, {1}, {3}, {3}},
	}
	out, err := GridPrior(g, GridOptions{ApplyGrad: true})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1), out[0], 1e-12)
	assert.InDelta(t, math.Log(1.5), out[1], 1e-12)
	assert.InDelta(t, math.Log(2), out[2], 1e-12)
	assert.Equal(t, out[2], out[3])
}

func TestGridPrior_AgeWeight(t *testing.T) {
	out, err := GridPrior(labelledGrid(), GridOptions{
		Base:           []float64{0, 0, 0, 0, 1},
		ApplyAgeWeight: true,
	})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), out[0], 1e-12)
	assert.InDelta(t, math.Log(4), out[3], 1e-12)
	assert.InDelta(t, 1.0, out[4], 1e-12)
}

func TestGridPrior_DefaultsToIMF(t *testing.T) {
	g := &model.Grid{
		Coeffs:     make([][][3]float64, 2),
		LabelNames: []string{LabelInitialMass},
		LabelMask:  []bool{true},
		Labels:     [][]float64{{0.3}, {1.0}},
	}
	out, err := GridPrior(g, GridOptions{})
	require.NoError(t, err)
	assert.InDelta(t, DefaultIMF().LnPrior(0.3), out[0], 1e-12)
	assert.Greater(t, out[0], out[1])
}

func TestGridPrior_NoLabels(t *testing.T) {
	out, err := GridPrior(&model.Grid{Coeffs: make([][][3]float64, 3)}, GridOptions{ApplyAgeWeight: true, ApplyGrad: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, out)
}

func TestGridPrior_BaseLengthMismatch(t *testing.T) {
	_, err := GridPrior(labelledGrid(), GridOptions{Base: []float64{1, 2}})
	require.Error(t, err)
}
