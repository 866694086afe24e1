package assim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/sweassim/varda/metrics"
	"github.com/sweassim/varda/obs"
	"github.com/sweassim/varda/swe"
)

func TestVariantConstruction(t *testing.T) {
	sim := testSim(t, 8, 8)
	cfg := VarConfig{MaxIterations: 10}
	_, err := NewPlainVar(sim, 0, cfg)
	assert.Error(t, err)
	_, err = NewPlainVar(sim, 5, VarConfig{})
	assert.Error(t, err)
	_, err = NewSmoothRegularizedVar(sim, 5, nil, cfg)
	assert.Error(t, err)
	_, err = NewPlainVar(nil, 5, cfg)
	assert.Error(t, err)
	_, err = NewPlainVar(sim, 5, cfg)
	assert.NoError(t, err)
}

// standingWave builds a single-mode initial state whose evolution the
// noiseless, fully observed scenario must recover.
func standingWave(ny, nx int) swe.State {
	s := swe.NewState(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			s.Eta.Set(i, j, 0.5*math.Sin(2*math.Pi*float64(j)/float64(nx)))
			s.U.Set(i, j, 0.3*math.Cos(2*math.Pi*float64(j)/float64(nx)))
			s.V.Set(i, j, 0.2*math.Sin(2*math.Pi*float64(i)/float64(ny)))
		}
	}
	return s
}

func fullObservation(sim *swe.Sim, s0 swe.State, T int) (obsv, mask []float64) {
	var (
		n    = sim.StateShape().Len()
		traj = sim.Simulate(s0, T)
	)
	obsv = make([]float64, T*n)
	mask = make([]float64, T*n)
	for t0 := 0; t0 < T; t0++ {
		copy(obsv[t0*n:], traj[t0])
		for i := 0; i < n; i++ {
			mask[t0*n+i] = 1
		}
	}
	return
}

func TestPlainVarRecoversWellPosedCase(t *testing.T) {
	// Noiseless, fully observed, short window: the inverse problem is
	// well-posed and plain 4D-Var must recover the initial state closely.
	var (
		ny, nx = 8, 8
		sim    = testSim(t, ny, nx)
		truth  = standingWave(ny, nx)
		T      = 5
	)
	obsv, mask := fullObservation(sim, truth, T)
	fitter, err := NewPlainVar(sim, T, VarConfig{MaxIterations: 300})
	require.NoError(t, err)
	est, err := fitter.Fit(obsv, mask)
	require.NoError(t, err)

	epe := metrics.EPE(est, truth)
	scale := math.Sqrt((truth.U.SumSq() + truth.V.SumSq()) / float64(ny*nx))
	assert.Less(t, epe/scale, 1e-2, "relative EPE %g too large", epe/scale)
	assert.InDelta(t, 0.0, est.Eta.Copy().Subtract(truth.Eta).FrobNorm(), 1e-1)
}

func TestSmoothRegularizedVarRunsAndStaysSmooth(t *testing.T) {
	var (
		ny, nx = 8, 8
		sim    = testSim(t, ny, nx)
		truth  = standingWave(ny, nx)
		T      = 5
	)
	obsv, mask := fullObservation(sim, truth, T)
	regul, err := NewSmoothRegul(1e-3, 1e-3, 1, 1)
	require.NoError(t, err)
	fitter, err := NewSmoothRegularizedVar(sim, T, regul, VarConfig{MaxIterations: 300})
	require.NoError(t, err)
	est, err := fitter.Fit(obsv, mask)
	require.NoError(t, err)
	assert.Less(t, metrics.EPE(est, truth), 0.1)
}

func TestRegularizerReducesErrorUnderNoise(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-trial comparison")
	}
	// Partial, noisy observations of a smooth truth: the smoothness penalty
	// must lower the velocity endpoint error on average. The coefficients
	// matter here: at 0.1 the penalty overwhelms the misfit and hurts the
	// estimate, while 0.01 reliably helps on this grid.
	var (
		sim    = testSim(t, 8, 8)
		T      = 7
		trials = 5
		sumP   float64
		sumS   float64
	)
	regul, err := NewSmoothRegul(0.01, 0.01, 1, 1)
	require.NoError(t, err)
	for trial := 0; trial < trials; trial++ {
		g, err := obs.NewGenerator(sim, T, 3, 0.05, rand.NewSource(uint64(200+trial)))
		require.NoError(t, err)
		truth, traj := g.Sample()
		obsv, mask := g.Observe(traj)

		plain, err := NewPlainVar(sim, T, VarConfig{MaxIterations: 200})
		require.NoError(t, err)
		smooth, err := NewSmoothRegularizedVar(sim, T, regul, VarConfig{MaxIterations: 200})
		require.NoError(t, err)

		estP, err := plain.Fit(obsv, mask)
		require.NoError(t, err)
		estS, err := smooth.Fit(obsv, mask)
		require.NoError(t, err)
		sumP += metrics.EPE(estP, truth)
		sumS += metrics.EPE(estS, truth)
	}
	assert.Less(t, sumS, sumP,
		"regularized mean EPE %g should beat plain %g", sumS/float64(trials), sumP/float64(trials))
}

func TestFitSurfacesDivergence(t *testing.T) {
	var (
		sim = testSim(t, 4, 4)
		n   = sim.StateShape().Len()
		T   = 2
	)
	obsv := make([]float64, T*n)
	mask := make([]float64, T*n)
	obsv[0] = math.NaN()
	mask[0] = 1
	fitter, err := NewPlainVar(sim, T, VarConfig{MaxIterations: 10})
	require.NoError(t, err)
	_, err = fitter.Fit(obsv, mask)
	assert.Error(t, err, "NaN observations must not yield a silent estimate")
}

func TestDeepPriorFitSurfacesDivergence(t *testing.T) {
	var (
		sim = testSim(t, 8, 8)
		n   = sim.StateShape().Len()
		T   = 2
	)
	obsv := make([]float64, T*n)
	mask := make([]float64, T*n)
	obsv[0] = math.NaN()
	mask[0] = 1
	gen := testGenerator(t, 8, 8)
	fitter, err := NewDeepPriorVar(sim, T, gen, nil, DeepPriorConfig{
		Epochs: 5, LearningRate: 0.01, Beta1: 0.9,
	})
	require.NoError(t, err)
	_, err = fitter.Fit(obsv, mask)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDiverged))
}
