package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweassim/varda/swe"
)

func waveState(ny, nx int) swe.State {
	s := swe.NewState(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			s.U.Set(i, j, 0.4*math.Sin(2*math.Pi*float64(j)/float64(nx)))
			s.V.Set(i, j, 0.3*math.Cos(2*math.Pi*float64(i)/float64(ny)))
		}
	}
	return s
}

func TestNewEvaluatorValidation(t *testing.T) {
	_, err := NewEvaluator(0, 8, 1, 1)
	assert.Error(t, err)
	_, err = NewEvaluator(8, 8, 0, 1)
	assert.Error(t, err)
	_, err = NewEvaluator(8, 8, 1, 1)
	assert.NoError(t, err)
}

func TestSelfErrorsAreZero(t *testing.T) {
	s := waveState(8, 8)
	assert.Zero(t, EPE(s, s))
	assert.Zero(t, AngularError(s, s))
}

func TestEPEKnownDisplacement(t *testing.T) {
	var (
		a = swe.NewState(4, 4)
		b = swe.NewState(4, 4)
	)
	// Shift every velocity vector by (3,4): endpoint error is 5 everywhere.
	b.U.AddScalar(3)
	b.V.AddScalar(4)
	assert.InDelta(t, 5.0, EPE(b, a), 1e-14)
}

func TestAngularErrorOrthogonalVectors(t *testing.T) {
	var (
		a = swe.NewState(2, 2)
		b = swe.NewState(2, 2)
	)
	// (1,0,1) vs (0,1,1): cos = 1/2, angle = pi/3 at every point.
	a.U.AddScalar(1)
	b.V.AddScalar(1)
	assert.InDelta(t, math.Pi/3, AngularError(a, b), 1e-12)
}

func TestUniformFieldNormsAreZero(t *testing.T) {
	e, err := NewEvaluator(8, 8, 1, 1)
	require.NoError(t, err)
	s := swe.NewState(8, 8)
	s.U.AddScalar(0.9)
	s.V.AddScalar(-0.4)
	assert.InDelta(t, 0.0, e.GradNorm(s), 1e-12)
	assert.InDelta(t, 0.0, e.DivNorm(s), 1e-12)
	assert.InDelta(t, 0.0, e.LapNorm(s), 1e-12)
}

func TestDivergenceFreeField(t *testing.T) {
	// u depends on y only, v on x only: divergence vanishes while the
	// gradient does not.
	e, err := NewEvaluator(8, 8, 1, 1)
	require.NoError(t, err)
	s := swe.NewState(8, 8)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			s.U.Set(i, j, math.Sin(2*math.Pi*float64(i)/8))
			s.V.Set(i, j, math.Cos(2*math.Pi*float64(j)/8))
		}
	}
	assert.InDelta(t, 0.0, e.DivNorm(s), 1e-12)
	assert.Greater(t, e.GradNorm(s), 1.0)
	assert.Greater(t, e.LapNorm(s), 1.0)
}

func TestScoreOrderAndTruthRow(t *testing.T) {
	e, err := NewEvaluator(8, 8, 1, 1)
	require.NoError(t, err)
	truth := waveState(8, 8)
	row := e.Score(truth, truth)
	require.Len(t, row, NumMetrics)
	assert.Zero(t, row[MetricEPE])
	assert.Zero(t, row[MetricAngular])
	assert.Greater(t, row[MetricGradNorm], 0.0)
	assert.Greater(t, row[MetricDivNorm], 0.0)
	assert.Greater(t, row[MetricLapNorm], 0.0)

	est := truth.Copy()
	est.U.AddScalar(0.1)
	row = e.Score(est, truth)
	assert.InDelta(t, 0.1, row[MetricEPE], 1e-12)
}
