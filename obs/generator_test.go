package obs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/sweassim/varda/swe"
)

func testSim(t *testing.T) *swe.Sim {
	t.Helper()
	sim, err := swe.NewSim(swe.Params{
		Nx: 8, Ny: 8, Dx: 1, Dy: 1, Dt: 0.05, Gravity: 9.81, Depth: 1,
	})
	require.NoError(t, err)
	return sim
}

func TestNewGeneratorValidation(t *testing.T) {
	sim := testSim(t)
	src := rand.NewSource(1)
	_, err := NewGenerator(sim, 0, 1, 0.1, src)
	assert.Error(t, err)
	_, err = NewGenerator(sim, 5, 0, 0.1, src)
	assert.Error(t, err)
	_, err = NewGenerator(sim, 5, 1, -0.1, src)
	assert.Error(t, err)
	_, err = NewGenerator(sim, 5, 1, 0.1, nil)
	assert.Error(t, err)
}

func TestMaskStructure(t *testing.T) {
	var (
		sim  = testSim(t)
		n    = swe.NumChannels * 8 * 8
		T    = 7
		strd = 3
	)
	g, err := NewGenerator(sim, T, strd, 0.1, rand.NewSource(7))
	require.NoError(t, err)
	_, traj := g.Sample()
	obsv, mask := g.Observe(traj)
	require.Len(t, obsv, T*n)
	require.Len(t, mask, T*n)
	for t0 := 0; t0 < T; t0++ {
		want := 0.0
		if t0%strd == 0 {
			want = 1.0
		}
		for i := 0; i < n; i++ {
			require.Equal(t, want, mask[t0*n+i], "step %d", t0)
		}
	}
	// Unobserved entries hold zeros.
	for i := range obsv {
		if mask[i] == 0 {
			require.Zero(t, obsv[i])
		}
	}
}

func TestNoiselessObservationsMatchTrajectory(t *testing.T) {
	var (
		sim = testSim(t)
		n   = swe.NumChannels * 8 * 8
	)
	g, err := NewGenerator(sim, 5, 1, 0, rand.NewSource(11))
	require.NoError(t, err)
	_, traj := g.Sample()
	obsv, mask := g.Observe(traj)
	for t0 := 0; t0 < 5; t0++ {
		for i := 0; i < n; i++ {
			require.Equal(t, 1.0, mask[t0*n+i])
			require.InDelta(t, traj[t0][i], obsv[t0*n+i], 1e-14)
		}
	}
}

func TestSeededDeterminism(t *testing.T) {
	sim := testSim(t)
	draw := func(seed uint64) ([]float64, []float64, []float64) {
		g, err := NewGenerator(sim, 6, 2, 0.05, rand.NewSource(seed))
		require.NoError(t, err)
		ic, traj := g.Sample()
		obsv, mask := g.Observe(traj)
		return ic.Flat(), obsv, mask
	}
	ic1, o1, m1 := draw(99)
	ic2, o2, m2 := draw(99)
	assert.Equal(t, ic1, ic2)
	assert.Equal(t, o1, o2)
	assert.Equal(t, m1, m2)

	ic3, _, _ := draw(100)
	assert.NotEqual(t, ic1, ic3)
}

type memWriter struct {
	fields map[string][]float64
}

func (m *memWriter) SaveField(sample int, kind string, data []float64) error {
	m.fields[kind+string(rune('0'+sample))] = append([]float64(nil), data...)
	return nil
}

func TestDatasetWritesAllKinds(t *testing.T) {
	sim := testSim(t)
	g, err := NewGenerator(sim, 4, 2, 0.05, rand.NewSource(3))
	require.NoError(t, err)
	w := &memWriter{fields: map[string][]float64{}}
	require.NoError(t, g.Dataset(2, w))
	assert.Len(t, w.fields, 6)
	for _, kind := range []string{KindInitial, KindObs, KindMask} {
		assert.Contains(t, w.fields, kind+"0")
		assert.Contains(t, w.fields, kind+"1")
	}
}
