// Package obs draws synthetic ground truths and extracts the noisy, partial
// observations the assimilation variants fit against.
package obs

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sweassim/varda/swe"
)

// ArtifactWriter persists one numbered per-sample tensor. Implemented by
// store.Store; the generator only needs this narrow surface.
type ArtifactWriter interface {
	SaveField(sample int, kind string, data []float64) error
}

// Artifact kinds written by Dataset.
const (
	KindInitial = "ic"
	KindObs     = "obs"
	KindMask    = "mask"
)

// Generator draws ground-truth trajectories and observes them. All
// randomness flows from the explicit source handed to NewGenerator; the same
// seed reproduces a dataset bit for bit.
type Generator struct {
	sim       *swe.Sim
	T         int
	Subsample int
	Sigma     float64

	normal  distuv.Normal
	uniform distuv.Uniform
}

func NewGenerator(sim *swe.Sim, T, subsample int, sigma float64, src rand.Source) (*Generator, error) {
	if T <= 0 {
		return nil, fmt.Errorf("obs: window length must be positive, got %d", T)
	}
	if subsample <= 0 {
		return nil, fmt.Errorf("obs: subsample stride must be positive, got %d", subsample)
	}
	if sigma < 0 {
		return nil, fmt.Errorf("obs: noise sigma must be non-negative, got %g", sigma)
	}
	if src == nil {
		return nil, fmt.Errorf("obs: random source is required")
	}
	return &Generator{
		sim:       sim,
		T:         T,
		Subsample: subsample,
		Sigma:     sigma,
		normal:    distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		uniform:   distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: src},
	}, nil
}

// maxMode bounds the wavenumbers of sampled initial conditions; keeping the
// spectrum low-wavenumber makes the truths smooth, which is what the
// smoothness regularizer is designed for.
const maxMode = 2

// randomField superposes random-phase periodic modes with a 1/k^2 spectrum.
func (g *Generator) randomField(amp float64) []float64 {
	var (
		p    = g.sim.Params()
		n    = p.Ny * p.Nx
		data = make([]float64, n)
	)
	for kx := 0; kx <= maxMode; kx++ {
		for ky := 0; ky <= maxMode; ky++ {
			if kx == 0 && ky == 0 {
				continue
			}
			a := amp * g.normal.Rand() / float64(kx*kx+ky*ky)
			phi := g.uniform.Rand()
			for i := 0; i < p.Ny; i++ {
				for j := 0; j < p.Nx; j++ {
					arg := 2*math.Pi*(float64(kx)*float64(j)/float64(p.Nx)+
						float64(ky)*float64(i)/float64(p.Ny)) + phi
					data[i*p.Nx+j] += a * math.Cos(arg)
				}
			}
		}
	}
	return data
}

// Sample draws a smooth random initial condition and rolls it forward,
// returning the initial state and the full T-step trajectory (flat states).
func (g *Generator) Sample() (swe.State, [][]float64) {
	var (
		p  = g.sim.Params()
		n  = p.Ny * p.Nx
		ic = make([]float64, swe.NumChannels*n)
	)
	copy(ic[0*n:], g.randomField(1.0)) // eta
	copy(ic[1*n:], g.randomField(0.5)) // u
	copy(ic[2*n:], g.randomField(0.5)) // v
	s0, err := swe.StateFromFlat(p.Ny, p.Nx, ic)
	if err != nil {
		panic(err) // ic is constructed above with the right length
	}
	return s0, g.sim.Simulate(s0, g.T)
}

// Observe subsamples the trajectory in time and injects Gaussian noise of
// std Sigma at retained entries. The mask is 1 exactly where noise was
// injected; observations are zero where unobserved.
func (g *Generator) Observe(traj [][]float64) (obsv, mask []float64) {
	var (
		p = g.sim.Params()
		n = swe.NumChannels * p.Ny * p.Nx
	)
	if len(traj) != g.T {
		panic(fmt.Errorf("obs: trajectory has %d steps, window is %d", len(traj), g.T))
	}
	obsv = make([]float64, g.T*n)
	mask = make([]float64, g.T*n)
	for t := 0; t < g.T; t++ {
		if t%g.Subsample != 0 {
			continue
		}
		for i := 0; i < n; i++ {
			obsv[t*n+i] = traj[t][i] + g.Sigma*g.normal.Rand()
			mask[t*n+i] = 1
		}
	}
	return
}

// Dataset persists nSamples independent (initial condition, observation,
// mask) triples as numbered artifacts.
func (g *Generator) Dataset(nSamples int, w ArtifactWriter) error {
	if nSamples <= 0 {
		return fmt.Errorf("obs: sample count must be positive, got %d", nSamples)
	}
	for i := 0; i < nSamples; i++ {
		s0, traj := g.Sample()
		obsv, mask := g.Observe(traj)
		if err := w.SaveField(i, KindInitial, s0.Flat()); err != nil {
			return fmt.Errorf("obs: sample %d: %w", i, err)
		}
		if err := w.SaveField(i, KindObs, obsv); err != nil {
			return fmt.Errorf("obs: sample %d: %w", i, err)
		}
		if err := w.SaveField(i, KindMask, mask); err != nil {
			return fmt.Errorf("obs: sample %d: %w", i, err)
		}
	}
	return nil
}
