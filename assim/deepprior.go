package assim

import (
	"fmt"
	"math"

	"github.com/sweassim/varda/ad"
	"github.com/sweassim/varda/prior"
	"github.com/sweassim/varda/swe"
)

// DeepPriorConfig configures the deep-prior variant.
type DeepPriorConfig struct {
	Epochs       int
	LearningRate float64
	Beta1        float64 // first-moment coefficient; second moment is fixed at 0.999
	LogEvery     int     // progress line frequency in epochs, 0 silences
}

// DeepPriorVar minimizes the same cost functional as Var4D, but the
// optimized parameters are the generator's weights: each epoch realizes the
// candidate initial state as generator(latent), rolls it forward, and
// backpropagates through both the rollout and the network. An explicit
// regularizer may be attached but is usually nil; the generator's
// architecture is the implicit prior.
type DeepPriorVar struct {
	sim   *swe.Sim
	T     int
	gen   *prior.Generator
	regul CostTerm
	cfg   DeepPriorConfig
}

func NewDeepPriorVar(sim *swe.Sim, T int, gen *prior.Generator, regul CostTerm, cfg DeepPriorConfig) (*DeepPriorVar, error) {
	if sim == nil || gen == nil {
		return nil, fmt.Errorf("assim: simulator and generator are required")
	}
	if T <= 0 {
		return nil, fmt.Errorf("assim: window length must be positive, got %d", T)
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("assim: epoch budget must be positive, got %d", cfg.Epochs)
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("assim: learning rate must be positive, got %g", cfg.LearningRate)
	}
	if cfg.Beta1 < 0 || cfg.Beta1 >= 1 {
		return nil, fmt.Errorf("assim: momentum coefficient must be in [0,1), got %g", cfg.Beta1)
	}
	return &DeepPriorVar{sim: sim, T: T, gen: gen, regul: regul, cfg: cfg}, nil
}

func (d *DeepPriorVar) Fit(obsv, mask []float64) (swe.State, error) {
	var (
		p      = d.sim.Params()
		params = d.gen.ParamData()
		sizes  = make([]int, len(params))
	)
	for i, pd := range params {
		sizes[i] = len(pd)
	}
	opt := newAdam(d.cfg.LearningRate, d.cfg.Beta1, 0.999, sizes)
	for epoch := 1; epoch <= d.cfg.Epochs; epoch++ {
		tape := ad.NewTape()
		out, weights := d.gen.Forward(tape)
		traj := d.sim.Rollout(out, d.T)
		cost := Misfit(traj, obsv, mask)
		if d.regul != nil {
			cost = ad.Add(cost, d.regul.Penalty(out))
		}
		if math.IsNaN(cost.Value()) || math.IsInf(cost.Value(), 0) {
			return swe.State{}, fmt.Errorf("deep-prior 4D-Var at epoch %d: %w", epoch, ErrDiverged)
		}
		tape.Backward(cost)
		grads := make([][]float64, len(weights))
		for i, w := range weights {
			grads[i] = w.Grad()
		}
		opt.Step(params, grads)
		if d.cfg.LogEvery > 0 && epoch%d.cfg.LogEvery == 0 {
			fmt.Printf("deep-prior 4D-Var: epoch %5d, cost = %12.6e\n", epoch, cost.Value())
		}
	}
	// Realize the recovered initial condition from the trained weights.
	est := d.gen.Realize()
	if !allFinite(est) {
		return swe.State{}, fmt.Errorf("deep-prior 4D-Var realized estimate: %w", ErrDiverged)
	}
	return swe.StateFromFlat(p.Ny, p.Nx, est)
}
