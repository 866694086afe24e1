package assim

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"

	"github.com/sweassim/varda/ad"
	"github.com/sweassim/varda/swe"
)

// VarConfig configures the free-tensor variants.
type VarConfig struct {
	MaxIterations int // L-BFGS major iteration budget
	LogEvery      int // progress line frequency in cost evaluations, 0 silences
}

// Var4D minimizes the cost functional over a free initial-state tensor with
// L-BFGS and a Wolfe line search. With a nil regularizer it is the plain
// variant; with one it is the smoothness-regularized variant. Non-convergence
// within the budget is not an error: the best iterate is returned.
type Var4D struct {
	sim   *swe.Sim
	T     int
	regul CostTerm
	cfg   VarConfig
	name  string
}

func NewPlainVar(sim *swe.Sim, T int, cfg VarConfig) (*Var4D, error) {
	return newVar4D(sim, T, nil, cfg, "plain")
}

func NewSmoothRegularizedVar(sim *swe.Sim, T int, regul CostTerm, cfg VarConfig) (*Var4D, error) {
	if regul == nil {
		return nil, fmt.Errorf("assim: regularized variant requires a cost term")
	}
	return newVar4D(sim, T, regul, cfg, "smooth")
}

func newVar4D(sim *swe.Sim, T int, regul CostTerm, cfg VarConfig, name string) (*Var4D, error) {
	if sim == nil {
		return nil, fmt.Errorf("assim: simulator is required")
	}
	if T <= 0 {
		return nil, fmt.Errorf("assim: window length must be positive, got %d", T)
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("assim: iteration budget must be positive, got %d", cfg.MaxIterations)
	}
	return &Var4D{sim: sim, T: T, regul: regul, cfg: cfg, name: name}, nil
}

// evaluate re-simulates the window from x and backpropagates the total cost
// to the initial-state tensor. Every call builds a fresh tape.
func (v *Var4D) evaluate(x, obsv, mask []float64, wantGrad bool) (cost float64, grad []float64) {
	var (
		tape = ad.NewTape()
		s0   = tape.Var(v.sim.StateShape(), x)
		traj = v.sim.Rollout(s0, v.T)
		c    = Misfit(traj, obsv, mask)
	)
	if v.regul != nil {
		c = ad.Add(c, v.regul.Penalty(s0))
	}
	cost = c.Value()
	if wantGrad {
		tape.Backward(c)
		grad = s0.Grad()
	}
	return
}

func (v *Var4D) Fit(obsv, mask []float64) (swe.State, error) {
	var (
		p     = v.sim.Params()
		n     = v.sim.StateShape().Len()
		evals int
	)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			cost, _ := v.evaluate(x, obsv, mask, false)
			evals++
			if v.cfg.LogEvery > 0 && evals%v.cfg.LogEvery == 0 {
				fmt.Printf("%s 4D-Var: eval %4d, cost = %12.6e\n", v.name, evals, cost)
			}
			return cost
		},
		Grad: func(grad, x []float64) {
			_, g := v.evaluate(x, obsv, mask, true)
			copy(grad, g)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: v.cfg.MaxIterations,
	}
	result, err := optimize.Minimize(problem, make([]float64, n), settings, &optimize.LBFGS{})
	if result == nil || len(result.X) == 0 {
		return swe.State{}, fmt.Errorf("%s 4D-Var: %w", v.name, err)
	}
	// A stalled line search or an exhausted budget still yields the best
	// iterate; only non-finite results are fatal.
	if !allFinite(result.X) || !allFinite([]float64{result.F}) {
		return swe.State{}, fmt.Errorf("%s 4D-Var after %d evaluations: %w", v.name, evals, ErrDiverged)
	}
	return swe.StateFromFlat(p.Ny, p.Nx, result.X)
}
