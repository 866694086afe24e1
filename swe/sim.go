// Package swe advances the linearized shallow-water equations on a uniform
// periodic grid. The stepper is written entirely in ad tape operations so
// that gradients propagate through arbitrarily long rollouts; the same code
// path produces ground-truth trajectories and the re-simulations inside the
// assimilation loops, so the stencil cannot drift between the two.
package swe

import (
	"fmt"

	"github.com/sweassim/varda/ad"
)

// Params is the physical and grid configuration of the simulator.
type Params struct {
	Nx, Ny   int     // grid points per direction
	Dx, Dy   float64 // spatial steps
	Dt       float64 // time step
	Gravity  float64
	Depth    float64 // mean water depth H
	Coriolis float64 // f-plane parameter, may be zero
	Drag     float64 // linear bottom friction, may be zero
}

// Sim is a stateless stepping function over 3-channel states. Safe for
// concurrent use: it holds no mutable state.
type Sim struct {
	p Params
}

func NewSim(p Params) (*Sim, error) {
	if p.Nx <= 0 || p.Ny <= 0 {
		return nil, fmt.Errorf("swe: grid dims must be positive, got %dx%d", p.Ny, p.Nx)
	}
	if p.Dx <= 0 || p.Dy <= 0 {
		return nil, fmt.Errorf("swe: spatial steps must be positive, got dx=%g dy=%g", p.Dx, p.Dy)
	}
	if p.Dt <= 0 {
		return nil, fmt.Errorf("swe: time step must be positive, got dt=%g", p.Dt)
	}
	if p.Gravity <= 0 || p.Depth <= 0 {
		return nil, fmt.Errorf("swe: gravity and depth must be positive, got g=%g H=%g", p.Gravity, p.Depth)
	}
	if p.Coriolis < 0 || p.Drag < 0 {
		return nil, fmt.Errorf("swe: coriolis and drag must be non-negative, got f=%g b=%g", p.Coriolis, p.Drag)
	}
	return &Sim{p: p}, nil
}

func (s *Sim) Params() Params { return s.p }

// StateShape is the tape shape of one state on this grid.
func (s *Sim) StateShape() ad.Shape {
	return ad.Shape{C: NumChannels, H: s.p.Ny, W: s.p.Nx}
}

// ddx is the centered x-derivative on the periodic grid, matching
// utils.GradXOp coefficient for coefficient.
func (s *Sim) ddx(f *ad.Node) *ad.Node {
	return ad.Scale(ad.Sub(ad.ShiftX(f, 1), ad.ShiftX(f, -1)), 1./(2.*s.p.Dx))
}

func (s *Sim) ddy(f *ad.Node) *ad.Node {
	return ad.Scale(ad.Sub(ad.ShiftY(f, 1), ad.ShiftY(f, -1)), 1./(2.*s.p.Dy))
}

// Step advances one forward-Euler timestep:
//
//	du/dt =  f v - g dEta/dx - b u
//	dv/dt = -f u - g dEta/dy - b v
//	dEta/dt = -H (du/dx + dv/dy)
//
// Pure function of the input node; the result lives on the same tape.
func (s *Sim) Step(st *ad.Node) *ad.Node {
	if st.Shape() != s.StateShape() {
		panic(fmt.Errorf("swe: state shape %v, grid wants %v", st.Shape(), s.StateShape()))
	}
	var (
		p   = s.p
		eta = ad.Chan(st, 0)
		u   = ad.Chan(st, 1)
		v   = ad.Chan(st, 2)
	)
	au := ad.Sub(ad.Scale(v, p.Coriolis), ad.Scale(s.ddx(eta), p.Gravity))
	av := ad.Sub(ad.Scale(u, -p.Coriolis), ad.Scale(s.ddy(eta), p.Gravity))
	if p.Drag != 0 {
		au = ad.Sub(au, ad.Scale(u, p.Drag))
		av = ad.Sub(av, ad.Scale(v, p.Drag))
	}
	un := ad.Add(u, ad.Scale(au, p.Dt))
	vn := ad.Add(v, ad.Scale(av, p.Dt))
	etan := ad.Sub(eta, ad.Scale(ad.Add(s.ddx(u), s.ddy(v)), p.Dt*p.Depth))
	return ad.Concat(etan, un, vn)
}

// Rollout applies Step repeatedly, returning the T-step trajectory with s0
// as entry 0.
func (s *Sim) Rollout(s0 *ad.Node, T int) []*ad.Node {
	if T <= 0 {
		panic(fmt.Errorf("swe: rollout length must be positive, got %d", T))
	}
	traj := make([]*ad.Node, T)
	traj[0] = s0
	for t := 1; t < T; t++ {
		traj[t] = s.Step(traj[t-1])
	}
	return traj
}

// Simulate rolls a concrete state forward T steps outside any optimization,
// returning the trajectory as flat values.
func (s *Sim) Simulate(s0 State, T int) [][]float64 {
	var (
		tape = ad.NewTape()
		n0   = tape.Const(s.StateShape(), s0.Flat())
		traj = s.Rollout(n0, T)
		out  = make([][]float64, T)
	)
	for t, st := range traj {
		out[t] = append([]float64(nil), st.Data...)
	}
	return out
}
