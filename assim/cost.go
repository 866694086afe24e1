package assim

import (
	"fmt"

	"github.com/sweassim/varda/ad"
)

// CostTerm is a pluggable additive contribution to the total objective,
// evaluated on the candidate initial state. Each variant accepts zero or one
// term and sums it into the data misfit.
type CostTerm interface {
	Penalty(s0 *ad.Node) *ad.Node
}

// Misfit is the mask-weighted sum of squared residuals between a simulated
// trajectory and the observations, over all timesteps and channels.
// Unobserved entries (mask 0) contribute nothing.
func Misfit(traj []*ad.Node, obsv, mask []float64) *ad.Node {
	var (
		n     = traj[0].Shape().Len()
		T     = len(traj)
		total *ad.Node
	)
	if len(obsv) != T*n || len(mask) != T*n {
		panic(fmt.Errorf("assim: trajectory is %d x %d values, obs %d, mask %d", T, n, len(obsv), len(mask)))
	}
	for t, st := range traj {
		term := ad.MaskedSqDiff(st, obsv[t*n:(t+1)*n], mask[t*n:(t+1)*n])
		if total == nil {
			total = term
		} else {
			total = ad.Add(total, term)
		}
	}
	return total
}

// SmoothRegul penalizes spatial roughness of the estimated initial velocity
// field: Alpha*||grad w0||^2 + Beta*||div w0||^2, with the same centered
// periodic stencil the simulator and the metrics use.
type SmoothRegul struct {
	Alpha, Beta float64
	Dx, Dy      float64
}

func NewSmoothRegul(alpha, beta, dx, dy float64) (SmoothRegul, error) {
	if alpha < 0 || beta < 0 {
		return SmoothRegul{}, fmt.Errorf("assim: regularizer coefficients must be non-negative, got alpha=%g beta=%g", alpha, beta)
	}
	if dx <= 0 || dy <= 0 {
		return SmoothRegul{}, fmt.Errorf("assim: regularizer grid steps must be positive, got dx=%g dy=%g", dx, dy)
	}
	return SmoothRegul{Alpha: alpha, Beta: beta, Dx: dx, Dy: dy}, nil
}

func (r SmoothRegul) Penalty(s0 *ad.Node) *ad.Node {
	var (
		u    = ad.Chan(s0, 1)
		v    = ad.Chan(s0, 2)
		dudx = cdx(u, r.Dx)
		dudy = cdy(u, r.Dy)
		dvdx = cdx(v, r.Dx)
		dvdy = cdy(v, r.Dy)
	)
	grad := ad.Add(ad.Add(ad.SumSquares(dudx), ad.SumSquares(dudy)),
		ad.Add(ad.SumSquares(dvdx), ad.SumSquares(dvdy)))
	div := ad.SumSquares(ad.Add(dudx, dvdy))
	return ad.Add(ad.Scale(grad, r.Alpha), ad.Scale(div, r.Beta))
}

func cdx(f *ad.Node, dx float64) *ad.Node {
	return ad.Scale(ad.Sub(ad.ShiftX(f, 1), ad.ShiftX(f, -1)), 1./(2.*dx))
}

func cdy(f *ad.Node, dy float64) *ad.Node {
	return ad.Scale(ad.Sub(ad.ShiftY(f, 1), ad.ShiftY(f, -1)), 1./(2.*dy))
}
