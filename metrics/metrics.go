// Package metrics scores recovered initial states against ground truth:
// endpoint and angular error of the velocity field, and the smoothness norms
// (gradient, divergence, Laplacian) of the estimate. The norms apply the
// same sparse centered-difference operators that define the simulator
// stencil and the regularizer.
package metrics

import (
	"fmt"
	"math"

	"github.com/sweassim/varda/swe"
	"github.com/sweassim/varda/utils"
)

// Fixed metric order within a score row.
const (
	MetricEPE = iota
	MetricAngular
	MetricGradNorm
	MetricDivNorm
	MetricLapNorm
	NumMetrics
)

// Evaluator caches the finite-difference operators for one grid.
type Evaluator struct {
	ny, nx      int
	gx, gy, lap utils.Operator
}

func NewEvaluator(ny, nx int, dx, dy float64) (*Evaluator, error) {
	if ny <= 0 || nx <= 0 {
		return nil, fmt.Errorf("metrics: grid dims must be positive, got %dx%d", ny, nx)
	}
	if dx <= 0 || dy <= 0 {
		return nil, fmt.Errorf("metrics: grid steps must be positive, got dx=%g dy=%g", dx, dy)
	}
	return &Evaluator{
		ny: ny, nx: nx,
		gx:  utils.GradXOp(ny, nx, dx),
		gy:  utils.GradYOp(ny, nx, dy),
		lap: utils.LaplacianOp(ny, nx, dx, dy),
	}, nil
}

// EPE is the mean endpoint error of the estimated velocity field: the
// average Euclidean distance between (u,v) vectors. Zero for identical
// fields.
func EPE(est, truth swe.State) float64 {
	var (
		du     = est.U.Copy().Subtract(truth.U).Data()
		dv     = est.V.Copy().Subtract(truth.V).Data()
		ny, nx = est.U.Dims()
		s      float64
	)
	for i := range du {
		s += math.Hypot(du[i], dv[i])
	}
	return s / float64(ny*nx)
}

// AngularError is the mean angle in radians between the homogeneous-
// coordinate flow vectors (u,v,1), the standard flow-field angular error.
// Zero for identical fields.
func AngularError(est, truth swe.State) float64 {
	var (
		ue, ve = est.U.Data(), est.V.Data()
		ut, vt = truth.U.Data(), truth.V.Data()
		ny, nx = est.U.Dims()
		s      float64
	)
	for i := range ue {
		num := ue[i]*ut[i] + ve[i]*vt[i] + 1
		// Single sqrt of the product keeps den exact for identical vectors,
		// so the self angular error comes out exactly zero.
		den := math.Sqrt((ue[i]*ue[i] + ve[i]*ve[i] + 1) * (ut[i]*ut[i] + vt[i]*vt[i] + 1))
		c := num / den
		if c > 1 {
			c = 1
		} else if c < -1 {
			c = -1
		}
		s += math.Acos(c)
	}
	return s / float64(ny*nx)
}

// GradNorm is the L2 norm of the velocity gradient of s.
func (e *Evaluator) GradNorm(s swe.State) float64 {
	return math.Sqrt(e.gx.Apply(s.U).SumSq() + e.gy.Apply(s.U).SumSq() +
		e.gx.Apply(s.V).SumSq() + e.gy.Apply(s.V).SumSq())
}

// DivNorm is the L2 norm of the velocity divergence of s.
func (e *Evaluator) DivNorm(s swe.State) float64 {
	return e.gx.Apply(s.U).Add(e.gy.Apply(s.V)).FrobNorm()
}

// LapNorm is the L2 norm of the velocity Laplacian of s.
func (e *Evaluator) LapNorm(s swe.State) float64 {
	return math.Sqrt(e.lap.Apply(s.U).SumSq() + e.lap.Apply(s.V).SumSq())
}

// Score evaluates all metrics of est against truth in the fixed order
// (EPE, angular, gradient norm, divergence norm, Laplacian norm).
func (e *Evaluator) Score(est, truth swe.State) [NumMetrics]float64 {
	return [NumMetrics]float64{
		MetricEPE:      EPE(est, truth),
		MetricAngular:  AngularError(est, truth),
		MetricGradNorm: e.GradNorm(est),
		MetricDivNorm:  e.DivNorm(est),
		MetricLapNorm:  e.LapNorm(est),
	}
}
