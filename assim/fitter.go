// Package assim implements strong-constraint 4D-Var over the shallow-water
// model in three variants: a free initial-state tensor with and without a
// smoothness penalty (L-BFGS), and a deep-prior reparameterization trained
// with Adam. All variants minimize the same cost functional by
// backpropagating through the full forward rollout.
package assim

import (
	"errors"
	"math"

	"github.com/sweassim/varda/swe"
)

// ErrDiverged reports NaN or Inf in an optimizer's cost or estimate. Callers
// are expected to skip or flag the sample rather than use the estimate.
var ErrDiverged = errors.New("assim: optimization diverged (NaN or Inf)")

// Fitter is the common post-fit contract of the three variants: estimate the
// full-channel initial condition from observations and their mask.
type Fitter interface {
	Fit(obsv, mask []float64) (swe.State, error)
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
