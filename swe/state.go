package swe

import (
	"fmt"

	"github.com/sweassim/varda/utils"
)

// NumChannels is the fixed channel count of a state: height deviation and
// the two velocity components.
const NumChannels = 3

// State holds one time instant of the shallow-water system on an Ny x Nx
// grid: height deviation Eta and velocity components U, V.
type State struct {
	Eta, U, V utils.Matrix
}

func NewState(ny, nx int) State {
	return State{
		Eta: utils.NewMatrix(ny, nx),
		U:   utils.NewMatrix(ny, nx),
		V:   utils.NewMatrix(ny, nx),
	}
}

// Flat returns the state as a channel-major (eta,u,v), row-major flat slice,
// the layout the ad tape and the artifact store use.
func (s State) Flat() []float64 {
	var (
		ny, nx = s.Eta.Dims()
		out    = make([]float64, NumChannels*ny*nx)
	)
	copy(out[0*ny*nx:], s.Eta.Data())
	copy(out[1*ny*nx:], s.U.Data())
	copy(out[2*ny*nx:], s.V.Data())
	return out
}

// StateFromFlat is the inverse of Flat.
func StateFromFlat(ny, nx int, data []float64) (State, error) {
	if len(data) != NumChannels*ny*nx {
		return State{}, fmt.Errorf("state data has %d values, grid %dx%d wants %d",
			len(data), ny, nx, NumChannels*ny*nx)
	}
	n := ny * nx
	return State{
		Eta: utils.NewMatrix(ny, nx, append([]float64(nil), data[0*n:1*n]...)),
		U:   utils.NewMatrix(ny, nx, append([]float64(nil), data[1*n:2*n]...)),
		V:   utils.NewMatrix(ny, nx, append([]float64(nil), data[2*n:3*n]...)),
	}, nil
}

// Copy returns a deep copy.
func (s State) Copy() State {
	return State{Eta: s.Eta.Copy(), U: s.U.Copy(), V: s.V.Copy()}
}
