package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Operator is a sparse (ny*nx)x(ny*nx) finite-difference operator acting on
// row-major flattened fields. The stencils here are the single source of
// truth for gradient, divergence and Laplacian semantics: the dynamics, the
// smoothness regularizer and the evaluation metrics all use the same
// centered-difference, periodic-boundary discretization.
type Operator struct {
	M      *sparse.CSR
	ny, nx int
	name   string
}

func (o Operator) Dims() (r, c int)    { return o.M.Dims() }
func (o Operator) At(i, j int) float64 { return o.M.At(i, j) }
func (o Operator) T() mat.Matrix       { return o.M.T() }

// Apply multiplies the operator into a field, returning a new field.
func (o Operator) Apply(f Matrix) (R Matrix) {
	var (
		nr, nc = f.Dims()
	)
	if nr != o.ny || nc != o.nx {
		panic(fmt.Errorf("operator %s: field is [%d,%d], grid is [%d,%d]", o.name, nr, nc, o.ny, o.nx))
	}
	v := mat.NewVecDense(nr*nc, f.Copy().Data())
	r := mat.NewVecDense(nr*nc, nil)
	r.MulVec(o.M, v)
	R = NewMatrix(nr, nc, r.RawVector().Data)
	return
}

// periodic index helper
func wrap(i, n int) int {
	return ((i % n) + n) % n
}

func newOperator(ny, nx int, name string, fill func(dok *sparse.DOK)) Operator {
	dok := sparse.NewDOK(ny*nx, ny*nx)
	fill(dok)
	return Operator{M: dok.ToCSR(), ny: ny, nx: nx, name: name}
}

// GradXOp builds the centered x-derivative: (f(i,j+1)-f(i,j-1))/(2*dx).
func GradXOp(ny, nx int, dx float64) Operator {
	return newOperator(ny, nx, "d/dx", func(dok *sparse.DOK) {
		c := 1. / (2. * dx)
		for i := 0; i < ny; i++ {
			for j := 0; j < nx; j++ {
				row := i*nx + j
				dok.Set(row, i*nx+wrap(j+1, nx), c)
				dok.Set(row, i*nx+wrap(j-1, nx), -c)
			}
		}
	})
}

// GradYOp builds the centered y-derivative: (f(i+1,j)-f(i-1,j))/(2*dy).
func GradYOp(ny, nx int, dy float64) Operator {
	return newOperator(ny, nx, "d/dy", func(dok *sparse.DOK) {
		c := 1. / (2. * dy)
		for i := 0; i < ny; i++ {
			for j := 0; j < nx; j++ {
				row := i*nx + j
				dok.Set(row, wrap(i+1, ny)*nx+j, c)
				dok.Set(row, wrap(i-1, ny)*nx+j, -c)
			}
		}
	})
}

// LaplacianOp builds the 5-point periodic Laplacian.
func LaplacianOp(ny, nx int, dx, dy float64) Operator {
	return newOperator(ny, nx, "laplacian", func(dok *sparse.DOK) {
		cx := 1. / (dx * dx)
		cy := 1. / (dy * dy)
		for i := 0; i < ny; i++ {
			for j := 0; j < nx; j++ {
				row := i*nx + j
				dok.Set(row, row, -2.*(cx+cy))
				dok.Set(row, i*nx+wrap(j+1, nx), cx)
				dok.Set(row, i*nx+wrap(j-1, nx), cx)
				dok.Set(row, wrap(i+1, ny)*nx+j, cy)
				dok.Set(row, wrap(i-1, ny)*nx+j, cy)
			}
		}
	})
}
