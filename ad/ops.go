package ad

import (
	"fmt"
	"math"
)

// Add returns a + b elementwise.
func Add(a, b *Node) *Node {
	sameShape(a, b)
	r := a.tape.alloc(a.shape)
	for i := range r.Data {
		r.Data[i] = a.Data[i] + b.Data[i]
	}
	r.back = func() {
		for i := range r.grad {
			a.grad[i] += r.grad[i]
			b.grad[i] += r.grad[i]
		}
	}
	return r
}

// Sub returns a - b elementwise.
func Sub(a, b *Node) *Node {
	sameShape(a, b)
	r := a.tape.alloc(a.shape)
	for i := range r.Data {
		r.Data[i] = a.Data[i] - b.Data[i]
	}
	r.back = func() {
		for i := range r.grad {
			a.grad[i] += r.grad[i]
			b.grad[i] -= r.grad[i]
		}
	}
	return r
}

// Mul returns a * b elementwise.
func Mul(a, b *Node) *Node {
	sameShape(a, b)
	r := a.tape.alloc(a.shape)
	for i := range r.Data {
		r.Data[i] = a.Data[i] * b.Data[i]
	}
	r.back = func() {
		for i := range r.grad {
			a.grad[i] += r.grad[i] * b.Data[i]
			b.grad[i] += r.grad[i] * a.Data[i]
		}
	}
	return r
}

// Scale returns c * a.
func Scale(a *Node, c float64) *Node {
	r := a.tape.alloc(a.shape)
	for i := range r.Data {
		r.Data[i] = c * a.Data[i]
	}
	r.back = func() {
		for i := range r.grad {
			a.grad[i] += c * r.grad[i]
		}
	}
	return r
}

// ShiftX returns out(c,i,j) = a(c,i,j+d) with periodic wraparound in j.
// The adjoint of a periodic shift is the opposite shift.
func ShiftX(a *Node, d int) *Node {
	var (
		s = a.shape
		r = a.tape.alloc(s)
	)
	for c := 0; c < s.C; c++ {
		for i := 0; i < s.H; i++ {
			base := (c*s.H + i) * s.W
			for j := 0; j < s.W; j++ {
				r.Data[base+j] = a.Data[base+wrap(j+d, s.W)]
			}
		}
	}
	r.back = func() {
		for c := 0; c < s.C; c++ {
			for i := 0; i < s.H; i++ {
				base := (c*s.H + i) * s.W
				for j := 0; j < s.W; j++ {
					a.grad[base+wrap(j+d, s.W)] += r.grad[base+j]
				}
			}
		}
	}
	return r
}

// ShiftY returns out(c,i,j) = a(c,i+d,j) with periodic wraparound in i.
func ShiftY(a *Node, d int) *Node {
	var (
		s = a.shape
		r = a.tape.alloc(s)
	)
	for c := 0; c < s.C; c++ {
		for i := 0; i < s.H; i++ {
			src := (c*s.H + wrap(i+d, s.H)) * s.W
			dst := (c*s.H + i) * s.W
			for j := 0; j < s.W; j++ {
				r.Data[dst+j] = a.Data[src+j]
			}
		}
	}
	r.back = func() {
		for c := 0; c < s.C; c++ {
			for i := 0; i < s.H; i++ {
				src := (c*s.H + wrap(i+d, s.H)) * s.W
				dst := (c*s.H + i) * s.W
				for j := 0; j < s.W; j++ {
					a.grad[src+j] += r.grad[dst+j]
				}
			}
		}
	}
	return r
}

// Relu returns max(a, 0) elementwise.
func Relu(a *Node) *Node {
	r := a.tape.alloc(a.shape)
	for i, v := range a.Data {
		if v > 0 {
			r.Data[i] = v
		}
	}
	r.back = func() {
		for i := range r.grad {
			if a.Data[i] > 0 {
				a.grad[i] += r.grad[i]
			}
		}
	}
	return r
}

// Tanh returns tanh(a) elementwise.
func Tanh(a *Node) *Node {
	r := a.tape.alloc(a.shape)
	for i, v := range a.Data {
		r.Data[i] = math.Tanh(v)
	}
	r.back = func() {
		for i := range r.grad {
			a.grad[i] += r.grad[i] * (1 - r.Data[i]*r.Data[i])
		}
	}
	return r
}

// Chan extracts channel c of a as a (1,H,W) node.
func Chan(a *Node, c int) *Node {
	var (
		s = a.shape
	)
	if c < 0 || c >= s.C {
		panic(fmt.Errorf("Chan: channel %d out of range for %v", c, s))
	}
	r := a.tape.alloc(Shape{1, s.H, s.W})
	off := c * s.H * s.W
	copy(r.Data, a.Data[off:off+s.H*s.W])
	r.back = func() {
		for i := range r.grad {
			a.grad[off+i] += r.grad[i]
		}
	}
	return r
}

// Concat stacks nodes of identical (H,W) along the channel axis.
func Concat(parts ...*Node) *Node {
	if len(parts) == 0 {
		panic("Concat: no inputs")
	}
	var (
		h = parts[0].shape.H
		w = parts[0].shape.W
		c = 0
	)
	for _, p := range parts {
		sameTape(parts[0], p)
		if p.shape.H != h || p.shape.W != w {
			panic(fmt.Errorf("Concat: spatial mismatch %v vs (%d,%d)", p.shape, h, w))
		}
		c += p.shape.C
	}
	r := parts[0].tape.alloc(Shape{c, h, w})
	off := 0
	for _, p := range parts {
		copy(r.Data[off:], p.Data)
		off += p.shape.Len()
	}
	r.back = func() {
		off := 0
		for _, p := range parts {
			for i := range p.grad {
				p.grad[i] += r.grad[off+i]
			}
			off += p.shape.Len()
		}
	}
	return r
}

// SumSquares reduces a to the scalar sum of its squared elements.
func SumSquares(a *Node) *Node {
	r := a.tape.alloc(Shape{1, 1, 1})
	var s float64
	for _, v := range a.Data {
		s += v * v
	}
	r.Data[0] = s
	r.back = func() {
		g := r.grad[0]
		for i := range a.grad {
			a.grad[i] += 2 * g * a.Data[i]
		}
	}
	return r
}

// MaskedSqDiff reduces to the scalar sum of mask*(a-obs)^2. obs and mask are
// plain data, not tape nodes; only a receives a gradient.
func MaskedSqDiff(a *Node, obs, mask []float64) *Node {
	if len(obs) != a.shape.Len() || len(mask) != a.shape.Len() {
		panic(fmt.Errorf("MaskedSqDiff: node is %v (%d values), obs %d, mask %d",
			a.shape, a.shape.Len(), len(obs), len(mask)))
	}
	r := a.tape.alloc(Shape{1, 1, 1})
	var s float64
	for i, v := range a.Data {
		d := v - obs[i]
		s += mask[i] * d * d
	}
	r.Data[0] = s
	r.back = func() {
		g := r.grad[0]
		for i := range a.grad {
			a.grad[i] += 2 * g * mask[i] * (a.Data[i] - obs[i])
		}
	}
	return r
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
