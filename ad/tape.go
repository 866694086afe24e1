// Package ad implements reverse-mode automatic differentiation over small
// (channels, height, width) tensors. A Tape records every operation in
// execution order; Backward replays the records in reverse, accumulating
// vector-Jacobian products into each node's gradient buffer. The op set is
// exactly what the shallow-water stencil, the cost functional and the
// deep-prior generator need; gradient correctness for every op family is
// pinned against finite differences in the package tests.
package ad

import "fmt"

// Shape describes a (C,H,W) tensor. Scalars are Shape{1,1,1}.
type Shape struct {
	C, H, W int
}

func (s Shape) Len() int { return s.C * s.H * s.W }

func (s Shape) String() string { return fmt.Sprintf("(%d,%d,%d)", s.C, s.H, s.W) }

// Node is one tensor on the tape. Data is the forward value; grad is the
// adjoint, valid after Backward on a downstream scalar.
type Node struct {
	shape Shape
	Data  []float64
	grad  []float64
	back  func() // nil for leaves and constants
	tape  *Tape
}

func (n *Node) Shape() Shape { return n.shape }

// Grad returns a copy of the node's accumulated gradient.
func (n *Node) Grad() []float64 {
	g := make([]float64, len(n.grad))
	copy(g, n.grad)
	return g
}

// Value returns the forward value of a scalar node.
func (n *Node) Value() float64 {
	if n.shape.Len() != 1 {
		panic(fmt.Errorf("Value called on non-scalar node %v", n.shape))
	}
	return n.Data[0]
}

// Tape records nodes in execution order.
type Tape struct {
	nodes []*Node
}

func NewTape() *Tape {
	return &Tape{}
}

func (t *Tape) alloc(s Shape) *Node {
	n := &Node{
		shape: s,
		Data:  make([]float64, s.Len()),
		grad:  make([]float64, s.Len()),
		tape:  t,
	}
	t.nodes = append(t.nodes, n)
	return n
}

// Var creates a differentiable leaf holding a copy of data.
func (t *Tape) Var(s Shape, data []float64) *Node {
	if len(data) != s.Len() {
		panic(fmt.Errorf("Var: shape %v wants %d values, got %d", s, s.Len(), len(data)))
	}
	n := t.alloc(s)
	copy(n.Data, data)
	return n
}

// Const creates a leaf that references data directly and receives no
// gradient of interest (its grad buffer exists but is never read back).
func (t *Tape) Const(s Shape, data []float64) *Node {
	if len(data) != s.Len() {
		panic(fmt.Errorf("Const: shape %v wants %d values, got %d", s, s.Len(), len(data)))
	}
	n := t.alloc(s)
	copy(n.Data, data)
	return n
}

// Backward seeds the adjoint of the scalar out with 1 and runs the tape in
// reverse. All gradient buffers on the tape are zeroed first, so Backward
// may be called once per forward construction.
func (t *Tape) Backward(out *Node) {
	if out.tape != t {
		panic("Backward: node does not belong to this tape")
	}
	if out.shape.Len() != 1 {
		panic(fmt.Errorf("Backward: output must be scalar, got %v", out.shape))
	}
	for _, n := range t.nodes {
		for i := range n.grad {
			n.grad[i] = 0
		}
	}
	out.grad[0] = 1
	for i := len(t.nodes) - 1; i >= 0; i-- {
		if t.nodes[i].back != nil {
			t.nodes[i].back()
		}
	}
}

func sameTape(a, b *Node) {
	if a.tape != b.tape {
		panic("ad: nodes belong to different tapes")
	}
}

func sameShape(a, b *Node) {
	sameTape(a, b)
	if a.shape != b.shape {
		panic(fmt.Errorf("ad: shape mismatch %v vs %v", a.shape, b.shape))
	}
}
