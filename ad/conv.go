package ad

import (
	"fmt"
	"math"
)

// Conv2D applies a stride-1, zero-padded "same" convolution. The kernel node
// w has shape (Cout, Cin, K*K) with K odd; the bias b has shape (Cout,1,1).
func Conv2D(x, w, b *Node) *Node {
	var (
		sx   = x.shape
		sw   = w.shape
		k    = int(math.Round(math.Sqrt(float64(sw.W))))
		cin  = sw.H
		cout = sw.C
	)
	sameTape(x, w)
	sameTape(x, b)
	if k*k != sw.W || k%2 == 0 {
		panic(fmt.Errorf("Conv2D: kernel shape %v is not an odd square stencil", sw))
	}
	if cin != sx.C {
		panic(fmt.Errorf("Conv2D: input has %d channels, kernel expects %d", sx.C, cin))
	}
	if b.shape != (Shape{cout, 1, 1}) {
		panic(fmt.Errorf("Conv2D: bias shape %v, want (%d,1,1)", b.shape, cout))
	}
	var (
		h, wd = sx.H, sx.W
		p     = k / 2
		r     = x.tape.alloc(Shape{cout, h, wd})
	)
	idx := func(c, i, j int) int { return (c*h+i)*wd + j }
	for co := 0; co < cout; co++ {
		for i := 0; i < h; i++ {
			for j := 0; j < wd; j++ {
				acc := b.Data[co]
				for ci := 0; ci < cin; ci++ {
					wbase := (co*cin + ci) * k * k
					for ki := 0; ki < k; ki++ {
						ii := i + ki - p
						if ii < 0 || ii >= h {
							continue
						}
						for kj := 0; kj < k; kj++ {
							jj := j + kj - p
							if jj < 0 || jj >= wd {
								continue
							}
							acc += x.Data[idx(ci, ii, jj)] * w.Data[wbase+ki*k+kj]
						}
					}
				}
				r.Data[idx2(co, i, j, h, wd)] = acc
			}
		}
	}
	r.back = func() {
		for co := 0; co < cout; co++ {
			for i := 0; i < h; i++ {
				for j := 0; j < wd; j++ {
					g := r.grad[idx2(co, i, j, h, wd)]
					if g == 0 {
						continue
					}
					b.grad[co] += g
					for ci := 0; ci < cin; ci++ {
						wbase := (co*cin + ci) * k * k
						for ki := 0; ki < k; ki++ {
							ii := i + ki - p
							if ii < 0 || ii >= h {
								continue
							}
							for kj := 0; kj < k; kj++ {
								jj := j + kj - p
								if jj < 0 || jj >= wd {
									continue
								}
								x.grad[idx(ci, ii, jj)] += g * w.Data[wbase+ki*k+kj]
								w.grad[wbase+ki*k+kj] += g * x.Data[idx(ci, ii, jj)]
							}
						}
					}
				}
			}
		}
	}
	return r
}

func idx2(c, i, j, h, w int) int { return (c*h+i)*w + j }

// Upsample2 doubles the spatial resolution by nearest-neighbor replication.
func Upsample2(x *Node) *Node {
	var (
		s = x.shape
		r = x.tape.alloc(Shape{s.C, 2 * s.H, 2 * s.W})
	)
	for c := 0; c < s.C; c++ {
		for i := 0; i < 2*s.H; i++ {
			for j := 0; j < 2*s.W; j++ {
				r.Data[idx2(c, i, j, 2*s.H, 2*s.W)] = x.Data[idx2(c, i/2, j/2, s.H, s.W)]
			}
		}
	}
	r.back = func() {
		for c := 0; c < s.C; c++ {
			for i := 0; i < 2*s.H; i++ {
				for j := 0; j < 2*s.W; j++ {
					x.grad[idx2(c, i/2, j/2, s.H, s.W)] += r.grad[idx2(c, i, j, 2*s.H, 2*s.W)]
				}
			}
		}
	}
	return r
}

const normEps = 1e-5

// ChanNorm normalizes each channel to zero mean and unit variance over its
// spatial extent, then applies a learned per-channel scale gamma and shift
// beta (both shape (C,1,1)). With a single field in flight this is the
// batch-norm of the generator stack.
func ChanNorm(x, gamma, beta *Node) *Node {
	var (
		s = x.shape
		n = s.H * s.W
	)
	sameTape(x, gamma)
	sameTape(x, beta)
	if gamma.shape != (Shape{s.C, 1, 1}) || beta.shape != (Shape{s.C, 1, 1}) {
		panic(fmt.Errorf("ChanNorm: gamma %v beta %v, want (%d,1,1)", gamma.shape, beta.shape, s.C))
	}
	var (
		r      = x.tape.alloc(s)
		xhat   = make([]float64, s.Len())
		invStd = make([]float64, s.C)
	)
	for c := 0; c < s.C; c++ {
		off := c * n
		var mu float64
		for i := 0; i < n; i++ {
			mu += x.Data[off+i]
		}
		mu /= float64(n)
		var va float64
		for i := 0; i < n; i++ {
			d := x.Data[off+i] - mu
			va += d * d
		}
		va /= float64(n)
		invStd[c] = 1. / math.Sqrt(va+normEps)
		for i := 0; i < n; i++ {
			xhat[off+i] = (x.Data[off+i] - mu) * invStd[c]
			r.Data[off+i] = gamma.Data[c]*xhat[off+i] + beta.Data[c]
		}
	}
	r.back = func() {
		for c := 0; c < s.C; c++ {
			off := c * n
			var sumG, sumGX float64
			for i := 0; i < n; i++ {
				g := r.grad[off+i]
				sumG += g
				sumGX += g * xhat[off+i]
				gamma.grad[c] += g * xhat[off+i]
				beta.grad[c] += g
			}
			// dL/dx via the standard batch-norm backward identity.
			for i := 0; i < n; i++ {
				g := r.grad[off+i]
				x.grad[off+i] += gamma.Data[c] * invStd[c] *
					(g - sumG/float64(n) - xhat[off+i]*sumGX/float64(n))
			}
		}
	}
	return r
}
