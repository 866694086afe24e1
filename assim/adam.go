package assim

import "math"

// adam is a first/second-moment adaptive gradient step over the generator's
// per-tensor weight slices. gonum/optimize carries no momentum method and
// the deep-prior fit behaves like network training, not line-search descent,
// so the update lives here.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func newAdam(lr, beta1, beta2 float64, sizes []int) *adam {
	a := &adam{lr: lr, beta1: beta1, beta2: beta2, eps: 1e-8}
	a.m = make([][]float64, len(sizes))
	a.v = make([][]float64, len(sizes))
	for i, n := range sizes {
		a.m[i] = make([]float64, n)
		a.v[i] = make([]float64, n)
	}
	return a
}

// Step updates params in place from grads (same ragged layout as sizes).
func (a *adam) Step(params, grads [][]float64) {
	a.t++
	var (
		c1 = 1 - math.Pow(a.beta1, float64(a.t))
		c2 = 1 - math.Pow(a.beta2, float64(a.t))
	)
	for i := range params {
		p, g, m, v := params[i], grads[i], a.m[i], a.v[i]
		for j := range p {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*g[j]*g[j]
			mhat := m[j] / c1
			vhat := v[j] / c2
			p[j] -= a.lr * mhat / (math.Sqrt(vhat) + a.eps)
		}
	}
}
