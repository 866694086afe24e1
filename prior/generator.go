// Package prior holds the deep-prior generator: an untrained convolutional
// upsampling network whose output parameterizes the initial state. The
// network's limited capacity acts as the regularizer; only its weights move
// during assimilation, the latent input is frozen at construction.
package prior

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sweassim/varda/ad"
	"github.com/sweassim/varda/swe"
)

const kernel = 3

// latentScale keeps the frozen input small, matching the usual deep-image-
// prior setup of low-amplitude noise excitation.
const latentScale = 0.1

type param struct {
	name  string
	shape ad.Shape
	data  []float64
}

// Generator maps a fixed latent noise tensor of shape (LatentChannels,
// Ny/4, Nx/4) through two Conv3x3 + ChanNorm + ReLU + 2x-upsample stages and
// a linear Conv3x3 head to a (3, Ny, Nx) state tensor.
type Generator struct {
	ny, nx  int
	latentC int
	hidden  int
	latent  []float64
	params  []param
}

// NewGenerator constructs the network and applies the fixed initialization
// scheme to every conv and norm layer: conv weights N(0,0.02), biases zero,
// norm scales N(1,0.02), norm shifts zero, drawn from the given source. The
// latent tensor is drawn once here and never changes.
func NewGenerator(ny, nx, latentChannels, hiddenChannels int, src rand.Source) (*Generator, error) {
	if ny <= 0 || nx <= 0 || ny%4 != 0 || nx%4 != 0 {
		return nil, fmt.Errorf("prior: grid %dx%d must be positive and divisible by 4", ny, nx)
	}
	if latentChannels <= 0 || hiddenChannels <= 0 {
		return nil, fmt.Errorf("prior: channel counts must be positive, got latent=%d hidden=%d",
			latentChannels, hiddenChannels)
	}
	if src == nil {
		return nil, fmt.Errorf("prior: random source is required")
	}
	var (
		g = &Generator{ny: ny, nx: nx, latentC: latentChannels, hidden: hiddenChannels}
		w = distuv.Normal{Mu: 0, Sigma: 0.02, Src: src}
		s = distuv.Normal{Mu: 1, Sigma: 0.02, Src: src}
		z = distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	)
	g.latent = make([]float64, latentChannels*(ny/4)*(nx/4))
	for i := range g.latent {
		g.latent[i] = latentScale * z.Rand()
	}
	addConv := func(name string, cin, cout int) {
		g.addDrawn(name+".w", ad.Shape{C: cout, H: cin, W: kernel * kernel}, w.Rand)
		g.addZero(name+".b", ad.Shape{C: cout, H: 1, W: 1})
	}
	addNorm := func(name string, c int) {
		g.addDrawn(name+".gamma", ad.Shape{C: c, H: 1, W: 1}, s.Rand)
		g.addZero(name+".beta", ad.Shape{C: c, H: 1, W: 1})
	}
	addConv("conv1", latentChannels, hiddenChannels)
	addNorm("norm1", hiddenChannels)
	addConv("conv2", hiddenChannels, hiddenChannels)
	addNorm("norm2", hiddenChannels)
	addConv("head", hiddenChannels, swe.NumChannels)
	return g, nil
}

func (g *Generator) addDrawn(name string, s ad.Shape, draw func() float64) {
	data := make([]float64, s.Len())
	for i := range data {
		data[i] = draw()
	}
	g.params = append(g.params, param{name: name, shape: s, data: data})
}

func (g *Generator) addZero(name string, s ad.Shape) {
	g.params = append(g.params, param{name: name, shape: s, data: make([]float64, s.Len())})
}

// NumParams returns the total weight count.
func (g *Generator) NumParams() (n int) {
	for _, p := range g.params {
		n += len(p.data)
	}
	return
}

// ParamData returns the live per-tensor weight slices, in graph order.
// Mutating them (the optimizer's job) changes the network.
func (g *Generator) ParamData() [][]float64 {
	out := make([][]float64, len(g.params))
	for i, p := range g.params {
		out[i] = p.data
	}
	return out
}

// Forward builds the network on the given tape, returning the output state
// node and the weight leaf nodes in the same order as ParamData.
func (g *Generator) Forward(t *ad.Tape) (out *ad.Node, weights []*ad.Node) {
	weights = make([]*ad.Node, len(g.params))
	for i, p := range g.params {
		weights[i] = t.Var(p.shape, p.data)
	}
	z := t.Const(ad.Shape{C: g.latentC, H: g.ny / 4, W: g.nx / 4}, g.latent)
	h := ad.Upsample2(ad.Relu(ad.ChanNorm(ad.Conv2D(z, weights[0], weights[1]), weights[2], weights[3])))
	h = ad.Upsample2(ad.Relu(ad.ChanNorm(ad.Conv2D(h, weights[4], weights[5]), weights[6], weights[7])))
	out = ad.Conv2D(h, weights[8], weights[9])
	return
}

// Realize evaluates the generator once with its current weights, returning
// the produced state as flat values.
func (g *Generator) Realize() []float64 {
	t := ad.NewTape()
	out, _ := g.Forward(t)
	return append([]float64(nil), out.Data...)
}
