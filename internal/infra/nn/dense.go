package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Activation selects the dense layer nonlinearity.
type Activation int

const (
	Linear Activation = iota
	ReLU
)

type denseLayer struct {
	in, out    int
	activation Activation
	w          *param // [out x in]
	b          *param // [out]
}

type denseTrace struct {
	x []float64
	z []float64
}

func newDenseLayer(rng *rand.Rand, in, out int, activation Activation) *denseLayer {
	d := &denseLayer{
		in:         in,
		out:        out,
		activation: activation,
		w:          newParam(out * in),
		b:          newParam(out),
	}
	d.w.glorotUniform(rng, in, out)
	return d
}

func (d *denseLayer) params() []*param {
	return []*param{d.w, d.b}
}

func (d *denseLayer) forward(x []float64) ([]float64, denseTrace) {
	z := make([]float64, d.out)
	y := make([]float64, d.out)
	for r := range z {
		z[r] = d.b.value[r] + floats.Dot(row(d.w.value, r, d.in), x)
		y[r] = z[r]
		if d.activation == ReLU && y[r] < 0 {
			y[r] = 0
		}
	}
	return y, denseTrace{x: x, z: z}
}

func (d *denseLayer) backward(tr denseTrace, dy []float64) []float64 {
	dx := make([]float64, d.in)
	for r, g := range dy {
		if d.activation == ReLU && tr.z[r] <= 0 {
			continue
		}
		floats.AddScaled(row(d.w.grad, r, d.in), g, tr.x)
		d.b.grad[r] += g
		floats.AddScaled(dx, g, row(d.w.value, r, d.in))
	}
	return dx
}
