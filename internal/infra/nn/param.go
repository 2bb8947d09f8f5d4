package nn

import (
	"math"
	"math/rand"
)

// param is one trainable tensor stored row-major. grad is only allocated
// while a fit is running.
type param struct {
	value []float64
	grad  []float64
}

func newParam(size int) *param {
	return &param{value: make([]float64, size)}
}

func (p *param) allocGrad() {
	p.grad = make([]float64, len(p.value))
}

func (p *param) zeroGrad() {
	clear(p.grad)
}

func (p *param) releaseGrad() {
	p.grad = nil
}

// glorotUniform fills p with U(-limit, limit), limit = sqrt(6/(fanIn+fanOut)).
func (p *param) glorotUniform(rng *rand.Rand, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.value {
		p.value[i] = (rng.Float64()*2 - 1) * limit
	}
}

// row returns the r-th row of a row-major matrix with the given width.
func row(values []float64, r, cols int) []float64 {
	return values[r*cols : (r+1)*cols : (r+1)*cols]
}

// dropoutMask returns an inverted dropout mask, or nil when no units drop.
func dropoutMask(rng *rand.Rand, size int, rate float64) []float64 {
	if rng == nil || rate <= 0 {
		return nil
	}
	keep := 1 - rate
	mask := make([]float64, size)
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

func applyMask(src, mask []float64) []float64 {
	out := make([]float64, len(src))
	if mask == nil {
		copy(out, src)
		return out
	}
	for i := range src {
		out[i] = src[i] * mask[i]
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
