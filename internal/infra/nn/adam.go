package nn

import "math"

// adam implements the Adam update rule over a fixed parameter set.
type adam struct {
	lr, beta1, beta2, epsilon float64
	step                      int
	params                    []*param
	m, v                      [][]float64
}

func newAdam(params []*param, lr float64) *adam {
	a := &adam{
		lr:      lr,
		beta1:   0.9,
		beta2:   0.999,
		epsilon: 1e-7,
		params:  params,
		m:       make([][]float64, len(params)),
		v:       make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.value))
		a.v[i] = make([]float64, len(p.value))
	}
	return a
}

func (a *adam) apply() {
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		for j, g := range p.grad {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			p.value[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.epsilon)
		}
	}
}
