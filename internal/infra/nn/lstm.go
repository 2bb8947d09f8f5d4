package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Gate blocks inside the stacked weight matrices.
const (
	gateInput = iota
	gateForget
	gateCell
	gateOutput
	gateCount
)

// lstmLayer is a single LSTM layer with input and recurrent dropout.
type lstmLayer struct {
	in               int
	hidden           int
	dropout          float64
	recurrentDropout float64

	w *param // [4H x in]
	u *param // [4H x H]
	b *param // [4H]
}

type lstmStep struct {
	x, hPrev   []float64
	i, f, g, o []float64
	cPrev, c   []float64
	tanhC      []float64
}

type lstmTrace struct {
	steps   []lstmStep
	maskX   []float64
	maskH   []float64
	outputs [][]float64
}

func newLSTMLayer(rng *rand.Rand, in, hidden int, dropout, recurrentDropout float64) *lstmLayer {
	l := &lstmLayer{
		in:               in,
		hidden:           hidden,
		dropout:          dropout,
		recurrentDropout: recurrentDropout,
		w:                newParam(gateCount * hidden * in),
		u:                newParam(gateCount * hidden * hidden),
		b:                newParam(gateCount * hidden),
	}
	l.w.glorotUniform(rng, in, gateCount*hidden)
	l.u.glorotUniform(rng, hidden, gateCount*hidden)
	for j := 0; j < hidden; j++ {
		l.b.value[gateForget*hidden+j] = 1
	}
	return l
}

func (l *lstmLayer) params() []*param {
	return []*param{l.w, l.u, l.b}
}

// forward runs the sequence. rng is nil outside training, which disables dropout.
func (l *lstmLayer) forward(seq [][]float64, rng *rand.Rand) *lstmTrace {
	H := l.hidden
	tr := &lstmTrace{
		steps:   make([]lstmStep, len(seq)),
		maskX:   dropoutMask(rng, l.in, l.dropout),
		maskH:   dropoutMask(rng, H, l.recurrentDropout),
		outputs: make([][]float64, len(seq)),
	}
	h := make([]float64, H)
	c := make([]float64, H)
	z := make([]float64, gateCount*H)
	for t, input := range seq {
		x := applyMask(input, tr.maskX)
		hPrev := applyMask(h, tr.maskH)
		for r := range z {
			z[r] = l.b.value[r] + floats.Dot(row(l.w.value, r, l.in), x) + floats.Dot(row(l.u.value, r, H), hPrev)
		}
		st := lstmStep{
			x:     x,
			hPrev: hPrev,
			i:     make([]float64, H),
			f:     make([]float64, H),
			g:     make([]float64, H),
			o:     make([]float64, H),
			cPrev: c,
			c:     make([]float64, H),
			tanhC: make([]float64, H),
		}
		hNext := make([]float64, H)
		for j := 0; j < H; j++ {
			st.i[j] = sigmoid(z[gateInput*H+j])
			st.f[j] = sigmoid(z[gateForget*H+j])
			st.g[j] = math.Tanh(z[gateCell*H+j])
			st.o[j] = sigmoid(z[gateOutput*H+j])
			st.c[j] = st.f[j]*c[j] + st.i[j]*st.g[j]
			st.tanhC[j] = math.Tanh(st.c[j])
			hNext[j] = st.o[j] * st.tanhC[j]
		}
		tr.steps[t] = st
		tr.outputs[t] = hNext
		h = hNext
		c = st.c
	}
	return tr
}

// backward accumulates parameter gradients and returns the gradient with
// respect to each input step. dOut[t] may be nil when step t has no
// downstream consumer.
func (l *lstmLayer) backward(tr *lstmTrace, dOut [][]float64) [][]float64 {
	H := l.hidden
	dInputs := make([][]float64, len(tr.steps))
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dz := make([]float64, gateCount*H)
	for t := len(tr.steps) - 1; t >= 0; t-- {
		st := tr.steps[t]
		dh := make([]float64, H)
		copy(dh, dhNext)
		if dOut[t] != nil {
			floats.Add(dh, dOut[t])
		}
		for j := 0; j < H; j++ {
			do := dh[j] * st.tanhC[j]
			dc := dh[j]*st.o[j]*(1-st.tanhC[j]*st.tanhC[j]) + dcNext[j]
			di := dc * st.g[j]
			dg := dc * st.i[j]
			df := dc * st.cPrev[j]
			dz[gateInput*H+j] = di * st.i[j] * (1 - st.i[j])
			dz[gateForget*H+j] = df * st.f[j] * (1 - st.f[j])
			dz[gateCell*H+j] = dg * (1 - st.g[j]*st.g[j])
			dz[gateOutput*H+j] = do * st.o[j] * (1 - st.o[j])
			dcNext[j] = dc * st.f[j]
		}
		dx := make([]float64, l.in)
		dhPrev := make([]float64, H)
		for r, d := range dz {
			if d == 0 {
				continue
			}
			floats.AddScaled(row(l.w.grad, r, l.in), d, st.x)
			floats.AddScaled(row(l.u.grad, r, H), d, st.hPrev)
			l.b.grad[r] += d
			floats.AddScaled(dx, d, row(l.w.value, r, l.in))
			floats.AddScaled(dhPrev, d, row(l.u.value, r, H))
		}
		if tr.maskX != nil {
			floats.Mul(dx, tr.maskX)
		}
		if tr.maskH != nil {
			floats.Mul(dhPrev, tr.maskH)
		}
		dInputs[t] = dx
		dhNext = dhPrev
	}
	return dInputs
}
