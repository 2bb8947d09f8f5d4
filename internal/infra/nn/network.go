// Package nn implements the small recurrent regression network used by the
// forecaster: two stacked LSTM layers, a ReLU dense layer with dropout and a
// linear output layer, trained with Adam against mean squared error.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrNonFiniteLoss is returned when training diverges.
var ErrNonFiniteLoss = errors.New("loss is not finite")

// Config describes the architecture and the fit schedule.
type Config struct {
	Inputs           int
	Outputs          int
	Hidden1          int
	Hidden2          int
	Dense            int
	Dropout          float64
	RecurrentDropout float64
	LearningRate     float64
	Epochs           int
	BatchSize        int
	ValidationSplit  float64
	Seed             int64
}

// DefaultConfig returns the forecaster architecture for the given widths.
func DefaultConfig(inputs, outputs int) Config {
	return Config{
		Inputs:           inputs,
		Outputs:          outputs,
		Hidden1:          50,
		Hidden2:          50,
		Dense:            25,
		Dropout:          0.2,
		RecurrentDropout: 0.2,
		LearningRate:     0.001,
		Epochs:           50,
		BatchSize:        8,
		ValidationSplit:  0.2,
		Seed:             1,
	}
}

func (c Config) validate() error {
	switch {
	case c.Inputs <= 0 || c.Outputs <= 0:
		return errors.New("inputs and outputs must be positive")
	case c.Hidden1 <= 0 || c.Hidden2 <= 0 || c.Dense <= 0:
		return errors.New("layer widths must be positive")
	case c.Epochs <= 0 || c.BatchSize <= 0:
		return errors.New("epochs and batch size must be positive")
	case c.LearningRate <= 0:
		return errors.New("learning rate must be positive")
	case c.Dropout < 0 || c.Dropout >= 1 || c.RecurrentDropout < 0 || c.RecurrentDropout >= 1:
		return errors.New("dropout rates must be in [0, 1)")
	case c.ValidationSplit < 0 || c.ValidationSplit >= 1:
		return errors.New("validation split must be in [0, 1)")
	}
	return nil
}

// Sample is one training pair: a sequence of input vectors and the target
// vector that follows it.
type Sample struct {
	Input  [][]float64
	Target []float64
}

// History carries per-epoch metrics of a fit.
type History struct {
	Loss    []float64
	MAE     []float64
	ValLoss []float64
	ValMAE  []float64
}

// Network is a two-layer LSTM regressor. It is not safe for concurrent Fit
// calls; Predict and Evaluate may run concurrently once fitting is done.
type Network struct {
	cfg    Config
	rng    *rand.Rand
	lstm1  *lstmLayer
	lstm2  *lstmLayer
	hidden *denseLayer
	output *denseLayer
}

// New builds a network with Glorot-initialized weights drawn from cfg.Seed.
func New(cfg Config) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("nn config: %w", err)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Network{
		cfg:    cfg,
		rng:    rng,
		lstm1:  newLSTMLayer(rng, cfg.Inputs, cfg.Hidden1, cfg.Dropout, cfg.RecurrentDropout),
		lstm2:  newLSTMLayer(rng, cfg.Hidden1, cfg.Hidden2, cfg.Dropout, cfg.RecurrentDropout),
		hidden: newDenseLayer(rng, cfg.Hidden2, cfg.Dense, ReLU),
		output: newDenseLayer(rng, cfg.Dense, cfg.Outputs, Linear),
	}, nil
}

func (n *Network) params() []*param {
	var ps []*param
	ps = append(ps, n.lstm1.params()...)
	ps = append(ps, n.lstm2.params()...)
	ps = append(ps, n.hidden.params()...)
	ps = append(ps, n.output.params()...)
	return ps
}

type forwardTrace struct {
	l1, l2     *lstmTrace
	hidden     denseTrace
	dropMask   []float64
	out        denseTrace
	prediction []float64
}

// forward runs one sequence. A nil rng means inference mode.
func (n *Network) forward(seq [][]float64, rng *rand.Rand) forwardTrace {
	var tr forwardTrace
	tr.l1 = n.lstm1.forward(seq, rng)
	tr.l2 = n.lstm2.forward(tr.l1.outputs, rng)
	last := tr.l2.outputs[len(tr.l2.outputs)-1]
	h, hTrace := n.hidden.forward(last)
	tr.hidden = hTrace
	tr.dropMask = dropoutMask(rng, len(h), n.cfg.Dropout)
	y, oTrace := n.output.forward(applyMask(h, tr.dropMask))
	tr.out = oTrace
	tr.prediction = y
	return tr
}

func (n *Network) backward(tr forwardTrace, dy []float64) {
	dh := n.output.backward(tr.out, dy)
	if tr.dropMask != nil {
		for i := range dh {
			dh[i] *= tr.dropMask[i]
		}
	}
	dLast := n.hidden.backward(tr.hidden, dh)
	dOut2 := make([][]float64, len(tr.l2.steps))
	dOut2[len(dOut2)-1] = dLast
	dSeq := n.lstm2.backward(tr.l2, dOut2)
	n.lstm1.backward(tr.l1, dSeq)
}

// accumulate runs forward and backward over a batch and adds the gradient of
// the batch mean squared error into the parameter gradients. It returns the
// summed squared and absolute errors.
func (n *Network) accumulate(batch []Sample, rng *rand.Rand) (sq, abs float64) {
	scale := 2 / float64(len(batch)*n.cfg.Outputs)
	for _, s := range batch {
		tr := n.forward(s.Input, rng)
		dy := make([]float64, n.cfg.Outputs)
		for k, y := range tr.prediction {
			diff := y - s.Target[k]
			sq += diff * diff
			abs += math.Abs(diff)
			dy[k] = diff * scale
		}
		n.backward(tr, dy)
	}
	return sq, abs
}

// Fit trains the network. The trailing ValidationSplit share of samples is
// held out; the rest is shuffled every epoch and consumed in mini-batches.
// onEpoch, when set, receives the zero-based epoch index and the mean
// training loss. Gradient and optimizer buffers live only for the duration
// of the call.
func (n *Network) Fit(samples []Sample, onEpoch func(epoch int, loss float64)) (hist History, err error) {
	if len(samples) == 0 {
		return History{}, errors.New("no training samples")
	}
	for _, s := range samples {
		if len(s.Input) == 0 || len(s.Target) != n.cfg.Outputs {
			return History{}, errors.New("malformed training sample")
		}
	}

	params := n.params()
	for _, p := range params {
		p.allocGrad()
	}
	defer func() {
		for _, p := range params {
			p.releaseGrad()
		}
		if r := recover(); r != nil {
			err = fmt.Errorf("fit panicked: %v", r)
		}
	}()

	train, val := splitValidation(samples, n.cfg.ValidationSplit)
	opt := newAdam(params, n.cfg.LearningRate)
	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}
	batch := make([]Sample, 0, n.cfg.BatchSize)

	for epoch := 0; epoch < n.cfg.Epochs; epoch++ {
		n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var sq, abs float64
		for start := 0; start < len(order); start += n.cfg.BatchSize {
			end := min(start+n.cfg.BatchSize, len(order))
			batch = batch[:0]
			for _, idx := range order[start:end] {
				batch = append(batch, train[idx])
			}
			for _, p := range params {
				p.zeroGrad()
			}
			bsq, babs := n.accumulate(batch, n.rng)
			sq += bsq
			abs += babs
			opt.apply()
		}
		denom := float64(len(train) * n.cfg.Outputs)
		loss := sq / denom
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return hist, fmt.Errorf("epoch %d: %w", epoch, ErrNonFiniteLoss)
		}
		hist.Loss = append(hist.Loss, loss)
		hist.MAE = append(hist.MAE, abs/denom)
		if len(val) > 0 {
			vl, vm := n.Evaluate(val)
			hist.ValLoss = append(hist.ValLoss, vl)
			hist.ValMAE = append(hist.ValMAE, vm)
		}
		if onEpoch != nil {
			onEpoch(epoch, loss)
		}
	}
	return hist, nil
}

// splitValidation keeps the trailing share for validation. When the split
// would leave nothing to train on, every sample is used for training.
func splitValidation(samples []Sample, share float64) (train, val []Sample) {
	if share <= 0 {
		return samples, nil
	}
	at := int(float64(len(samples)) * (1 - share))
	if at <= 0 {
		return samples, nil
	}
	return samples[:at:at], samples[at:]
}

// Predict runs inference on one sequence.
func (n *Network) Predict(seq [][]float64) []float64 {
	return n.forward(seq, nil).prediction
}

// Evaluate returns mean squared error and mean absolute error without dropout.
func (n *Network) Evaluate(samples []Sample) (mse, mae float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	for _, s := range samples {
		y := n.Predict(s.Input)
		for k := range y {
			diff := y[k] - s.Target[k]
			mse += diff * diff
			mae += math.Abs(diff)
		}
	}
	denom := float64(len(samples) * n.cfg.Outputs)
	return mse / denom, mae / denom
}
