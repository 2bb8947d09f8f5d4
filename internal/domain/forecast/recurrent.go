package forecast

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/yanqian/meteo-forecast/internal/infra/nn"
	apperrors "github.com/yanqian/meteo-forecast/pkg/errors"
	"github.com/yanqian/meteo-forecast/pkg/util"
)

const (
	minTrainingRecords = 14
	windowLength       = 7
)

// RecurrentPredictor trains two-layer LSTM forecasters on windowed history.
type RecurrentPredictor struct {
	cfg    ModelConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRecurrentPredictor builds a trainer. Zero fields of cfg keep the
// network defaults.
func NewRecurrentPredictor(cfg ModelConfig, logger *slog.Logger) *RecurrentPredictor {
	return &RecurrentPredictor{
		cfg:    cfg,
		logger: logger.With("component", "forecast.recurrent"),
		now:    util.NowUTC,
	}
}

func (p *RecurrentPredictor) networkConfig() nn.Config {
	cfg := nn.DefaultConfig(NumFeatures, NumFeatures)
	if p.cfg.Epochs > 0 {
		cfg.Epochs = p.cfg.Epochs
	}
	if p.cfg.BatchSize > 0 {
		cfg.BatchSize = p.cfg.BatchSize
	}
	if p.cfg.LearningRate > 0 {
		cfg.LearningRate = p.cfg.LearningRate
	}
	if p.cfg.Seed != 0 {
		cfg.Seed = p.cfg.Seed
	}
	return cfg
}

// Train fits a fresh model on history. onEpoch is called once per epoch.
// Any failure leaves nothing behind; the caller keeps no partial model.
func (p *RecurrentPredictor) Train(ctx context.Context, history []WeatherRecord, onEpoch EpochFunc) (SequenceModel, error) {
	if len(history) < minTrainingRecords {
		return nil, apperrors.Wrap(CodeInsufficientData, "at least 14 records are required to train", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(CodeTrainingFailure, "training cancelled before start", err)
	}

	scaler, err := FitScaler(ToFeatures(history))
	if err != nil {
		return nil, err
	}
	if cols := scaler.DegenerateColumns(); len(cols) > 0 {
		p.logger.Debug("constant feature columns normalize to zero", "columns", cols)
	}
	samples := toSamples(Windows(scaler.Normalize(ToFeatures(history)), windowLength))

	net, err := nn.New(p.networkConfig())
	if err != nil {
		return nil, apperrors.Wrap(CodeTrainingFailure, "failed to build network", err)
	}

	started := p.now()
	var progress func(int, float64)
	if onEpoch != nil {
		progress = func(epoch int, loss float64) { onEpoch(epoch, loss) }
	}
	hist, err := net.Fit(samples, progress)
	if err != nil {
		return nil, apperrors.Wrap(CodeTrainingFailure, "recurrent fit failed", err)
	}

	model := &RecurrentModel{
		net:       net,
		scaler:    scaler,
		trainedOn: len(history),
		trainedAt: p.now(),
		losses:    hist.Loss,
	}
	p.logger.Info("recurrent model trained",
		"records", len(history),
		"windows", len(samples),
		"epochs", len(hist.Loss),
		"final_loss", model.FinalLoss(),
		"duration", p.now().Sub(started),
	)
	return model, nil
}

// RecurrentModel is an immutable trained network with its scaler.
type RecurrentModel struct {
	net       *nn.Network
	scaler    Scaler
	trainedOn int
	trainedAt time.Time
	losses    []float64
}

// Ready reports whether the model can predict.
func (m *RecurrentModel) Ready() bool {
	return m != nil && m.net != nil
}

// FinalLoss is the last epoch's training loss.
func (m *RecurrentModel) FinalLoss() float64 {
	if m == nil || len(m.losses) == 0 {
		return 0
	}
	return m.losses[len(m.losses)-1]
}

// PredictSequence rolls the model forward days times from the last seven
// records, feeding each normalized prediction back into the window.
// Records are dated anchor+1 … anchor+days; a non-positive days yields none.
func (m *RecurrentModel) PredictSequence(recent []WeatherRecord, days int, anchor time.Time) ([]WeatherRecord, error) {
	if !m.Ready() {
		return nil, ErrModelNotReady
	}
	if days <= 0 {
		return nil, nil
	}
	if len(recent) < windowLength {
		return nil, apperrors.Wrap(CodeInsufficientContext, "at least 7 recent records are required", nil)
	}

	tail := m.scaler.Normalize(ToFeatures(recent[len(recent)-windowLength:]))
	window := make([][]float64, 0, windowLength)
	for _, v := range tail {
		window = append(window, v[:])
	}

	day0 := util.StartOfDay(anchor)
	out := make([]WeatherRecord, 0, days)
	for d := 1; d <= days; d++ {
		raw := m.net.Predict(window)
		var next FeatureVector
		for j, x := range raw {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, apperrors.Wrap(CodePredictionFailure, "model produced non-finite output", nil)
			}
			next[j] = x
		}
		out = append(out, FromFeatures(m.scaler.DenormalizeOne(next), day0.AddDate(0, 0, d)))
		window = append(window[1:], next[:])
	}
	return out, nil
}

// Evaluate reports MAE and RMSE of one-step predictions on normalized
// windows of test. Fewer than 14 records yield zeros.
func (m *RecurrentModel) Evaluate(test []WeatherRecord) Evaluation {
	if !m.Ready() || len(test) < minTrainingRecords {
		return Evaluation{}
	}
	samples := toSamples(Windows(m.scaler.Normalize(ToFeatures(test)), windowLength))
	mse, mae := m.net.Evaluate(samples)
	return Evaluation{MAE: mae, RMSE: math.Sqrt(mse)}
}

func toSamples(windows []Window) []nn.Sample {
	samples := make([]nn.Sample, len(windows))
	for i, w := range windows {
		input := make([][]float64, len(w.Inputs))
		for t := range w.Inputs {
			v := w.Inputs[t]
			input[t] = v[:]
		}
		target := w.Target
		samples[i] = nn.Sample{Input: input, Target: target[:]}
	}
	return samples
}
