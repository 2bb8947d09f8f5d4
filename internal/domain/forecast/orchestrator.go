package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/yanqian/meteo-forecast/pkg/errors"
	"github.com/yanqian/meteo-forecast/pkg/util"
)

// TrainOutcome describes what a training request did.
type TrainOutcome string

const (
	TrainSkipped   TrainOutcome = "skipped"
	TrainCompleted TrainOutcome = "completed"
	TrainFailed    TrainOutcome = "failed"
	TrainRejected  TrainOutcome = "rejected"
)

// Status reflects a model slot.
type Status struct {
	IsReady    bool      `json:"isReady"`
	IsTraining bool      `json:"isTraining"`
	TrainedOn  int       `json:"trainedOn"`
	TrainedAt  time.Time `json:"trainedAt,omitempty"`
}

// Orchestrator owns one model slot. Trainings are serialized; a new model
// is published only once fully built, so readers never see a partial swap.
type Orchestrator struct {
	trainer          ModelTrainer
	fallback         FallbackPredictor
	logger           *slog.Logger
	retrainThreshold int
	now              func() time.Time

	training atomic.Bool

	mu          sync.RWMutex
	model       SequenceModel
	trainedOn   int
	trainedAt   time.Time
	trainedUpTo time.Time
}

// NewOrchestrator wires a slot. A non-positive threshold defaults to 30.
func NewOrchestrator(trainer ModelTrainer, fallback FallbackPredictor, retrainThreshold int, logger *slog.Logger) *Orchestrator {
	if retrainThreshold <= 0 {
		retrainThreshold = 30
	}
	return &Orchestrator{
		trainer:          trainer,
		fallback:         fallback,
		logger:           logger.With("component", "forecast.orchestrator"),
		retrainThreshold: retrainThreshold,
		now:              util.NowUTC,
	}
}

// TrainIfNeeded trains when no model is ready or at least the retrain
// threshold of new records arrived since the last fit. New records are those
// dated after the last trained record, or the growth in length for undated
// or backfilled history. Failures are logged and leave
// the slot untrained.
func (o *Orchestrator) TrainIfNeeded(ctx context.Context, history []WeatherRecord, onEpoch EpochFunc) TrainOutcome {
	outcome, _ := o.train(ctx, history, onEpoch, false)
	return outcome
}

// Retrain fits a new model regardless of history growth and returns the
// failure to the caller.
func (o *Orchestrator) Retrain(ctx context.Context, history []WeatherRecord, onEpoch EpochFunc) (TrainOutcome, error) {
	return o.train(ctx, history, onEpoch, true)
}

func (o *Orchestrator) train(ctx context.Context, history []WeatherRecord, onEpoch EpochFunc, force bool) (TrainOutcome, error) {
	if len(history) < minTrainingRecords {
		o.logger.Info("not enough history to train", "records", len(history))
		return TrainSkipped, apperrors.Wrap(CodeInsufficientData, "at least 14 records are required to train", nil)
	}
	if !force && !o.needsTraining(history) {
		return TrainSkipped, nil
	}
	if !o.training.CompareAndSwap(false, true) {
		o.logger.Warn("training already in progress, request rejected")
		return TrainRejected, apperrors.Wrap(CodeTrainingInProgress, "a training run is already in progress", nil)
	}
	defer o.training.Store(false)

	model, err := o.safeTrain(ctx, history, onEpoch)
	if err != nil {
		o.logger.Error("recurrent training failed, slot reverts to untrained", "error", err, "records", len(history))
		o.publish(nil, nil)
		return TrainFailed, err
	}
	o.publish(model, history)
	return TrainCompleted, nil
}

func (o *Orchestrator) safeTrain(ctx context.Context, history []WeatherRecord, onEpoch EpochFunc) (model SequenceModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			model = nil
			err = apperrors.Wrap(CodeTrainingFailure, "training panicked", fmt.Errorf("%v", r))
		}
	}()
	model, err = o.trainer.Train(ctx, history, onEpoch)
	if err == nil && (model == nil || !model.Ready()) {
		err = apperrors.Wrap(CodeTrainingFailure, "trainer returned no usable model", nil)
	}
	return model, err
}

func (o *Orchestrator) needsTraining(history []WeatherRecord) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.model == nil {
		return true
	}
	added := len(history) - o.trainedOn
	if !o.trainedUpTo.IsZero() {
		newer := 0
		for _, r := range history {
			if r.HasDate() && r.Date.After(o.trainedUpTo) {
				newer++
			}
		}
		added = max(added, newer)
	}
	return added >= o.retrainThreshold
}

func (o *Orchestrator) publish(model SequenceModel, history []WeatherRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.model = model
	if model == nil {
		o.trainedOn = 0
		o.trainedAt = time.Time{}
		o.trainedUpTo = time.Time{}
		return
	}
	o.trainedOn = len(history)
	o.trainedAt = o.now()
	o.trainedUpTo = latestDate(history)
}

func latestDate(history []WeatherRecord) time.Time {
	var latest time.Time
	for _, r := range history {
		if r.HasDate() && r.Date.After(latest) {
			latest = r.Date
		}
	}
	return latest
}

func (o *Orchestrator) current() SequenceModel {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.model
}

// Predict never fails. It uses the recurrent model when one is ready and at
// least seven history records exist, and the statistical predictor
// otherwise or whenever the recurrent path errors.
func (o *Orchestrator) Predict(ctx context.Context, current WeatherRecord, history []WeatherRecord, trends Trends, days int) Prediction {
	if model := o.current(); model != nil && model.Ready() && len(history) >= windowLength {
		records, err := o.safePredict(model, history, days, anchorDay(current, o.now))
		if err == nil {
			return Prediction{Source: SourceRecurrent, Records: records}
		}
		o.logger.Warn("recurrent prediction failed, using statistical fallback", "error", err)
	}
	return Prediction{Source: SourceStatistical, Records: o.fallback.Predict(current, trends, days)}
}

func (o *Orchestrator) safePredict(model SequenceModel, history []WeatherRecord, days int, anchor time.Time) (records []WeatherRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = apperrors.Wrap(CodePredictionFailure, "prediction panicked", fmt.Errorf("%v", r))
		}
	}()
	return model.PredictSequence(history, days, anchor)
}

// Evaluate scores the current model on test, or returns zeros without one.
func (o *Orchestrator) Evaluate(test []WeatherRecord) Evaluation {
	model := o.current()
	if model == nil {
		return Evaluation{}
	}
	return model.Evaluate(test)
}

// Status is a read-only view of the slot.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Status{
		IsReady:    o.model != nil && o.model.Ready(),
		IsTraining: o.training.Load(),
		TrainedOn:  o.trainedOn,
		TrainedAt:  o.trainedAt,
	}
}
