package forecast

import (
	apperrors "github.com/yanqian/meteo-forecast/pkg/errors"
)

// Error codes surfaced by the forecast domain.
const (
	CodeInsufficientData    = "insufficient_data"
	CodeInsufficientContext = "insufficient_context"
	CodeModelNotReady       = "model_not_ready"
	CodeTrainingFailure     = "training_failure"
	CodeTrainingInProgress  = "training_in_progress"
	CodeInvalidInput        = "invalid_input"
	CodeSupplierError       = "supplier_error"
	CodePredictionFailure   = "prediction_failure"
	CodeStorageError        = "storage_error"
)

// ErrModelNotReady is returned by predictions on an untrained model.
var ErrModelNotReady = apperrors.Wrap(CodeModelNotReady, "recurrent model is not trained", nil)
