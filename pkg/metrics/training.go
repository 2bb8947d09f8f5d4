package metrics

import "time"

// TrainingStats summarizes one recurrent model fit.
type TrainingStats struct {
	Epochs        int           `json:"epochs"`
	Samples       int           `json:"samples"`
	FinalLoss     float64       `json:"finalLoss"`
	ValidationMAE float64       `json:"validationMae,omitempty"`
	Duration      time.Duration `json:"durationNs"`
}
