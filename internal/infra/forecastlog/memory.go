package forecastlog

import (
	"context"
	"sync"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

// MemoryRunLog keeps forecast runs in process memory, newest last.
type MemoryRunLog struct {
	mu   sync.RWMutex
	runs []forecast.Run
	max  int
}

// NewMemoryRunLog constructs a run log retaining at most max entries (0 keeps everything).
func NewMemoryRunLog(max int) *MemoryRunLog {
	return &MemoryRunLog{max: max}
}

// Append implements forecast.RunLog.
func (l *MemoryRunLog) Append(_ context.Context, run forecast.Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, run)
	if l.max > 0 && len(l.runs) > l.max {
		l.runs = append([]forecast.Run(nil), l.runs[len(l.runs)-l.max:]...)
	}
	return nil
}

// Recent returns up to limit runs for the region, newest first.
func (l *MemoryRunLog) Recent(_ context.Context, region string, limit int) ([]forecast.Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]forecast.Run, 0)
	for i := len(l.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if l.runs[i].Region == region {
			out = append(out, l.runs[i])
		}
	}
	return out, nil
}

var _ forecast.RunLog = (*MemoryRunLog)(nil)
