package archive

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

// MemoryArchive keeps encoded reports in memory. Useful for tests and local dev.
type MemoryArchive struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryArchive constructs the archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{blobs: make(map[string][]byte)}
}

// Put encodes the report and stores it under its object key.
func (a *MemoryArchive) Put(_ context.Context, resp forecast.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[ObjectKey(resp)] = data
	return nil
}

// Keys lists stored object keys in lexical order.
func (a *MemoryArchive) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.blobs))
	for k := range a.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load decodes a stored report.
func (a *MemoryArchive) Load(key string) (forecast.Response, bool, error) {
	a.mu.RLock()
	data, ok := a.blobs[key]
	a.mu.RUnlock()
	if !ok {
		return forecast.Response{}, false, nil
	}
	var resp forecast.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return forecast.Response{}, false, err
	}
	return resp, true, nil
}

var _ forecast.Archive = (*MemoryArchive)(nil)
