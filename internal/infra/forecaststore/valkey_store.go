package forecaststore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

// ValkeyStore caches forecast responses in a Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "forecast"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (forecast.Response, bool, error) {
	if key == "" {
		return forecast.Response{}, false, nil
	}
	cmd := s.client.B().Get().Key(s.entryKey(key)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return forecast.Response{}, false, nil
		}
		return forecast.Response{}, false, err
	}
	var resp forecast.Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return forecast.Response{}, false, err
	}
	return resp, true, nil
}

func (s *ValkeyStore) Save(ctx context.Context, key string, resp forecast.Response, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.entryKey(key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) entryKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

var _ forecast.Store = (*ValkeyStore)(nil)
