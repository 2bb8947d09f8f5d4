package forecaststore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "TNR:5:2024-03-01")
	require.NoError(t, err)
	require.False(t, ok)

	resp := forecast.Response{ID: "abc", Region: forecast.Region{Code: "TNR"}, Source: forecast.SourceStatistical}
	require.NoError(t, store.Save(ctx, "TNR:5:2024-03-01", resp, time.Minute))

	got, ok, err := store.Get(ctx, "TNR:5:2024-03-01")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", got.ID)
	require.Equal(t, forecast.SourceStatistical, got.Source)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", forecast.Response{ID: "1"}, time.Minute))
	_, ok, _ := store.Get(ctx, "k")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreWithoutTTLKeepsEntry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", forecast.Response{ID: "1"}, 0))
	now = now.Add(24 * time.Hour)
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}
