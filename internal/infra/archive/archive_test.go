package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

func TestObjectKey(t *testing.T) {
	resp := forecast.Response{
		ID:          "run-1",
		Region:      forecast.Region{Code: "TNR"},
		GeneratedAt: time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("EAT", 3*3600)),
	}
	require.Equal(t, "TNR/2024-03-01/run-1.json", ObjectKey(resp))
}

func TestMemoryArchivePutAndLoad(t *testing.T) {
	a := NewMemoryArchive()
	resp := forecast.Response{
		ID:          "run-2",
		Region:      forecast.Region{Code: "MJN", Name: "Mahajanga"},
		GeneratedAt: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
		Source:      forecast.SourceRecurrent,
		HistorySize: 120,
	}
	require.NoError(t, a.Put(context.Background(), resp))
	require.Equal(t, []string{"MJN/2024-03-02/run-2.json"}, a.Keys())

	got, ok, err := a.Load("MJN/2024-03-02/run-2.json")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Mahajanga", got.Region.Name)
	require.Equal(t, forecast.SourceRecurrent, got.Source)
	require.Equal(t, 120, got.HistorySize)

	_, ok, err = a.Load("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "acct.r2.cloudflarestorage.com", sanitizeEndpoint("https://acct.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", sanitizeEndpoint(" http://localhost:9000 "))
	require.Equal(t, "minio:9000", sanitizeEndpoint("minio:9000"))
}

func TestEnsureBucketRetriesAfterFailure(t *testing.T) {
	a, err := NewR2Archive("http://localhost:9000", "key", "secret", "forecasts", "auto", nil)
	require.NoError(t, err)

	calls := 0
	a.prepareBucket = func(ctx context.Context) error {
		calls++
		return ctx.Err()
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, a.ensureBucket(cancelled), context.Canceled)
	require.NoError(t, a.ensureBucket(context.Background()))
	require.NoError(t, a.ensureBucket(context.Background()))
	require.Equal(t, 2, calls)
}
