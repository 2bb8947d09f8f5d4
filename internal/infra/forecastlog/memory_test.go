package forecastlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

func TestMemoryRunLogRecentNewestFirst(t *testing.T) {
	log := NewMemoryRunLog(0)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(ctx, forecast.Run{ID: fmt.Sprintf("tnr-%d", i), Region: "TNR", CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
		require.NoError(t, log.Append(ctx, forecast.Run{ID: fmt.Sprintf("mjn-%d", i), Region: "MJN"}))
	}

	runs, err := log.Recent(ctx, "TNR", 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "tnr-4", runs[0].ID)
	require.Equal(t, "tnr-2", runs[2].ID)

	all, err := log.Recent(ctx, "MJN", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)

	none, err := log.Recent(ctx, "FIA", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemoryRunLogRetention(t *testing.T) {
	log := NewMemoryRunLog(2)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, log.Append(ctx, forecast.Run{ID: fmt.Sprint(i), Region: "TNR"}))
	}
	runs, err := log.Recent(ctx, "TNR", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "3", runs[0].ID)
	require.Equal(t, "2", runs[1].ID)
}

func TestFeatureVectorConversion(t *testing.T) {
	v := forecast.FeatureVector{22, 65, 2.5, 12, 180, 1012, 17, 30, 7}
	back := fromFloat32(toFloat32(v))
	for i := range v {
		require.InDelta(t, v[i], back[i], 1e-4)
	}
}
