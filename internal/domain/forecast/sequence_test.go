package forecast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowsCount(t *testing.T) {
	for n := 0; n <= 12; n++ {
		series := ToFeatures(syntheticHistory(n))
		want := max(0, n-7)
		require.Len(t, Windows(series, 7), want, "n=%d", n)
	}
}

func TestWindowsTargetsFollowInputs(t *testing.T) {
	series := ToFeatures(syntheticHistory(10))
	ws := Windows(series, 7)
	require.Len(t, ws, 3)
	for i, w := range ws {
		require.Equal(t, series[i:i+7], w.Inputs)
		require.Equal(t, series[i+7], w.Target)
	}
}

func TestWindowsInputsDoNotAliasOnAppend(t *testing.T) {
	series := ToFeatures(syntheticHistory(9))
	ws := Windows(series, 7)
	_ = append(ws[0].Inputs, FeatureVector{})
	require.Equal(t, series[7], ws[0].Target)
	require.NotEqual(t, FeatureVector{}, series[7])
}

func TestWindowsRejectsNonPositiveLength(t *testing.T) {
	require.Empty(t, Windows(ToFeatures(syntheticHistory(5)), 0))
}
