package forecast

// Window is a fixed-length input sequence and the vector that follows it.
type Window struct {
	Inputs []FeatureVector
	Target FeatureVector
}

// Windows slices series into overlapping windows of the given length with
// one-step-ahead targets. It returns max(0, len(series)-length) windows.
func Windows(series []FeatureVector, length int) []Window {
	if length <= 0 || len(series) <= length {
		return nil
	}
	out := make([]Window, 0, len(series)-length)
	for i := 0; i+length < len(series); i++ {
		out = append(out, Window{
			Inputs: series[i : i+length : i+length],
			Target: series[i+length],
		})
	}
	return out
}
