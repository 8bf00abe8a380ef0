package audio

// Sample rates on either side of the bridge.
const (
	TelephonySampleRate = 8000
	AgentSampleRate     = 16000
)

// Upsample8kTo16k doubles the sample rate by linear interpolation. Every input
// sample is followed by the floor midpoint with its successor; the last sample
// is repeated so the output is exactly twice as long as the input.
//
// The arithmetic is integer floor (arithmetic shift), not rounding, and must
// stay that way: downstream receivers compare output byte for byte.
func Upsample8kTo16k(in []int16) []int16 {
	n := len(in)
	if n == 0 {
		return nil
	}
	out := make([]int16, 2*n)
	for i := 0; i < n-1; i++ {
		a, b := int32(in[i]), int32(in[i+1])
		out[2*i] = in[i]
		out[2*i+1] = int16((a + b) >> 1)
	}
	out[2*n-2] = in[n-1]
	out[2*n-1] = in[n-1]
	return out
}

// Downsample16kTo8k halves the sample rate by averaging consecutive pairs
// (floor). A trailing odd sample is dropped.
func Downsample16kTo8k(in []int16) []int16 {
	n := len(in) / 2
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		a, b := int32(in[2*i]), int32(in[2*i+1])
		out[i] = int16((a + b) >> 1)
	}
	return out
}
