package pipeline

import "math"

// Int16ToFloat32 normalizes 16-bit PCM into [-1, 1) floats, the input
// format the recognizer expects.
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Downsample48kTo16k reduces the sample rate by taking every 3rd sample.
// Intentionally lossy: no anti-aliasing filter is applied. Good enough for
// speech recognition input; not suitable for playback.
func Downsample48kTo16k(samples []float32) []float32 {
	out := make([]float32, 0, len(samples)/3+1)
	for i := 0; i < len(samples); i += 3 {
		out = append(out, samples[i])
	}
	return out
}

// RMS computes the root-mean-square signal energy of normalized samples.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sumSq / float64(len(samples))))
}
