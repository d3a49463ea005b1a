package audio

import "math"

// RMS calculates the root mean square of a window of samples. Used for
// capture level reporting; endpointing is left to the recognition service.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// IsSilence reports whether a window falls below the given RMS threshold.
func IsSilence(samples []int16, threshold float64) bool {
	return RMS(samples) < threshold
}
