package audio

import "math"

// Sample-format conversion between 32-bit float and 16-bit signed PCM, plus
// naive decimation. All functions are total over any finite input: empty in,
// empty out, never an error.
//
// The scaling is asymmetric on purpose: negative samples scale by 0x8000 and
// non-negative by 0x7fff, matching the asymmetric range of signed 16-bit PCM
// ([-32768, 32767]).

// FloatToInt16 converts float32 samples in [-1, 1] to 16-bit signed PCM.
// Samples outside [-1, 1] are clamped first.
func FloatToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(math.Round(float64(s) * 0x8000))
		} else {
			out[i] = int16(math.Round(float64(s) * 0x7fff))
		}
	}
	return out
}

// Int16ToFloat converts 16-bit signed PCM to float32 in [-1, 1], using the
// same asymmetric divisor choice as FloatToInt16.
func Int16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		if s < 0 {
			out[i] = float32(s) / 0x8000
		} else {
			out[i] = float32(s) / 0x7fff
		}
	}
	return out
}

// Decimate downsamples by taking every Nth sample, N = ratioIn/ratioOut
// (integer division). No anti-alias filtering is applied; this trades audio
// quality for zero latency and is acceptable for speech recognition input.
// A non-positive or non-reducing ratio returns the input unchanged.
func Decimate(samples []int16, ratioIn, ratioOut int) []int16 {
	if ratioIn <= 0 || ratioOut <= 0 || ratioIn <= ratioOut {
		return samples
	}
	step := ratioIn / ratioOut
	out := make([]int16, 0, len(samples)/step+1)
	for i := 0; i < len(samples); i += step {
		out = append(out, samples[i])
	}
	return out
}

// Int16ToBytes serializes samples as little-endian 16-bit PCM, the wire
// format of both the agent socket and the recognition channels.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// BytesToInt16 parses little-endian 16-bit PCM. A trailing odd byte is
// dropped.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	return out
}
