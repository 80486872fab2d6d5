package ffmpeg

import (
	"encoding/binary"
	"math"
)

// BytesToSamples converts little-endian signed 16-bit PCM to floats in
// [-1, 1). A trailing odd byte is ignored.
func BytesToSamples(raw []byte) []float64 {
	out := make([]float64, len(raw)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		out[i] = float64(v) / 32768
	}
	return out
}

// SamplesToBytes clips floats to the int16 range and encodes them as
// little-endian signed 16-bit PCM.
func SamplesToBytes(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(Clip16(s)))
	}
	return out
}

// Clip16 scales a float sample to int16, saturating at the bounds.
func Clip16(s float64) int16 {
	v := math.Round(s * 32768)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
