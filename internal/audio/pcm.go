package audio

import (
	"encoding/binary"
	"math"
)

// FloatTo16BitPCM converts normalized float32 samples to little-endian
// signed 16-bit PCM. Samples are clamped to [-1, 1] first, so the range
// saturates: 1.0 maps to 32767 and -1.0 maps to -32768.
func FloatTo16BitPCM(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Float32SamplesFromBytes reinterprets a little-endian float32 byte stream
// as samples, dropping any trailing partial sample.
func Float32SamplesFromBytes(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Float32BytesFromSamples encodes samples as a little-endian float32 byte
// stream, the shape capture devices deliver.
func Float32BytesFromSamples(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
