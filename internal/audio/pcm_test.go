package audio

import (
	"encoding/binary"
	"testing"
)

func TestFloatTo16BitPCMSaturation(t *testing.T) {
	cases := []struct {
		name string
		in   float32
		want int16
	}{
		{"positive full scale", 1.0, 32767},
		{"negative full scale", -1.0, -32768},
		{"zero", 0, 0},
		{"above range clamps", 2.0, 32767},
		{"below range clamps", -2.0, -32768},
		{"half scale", 0.5, 16383},
		{"negative half scale", -0.5, -16384},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := FloatTo16BitPCM([]float32{tc.in})
			if len(out) != 2 {
				t.Fatalf("output length = %d, want 2", len(out))
			}
			got := int16(binary.LittleEndian.Uint16(out))
			if got != tc.want {
				t.Errorf("FloatTo16BitPCM(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestFloatTo16BitPCMLength(t *testing.T) {
	out := FloatTo16BitPCM(make([]float32, FrameSamples))
	if len(out) != FrameBytes {
		t.Errorf("frame conversion produced %d bytes, want %d", len(out), FrameBytes)
	}
}

func TestFloat32SampleCodecRoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.75, 1, -1}
	got := Float32SamplesFromBytes(Float32BytesFromSamples(in))
	if len(got) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], in[i])
		}
	}
}

func TestFloat32SamplesFromBytesDropsPartialSample(t *testing.T) {
	data := Float32BytesFromSamples([]float32{0.5, -0.5})
	got := Float32SamplesFromBytes(data[:len(data)-1])
	if len(got) != 1 {
		t.Fatalf("decoded %d samples, want 1", len(got))
	}
	if got[0] != 0.5 {
		t.Errorf("sample = %v, want 0.5", got[0])
	}
}
