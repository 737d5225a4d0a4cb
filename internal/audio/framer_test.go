package audio

import (
	"bytes"
	"testing"
)

func patternBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestFramerEmitsFixedFramesInOrder(t *testing.T) {
	var frames [][]byte
	f := NewFramer(func(frame []byte) { frames = append(frames, frame) })

	data := patternBytes(2*FrameBytes + FrameBytes/2)
	f.Push(data[:1000])
	f.Push(data[1000:5000])
	f.Push(data[5000:])

	if len(frames) != 2 {
		t.Fatalf("emitted %d frames, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], data[:FrameBytes]) {
		t.Error("first frame does not match the first input window")
	}
	if !bytes.Equal(frames[1], data[FrameBytes:2*FrameBytes]) {
		t.Error("second frame does not match the second input window")
	}
	if got := f.Buffered(); got != FrameBytes/2 {
		t.Errorf("buffered remainder = %d bytes, want %d", got, FrameBytes/2)
	}
	for _, frame := range frames {
		if len(frame) != FrameBytes {
			t.Errorf("frame size = %d, want %d", len(frame), FrameBytes)
		}
	}
}

func TestFramerFramesAreIndependentCopies(t *testing.T) {
	var frames [][]byte
	f := NewFramer(func(frame []byte) { frames = append(frames, frame) })

	src := bytes.Repeat([]byte{0xAA}, FrameBytes)
	f.Push(src)
	src[0] = 0x00
	f.Push(bytes.Repeat([]byte{0xBB}, FrameBytes))

	if len(frames) != 2 {
		t.Fatalf("emitted %d frames, want 2", len(frames))
	}
	if frames[0][0] != 0xAA {
		t.Error("first frame aliases the caller's buffer")
	}
	frames[0][0] = 0x11
	if frames[1][0] != 0xBB {
		t.Error("frames share a backing array")
	}
}

func TestFramerReset(t *testing.T) {
	var frames [][]byte
	f := NewFramer(func(frame []byte) { frames = append(frames, frame) })

	f.Push(patternBytes(FrameBytes / 2))
	f.Reset()
	if got := f.Buffered(); got != 0 {
		t.Fatalf("buffered after reset = %d, want 0", got)
	}

	full := bytes.Repeat([]byte{0x42}, FrameBytes)
	f.Push(full)
	if len(frames) != 1 {
		t.Fatalf("emitted %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], full) {
		t.Error("frame after reset stitched in pre-reset bytes")
	}
}

func TestFramerNilEmit(t *testing.T) {
	f := NewFramer(nil)
	f.Push(patternBytes(3 * FrameBytes))
	if got := f.Buffered(); got != 0 {
		t.Errorf("buffered = %d, want 0", got)
	}
}
