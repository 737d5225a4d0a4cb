package audio

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

func collectFrame(t *testing.T, frames <-chan []byte) []byte {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func TestCapturerEmitsConvertedFramesInOrder(t *testing.T) {
	// Two frames of ramp samples, delivered in odd-sized chunks.
	samples := make([]float32, 2*FrameSamples)
	for i := range samples {
		samples[i] = float32(i%200)/200.0 - 0.5
	}
	raw := Float32BytesFromSamples(samples)
	backend := &FakeBackend{
		Chunks: [][]byte{raw[:4000], raw[4000:10000], raw[10000:]},
	}

	frames := make(chan []byte, 8)
	c, err := NewCapturer(Config{
		Backend: backend,
		OnFrame: func(frame []byte) { frames <- frame },
	})
	if err != nil {
		t.Fatalf("NewCapturer failed: %v", err)
	}
	t.Cleanup(c.Close)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	want := FloatTo16BitPCM(samples)
	first := collectFrame(t, frames)
	second := collectFrame(t, frames)
	if !bytes.Equal(first, want[:FrameBytes]) {
		t.Error("first frame does not match the converted input")
	}
	if !bytes.Equal(second, want[FrameBytes:]) {
		t.Error("second frame does not match the converted input")
	}
}

func TestCapturerStartDeviceUnavailable(t *testing.T) {
	backend := &FakeBackend{
		InitErr: fmt.Errorf("%w: no capture devices", ErrDeviceUnavailable),
	}
	c, err := NewCapturer(Config{Backend: backend, OnFrame: func([]byte) {}})
	if err != nil {
		t.Fatalf("NewCapturer failed: %v", err)
	}
	t.Cleanup(c.Close)

	if err := c.Start(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Start error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestCapturerStopAndRestart(t *testing.T) {
	samples := sineWindow(FrameSamples, 4, 0.5)
	backend := &FakeBackend{
		Chunks: [][]byte{Float32BytesFromSamples(samples)},
	}

	frames := make(chan []byte, 8)
	c, err := NewCapturer(Config{
		Backend: backend,
		OnFrame: func(frame []byte) { frames <- frame },
	})
	if err != nil {
		t.Fatalf("NewCapturer failed: %v", err)
	}
	t.Cleanup(c.Close)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	collectFrame(t, frames)
	c.Stop()
	c.Stop()

	if err := c.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	collectFrame(t, frames)

	c.Close()
	c.Close()
	if err := c.Start(); err == nil {
		t.Fatal("Start succeeded after Close")
	}
}
