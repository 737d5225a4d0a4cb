// Package audio acquires microphone input and turns it into the fixed-size
// PCM frames the relay expects: mono 24 kHz signed 16-bit little-endian.
// Device callbacks deliver normalized float32 samples; conversion saturates
// at the int16 boundaries. A decoupled meter computes a coarse input level
// at display cadence for UI feedback.
package audio

import "errors"

const (
	// SampleRate is the fixed capture rate in Hz.
	SampleRate = 24000

	// Channels is fixed to mono.
	Channels = 1

	// FrameSamples is the number of samples per emitted frame (100 ms).
	FrameSamples = 2400

	// FrameBytes is the size of one emitted PCM16 frame.
	FrameBytes = FrameSamples * 2
)

// ErrDeviceUnavailable reports that no capture device could be acquired:
// none present, permission denied, or the backend refused to open it.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// DataCallback receives raw little-endian float32 sample data from a
// capture device. frameCount is the number of samples per channel.
type DataCallback func(data []byte, frameCount uint32)

// CaptureConfig selects the capture format.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DeviceInfo identifies one capture device.
type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Backend enumerates capture devices and opens them.
type Backend interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig, callback DataCallback) (Device, error)
	Close()
}

// Device is one opened capture device. Start and Stop may be called
// repeatedly; Close tears the device down.
type Device interface {
	Start() error
	Stop()
	Close()
}
