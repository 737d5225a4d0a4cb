package audio

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Config wires a Capturer.
type Config struct {
	// Backend supplies capture devices. Nil initializes the platform
	// backend, which the capturer then owns and closes.
	Backend Backend

	// Device selects a specific capture device; nil uses the default.
	Device *DeviceInfo

	// OnFrame receives fixed-size PCM16 frames in capture order. It runs
	// on the capture callback path and must not block for long.
	OnFrame func(frame []byte)

	// OnLevel receives display-cadence level updates in [0, 1]. May be nil.
	OnLevel func(level float64)

	Logger *zap.Logger
}

// Capturer runs the capture pipeline: device callbacks deliver float32
// samples, which are converted with saturation, sliced into fixed frames,
// and mirrored into the level meter.
type Capturer struct {
	backend     Backend
	ownsBackend bool
	deviceInfo  *DeviceInfo
	framer      *Framer
	meter       *Meter
	logger      *zap.Logger

	mu      sync.Mutex
	device  Device
	running bool
	closed  bool
}

// NewCapturer creates a Capturer. The device itself is not acquired until
// Start.
func NewCapturer(cfg Config) (*Capturer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := cfg.Backend
	owns := false
	if backend == nil {
		var err error
		backend, err = NewMalgoBackend()
		if err != nil {
			return nil, err
		}
		owns = true
	}
	return &Capturer{
		backend:     backend,
		ownsBackend: owns,
		deviceInfo:  cfg.Device,
		framer:      NewFramer(cfg.OnFrame),
		meter:       NewMeter(0, cfg.OnLevel),
		logger:      logger,
	}, nil
}

// Start acquires the capture device at the fixed mono 24 kHz configuration
// and begins emitting frames. It fails with ErrDeviceUnavailable when the
// device cannot be opened or started.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("capturer is closed")
	}
	if c.running {
		return nil
	}
	if c.device == nil {
		dev, err := c.backend.NewCapture(c.deviceInfo, CaptureConfig{
			SampleRate: SampleRate,
			Channels:   Channels,
		}, c.onData)
		if err != nil {
			return err
		}
		c.device = dev
	}
	if err := c.device.Start(); err != nil {
		return err
	}
	c.meter.Start()
	c.running = true
	c.logger.Info("Audio capture started",
		zap.Int("sample_rate", SampleRate),
		zap.Int("frame_bytes", FrameBytes))
	return nil
}

// Stop halts frame emission but keeps the device and backend warm for a
// fast restart. Any buffered partial frame is dropped.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.device.Stop()
	c.meter.Stop()
	c.framer.Reset()
	c.running = false
	c.logger.Info("Audio capture stopped")
}

// Close tears down the device and, when the capturer created it, the
// backend. Safe to call multiple times.
func (c *Capturer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.running {
		c.device.Stop()
		c.meter.Stop()
		c.running = false
	}
	if c.device != nil {
		c.device.Close()
		c.device = nil
	}
	if c.ownsBackend {
		c.backend.Close()
	}
	c.closed = true
}

// Level returns the meter's most recent reading.
func (c *Capturer) Level() float64 {
	return c.meter.Level()
}

func (c *Capturer) onData(data []byte, _ uint32) {
	samples := Float32SamplesFromBytes(data)
	c.meter.Observe(samples)
	c.framer.Push(FloatTo16BitPCM(samples))
}
