package audio

import (
	"math"
	"sync"
	"time"
)

const (
	// defaultMeterInterval is display cadence, roughly once per rendered
	// frame at 30 fps.
	defaultMeterInterval = 33 * time.Millisecond

	// meterBins is the number of low-frequency DFT bins averaged into the
	// level value.
	meterBins = 32

	// meterWindow caps how many samples one tick evaluates.
	meterWindow = 512
)

// Meter computes a coarse input level from the most recent capture window.
// It runs on its own ticker, decoupled from frame emission: stopping or
// starving the meter never affects the audio path, and vice versa.
type Meter struct {
	interval time.Duration
	onLevel  func(level float64)

	mu       sync.Mutex
	window   []float32
	level    float64
	running  bool
	stopChan chan struct{}
}

// NewMeter creates a Meter ticking at the given interval (<= 0 uses the
// display-cadence default). onLevel may be nil.
func NewMeter(interval time.Duration, onLevel func(float64)) *Meter {
	if interval <= 0 {
		interval = defaultMeterInterval
	}
	return &Meter{interval: interval, onLevel: onLevel}
}

// Observe snapshots the latest samples for the next tick to evaluate.
func (m *Meter) Observe(samples []float32) {
	window := make([]float32, len(samples))
	copy(window, samples)
	m.mu.Lock()
	m.window = window
	m.mu.Unlock()
}

// Level returns the most recently computed level in [0, 1].
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Start begins the metering loop. Calling Start on a running meter is a
// no-op.
func (m *Meter) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.stopChan = make(chan struct{})
	m.running = true
	go m.loop(m.stopChan)
}

// Stop halts the metering loop. Safe to call multiple times; the meter can
// be started again afterwards.
func (m *Meter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopChan)
	m.running = false
}

func (m *Meter) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			window := m.window
			m.mu.Unlock()

			level := spectrumLevel(window)

			m.mu.Lock()
			m.level = level
			m.mu.Unlock()
			if m.onLevel != nil {
				m.onLevel(level)
			}
		}
	}
}

// spectrumLevel averages the magnitudes of a handful of low-frequency DFT
// bins over the window. Coarse on purpose: it feeds a UI meter, not
// analysis.
func spectrumLevel(samples []float32) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	if n > meterWindow {
		samples = samples[n-meterWindow:]
		n = meterWindow
	}
	var total float64
	for bin := 1; bin <= meterBins; bin++ {
		var re, im float64
		w := 2 * math.Pi * float64(bin) / float64(n)
		for i, s := range samples {
			re += float64(s) * math.Cos(w*float64(i))
			im -= float64(s) * math.Sin(w*float64(i))
		}
		total += math.Sqrt(re*re+im*im) * 2 / float64(n)
	}
	level := total / meterBins
	if level > 1 {
		level = 1
	}
	return level
}
