package broker

import (
	"time"

	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/metrics"
)

// Sweeper periodically evicts relay slots that expired without ever being
// claimed.
type Sweeper struct {
	registry *Registry
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	stopChan chan struct{}
}

// NewSweeper creates a sweeper over the given registry.
func NewSweeper(registry *Registry, ttl, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		registry: registry,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		metrics:  m,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start() {
	go s.sweepLoop()
	s.logger.Info("Slot sweeper started",
		zap.Duration("ttl", s.ttl),
		zap.Duration("interval", s.interval))
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopChan)
	s.logger.Info("Slot sweeper stopped")
}

func (s *Sweeper) sweepLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

func (s *Sweeper) runSweep() {
	evicted := s.registry.Sweep(s.ttl)
	if evicted == 0 {
		s.logger.Debug("Sweep found no expired slots")
		return
	}

	s.metrics.RecordSlotsSwept(evicted)
	s.metrics.SetSlotsPending(s.registry.PendingLen())
	s.logger.Info("Swept expired relay slots",
		zap.Int("evicted", evicted),
		zap.Int("remaining", s.registry.Len()))
}
