// Package broker mints upstream transcription sessions and parks their
// credentials in relay slots until a relay connection claims them. Clients
// only ever see the upstream session id and a relay address; the API key
// and the per-session client secret stay server-side.
package broker

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/metrics"
	"github.com/voicewire/voicewire/internal/realtime"
)

// RelayPathPrefix is the same-origin path under which the relay accepts
// claims. CreateSession returns addresses of the form
// RelayPathPrefix + <connection id>.
const RelayPathPrefix = "/ws/relay/"

var (
	// ErrInvalidLanguage rejects a malformed language tag before any
	// upstream call is made.
	ErrInvalidLanguage = errors.New("invalid language")
	// ErrUpstreamUnavailable wraps any failure to mint an upstream session.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Short BCP-47-style tags: "en", "uk", "pt-BR".
var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z]{2})?$`)

// SessionMinter mints upstream transcription sessions. Implemented by
// realtime.Client.
type SessionMinter interface {
	CreateTranscriptionSession(ctx context.Context, cfg realtime.SessionConfig) (*realtime.TranscriptionSession, error)
}

// Config carries the upstream session defaults applied to every mint.
type Config struct {
	Model           string
	DefaultLanguage string
	NoiseReduction  string
	VADThreshold    float64
	VADPrefixMs     int
	VADSilenceMs    int
}

// Session is the broker's answer to a client: where to stream, under which
// upstream session. No credential.
type Session struct {
	SessionID    string
	RelayAddress string
}

// Broker creates sessions and owns the slot registry.
type Broker struct {
	cfg      Config
	minter   SessionMinter
	registry *Registry
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a broker around a registry and an upstream session minter.
func New(cfg Config, minter SessionMinter, registry *Registry, logger *zap.Logger, m *metrics.Metrics) *Broker {
	return &Broker{
		cfg:      cfg,
		minter:   minter,
		registry: registry,
		logger:   logger,
		metrics:  m,
	}
}

// Registry exposes the slot registry to the relay.
func (b *Broker) Registry() *Registry {
	return b.registry
}

// CreateSession validates the language, mints an upstream session, and
// registers a relay slot for it. The slot credential never appears in the
// returned session.
func (b *Broker) CreateSession(ctx context.Context, language string) (*Session, error) {
	lang := language
	if lang == "" {
		lang = b.cfg.DefaultLanguage
	}
	if !languagePattern.MatchString(lang) {
		b.metrics.RecordSessionCreateFailure("invalid_request")
		return nil, fmt.Errorf("%w: %q", ErrInvalidLanguage, language)
	}

	upstream, err := b.minter.CreateTranscriptionSession(ctx, realtime.SessionConfig{
		Model:          b.cfg.Model,
		Language:       lang,
		NoiseReduction: b.cfg.NoiseReduction,
		VADThreshold:   b.cfg.VADThreshold,
		VADPrefixMs:    b.cfg.VADPrefixMs,
		VADSilenceMs:   b.cfg.VADSilenceMs,
	})
	if err != nil {
		b.metrics.RecordSessionCreateFailure("upstream_unavailable")
		b.logger.Error("Failed to mint upstream session", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	connectionID := uuid.NewString()
	b.registry.Register(&Slot{
		ConnectionID: connectionID,
		SessionID:    upstream.ID,
		Credential:   upstream.ClientSecret.Value,
		CreatedAt:    time.Now(),
	})
	b.metrics.RecordSessionCreated()
	b.metrics.SetSlotsPending(b.registry.PendingLen())

	b.logger.Info("Session created",
		zap.String("upstream_session_id", upstream.ID),
		zap.String("connection_id", connectionID),
		zap.String("language", lang))

	return &Session{
		SessionID:    upstream.ID,
		RelayAddress: RelayPathPrefix + connectionID,
	}, nil
}
