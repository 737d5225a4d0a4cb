// Package session drives the client side of a voicewire session: it asks
// the broker for a relay slot, connects to the relay, streams audio frames
// as append events, and folds inbound transcription events into an
// accumulating transcript. Transient disconnects are retried with bounded
// exponential backoff; callers observe progress through an EventSink.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/realtime"
)

const (
	// Time allowed to write a frame to the relay.
	writeWait = 10 * time.Second

	// Maximum inbound message size allowed from the relay.
	maxMessageSize = 512 * 1024
)

// ErrAlreadyActive is returned by Initialize while a session is connecting,
// open, or reconnecting. Disconnect first to start over.
var ErrAlreadyActive = errors.New("session already active")

// Status is the externally visible connection state of a Manager.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusReconnecting
	StatusClosed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventSink receives session callbacks. Any field may be nil. Callbacks are
// invoked from the manager's internal goroutines and must not block.
type EventSink struct {
	// OnStatus fires on every status transition.
	OnStatus func(Status)

	// OnTranscript fires with the full accumulated transcript after each
	// delta, and with the final text (final=true) on completion.
	OnTranscript func(text string, final bool)

	// OnError fires for upstream error events, terminal closures, and
	// exhausted reconnect budgets.
	OnError func(message string)
}

// Config holds session manager settings. Zero values fall back to the
// production defaults noted per field.
type Config struct {
	// ServerURL is the base URL of the voicewire server, e.g.
	// "http://localhost:8080".
	ServerURL string

	// Language is the BCP-47-style language tag sent to the broker. Empty
	// lets the server pick its default.
	Language string

	// ConnectTimeout bounds the relay handshake and the broker request.
	// Default 10s.
	ConnectTimeout time.Duration

	// ReconnectBase is the first reconnect delay, doubled per attempt.
	// Default 1s.
	ReconnectBase time.Duration

	// ReconnectMax caps the reconnect delay. Default 10s.
	ReconnectMax time.Duration

	// MaxReconnectAttempts bounds automatic reconnects before the manager
	// reports terminal failure. Default 3.
	MaxReconnectAttempts int

	// HTTPClient overrides the client used for broker requests.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 10 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 3
	}
	return c
}

// Manager owns one client session: broker grant, relay connection, transcript
// state, and the reconnect machinery.
type Manager struct {
	cfg    Config
	httpc  *http.Client
	sink   EventSink
	logger *zap.Logger

	mu             sync.Mutex
	gen            int
	status         Status
	conn           *websocket.Conn
	sessionID      string
	relayAddress   string
	transcript     string
	eventSeq       uint64
	retryCount     int
	reconnecting   bool
	reconnectTimer *time.Timer

	wmu sync.Mutex
}

// New creates a Manager. The logger may be nil.
func New(cfg Config, sink EventSink, logger *zap.Logger) *Manager {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: cfg.ConnectTimeout}
	}
	return &Manager{
		cfg:    cfg,
		httpc:  httpc,
		sink:   sink,
		logger: logger,
		status: StatusIdle,
	}
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SessionID returns the broker-issued session id, or "" when disconnected.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Transcript returns the accumulated transcript so far.
func (m *Manager) Transcript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcript
}

// Initialize requests a session from the broker and connects to the relay.
// It returns an error if either step fails; a failed relay dial additionally
// arms the reconnect machinery, since the grant itself was good.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	switch m.status {
	case StatusConnecting, StatusOpen, StatusReconnecting:
		m.mu.Unlock()
		return ErrAlreadyActive
	}
	m.gen++
	gen := m.gen
	m.retryCount = 0
	m.reconnecting = false
	m.transcript = ""
	m.eventSeq = 0
	m.status = StatusConnecting
	m.mu.Unlock()
	m.emitStatus(StatusConnecting)

	grant, err := m.requestSession(ctx)
	if err != nil {
		m.failInitialize(gen, err)
		return err
	}
	if err := m.dialRelay(ctx, gen, grant); err != nil {
		m.logger.Warn("Relay dial failed", zap.Error(err))
		m.emitError(err.Error())
		m.scheduleReconnect(gen, err)
		return err
	}
	return nil
}

// SendAudio transmits one PCM frame as an append event with a strictly
// increasing event id. It returns false without side effect unless the relay
// connection is open.
func (m *Manager) SendAudio(pcm []byte) bool {
	m.mu.Lock()
	if m.status != StatusOpen || m.conn == nil {
		m.mu.Unlock()
		return false
	}
	conn := m.conn
	seq := m.eventSeq
	m.eventSeq++
	m.mu.Unlock()

	data, err := json.Marshal(realtime.NewAppendEvent(seq, pcm))
	if err != nil {
		m.logger.Error("Failed to encode audio frame", zap.Error(err))
		return false
	}

	m.wmu.Lock()
	defer m.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Warn("Failed to send audio frame", zap.Error(err))
		return false
	}
	return true
}

// Disconnect cancels any pending reconnect, closes the relay connection with
// a normal closure, and resets all session state so a later Initialize starts
// clean. Safe to call multiple times.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.reconnecting = false
	conn := m.conn
	m.conn = nil
	m.sessionID = ""
	m.relayAddress = ""
	m.transcript = ""
	m.eventSeq = 0
	m.retryCount = 0
	changed := m.status != StatusIdle
	m.status = StatusIdle
	m.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
	if changed {
		m.logger.Info("Session disconnected")
		m.emitStatus(StatusIdle)
	}
}

type sessionGrant struct {
	SessionID    string `json:"session_id"`
	RelayAddress string `json:"relay_address"`
}

func (m *Manager) requestSession(ctx context.Context) (*sessionGrant, error) {
	body, err := json.Marshal(map[string]string{"language": m.cfg.Language})
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.ServerURL+"/session", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session request failed with status %d: %s", resp.StatusCode, raw)
	}

	var grant sessionGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	if grant.SessionID == "" || grant.RelayAddress == "" {
		return nil, fmt.Errorf("session response missing session_id or relay_address")
	}
	return &grant, nil
}

func (m *Manager) dialRelay(ctx context.Context, gen int, grant *sessionGrant) error {
	wsURL, err := relaySocketURL(m.cfg.ServerURL, grant.RelayAddress)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		conn.Close()
		return errors.New("session torn down during connect")
	}
	m.conn = conn
	m.sessionID = grant.SessionID
	m.relayAddress = grant.RelayAddress
	m.reconnecting = false
	m.reconnectTimer = nil
	m.status = StatusOpen
	m.mu.Unlock()

	m.logger.Info("Relay connection open",
		zap.String("session_id", grant.SessionID),
		zap.String("relay_address", grant.RelayAddress))
	m.emitStatus(StatusOpen)
	go m.readLoop(conn)
	return nil
}

func (m *Manager) failInitialize(gen int, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.status = StatusFailed
	m.mu.Unlock()
	m.logger.Error("Session initialization failed", zap.Error(cause))
	m.emitError(cause.Error())
	m.emitStatus(StatusFailed)
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		m.handleEvent(data)
	}
}

// handleEvent dispatches one inbound relay message. Malformed payloads are
// logged and dropped without tearing down the connection.
func (m *Manager) handleEvent(data []byte) {
	ev, err := realtime.ParseServerEvent(data)
	if err != nil {
		m.logger.Warn("Ignoring malformed server event", zap.Error(err))
		return
	}

	switch ev.Type {
	case realtime.EventSessionCreated, realtime.EventSessionUpdated,
		realtime.EventTranscriptionSessionCreated, realtime.EventTranscriptionSessionUpdated:
		m.logger.Info("Upstream session acknowledged", zap.String("type", ev.Type))

	case realtime.EventError:
		msg := "upstream error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		m.logger.Error("Upstream error event", zap.String("message", msg))
		m.emitError(msg)

	case realtime.EventTranscriptionDelta:
		m.mu.Lock()
		m.transcript += ev.Delta
		text := m.transcript
		m.mu.Unlock()
		m.emitTranscript(text, false)

	case realtime.EventTranscriptionCompleted:
		m.mu.Lock()
		m.transcript = ev.Transcript
		m.mu.Unlock()
		m.emitTranscript(ev.Transcript, true)

	case realtime.EventSpeechStarted, realtime.EventSpeechStopped,
		realtime.EventBufferCommitted, realtime.EventBufferCleared,
		realtime.EventConversationCreated, realtime.EventConversationItemCreated,
		realtime.EventRateLimitsUpdated:
		m.logger.Debug("Upstream status event", zap.String("type", ev.Type))

	default:
		m.logger.Debug("Ignoring unrecognized event", zap.String("type", ev.Type))
	}
}

func relaySocketURL(serverURL, relayAddress string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	rel, err := url.Parse(relayAddress)
	if err != nil {
		return "", fmt.Errorf("parse relay address: %w", err)
	}
	u.Path = rel.Path
	u.RawQuery = rel.RawQuery
	return u.String(), nil
}

func (m *Manager) emitStatus(s Status) {
	if m.sink.OnStatus != nil {
		m.sink.OnStatus(s)
	}
}

func (m *Manager) emitTranscript(text string, final bool) {
	if m.sink.OnTranscript != nil {
		m.sink.OnTranscript(text, final)
	}
}

func (m *Manager) emitError(msg string) {
	if m.sink.OnError != nil {
		m.sink.OnError(msg)
	}
}
