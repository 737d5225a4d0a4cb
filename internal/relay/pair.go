package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/metrics"
	"github.com/voicewire/voicewire/internal/realtime"
)

// State is a relay pair's lifecycle state.
type State int32

const (
	StateAwaitingUpstreamOpen State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingUpstreamOpen:
		return "awaiting_upstream_open"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Pair splices one claimed client connection to one upstream connection.
// Each direction is a single blocking read-write loop, so message order is
// preserved per direction and a slow writer stalls its reader instead of
// buffering without bound.
type Pair struct {
	connectionID string
	client       *websocket.Conn
	upstream     *websocket.Conn
	logger       *zap.Logger
	metrics      *metrics.Metrics
	onDone       func()

	state     atomic.Int32
	closeOnce sync.Once
	wg        sync.WaitGroup
	startedAt time.Time
}

func newPair(connectionID string, client *websocket.Conn, logger *zap.Logger, m *metrics.Metrics, onDone func()) *Pair {
	p := &Pair{
		connectionID: connectionID,
		client:       client,
		logger:       logger,
		metrics:      m,
		onDone:       onDone,
	}
	p.state.Store(int32(StateAwaitingUpstreamOpen))
	return p
}

// State reports the pair's lifecycle state.
func (p *Pair) State() State {
	return State(p.state.Load())
}

// ConnectUpstream dials the upstream with the slot credential. On failure
// the client receives a structured error frame and an internal-error close,
// and the slot is released.
func (p *Pair) ConnectUpstream(ctx context.Context, dial realtime.DialFunc, realtimeURL, credential string) error {
	conn, err := dial(ctx, realtimeURL, credential)
	if err != nil {
		p.state.Store(int32(StateClosed))
		p.client.SetWriteDeadline(time.Now().Add(writeWait))
		p.client.WriteMessage(websocket.TextMessage,
			realtime.ErrorEventJSON("upstream_unavailable", "failed to open upstream connection"))
		closeWith(p.client, websocket.CloseInternalServerErr, "upstream connection failed")
		p.onDone()
		return err
	}
	p.upstream = conn
	p.state.Store(int32(StateOpen))
	return nil
}

// Run starts both forwarding pumps and the keepalive loop and blocks until
// the pair is fully closed.
func (p *Pair) Run() {
	p.startedAt = time.Now()
	p.metrics.RecordPairStart()
	p.logger.Info("Relay pair open")

	for _, conn := range []*websocket.Conn{p.client, p.upstream} {
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		leg := conn
		conn.SetPongHandler(func(string) error {
			leg.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
	}

	stopPing := make(chan struct{})
	go p.keepalive(stopPing)

	p.wg.Add(2)
	go p.forward(p.client, p.upstream, metrics.DirectionToUpstream)
	go p.forward(p.upstream, p.client, metrics.DirectionToClient)
	p.wg.Wait()

	close(stopPing)
	p.state.Store(int32(StateClosed))
	p.metrics.RecordPairEnd(time.Since(p.startedAt).Seconds())
	p.logger.Info("Relay pair closed", zap.Duration("lifetime", time.Since(p.startedAt)))
}

// forward pumps messages from src to dst verbatim: payload bytes untouched,
// text/binary type preserved.
func (p *Pair) forward(src, dst *websocket.Conn, direction string) {
	defer p.wg.Done()

	for {
		messageType, payload, err := src.ReadMessage()
		if err != nil {
			p.shutdown(err, direction)
			return
		}

		dst.SetWriteDeadline(time.Now().Add(writeWait))
		if err := dst.WriteMessage(messageType, payload); err != nil {
			p.shutdown(err, direction)
			return
		}
		p.metrics.RecordForward(direction, len(payload))
	}
}

func (p *Pair) keepalive(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			p.client.WriteControl(websocket.PingMessage, nil, deadline)
			p.upstream.WriteControl(websocket.PingMessage, nil, deadline)
		}
	}
}

// shutdown closes both ends with a code derived from the first observed
// error and releases the slot. Both pumps may call it; only the first
// caller acts, and the registry removal underneath is itself idempotent.
func (p *Pair) shutdown(cause error, direction string) {
	p.closeOnce.Do(func() {
		p.state.Store(int32(StateClosing))
		code, reason := deriveClose(cause)

		if websocket.IsUnexpectedCloseError(cause,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived) {
			p.logger.Warn("Relay pair closing on error",
				zap.String("direction", direction),
				zap.Error(cause))
		} else {
			p.logger.Info("Relay pair closing",
				zap.String("direction", direction),
				zap.Int("code", code))
		}

		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(code, reason)
		p.client.WriteControl(websocket.CloseMessage, msg, deadline)
		p.upstream.WriteControl(websocket.CloseMessage, msg, deadline)
		p.client.Close()
		p.upstream.Close()
		p.onDone()
	})
}

// deriveClose maps the error that ended one leg to the close code sent to
// the other leg. 1005, 1006 and 1015 cannot be sent on the wire (RFC 6455),
// so they map to a sendable equivalent; every other received code
// propagates unchanged.
func deriveClose(err error) (int, string) {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return websocket.CloseInternalServerErr, "relay transport error"
	}
	switch ce.Code {
	case websocket.CloseNoStatusReceived:
		return websocket.CloseNormalClosure, ""
	case websocket.CloseAbnormalClosure, websocket.CloseTLSHandshake:
		return websocket.CloseInternalServerErr, "peer connection lost"
	default:
		return ce.Code, ce.Text
	}
}
