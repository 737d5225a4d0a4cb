// Package relay claims broker slots and splices each claiming client
// connection to a freshly dialed upstream connection, forwarding frames
// verbatim in both directions.
package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/broker"
	"github.com/voicewire/voicewire/internal/metrics"
	"github.com/voicewire/voicewire/internal/realtime"
)

const (
	// Time allowed to write a message to a peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from a peer.
	pongWait = 60 * time.Second

	// Send pings to peers with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from either peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames

	// Time allowed for the upstream WebSocket handshake.
	upstreamDialTimeout = 10 * time.Second
)

// CloseInvalidConnectionID rejects claims of unknown or already-claimed
// connection ids.
const (
	CloseInvalidConnectionID = 4000
	invalidConnectionReason  = "Invalid connection id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The connection id is the admission check; origins are not.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Relay accepts inbound relay connections and runs their pairs.
type Relay struct {
	registry    *broker.Registry
	realtimeURL string
	dial        realtime.DialFunc
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// New creates a relay over the broker's slot registry. A nil dial uses
// realtime.Dial; tests inject their own.
func New(registry *broker.Registry, realtimeURL string, dial realtime.DialFunc, logger *zap.Logger, m *metrics.Metrics) *Relay {
	if dial == nil {
		dial = realtime.Dial
	}
	return &Relay{
		registry:    registry,
		realtimeURL: realtimeURL,
		dial:        dial,
		logger:      logger,
		metrics:     m,
	}
}

// Handle accepts one relay connection whose path carries the connection id.
// The upgrade happens before the claim check because rejecting with a close
// code requires a completed handshake. The handler blocks until the pair is
// fully closed; hijacked connections are invisible to the server's graceful
// shutdown, so blocking here costs nothing.
func (r *Relay) Handle(c echo.Context) error {
	connectionID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		r.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	slot, err := r.registry.Claim(connectionID)
	if err != nil {
		r.metrics.RecordInvalidSlot()
		r.logger.Warn("Rejected relay claim", zap.String("connection_id", connectionID))
		closeWith(conn, CloseInvalidConnectionID, invalidConnectionReason)
		return nil
	}
	r.metrics.SetSlotsPending(r.registry.PendingLen())

	logger := r.logger.With(
		zap.String("connection_id", connectionID),
		zap.String("upstream_session_id", slot.SessionID),
	)

	pair := newPair(connectionID, conn, logger, r.metrics, func() {
		r.registry.Remove(connectionID)
	})

	dialCtx, cancel := context.WithTimeout(context.Background(), upstreamDialTimeout)
	err = pair.ConnectUpstream(dialCtx, r.dial, r.realtimeURL, slot.Credential)
	cancel()
	if err != nil {
		r.metrics.RecordUpstreamDialFailure()
		logger.Error("Upstream dial failed", zap.Error(err))
		return nil
	}

	pair.Run()
	return nil
}

// closeWith sends a close frame and drops the connection.
func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}
