package session

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// transientCloseCodes is the closed allow-list of close codes eligible for
// automatic reconnect. Everything else is terminal.
var transientCloseCodes = map[int]bool{
	websocket.CloseGoingAway:         true, // 1001
	websocket.CloseAbnormalClosure:   true, // 1006
	websocket.CloseInternalServerErr: true, // 1011
	websocket.CloseServiceRestart:    true, // 1012
	websocket.CloseTryAgainLater:     true, // 1013
	1014:                             true, // bad gateway
}

// isNormalClose reports whether the read error is a deliberate clean
// shutdown by the peer.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived)
}

// isTransientClose reports whether the read error warrants a reconnect. A
// torn connection with no close frame counts as an abnormal closure.
func isTransientClose(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return true
	}
	return transientCloseCodes[ce.Code]
}

// backoffDelay returns the delay before reconnect attempt n (1-based):
// base doubled per attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base << uint(attempt-1)
	if d > max || d <= 0 {
		d = max
	}
	return d
}

// handleClose runs when a read loop exits. It classifies the closure and
// either settles into a terminal status or arms the reconnect timer.
func (m *Manager) handleClose(conn *websocket.Conn, cause error) {
	m.mu.Lock()
	if m.conn != conn {
		// Superseded by Disconnect or a newer connection.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	gen := m.gen
	m.mu.Unlock()
	conn.Close()

	switch {
	case isNormalClose(cause):
		m.mu.Lock()
		m.status = StatusClosed
		m.mu.Unlock()
		m.logger.Info("Connection closed by peer")
		m.emitStatus(StatusClosed)

	case isTransientClose(cause):
		m.logger.Warn("Transient connection loss", zap.Error(cause))
		m.scheduleReconnect(gen, cause)

	default:
		m.mu.Lock()
		m.status = StatusFailed
		m.mu.Unlock()
		m.logger.Error("Connection closed with terminal error", zap.Error(cause))
		m.emitError(cause.Error())
		m.emitStatus(StatusFailed)
	}
}

// scheduleReconnect books the next reconnect attempt, or reports terminal
// failure once the retry budget is spent. The spent budget is reset so a
// later manual Initialize starts fresh. Caller must not hold mu.
func (m *Manager) scheduleReconnect(gen int, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.retryCount >= m.cfg.MaxReconnectAttempts {
		m.retryCount = 0
		m.reconnecting = false
		m.status = StatusFailed
		m.mu.Unlock()
		m.logger.Error("Reconnect attempts exhausted", zap.Error(cause))
		m.emitError("reconnect attempts exhausted")
		m.emitStatus(StatusFailed)
		return
	}
	m.retryCount++
	attempt := m.retryCount
	m.reconnecting = true
	first := m.status != StatusReconnecting
	m.status = StatusReconnecting
	delay := backoffDelay(attempt, m.cfg.ReconnectBase, m.cfg.ReconnectMax)
	m.reconnectTimer = time.AfterFunc(delay, func() { m.runReconnect(gen) })
	m.mu.Unlock()

	m.logger.Warn("Scheduling reconnect",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))
	if first {
		m.emitStatus(StatusReconnecting)
	}
}

// runReconnect performs one reconnect attempt. The closed pair's slot is
// gone, so it runs the full path again: a fresh broker grant, then a fresh
// relay dial.
func (m *Manager) runReconnect(gen int) {
	m.mu.Lock()
	if m.gen != gen || !m.reconnecting {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	grant, err := m.requestSession(ctx)
	if err == nil {
		err = m.dialRelay(ctx, gen, grant)
	}
	if err != nil {
		m.logger.Warn("Reconnect attempt failed", zap.Error(err))
		m.scheduleReconnect(gen, err)
		return
	}
	m.logger.Info("Reconnected")
}
