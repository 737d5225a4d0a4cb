package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// DialFunc matches Dial. The relay takes one so tests can point it at a
// local server.
type DialFunc func(ctx context.Context, realtimeURL, clientSecret string) (*websocket.Conn, error)

// Dial opens the upstream realtime WebSocket authorized by an ephemeral
// client secret.
func Dial(ctx context.Context, realtimeURL, clientSecret string) (*websocket.Conn, error) {
	u, err := url.Parse(realtimeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime URL: %w", err)
	}
	q := u.Query()
	q.Set("intent", "transcription")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+clientSecret)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("upstream handshake failed with HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("upstream dial failed: %w", err)
	}
	return conn, nil
}
