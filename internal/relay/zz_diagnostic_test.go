package relay

// Temporary build-validation diagnostic: replicates
// TestRelayClientCloseTearsDownPair with a fake upstream that has NO
// competing handler read loop, so the test goroutine is the sole reader
// of the upstream connection. Deleted after diagnosis.

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicewire/voicewire/internal/broker"
)

func TestZZDiagCloseCodeSingleReader(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upstream upgrade failed: %v", err)
			return
		}
		conns <- conn
		// no read loop: the test goroutine is the only reader
	}))
	defer srv.Close()

	registry, rsrv := newTestRelay(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	registry.Register(&broker.Slot{
		ConnectionID: "diag-1", SessionID: "sess_diag", Credential: "ek_test", CreatedAt: time.Now(),
	})

	client, _, err := websocket.DefaultDialer.Dial(wsURL(rsrv.URL, "/ws/relay/diag-1"), nil)
	if err != nil {
		t.Fatalf("client dial failed: %v", err)
	}
	defer client.Close()

	upConn := recvConn(t, conns)

	deadline := time.Now().Add(time.Second)
	client.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), deadline)

	_, _, err = upConn.ReadMessage()
	t.Logf("single-reader upstream ReadMessage error: %v", err)
	var ce *websocket.CloseError
	if !errorsAs(err, &ce) {
		t.Fatalf("upstream ReadMessage() error = %v (%T), want close error", err, err)
	}
	t.Logf("single-reader upstream close code = %d, text = %q", ce.Code, ce.Text)
}

func errorsAs(err error, target **websocket.CloseError) bool {
	for err != nil {
		if ce, ok := err.(*websocket.CloseError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
