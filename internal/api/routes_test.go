package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/broker"
	"github.com/voicewire/voicewire/internal/metrics"
	"github.com/voicewire/voicewire/internal/realtime"
	"github.com/voicewire/voicewire/internal/relay"
)

type stubMinter struct{ err error }

func (s *stubMinter) CreateTranscriptionSession(ctx context.Context, cfg realtime.SessionConfig) (*realtime.TranscriptionSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &realtime.TranscriptionSession{
		ID:           "sess_api",
		ClientSecret: realtime.ClientSecret{Value: "ek_hidden", ExpiresAt: time.Now().Add(time.Minute).Unix()},
	}, nil
}

func newTestServer(t *testing.T, minter broker.SessionMinter) *httptest.Server {
	t.Helper()
	cfg := broker.Config{
		Model:           "gpt-4o-transcribe",
		DefaultLanguage: "en",
		NoiseReduction:  "near_field",
		VADThreshold:    0.5,
		VADPrefixMs:     300,
		VADSilenceMs:    500,
	}
	registry := broker.NewRegistry()
	b := broker.New(cfg, minter, registry, zap.NewNop(), metrics.DefaultMetrics)
	r := relay.New(registry, "ws://127.0.0.1:1/realtime", nil, zap.NewNop(), metrics.DefaultMetrics)

	e := echo.New()
	InitRoutes(e, b, r, "", zap.NewNop())
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func postSession(t *testing.T, srv *httptest.Server, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/session", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /session failed: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, string(raw)
}

func TestCreateSessionEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubMinter{})

	resp, raw := postSession(t, srv, `{"language":"en"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", resp.StatusCode, raw)
	}

	var got CreateSessionResponse
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.SessionID != "sess_api" {
		t.Errorf("session_id = %q, want sess_api", got.SessionID)
	}
	if !strings.HasPrefix(got.RelayAddress, broker.RelayPathPrefix) {
		t.Errorf("relay_address = %q, want prefix %q", got.RelayAddress, broker.RelayPathPrefix)
	}
	if strings.Contains(raw, "ek_hidden") {
		t.Errorf("response leaks the upstream credential: %s", raw)
	}
}

func TestCreateSessionInvalidLanguage(t *testing.T) {
	srv := newTestServer(t, &stubMinter{})

	resp, raw := postSession(t, srv, `{"language":"not a language"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", resp.StatusCode, raw)
	}

	var envelope ErrorResponse
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error != "invalid_request" {
		t.Errorf("error = %q, want invalid_request", envelope.Error)
	}
}

func TestCreateSessionUpstreamUnavailable(t *testing.T) {
	srv := newTestServer(t, &stubMinter{err: context.DeadlineExceeded})

	resp, raw := postSession(t, srv, `{"language":"en"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body %s", resp.StatusCode, raw)
	}

	var envelope ErrorResponse
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error != "upstream_unavailable" {
		t.Errorf("error = %q, want upstream_unavailable", envelope.Error)
	}
}

func TestCreateSessionMalformedBody(t *testing.T) {
	srv := newTestServer(t, &stubMinter{})

	resp, _ := postSession(t, srv, `{"language":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubMinter{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
}
