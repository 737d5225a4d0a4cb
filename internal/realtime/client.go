package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const sessionRequestTimeout = 15 * time.Second

// Client calls the upstream REST API with the server-side API key. The key
// stays inside this process; only ephemeral client secrets leave it, and
// those only as far as the relay's upstream dial.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a REST client for the given upstream base URL.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: sessionRequestTimeout},
		logger:     logger,
	}
}

// SessionConfig carries the per-session parameters for minting an upstream
// transcription session. Everything except Language is fixed server
// configuration.
type SessionConfig struct {
	Model          string
	Language       string
	NoiseReduction string
	VADThreshold   float64
	VADPrefixMs    int
	VADSilenceMs   int
}

type transcriptionSessionRequest struct {
	InputAudioFormat         string                   `json:"input_audio_format"`
	InputAudioTranscription  *inputAudioTranscription `json:"input_audio_transcription"`
	TurnDetection            *turnDetection           `json:"turn_detection"`
	InputAudioNoiseReduction *noiseReduction          `json:"input_audio_noise_reduction"`
	Include                  []string                 `json:"include"`
}

type inputAudioTranscription struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type noiseReduction struct {
	Type string `json:"type"`
}

// TranscriptionSession is the upstream's description of a freshly minted
// session: its id and the ephemeral client secret the relay dials with.
type TranscriptionSession struct {
	ID           string       `json:"id"`
	ClientSecret ClientSecret `json:"client_secret"`
}

// ClientSecret is an ephemeral upstream credential. It is never written to
// a response body or a log field.
type ClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

// CreateTranscriptionSession mints an upstream session with the fixed
// session configuration and returns its id and client secret.
func (c *Client) CreateTranscriptionSession(ctx context.Context, cfg SessionConfig) (*TranscriptionSession, error) {
	body, err := json.Marshal(transcriptionSessionRequest{
		InputAudioFormat: "pcm16",
		InputAudioTranscription: &inputAudioTranscription{
			Model:    cfg.Model,
			Language: cfg.Language,
		},
		TurnDetection: &turnDetection{
			Type:              "server_vad",
			Threshold:         cfg.VADThreshold,
			PrefixPaddingMs:   cfg.VADPrefixMs,
			SilenceDurationMs: cfg.VADSilenceMs,
		},
		InputAudioNoiseReduction: &noiseReduction{Type: cfg.NoiseReduction},
		Include:                  []string{"item.input_audio_transcription.logprobs"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session request: %w", err)
	}

	url := c.baseURL + "/v1/realtime/transcription_sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read session response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("session request returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var session TranscriptionSession
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	if session.ID == "" || session.ClientSecret.Value == "" {
		return nil, fmt.Errorf("session response missing id or client secret")
	}

	c.logger.Debug("minted transcription session", zap.String("upstream_session_id", session.ID))
	return &session, nil
}
