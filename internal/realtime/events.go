// Package realtime implements the wire protocol of the upstream realtime
// transcription service: the REST endpoint that mints transcription
// sessions, the WebSocket dialer, and the typed events exchanged over the
// socket. The relay never parses these events; the client session manager
// and tests do.
package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Outbound event types (client to upstream).
const (
	EventInputAudioAppend = "input_audio_buffer.append"
)

// Inbound event types (upstream to client).
const (
	EventError                       = "error"
	EventSessionCreated              = "session.created"
	EventSessionUpdated              = "session.updated"
	EventTranscriptionSessionCreated = "transcription_session.created"
	EventTranscriptionSessionUpdated = "transcription_session.updated"
	EventTranscriptionDelta          = "conversation.item.input_audio_transcription.delta"
	EventTranscriptionCompleted      = "conversation.item.input_audio_transcription.completed"
	EventSpeechStarted               = "input_audio_buffer.speech_started"
	EventSpeechStopped               = "input_audio_buffer.speech_stopped"
	EventBufferCommitted             = "input_audio_buffer.committed"
	EventBufferCleared               = "input_audio_buffer.cleared"
	EventConversationCreated         = "conversation.created"
	EventConversationItemCreated     = "conversation.item.created"
	EventRateLimitsUpdated           = "rate_limits.updated"
)

// ServerEvent represents an event received from the upstream WebSocket.
// It carries the union of fields across event types; RawJSON keeps the
// original payload.
type ServerEvent struct {
	Type       string          `json:"type"`
	EventID    string          `json:"event_id,omitempty"`
	ItemID     string          `json:"item_id,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Error      *ErrorPayload   `json:"error,omitempty"`
	RawJSON    json.RawMessage `json:"-"`
}

// ErrorPayload is the payload of an "error" event.
type ErrorPayload struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ParseServerEvent decodes one inbound event, keeping the raw payload.
func ParseServerEvent(data []byte) (*ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed server event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("server event missing type")
	}
	ev.RawJSON = data
	return &ev, nil
}

// AppendEvent is the outbound audio event. Audio is base64-encoded
// little-endian PCM16.
type AppendEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	Audio   string `json:"audio"`
}

// NewAppendEvent wraps one PCM frame for transmission under a sequence
// number that callers keep monotonically increasing.
func NewAppendEvent(seq uint64, pcm []byte) AppendEvent {
	return AppendEvent{
		Type:    EventInputAudioAppend,
		EventID: fmt.Sprintf("event_%d", seq),
		Audio:   base64.StdEncoding.EncodeToString(pcm),
	}
}

// ErrorEventJSON builds a serialized error event in the upstream wire
// shape, for surfacing relay-side failures to the client.
func ErrorEventJSON(errType, message string) []byte {
	data, err := json.Marshal(ServerEvent{
		Type:  EventError,
		Error: &ErrorPayload{Type: errType, Message: message},
	})
	if err != nil {
		return []byte(`{"type":"error"}`)
	}
	return data
}
