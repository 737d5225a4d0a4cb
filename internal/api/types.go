package api

// CreateSessionRequest is the payload for POST /session.
type CreateSessionRequest struct {
	Language string `json:"language"`
}

// CreateSessionResponse tells the client where to stream. It never carries
// the upstream credential.
type CreateSessionResponse struct {
	SessionID    string `json:"session_id"`
	RelayAddress string `json:"relay_address"`
}

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status       string `json:"status"`
	PendingSlots int    `json:"pending_slots"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
