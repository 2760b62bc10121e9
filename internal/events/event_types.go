package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/thelewala-agent/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionResumed      EventType = "session_resumed"
	EventSignInRequired      EventType = "sign_in_required"
	EventSessionStarted      EventType = "session_started"
	EventSessionRefreshed    EventType = "session_refreshed"
	EventSessionEnded        EventType = "session_ended"
	EventSessionExpired      EventType = "session_expired"
	EventAuthFailed          EventType = "auth_failed"
	EventChannelStateChanged EventType = "channel_state_changed"
	EventChannelClosed       EventType = "channel_closed"
	EventNearbyUpdated       EventType = "nearby_updated"
	EventStreamStarted       EventType = "stream_started"
	EventStreamStopped       EventType = "stream_stopped"
)

// Event represents a signal emitted by the agent's components.
type Event struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	Role      domain.ActorRole `json:"role"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   interface{}      `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, role domain.ActorRole, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Role:      role,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionPayload accompanies session lifecycle events.
type SessionPayload struct {
	Reason    string `json:"reason,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// AuthFailedPayload carries the user-facing failure text.
type AuthFailedPayload struct {
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// ChannelStatePayload describes a channel transition.
type ChannelStatePayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Cause string `json:"cause,omitempty"`
	Error string `json:"error,omitempty"`
}

// NearbyUpdatedPayload summarizes a directory change.
type NearbyUpdatedPayload struct {
	Count  int    `json:"count"`
	Source string `json:"source"`
}

// StreamPayload accompanies stream_started and stream_stopped.
type StreamPayload struct {
	Reason    string  `json:"reason,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
}
