package protocol

import "time"

// EventType identifies a wire event. The set is closed: anything outside it
// is rejected at the decode gate before payloads are treated as trusted data.
type EventType string

const (
	// Client -> server
	EventSend     EventType = "chat:send"
	EventMarkRead EventType = "chat:mark-read"

	// Server -> client
	EventNewMessage EventType = "chat:new-message"
	EventAck        EventType = "chat:ack"
	EventDelivered  EventType = "chat:delivered"
	EventRead       EventType = "chat:read"
	EventUnread     EventType = "chat:unread-updated"
	EventOnline     EventType = "user:online"
	EventOffline    EventType = "user:offline"
	EventError      EventType = "error"

	// Both directions
	EventTyping EventType = "chat:typing"
)

// SendPayload is an outbound message submission. The tempId is the client's
// provisional identifier; the server echoes it back in the ack.
type SendPayload struct {
	Author         string `json:"author"`
	Text           string `json:"text"`
	Type           string `json:"type"`
	TempID         string `json:"tempId"`
	ConversationID string `json:"conversationId,omitempty"`
}

// AckPayload maps a tempId to the server-assigned identifier.
type AckPayload struct {
	TempID    string `json:"tempId"`
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// DeliveredPayload reports one message reached its recipient.
type DeliveredPayload struct {
	ID string `json:"id"`
}

// ReadPayload reports a batch of messages was read. The same shape is used
// for the outbound chat:mark-read request.
type ReadPayload struct {
	IDs    []string `json:"ids"`
	ReadBy string   `json:"readBy,omitempty"`
}

// PresencePayload announces a user coming online or going offline.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// ErrorPayload is a server-side failure report. When TempID is set the error
// refers to a specific submission and the client may retry it.
type ErrorPayload struct {
	Message string `json:"message"`
	TempID  string `json:"tempId,omitempty"`
}

// Envelope is the frame every event travels in.
type Envelope struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewEnvelope wraps a payload for sending.
func NewEnvelope(t EventType, payload any) Envelope {
	return Envelope{Type: t, Payload: payload, Timestamp: time.Now()}
}
