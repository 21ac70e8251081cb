package models

// MessageStatus is the delivery state of a message. Transitions only move
// forward: pending -> sent -> delivered -> read. A message whose retries are
// exhausted stays at pending with no pending-send entry left.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return -1
}

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	return s.rank() >= 0
}

// AtLeast reports whether s is the same as or later than other.
func (s MessageStatus) AtLeast(other MessageStatus) bool {
	return s.rank() >= other.rank()
}

// MessageType classifies the message content.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeFile  MessageType = "file"
	TypeAudio MessageType = "audio"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeAudio:
		return true
	}
	return false
}

// Attachment points at a stored upload. The upload pipeline itself is an
// external service; messages only carry its output.
type Attachment struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
}

// Message is a chat message. Exactly one of ID and TempID is set at any
// time: TempID while the message is awaiting server acknowledgment, ID once
// the server has accepted it.
type Message struct {
	ID             string        `json:"id,omitempty"`
	TempID         string        `json:"tempId,omitempty"`
	Author         string        `json:"author"`
	Text           string        `json:"text"`
	Timestamp      int64         `json:"timestamp"` // milliseconds since epoch
	Status         MessageStatus `json:"status"`
	Type           MessageType   `json:"type"`
	SenderID       string        `json:"senderId,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
	Attachment     *Attachment   `json:"attachment,omitempty"`
	URL            string        `json:"url,omitempty"` // presigned, set by the server
}
