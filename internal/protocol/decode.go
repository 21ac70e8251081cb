package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chatsync/internal/models"
)

// ErrUnknownEvent is returned for frames whose type is outside the closed set.
var ErrUnknownEvent = errors.New("protocol: unknown event type")

// rawEnvelope defers payload decoding until the event type is known.
type rawEnvelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode is the single validation gate for inbound frames. It parses the
// envelope, decodes the payload for the event type, and validates it. The
// returned value is one of the payload structs of this package or, for
// chat:new-message and chat:typing, the corresponding models type. Callers
// drop the frame on any error; a malformed frame is a data-integrity issue,
// not a protocol-fatal one.
func Decode(data []byte) (EventType, any, error) {
	var env rawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: invalid envelope: %w", err)
	}

	switch env.Type {
	case EventSend:
		var p SendPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return env.Type, nil, err
		}
		if err := p.Validate(); err != nil {
			return env.Type, nil, err
		}
		return env.Type, p, nil

	case EventNewMessage:
		var m models.Message
		if err := unmarshal(env.Payload, &m); err != nil {
			return env.Type, nil, err
		}
		if err := ValidateMessage(&m); err != nil {
			return env.Type, nil, err
		}
		return env.Type, m, nil

	case EventAck:
		var p AckPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return env.Type, nil, err
		}
		if p.TempID == "" || p.ID == "" {
			return env.Type, nil, errors.New("protocol: ack requires tempId and id")
		}
		return env.Type, p, nil

	case EventDelivered:
		var p DeliveredPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return env.Type, nil, err
		}
		if p.ID == "" {
			return env.Type, nil, errors.New("protocol: delivered requires id")
		}
		return env.Type, p, nil

	case EventRead, EventMarkRead:
		var p ReadPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return env.Type, nil, err
		}
		if len(p.IDs) == 0 {
			return env.Type, nil, errors.New("protocol: read requires ids")
		}
		return env.Type, p, nil

	case EventTyping:
		var p models.TypingInfo
		if err := unmarshal(env.Payload, &p); err != nil {
			return env.Type, nil, err
		}
		if p.UserID == "" && p.Author == "" {
			return env.Type, nil, errors.New("protocol: typing requires a sender")
		}
		return env.Type, p, nil

	case EventUnread:
		var p models.UnreadCounts
		if err := unmarshal(env.Payload, &p); err != nil {
			return env.Type, nil, err
		}
		return env.Type, p, nil

	case EventOnline, EventOffline:
		var p PresencePayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return env.Type, nil, err
		}
		if p.UserID == "" {
			return env.Type, nil, errors.New("protocol: presence requires userId")
		}
		return env.Type, p, nil

	case EventError:
		var p ErrorPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return env.Type, nil, err
		}
		return env.Type, p, nil
	}

	return env.Type, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("protocol: missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("protocol: invalid payload: %w", err)
	}
	return nil
}

// Validate checks a send submission before the relay accepts it.
func (p *SendPayload) Validate() error {
	if strings.TrimSpace(p.Author) == "" {
		return errors.New("protocol: send requires author")
	}
	if strings.TrimSpace(p.Text) == "" {
		return errors.New("protocol: send requires text")
	}
	if p.TempID == "" {
		return errors.New("protocol: send requires tempId")
	}
	if p.Type == "" {
		p.Type = string(models.TypeText)
	}
	if !models.MessageType(p.Type).Valid() {
		return fmt.Errorf("protocol: invalid message type %q", p.Type)
	}
	return nil
}

// ValidateMessage normalizes and checks an inbound message. A missing status
// is normalized to sent, a missing type to text.
func ValidateMessage(m *models.Message) error {
	if strings.TrimSpace(m.Author) == "" {
		return errors.New("protocol: message requires author")
	}
	if m.Type == "" {
		m.Type = models.TypeText
	}
	if !m.Type.Valid() {
		return fmt.Errorf("protocol: invalid message type %q", m.Type)
	}
	if m.Type == models.TypeText && strings.TrimSpace(m.Text) == "" {
		return errors.New("protocol: text message requires text")
	}
	if m.Status == "" {
		m.Status = models.StatusSent
	}
	if !m.Status.Valid() {
		return fmt.Errorf("protocol: invalid message status %q", m.Status)
	}
	return nil
}
