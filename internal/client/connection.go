package client

import (
	"fmt"
	"log"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
	"chatsync/internal/utils"
)

// Connect opens the transport session. An empty token fails immediately
// without a connection attempt; connecting while already connected is a
// no-op. A successful connect replays pending sends and triggers the initial
// history load.
func (s *Session) Connect(token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if utils.TokenExpired(token) {
		return fmt.Errorf("%w: token expired", ErrAuthInvalid)
	}

	s.mu.Lock()
	if s.connected || s.connecting {
		s.mu.Unlock()
		return nil
	}
	s.connecting = true
	s.mu.Unlock()

	if claims, err := utils.ClaimsFromToken(token); err == nil {
		s.mu.Lock()
		s.userID = claims.UserID
		if claims.Name != "" {
			s.author = claims.Name
		}
		s.mu.Unlock()
	}

	transport, err := s.opts.Dial(s.opts.RelayURL, token, Callbacks{
		OnFrame:      s.handleFrame,
		OnConnect:    s.onConnect,
		OnDisconnect: s.onDisconnect,
		OnError:      s.onConnectError,
	})
	if err != nil {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
		if isAuthError(err) {
			return fmt.Errorf("%w: %v", ErrAuthInvalid, err)
		}
		return err
	}

	s.mu.Lock()
	s.transport = transport
	s.token = token
	s.connected = true
	s.connecting = false
	s.mu.Unlock()

	s.RetryAll()

	// History load failures leave the log unchanged and never fail the connect.
	if err := s.LoadMessages(0); err != nil {
		log.Printf("initial history load failed: %v", err)
	}
	return nil
}

// Disconnect tears the session down. The in-memory log and typing map are
// cleared; persistence is the backend's job. Idempotent when already
// disconnected. Scheduled retry timers are not cancelled; they check the
// connection state when they fire.
func (s *Session) Disconnect() {
	s.mu.Lock()
	transport := s.transport
	s.transport = nil
	s.connected = false
	s.connecting = false
	s.token = ""
	s.messages = nil
	s.typing = make(map[string]typingEntry)
	s.hasUnread = false
	s.mu.Unlock()

	if transport != nil {
		transport.Close()
	}
}

// onConnect fires on every transport-level (re)connect and replays all
// pending sends.
func (s *Session) onConnect() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	log.Printf("connected, replaying %d pending sends", s.PendingCount())
	s.RetryAll()
}

func (s *Session) onDisconnect(reason string) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	log.Printf("disconnected: %s", reason)
}

// onConnectError handles transport errors raised outside Connect. A
// credential rejection is fatal to the session; anything else is left to
// the transport's own reconnection.
func (s *Session) onConnectError(err error) {
	if !isAuthError(err) {
		log.Printf("connection error: %v", err)
		return
	}
	log.Printf("authentication rejected, tearing down session: %v", err)
	s.Disconnect()
}

// handleFrame is the inbound dispatch point. Frames pass the protocol
// validation gate first; malformed ones are dropped and logged, never
// inserted into the log.
func (s *Session) handleFrame(data []byte) {
	event, payload, err := protocol.Decode(data)
	if err != nil {
		log.Printf("dropping malformed frame: %v", err)
		return
	}

	switch event {
	case protocol.EventNewMessage:
		m := payload.(models.Message)
		s.applyIncoming(&m)
	case protocol.EventAck:
		s.acknowledge(payload.(protocol.AckPayload))
	case protocol.EventDelivered:
		s.applyDelivered(payload.(protocol.DeliveredPayload).ID)
	case protocol.EventRead:
		s.applyRead(payload.(protocol.ReadPayload).IDs)
	case protocol.EventTyping:
		s.handleTyping(payload.(models.TypingInfo))
	case protocol.EventUnread:
		s.directory.SetUnreadTotals(payload.(models.UnreadCounts))
	case protocol.EventOnline:
		s.directory.SetOnlineStatus(payload.(protocol.PresencePayload).UserID, true)
	case protocol.EventOffline:
		s.directory.SetOnlineStatus(payload.(protocol.PresencePayload).UserID, false)
	case protocol.EventError:
		s.handleServerError(payload.(protocol.ErrorPayload))
	default:
		log.Printf("ignoring unexpected inbound event %q", event)
	}
}

// handleServerError routes a transient send failure into the retry path.
// Errors without a tempId are informational only.
func (s *Session) handleServerError(p protocol.ErrorPayload) {
	if p.TempID == "" {
		log.Printf("server error: %s", p.Message)
		return
	}
	log.Printf("server rejected send %s: %s", p.TempID, p.Message)
	s.Retry(p.TempID)
}

// emit sends an event if a transport is attached. Callers must not hold the
// session lock.
func (s *Session) emit(event protocol.EventType, payload any) {
	s.mu.Lock()
	transport := s.transport
	connected := s.connected
	s.mu.Unlock()
	if !connected || transport == nil {
		return
	}
	if err := transport.Emit(event, payload); err != nil {
		log.Printf("emit %s failed: %v", event, err)
	}
}
