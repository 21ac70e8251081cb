package client

import (
	"log"
	"time"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
)

// handleTyping upserts or removes a typing entry. Each typing=true refresh
// bumps the entry's generation and arms a new expiry timer; a stale timer
// firing later finds a newer generation and leaves the entry alone, so a
// still-typing user is never cleared early. An explicit typing=false removes
// the entry immediately regardless of timers.
func (s *Session) handleTyping(info models.TypingInfo) {
	s.mu.Lock()

	if !info.IsTyping {
		delete(s.typing, info.UserID)
		s.mu.Unlock()
		return
	}

	s.typingGen++
	gen := s.typingGen
	s.typing[info.UserID] = typingEntry{info: info, gen: gen}
	ttl := s.opts.TypingTTL
	s.mu.Unlock()

	time.AfterFunc(ttl, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("typing expiry panicked: %v", r)
			}
		}()

		s.mu.Lock()
		defer s.mu.Unlock()
		entry, ok := s.typing[info.UserID]
		if ok && entry.gen == gen && entry.info.IsTyping {
			delete(s.typing, info.UserID)
		}
	})
}

// TypingUsers returns the remote participants currently marked as typing.
// Order is not significant.
func (s *Session) TypingUsers() []models.TypingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TypingInfo, 0, len(s.typing))
	for _, entry := range s.typing {
		if entry.info.IsTyping {
			out = append(out, entry.info)
		}
	}
	return out
}

// EmitTyping announces the local user's typing state. A no-op when
// disconnected.
func (s *Session) EmitTyping(isTyping bool) {
	s.mu.Lock()
	payload := models.TypingInfo{
		UserID:         s.userID,
		Author:         s.author,
		ConversationID: s.conversationID,
		IsTyping:       isTyping,
	}
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return
	}
	s.emit(protocol.EventTyping, payload)
}
