package client

import (
	"chatsync/internal/models"
	"chatsync/internal/protocol"
)

// applyIncoming runs an already-validated inbound message through the
// exclusion filter, the conversation scope and the id dedup, then appends it.
// Arrival order is display order; nothing is ever re-sorted.
func (s *Session) applyIncoming(m *models.Message) {
	if s.filter.Excluded(m) {
		return
	}

	s.mu.Lock()

	if m.SenderID != "" && m.SenderID != s.userID {
		s.directory.UpdateLastMessage(m.SenderID, m.Text, m.Timestamp)
	}

	if !s.inScope(m) {
		s.mu.Unlock()
		if m.SenderID != "" {
			s.directory.IncrementUnread(m.SenderID)
		}
		return
	}

	if m.ID != "" {
		for _, existing := range s.messages {
			if existing.ID == m.ID {
				s.mu.Unlock()
				return
			}
		}
	}

	s.messages = append(s.messages, m)
	if !s.scrolledToBottom {
		s.hasUnread = true
	}
	s.mu.Unlock()

	if s.opts.OnMessage != nil {
		s.opts.OnMessage(*m)
	}
}

// inScope decides whether a message belongs to the active view. With no
// conversation selected every message shows (broadcast view); with one
// selected, only traffic from or to its counterpart, or addressed to the
// authenticated user. Callers hold the lock.
func (s *Session) inScope(m *models.Message) bool {
	if s.conversationID == "" {
		return true
	}
	if m.SenderID == s.conversationID || m.ConversationID == s.conversationID {
		return true
	}
	return s.userID != "" && m.ConversationID == s.userID
}

// applyDelivered advances a sent message to delivered. Messages already at
// delivered or read are left alone: status never regresses and duplicate
// delivery reports are routine.
func (s *Session) applyDelivered(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			if m.Status == models.StatusSent {
				m.Status = models.StatusDelivered
			}
			return
		}
	}
}

// applyRead sets the terminal read status on every matching message.
func (s *Session) applyRead(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		for _, m := range s.messages {
			if m.ID == id {
				m.Status = models.StatusRead
				break
			}
		}
	}
}

// SetScrolledToBottom records the scroll position. Returning to the bottom
// clears the unread flag and marks the trailing acknowledged messages read.
func (s *Session) SetScrolledToBottom(atBottom bool) {
	s.mu.Lock()
	s.scrolledToBottom = atBottom
	if !atBottom {
		s.mu.Unlock()
		return
	}
	s.hasUnread = false

	var ids []string
	for _, m := range s.messages {
		if m.ID != "" && m.Status != models.StatusRead {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) > markReadWindow {
		ids = ids[len(ids)-markReadWindow:]
	}
	s.mu.Unlock()

	s.MarkAsRead(ids)
}

// MarkAsRead tells the server a batch of messages was read. A no-op when
// disconnected or with nothing to mark.
func (s *Session) MarkAsRead(ids []string) {
	if len(ids) == 0 || !s.Connected() {
		return
	}
	s.emit(protocol.EventMarkRead, protocol.ReadPayload{IDs: ids})
}
