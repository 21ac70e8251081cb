package client

import (
	"log"
	"strings"
	"time"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
	"chatsync/internal/utils"
)

// Send submits a message optimistically: it is appended to the log with
// status pending and a fresh tempId before the server confirms anything.
// A no-op when disconnected or when the text is empty after trimming.
func (s *Session) Send(text string) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if !s.connected || text == "" {
		s.mu.Unlock()
		return
	}

	tempID := utils.NewTempID()
	msg := &models.Message{
		TempID:         tempID,
		Author:         s.author,
		Text:           text,
		Type:           models.TypeText,
		Status:         models.StatusPending,
		Timestamp:      time.Now().UnixMilli(),
		SenderID:       s.userID,
		ConversationID: s.conversationID,
	}
	s.messages = append(s.messages, msg)
	s.pending[tempID] = &pendingSend{message: msg}
	payload := s.sendPayload(msg)
	s.mu.Unlock()

	s.emit(protocol.EventSend, payload)
}

func (s *Session) sendPayload(msg *models.Message) protocol.SendPayload {
	return protocol.SendPayload{
		Author:         msg.Author,
		Text:           msg.Text,
		Type:           string(msg.Type),
		TempID:         msg.TempID,
		ConversationID: msg.ConversationID,
	}
}

// acknowledge reconciles a server ack with the optimistic copy: the pending
// entry is dropped and the message takes the server id and status. Unknown
// tempIds are ignored; the ack may be a duplicate of one already handled.
func (s *Session) acknowledge(ack protocol.AckPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[ack.TempID]
	if !ok {
		return
	}
	delete(s.pending, ack.TempID)

	msg := p.message
	msg.ID = ack.ID
	msg.TempID = ""
	if status := models.MessageStatus(ack.Status); status.Valid() {
		msg.Status = status
	} else {
		msg.Status = models.StatusSent
	}
	if ack.Timestamp != 0 {
		msg.Timestamp = ack.Timestamp
	}
}

// Retry re-emits a pending send after a backoff delay. Once the retry budget
// is spent the entry is discarded and the message stays pending forever;
// that stuck status is the visible failure, nothing is thrown.
func (s *Session) Retry(tempID string) {
	s.mu.Lock()

	p, ok := s.pending[tempID]
	if !ok {
		s.mu.Unlock()
		return
	}

	if p.retries >= s.opts.MaxRetries {
		delete(s.pending, tempID)
		p.message.Status = models.StatusPending
		s.mu.Unlock()
		log.Printf("send %s abandoned after %d retries", tempID, s.opts.MaxRetries)
		return
	}

	delays := s.opts.RetryDelays
	delay := delays[len(delays)-1]
	if p.retries < len(delays) {
		delay = delays[p.retries]
	}
	p.retries++
	s.mu.Unlock()

	// The timer is never cancelled; it re-checks the world when it fires.
	time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("retry %s panicked: %v", tempID, r)
			}
		}()

		s.mu.Lock()
		p, ok := s.pending[tempID]
		if !ok || !s.connected {
			s.mu.Unlock()
			return
		}
		payload := s.sendPayload(p.message)
		s.mu.Unlock()

		s.emit(protocol.EventSend, payload)
	})
}

// RetryAll re-drives every pending send; invoked on reconnection.
func (s *Session) RetryAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for tempID := range s.pending {
		ids = append(ids, tempID)
	}
	s.mu.Unlock()

	for _, tempID := range ids {
		s.Retry(tempID)
	}
}
