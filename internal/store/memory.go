package store

import (
	"context"
	"sync"
	"time"

	"chatsync/internal/models"
	"chatsync/internal/utils"
)

// NewMemory builds the in-memory store bundle.
func NewMemory() *Store {
	return &Store{
		Messages: &memoryMessages{},
		Contacts: &memoryContacts{},
		Users:    &memoryUsers{byEmail: make(map[string]*models.User)},
	}
}

type memoryMessages struct {
	mu       sync.Mutex
	messages []models.Message
}

func (s *memoryMessages) Insert(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = utils.NewMessageID()
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	s.messages = append(s.messages, *m)
	return nil
}

func (s *memoryMessages) List(_ context.Context, conversationID string, before int64, limit int) ([]models.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Message
	for _, m := range s.messages {
		if conversationID != "" && m.ConversationID != conversationID && m.SenderID != conversationID {
			continue
		}
		if before > 0 && m.Timestamp >= before {
			continue
		}
		matched = append(matched, m)
	}

	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[len(matched)-limit:]
	}
	return matched, hasMore, nil
}

func (s *memoryMessages) MarkRead(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		for i := range s.messages {
			if s.messages[i].ID == id {
				s.messages[i].Status = models.StatusRead
				break
			}
		}
	}
	return nil
}

type memoryContacts struct {
	mu       sync.Mutex
	contacts []*models.Contact
}

// Seed replaces the contact list; used by tests and the dev relay.
func (s *memoryContacts) Seed(contacts []models.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = s.contacts[:0]
	for i := range contacts {
		c := contacts[i]
		s.contacts = append(s.contacts, &c)
	}
}

func (s *memoryContacts) find(contactID string) *models.Contact {
	for _, c := range s.contacts {
		if c.ID == contactID {
			return c
		}
	}
	return nil
}

func (s *memoryContacts) List(_ context.Context) ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Contact, len(s.contacts))
	for i, c := range s.contacts {
		out[i] = *c
	}
	return out, nil
}

func (s *memoryContacts) IncrementUnread(_ context.Context, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.find(contactID)
	if c == nil {
		return ErrNotFound
	}
	c.UnreadCount++
	return nil
}

func (s *memoryContacts) UpdateLastMessage(_ context.Context, contactID, text string, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.find(contactID)
	if c == nil {
		return ErrNotFound
	}
	c.LastMessage = text
	c.LastMessageTime = timestamp
	return nil
}

func (s *memoryContacts) MarkRead(_ context.Context, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.find(contactID)
	if c == nil {
		return ErrNotFound
	}
	c.UnreadCount = 0
	return nil
}

func (s *memoryContacts) UnreadCounts(_ context.Context) (models.UnreadCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts models.UnreadCounts
	for _, c := range s.contacts {
		if c.UnreadCount > 0 {
			counts.UnreadConversations++
			counts.UnreadMessages += c.UnreadCount
		}
	}
	return counts, nil
}

type memoryUsers struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
}

func (s *memoryUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = utils.NewMessageID()
	}
	u.CreatedAt = time.Now()
	clone := *u
	s.byEmail[u.Email] = &clone
	return nil
}

func (s *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *memoryUsers) SetOnline(_ context.Context, userID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byEmail {
		if u.ID == userID {
			u.IsOnline = online
			u.LastSeen = time.Now()
			return nil
		}
	}
	return ErrNotFound
}
