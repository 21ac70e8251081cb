package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
)

// historyResponse is the shape of the history fetch endpoint.
type historyResponse struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// LoadMessages fetches a page of history, scoped to the active conversation
// when one is selected. A zero before loads the newest page and replaces the
// log; a non-zero before paginates backwards and prepends. On failure the
// log is left untouched.
func (s *Session) LoadMessages(before int64) error {
	s.mu.Lock()
	if s.loadingMore {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	conversationID := s.conversationID
	token := s.token
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loadingMore = false
		s.mu.Unlock()
	}()

	endpoint := s.opts.APIURL + "/messages"
	if conversationID != "" {
		endpoint += "/" + url.PathEscape(conversationID)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	q := u.Query()
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	q.Set("limit", strconv.Itoa(s.opts.HistoryLimit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		log.Printf("history load failed: %v", err)
		return fmt.Errorf("history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("history load failed: status %d", resp.StatusCode)
		return fmt.Errorf("history: unexpected status %d", resp.StatusCode)
	}

	var page historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		log.Printf("history decode failed: %v", err)
		return fmt.Errorf("history: %w", err)
	}

	// Same gate as the live path: drop malformed and excluded messages.
	kept := make([]*models.Message, 0, len(page.Messages))
	for i := range page.Messages {
		m := page.Messages[i]
		if err := protocol.ValidateMessage(&m); err != nil {
			log.Printf("dropping malformed history message: %v", err)
			continue
		}
		if s.filter.Excluded(&m) {
			continue
		}
		kept = append(kept, &m)
	}

	s.mu.Lock()
	if before > 0 {
		s.messages = append(kept, s.messages...)
	} else {
		s.messages = kept
	}
	s.hasMore = page.HasMore
	s.mu.Unlock()
	return nil
}

// SelectConversation switches the active scope. The log is reloaded for the
// new conversation; subsequent incoming messages are routed against it.
// An empty id returns to the broadcast view.
func (s *Session) SelectConversation(conversationID string) error {
	s.mu.Lock()
	s.conversationID = conversationID
	s.hasMore = true
	s.mu.Unlock()
	return s.LoadMessages(0)
}

// Loading reports whether a history fetch is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingMore
}
