// Package contacts is the client-side contact directory. The sync core
// updates it only through the narrow methods below (increment-unread,
// update-last-message, set-online); it never reaches into the contact list
// directly.
package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"chatsync/internal/models"
)

// Directory holds the contact list with per-contact unread counters and the
// server-provided unread totals.
type Directory struct {
	mu         sync.Mutex
	apiURL     string
	token      string
	httpClient *http.Client

	contacts   []*models.Contact
	selectedID string

	totals     models.UnreadCounts
	haveTotals bool

	pollStop chan struct{}
}

// New builds a directory backed by the contacts endpoints at apiURL.
func New(apiURL, token string, httpClient *http.Client) *Directory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Directory{apiURL: apiURL, token: token, httpClient: httpClient}
}

// Load replaces the contact list from GET /contacts/.
func (d *Directory) Load(ctx context.Context) error {
	var list []*models.Contact
	if err := d.getJSON(ctx, d.apiURL+"/contacts/", &list); err != nil {
		return fmt.Errorf("contacts: load: %w", err)
	}
	d.mu.Lock()
	d.contacts = list
	d.mu.Unlock()
	return nil
}

// Contacts returns a snapshot sorted online-first, then by last message time.
func (d *Directory) Contacts() []models.Contact {
	d.mu.Lock()
	out := make([]models.Contact, len(d.contacts))
	for i, c := range d.contacts {
		out[i] = *c
	}
	d.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Online != out[j].Online {
			return out[i].Online
		}
		return out[i].LastMessageTime > out[j].LastMessageTime
	})
	return out
}

// Select marks a contact as the active conversation.
func (d *Directory) Select(contactID string) {
	d.mu.Lock()
	d.selectedID = contactID
	d.mu.Unlock()
}

// Unselect returns to the broadcast view.
func (d *Directory) Unselect() {
	d.Select("")
}

// Selected returns the active contact, if any.
func (d *Directory) Selected() (models.Contact, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.find(d.selectedID); c != nil {
		return *c, true
	}
	return models.Contact{}, false
}

// find returns the contact with the given id. Callers hold the lock.
func (d *Directory) find(contactID string) *models.Contact {
	for _, c := range d.contacts {
		if c.ID == contactID {
			return c
		}
	}
	return nil
}

// IncrementUnread bumps a contact's unread counter.
func (d *Directory) IncrementUnread(contactID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.find(contactID); c != nil {
		c.UnreadCount++
	}
}

// UpdateLastMessage records a contact's latest message preview.
func (d *Directory) UpdateLastMessage(contactID, text string, timestamp int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.find(contactID); c != nil {
		c.LastMessage = text
		c.LastMessageTime = timestamp
	}
}

// SetOnlineStatus records a contact's presence.
func (d *Directory) SetOnlineStatus(contactID string, online bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.find(contactID); c != nil {
		c.Online = online
	}
}

// SetUnreadTotals stores the server-side unread aggregate.
func (d *Directory) SetUnreadTotals(counts models.UnreadCounts) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totals = counts
	d.haveTotals = true
}

// TotalUnread sums the local per-contact counters.
func (d *Directory) TotalUnread() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	sum := 0
	for _, c := range d.contacts {
		sum += c.UnreadCount
	}
	return sum
}

// UnreadConversations prefers the server-provided total and falls back to
// counting contacts with local unread messages.
func (d *Directory) UnreadConversations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.haveTotals {
		return d.totals.UnreadConversations
	}
	n := 0
	for _, c := range d.contacts {
		if c.UnreadCount > 0 {
			n++
		}
	}
	return n
}

// MarkContactRead zeroes the local counter and tells the server. The local
// state is cleared even when the server call fails; the next poll reconciles.
func (d *Directory) MarkContactRead(ctx context.Context, contactID string) error {
	d.mu.Lock()
	if c := d.find(contactID); c != nil {
		c.UnreadCount = 0
	}
	d.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL+"/contacts/"+contactID+"/mark-read", nil)
	if err != nil {
		return fmt.Errorf("contacts: mark read: %w", err)
	}
	d.authorize(req)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacts: mark read: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("contacts: mark read: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// FetchUnreadCounts pulls the unread aggregate from the server.
func (d *Directory) FetchUnreadCounts(ctx context.Context) error {
	var counts models.UnreadCounts
	if err := d.getJSON(ctx, d.apiURL+"/contacts/unread-count", &counts); err != nil {
		return fmt.Errorf("contacts: unread counts: %w", err)
	}
	d.SetUnreadTotals(counts)
	return nil
}

// StartUnreadPolling refreshes the unread totals on an interval, starting
// with an immediate fetch. Fetch failures are logged and the local metrics
// kept. Starting twice is a no-op.
func (d *Directory) StartUnreadPolling(interval time.Duration) {
	d.mu.Lock()
	if d.pollStop != nil {
		d.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	d.pollStop = stop
	d.mu.Unlock()

	go func() {
		if err := d.FetchUnreadCounts(context.Background()); err != nil {
			log.Printf("%v", err)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := d.FetchUnreadCounts(context.Background()); err != nil {
					log.Printf("%v", err)
				}
			}
		}
	}()
}

// StopUnreadPolling halts the polling loop.
func (d *Directory) StopUnreadPolling() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pollStop != nil {
		close(d.pollStop)
		d.pollStop = nil
	}
}

func (d *Directory) authorize(req *http.Request) {
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
}

func (d *Directory) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	d.authorize(req)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
