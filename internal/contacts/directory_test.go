package contacts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatsync/internal/models"
)

// contactsServer stubs the contacts endpoints and records requests.
type contactsServer struct {
	*httptest.Server
	mu        sync.Mutex
	contacts  []models.Contact
	counts    models.UnreadCounts
	markFail  bool
	markCalls []string
	fetches   int
}

func newContactsServer(t *testing.T) *contactsServer {
	t.Helper()
	cs := &contactsServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/contacts/", func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		defer cs.mu.Unlock()

		switch {
		case r.URL.Path == "/contacts/" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(cs.contacts)
		case r.URL.Path == "/contacts/unread-count":
			cs.fetches++
			json.NewEncoder(w).Encode(cs.counts)
		case r.Method == http.MethodPost:
			cs.markCalls = append(cs.markCalls, r.URL.Path)
			if cs.markFail {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func loadedDirectory(t *testing.T, cs *contactsServer) *Directory {
	t.Helper()
	d := New(cs.URL, "test-token", nil)
	require.NoError(t, d.Load(context.Background()))
	return d
}

func TestLoadAndSort(t *testing.T) {
	cs := newContactsServer(t)
	cs.contacts = []models.Contact{
		{ID: "c1", Name: "Offline Recent", LastMessageTime: 3000},
		{ID: "c2", Name: "Online Old", LastMessageTime: 1000, Online: true},
		{ID: "c3", Name: "Online Recent", LastMessageTime: 2000, Online: true},
	}

	d := loadedDirectory(t, cs)

	list := d.Contacts()
	require.Len(t, list, 3)
	require.Equal(t, "c3", list[0].ID) // online first, newest first
	require.Equal(t, "c2", list[1].ID)
	require.Equal(t, "c1", list[2].ID)
}

func TestNarrowUpdates(t *testing.T) {
	cs := newContactsServer(t)
	cs.contacts = []models.Contact{{ID: "c1", Name: "One"}, {ID: "c2", Name: "Two"}}
	d := loadedDirectory(t, cs)

	d.IncrementUnread("c1")
	d.IncrementUnread("c1")
	d.IncrementUnread("c2")
	d.IncrementUnread("missing") // silently ignored
	d.UpdateLastMessage("c1", "latest", 9000)
	d.SetOnlineStatus("c2", true)

	require.Equal(t, 3, d.TotalUnread())
	require.Equal(t, 2, d.UnreadConversations())

	list := d.Contacts()
	require.Equal(t, "c2", list[0].ID) // online sorts first
	require.Equal(t, "latest", list[1].LastMessage)
	require.Equal(t, 2, list[1].UnreadCount)
}

func TestServerTotalsPreferred(t *testing.T) {
	cs := newContactsServer(t)
	cs.contacts = []models.Contact{{ID: "c1", Name: "One"}}
	d := loadedDirectory(t, cs)

	d.IncrementUnread("c1")
	require.Equal(t, 1, d.UnreadConversations())

	d.SetUnreadTotals(models.UnreadCounts{UnreadConversations: 4, UnreadMessages: 9})
	require.Equal(t, 4, d.UnreadConversations())
}

func TestSelect(t *testing.T) {
	cs := newContactsServer(t)
	cs.contacts = []models.Contact{{ID: "c1", Name: "One"}}
	d := loadedDirectory(t, cs)

	_, ok := d.Selected()
	require.False(t, ok)

	d.Select("c1")
	c, ok := d.Selected()
	require.True(t, ok)
	require.Equal(t, "One", c.Name)

	d.Unselect()
	_, ok = d.Selected()
	require.False(t, ok)
}

func TestMarkContactRead(t *testing.T) {
	cs := newContactsServer(t)
	cs.contacts = []models.Contact{{ID: "c1", Name: "One"}}
	d := loadedDirectory(t, cs)
	d.IncrementUnread("c1")

	require.NoError(t, d.MarkContactRead(context.Background(), "c1"))
	require.Zero(t, d.TotalUnread())

	cs.mu.Lock()
	require.Equal(t, []string{"/contacts/c1/mark-read"}, cs.markCalls)
	cs.mu.Unlock()
}

func TestMarkContactReadClearsLocallyOnServerFailure(t *testing.T) {
	cs := newContactsServer(t)
	cs.contacts = []models.Contact{{ID: "c1", Name: "One"}}
	cs.markFail = true
	d := loadedDirectory(t, cs)
	d.IncrementUnread("c1")

	require.Error(t, d.MarkContactRead(context.Background(), "c1"))
	require.Zero(t, d.TotalUnread())
}

func TestFetchUnreadCounts(t *testing.T) {
	cs := newContactsServer(t)
	cs.counts = models.UnreadCounts{UnreadConversations: 2, UnreadMessages: 5}
	d := New(cs.URL, "test-token", nil)

	require.NoError(t, d.FetchUnreadCounts(context.Background()))
	require.Equal(t, 2, d.UnreadConversations())
}

func TestUnreadPolling(t *testing.T) {
	cs := newContactsServer(t)
	cs.counts = models.UnreadCounts{UnreadConversations: 1, UnreadMessages: 1}
	d := New(cs.URL, "test-token", nil)

	d.StartUnreadPolling(10 * time.Millisecond)
	d.StartUnreadPolling(10 * time.Millisecond) // second start is a no-op
	defer d.StopUnreadPolling()

	require.Eventually(t, func() bool {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		return cs.fetches >= 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, d.UnreadConversations())

	d.StopUnreadPolling()
	cs.mu.Lock()
	after := cs.fetches
	cs.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	cs.mu.Lock()
	require.LessOrEqual(t, cs.fetches, after+1) // at most one in-flight tick
	cs.mu.Unlock()
}
