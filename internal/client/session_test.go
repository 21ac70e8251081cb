package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
	"chatsync/internal/utils"
)

type fakeEmit struct {
	event   protocol.EventType
	payload any
}

// fakeTransport records emitted events instead of writing to a socket.
type fakeTransport struct {
	mu     sync.Mutex
	emits  []fakeEmit
	closed bool
}

func (f *fakeTransport) Emit(event protocol.EventType, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, fakeEmit{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) count(event protocol.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.emits {
		if e.event == event {
			n++
		}
	}
	return n
}

func (f *fakeTransport) last(event protocol.EventType) (fakeEmit, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.emits) - 1; i >= 0; i-- {
		if f.emits[i].event == event {
			return f.emits[i], true
		}
	}
	return fakeEmit{}, false
}

// fakeDirectory records notifications from the sync core.
type fakeDirectory struct {
	mu          sync.Mutex
	unread      []string
	lastMessage map[string]string
	online      map[string]bool
	totals      models.UnreadCounts
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		lastMessage: make(map[string]string),
		online:      make(map[string]bool),
	}
}

func (d *fakeDirectory) IncrementUnread(contactID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unread = append(d.unread, contactID)
}

func (d *fakeDirectory) UpdateLastMessage(contactID, text string, _ int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastMessage[contactID] = text
}

func (d *fakeDirectory) SetOnlineStatus(contactID string, online bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.online[contactID] = online
}

func (d *fakeDirectory) SetUnreadTotals(counts models.UnreadCounts) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totals = counts
}

func (d *fakeDirectory) unreadCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.unread...)
}

// harness wires a Session to a fake transport and a stub history server.
type harness struct {
	session   *Session
	transport *fakeTransport
	cb        Callbacks
	directory *fakeDirectory
	token     string
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"messages":[],"hasMore":false}`)
	}))
	t.Cleanup(server.Close)

	utils.SetJWTSecret("test-secret")
	token, err := utils.GenerateToken("user-1", "one@example.com", "User One")
	require.NoError(t, err)

	h := &harness{
		transport: &fakeTransport{},
		directory: newFakeDirectory(),
		token:     token,
	}

	opts := Options{
		RelayURL:  "ws://relay.test/ws",
		APIURL:    server.URL,
		Directory: h.directory,
		Dial: func(url, tok string, cb Callbacks) (Transport, error) {
			h.cb = cb
			return h.transport, nil
		},
		RetryDelays: []time.Duration{5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond},
		TypingTTL:   30 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.session = New(opts)
	return h
}

func connectedHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := newHarness(t, mutate)
	require.NoError(t, h.session.Connect(h.token))
	require.True(t, h.session.Connected())
	return h
}

func (h *harness) frame(t *testing.T, event protocol.EventType, payload any) {
	t.Helper()
	data, err := json.Marshal(protocol.NewEnvelope(event, payload))
	require.NoError(t, err)
	h.cb.OnFrame(data)
}

func TestConnectRequiresToken(t *testing.T) {
	h := newHarness(t, nil)
	err := h.session.Connect("")
	require.ErrorIs(t, err, ErrMissingToken)
	require.False(t, h.session.Connected())
}

func TestConnectRejectsExpiredToken(t *testing.T) {
	h := newHarness(t, nil)

	claims := jwt.MapClaims{"userId": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("whatever"))
	require.NoError(t, err)

	err = h.session.Connect(token)
	require.ErrorIs(t, err, ErrAuthInvalid)
	require.False(t, h.session.Connected())
}

func TestConnectDialAuthRejection(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Dial = func(url, tok string, cb Callbacks) (Transport, error) {
			return nil, errors.New("handshake failed: Unauthorized - Invalid token")
		}
	})

	err := h.session.Connect(h.token)
	require.ErrorIs(t, err, ErrAuthInvalid)
	require.False(t, h.session.Connected())
}

func TestConnectDialNetworkError(t *testing.T) {
	dialErr := errors.New("connection refused")
	h := newHarness(t, func(o *Options) {
		o.Dial = func(url, tok string, cb Callbacks) (Transport, error) {
			return nil, dialErr
		}
	})

	err := h.session.Connect(h.token)
	require.ErrorIs(t, err, dialErr)
	require.NotErrorIs(t, err, ErrAuthInvalid)
}

func TestConnectTwiceIsNoop(t *testing.T) {
	dials := 0
	h := newHarness(t, nil)
	base := h.session.opts.Dial
	h.session.opts.Dial = func(url, tok string, cb Callbacks) (Transport, error) {
		dials++
		return base(url, tok, cb)
	}

	require.NoError(t, h.session.Connect(h.token))
	require.NoError(t, h.session.Connect(h.token))
	require.Equal(t, 1, dials)
}

func TestSendOptimistic(t *testing.T) {
	h := connectedHarness(t, nil)

	h.session.Send("  hello there  ")

	msgs := h.session.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "hello there", msgs[0].Text)
	require.Equal(t, models.StatusPending, msgs[0].Status)
	require.Equal(t, "User One", msgs[0].Author)
	require.Equal(t, "user-1", msgs[0].SenderID)
	require.NotEmpty(t, msgs[0].TempID)
	require.Empty(t, msgs[0].ID)
	require.Equal(t, 1, h.session.PendingCount())

	emit, ok := h.transport.last(protocol.EventSend)
	require.True(t, ok)
	payload := emit.payload.(protocol.SendPayload)
	require.Equal(t, msgs[0].TempID, payload.TempID)
	require.Equal(t, "hello there", payload.Text)
}

func TestSendWhileDisconnected(t *testing.T) {
	h := newHarness(t, nil)

	h.session.Send("hello")

	require.Empty(t, h.session.Messages())
	require.Zero(t, h.session.PendingCount())
	require.Equal(t, 0, h.transport.count(protocol.EventSend))
}

func TestSendEmptyText(t *testing.T) {
	h := connectedHarness(t, nil)

	h.session.Send("   ")

	require.Empty(t, h.session.Messages())
	require.Equal(t, 0, h.transport.count(protocol.EventSend))
}

func TestAcknowledge(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")
	tempID := h.session.Messages()[0].TempID

	h.frame(t, protocol.EventAck, protocol.AckPayload{
		TempID:    tempID,
		ID:        "srv-1",
		Status:    "sent",
		Timestamp: 1700000000000,
	})

	msgs := h.session.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "srv-1", msgs[0].ID)
	require.Empty(t, msgs[0].TempID)
	require.Equal(t, models.StatusSent, msgs[0].Status)
	require.Equal(t, int64(1700000000000), msgs[0].Timestamp)
	require.Zero(t, h.session.PendingCount())
}

func TestAcknowledgeUnknownTempID(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")

	h.frame(t, protocol.EventAck, protocol.AckPayload{TempID: "temp_nope", ID: "srv-9"})

	msgs := h.session.Messages()
	require.Equal(t, models.StatusPending, msgs[0].Status)
	require.Equal(t, 1, h.session.PendingCount())
}

func TestAcknowledgeDuplicate(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")
	tempID := h.session.Messages()[0].TempID

	ack := protocol.AckPayload{TempID: tempID, ID: "srv-1", Status: "sent"}
	h.frame(t, protocol.EventAck, ack)
	h.frame(t, protocol.EventAck, ack)

	require.Len(t, h.session.Messages(), 1)
	require.Zero(t, h.session.PendingCount())
}

func TestRetryReemitsAfterDelay(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")
	tempID := h.session.Messages()[0].TempID
	require.Equal(t, 1, h.transport.count(protocol.EventSend))

	h.session.Retry(tempID)

	require.Eventually(t, func() bool {
		return h.transport.count(protocol.EventSend) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestRetryExhaustionLeavesStatusPending(t *testing.T) {
	h := connectedHarness(t, func(o *Options) {
		o.MaxRetries = 1
	})
	h.session.Send("hello")
	tempID := h.session.Messages()[0].TempID

	h.session.Retry(tempID) // consumes the single retry
	require.Eventually(t, func() bool {
		return h.transport.count(protocol.EventSend) == 2
	}, time.Second, 5*time.Millisecond)

	h.session.Retry(tempID) // budget spent: abandoned

	require.Zero(t, h.session.PendingCount())
	require.Equal(t, models.StatusPending, h.session.Messages()[0].Status)

	// Abandoned sends never fire again.
	h.session.Retry(tempID)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 2, h.transport.count(protocol.EventSend))
}

func TestRetryTimerChecksConnection(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")
	tempID := h.session.Messages()[0].TempID

	h.session.Retry(tempID)
	h.session.Disconnect()

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, h.transport.count(protocol.EventSend))
}

func TestServerErrorTriggersRetry(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")
	tempID := h.session.Messages()[0].TempID

	h.frame(t, protocol.EventError, protocol.ErrorPayload{Message: "db down", TempID: tempID})

	require.Eventually(t, func() bool {
		return h.transport.count(protocol.EventSend) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestReconnectReplaysPending(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")
	require.Equal(t, 1, h.transport.count(protocol.EventSend))

	h.cb.OnDisconnect("read error")
	require.False(t, h.session.Connected())

	h.cb.OnConnect()
	require.True(t, h.session.Connected())

	require.Eventually(t, func() bool {
		return h.transport.count(protocol.EventSend) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestDisconnectClearsLogKeepsPending(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")
	h.frame(t, protocol.EventNewMessage, models.Message{
		ID: "srv-5", Author: "Two", Text: "hi", SenderID: "user-2",
	})
	require.Len(t, h.session.Messages(), 2)

	h.session.Disconnect()

	require.False(t, h.session.Connected())
	require.Empty(t, h.session.Messages())
	require.Equal(t, 1, h.session.PendingCount())
	require.True(t, h.transport.closed)

	h.session.Disconnect() // idempotent
}

func TestAuthErrorDuringReconnectTearsDown(t *testing.T) {
	h := connectedHarness(t, nil)
	h.session.Send("hello")

	h.cb.OnError(errors.New("handshake failed: token expired"))

	require.False(t, h.session.Connected())
	require.Empty(t, h.session.Messages())
	require.True(t, h.transport.closed)
}

func TestNonAuthErrorKeepsSession(t *testing.T) {
	h := connectedHarness(t, nil)

	h.cb.OnError(errors.New("dial tcp: connection refused"))

	require.False(t, h.transport.closed)
}

func TestMalformedFrameDropped(t *testing.T) {
	h := connectedHarness(t, nil)

	h.cb.OnFrame([]byte(`{"type":"chat:new-message","payload":{"text":"no author"}}`))
	h.cb.OnFrame([]byte(`not json`))

	require.Empty(t, h.session.Messages())
}

func TestPresenceAndUnreadFrames(t *testing.T) {
	h := connectedHarness(t, nil)

	h.frame(t, protocol.EventOnline, protocol.PresencePayload{UserID: "user-2"})
	h.frame(t, protocol.EventOffline, protocol.PresencePayload{UserID: "user-3"})
	h.frame(t, protocol.EventUnread, models.UnreadCounts{UnreadConversations: 2, UnreadMessages: 7})

	h.directory.mu.Lock()
	defer h.directory.mu.Unlock()
	require.True(t, h.directory.online["user-2"])
	require.False(t, h.directory.online["user-3"])
	require.Equal(t, 7, h.directory.totals.UnreadMessages)
}
