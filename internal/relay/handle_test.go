package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
	"chatsync/internal/store"
)

func newTestHub(t *testing.T) (*Hub, *store.Store) {
	t.Helper()
	st := store.NewMemory()
	return NewHub(st), st
}

// addClient registers a client without pumps; frames pile up in Send.
func addClient(hub *Hub, userID, name string) *Client {
	c := NewClient(userID, name, nil, hub)
	hub.registerClient(c)
	return c
}

func recvEvent(t *testing.T, c *Client) (protocol.EventType, json.RawMessage) {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var env struct {
			Type    protocol.EventType `json:"type"`
			Payload json.RawMessage    `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &env))
		return env.Type, env.Payload
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return "", nil
	}
}

func requireNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame: %s", data)
	default:
	}
}

func sendFrame(t *testing.T, c *Client, event protocol.EventType, payload any) {
	t.Helper()
	data, err := json.Marshal(protocol.NewEnvelope(event, payload))
	require.NoError(t, err)
	c.handleFrame(data)
}

func drainPresence(t *testing.T, c *Client, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		event, _ := recvEvent(t, c)
		require.Contains(t, []protocol.EventType{protocol.EventOnline, protocol.EventOffline}, event)
	}
}

func TestRegisterBroadcastsPresence(t *testing.T) {
	hub, _ := newTestHub(t)
	alice := addClient(hub, "alice", "Alice")
	addClient(hub, "bob", "Bob")

	event, payload := recvEvent(t, alice)
	require.Equal(t, protocol.EventOnline, event)
	var p protocol.PresencePayload
	require.NoError(t, json.Unmarshal(payload, &p))
	require.Equal(t, "bob", p.UserID)

	require.True(t, hub.IsUserOnline("alice"))
	require.Equal(t, 2, hub.OnlineCount())
}

func TestUnregisterBroadcastsOffline(t *testing.T) {
	hub, _ := newTestHub(t)
	alice := addClient(hub, "alice", "Alice")
	bob := addClient(hub, "bob", "Bob")
	drainPresence(t, alice, 1)

	hub.unregisterClient(bob)

	event, payload := recvEvent(t, alice)
	require.Equal(t, protocol.EventOffline, event)
	var p protocol.PresencePayload
	require.NoError(t, json.Unmarshal(payload, &p))
	require.Equal(t, "bob", p.UserID)
	require.False(t, hub.IsUserOnline("bob"))
}

func TestDuplicateLoginReplacesConnection(t *testing.T) {
	hub, _ := newTestHub(t)
	first := addClient(hub, "alice", "Alice")
	second := addClient(hub, "alice", "Alice")

	_, ok := <-first.Send
	require.False(t, ok, "old connection's channel should be closed")
	require.Equal(t, 1, hub.OnlineCount())

	// Unregistering the stale connection must not evict the new one.
	hub.unregisterClient(first)
	require.True(t, hub.IsUserOnline("alice"))
	require.Equal(t, second, hub.Clients["alice"])
}

func TestSendToUserOffline(t *testing.T) {
	hub, _ := newTestHub(t)
	require.False(t, hub.SendToUser("nobody", protocol.NewEnvelope(protocol.EventDelivered, protocol.DeliveredPayload{ID: "m1"})))
}

func TestHandleSendPipeline(t *testing.T) {
	hub, st := newTestHub(t)
	st.Contacts.(interface{ Seed([]models.Contact) }).Seed([]models.Contact{{ID: "alice", Name: "Alice"}})

	alice := addClient(hub, "alice", "Alice")
	bob := addClient(hub, "bob", "Bob")
	drainPresence(t, alice, 1)

	sendFrame(t, alice, protocol.EventSend, protocol.SendPayload{
		Author:         "Alice",
		Text:           "hello bob",
		TempID:         "temp_1",
		ConversationID: "bob",
	})

	// Sender: ack first, delivered after fan-out.
	event, payload := recvEvent(t, alice)
	require.Equal(t, protocol.EventAck, event)
	var ack protocol.AckPayload
	require.NoError(t, json.Unmarshal(payload, &ack))
	require.Equal(t, "temp_1", ack.TempID)
	require.NotEmpty(t, ack.ID)
	require.Equal(t, string(models.StatusSent), ack.Status)

	event, _ = recvEvent(t, alice)
	require.Equal(t, protocol.EventDelivered, event)

	// Recipient gets the message.
	event, payload = recvEvent(t, bob)
	require.Equal(t, protocol.EventNewMessage, event)
	var msg models.Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	require.Equal(t, ack.ID, msg.ID)
	require.Equal(t, "hello bob", msg.Text)
	require.Equal(t, "alice", msg.SenderID)

	// Persisted.
	page, _, err := st.Messages.List(context.Background(), "", 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)

	// Recipient was online: no unread bump, but the preview is updated.
	contacts, err := st.Contacts.List(context.Background())
	require.NoError(t, err)
	require.Zero(t, contacts[0].UnreadCount)
	require.Equal(t, "hello bob", contacts[0].LastMessage)
}

func TestHandleSendOfflineRecipient(t *testing.T) {
	hub, st := newTestHub(t)
	st.Contacts.(interface{ Seed([]models.Contact) }).Seed([]models.Contact{{ID: "alice", Name: "Alice"}})
	alice := addClient(hub, "alice", "Alice")

	sendFrame(t, alice, protocol.EventSend, protocol.SendPayload{
		Author:         "Alice",
		Text:           "anyone there?",
		TempID:         "temp_1",
		ConversationID: "bob",
	})

	event, _ := recvEvent(t, alice)
	require.Equal(t, protocol.EventAck, event)
	event, _ = recvEvent(t, alice)
	require.Equal(t, protocol.EventDelivered, event)

	contacts, err := st.Contacts.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, contacts[0].UnreadCount)
}

func TestHandleSendBroadcast(t *testing.T) {
	hub, _ := newTestHub(t)
	alice := addClient(hub, "alice", "Alice")
	bob := addClient(hub, "bob", "Bob")
	carol := addClient(hub, "carol", "Carol")
	drainPresence(t, alice, 2)
	drainPresence(t, bob, 1)

	sendFrame(t, alice, protocol.EventSend, protocol.SendPayload{
		Author: "Alice",
		Text:   "hi everyone",
		TempID: "temp_1",
	})

	for _, c := range []*Client{bob, carol} {
		event, _ := recvEvent(t, c)
		require.Equal(t, protocol.EventNewMessage, event)
	}

	event, _ := recvEvent(t, alice)
	require.Equal(t, protocol.EventAck, event)
	event, _ = recvEvent(t, alice)
	require.Equal(t, protocol.EventDelivered, event)
	requireNoFrame(t, alice) // sender never receives their own broadcast
}

func TestInvalidSendGetsErrorReply(t *testing.T) {
	hub, _ := newTestHub(t)
	alice := addClient(hub, "alice", "Alice")

	alice.handleFrame([]byte(`{"type":"chat:send","payload":{"author":"Alice","text":"","tempId":"temp_9"}}`))

	event, payload := recvEvent(t, alice)
	require.Equal(t, protocol.EventError, event)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(payload, &p))
	require.Equal(t, "temp_9", p.TempID)
}

func TestHandleMarkRead(t *testing.T) {
	hub, st := newTestHub(t)
	alice := addClient(hub, "alice", "Alice")
	bob := addClient(hub, "bob", "Bob")
	drainPresence(t, alice, 1)

	msg := &models.Message{Author: "Alice", Text: "read me", SenderID: "alice", Status: models.StatusSent}
	require.NoError(t, st.Messages.Insert(context.Background(), msg))

	sendFrame(t, bob, protocol.EventMarkRead, protocol.ReadPayload{IDs: []string{msg.ID}})

	event, payload := recvEvent(t, alice)
	require.Equal(t, protocol.EventRead, event)
	var p protocol.ReadPayload
	require.NoError(t, json.Unmarshal(payload, &p))
	require.Equal(t, []string{msg.ID}, p.IDs)
	require.Equal(t, "bob", p.ReadBy)

	page, _, err := st.Messages.List(context.Background(), "", 0, 10)
	require.NoError(t, err)
	require.Equal(t, models.StatusRead, page[0].Status)
}

func TestHandleTypingScoped(t *testing.T) {
	hub, _ := newTestHub(t)
	alice := addClient(hub, "alice", "Alice")
	bob := addClient(hub, "bob", "Bob")
	carol := addClient(hub, "carol", "Carol")
	drainPresence(t, alice, 2)
	drainPresence(t, bob, 1)

	sendFrame(t, alice, protocol.EventTyping, models.TypingInfo{
		Author:         "Alice",
		ConversationID: "bob",
		IsTyping:       true,
	})

	event, payload := recvEvent(t, bob)
	require.Equal(t, protocol.EventTyping, event)
	var info models.TypingInfo
	require.NoError(t, json.Unmarshal(payload, &info))
	require.Equal(t, "alice", info.UserID) // identity stamped by the relay
	require.True(t, info.IsTyping)

	requireNoFrame(t, carol)
}

func TestHandleTypingBroadcast(t *testing.T) {
	hub, _ := newTestHub(t)
	alice := addClient(hub, "alice", "Alice")
	bob := addClient(hub, "bob", "Bob")
	drainPresence(t, alice, 1)

	sendFrame(t, alice, protocol.EventTyping, models.TypingInfo{Author: "Alice", IsTyping: true})

	event, _ := recvEvent(t, bob)
	require.Equal(t, protocol.EventTyping, event)
	requireNoFrame(t, alice)
}
