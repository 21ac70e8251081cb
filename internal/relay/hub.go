// Package relay is the reference server side of the sync protocol: it
// validates, persists and broadcasts. All reconciliation intelligence lives
// in the client.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"chatsync/internal/protocol"
	"chatsync/internal/store"
)

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	// Registered clients mapped by user ID
	Clients map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	store *store.Store

	mu sync.RWMutex
}

// NewHub creates a hub backed by the given stores.
func NewHub(st *store.Store) *Hub {
	return &Hub{
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		store:      st,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	// a second login for the same user replaces the old connection
	if existing, ok := h.Clients[client.UserID]; ok {
		close(existing.Send)
	}
	h.Clients[client.UserID] = client
	h.mu.Unlock()

	if err := h.store.Users.SetOnline(context.Background(), client.UserID, true); err != nil {
		log.Printf("failed to update online status: %v", err)
	}
	h.broadcastPresence(client.UserID, true)
	log.Printf("client connected: %s (%s)", client.Name, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.Clients[client.UserID]
	if !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.Clients, client.UserID)
	close(client.Send)
	h.mu.Unlock()

	if err := h.store.Users.SetOnline(context.Background(), client.UserID, false); err != nil {
		log.Printf("failed to update offline status: %v", err)
	}
	h.broadcastPresence(client.UserID, false)
	log.Printf("client disconnected: %s (%s)", client.Name, client.UserID)
}

// broadcastPresence announces a user's online state to everyone else.
func (h *Hub) broadcastPresence(userID string, online bool) {
	event := protocol.EventOnline
	if !online {
		event = protocol.EventOffline
	}
	h.BroadcastToOthers(userID, protocol.NewEnvelope(event, protocol.PresencePayload{UserID: userID}))
}

// SendToUser delivers an envelope to one connected user, dropping it when
// the user is offline or their send buffer is full.
func (h *Hub) SendToUser(userID string, env protocol.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("failed to marshal %s: %v", env.Type, err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.Clients[userID]
	if !ok {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		log.Printf("send buffer full for client %s", userID)
		return false
	}
}

// BroadcastToOthers delivers an envelope to every connected user except one.
func (h *Hub) BroadcastToOthers(excludeUserID string, env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("failed to marshal %s: %v", env.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, client := range h.Clients {
		if userID == excludeUserID {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Printf("send buffer full for client %s", userID)
		}
	}
}

// IsUserOnline checks if a user is currently connected.
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.Clients[userID]
	return ok
}

// OnlineCount returns the number of currently connected clients.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients)
}

// OnlineUsers returns the ids of currently connected users.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.Clients))
	for id := range h.Clients {
		ids = append(ids, id)
	}
	return ids
}
