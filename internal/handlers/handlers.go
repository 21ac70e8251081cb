package handlers

import (
	"chatsync/internal/relay"
	"chatsync/internal/store"
)

// Handlers carries the dependencies of the HTTP surface.
type Handlers struct {
	Store *store.Store
	Hub   *relay.Hub
}

// New wires the handler set.
func New(st *store.Store, hub *relay.Hub) *Handlers {
	return &Handlers{Store: st, Hub: hub}
}
