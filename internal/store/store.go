// Package store persists relay state. Two implementations exist: postgres
// on a pgx pool for production and an in-memory one used by tests and when
// no DATABASE_URL is configured.
package store

import (
	"context"
	"errors"

	"chatsync/internal/models"
)

var (
	ErrNotFound   = errors.New("store: not found")
	ErrEmailTaken = errors.New("store: email already registered")
)

// MessageStore holds the message history.
type MessageStore interface {
	// Insert persists a message, assigning ID and Timestamp when unset.
	Insert(ctx context.Context, m *models.Message) error

	// List returns a page of history in ascending arrival order, scoped to a
	// conversation when conversationID is non-empty, older than before when
	// before is non-zero. hasMore reports whether older messages remain.
	List(ctx context.Context, conversationID string, before int64, limit int) (messages []models.Message, hasMore bool, err error)

	// MarkRead advances the given messages to the read status.
	MarkRead(ctx context.Context, ids []string) error
}

// ContactStore holds the contact directory with unread accounting.
type ContactStore interface {
	List(ctx context.Context) ([]models.Contact, error)
	IncrementUnread(ctx context.Context, contactID string) error
	UpdateLastMessage(ctx context.Context, contactID, text string, timestamp int64) error
	MarkRead(ctx context.Context, contactID string) error
	UnreadCounts(ctx context.Context) (models.UnreadCounts, error)
}

// UserStore holds accounts.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetOnline(ctx context.Context, userID string, online bool) error
}

// Store bundles the three stores behind one handle.
type Store struct {
	Messages MessageStore
	Contacts ContactStore
	Users    UserStore
}
