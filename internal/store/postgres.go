package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatsync/internal/models"
	"chatsync/internal/utils"
)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("database connected")
	return pool, nil
}

// NewPostgres builds the postgres store bundle on an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Store {
	return &Store{
		Messages: &pgMessages{pool: pool},
		Contacts: &pgContacts{pool: pool},
		Users:    &pgUsers{pool: pool},
	}
}

type pgMessages struct {
	pool *pgxpool.Pool
}

func (s *pgMessages) Insert(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = utils.NewMessageID()
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}

	var attachment []byte
	if m.Attachment != nil {
		var err error
		attachment, err = json.Marshal(m.Attachment)
		if err != nil {
			return fmt.Errorf("marshal attachment: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, author, text, type, status, sender_id, conversation_id, ts, attachment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.Author, m.Text, m.Type, m.Status, nullable(m.SenderID), nullable(m.ConversationID), m.Timestamp, attachment, time.Now())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *pgMessages) List(ctx context.Context, conversationID string, before int64, limit int) ([]models.Message, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, author, text, type, status, COALESCE(sender_id, ''), COALESCE(conversation_id, ''), ts, attachment
		FROM messages
		WHERE ($1 = '' OR conversation_id = $1 OR sender_id = $1)
		  AND ($2::bigint = 0 OR ts < $2)
		ORDER BY ts DESC
		LIMIT $3
	`, conversationID, before, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var page []models.Message
	for rows.Next() {
		var m models.Message
		var attachment []byte
		if err := rows.Scan(&m.ID, &m.Author, &m.Text, &m.Type, &m.Status,
			&m.SenderID, &m.ConversationID, &m.Timestamp, &attachment); err != nil {
			return nil, false, fmt.Errorf("scan message: %w", err)
		}
		if len(attachment) > 0 {
			m.Attachment = &models.Attachment{}
			if err := json.Unmarshal(attachment, m.Attachment); err != nil {
				return nil, false, fmt.Errorf("unmarshal attachment: %w", err)
			}
		}
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("list messages: %w", err)
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	// query returns newest first; callers want ascending arrival order
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, hasMore, nil
}

func (s *pgMessages) MarkRead(ctx context.Context, ids []string) error {
	_, err := s.pool.Exec(ctx, `UPDATE messages SET status = 'read' WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

type pgContacts struct {
	pool *pgxpool.Pool
}

func (s *pgContacts) List(ctx context.Context) ([]models.Contact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(email, ''), COALESCE(avatar, ''),
		       COALESCE(last_message, ''), COALESCE(last_message_time, 0), unread_count, online
		FROM contacts
		ORDER BY online DESC, last_message_time DESC NULLS LAST
	`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Avatar,
			&c.LastMessage, &c.LastMessageTime, &c.UnreadCount, &c.Online); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *pgContacts) IncrementUnread(ctx context.Context, contactID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE contacts SET unread_count = unread_count + 1 WHERE id = $1`, contactID)
	if err != nil {
		return fmt.Errorf("increment unread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgContacts) UpdateLastMessage(ctx context.Context, contactID, text string, timestamp int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contacts SET last_message = $2, last_message_time = $3 WHERE id = $1
	`, contactID, text, timestamp)
	if err != nil {
		return fmt.Errorf("update last message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgContacts) MarkRead(ctx context.Context, contactID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE contacts SET unread_count = 0 WHERE id = $1`, contactID)
	if err != nil {
		return fmt.Errorf("mark contact read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgContacts) UnreadCounts(ctx context.Context) (models.UnreadCounts, error) {
	var counts models.UnreadCounts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE unread_count > 0), COALESCE(SUM(unread_count), 0)
		FROM contacts
	`).Scan(&counts.UnreadConversations, &counts.UnreadMessages)
	if err != nil {
		return counts, fmt.Errorf("unread counts: %w", err)
	}
	return counts, nil
}

type pgUsers struct {
	pool *pgxpool.Pool
}

func (s *pgUsers) Create(ctx context.Context, u *models.User) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, u.Email).Scan(&exists); err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return ErrEmailTaken
	}

	if u.ID == "" {
		u.ID = utils.NewMessageID()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, u.ID, u.Email, u.Name, u.Password, time.Now()).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *pgUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, is_online, last_seen, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.Password, &u.IsOnline, &u.LastSeen, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *pgUsers) SetOnline(ctx context.Context, userID string, online bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1
	`, userID, online, time.Now())
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// nullable maps empty strings to NULL columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
