package models

// Contact is an entry in the contact directory. LastMessage, LastMessageTime
// and UnreadCount are maintained by the directory through narrow update calls
// from the sync core; nothing mutates them directly.
type Contact struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	Avatar          string `json:"avatar,omitempty"`
	LastMessage     string `json:"lastMessage,omitempty"`
	LastMessageTime int64  `json:"lastMessageTime,omitempty"`
	UnreadCount     int    `json:"unreadCount"`
	Online          bool   `json:"online"`
}

// UnreadCounts is the server-side aggregate of unread work, returned by the
// contacts unread-count endpoint and pushed over the chat:unread-updated event.
type UnreadCounts struct {
	UnreadConversations int `json:"unreadConversations"`
	UnreadMessages      int `json:"unreadMessages"`
}
