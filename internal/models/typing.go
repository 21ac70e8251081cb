package models

// TypingInfo is a transient per-participant typing signal. Entries expire on
// the client a few seconds after the last refresh unless an explicit
// isTyping=false arrives first.
type TypingInfo struct {
	UserID         string `json:"userId"`
	Author         string `json:"author"`
	ConversationID string `json:"conversationId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}
