package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewTempID generates a provisional message identifier, unique per client
// session. The prefix keeps temp ids visually distinct from server ids.
func NewTempID() string {
	return fmt.Sprintf("temp_%s", uuid.NewString())
}

// NewMessageID generates a server-assigned message identifier.
func NewMessageID() string {
	return uuid.NewString()
}
