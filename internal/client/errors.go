package client

import (
	"errors"
	"strings"
)

var (
	// ErrMissingToken means Connect was called without a credential. No
	// connection attempt is made.
	ErrMissingToken = errors.New("client: missing auth token")

	// ErrAuthInvalid means the server rejected the credential. The session
	// is torn down and not retried; callers should re-authenticate.
	ErrAuthInvalid = errors.New("client: authentication invalid")

	// ErrNotConnected is returned by operations that require a live session.
	ErrNotConnected = errors.New("client: not connected")
)

// authErrorTokens are matched case-insensitively against transport error
// text to distinguish credential rejection from transient connect failures.
var authErrorTokens = []string{"invalid", "unauthorized", "expired", "rejected", "forbidden"}

// isAuthError reports whether a connection error looks like a credential
// problem rather than a transient network failure.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthInvalid) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, token := range authErrorTokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}
