package client

import (
	"strings"

	"chatsync/internal/models"
)

// ExclusionFilter drops messages from automated participants (assistant
// personas, system announcements) before they reach the primary log.
//
// Matching is a blunt instrument: case-insensitive author prefixes and text
// substrings. A prefix like "dr" will also hit legitimate users whose names
// start with it; a sender-role attribute on the message would be the proper
// replacement. The filter is isolated here so that swap touches one file.
type ExclusionFilter struct {
	AuthorPrefixes []string
	TextSubstrings []string
}

// DefaultExclusionFilter matches the assistant personas of the stock relay.
func DefaultExclusionFilter() *ExclusionFilter {
	return &ExclusionFilter{
		AuthorPrefixes: []string{"guru", "sistema", "advogado", "vendedor", "medico", "psicologo", "dr"},
		TextSubstrings: []string{"@guru", "@advogado", "@vendedor", "@medico", "@psicologo"},
	}
}

// Excluded reports whether a message should be dropped. A nil filter
// excludes nothing.
func (f *ExclusionFilter) Excluded(m *models.Message) bool {
	if f == nil {
		return false
	}
	author := strings.ToLower(strings.TrimSpace(m.Author))
	for _, prefix := range f.AuthorPrefixes {
		if strings.HasPrefix(author, prefix) {
			return true
		}
	}
	text := strings.ToLower(m.Text)
	for _, sub := range f.TextSubstrings {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}
