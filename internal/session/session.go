// Package session persists chat sessions. Every lookup and mutation is
// scoped to the owning user; a chat that belongs to someone else reports
// ErrNotFound rather than leaking its existence.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the chat does not exist for the given owner.
var ErrNotFound = errors.New("chat not found")

// ChatSession is a user's conversation thread. It is treated as an
// immutable value: ID and CreatedAt never change after first persistence,
// every other field changes only by producing a fresh value from the store.
type ChatSession struct {
	ID          uuid.UUID `json:"chatId"`
	UserID      string    `json:"userId"`
	Title       *string   `json:"title"` // nil until summarized or renamed
	LastMessage string    `json:"lastMessage"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	// PreviewMaxLen caps the last-message preview length in runes.
	PreviewMaxLen = 100

	ellipsis = "..."
)

// TruncatePreview applies the preview rule: text at or under the cap is
// returned unchanged; longer text is cut to PreviewMaxLen-3 runes,
// whitespace-trimmed at the cut, and suffixed with an ellipsis marker.
// The cut length is clamped at zero so a tiny cap cannot go negative.
func TruncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewMaxLen {
		return s
	}

	keep := PreviewMaxLen - len(ellipsis)
	if keep < 0 {
		keep = 0
	}

	return strings.TrimSpace(string(runes[:keep])) + ellipsis
}
