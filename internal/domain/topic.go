package domain

import (
	"strings"
	"unicode/utf8"
)

const maxTopicTitleLen = 150

// Topic is ephemeral per-debate input; it is never persisted.
type Topic struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Valid reports whether the topic's title survives trimming and fits
// within the 150-character cap.
func (t Topic) Valid() bool {
	title := strings.TrimSpace(t.Title)
	return title != "" && utf8.RuneCountInString(title) <= maxTopicTitleLen
}
