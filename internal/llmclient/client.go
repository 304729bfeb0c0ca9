// Package llmclient abstracts a chat-style completion endpoint behind
// a narrow interface so the orchestrator never depends on a concrete
// vendor SDK.
package llmclient

import (
	"context"
	"strings"

	"github.com/punkouter25/podebaterap/internal/domain"
)

// Role is a chat message's speaker role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of chat history passed to Complete.
type Message struct {
	Role Role
	Text string
}

// Options tunes one completion request.
type Options struct {
	Temperature float64
	MaxChars    int
}

// Client is the narrow interface every concrete LLM backend must satisfy.
// Complete returns full response text; callers must classify failures
// using domain.KindOf and may retry Transient failures themselves.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message, opts Options) (string, error)
}

// TrimToMaxChars trims text to at most maxChars runes, cutting at the
// last whitespace boundary and appending an ellipsis when truncated.
// Callers (not Client implementations) are responsible for applying this.
func TrimToMaxChars(text string, maxChars int) string {
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return text
	}
	runes := []rune(text)
	cut := runes[:maxChars]
	if idx := strings.LastIndexAny(string(cut), " \t\n"); idx >= 0 {
		cut = []rune(string(cut)[:idx])
	}
	return strings.TrimRight(string(cut), " \t\n") + "…"
}

// classifyHTTPStatus maps an HTTP status code to a domain.ErrorKind.
func classifyHTTPStatus(status int) domain.ErrorKind {
	switch {
	case status == 0:
		return domain.KindTransient
	case status >= 500:
		return domain.KindTransient
	case status >= 400:
		return domain.KindPermanent
	default:
		return domain.KindTransient
	}
}
