// Package ttsclient abstracts a speech-synthesis endpoint behind a
// narrow interface, plus the persona-to-voice lookup table.
package ttsclient

import (
	"context"
	"strings"

	"github.com/punkouter25/podebaterap/internal/domain"
)

// Audio is a synthesized rendering: raw bytes plus their declared codec.
type Audio struct {
	Bytes []byte
	Mime  string
}

// Client is the narrow interface every concrete TTS backend must satisfy.
// Synthesize returns (nil, nil) for empty or whitespace-only text without
// calling the backend.
type Client interface {
	Synthesize(ctx context.Context, text, voiceID string) (*Audio, error)
}

// Gender selects which configured default voice to fall back to when a
// persona has no explicit mapping.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// VoiceTable maps persona names to voice IDs, with gendered defaults.
type VoiceTable struct {
	Voices       map[string]string
	DefaultMale  string
	DefaultFemale string
}

// VoiceFor resolves the voice ID for persona, falling back to the
// gendered default when there is no explicit mapping.
func (t VoiceTable) VoiceFor(persona string, gender Gender) string {
	if v, ok := t.Voices[persona]; ok && v != "" {
		return v
	}
	if gender == GenderFemale {
		return t.DefaultFemale
	}
	return t.DefaultMale
}

// isBlank reports whether text has no non-whitespace content.
func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

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
