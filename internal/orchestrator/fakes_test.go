package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/punkouter25/podebaterap/internal/domain"
	"github.com/punkouter25/podebaterap/internal/llmclient"
	"github.com/punkouter25/podebaterap/internal/ttsclient"
)

// fakeLLM answers each Complete call from a queue, keyed by call index
// within the turn/judge sequence. Used across tests in this package.
type fakeLLM struct {
	mu    sync.Mutex
	calls int

	// turnText, when set, returns fmt.Sprintf(turnText, callIndex) for
	// every non-judge call instead of consulting script.
	turnText string

	// script lets a test queue up exact (text, err) pairs consumed in order.
	script []scriptedCall

	// judgeResponse is returned whenever the system prompt looks like a
	// judge prompt (longer than 20 characters and contains "judge" or
	// "Judge"; see containsJudgeMarker).
	judgeResponse string
	judgeErr      error

	retryCounts []int // per logical call, how many attempts were made
}

type scriptedCall struct {
	text string
	err  error
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt string, messages []llmclient.Message, opts llmclient.Options) (string, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	if len(systemPrompt) > 0 && containsJudgeMarker(systemPrompt) {
		if f.judgeErr != nil {
			return "", f.judgeErr
		}
		return f.judgeResponse, nil
	}

	if f.turnText != "" {
		return fmt.Sprintf(f.turnText, idx), nil
	}

	if idx < len(f.script) {
		c := f.script[idx]
		return c.text, c.err
	}
	return "T", nil
}

func containsJudgeMarker(s string) bool {
	return len(s) > 20 && (contains(s, "judge") || contains(s, "Judge"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// fakeTTS returns a fixed-size clip for every call, except the calls
// whose 1-indexed number is set in emptyOn, which return empty bytes.
type fakeTTS struct {
	mu        sync.Mutex
	emptyOn   map[int]bool // 1-indexed call number -> force empty
	callCount int
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, voiceID string) (*ttsclient.Audio, error) {
	f.mu.Lock()
	f.callCount++
	n := f.callCount
	f.mu.Unlock()

	if f.emptyOn != nil && f.emptyOn[n] {
		return &ttsclient.Audio{}, nil
	}
	return &ttsclient.Audio{Bytes: []byte{0x01}, Mime: "audio/mpeg"}, nil
}

// fakeStore is a minimal in-memory personastore.Store for tests that
// don't need the GORM backend's durability.
type fakeStore struct {
	mu       sync.Mutex
	rows     map[string]domain.Persona
	outcomes [][2]string // winner, loser pairs recorded
}

func newFakeStore(names ...string) *fakeStore {
	s := &fakeStore{rows: make(map[string]domain.Persona)}
	for _, n := range names {
		s.rows[n] = domain.Persona{Name: n}
	}
	return s
}

func (s *fakeStore) List(ctx context.Context) ([]domain.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Persona, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) Get(ctx context.Context, name string) (domain.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[name]
	if !ok {
		return domain.Persona{}, domain.NewError(domain.KindNotFound, "fakeStore.Get", fmt.Errorf("persona %q not found", name))
	}
	return p, nil
}

func (s *fakeStore) Upsert(ctx context.Context, p domain.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[p.Name] = p
	return nil
}

func (s *fakeStore) SeedIfEmpty(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) > 0 {
		return nil
	}
	for _, n := range names {
		s.rows[n] = domain.Persona{Name: n}
	}
	return nil
}

func (s *fakeStore) RecordOutcome(ctx context.Context, winner, loser string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[winner]
	if !ok {
		return domain.NewError(domain.KindNotFound, "fakeStore.RecordOutcome", fmt.Errorf("persona %q not found", winner))
	}
	l, ok := s.rows[loser]
	if !ok {
		return domain.NewError(domain.KindNotFound, "fakeStore.RecordOutcome", fmt.Errorf("persona %q not found", loser))
	}
	w.Wins++
	w.TotalDebates++
	l.Losses++
	l.TotalDebates++
	s.rows[winner] = w
	s.rows[loser] = l
	s.outcomes = append(s.outcomes, [2]string{winner, loser})
	return nil
}

func (s *fakeStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	rows, _ := s.List(ctx)
	out := make([]domain.LeaderboardRow, 0, len(rows))
	for _, p := range rows {
		out = append(out, domain.LeaderboardRow{Name: p.Name, Wins: p.Wins, Losses: p.Losses, Total: p.TotalDebates, WinPct: p.WinPct()})
	}
	return out, nil
}

func (s *fakeStore) Close() error { return nil }

func testVoices() ttsclient.VoiceTable {
	return ttsclient.VoiceTable{DefaultMale: "voice-default"}
}
