package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/punkouter25/podebaterap/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// drainSession reads every snapshot off events until the channel
// closes, acking audio as soon as it sees it so the session can
// proceed unattended. It returns the full ordered snapshot sequence.
func drainSession(t *testing.T, reg *Registry, id string, events <-chan domain.Snapshot) []domain.Snapshot {
	t.Helper()
	var snaps []domain.Snapshot
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-events:
			if !ok {
				return snaps
			}
			snaps = append(snaps, snap)
			if snap.CurrentTurnAudio != nil {
				require.NoError(t, reg.AckAudio(id))
			}
		case <-deadline:
			t.Fatal("timed out waiting for session to finish")
		}
	}
}

func newTestSession(t *testing.T, deps Dependencies) (*Registry, string, <-chan domain.Snapshot) {
	t.Helper()
	reg := NewRegistry(deps)
	pro := domain.Persona{Name: "A"}
	con := domain.Persona{Name: "B"}
	topic := domain.Topic{Title: "AI"}

	id, events, err := reg.StartDebate(context.Background(), pro, con, topic)
	require.NoError(t, err)
	return reg, id, events
}

func TestOrchestrator_S1_HappyPath(t *testing.T) {
	store := newFakeStore("A", "B")
	llm := &fakeLLM{
		turnText:      "T%d",
		judgeResponse: "Reasoning: A dominated\nRapper1_Logic: 5\nRapper2_Logic: 3\nRapper1_Sentiment: 4\nRapper2_Sentiment: 3\nRapper1_Adherence: 5\nRapper2_Adherence: 3\nRapper1_Rebuttal: 4\nRapper2_Rebuttal: 3",
	}
	reg, id, events := newTestSession(t, Dependencies{LLM: llm, TTS: &fakeTTS{}, Store: store, Voices: testVoices()})

	snaps := drainSession(t, reg, id, events)
	require.NotEmpty(t, snaps)

	final := snaps[len(snaps)-1]
	require.Equal(t, domain.PhaseFinished, final.Phase)
	require.Equal(t, "A", final.Winner)
	require.Len(t, final.History, domain.TotalTurns)

	winner, err := store.Get(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, 1, winner.Wins)
	loser, err := store.Get(context.Background(), "B")
	require.NoError(t, err)
	require.Equal(t, 1, loser.Losses)
}

func TestOrchestrator_S2_Draw(t *testing.T) {
	store := newFakeStore("A", "B")
	llm := &fakeLLM{
		turnText:      "T%d",
		judgeResponse: "Reasoning: dead even\nRapper1_Logic: 3\nRapper2_Logic: 3\nRapper1_Sentiment: 3\nRapper2_Sentiment: 3\nRapper1_Adherence: 3\nRapper2_Adherence: 3\nRapper1_Rebuttal: 3\nRapper2_Rebuttal: 3",
	}
	reg, id, events := newTestSession(t, Dependencies{LLM: llm, TTS: &fakeTTS{}, Store: store, Voices: testVoices()})

	snaps := drainSession(t, reg, id, events)
	final := snaps[len(snaps)-1]
	require.Equal(t, domain.WinnerDraw, final.Winner)

	a, _ := store.Get(context.Background(), "A")
	require.Equal(t, 0, a.Wins)
	require.Equal(t, 0, a.Losses)
}

func TestOrchestrator_S3_JudgeParseFailure(t *testing.T) {
	store := newFakeStore("A", "B")
	llm := &fakeLLM{turnText: "T%d", judgeResponse: "nonsense"}
	reg, id, events := newTestSession(t, Dependencies{LLM: llm, TTS: &fakeTTS{}, Store: store, Voices: testVoices()})

	snaps := drainSession(t, reg, id, events)
	final := snaps[len(snaps)-1]
	require.Equal(t, domain.WinnerStatsError, final.Winner)
	require.Empty(t, store.outcomes)
}

func TestOrchestrator_S4_MidDebateCancel(t *testing.T) {
	store := newFakeStore("A", "B")
	llm := &fakeLLM{turnText: "T%d"}
	reg, id, events := newTestSession(t, Dependencies{LLM: llm, TTS: &fakeTTS{}, Store: store, Voices: testVoices()})

	var snaps []domain.Snapshot
	acked := 0
	cancelled := false
	for snap := range events {
		snaps = append(snaps, snap)
		if cancelled {
			continue
		}
		if snap.CurrentTurnAudio != nil {
			require.NoError(t, reg.AckAudio(id))
			acked++
			if acked == 3 {
				require.NoError(t, reg.Cancel(id))
				cancelled = true
			}
		}
	}

	final := snaps[len(snaps)-1]
	require.Equal(t, domain.PhaseCancelled, final.Phase)
	require.Len(t, final.History, 3)
	require.Empty(t, store.outcomes)
}

func TestOrchestrator_S5_TTSEmptyOnTurnTwo(t *testing.T) {
	store := newFakeStore("A", "B")
	llm := &fakeLLM{
		turnText:      "T%d",
		judgeResponse: "Reasoning: ok\nRapper1_Logic: 4\nRapper2_Logic: 4\nRapper1_Sentiment: 4\nRapper2_Sentiment: 4\nRapper1_Adherence: 4\nRapper2_Adherence: 4\nRapper1_Rebuttal: 4\nRapper2_Rebuttal: 4",
	}
	tts := &fakeTTS{emptyOn: map[int]bool{2: true}}
	reg, id, events := newTestSession(t, Dependencies{LLM: llm, TTS: tts, Store: store, Voices: testVoices()})

	start := time.Now()
	snaps := drainSession(t, reg, id, events)
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, audioGracePeriod)

	var sawEmptyTurnTwo bool
	for _, s := range snaps {
		if s.CurrentTurn == 2 && s.Phase == domain.PhaseSynthesizingAudio {
			if s.CurrentTurnAudio == nil {
				sawEmptyTurnTwo = true
			}
		}
	}
	require.True(t, sawEmptyTurnTwo)

	final := snaps[len(snaps)-1]
	require.Equal(t, domain.PhaseFinished, final.Phase)
	require.Len(t, final.History, domain.TotalTurns)
}

func TestOrchestrator_S6_LLMTransientThenSuccess(t *testing.T) {
	store := newFakeStore("A", "B")
	llm := &fakeLLM{
		script: []scriptedCall{
			{err: domain.NewError(domain.KindTransient, "test", errTransient{})},
			{err: domain.NewError(domain.KindTransient, "test", errTransient{})},
			{text: "finally landed"},
		},
		turnText:      "", // force script path for every non-judge call
		judgeResponse: "Reasoning: ok\nRapper1_Logic: 3\nRapper2_Logic: 3\nRapper1_Sentiment: 3\nRapper2_Sentiment: 3\nRapper1_Adherence: 3\nRapper2_Adherence: 3\nRapper1_Rebuttal: 3\nRapper2_Rebuttal: 3",
	}
	reg, id, events := newTestSession(t, Dependencies{LLM: llm, TTS: &fakeTTS{}, Store: store, Voices: testVoices()})

	snaps := drainSession(t, reg, id, events)
	require.NotEmpty(t, snaps)
	require.Equal(t, "finally landed", snaps[len(snaps)-1].History[0].Text)
	require.GreaterOrEqual(t, llm.calls, 3)
}

type errTransient struct{}

func (errTransient) Error() string { return "transient failure" }

func TestOrchestrator_InvalidArgument_SamePersona(t *testing.T) {
	reg := NewRegistry(Dependencies{LLM: &fakeLLM{}, TTS: &fakeTTS{}, Store: newFakeStore(), Voices: testVoices()})
	_, _, err := reg.StartDebate(context.Background(), domain.Persona{Name: "A"}, domain.Persona{Name: "A"}, domain.Topic{Title: "x"})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidArgument))
}

func TestOrchestrator_InvalidArgument_EmptyTopic(t *testing.T) {
	reg := NewRegistry(Dependencies{LLM: &fakeLLM{}, TTS: &fakeTTS{}, Store: newFakeStore(), Voices: testVoices()})
	_, _, err := reg.StartDebate(context.Background(), domain.Persona{Name: "A"}, domain.Persona{Name: "B"}, domain.Topic{Title: "  "})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindInvalidArgument))
}

func TestRegistry_AckAudio_UnknownSession_IsNotFound(t *testing.T) {
	reg := NewRegistry(Dependencies{LLM: &fakeLLM{}, TTS: &fakeTTS{}, Store: newFakeStore(), Voices: testVoices()})
	err := reg.AckAudio("does-not-exist")
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestRegistry_SweepExpired(t *testing.T) {
	store := newFakeStore("A", "B")
	llm := &fakeLLM{turnText: "T%d", judgeResponse: "Reasoning: ok\nRapper1_Logic: 1\nRapper2_Logic: 1\nRapper1_Sentiment: 1\nRapper2_Sentiment: 1\nRapper1_Adherence: 1\nRapper2_Adherence: 1\nRapper1_Rebuttal: 1\nRapper2_Rebuttal: 1"}
	reg, id, events := newTestSession(t, Dependencies{LLM: llm, TTS: &fakeTTS{}, Store: store, Voices: testVoices()})
	drainSession(t, reg, id, events)

	require.Equal(t, 1, reg.Len())
	removed := reg.SweepExpired(0)
	require.Equal(t, 1, removed)
	require.Equal(t, 0, reg.Len())
}
