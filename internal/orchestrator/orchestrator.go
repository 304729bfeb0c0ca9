// Package orchestrator drives one debate session's turn-by-turn state
// machine: text generation, audio synthesis, the client playback
// handshake, judging, and the persona stat update. An Orchestrator is
// exclusively owned by the single goroutine running its loop; AckAudio,
// Cancel, and the read-only accessors Events, Done, and FinishedAt are
// the methods safe to call from other goroutines.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/punkouter25/podebaterap/internal/domain"
	"github.com/punkouter25/podebaterap/internal/judge"
	"github.com/punkouter25/podebaterap/internal/llmclient"
	"github.com/punkouter25/podebaterap/internal/personastore"
	"github.com/punkouter25/podebaterap/internal/promptbuilder"
	"github.com/punkouter25/podebaterap/internal/ttsclient"
)

const (
	maxTurnChars     = 600
	turnTemperature  = 0.9
	judgeTemperature = 0.2
	audioGracePeriod = 1 * time.Second
	micCutoutText    = "Yo, my mic just cut out, give me a sec..."

	// llmCallTimeout bounds a single LLM attempt with a soft 60s bound,
	// the LLM counterpart of the 30s http.Client timeout serve gives
	// ttsclient.HTTPClient. Applied per retry attempt so a hung upstream call
	// degrades to Transient and retries rather than blocking the
	// session's run goroutine indefinitely.
	llmCallTimeout = 60 * time.Second
)

// AuditPublisher mirrors session state to an out-of-band sink. It is
// best-effort: its methods return nothing, so an implementation handles
// (e.g. logs) its own failures and they never affect the debate itself.
// A nil AuditPublisher is valid — callers
// check before invoking it.
type AuditPublisher interface {
	PublishSnapshot(sessionID string, snap domain.Snapshot)
	PublishOutcome(sessionID string, snap domain.Snapshot)
}

// Dependencies bundles every collaborator an Orchestrator needs.
// Logger may be nil, in which case a no-op logger is used.
type Dependencies struct {
	LLM    llmclient.Client
	TTS    ttsclient.Client
	Store  personastore.Store
	Voices ttsclient.VoiceTable
	Audit  AuditPublisher
	Logger *zap.Logger
}

// Orchestrator runs one debate session end to end.
type Orchestrator struct {
	id   string
	deps Dependencies

	cancelFunc context.CancelFunc
	cancelOnce sync.Once

	mu         sync.Mutex
	pendingAck chan struct{}
	finishedAt time.Time

	events *EventChannel
	done   chan struct{}
}

// startDebate validates pro/con/topic and, if valid, spawns a fresh
// Orchestrator running its loop in a new goroutine. Only called by
// Registry, which owns id generation.
func startDebate(parent context.Context, id string, pro, con domain.Persona, topic domain.Topic, deps Dependencies) (*Orchestrator, error) {
	if pro.Name == con.Name {
		return nil, domain.NewError(domain.KindInvalidArgument, "orchestrator.StartDebate", errors.New("pro and con must be distinct personas"))
	}
	if !topic.Valid() {
		return nil, domain.NewError(domain.KindInvalidArgument, "orchestrator.StartDebate", errors.New("topic title must be non-empty and at most 150 characters"))
	}

	ctx, cancel := context.WithCancel(parent)
	o := &Orchestrator{
		id:         id,
		deps:       deps,
		cancelFunc: cancel,
		events:     newEventChannel(),
		done:       make(chan struct{}),
	}
	go o.run(ctx, pro, con, topic)
	return o, nil
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.deps.Logger != nil {
		return o.deps.Logger
	}
	return zap.NewNop()
}

// Events is the session's outbound snapshot stream.
func (o *Orchestrator) Events() <-chan domain.Snapshot {
	return o.events.Out()
}

// Done closes once the session has reached a terminal phase and
// stopped running.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// FinishedAt reports when the session reached its terminal phase, and
// whether it has done so yet.
func (o *Orchestrator) FinishedAt() (time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finishedAt, !o.finishedAt.IsZero()
}

// AckAudio unblocks a pending AwaitingPlaybackAck wait. If no audio is
// currently pending it returns a domain.KindOutOfOrderAck error; callers
// are expected to log and ignore per the error-handling contract.
func (o *Orchestrator) AckAudio() error {
	o.mu.Lock()
	ack := o.pendingAck
	o.mu.Unlock()
	if ack == nil {
		return domain.NewError(domain.KindOutOfOrderAck, "orchestrator.AckAudio", errors.New("no audio pending for this session"))
	}
	select {
	case ack <- struct{}{}:
	default:
	}
	return nil
}

// Cancel aborts the session. Idempotent.
func (o *Orchestrator) Cancel() {
	o.cancelOnce.Do(o.cancelFunc)
}

func (o *Orchestrator) armAck() chan struct{} {
	ack := make(chan struct{}, 1)
	o.mu.Lock()
	o.pendingAck = ack
	o.mu.Unlock()
	return ack
}

func (o *Orchestrator) disarmAck() {
	o.mu.Lock()
	o.pendingAck = nil
	o.mu.Unlock()
}

func (o *Orchestrator) markFinished() {
	o.mu.Lock()
	if o.finishedAt.IsZero() {
		o.finishedAt = time.Now()
	}
	o.mu.Unlock()
}

func (o *Orchestrator) publish(s *domain.Session) {
	snap := s.Snapshot()
	o.events.publish(snap)
	if o.deps.Audit != nil {
		o.deps.Audit.PublishSnapshot(o.id, snap)
	}
}

func (o *Orchestrator) run(ctx context.Context, pro, con domain.Persona, topic domain.Topic) {
	session := domain.NewSession(o.id, pro, con, topic)

	defer close(o.done)
	defer o.events.close()
	defer func() {
		if r := recover(); r != nil {
			session.Phase = domain.PhaseFailed
			session.Result = &domain.Result{
				Winner:       domain.WinnerErrorJudging,
				ErrorMessage: fmt.Sprintf("internal error: %v", r),
			}
			o.markFinished()
			o.publish(session)
			o.logger().Error("orchestrator loop panicked", zap.Any("recover", r), zap.String("sessionId", o.id))
		}
	}()

	session.Phase = domain.PhaseGeneratingText
	o.publish(session)

	for {
		switch session.Phase {
		case domain.PhaseGeneratingText:
			if !o.stepGenerateText(ctx, session) {
				o.markFinished()
				return
			}
		case domain.PhaseSynthesizingAudio:
			if !o.stepSynthesizeAudio(ctx, session) {
				o.markFinished()
				return
			}
		case domain.PhaseAwaitingPlaybackAck:
			if !o.stepAwaitAck(ctx, session) {
				o.markFinished()
				return
			}
		case domain.PhaseJudging:
			o.stepJudge(ctx, session)
			o.markFinished()
			o.publish(session)
			return
		default:
			o.markFinished()
			return
		}
	}
}

// stepGenerateText advances currentTurn and asks the LLM for the active
// persona's line. A Permanent failure (after retries) substitutes a
// placeholder turn rather than aborting the debate; only cancellation
// ends the session from here.
func (o *Orchestrator) stepGenerateText(ctx context.Context, s *domain.Session) bool {
	if ctx.Err() != nil {
		o.finishCancelled(s)
		return false
	}

	s.CurrentTurn++
	active, opponent := s.Active()

	sys := promptbuilder.BuildTurnSystemPrompt(promptbuilder.TurnPromptInput{
		Active:      active,
		Opponent:    opponent,
		Topic:       s.Topic,
		IsPro:       s.IsProTurn,
		CurrentTurn: s.CurrentTurn,
		MaxChars:    maxTurnChars,
		History:     s.History,
	})
	msgs := toLLMMessages(promptbuilder.BuildTurnHistory(s.History, s.IsProTurn))

	text, err := llmclient.WithRetry(ctx, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, llmCallTimeout)
		defer cancel()
		return o.deps.LLM.Complete(callCtx, sys, msgs, llmclient.Options{Temperature: turnTemperature, MaxChars: maxTurnChars})
	})

	switch {
	case err == nil:
		s.CurrentText = llmclient.TrimToMaxChars(text, maxTurnChars)
	case domain.IsKind(err, domain.KindCancelled):
		o.finishCancelled(s)
		return false
	default:
		o.logger().Warn("turn generation failed, substituting placeholder",
			zap.Error(err), zap.String("sessionId", o.id), zap.Int("turn", s.CurrentTurn))
		s.CurrentText = micCutoutText
	}

	s.Phase = domain.PhaseSynthesizingAudio
	return true
}

// stepSynthesizeAudio renders the current turn's text to audio. Empty
// audio (TTS failure or genuinely blank text) skips the ack handshake
// entirely and advances after a fixed grace delay instead.
func (o *Orchestrator) stepSynthesizeAudio(ctx context.Context, s *domain.Session) bool {
	if ctx.Err() != nil {
		o.finishCancelled(s)
		return false
	}

	active, _ := s.Active()
	voiceID := o.deps.Voices.VoiceFor(active.Name, ttsclient.GenderMale)

	audio, err := synthesizeWithRetry(ctx, o.deps.TTS, s.CurrentText, voiceID)
	switch {
	case err != nil && domain.IsKind(err, domain.KindCancelled):
		o.finishCancelled(s)
		return false
	case err != nil:
		o.logger().Warn("tts synthesis failed, proceeding without audio",
			zap.Error(err), zap.String("sessionId", o.id), zap.Int("turn", s.CurrentTurn))
		audio = nil
	}

	if audio == nil || len(audio.Bytes) == 0 {
		s.CurrentAudio = nil
		o.publish(s)

		timer := time.NewTimer(audioGracePeriod)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			o.finishCancelled(s)
			return false
		}

		o.advanceTurn(s)
		return true
	}

	s.CurrentAudio = &domain.AudioClip{Bytes: audio.Bytes, Mime: audio.Mime}
	o.armAck()
	o.publish(s)
	s.Phase = domain.PhaseAwaitingPlaybackAck
	return true
}

// synthesizeWithRetry applies the same ≤2-retry, exponential-backoff
// contract as llmclient.WithRetry, but against ttsclient.Client's
// different return shape.
func synthesizeWithRetry(ctx context.Context, client ttsclient.Client, text, voiceID string) (*ttsclient.Audio, error) {
	const maxAttempts = 3
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewError(domain.KindCancelled, "orchestrator.synthesize", err)
		}

		audio, err := client.Synthesize(ctx, text, voiceID)
		if err == nil {
			return audio, nil
		}
		lastErr = err

		if !domain.IsKind(err, domain.KindTransient) {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, domain.NewError(domain.KindCancelled, "orchestrator.synthesize", ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, lastErr
}

// stepAwaitAck blocks until the client acks the current turn's audio or
// the session is cancelled.
func (o *Orchestrator) stepAwaitAck(ctx context.Context, s *domain.Session) bool {
	o.mu.Lock()
	ack := o.pendingAck
	o.mu.Unlock()
	if ack == nil {
		o.advanceTurn(s)
		return true
	}

	select {
	case <-ack:
		o.disarmAck()
		o.advanceTurn(s)
		return true
	case <-ctx.Done():
		// An ack that was already delivered before the cancellation
		// still commits its turn to history.
		select {
		case <-ack:
			o.advanceTurn(s)
		default:
		}
		o.disarmAck()
		o.finishCancelled(s)
		return false
	}
}

// advanceTurn commits the current turn's text to history and decides
// whether another turn follows or judging begins.
func (o *Orchestrator) advanceTurn(s *domain.Session) {
	speaker := s.Con.Name
	if s.IsProTurn {
		speaker = s.Pro.Name
	}
	s.History = append(s.History, domain.Utterance{Persona: speaker, Text: s.CurrentText})
	s.CurrentText = ""
	s.CurrentAudio = nil
	s.IsProTurn = !s.IsProTurn

	if s.CurrentTurn >= s.TotalTurns {
		s.Phase = domain.PhaseJudging
		return
	}
	s.Phase = domain.PhaseGeneratingText
}

// stepJudge builds the judge prompt, parses the verdict, and records
// the outcome. It leaves the session in PhaseFinished, or in
// PhaseCancelled when the session is cancelled before or during judging.
func (o *Orchestrator) stepJudge(ctx context.Context, s *domain.Session) {
	if ctx.Err() != nil {
		o.finishCancelled(s)
		return
	}

	sys := promptbuilder.BuildJudgeSystemPrompt()
	transcript := promptbuilder.BuildJudgeTranscript(promptbuilder.JudgePromptInput{
		Pro: s.Pro, Con: s.Con, Topic: s.Topic, History: s.History,
	})
	msgs := []llmclient.Message{{Role: llmclient.RoleUser, Text: transcript}}

	raw, err := llmclient.WithRetry(ctx, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, llmCallTimeout)
		defer cancel()
		return o.deps.LLM.Complete(callCtx, sys, msgs, llmclient.Options{Temperature: judgeTemperature})
	})
	if err != nil {
		if domain.IsKind(err, domain.KindCancelled) {
			o.finishCancelled(s)
			return
		}
		s.Phase = domain.PhaseFinished
		s.Result = &domain.Result{Winner: domain.WinnerErrorJudging, ErrorMessage: err.Error()}
		o.logger().Warn("judging failed", zap.Error(err), zap.String("sessionId", o.id))
		return
	}

	verdict := judge.Parse(raw, s.Pro.Name, s.Con.Name)
	s.Phase = domain.PhaseFinished
	s.Result = &domain.Result{Winner: verdict.Winner, Reasoning: verdict.Reasoning, Rubric: verdict.Rubric}

	if verdict.Winner == s.Pro.Name || verdict.Winner == s.Con.Name {
		loser := s.Con.Name
		if verdict.Winner == s.Con.Name {
			loser = s.Pro.Name
		}
		if storeErr := o.deps.Store.RecordOutcome(ctx, verdict.Winner, loser); storeErr != nil {
			o.logger().Warn("recording debate outcome failed", zap.Error(storeErr), zap.String("sessionId", o.id))
		} else if o.deps.Audit != nil {
			o.deps.Audit.PublishOutcome(o.id, s.Snapshot())
		}
	}
}

func (o *Orchestrator) finishCancelled(s *domain.Session) {
	o.disarmAck()
	s.CurrentText = ""
	s.CurrentAudio = nil
	s.Phase = domain.PhaseCancelled
	o.publish(s)
}

func toLLMMessages(msgs []promptbuilder.ChatMessage) []llmclient.Message {
	out := make([]llmclient.Message, 0, len(msgs))
	for _, m := range msgs {
		role := llmclient.RoleUser
		if m.Role == promptbuilder.RoleAssistant {
			role = llmclient.RoleAssistant
		}
		out = append(out, llmclient.Message{Role: role, Text: m.Text})
	}
	return out
}
