package domain

// Utterance is one recorded turn. History[i] belongs to Pro iff i is even.
type Utterance struct {
	Persona string `json:"persona"`
	Text    string `json:"text"`
}

// Result is populated once a session reaches PhaseFinished, or
// PhaseFailed (then carrying ErrorMessage).
type Result struct {
	Winner       string  `json:"winner"`
	Reasoning    string  `json:"reasoning,omitempty"`
	Rubric       *Rubric `json:"rubric,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

// AudioClip is a synthesized rendering of one utterance.
type AudioClip struct {
	Bytes []byte `json:"bytes"`
	Mime  string `json:"mime"`
}

// Session is the mutable state of one debate, exclusively owned by its
// orchestrator goroutine. Nothing outside that goroutine may write to it.
type Session struct {
	ID          string
	Pro         Persona
	Con         Persona
	Topic       Topic
	History     []Utterance
	CurrentTurn int
	TotalTurns  int
	IsProTurn   bool
	Phase       Phase
	CurrentText string
	CurrentAudio *AudioClip
	Result      *Result
}

// NewSession initializes a fresh, Idle session ready for StartDebate.
func NewSession(id string, pro, con Persona, topic Topic) *Session {
	return &Session{
		ID:          id,
		Pro:         pro,
		Con:         con,
		Topic:       topic,
		History:     make([]Utterance, 0, TotalTurns),
		CurrentTurn: 0,
		TotalTurns:  TotalTurns,
		IsProTurn:   true,
		Phase:       PhaseIdle,
	}
}

// Active returns the persona whose turn it currently is, and the opponent.
func (s *Session) Active() (active, opponent Persona) {
	if s.IsProTurn {
		return s.Pro, s.Con
	}
	return s.Con, s.Pro
}

// Snapshot produces an immutable value copy safe to hand to a client.
func (s *Session) Snapshot() Snapshot {
	hist := make([]Utterance, len(s.History))
	copy(hist, s.History)

	var audio *AudioClip
	if s.CurrentAudio != nil {
		clip := *s.CurrentAudio
		clip.Bytes = append([]byte(nil), s.CurrentAudio.Bytes...)
		audio = &clip
	}

	snap := Snapshot{
		SessionID:       s.ID,
		Pro:             s.Pro.Name,
		Con:             s.Con.Name,
		Topic:           s.Topic,
		Phase:           s.Phase,
		CurrentTurn:     s.CurrentTurn,
		TotalTurns:      s.TotalTurns,
		IsProTurn:       s.IsProTurn,
		CurrentTurnText: s.CurrentText,
		CurrentTurnAudio: audio,
		History:         hist,
	}
	if s.Result != nil {
		result := *s.Result
		snap.Winner = result.Winner
		snap.Reasoning = result.Reasoning
		snap.Rubric = result.Rubric
		snap.ErrorMessage = result.ErrorMessage
	}
	return snap
}
