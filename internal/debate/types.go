package debate

import (
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusSetup indicates the session is configured but not yet started.
	StatusSetup Status = "setup"

	// StatusRunning indicates the session accepts scheduling ticks.
	StatusRunning Status = "running"

	// StatusPaused indicates the session is suspended and resumable.
	StatusPaused Status = "paused"

	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
)

// Mode is the discussion style the participants are instructed to follow.
type Mode string

const (
	ModeCollaborative Mode = "collaborative"
	ModeAdversarial   Mode = "adversarial"
)

// AutoMode controls how the session advances between turns.
type AutoMode string

const (
	// AutoManual requires an explicit Advance call for every turn.
	AutoManual AutoMode = "manual"

	// AutoSemi advances automatically within a round and pauses at each
	// round boundary.
	AutoSemi AutoMode = "semi"

	// AutoFull advances continuously until completion or a ratification
	// checkpoint.
	AutoFull AutoMode = "full"
)

// Role identifies what kind of speaker a participant is.
type Role string

const (
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
	RoleHuman       Role = "human"
)

// MessageType classifies entries in the session log.
type MessageType string

const (
	// TypeText is a regular participant turn.
	TypeText MessageType = "text"

	// TypeSummaryDirective is a moderator message that closes a round and
	// directs the next one.
	TypeSummaryDirective MessageType = "summary-directive"

	// TypeIntervention is an out-of-band human instruction.
	TypeIntervention MessageType = "intervention"
)

// HumanParticipantID is the synthetic participant ID used for
// intervention messages injected by a human supervisor.
const HumanParticipantID = "human"

// Participant is one configured speaker in a session.
type Participant struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Role         Role   `json:"role" yaml:"role"`
	ModelID      string `json:"modelId" yaml:"model"`
	SystemPrompt string `json:"systemPrompt" yaml:"system_prompt"`
	// ContextWindow is the backend model's context length in tokens.
	// Zero means it will be estimated from the model ID.
	ContextWindow int `json:"contextWindow,omitempty" yaml:"context_window,omitempty"`
	// Disqualified participants are permanently excluded from turn
	// rotation for the remainder of the session.
	Disqualified bool `json:"disqualified" yaml:"-"`
}

// Message is one entry in the session's append-only log. Messages are
// never mutated after creation; log order is the sole source of truth
// for who spoke last.
type Message struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participantId"`
	Content       string        `json:"content"`
	Round         int           `json:"round"`
	Timestamp     time.Time     `json:"timestamp"`
	Type          MessageType   `json:"type"`
	Tokens        int           `json:"tokens,omitempty"`
	Cost          float64       `json:"cost,omitempty"`
	Latency       time.Duration `json:"latency,omitempty"`
	ModelID       string        `json:"modelId,omitempty"`
}

// Round is one completed cycle of the rotation. StartIndex and EndIndex
// are inclusive positions into the session's message log.
type Round struct {
	Number     int           `json:"number"`
	StartIndex int           `json:"startIndex"`
	EndIndex   int           `json:"endIndex"`
	Complete   bool          `json:"complete"`
	Summary    *RoundSummary `json:"summary,omitempty"`
}

// SpeakerHighlight attributes one notable contribution to a speaker.
type SpeakerHighlight struct {
	Speaker      string `json:"speaker"`
	Contribution string `json:"contribution"`
}

// RoundSummary is the structured synopsis of a completed round. It is
// immutable once produced and attached to exactly one Round. Subsequent
// turns receive it as injected memory.
type RoundSummary struct {
	Outputs         []string           `json:"outputs"`
	Highlights      []SpeakerHighlight `json:"highlights"`
	Decisions       []string           `json:"decisions"`
	OpenQuestions   []string           `json:"openQuestions"`
	Conflicts       []string           `json:"conflicts"`
	ProgressPercent int                `json:"progressPercent"`
	NextDirective   string             `json:"nextDirective"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}

// Session is the full state of one debate.
type Session struct {
	ID           string         `json:"id"`
	Topic        string         `json:"topic"`
	Mode         Mode           `json:"mode"`
	Moderator    *Participant   `json:"moderator"`
	Participants []*Participant `json:"participants"`
	Status       Status         `json:"status"`
	AutoMode     AutoMode       `json:"autoMode"`
	// CurrentRound starts at 1 and advances when the moderator closes a
	// round. It never decreases.
	CurrentRound int `json:"currentRound"`
	MaxRounds    int `json:"maxRounds"`
	// AutoFinish lets the session run past MaxRounds until the moderator
	// signals termination.
	AutoFinish  bool      `json:"autoFinish"`
	TotalTokens int       `json:"totalTokens"`
	TotalCost   float64   `json:"totalCost"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
	Messages    []Message `json:"messages"`
	Rounds      []Round   `json:"rounds"`
	// InFlightParticipantID is the speaker whose turn is currently being
	// generated, or empty.
	InFlightParticipantID string `json:"-"`
}

// ActiveParticipants returns the non-disqualified participants in fixed
// rotation order. The moderator is not included.
func (s *Session) ActiveParticipants() []*Participant {
	active := make([]*Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if !p.Disqualified {
			active = append(active, p)
		}
	}
	return active
}

// ParticipantByID looks up a speaker by ID, including the moderator.
func (s *Session) ParticipantByID(id string) *Participant {
	if s.Moderator != nil && s.Moderator.ID == id {
		return s.Moderator
	}
	for _, p := range s.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// LastMessage returns the newest log entry, or nil when the log is empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// clone deep-copies the session so callers can hold a snapshot without
// racing the scheduler.
func (s *Session) clone() Session {
	out := *s
	if s.Moderator != nil {
		mod := *s.Moderator
		out.Moderator = &mod
	}
	out.Participants = make([]*Participant, len(s.Participants))
	for i, p := range s.Participants {
		cp := *p
		out.Participants[i] = &cp
	}
	out.Messages = append([]Message(nil), s.Messages...)
	out.Rounds = make([]Round, len(s.Rounds))
	for i, r := range s.Rounds {
		out.Rounds[i] = r
		if r.Summary != nil {
			sum := *r.Summary
			out.Rounds[i].Summary = &sum
		}
	}
	return out
}

// DecisionKind distinguishes the pending decision points a session can
// surface to its caller.
type DecisionKind string

const (
	// DecisionDisqualification is raised after a participant exhausts its
	// empty-response attempts. Resolved by ResolveDisqualification.
	DecisionDisqualification DecisionKind = "disqualification"

	// DecisionRatification is raised when the moderator requests approval
	// of a final plan. Resolved by Ratify.
	DecisionRatification DecisionKind = "ratification"
)

// Decision is a pending choice the caller must make before the session
// can proceed.
type Decision struct {
	Kind          DecisionKind `json:"kind"`
	ParticipantID string       `json:"participantId,omitempty"`
	Attempts      int          `json:"attempts,omitempty"`
	Round         int          `json:"round"`
	// Reason carries the failure detail for disqualification decisions.
	Reason string `json:"reason,omitempty"`
}

// Snapshot is what every controller operation returns: a deep copy of the
// session plus any pending decision point.
type Snapshot struct {
	Session  Session
	Decision *Decision
}

// DisqualificationAction is a caller's resolution of a disqualification
// decision.
type DisqualificationAction string

const (
	// ActionRetry re-runs the failed participant on the same instruction.
	ActionRetry DisqualificationAction = "retry"

	// ActionDisqualify permanently removes the participant from rotation
	// and resumes the session.
	ActionDisqualify DisqualificationAction = "disqualify"

	// ActionStayPaused dismisses the decision and leaves the session
	// paused.
	ActionStayPaused DisqualificationAction = "stay"
)
