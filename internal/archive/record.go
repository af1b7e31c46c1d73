// Package archive persists finished and interrupted debate sessions as
// JSON records with a human-readable transcript alongside.
package archive

import (
	"time"

	"github.com/tetra-labs/tetra/internal/debate"
)

// ArchivedParticipant is the roster entry stored with a record. Unlike
// the live Participant it keeps the system prompt, so a reader can see
// how each speaker was configured.
type ArchivedParticipant struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         debate.Role `json:"role"`
	ModelID      string      `json:"modelId"`
	SystemPrompt string      `json:"systemPrompt,omitempty"`
	Disqualified bool        `json:"disqualified,omitempty"`
}

// FinalStatus aggregates the round summaries into a closing picture:
// every decision from every round, and the open questions and conflicts
// still standing at the end.
type FinalStatus struct {
	ProgressPercent int      `json:"progressPercent"`
	Decisions       []string `json:"decisions,omitempty"`
	OpenQuestions   []string `json:"openQuestions,omitempty"`
	Conflicts       []string `json:"conflicts,omitempty"`
}

// Record is the full session archive.
type Record struct {
	ID           string                `json:"id"`
	Topic        string                `json:"topic"`
	Mode         debate.Mode           `json:"mode"`
	AutoMode     debate.AutoMode       `json:"autoMode"`
	MaxRounds    int                   `json:"maxRounds"`
	AutoFinish   bool                  `json:"autoFinish"`
	Completed    bool                  `json:"completed"`
	StartedAt    time.Time             `json:"startedAt"`
	CompletedAt  time.Time             `json:"completedAt,omitzero"`
	ArchivedAt   time.Time             `json:"archivedAt"`
	Moderator    ArchivedParticipant   `json:"moderator"`
	Participants []ArchivedParticipant `json:"participants"`
	Messages     []debate.Message      `json:"messages"`
	Rounds       []debate.Round        `json:"rounds"`
	Final        FinalStatus           `json:"finalStatus"`
	TotalTokens  int                   `json:"totalTokens"`
	TotalCost    float64               `json:"totalCost"`
	Transcript   string                `json:"transcript,omitempty"`
}

// NewRecord builds an archive record from a session. The session may be
// incomplete; the record captures whatever state it reached.
func NewRecord(sess *debate.Session) *Record {
	rec := &Record{
		ID:           sess.ID,
		Topic:        sess.Topic,
		Mode:         sess.Mode,
		AutoMode:     sess.AutoMode,
		MaxRounds:    sess.MaxRounds,
		AutoFinish:   sess.AutoFinish,
		Completed:    sess.Status == debate.StatusCompleted,
		StartedAt:    sess.StartedAt,
		CompletedAt:  sess.CompletedAt,
		ArchivedAt:   time.Now(),
		Moderator:    archiveParticipant(sess.Moderator),
		Participants: make([]ArchivedParticipant, 0, len(sess.Participants)),
		Messages:     append([]debate.Message(nil), sess.Messages...),
		Rounds:       append([]debate.Round(nil), sess.Rounds...),
		Final:        finalStatus(sess),
		TotalTokens:  sess.TotalTokens,
		TotalCost:    sess.TotalCost,
	}
	for _, p := range sess.Participants {
		rec.Participants = append(rec.Participants, archiveParticipant(p))
	}
	rec.Transcript = BuildTranscript(rec)
	return rec
}

func archiveParticipant(p *debate.Participant) ArchivedParticipant {
	if p == nil {
		return ArchivedParticipant{}
	}
	return ArchivedParticipant{
		ID:           p.ID,
		Name:         p.Name,
		Role:         p.Role,
		ModelID:      p.ModelID,
		SystemPrompt: p.SystemPrompt,
		Disqualified: p.Disqualified,
	}
}

// finalStatus flattens all round decisions and takes progress, open
// questions, and conflicts from the last summarized round.
func finalStatus(sess *debate.Session) FinalStatus {
	var status FinalStatus
	for _, r := range sess.Rounds {
		if r.Summary == nil {
			continue
		}
		status.Decisions = append(status.Decisions, r.Summary.Decisions...)
		status.ProgressPercent = r.Summary.ProgressPercent
		status.OpenQuestions = r.Summary.OpenQuestions
		status.Conflicts = r.Summary.Conflicts
	}
	return status
}

// participantName resolves a message's author within the record.
func (r *Record) participantName(id string) string {
	if r.Moderator.ID == id {
		return r.Moderator.Name
	}
	for _, p := range r.Participants {
		if p.ID == id {
			return p.Name
		}
	}
	if id == debate.HumanParticipantID {
		return "Human"
	}
	return id
}
