package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tetra-labs/tetra/internal/event"
	"github.com/tetra-labs/tetra/internal/llm"
	"github.com/tetra-labs/tetra/internal/logging"
)

const summaryTemperature = 0.3

const summaryPrompt = `You are an impartial analyst. You will receive the transcript of one
round of a multi-party discussion. Reply with a single JSON object and
nothing else, using exactly this shape:

{
  "outputs": ["concrete outcome of the round"],
  "highlights": [{"speaker": "name", "contribution": "their notable contribution"}],
  "decisions": ["decision reached"],
  "openQuestions": ["question still unresolved"],
  "conflicts": ["point of disagreement"],
  "progressPercent": 0,
  "nextDirective": "one concrete directive for the next round"
}

progressPercent is your 0-100 estimate of how close the discussion is to
a final resolution. Keep every list short and concrete. Do not wrap the
JSON in markdown fences or add commentary.`

// Summarizer produces the structured synopsis of a completed round with
// one extra completion request on the moderator's model.
type Summarizer struct {
	completer llm.Completer
	bus       *event.Bus
	log       *logging.Logger
}

// NewSummarizer wires a summarizer. bus and log may be nil.
func NewSummarizer(completer llm.Completer, bus *event.Bus, log *logging.Logger) *Summarizer {
	if bus == nil {
		bus = event.NewBus()
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Summarizer{completer: completer, bus: bus, log: log}
}

// Summarize generates the synopsis for one completed round. A failed or
// unparseable reply degrades to nil rather than an error: the next
// moderator turn simply proceeds without injected memory.
func (s *Summarizer) Summarize(ctx context.Context, sess *Session, round Round) *RoundSummary {
	transcript := renderRoundTranscript(sess, round)
	if transcript == "" {
		return nil
	}

	req := llm.Request{
		Model:        sess.Moderator.ModelID,
		SystemPrompt: summaryPrompt,
		History: []llm.ChatMessage{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Round %d transcript:\n\n%s", round.Number, transcript),
		}},
		ContextWindow: sess.Moderator.ContextWindow,
		Temperature:   summaryTemperature,
	}

	res, err := s.completer.Complete(ctx, req)
	if err != nil {
		s.log.Warn("round summary request failed",
			"session_id", sess.ID, "round", round.Number, "error", err)
		s.bus.Publish(event.NewRoundSummarizedEvent(sess.ID, round.Number, false))
		return nil
	}

	summary := parseSummary(res.Text)
	if summary == nil {
		s.log.Warn("round summary reply not parseable",
			"session_id", sess.ID, "round", round.Number)
		s.bus.Publish(event.NewRoundSummarizedEvent(sess.ID, round.Number, false))
		return nil
	}

	s.bus.Publish(event.NewRoundSummarizedEvent(sess.ID, round.Number, true))
	return summary
}

// renderRoundTranscript formats the round's messages as attributed lines
// for the summary request. Interventions are included since they shape
// the round.
func renderRoundTranscript(sess *Session, round Round) string {
	if round.StartIndex < 0 || round.EndIndex >= len(sess.Messages) || round.StartIndex > round.EndIndex {
		return ""
	}
	var b strings.Builder
	for _, msg := range sess.Messages[round.StartIndex : round.EndIndex+1] {
		name := msg.ParticipantID
		role := RoleHuman
		if p := sess.ParticipantByID(msg.ParticipantID); p != nil {
			name = p.Name
			role = p.Role
		}
		fmt.Fprintf(&b, "[%s (%s)]: %s\n\n", name, role, msg.Content)
	}
	return strings.TrimSpace(b.String())
}

// parseSummary extracts the first well-formed JSON object from the reply
// and decodes it. Anything after the object is ignored; no object means
// nil.
func parseSummary(text string) *RoundSummary {
	raw := firstJSONObject(text)
	if raw == "" {
		return nil
	}

	var wire struct {
		Outputs         []string           `json:"outputs"`
		Highlights      []SpeakerHighlight `json:"highlights"`
		Decisions       []string           `json:"decisions"`
		OpenQuestions   []string           `json:"openQuestions"`
		Conflicts       []string           `json:"conflicts"`
		ProgressPercent int                `json:"progressPercent"`
		NextDirective   string             `json:"nextDirective"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil
	}

	return &RoundSummary{
		Outputs:         wire.Outputs,
		Highlights:      wire.Highlights,
		Decisions:       wire.Decisions,
		OpenQuestions:   wire.OpenQuestions,
		Conflicts:       wire.Conflicts,
		ProgressPercent: clampPercent(wire.ProgressPercent),
		NextDirective:   wire.NextDirective,
		GeneratedAt:     time.Now(),
	}
}

// firstJSONObject scans for the first balanced brace block, respecting
// string literals and escapes.
func firstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
