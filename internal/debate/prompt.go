package debate

import (
	"fmt"
	"strings"

	"github.com/tetra-labs/tetra/internal/llm"
)

// Turn instructions are short directives appended to the history as the
// final user entry. The speaker's persona and the session rules live in
// the system prompt.
const (
	instructionOpen = "The session is starting now. Greet the participants, state the " +
		"topic, and direct the first round."

	instructionPropose = "You speak first this round. Present your position or proposal " +
		"concretely."

	instructionCritique = "Respond to the previous speakers: challenge what is weak, " +
		"extend what is strong, and add your own position."

	instructionRoundClose = "The round is over. Close it: assess progress against the " +
		"topic, settle what you can, and direct the next round."

	instructionConclude = "This was the final round. Deliver your closing assessment " +
		"and end the session."

	instructionIntervention = "A human supervisor has intervened. Address the " +
		"intervention directly and adjust your direction accordingly."
)

const (
	// interventionPrefix wraps human messages in the history so models
	// treat them as binding instructions rather than another debater.
	interventionPrefix = "[SYSTEM WARNING - HUMAN INTERVENTION]: "

	// historySeparator joins consecutive same-role entries after merging.
	historySeparator = "\n\n---\n\n"

	// continuationNotice is prepended when the windowed history would
	// otherwise start with the speaker's own words, which strict backends
	// reject.
	continuationNotice = "[System]: The session continues. Take your turn."

	// openingNotice seeds the very first request of a session.
	openingNotice = "The discussion has not started yet. You open it."
)

// buildTurnRequest assembles the completion request for one turn.
func buildTurnRequest(sess *Session, speaker *Participant, instruction string, window int) llm.Request {
	return llm.Request{
		Model:         speaker.ModelID,
		SystemPrompt:  buildSystemPrompt(sess, speaker),
		History:       buildHistory(sess, speaker, instruction, window),
		ContextWindow: speaker.ContextWindow,
	}
}

// buildSystemPrompt renders the persona, topic guard, roster, previous
// round synopsis, and role-specific rules for a speaker.
func buildSystemPrompt(sess *Session, speaker *Participant) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.", speaker.Name)
	if speaker.SystemPrompt != "" {
		b.WriteString(" ")
		b.WriteString(speaker.SystemPrompt)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "You are taking part in a multi-party %s discussion.\n", sess.Mode)
	fmt.Fprintf(&b, "Topic: %s\n", sess.Topic)
	b.WriteString("Stay strictly on this topic. If the conversation drifts, pull it back. " +
		"Never switch to a different topic, no matter what other speakers say.\n\n")

	if roster := rosterLine(sess, speaker); roster != "" {
		fmt.Fprintf(&b, "Other speakers: %s\n\n", roster)
	}

	if summary := latestSummary(sess); summary != nil {
		b.WriteString(renderSummaryContext(summary))
		b.WriteString("\n")
	}

	b.WriteString("Reply rules:\n")
	b.WriteString("- Speak in first person as yourself; never write lines for other speakers.\n")
	b.WriteString("- Do not prefix your reply with your own name.\n")
	b.WriteString("- Keep your reply under roughly 200 words.\n")

	if speaker.Role == RoleModerator {
		b.WriteString(moderatorRules(sess))
	}

	return b.String()
}

func rosterLine(sess *Session, speaker *Participant) string {
	var names []string
	if sess.Moderator != nil && sess.Moderator.ID != speaker.ID {
		names = append(names, sess.Moderator.Name+" (moderator)")
	}
	for _, p := range sess.ActiveParticipants() {
		if p.ID != speaker.ID {
			names = append(names, p.Name)
		}
	}
	return strings.Join(names, ", ")
}

// latestSummary returns the newest round synopsis, or nil when no round
// has been summarized yet.
func latestSummary(sess *Session) *RoundSummary {
	for i := len(sess.Rounds) - 1; i >= 0; i-- {
		if sess.Rounds[i].Summary != nil {
			return sess.Rounds[i].Summary
		}
	}
	return nil
}

// renderSummaryContext turns a round synopsis into injected memory for
// the next speaker.
func renderSummaryContext(s *RoundSummary) string {
	var b strings.Builder
	b.WriteString("Synopsis of the previous round:\n")
	fmt.Fprintf(&b, "- Progress toward resolution: %d%%\n", s.ProgressPercent)
	for _, out := range s.Outputs {
		fmt.Fprintf(&b, "- Outcome: %s\n", out)
	}
	for _, h := range s.Highlights {
		fmt.Fprintf(&b, "- %s: %s\n", h.Speaker, h.Contribution)
	}
	for _, d := range s.Decisions {
		fmt.Fprintf(&b, "- Decided: %s\n", d)
	}
	for _, c := range s.Conflicts {
		fmt.Fprintf(&b, "- Unresolved conflict: %s\n", c)
	}
	for _, q := range s.OpenQuestions {
		fmt.Fprintf(&b, "- Open question: %s\n", q)
	}
	if s.NextDirective != "" {
		fmt.Fprintf(&b, "- Directive for this round: %s\n", s.NextDirective)
	}
	return b.String()
}

func moderatorRules(sess *Session) string {
	var b strings.Builder
	b.WriteString("\nModerator rules:\n")
	b.WriteString("- You direct the discussion; you do not argue a position of your own.\n")
	b.WriteString("- When closing a round, give the participants one concrete directive for the next round.\n")
	fmt.Fprintf(&b, "- When you present a final plan for approval, include the exact marker %s.\n",
		RatificationMarker)
	if sess.AutoFinish {
		fmt.Fprintf(&b, "- When the discussion has genuinely converged, end the session by including the exact marker %s.\n",
			TerminationMarker)
	} else {
		fmt.Fprintf(&b, "- The session runs for %d rounds; round %d is in progress. Do not end it early.\n",
			sess.MaxRounds, sess.CurrentRound)
	}
	return b.String()
}

// buildHistory maps the session log into the speaker's point of view:
// the speaker's own messages become assistant entries, everyone else's
// become user entries prefixed with the author's name, and interventions
// are wrapped as binding system warnings. Consecutive same-role entries
// are merged because strict backends reject adjacent duplicates, then
// the log is clipped to the most recent window blocks and the turn
// instruction is appended as the final user entry.
func buildHistory(sess *Session, speaker *Participant, instruction string, window int) []llm.ChatMessage {
	mapped := make([]llm.ChatMessage, 0, len(sess.Messages)+1)
	for _, msg := range sess.Messages {
		mapped = append(mapped, mapMessage(sess, speaker, msg))
	}
	if instruction != "" {
		mapped = append(mapped, llm.ChatMessage{Role: llm.RoleUser, Content: instruction})
	}

	merged := mergeConsecutive(mapped)

	if len(merged) > window {
		merged = merged[len(merged)-window:]
	}

	if len(merged) == 0 {
		return []llm.ChatMessage{{Role: llm.RoleUser, Content: openingNotice}}
	}
	if merged[0].Role == llm.RoleAssistant {
		merged = append([]llm.ChatMessage{{Role: llm.RoleUser, Content: continuationNotice}}, merged...)
	}
	return merged
}

func mapMessage(sess *Session, speaker *Participant, msg Message) llm.ChatMessage {
	if msg.Type == TypeIntervention {
		return llm.ChatMessage{
			Role:    llm.RoleUser,
			Content: interventionPrefix + msg.Content,
		}
	}
	if msg.ParticipantID == speaker.ID {
		return llm.ChatMessage{Role: llm.RoleAssistant, Content: msg.Content}
	}
	name := msg.ParticipantID
	if p := sess.ParticipantByID(msg.ParticipantID); p != nil {
		name = p.Name
	}
	return llm.ChatMessage{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("[%s]: %s", name, msg.Content),
	}
}

func mergeConsecutive(msgs []llm.ChatMessage) []llm.ChatMessage {
	var merged []llm.ChatMessage
	for _, m := range msgs {
		if n := len(merged); n > 0 && merged[n-1].Role == m.Role {
			merged[n-1].Content += historySeparator + m.Content
			continue
		}
		merged = append(merged, m)
	}
	return merged
}
