package archive

import (
	"fmt"
	"strings"

	"github.com/tetra-labs/tetra/internal/debate"
)

const transcriptRule = "======================================================================"
const transcriptThinRule = "----------------------------------------------------------------------"

// BuildTranscript renders a record as a plain-text document: a header
// with the session facts, every message in order with its metadata,
// one report block per summarized round, and a closing status section.
// Control markers are stripped from message bodies.
func BuildTranscript(rec *Record) string {
	var b strings.Builder

	b.WriteString(transcriptRule + "\n")
	fmt.Fprintf(&b, "SESSION: %s\n", rec.Topic)
	fmt.Fprintf(&b, "Mode: %s | Rounds: %d | Started: %s\n",
		rec.Mode, len(rec.Rounds), rec.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Tokens: %d | Cost: $%.4f | Completed: %t\n",
		rec.TotalTokens, rec.TotalCost, rec.Completed)
	fmt.Fprintf(&b, "Moderator: %s (%s)\n", rec.Moderator.Name, rec.Moderator.ModelID)
	for _, p := range rec.Participants {
		status := ""
		if p.Disqualified {
			status = " [disqualified]"
		}
		fmt.Fprintf(&b, "Participant: %s (%s)%s\n", p.Name, p.ModelID, status)
	}
	b.WriteString(transcriptRule + "\n")

	reported := make(map[int]bool)
	for _, msg := range rec.Messages {
		b.WriteString("\n")
		writeMessage(&b, rec, msg)

		// The round report goes right after the round's last message.
		for _, round := range rec.Rounds {
			if round.Summary != nil && !reported[round.Number] && isRoundEnd(rec, round, msg) {
				reported[round.Number] = true
				b.WriteString("\n")
				writeRoundReport(&b, round)
			}
		}
	}

	b.WriteString("\n" + transcriptRule + "\n")
	b.WriteString("FINAL STATUS\n")
	fmt.Fprintf(&b, "Progress: %s\n", progressBar(rec.Final.ProgressPercent))
	writeList(&b, "Decisions", rec.Final.Decisions)
	writeList(&b, "Open questions", rec.Final.OpenQuestions)
	writeList(&b, "Unresolved conflicts", rec.Final.Conflicts)
	b.WriteString(transcriptRule + "\n")

	return b.String()
}

func writeMessage(b *strings.Builder, rec *Record, msg debate.Message) {
	name := rec.participantName(msg.ParticipantID)
	label := string(msg.Type)
	fmt.Fprintf(b, "[Round %d | %s | %s]", msg.Round, name, label)
	if msg.Tokens > 0 {
		fmt.Fprintf(b, " (%d tokens, %.1fs, $%.4f)",
			msg.Tokens, msg.Latency.Seconds(), msg.Cost)
	}
	b.WriteString("\n")
	b.WriteString(debate.StripControlMarkers(msg.Content))
	b.WriteString("\n")
}

func isRoundEnd(rec *Record, round debate.Round, msg debate.Message) bool {
	if round.EndIndex < 0 || round.EndIndex >= len(rec.Messages) {
		return false
	}
	return rec.Messages[round.EndIndex].ID == msg.ID
}

func writeRoundReport(b *strings.Builder, round debate.Round) {
	s := round.Summary
	b.WriteString(transcriptThinRule + "\n")
	fmt.Fprintf(b, "ROUND %d REPORT\n", round.Number)
	fmt.Fprintf(b, "Progress: %s\n", progressBar(s.ProgressPercent))
	writeList(b, "Outcomes", s.Outputs)
	if len(s.Highlights) > 0 {
		b.WriteString("Highlights:\n")
		for _, h := range s.Highlights {
			fmt.Fprintf(b, "  - %s: %s\n", h.Speaker, h.Contribution)
		}
	}
	writeList(b, "Decisions", s.Decisions)
	writeList(b, "Conflicts", s.Conflicts)
	writeList(b, "Open questions", s.OpenQuestions)
	if s.NextDirective != "" {
		fmt.Fprintf(b, "Next round directive: %s\n", s.NextDirective)
	}
	b.WriteString(transcriptThinRule + "\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

// progressBar renders a ten-segment bar like "[#####-----] 50%".
func progressBar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent / 10
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("#", filled), strings.Repeat("-", 10-filled), percent)
}
