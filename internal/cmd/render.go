package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/tetra-labs/tetra/internal/debate"
	"github.com/tetra-labs/tetra/internal/event"
)

var (
	styleModerator = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	styleSpeaker   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	styleHuman     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleMeta      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleWarn      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleRule      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printer renders session progress to the terminal. It subscribes to the
// event bus for telemetry and pulls message content from controller
// snapshots, so it never holds the engine lock during I/O.
type printer struct {
	ctrl *debate.Controller
	out  io.Writer

	mu          sync.Mutex
	rendered    int // messages already printed
	lastArchive string
}

func newPrinter(ctrl *debate.Controller, out io.Writer) *printer {
	return &printer{ctrl: ctrl, out: out}
}

// subscribe registers the printer's event handlers on the bus. Handlers
// run synchronously on the publishing goroutine and never call back into
// the controller.
func (p *printer) subscribe(bus *event.Bus) {
	bus.Subscribe("round.summarized", func(e event.Event) {
		ev := e.(event.RoundSummarizedEvent)
		if ev.Success {
			p.meta(fmt.Sprintf("round %d summarized", ev.Round))
		} else {
			p.warn(fmt.Sprintf("round %d summary unavailable, continuing without it", ev.Round))
		}
	})
	bus.Subscribe("session.paused", func(e event.Event) {
		ev := e.(event.SessionPausedEvent)
		p.warn("session paused: " + ev.Reason)
	})
	bus.Subscribe("session.completed", func(e event.Event) {
		ev := e.(event.SessionCompletedEvent)
		p.meta(fmt.Sprintf("session completed after %d round(s): %s", ev.Rounds, ev.Reason))
	})
	bus.Subscribe("session.archived", func(e event.Event) {
		ev := e.(event.SessionArchivedEvent)
		p.mu.Lock()
		p.lastArchive = ev.Path
		p.mu.Unlock()
		label := "archived"
		if ev.Partial {
			label = "partial archive saved"
		}
		p.meta(label + ": " + ev.Path)
	})
	bus.Subscribe("completion.attempt", func(e event.Event) {
		ev := e.(event.CompletionAttemptEvent)
		if ev.Attempt > 1 {
			p.warn(fmt.Sprintf("%s: retry %d/%d (%s)", ev.Model, ev.Attempt, ev.MaxAttempts, ev.Reason))
		}
	})
	bus.Subscribe("completion.fallback_started", func(e event.Event) {
		ev := e.(event.FallbackStartedEvent)
		p.warn(ev.Model + ": cache-hinted request rejected, retrying in plain format")
	})
}

// archivePath returns the most recent archive location, or empty.
func (p *printer) archivePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastArchive
}

// flush prints every message that has not been rendered yet. Called from
// the command loop after each engine operation, so interventions and
// moderator directives appear in log order.
func (p *printer) flush() {
	snap := p.ctrl.Snapshot()

	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.rendered < len(snap.Session.Messages); p.rendered++ {
		p.message(&snap.Session, snap.Session.Messages[p.rendered])
	}
}

func (p *printer) message(sess *debate.Session, msg debate.Message) {
	name, style := speakerLabel(sess, msg.ParticipantID)

	header := fmt.Sprintf("round %d · %s", msg.Round, style.Render(name))
	if msg.ModelID != "" {
		header += styleMeta.Render(" (" + msg.ModelID + ")")
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, styleRule.Render(strings.Repeat("─", 60)))
	fmt.Fprintln(p.out, header)
	fmt.Fprintln(p.out, msg.Content)
	if msg.Tokens > 0 {
		fmt.Fprintln(p.out, styleMeta.Render(fmt.Sprintf("%s · %s · %.1fs",
			formatTokens(msg.Tokens), formatCost(msg.Cost), msg.Latency.Seconds())))
	}
}

func (p *printer) meta(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, styleMeta.Render("· "+s))
}

func (p *printer) warn(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, styleWarn.Render("! "+s))
}

func (p *printer) fail(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, styleError.Render("✗ "+s))
}

// status prints the session's current state and roster.
func (p *printer) status(snap debate.Snapshot) {
	sess := &snap.Session

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "Topic:   %s\n", sess.Topic)
	fmt.Fprintf(p.out, "Status:  %s (%s mode, auto: %s)\n", sess.Status, sess.Mode, sess.AutoMode)
	limit := fmt.Sprintf("%d", sess.MaxRounds)
	if sess.AutoFinish {
		limit = "open-ended"
	}
	fmt.Fprintf(p.out, "Round:   %d of %s\n", sess.CurrentRound, limit)
	fmt.Fprintf(p.out, "Usage:   %s · %s\n", formatTokens(sess.TotalTokens), formatCost(sess.TotalCost))

	fmt.Fprintf(p.out, "Roster:  %s (moderator, %s)\n", sess.Moderator.Name, sess.Moderator.ModelID)
	for _, part := range sess.Participants {
		mark := ""
		if part.Disqualified {
			mark = styleError.Render(" [disqualified]")
		}
		fmt.Fprintf(p.out, "         %s (%s)%s\n", part.Name, part.ModelID, mark)
	}
	if snap.Decision != nil {
		fmt.Fprintf(p.out, "Pending: %s decision\n", snap.Decision.Kind)
	}
	fmt.Fprintln(p.out)
}

// speakerLabel resolves a participant ID to a display name and the style
// for its role.
func speakerLabel(sess *debate.Session, participantID string) (string, lipgloss.Style) {
	if participantID == debate.HumanParticipantID {
		return "Human", styleHuman
	}
	part := sess.ParticipantByID(participantID)
	if part == nil {
		return participantID, styleMeta
	}
	if part.Role == debate.RoleModerator {
		return part.Name, styleModerator
	}
	return part.Name, styleSpeaker
}

func formatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM tokens", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK tokens", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d tokens", n)
	}
}

func formatCost(cost float64) string {
	if cost >= 0.01 {
		return fmt.Sprintf("$%.2f", cost)
	}
	return fmt.Sprintf("$%.4f", cost)
}
