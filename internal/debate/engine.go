package debate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tetra-labs/tetra/internal/errors"
	"github.com/tetra-labs/tetra/internal/event"
	"github.com/tetra-labs/tetra/internal/llm"
)

// busyState serializes all completion traffic for a session. Any
// scheduling trigger that fires while the state is not idle is rejected
// without side effects, which is what protects the append-only message
// log from concurrent writers.
type busyState int

const (
	busyIdle busyState = iota
	busyTurn
	busySummary
)

type turnKind int

const (
	turnSpeak turnKind = iota
	turnFinalize
	turnTerminate
)

// turnPlan is one scheduling decision: who speaks, on what instruction,
// and whether the session completes after the turn commits.
type turnPlan struct {
	kind        turnKind
	speaker     *Participant
	instruction string
	msgType     MessageType
	round       int
	conclude    bool
}

// Advance performs one scheduling tick: it picks the next speaker,
// executes their turn, and commits the result. At a round boundary the
// tick also materializes the Round record and generates its synopsis
// before the moderator's closing turn, so the moderator always receives
// a pre-computed summary and is never asked to summarize.
//
// Advance returns ErrTurnInFlight without side effects when a turn or
// summary is already running.
func (c *Controller) Advance(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()

	if c.sess.Status == StatusCompleted {
		defer c.mu.Unlock()
		return c.snapshotLocked(), errors.ErrSessionCompleted
	}
	if c.sess.Status != StatusRunning {
		defer c.mu.Unlock()
		return c.snapshotLocked(), errors.ErrSessionNotRunning
	}
	if c.busy != busyIdle {
		defer c.mu.Unlock()
		return c.snapshotLocked(), errors.ErrTurnInFlight
	}

	plan, err := c.planTurnLocked()
	if err != nil {
		defer c.mu.Unlock()
		return c.snapshotLocked(), err
	}

	switch plan.kind {
	case turnTerminate:
		defer c.mu.Unlock()
		err := c.completeLocked(ctx, "moderator signalled termination")
		return c.snapshotLocked(), err
	case turnFinalize:
		plan = c.finalizeRoundLocked(ctx)
	}

	return c.runTurn(ctx, plan)
}

// planTurnLocked decides the next scheduling step from the message log.
// Rotation order is the fixed participant order with disqualified
// entries skipped.
func (c *Controller) planTurnLocked() (turnPlan, error) {
	active := c.sess.ActiveParticipants()
	if len(active) == 0 {
		return turnPlan{}, errors.ErrNoActiveParticipants
	}

	last := c.sess.LastMessage()
	if last == nil {
		return turnPlan{
			kind:        turnSpeak,
			speaker:     c.sess.Moderator,
			instruction: instructionOpen,
			msgType:     TypeText,
			round:       c.sess.CurrentRound,
		}, nil
	}

	if last.Type == TypeIntervention {
		return turnPlan{
			kind:        turnSpeak,
			speaker:     c.sess.Moderator,
			instruction: instructionIntervention,
			msgType:     TypeText,
			round:       c.sess.CurrentRound,
		}, nil
	}

	if last.ParticipantID == c.sess.Moderator.ID {
		if ClassifyModeratorIntent(last.Content) == IntentTerminate &&
			len(c.sess.Rounds) >= c.cfg.MinRoundsBeforeTermination {
			return turnPlan{kind: turnTerminate}, nil
		}
		return turnPlan{
			kind:        turnSpeak,
			speaker:     active[0],
			instruction: instructionPropose,
			msgType:     TypeText,
			round:       c.sess.CurrentRound,
		}, nil
	}

	if next := c.nextAfterLocked(last.ParticipantID); next != nil {
		return turnPlan{
			kind:        turnSpeak,
			speaker:     next,
			instruction: instructionCritique,
			msgType:     TypeText,
			round:       c.sess.CurrentRound,
		}, nil
	}
	return turnPlan{kind: turnFinalize}, nil
}

// nextAfterLocked returns the next non-disqualified participant after
// the given one in fixed order, or nil when the round is over. An
// unknown last speaker restarts rotation from the top.
func (c *Controller) nextAfterLocked(lastID string) *Participant {
	idx := -1
	for i, p := range c.sess.Participants {
		if p.ID == lastID {
			idx = i
			break
		}
	}
	for i := idx + 1; i < len(c.sess.Participants); i++ {
		if !c.sess.Participants[i].Disqualified {
			return c.sess.Participants[i]
		}
	}
	return nil
}

// finalizeRoundLocked materializes the just-completed round, runs the
// summarizer for it, and plans the moderator's closing turn. The summary
// is generated synchronously: the moderator turn for round N+1 is never
// requested before round N's summary is attached.
func (c *Controller) finalizeRoundLocked(ctx context.Context) turnPlan {
	start := 0
	if n := len(c.sess.Rounds); n > 0 {
		start = c.sess.Rounds[n-1].EndIndex + 1
	}
	round := Round{
		Number:     c.sess.CurrentRound,
		StartIndex: start,
		EndIndex:   len(c.sess.Messages) - 1,
		Complete:   true,
	}
	c.sess.Rounds = append(c.sess.Rounds, round)
	c.log.Info("round complete",
		"session_id", c.sess.ID, "round", round.Number,
		"messages", round.EndIndex-round.StartIndex+1)

	c.busy = busySummary
	c.mu.Unlock()
	summary := c.summarizer.Summarize(ctx, c.sess, round)
	c.mu.Lock()
	c.busy = busyIdle

	if summary != nil {
		c.sess.Rounds[len(c.sess.Rounds)-1].Summary = summary
	}

	if !c.sess.AutoFinish && c.sess.CurrentRound >= c.sess.MaxRounds {
		return turnPlan{
			kind:        turnSpeak,
			speaker:     c.sess.Moderator,
			instruction: instructionConclude,
			msgType:     TypeSummaryDirective,
			round:       c.sess.CurrentRound,
			conclude:    true,
		}
	}

	c.sess.CurrentRound++
	return turnPlan{
		kind:        turnSpeak,
		speaker:     c.sess.Moderator,
		instruction: instructionRoundClose,
		msgType:     TypeSummaryDirective,
		round:       c.sess.CurrentRound,
	}
}

// runTurn executes a planned turn. The lock is held on entry and
// released before the network call; the result is committed under the
// lock again. Returns with the lock released.
func (c *Controller) runTurn(ctx context.Context, plan turnPlan) (Snapshot, error) {
	speaker := plan.speaker
	req := buildTurnRequest(c.sess, speaker, plan.instruction, c.cfg.HistoryWindow)
	prior := c.priorContentsLocked(speaker.ID)

	c.busy = busyTurn
	c.sess.InFlightParticipantID = speaker.ID
	c.mu.Unlock()

	c.bus.Publish(event.NewTurnStartedEvent(c.sess.ID, speaker.ID, plan.round))
	msg, err := c.executeTurn(ctx, speaker, plan, req, prior)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = busyIdle
	c.sess.InFlightParticipantID = ""

	if err != nil {
		c.failTurnLocked(speaker, plan, err)
		return c.snapshotLocked(), err
	}

	c.commitTurnLocked(msg, speaker)
	c.failed = nil
	c.lastErr = nil

	if plan.conclude && c.sess.Status == StatusRunning {
		if err := c.completeLocked(ctx, "round limit reached"); err != nil {
			return c.snapshotLocked(), err
		}
	}
	return c.snapshotLocked(), nil
}

// executeTurn drives the completion request for one turn, including the
// under-length retry loop. Transport-level retries already happened
// inside the completion client; only short replies are retried here, on
// the same instruction, with increasing delay. No message is produced
// for a failed attempt.
func (c *Controller) executeTurn(ctx context.Context, speaker *Participant, plan turnPlan, req llm.Request, prior []string) (Message, error) {
	maxAttempts := c.cfg.EmptyResponseMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	log := c.log.WithSession(c.sess.ID).WithParticipant(speaker.ID).WithModel(speaker.ModelID)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := c.now()
		res, err := c.completer.Complete(ctx, req)
		latency := c.now().Sub(start)
		if err != nil {
			return Message{}, err
		}

		text := strings.TrimSpace(res.Text)
		if len(text) < c.cfg.MinResponseLength {
			log.Warn("reply under length threshold",
				"attempt", attempt, "max_attempts", maxAttempts, "length", len(text))
			if attempt < maxAttempts {
				if err := c.sleep(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
					return Message{}, errors.Join(errors.ErrCanceled, err)
				}
				continue
			}
			return Message{}, fmt.Errorf("%s produced no usable reply after %d attempts: %w",
				speaker.Name, maxAttempts, errors.ErrEmptyResponse)
		}

		if IsRepetitive(text, prior, c.cfg.SimilarityThreshold) {
			return Message{}, fmt.Errorf("%s is repeating itself: %w",
				speaker.Name, errors.ErrLoopDetected)
		}

		return Message{
			ID:            uuid.NewString(),
			ParticipantID: speaker.ID,
			Content:       text,
			Round:         plan.round,
			Timestamp:     c.now(),
			Type:          plan.msgType,
			Tokens:        res.Usage.TotalTokens,
			Cost:          res.Cost,
			Latency:       latency,
			ModelID:       speaker.ModelID,
		}, nil
	}
	return Message{}, errors.ErrEmptyResponse
}

// priorContentsLocked collects the speaker's most recent accepted
// messages for the similarity guard.
func (c *Controller) priorContentsLocked(participantID string) []string {
	var prior []string
	for _, m := range c.sess.Messages {
		if m.ParticipantID == participantID && m.Type != TypeIntervention {
			prior = append(prior, m.Content)
		}
	}
	if len(prior) > similarityWindow {
		prior = prior[len(prior)-similarityWindow:]
	}
	return prior
}

// commitTurnLocked appends the message, updates the session counters,
// and reacts to moderator control signals.
func (c *Controller) commitTurnLocked(msg Message, speaker *Participant) {
	c.sess.Messages = append(c.sess.Messages, msg)
	c.sess.TotalTokens += msg.Tokens
	c.sess.TotalCost += msg.Cost

	c.bus.Publish(event.NewTurnCompletedEvent(
		c.sess.ID, speaker.ID, msg.ID, msg.Round, msg.Tokens, msg.Cost))
	c.log.Info("turn committed",
		"session_id", c.sess.ID, "participant_id", speaker.ID,
		"round", msg.Round, "tokens", msg.Tokens, "latency", msg.Latency)

	if speaker.Role != RoleModerator {
		return
	}
	if ClassifyModeratorIntent(msg.Content) == IntentRatification {
		c.pending = &Decision{
			Kind:          DecisionRatification,
			ParticipantID: speaker.ID,
			Round:         c.sess.CurrentRound,
		}
		if c.sess.AutoMode == AutoFull {
			c.sess.AutoMode = AutoSemi
		}
		c.sess.Status = StatusPaused
		c.bus.Publish(event.NewRatificationRequestedEvent(c.sess.ID, c.sess.CurrentRound))
		c.bus.Publish(event.NewSessionPausedEvent(c.sess.ID, "ratification requested"))
	}
}

// failTurnLocked pauses the session with the failure attached. An
// exhausted empty-response loop additionally raises the three-way
// disqualification decision; no message is ever appended for a failed
// turn.
func (c *Controller) failTurnLocked(speaker *Participant, plan turnPlan, err error) {
	c.lastErr = err
	c.sess.Status = StatusPaused

	if errors.Is(err, errors.ErrEmptyResponse) {
		c.pending = &Decision{
			Kind:          DecisionDisqualification,
			ParticipantID: speaker.ID,
			Attempts:      c.cfg.EmptyResponseMaxAttempts,
			Round:         plan.round,
			Reason:        err.Error(),
		}
		c.failed = &failedTurn{plan: plan}
		c.bus.Publish(event.NewDecisionRequiredEvent(
			c.sess.ID, speaker.ID, c.cfg.EmptyResponseMaxAttempts))
	}

	c.log.Error("turn failed",
		"session_id", c.sess.ID, "participant_id", speaker.ID,
		"round", plan.round, "error", err)
	if hint := errors.RemediationHint(err); hint != "" {
		c.log.Info("remediation", "hint", hint)
	}
	c.bus.Publish(event.NewSessionPausedEvent(c.sess.ID, err.Error()))
}

// completeLocked terminally completes the session and persists the
// archive.
func (c *Controller) completeLocked(ctx context.Context, reason string) error {
	c.sess.Status = StatusCompleted
	c.sess.CompletedAt = c.now()
	c.bus.Publish(event.NewSessionCompletedEvent(c.sess.ID, len(c.sess.Rounds), reason))
	c.log.Info("session completed",
		"session_id", c.sess.ID, "rounds", len(c.sess.Rounds),
		"reason", reason, "total_cost", c.sess.TotalCost)
	return c.archiveLocked(ctx, false)
}

// archiveLocked persists the session record. Partial archives carry the
// not-yet-completed state so an interrupted session still round-trips.
func (c *Controller) archiveLocked(ctx context.Context, partial bool) error {
	if c.archiver == nil || len(c.sess.Messages) == 0 {
		return nil
	}
	path, err := c.archiver.Save(ctx, c.sess)
	if err != nil {
		c.log.Error("archive failed", "session_id", c.sess.ID, "error", err)
		return errors.NewArchiveError("persist session record", err).WithPath(path)
	}
	c.bus.Publish(event.NewSessionArchivedEvent(c.sess.ID, path, partial))
	c.log.Info("session archived",
		"session_id", c.sess.ID, "path", path, "partial", partial)
	return nil
}
