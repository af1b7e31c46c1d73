package debate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tetra-labs/tetra/internal/config"
	"github.com/tetra-labs/tetra/internal/errors"
	"github.com/tetra-labs/tetra/internal/event"
	"github.com/tetra-labs/tetra/internal/llm"
	"github.com/tetra-labs/tetra/internal/logging"
	"github.com/tetra-labs/tetra/internal/retry"
)

// Archiver persists a finished or interrupted session record. The
// production implementation lives in the archive package.
type Archiver interface {
	Save(ctx context.Context, sess *Session) (path string, err error)
}

// failedTurn remembers the last failed scheduling step so a
// disqualification decision can retry it on the identical instruction.
type failedTurn struct {
	plan turnPlan
}

// ControllerOptions configures a new session controller.
type ControllerOptions struct {
	Topic        string
	Mode         Mode
	Moderator    *Participant
	Participants []*Participant
	AutoMode     AutoMode
	// MaxRounds overrides the configured round limit when positive.
	MaxRounds int
	// AutoFinish lets the session run past the round limit until the
	// moderator signals termination.
	AutoFinish bool

	Completer llm.Completer
	Archiver  Archiver
	Bus       *event.Bus
	Logger    *logging.Logger
	// Config supplies the scheduling knobs. Nil means defaults.
	Config *config.DebateConfig
}

// Controller owns one session: its status, auto-play mode, pending
// decision points, and archival. All completion traffic for the session
// flows through it, one request at a time.
type Controller struct {
	mu      sync.Mutex
	busy    busyState
	sess    *Session
	cfg     config.DebateConfig
	failed  *failedTurn
	pending *Decision
	lastErr error

	completer  llm.Completer
	summarizer *Summarizer
	archiver   Archiver
	bus        *event.Bus
	log        *logging.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewController validates the roster and builds a session in setup
// state.
func NewController(opts ControllerOptions) (*Controller, error) {
	if strings.TrimSpace(opts.Topic) == "" {
		return nil, fmt.Errorf("topic is required: %w", errors.ErrInvalidInput)
	}
	if opts.Moderator == nil || opts.Moderator.ModelID == "" {
		return nil, fmt.Errorf("moderator with a model is required: %w", errors.ErrInvalidInput)
	}
	if len(opts.Participants) == 0 {
		return nil, fmt.Errorf("at least one participant is required: %w", errors.ErrInvalidInput)
	}
	for _, p := range opts.Participants {
		if p.ModelID == "" {
			return nil, fmt.Errorf("participant %q has no model: %w", p.Name, errors.ErrInvalidInput)
		}
	}
	if opts.Completer == nil {
		return nil, fmt.Errorf("completer is required: %w", errors.ErrInvalidInput)
	}

	cfg := config.Default().Debate
	if opts.Config != nil {
		cfg = *opts.Config
	}

	mode := opts.Mode
	if mode == "" {
		mode = ModeCollaborative
	}
	autoMode := opts.AutoMode
	if autoMode == "" {
		autoMode = AutoMode(cfg.AutoMode)
	}
	if autoMode == "" {
		autoMode = AutoManual
	}
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = cfg.MaxRounds
	}

	opts.Moderator.Role = RoleModerator
	ensureParticipantID(opts.Moderator)
	for _, p := range opts.Participants {
		if p.Role == "" {
			p.Role = RoleParticipant
		}
		ensureParticipantID(p)
	}

	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus()
	}
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}

	sess := &Session{
		ID:           uuid.NewString(),
		Topic:        opts.Topic,
		Mode:         mode,
		Moderator:    opts.Moderator,
		Participants: opts.Participants,
		Status:       StatusSetup,
		AutoMode:     autoMode,
		CurrentRound: 1,
		MaxRounds:    maxRounds,
		AutoFinish:   opts.AutoFinish,
	}

	return &Controller{
		sess:       sess,
		cfg:        cfg,
		completer:  opts.Completer,
		summarizer: NewSummarizer(opts.Completer, bus, log),
		archiver:   opts.Archiver,
		bus:        bus,
		log:        log,
		now:        time.Now,
		sleep:      retry.Sleep,
	}, nil
}

func ensureParticipantID(p *Participant) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
}

// Start transitions the session from setup to running.
func (c *Controller) Start(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Status != StatusSetup {
		return c.snapshotLocked(), fmt.Errorf("session already started: %w", errors.ErrInvalidInput)
	}
	c.sess.Status = StatusRunning
	c.sess.StartedAt = c.now()
	c.log.Info("session started",
		"session_id", c.sess.ID, "topic", c.sess.Topic,
		"participants", len(c.sess.Participants), "auto_mode", c.sess.AutoMode)
	return c.snapshotLocked(), nil
}

// Pause suspends scheduling. A turn already in flight is not
// interrupted; its result still commits.
func (c *Controller) Pause() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Status != StatusRunning {
		return c.snapshotLocked(), errors.ErrSessionNotRunning
	}
	c.pauseLocked("paused by caller")
	return c.snapshotLocked(), nil
}

func (c *Controller) pauseLocked(reason string) {
	c.sess.Status = StatusPaused
	c.bus.Publish(event.NewSessionPausedEvent(c.sess.ID, reason))
	c.log.Info("session paused", "session_id", c.sess.ID, "reason", reason)
}

// Resume returns a paused session to running. A pending decision must
// be resolved first.
func (c *Controller) Resume() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Status == StatusCompleted {
		return c.snapshotLocked(), errors.ErrSessionCompleted
	}
	if c.sess.Status != StatusPaused {
		return c.snapshotLocked(), errors.ErrSessionNotRunning
	}
	if c.pending != nil {
		return c.snapshotLocked(), fmt.Errorf("resolve the pending %s decision first: %w",
			c.pending.Kind, errors.ErrInvalidInput)
	}
	c.sess.Status = StatusRunning
	c.log.Info("session resumed", "session_id", c.sess.ID)
	return c.snapshotLocked(), nil
}

// Inject appends an out-of-band human instruction to the log. The
// moderator's next turn is directed to account for it.
func (c *Controller) Inject(text string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return c.snapshotLocked(), fmt.Errorf("intervention text is empty: %w", errors.ErrInvalidInput)
	}
	if c.sess.Status == StatusCompleted {
		return c.snapshotLocked(), errors.ErrSessionCompleted
	}
	if c.sess.Status == StatusSetup {
		return c.snapshotLocked(), errors.ErrSessionNotRunning
	}
	if c.busy != busyIdle {
		return c.snapshotLocked(), errors.ErrTurnInFlight
	}

	c.sess.Messages = append(c.sess.Messages, Message{
		ID:            uuid.NewString(),
		ParticipantID: HumanParticipantID,
		Content:       strings.TrimSpace(text),
		Round:         c.sess.CurrentRound,
		Timestamp:     c.now(),
		Type:          TypeIntervention,
	})
	c.log.Info("intervention injected", "session_id", c.sess.ID, "round", c.sess.CurrentRound)
	return c.snapshotLocked(), nil
}

// ResolveDisqualification answers the decision raised after a
// participant exhausted its empty-response attempts. ActionRetry re-runs
// the same participant on the identical instruction, ActionDisqualify
// permanently removes it from rotation and resumes, ActionStayPaused
// dismisses the decision and leaves the session paused.
func (c *Controller) ResolveDisqualification(ctx context.Context, participantID string, action DisqualificationAction) (Snapshot, error) {
	c.mu.Lock()

	if c.pending == nil || c.pending.Kind != DecisionDisqualification {
		defer c.mu.Unlock()
		return c.snapshotLocked(), errors.ErrNoPendingDecision
	}
	if c.pending.ParticipantID != participantID {
		defer c.mu.Unlock()
		return c.snapshotLocked(), errors.ErrParticipantNotFound
	}

	switch action {
	case ActionStayPaused:
		defer c.mu.Unlock()
		c.pending = nil
		c.failed = nil
		return c.snapshotLocked(), nil

	case ActionDisqualify:
		defer c.mu.Unlock()
		p := c.sess.ParticipantByID(participantID)
		if p == nil {
			return c.snapshotLocked(), errors.ErrParticipantNotFound
		}
		p.Disqualified = true
		c.pending = nil
		c.failed = nil
		c.lastErr = nil
		c.log.Warn("participant disqualified",
			"session_id", c.sess.ID, "participant_id", participantID)
		if len(c.sess.ActiveParticipants()) == 0 {
			return c.snapshotLocked(), errors.ErrNoActiveParticipants
		}
		c.sess.Status = StatusRunning
		return c.snapshotLocked(), nil

	case ActionRetry:
		if c.failed == nil {
			defer c.mu.Unlock()
			return c.snapshotLocked(), errors.ErrNoPendingDecision
		}
		plan := c.failed.plan
		c.pending = nil
		c.failed = nil
		c.sess.Status = StatusRunning
		// runTurn releases the lock.
		return c.runTurn(ctx, plan)

	default:
		defer c.mu.Unlock()
		return c.snapshotLocked(), fmt.Errorf("unknown action %q: %w", action, errors.ErrInvalidInput)
	}
}

// Ratify answers a ratification checkpoint. Approval injects an
// approval directive and lets the moderator conclude; rejection requires
// a reason and injects a veto directive forcing revision.
func (c *Controller) Ratify(approve bool, reason string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.Kind != DecisionRatification {
		return c.snapshotLocked(), errors.ErrNoPendingDecision
	}

	var directive string
	if approve {
		directive = "[APPROVED] The plan is ratified. Proceed to conclude the session."
	} else {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return c.snapshotLocked(), fmt.Errorf("rejection requires a reason: %w", errors.ErrInvalidInput)
		}
		directive = fmt.Sprintf("[VETO] The plan is rejected. Reason: %s. Revise the plan and address this objection.", reason)
	}

	c.sess.Messages = append(c.sess.Messages, Message{
		ID:            uuid.NewString(),
		ParticipantID: HumanParticipantID,
		Content:       directive,
		Round:         c.sess.CurrentRound,
		Timestamp:     c.now(),
		Type:          TypeIntervention,
	})
	c.pending = nil
	c.sess.Status = StatusRunning
	c.log.Info("ratification resolved",
		"session_id", c.sess.ID, "approved", approve)
	return c.snapshotLocked(), nil
}

// Close terminates the session. If it is not yet completed and has
// messages, a partial archive is persisted synchronously before
// teardown; this is a required side effect of cancellation.
func (c *Controller) Close(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy != busyIdle {
		return c.snapshotLocked(), errors.ErrTurnInFlight
	}
	if c.sess.Status == StatusCompleted {
		return c.snapshotLocked(), nil
	}

	err := c.archiveLocked(ctx, true)
	c.sess.Status = StatusCompleted
	c.sess.CompletedAt = c.now()
	c.bus.Publish(event.NewSessionCompletedEvent(c.sess.ID, len(c.sess.Rounds), "closed by caller"))
	c.log.Info("session closed", "session_id", c.sess.ID, "rounds", len(c.sess.Rounds))
	return c.snapshotLocked(), err
}

// Run drives auto-play. In full mode it advances continuously until the
// session completes, pauses, or raises a decision point. In semi mode it
// additionally pauses at every round boundary for explicit confirmation.
// Manual mode returns immediately.
func (c *Controller) Run(ctx context.Context) (Snapshot, error) {
	for {
		c.mu.Lock()
		mode := c.sess.AutoMode
		status := c.sess.Status
		pending := c.pending
		roundsBefore := len(c.sess.Rounds)
		snap := c.snapshotLocked()
		c.mu.Unlock()

		if mode == AutoManual || status != StatusRunning || pending != nil {
			return snap, nil
		}

		snap, err := c.Advance(ctx)
		if err != nil {
			if errors.Is(err, errors.ErrSessionCompleted) {
				return snap, nil
			}
			return snap, err
		}
		if snap.Session.Status != StatusRunning {
			return snap, nil
		}

		if snap.Session.AutoMode == AutoSemi && len(snap.Session.Rounds) > roundsBefore {
			c.mu.Lock()
			if c.sess.Status == StatusRunning {
				c.pauseLocked("round boundary reached")
			}
			snap = c.snapshotLocked()
			c.mu.Unlock()
			return snap, nil
		}

		if delay := c.cfg.AutoDelay(); delay > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return snap, errors.Join(errors.ErrCanceled, err)
			}
		}
	}
}

// SetAutoMode switches the auto-play mode for subsequent scheduling.
func (c *Controller) SetAutoMode(mode AutoMode) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch mode {
	case AutoManual, AutoSemi, AutoFull:
		c.sess.AutoMode = mode
		return c.snapshotLocked(), nil
	default:
		return c.snapshotLocked(), fmt.Errorf("unknown auto mode %q: %w", mode, errors.ErrInvalidInput)
	}
}

// Snapshot returns the current session state and pending decision.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LastError returns the failure that paused the session, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{Session: c.sess.clone()}
	if c.pending != nil {
		d := *c.pending
		snap.Decision = &d
	}
	return snap
}
