// Package event defines event types for decoupling components in Tetra.
// The completion client and debate engine publish these so the CLI (or any
// other consumer) can display progress without being part of the
// success/failure protocol of the emitting component.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "turn.completed", "completion.retry").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Completion Client Events
// -----------------------------------------------------------------------------

// CompletionAttemptEvent is emitted when a completion request attempt starts,
// including backoff retries of transient failures.
type CompletionAttemptEvent struct {
	baseEvent
	Model       string // Backend model identifier
	Attempt     int    // 1-based attempt number
	MaxAttempts int    // Attempt budget from the retry policy
	Reason      string // Why this attempt is happening (e.g., "rate limited")
}

// NewCompletionAttemptEvent creates a CompletionAttemptEvent.
func NewCompletionAttemptEvent(model string, attempt, maxAttempts int, reason string) CompletionAttemptEvent {
	return CompletionAttemptEvent{
		baseEvent:   newBaseEvent("completion.attempt"),
		Model:       model,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Reason:      reason,
	}
}

// FallbackStartedEvent is emitted when the client abandons the caching-hint
// encoding mid-call and retries with the plain encoding.
type FallbackStartedEvent struct {
	baseEvent
	Model string
}

// NewFallbackStartedEvent creates a FallbackStartedEvent.
func NewFallbackStartedEvent(model string) FallbackStartedEvent {
	return FallbackStartedEvent{
		baseEvent: newBaseEvent("completion.fallback_started"),
		Model:     model,
	}
}

// FallbackFinishedEvent is emitted after a plain-encoding fallback attempt.
type FallbackFinishedEvent struct {
	baseEvent
	Model   string
	Success bool
}

// NewFallbackFinishedEvent creates a FallbackFinishedEvent.
func NewFallbackFinishedEvent(model string, success bool) FallbackFinishedEvent {
	return FallbackFinishedEvent{
		baseEvent: newBaseEvent("completion.fallback_finished"),
		Model:     model,
		Success:   success,
	}
}

// BackendIncompatibleEvent is emitted when a backend is permanently marked as
// rejecting the caching-hint encoding for the remainder of the process.
type BackendIncompatibleEvent struct {
	baseEvent
	Model string
}

// NewBackendIncompatibleEvent creates a BackendIncompatibleEvent.
func NewBackendIncompatibleEvent(model string) BackendIncompatibleEvent {
	return BackendIncompatibleEvent{
		baseEvent: newBaseEvent("completion.backend_incompatible"),
		Model:     model,
	}
}

// CacheHitEvent is emitted when a completion response reports tokens served
// from the provider's prompt cache. Observability only; no control flow.
type CacheHitEvent struct {
	baseEvent
	Model        string
	CachedTokens int
	SavedPercent int
}

// NewCacheHitEvent creates a CacheHitEvent.
func NewCacheHitEvent(model string, cachedTokens, savedPercent int) CacheHitEvent {
	return CacheHitEvent{
		baseEvent:    newBaseEvent("completion.cache_hit"),
		Model:        model,
		CachedTokens: cachedTokens,
		SavedPercent: savedPercent,
	}
}

// -----------------------------------------------------------------------------
// Debate Engine Events
// -----------------------------------------------------------------------------

// TurnStartedEvent is emitted when a participant's turn begins.
type TurnStartedEvent struct {
	baseEvent
	SessionID     string
	ParticipantID string
	Round         int
}

// NewTurnStartedEvent creates a TurnStartedEvent.
func NewTurnStartedEvent(sessionID, participantID string, round int) TurnStartedEvent {
	return TurnStartedEvent{
		baseEvent:     newBaseEvent("turn.started"),
		SessionID:     sessionID,
		ParticipantID: participantID,
		Round:         round,
	}
}

// TurnCompletedEvent is emitted when a turn produces an accepted message.
type TurnCompletedEvent struct {
	baseEvent
	SessionID     string
	ParticipantID string
	MessageID     string
	Round         int
	Tokens        int
	Cost          float64
}

// NewTurnCompletedEvent creates a TurnCompletedEvent.
func NewTurnCompletedEvent(sessionID, participantID, messageID string, round, tokens int, cost float64) TurnCompletedEvent {
	return TurnCompletedEvent{
		baseEvent:     newBaseEvent("turn.completed"),
		SessionID:     sessionID,
		ParticipantID: participantID,
		MessageID:     messageID,
		Round:         round,
		Tokens:        tokens,
		Cost:          cost,
	}
}

// RoundSummarizedEvent is emitted after a round summary attempt completes.
// Success is false when the summarizer degraded gracefully to no summary.
type RoundSummarizedEvent struct {
	baseEvent
	SessionID string
	Round     int
	Success   bool
}

// NewRoundSummarizedEvent creates a RoundSummarizedEvent.
func NewRoundSummarizedEvent(sessionID string, round int, success bool) RoundSummarizedEvent {
	return RoundSummarizedEvent{
		baseEvent: newBaseEvent("round.summarized"),
		SessionID: sessionID,
		Round:     round,
		Success:   success,
	}
}

// DecisionRequiredEvent is emitted when the engine pauses on a decision
// point: a participant exhausted its empty-response retries.
type DecisionRequiredEvent struct {
	baseEvent
	SessionID     string
	ParticipantID string
	Attempts      int
}

// NewDecisionRequiredEvent creates a DecisionRequiredEvent.
func NewDecisionRequiredEvent(sessionID, participantID string, attempts int) DecisionRequiredEvent {
	return DecisionRequiredEvent{
		baseEvent:     newBaseEvent("session.decision_required"),
		SessionID:     sessionID,
		ParticipantID: participantID,
		Attempts:      attempts,
	}
}

// RatificationRequestedEvent is emitted when the moderator's output is
// classified as a final-plan vote request.
type RatificationRequestedEvent struct {
	baseEvent
	SessionID string
	Round     int
}

// NewRatificationRequestedEvent creates a RatificationRequestedEvent.
func NewRatificationRequestedEvent(sessionID string, round int) RatificationRequestedEvent {
	return RatificationRequestedEvent{
		baseEvent: newBaseEvent("session.ratification_requested"),
		SessionID: sessionID,
		Round:     round,
	}
}

// SessionPausedEvent is emitted whenever the session transitions to paused.
type SessionPausedEvent struct {
	baseEvent
	SessionID string
	Reason    string
}

// NewSessionPausedEvent creates a SessionPausedEvent.
func NewSessionPausedEvent(sessionID, reason string) SessionPausedEvent {
	return SessionPausedEvent{
		baseEvent: newBaseEvent("session.paused"),
		SessionID: sessionID,
		Reason:    reason,
	}
}

// SessionCompletedEvent is emitted when the session reaches its terminal state.
type SessionCompletedEvent struct {
	baseEvent
	SessionID string
	Rounds    int
	Reason    string // "round_limit", "moderator_terminated", or "closed"
}

// NewSessionCompletedEvent creates a SessionCompletedEvent.
func NewSessionCompletedEvent(sessionID string, rounds int, reason string) SessionCompletedEvent {
	return SessionCompletedEvent{
		baseEvent: newBaseEvent("session.completed"),
		SessionID: sessionID,
		Rounds:    rounds,
		Reason:    reason,
	}
}

// SessionArchivedEvent is emitted after a session record is persisted.
type SessionArchivedEvent struct {
	baseEvent
	SessionID string
	Path      string
	Partial   bool // True when the session was archived before completing
}

// NewSessionArchivedEvent creates a SessionArchivedEvent.
func NewSessionArchivedEvent(sessionID, path string, partial bool) SessionArchivedEvent {
	return SessionArchivedEvent{
		baseEvent: newBaseEvent("session.archived"),
		SessionID: sessionID,
		Path:      path,
		Partial:   partial,
	}
}
