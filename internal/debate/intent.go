package debate

import "strings"

// ModeratorIntent is the signal extracted from a moderator message.
type ModeratorIntent int

const (
	// IntentNone means the message carries no control signal.
	IntentNone ModeratorIntent = iota

	// IntentRatification means the moderator is requesting approval of a
	// final plan.
	IntentRatification

	// IntentTerminate means the moderator is signalling end of session.
	IntentTerminate
)

// TerminationMarker is the exact token the moderator is instructed to
// emit when the session should end.
const TerminationMarker = "[SESSION_END]"

// RatificationMarker is the exact token the moderator is instructed to
// emit when presenting a final plan for approval.
const RatificationMarker = "[REQUEST_APPROVAL]"

// ratificationPhrases are fallback cues for moderators that paraphrase
// instead of emitting the marker. Matching is substring-based on the
// lowercased message, so paraphrased output can still slip through in
// both directions.
var ratificationPhrases = []string{
	"plan submitted",
	"presenting the plan",
	"presenting the final plan",
}

// approvalKeywords qualify a "final plan" mention as a vote request.
var approvalKeywords = []string{
	"approval",
	"approve",
	"ratif",
	"confirm",
	"vote",
}

// ClassifyModeratorIntent inspects a moderator message for control
// signals. All phrase matching lives here so the heuristics can change
// without touching scheduling logic.
func ClassifyModeratorIntent(text string) ModeratorIntent {
	if strings.Contains(text, TerminationMarker) {
		return IntentTerminate
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(RatificationMarker)) {
		return IntentRatification
	}
	for _, phrase := range ratificationPhrases {
		if strings.Contains(lower, phrase) {
			return IntentRatification
		}
	}
	if strings.Contains(lower, "final plan") {
		for _, kw := range approvalKeywords {
			if strings.Contains(lower, kw) {
				return IntentRatification
			}
		}
	}
	return IntentNone
}

// StripControlMarkers removes the fixed control tokens from a message
// before it is rendered for a reader.
func StripControlMarkers(text string) string {
	text = strings.ReplaceAll(text, TerminationMarker, "")
	text = strings.ReplaceAll(text, RatificationMarker, "")
	return strings.TrimSpace(text)
}
