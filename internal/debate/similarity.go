package debate

import (
	"strings"
)

const (
	// similarityWindow is how many of a participant's most recent accepted
	// messages a new reply is compared against.
	similarityWindow = 3

	// minSimilarityWordLength filters out short filler words before the
	// Jaccard comparison.
	minSimilarityWordLength = 4

	// minSentenceLength filters trivial sentences from the repeated
	// sentence check.
	minSentenceLength = 20

	// sentenceRepeatLimit is how many times a single sentence may appear
	// in one reply before it counts as a loop.
	sentenceRepeatLimit = 3
)

// IsRepetitive reports whether content is a degenerate repetition of the
// participant's recent prior messages, or repeats itself internally. The
// prior slice should hold the participant's most recent accepted messages,
// newest last; only the last similarityWindow entries are considered.
func IsRepetitive(content string, prior []string, threshold float64) bool {
	if hasRepeatedSentence(content) {
		return true
	}
	if len(prior) > similarityWindow {
		prior = prior[len(prior)-similarityWindow:]
	}
	for _, p := range prior {
		if jaccardSimilarity(content, p) > threshold {
			return true
		}
	}
	return false
}

// jaccardSimilarity computes word-set overlap between two texts. Words
// shorter than minSimilarityWordLength are ignored.
func jaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) >= minSimilarityWordLength {
			set[w] = struct{}{}
		}
	}
	return set
}

// hasRepeatedSentence reports whether any single sentence longer than
// minSentenceLength appears sentenceRepeatLimit or more times.
func hasRepeatedSentence(content string) bool {
	counts := make(map[string]int)
	for _, sentence := range splitSentences(content) {
		counts[sentence]++
		if counts[sentence] >= sentenceRepeatLimit {
			return true
		}
	}
	return false
}

func splitSentences(content string) []string {
	var sentences []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		b.Reset()
		if len(s) > minSentenceLength {
			sentences = append(sentences, s)
		}
	}
	for _, r := range content {
		switch r {
		case '.', '!', '?':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return sentences
}
