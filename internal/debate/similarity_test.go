package debate

import (
	"strings"
	"testing"
)

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "identical texts",
			a:    "queue backend should support replay semantics",
			b:    "queue backend should support replay semantics",
			want: 1.0,
		},
		{
			name: "disjoint texts",
			a:    "vector clocks everywhere",
			b:    "gossip protocol instead",
			want: 0.0,
		},
		{
			name: "empty left side",
			a:    "",
			b:    "something meaningful here",
			want: 0.0,
		},
		{
			name: "short words ignored",
			a:    "we go to the sea",
			b:    "we do it in a day",
			want: 0.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jaccardSimilarity(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("jaccardSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJaccardSimilarityPartialOverlap(t *testing.T) {
	a := "kafka gives durable partitioned logs"
	b := "kafka gives durable ordered streams"
	// union: kafka gives durable partitioned logs ordered streams (7)
	// intersection: kafka gives durable (3)
	got := jaccardSimilarity(a, b)
	want := 3.0 / 7.0
	if got < want-0.001 || got > want+0.001 {
		t.Errorf("jaccardSimilarity() = %v, want %v", got, want)
	}
}

func TestJaccardSimilarityCaseInsensitive(t *testing.T) {
	if got := jaccardSimilarity("KAFKA STREAMS", "kafka streams"); got != 1.0 {
		t.Errorf("jaccardSimilarity() = %v, want 1.0", got)
	}
}

func TestIsRepetitiveAgainstPrior(t *testing.T) {
	msg := "I believe the queue backend should support replay semantics for recovery"
	tests := []struct {
		name  string
		prior []string
		want  bool
	}{
		{
			name:  "no prior messages",
			prior: nil,
			want:  false,
		},
		{
			name:  "fresh content",
			prior: []string{"let us discuss storage engines and compaction strategies today"},
			want:  false,
		},
		{
			name:  "identical prior message",
			prior: []string{msg},
			want:  true,
		},
		{
			name: "identical message outside the window",
			prior: []string{
				msg,
				"different content about consensus algorithms and quorum sizing",
				"another take on leader election timeout tuning parameters",
				"a third distinct message about snapshot transfer throttling",
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRepetitive(msg, tt.prior, 0.85); got != tt.want {
				t.Errorf("IsRepetitive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRepetitiveThresholdIsStrict(t *testing.T) {
	// Identical texts score exactly 1.0, which exceeds the threshold.
	// A threshold of 1.0 can therefore never trip on prior messages.
	msg := "replay semantics matter greatly here"
	if IsRepetitive(msg, []string{msg}, 1.0) {
		t.Error("IsRepetitive() = true with threshold 1.0, want false")
	}
}

func TestHasRepeatedSentence(t *testing.T) {
	loop := "We must adopt the streaming approach immediately. " +
		strings.Repeat("We must adopt the streaming approach immediately. ", 2)
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{
			name:    "sentence repeated three times",
			content: loop,
			want:    true,
		},
		{
			name:    "sentence repeated twice only",
			content: "The plan is ready for review now. The plan is ready for review now.",
			want:    false,
		},
		{
			name:    "short repeated sentences ignored",
			content: "Yes. Yes. Yes. Yes. Yes.",
			want:    false,
		},
		{
			name:    "varied content",
			content: "First point stands. Second point extends it considerably. Third point concludes the argument.",
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasRepeatedSentence(tt.content); got != tt.want {
				t.Errorf("hasRepeatedSentence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRepetitiveInternalLoop(t *testing.T) {
	content := strings.Repeat("The answer remains exactly the same as before! ", 3)
	if !IsRepetitive(content, nil, 0.85) {
		t.Error("IsRepetitive() = false for internal sentence loop, want true")
	}
}
