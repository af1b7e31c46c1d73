package debate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tetra-labs/tetra/internal/event"
	"github.com/tetra-labs/tetra/internal/llm"
)

type completerFunc func(ctx context.Context, req llm.Request) (*llm.Result, error)

func (f completerFunc) Complete(ctx context.Context, req llm.Request) (*llm.Result, error) {
	return f(ctx, req)
}

const summaryReply = `{
  "outputs": ["Shortlisted Kafka and NATS"],
  "highlights": [{"speaker": "Ada", "contribution": "cost analysis"}],
  "decisions": ["Drop RabbitMQ"],
  "openQuestions": ["Who operates the cluster?"],
  "conflicts": ["Latency vs durability"],
  "progressPercent": 35,
  "nextDirective": "Compare recovery behaviour"
}`

func summaryTestSession() *Session {
	sess := promptTestSession()
	sess.Messages = []Message{
		{ID: "m1", ParticipantID: "mod", Content: "Welcome.", Round: 1},
		{ID: "m2", ParticipantID: "p1", Content: "Kafka.", Round: 1},
		{ID: "m3", ParticipantID: "p2", Content: "NATS.", Round: 1},
	}
	return sess
}

func TestSummarize(t *testing.T) {
	sess := summaryTestSession()
	var captured llm.Request
	completer := completerFunc(func(_ context.Context, req llm.Request) (*llm.Result, error) {
		captured = req
		return &llm.Result{Text: "Here you go:\n" + summaryReply + "\ntrailing chatter"}, nil
	})

	bus := event.NewBus()
	var published []event.Event
	bus.Subscribe("round.summarized", func(e event.Event) {
		published = append(published, e)
	})

	s := NewSummarizer(completer, bus, nil)
	summary := s.Summarize(context.Background(), sess, Round{Number: 1, StartIndex: 0, EndIndex: 2})

	if summary == nil {
		t.Fatal("Summarize() = nil, want summary")
	}
	if summary.ProgressPercent != 35 {
		t.Errorf("ProgressPercent = %d, want 35", summary.ProgressPercent)
	}
	if len(summary.Outputs) != 1 || summary.Outputs[0] != "Shortlisted Kafka and NATS" {
		t.Errorf("Outputs = %v", summary.Outputs)
	}
	if len(summary.Highlights) != 1 || summary.Highlights[0].Speaker != "Ada" {
		t.Errorf("Highlights = %v", summary.Highlights)
	}
	if summary.NextDirective != "Compare recovery behaviour" {
		t.Errorf("NextDirective = %q", summary.NextDirective)
	}
	if summary.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}

	if captured.Model != "openai/gpt-4o" {
		t.Errorf("summary request model = %q, want moderator's model", captured.Model)
	}
	if captured.Temperature != summaryTemperature {
		t.Errorf("temperature = %v, want %v", captured.Temperature, summaryTemperature)
	}
	if len(captured.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(captured.History))
	}
	for _, want := range []string{"[Chair (moderator)]: Welcome.", "[Ada (participant)]: Kafka.", "[Grace (participant)]: NATS."} {
		if !strings.Contains(captured.History[0].Content, want) {
			t.Errorf("transcript missing %q", want)
		}
	}

	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
}

func TestSummarizeDegradesOnFailure(t *testing.T) {
	sess := summaryTestSession()
	tests := []struct {
		name      string
		completer completerFunc
	}{
		{
			name: "transport error",
			completer: func(context.Context, llm.Request) (*llm.Result, error) {
				return nil, errors.New("gateway down")
			},
		},
		{
			name: "no json in reply",
			completer: func(context.Context, llm.Request) (*llm.Result, error) {
				return &llm.Result{Text: "I cannot produce a summary right now."}, nil
			},
		},
		{
			name: "malformed json",
			completer: func(context.Context, llm.Request) (*llm.Result, error) {
				return &llm.Result{Text: `{"outputs": [unquoted]}`}, nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummarizer(tt.completer, nil, nil)
			if got := s.Summarize(context.Background(), sess, Round{Number: 1, StartIndex: 0, EndIndex: 2}); got != nil {
				t.Errorf("Summarize() = %+v, want nil", got)
			}
		})
	}
}

func TestSummarizeEmptyRange(t *testing.T) {
	sess := summaryTestSession()
	s := NewSummarizer(completerFunc(func(context.Context, llm.Request) (*llm.Result, error) {
		t.Fatal("completer should not be called for an empty range")
		return nil, nil
	}), nil, nil)

	if got := s.Summarize(context.Background(), sess, Round{Number: 1, StartIndex: 2, EndIndex: 1}); got != nil {
		t.Errorf("Summarize() = %+v, want nil", got)
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "bare object",
			text: `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "object with prose around it",
			text: `Sure! {"a": 1} Hope that helps.`,
			want: `{"a": 1}`,
		},
		{
			name: "nested objects",
			text: `{"a": {"b": 2}} {"c": 3}`,
			want: `{"a": {"b": 2}}`,
		},
		{
			name: "braces inside strings",
			text: `{"a": "closing } brace"} tail`,
			want: `{"a": "closing } brace"}`,
		},
		{
			name: "escaped quote inside string",
			text: `{"a": "quoted \" and } brace"}`,
			want: `{"a": "quoted \" and } brace"}`,
		},
		{
			name: "unterminated object",
			text: `{"a": 1`,
			want: "",
		},
		{
			name: "no object",
			text: "plain text only",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstJSONObject(tt.text); got != tt.want {
				t.Errorf("firstJSONObject(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseSummaryClampsProgress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"negative", `{"progressPercent": -10}`, 0},
		{"over hundred", `{"progressPercent": 250}`, 100},
		{"in range", `{"progressPercent": 60}`, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := parseSummary(tt.raw)
			if summary == nil {
				t.Fatal("parseSummary() = nil")
			}
			if summary.ProgressPercent != tt.want {
				t.Errorf("ProgressPercent = %d, want %d", summary.ProgressPercent, tt.want)
			}
		})
	}
}
