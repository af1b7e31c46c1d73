package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tetra-labs/tetra/internal/debate"
)

func testSession() *debate.Session {
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &debate.Session{
		ID:    "0f3a9c1e-aaaa-bbbb-cccc-000000000001",
		Topic: "Choose a queueing backend",
		Mode:  debate.ModeCollaborative,
		Moderator: &debate.Participant{
			ID: "mod", Name: "Chair", Role: debate.RoleModerator,
			ModelID: "openai/gpt-4o", SystemPrompt: "You chair technical reviews.",
		},
		Participants: []*debate.Participant{
			{ID: "p1", Name: "Ada", Role: debate.RoleParticipant, ModelID: "anthropic/claude-sonnet-4"},
			{ID: "p2", Name: "Grace", Role: debate.RoleParticipant, ModelID: "google/gemini-2.0-flash", Disqualified: true},
		},
		Status:       debate.StatusCompleted,
		AutoMode:     debate.AutoSemi,
		CurrentRound: 2,
		MaxRounds:    3,
		TotalTokens:  450,
		TotalCost:    0.0045,
		StartedAt:    started,
		CompletedAt:  started.Add(10 * time.Minute),
		Messages: []debate.Message{
			{ID: "m1", ParticipantID: "mod", Content: "Welcome.", Round: 1, Type: debate.TypeText, Tokens: 150},
			{ID: "m2", ParticipantID: "p1", Content: "Kafka fits.", Round: 1, Type: debate.TypeText, Tokens: 150},
			{ID: "m3", ParticipantID: "mod", Content: "Closing round one. " + debate.TerminationMarker, Round: 2, Type: debate.TypeSummaryDirective, Tokens: 150},
		},
		Rounds: []debate.Round{
			{
				Number: 1, StartIndex: 0, EndIndex: 1, Complete: true,
				Summary: &debate.RoundSummary{
					Outputs:         []string{"Kafka shortlisted"},
					Highlights:      []debate.SpeakerHighlight{{Speaker: "Ada", Contribution: "throughput data"}},
					Decisions:       []string{"Drop RabbitMQ"},
					OpenQuestions:   []string{"Cluster ownership?"},
					Conflicts:       []string{"Cost vs durability"},
					ProgressPercent: 55,
					NextDirective:   "Compare failure modes",
				},
			},
		},
	}
}

func TestNewRecord(t *testing.T) {
	sess := testSession()
	rec := NewRecord(sess)

	if rec.ID != sess.ID || rec.Topic != sess.Topic {
		t.Errorf("record identity = %q/%q", rec.ID, rec.Topic)
	}
	if !rec.Completed {
		t.Error("Completed = false for a completed session")
	}
	if rec.Moderator.SystemPrompt != "You chair technical reviews." {
		t.Error("moderator system prompt not preserved")
	}
	if len(rec.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(rec.Participants))
	}
	if !rec.Participants[1].Disqualified {
		t.Error("disqualified flag lost")
	}
	if len(rec.Messages) != 3 || len(rec.Rounds) != 1 {
		t.Errorf("messages/rounds = %d/%d, want 3/1", len(rec.Messages), len(rec.Rounds))
	}
	if rec.ArchivedAt.IsZero() {
		t.Error("ArchivedAt not set")
	}
	if rec.Transcript == "" {
		t.Error("transcript not embedded")
	}

	if rec.Final.ProgressPercent != 55 {
		t.Errorf("final progress = %d, want 55", rec.Final.ProgressPercent)
	}
	if len(rec.Final.Decisions) != 1 || rec.Final.Decisions[0] != "Drop RabbitMQ" {
		t.Errorf("final decisions = %v", rec.Final.Decisions)
	}
	if len(rec.Final.OpenQuestions) != 1 || len(rec.Final.Conflicts) != 1 {
		t.Errorf("final status = %+v", rec.Final)
	}
}

func TestNewRecordPartialSession(t *testing.T) {
	sess := testSession()
	sess.Status = debate.StatusRunning
	sess.CompletedAt = time.Time{}
	sess.Rounds = nil

	rec := NewRecord(sess)
	if rec.Completed {
		t.Error("Completed = true for a running session")
	}
	if rec.Final.ProgressPercent != 0 || rec.Final.Decisions != nil {
		t.Errorf("final status should be empty without summaries: %+v", rec.Final)
	}
}

func TestFinalStatusFlattensDecisions(t *testing.T) {
	sess := testSession()
	sess.Rounds = append(sess.Rounds, debate.Round{
		Number: 2, StartIndex: 2, EndIndex: 2, Complete: true,
		Summary: &debate.RoundSummary{
			Decisions:       []string{"Adopt Kafka"},
			OpenQuestions:   []string{"Retention policy?"},
			ProgressPercent: 90,
		},
	})

	rec := NewRecord(sess)
	if len(rec.Final.Decisions) != 2 {
		t.Errorf("decisions = %v, want both rounds' decisions", rec.Final.Decisions)
	}
	if rec.Final.ProgressPercent != 90 {
		t.Errorf("progress = %d, want the last round's 90", rec.Final.ProgressPercent)
	}
	if len(rec.Final.OpenQuestions) != 1 || rec.Final.OpenQuestions[0] != "Retention policy?" {
		t.Errorf("open questions = %v, want only the last round's", rec.Final.OpenQuestions)
	}
	if len(rec.Final.Conflicts) != 0 {
		t.Errorf("conflicts = %v, want none (last summary has none)", rec.Final.Conflicts)
	}
}

func TestBuildTranscript(t *testing.T) {
	rec := NewRecord(testSession())
	transcript := rec.Transcript

	for _, want := range []string{
		"SESSION: Choose a queueing backend",
		"Moderator: Chair (openai/gpt-4o)",
		"Participant: Grace (google/gemini-2.0-flash) [disqualified]",
		"[Round 1 | Chair | text]",
		"[Round 1 | Ada | text]",
		"ROUND 1 REPORT",
		"[#####-----] 55%",
		"Ada: throughput data",
		"Next round directive: Compare failure modes",
		"FINAL STATUS",
	} {
		if !strings.Contains(transcript, want) {
			t.Errorf("transcript missing %q", want)
		}
	}

	if strings.Contains(transcript, debate.TerminationMarker) {
		t.Error("transcript leaks the termination marker")
	}

	// The round report follows the round's last message, before the
	// moderator's closing message.
	report := strings.Index(transcript, "ROUND 1 REPORT")
	closing := strings.Index(transcript, "Closing round one.")
	if report == -1 || closing == -1 || report > closing {
		t.Error("round report not placed after the round's last message")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent int
		want    string
	}{
		{0, "[----------] 0%"},
		{55, "[#####-----] 55%"},
		{100, "[##########] 100%"},
		{-5, "[----------] 0%"},
		{140, "[##########] 100%"},
	}
	for _, tt := range tests {
		if got := progressBar(tt.percent); got != tt.want {
			t.Errorf("progressBar(%d) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	sess := testSession()
	path, err := store.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.ID != sess.ID {
		t.Errorf("loaded id = %q, want %q", rec.ID, sess.ID)
	}
	if len(rec.Messages) != 3 {
		t.Errorf("loaded messages = %d, want 3", len(rec.Messages))
	}
	if rec.Rounds[0].Summary == nil || rec.Rounds[0].Summary.ProgressPercent != 55 {
		t.Error("round summary did not round-trip")
	}

	transcript := strings.TrimSuffix(path, ".json") + ".txt"
	if _, err := os.Stat(transcript); err != nil {
		t.Errorf("transcript file not written: %v", err)
	}
}

func TestStoreSaveOverwritesPartial(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	sess := testSession()
	sess.Status = debate.StatusRunning
	if _, err := store.Save(context.Background(), sess); err != nil {
		t.Fatalf("Save(partial) error = %v", err)
	}

	sess.Status = debate.StatusCompleted
	path, err := store.Save(context.Background(), sess)
	if err != nil {
		t.Fatalf("Save(final) error = %v", err)
	}

	summaries, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("records = %d, want 1 (final replaces partial)", len(summaries))
	}
	if !summaries[0].Completed {
		t.Error("final record not marked completed")
	}
	if summaries[0].Path != path {
		t.Errorf("path = %q, want %q", summaries[0].Path, path)
	}
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	first := testSession()
	second := testSession()
	second.ID = "0f3a9c1e-aaaa-bbbb-cccc-000000000002"
	second.Topic = "Pick a cache layer"
	second.StartedAt = first.StartedAt.Add(time.Hour)

	if _, err := store.Save(context.Background(), first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := store.Save(context.Background(), second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A stray file must not break the listing.
	if err := os.WriteFile(filepath.Join(dir, "junk.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	summaries, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("records = %d, want 2", len(summaries))
	}
	if summaries[0].ID == summaries[1].ID {
		t.Error("listing contains duplicate records")
	}
}

func TestStoreDelete(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	path, err := store.Save(context.Background(), testSession())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("record not deleted")
	}
	transcript := strings.TrimSuffix(path, ".json") + ".txt"
	if _, err := os.Stat(transcript); !os.IsNotExist(err) {
		t.Error("transcript not deleted")
	}

	summaries, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("records after delete = %d, want 0", len(summaries))
	}
}

func TestNewStoreRejectsEmptyDir(t *testing.T) {
	if _, err := NewStore("", nil); err == nil {
		t.Error("NewStore(\"\") error = nil, want error")
	}
}
