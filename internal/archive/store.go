package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tetra-labs/tetra/internal/debate"
	"github.com/tetra-labs/tetra/internal/errors"
	"github.com/tetra-labs/tetra/internal/logging"
)

// Store writes session records to a directory, one JSON file per
// session plus a plain-text transcript next to it. It implements
// debate.Archiver.
type Store struct {
	dir string
	mu  sync.Mutex
	log *logging.Logger
}

// NewStore creates the archive directory if needed. log may be nil.
func NewStore(dir string, log *logging.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.NewArchiveError("archive directory is empty", errors.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewArchiveError("create archive directory", err).WithPath(dir)
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Store{dir: dir, log: log}, nil
}

// Dir returns the directory records are written to.
func (s *Store) Dir() string { return s.dir }

// Save persists the session record atomically and returns the record
// path. Saving the same session again overwrites its earlier record, so
// a partial archive is replaced by the final one.
func (s *Store) Save(ctx context.Context, sess *debate.Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", errors.Join(errors.ErrCanceled, err)
	}

	rec := NewRecord(sess)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", errors.NewArchiveError("marshal session record", err)
	}

	path := s.recordPath(rec)
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return "", errors.NewArchiveError("write session record", err).WithPath(path)
	}

	transcriptPath := strings.TrimSuffix(path, ".json") + ".txt"
	if err := atomicWriteFile(transcriptPath, []byte(rec.Transcript), 0o644); err != nil {
		return "", errors.NewArchiveError("write transcript", err).WithPath(transcriptPath)
	}

	s.log.Info("session record written",
		"session_id", rec.ID, "path", path, "completed", rec.Completed)
	return path, nil
}

// Load reads one record by path.
func (s *Store) Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewArchiveError("read session record", err).WithPath(path)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.NewArchiveError("decode session record", err).WithPath(path)
	}
	return &rec, nil
}

// Summary is one line of the archive listing.
type Summary struct {
	Path       string
	ID         string
	Topic      string
	Rounds     int
	Messages   int
	TotalCost  float64
	Completed  bool
	ArchivedAt time.Time
}

// List returns all records in the archive directory, newest first.
// Unreadable files are skipped.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewArchiveError("read archive directory", err).WithPath(s.dir)
	}

	var summaries []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		rec, err := s.Load(path)
		if err != nil {
			s.log.Warn("skipping unreadable record", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, Summary{
			Path:       path,
			ID:         rec.ID,
			Topic:      rec.Topic,
			Rounds:     len(rec.Rounds),
			Messages:   len(rec.Messages),
			TotalCost:  rec.TotalCost,
			Completed:  rec.Completed,
			ArchivedAt: rec.ArchivedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ArchivedAt.After(summaries[j].ArchivedAt)
	})
	return summaries, nil
}

// Delete removes a record and its transcript.
func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		return errors.NewArchiveError("delete session record", err).WithPath(path)
	}
	transcript := strings.TrimSuffix(path, ".json") + ".txt"
	if err := os.Remove(transcript); err != nil && !os.IsNotExist(err) {
		return errors.NewArchiveError("delete transcript", err).WithPath(transcript)
	}
	return nil
}

func (s *Store) recordPath(rec *Record) string {
	stamp := rec.StartedAt
	if stamp.IsZero() {
		stamp = rec.ArchivedAt
	}
	short := rec.ID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("%s-%s.json", stamp.Format("20060102-150405"), short)
	return filepath.Join(s.dir, name)
}

// atomicWriteFile writes through a temp file in the same directory and
// renames it into place, so a record file is never half-written.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}
