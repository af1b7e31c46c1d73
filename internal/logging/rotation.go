package logging

import (
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotationConfig controls size-based log file rotation.
type RotationConfig struct {
	// MaxSizeMB is the size at which the active file is rotated.
	// Zero disables rotation.
	MaxSizeMB int
	// MaxBackups is how many rotated files to keep.
	MaxBackups int
	// Compress gzips rotated files in the background.
	Compress bool
}

// DefaultRotationConfig keeps three 10MB backups, uncompressed.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{MaxSizeMB: 10, MaxBackups: 3}
}

// RotatingWriter is an io.WriteCloser that rotates its underlying file
// once it grows past the configured limit. Backups are numbered
// path.1 (newest) through path.N (oldest).
type RotatingWriter struct {
	path    string
	limit   int64
	backups int
	gzipOld bool

	mu     sync.Mutex
	f      *os.File
	size   int64
	closed bool
}

// NewRotatingWriter opens (or creates) the log file at path, creating
// parent directories as needed.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	w := &RotatingWriter{
		path:    path,
		limit:   int64(cfg.MaxSizeMB) * 1024 * 1024,
		backups: cfg.MaxBackups,
		gzipOld: cfg.Compress,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.f = f
	w.size = info.Size()
	return nil
}

// Write appends p to the active file, rotating first if the write
// would push it past the size limit. A failed rotation is reported to
// stderr and the write proceeds on the oversized file.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, errors.New("write to closed log writer")
	}
	if w.limit > 0 && w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate closes the active file, shifts the backup chain up one slot,
// and reopens a fresh file. Caller holds w.mu.
func (w *RotatingWriter) rotate() error {
	_ = w.f.Sync()
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close before rotate: %w", err)
	}
	if w.backups < 1 {
		if err := os.Remove(w.path); err != nil {
			return fmt.Errorf("discard rotated file: %w", err)
		}
	} else {
		w.shiftBackups()
		first := w.path + ".1"
		if err := os.Rename(w.path, first); err != nil {
			return fmt.Errorf("rename rotated file: %w", err)
		}
		if w.gzipOld {
			go gzipInPlace(first)
		}
	}
	return w.open()
}

// shiftBackups renumbers path.i to path.(i+1), dropping the oldest.
// Either the plain or the .gz form of each slot may exist.
func (w *RotatingWriter) shiftBackups() {
	for _, suffix := range []string{"", ".gz"} {
		_ = os.Remove(fmt.Sprintf("%s.%d%s", w.path, w.backups, suffix))
	}
	for i := w.backups - 1; i >= 1; i-- {
		for _, suffix := range []string{"", ".gz"} {
			src := fmt.Sprintf("%s.%d%s", w.path, i, suffix)
			if _, err := os.Stat(src); err != nil {
				continue
			}
			dst := fmt.Sprintf("%s.%d%s", w.path, i+1, suffix)
			if err := os.Rename(src, dst); err != nil {
				fmt.Fprintf(os.Stderr, "log backup shift failed: %v\n", err)
			}
		}
	}
}

// gzipInPlace compresses path to path.gz, removing the original only
// after the compressed copy is fully written.
func gzipInPlace(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log compression failed: %v\n", err)
		return
	}
	out, err := os.Create(path + ".gz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "log compression failed: %v\n", err)
		return
	}
	zw := gzip.NewWriter(out)
	_, werr := zw.Write(data)
	if err := zw.Close(); werr == nil {
		werr = err
	}
	if err := out.Close(); werr == nil {
		werr = err
	}
	if werr != nil {
		_ = os.Remove(path + ".gz")
		fmt.Fprintf(os.Stderr, "log compression failed: %v\n", werr)
		return
	}
	_ = os.Remove(path)
}

// Close flushes and closes the active file. Further writes fail;
// repeated Close calls are no-ops.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.f.Sync()
	return w.f.Close()
}

// CurrentSize reports the size of the active file in bytes.
func (w *RotatingWriter) CurrentSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}
