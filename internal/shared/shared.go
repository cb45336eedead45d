// package shared defines shared helpers
package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] that writes to stderr and appends to the file at path.
//
// Identical lines repeated within a second are written to the file once (see [DedupWriter]).
func NewFileLogger(path string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	w := io.MultiWriter(os.Stderr, NewDedupWriter(f, time.Second))
	return NewLogger(w), f, nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

var timestampPrefix = regexp.MustCompile(`^\S+\s+\S+\s+`)

// DedupWriter drops a line when an identical line was written within the window.
//
// Lines are compared without their leading timestamp and level so that a
// burst of the same warning from many workers collapses to one entry.
type DedupWriter struct {
	dst      io.Writer
	window   time.Duration
	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

// NewDedupWriter wraps dst. A zero window disables de-duplication.
func NewDedupWriter(dst io.Writer, window time.Duration) *DedupWriter {
	return &DedupWriter{
		dst:      dst,
		window:   window,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (w *DedupWriter) Write(p []byte) (int, error) {
	if w.window <= 0 {
		return w.dst.Write(p)
	}

	key := timestampPrefix.ReplaceAllString(strings.TrimRight(string(p), "\r\n"), "")
	now := w.now()

	w.mu.Lock()
	last, ok := w.lastSeen[key]
	if ok && now.Sub(last) < w.window {
		w.mu.Unlock()
		return len(p), nil
	}
	w.lastSeen[key] = now
	if len(w.lastSeen) > 1024 {
		for k, seen := range w.lastSeen {
			if now.Sub(seen) >= w.window {
				delete(w.lastSeen, k)
			}
		}
	}
	w.mu.Unlock()

	return w.dst.Write(p)
}

// WriteFileAtomic writes data to a temporary file next to path and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
