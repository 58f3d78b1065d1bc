// Package sink commits accepted commands to the date-keyed destination logs
// under bounded concurrency.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/starford/ansuz/internal/command"
	"github.com/starford/ansuz/internal/storage"
)

// DefaultConcurrency is the default size of the admission gate.
const DefaultConcurrency = 5

// Sink appends committed commands to the vault. At most N commits run
// concurrently system-wide; excess callers block on the admission gate until
// a slot frees. Commits may complete out of submission order.
type Sink struct {
	store    storage.Provider
	notesDir string
	tasksDir string
	sem      *semaphore.Weighted
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// New creates a Sink writing notes and tasks under the given vault-relative
// directories.
func New(store storage.Provider, notesDir, tasksDir string, concurrency int64, logger *slog.Logger, opts ...Option) *Sink {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		store:    store,
		notesDir: notesDir,
		tasksDir: tasksDir,
		sem:      semaphore.NewWeighted(concurrency),
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogPath resolves the vault-relative destination for a kind and local date
// (formatted YYYY-MM-DD).
func (s *Sink) LogPath(kind command.Kind, date string) string {
	dir := s.notesDir
	if kind == command.Task {
		dir = s.tasksDir
	}
	return filepath.Join(dir, date+".md")
}

// Commit appends one command to its destination log. It blocks while the
// admission gate is full; ctx cancellation while waiting aborts the commit.
func (s *Sink) Commit(ctx context.Context, cmd command.Command) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("sink: acquire slot: %w", err)
	}
	defer s.sem.Release(1)

	now := s.now()
	path := s.LogPath(cmd.Kind, now.Format("2006-01-02"))

	var prefix string
	switch cmd.Kind {
	case command.Task:
		prefix = "- [ ] "
	default:
		at := now
		if cmd.Timestamp > 0 {
			at = time.Unix(cmd.Timestamp, 0)
		}
		prefix = "- [" + at.Format("15:04") + "] "
	}

	line := prefix + strings.TrimSpace(cmd.Content) + "\n"
	if err := s.store.Append(path, line); err != nil {
		return fmt.Errorf("sink: commit %s: %w", cmd.Kind, err)
	}

	s.logger.Info("sink: committed",
		slog.String("kind", cmd.Kind.String()),
		slog.String("path", path),
		slog.String("content", cmd.Content))
	return nil
}
