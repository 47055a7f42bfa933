package watcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/piptrack/internal/history"
)

// Option configures Follow.
type Option func(*follower)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *follower) { f.logger = l }
}

// WithBacklog replays up to n existing records before following.
func WithBacklog(n int) Option {
	return func(f *follower) { f.backlog = n }
}

// WithReady registers fn to be called once the watch is in place.
func WithReady(fn func()) Option {
	return func(f *follower) { f.ready = fn }
}

type follower struct {
	path    string
	fn      func(history.Record)
	logger  *slog.Logger
	backlog int
	ready   func()
	seen    int
}

// Follow calls fn for every record appended to the history file at path
// until ctx is done. Records present when Follow starts are skipped unless
// WithBacklog is given.
func Follow(ctx context.Context, path string, fn func(history.Record), opts ...Option) error {
	f := &follower{
		path:   filepath.Clean(path),
		fn:     fn,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	records, err := history.ReadFile(f.path)
	if err != nil {
		f.logger.Warn("failed to read history", "path", f.path, "error", err)
	}
	f.seen = len(records)
	if f.backlog > 0 {
		start := max(len(records)-f.backlog, 0)
		for _, rec := range records[start:] {
			f.fn(rec)
		}
	}

	if f.ready != nil {
		f.ready()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			f.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("file watcher error", "error", err)
		}
	}
}

// reload emits records beyond the last seen count. A shorter file means the
// log was replaced, so the count is reset without emitting anything.
func (f *follower) reload() {
	records, err := history.ReadFile(f.path)
	if err != nil {
		f.logger.Debug("history not readable yet", "path", f.path, "error", err)
		return
	}

	if len(records) < f.seen {
		f.logger.Info("history file replaced", "path", f.path, "records", len(records))
		f.seen = len(records)
		return
	}

	for _, rec := range records[f.seen:] {
		f.fn(rec)
	}
	f.seen = len(records)
}
