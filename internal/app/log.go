package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// logHandler is a slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// Every record goes to the log file; records at or above mirrorLevel are
// also written to the mirror (stderr).
type logHandler struct {
	mu          *sync.Mutex
	file        io.Writer
	mirror      io.Writer
	mirrorLevel slog.Level
	runID       string
	attrs       []slog.Attr
}

func (h *logHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.file != nil || (h.mirror != nil && level >= h.mirrorLevel)
}

func (h *logHandler) Handle(_ context.Context, r slog.Record) error {
	line := h.format(r)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file != nil {
		if _, err := io.WriteString(h.file, line); err != nil {
			return err
		}
	}
	if h.mirror != nil && r.Level >= h.mirrorLevel {
		if _, err := io.WriteString(h.mirror, line); err != nil {
			return err
		}
	}
	return nil
}

func (h *logHandler) format(r slog.Record) string {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	line := fmt.Sprintf("%s\t%s\t%s\t%s", ts, r.Level.String(), h.runID, r.Message)

	for _, a := range h.attrs {
		line += fmt.Sprintf("\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf("\t%s=%v", a.Key, a.Value)
		return true
	})
	return line + "\n"
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *logHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger writing to logPath, mirroring
// warnings and errors to stderr (everything when verbose). If the log file
// cannot be opened the logger writes to stderr only and the error is
// returned alongside it.
func newLogger(logPath, runID string, verbose bool, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	h := &logHandler{
		mu:          &sync.Mutex{},
		mirror:      stderr,
		mirrorLevel: slog.LevelWarn,
		runID:       runID,
	}
	if verbose {
		h.mirrorLevel = slog.LevelDebug
	}

	f, err := openLogFile(logPath)
	if err != nil {
		return slog.New(h), nil, err
	}
	h.file = f
	return slog.New(h), f, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
