// Package history keeps the durable log of package operations and rolls
// individual operations back.
//
// The log is a single JSON document, {"operations": [...]}, loaded once when
// the store is opened and rewritten after every Append. Records are never
// edited or removed; a rollback is recorded as a new entry.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blackwell-systems/piptrack/internal/pip"
)

// Clock abstracts time retrieval so record timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Gateway is the subset of pip.Gateway that rollback needs.
type Gateway interface {
	Uninstall(ctx context.Context, name string) (*pip.Result, error)
	InstallPinned(ctx context.Context, name, version string) (*pip.Result, error)
}

// Store owns the operation log.
type Store struct {
	mu      sync.Mutex
	path    string
	records []Record
	saveErr error

	clock   Clock
	logger  *slog.Logger
	gateway Gateway
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp new records.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithGateway sets the gateway used by Rollback.
func WithGateway(gw Gateway) Option {
	return func(s *Store) { s.gateway = gw }
}

// Open loads the log at path. A missing file yields an empty log. An
// unreadable or malformed file also yields an empty log; the bad file is
// moved aside to path+".bak" so the next save does not destroy it.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		clock:  realClock{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	records, err := loadFile(path)
	if err != nil {
		s.logger.Warn("failed to load history, starting empty", "path", path, "error", err)
		if errors.Is(err, errMalformed) {
			if renameErr := os.Rename(path, path+".bak"); renameErr != nil {
				s.logger.Warn("failed to move malformed history aside", "path", path, "error", renameErr)
			}
		}
		records = nil
	}
	s.records = records

	return s
}

var errMalformed = errors.New("malformed history file")

// ReadFile returns the records stored at path in file order without opening
// a Store. A missing file yields no records.
func ReadFile(path string) ([]Record, error) {
	return loadFile(path)
}

func loadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc logFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return doc.Operations, nil
}

// Path returns the history file location.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of records in the log.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// SaveErr returns the error from the most recent save, or nil.
func (s *Store) SaveErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveErr
}

// Append records a new operation stamped with the current time, persists
// the whole log and returns the record. Persistence failures are logged and
// otherwise ignored.
func (s *Store) Append(opType OperationType, pkgName string, version *string, success bool, details string) Record {
	now := s.clock.Now()
	rec := Record{
		Timestamp: Timestamp{now},
		Date:      now.Format(DateLayout),
		Type:      opType,
		Package:   pkgName,
		Version:   version,
		Success:   success,
		Details:   details,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	s.saveErr = s.save()
	if s.saveErr != nil {
		s.logger.Warn("failed to save history", "path", s.path, "error", s.saveErr)
	}

	s.logger.Info("operation recorded",
		"type", string(opType),
		"package", pkgName,
		"version", rec.VersionString(),
		"success", success)

	return rec
}

// Query returns records matching f, newest first. Records with equal
// timestamps keep their insertion order. Package names match after PEP 503
// normalization. A positive Limit truncates the result.
func (s *Store) Query(f Filter) []Record {
	s.mu.Lock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if f.Package != "" && !pip.SameName(r.Package, f.Package) {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp.Time)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Latest returns the newest record matching f that can be rolled back.
// f.Limit is ignored.
func (s *Store) Latest(f Filter) (Record, bool) {
	f.Limit = 0
	for _, rec := range s.Query(f) {
		if CanRollback(rec) {
			return rec, true
		}
	}
	return Record{}, false
}

// save rewrites the history file atomically. Must be called with mu held.
func (s *Store) save() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	records := s.records
	if records == nil {
		records = []Record{}
	}
	if err := enc.Encode(logFile{Operations: records}); err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename history file: %w", err)
	}

	return nil
}
