// Package scanner refreshes the SQLite inventory cache from pip.
package scanner

import (
	"io"
	"log/slog"
	"time"

	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/store"
)

// Scanner manages the cached package inventory.
type Scanner struct {
	store  *store.Store
	gw     pip.Gateway
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Scanner backed by st and gw.
func New(st *store.Store, gw pip.Gateway, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scanner{store: st, gw: gw, logger: logger, now: time.Now}
}

// Options controls a Scan.
type Options struct {
	// WithSizes measures the on-disk size of every package.
	WithSizes bool
	// Progress, when set, is called after each package is measured.
	Progress func(done, total int)
}
