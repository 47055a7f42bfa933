package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/piptrack/internal/config"
	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/operations"
	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/scanner"
	"github.com/blackwell-systems/piptrack/internal/store"
	"github.com/blackwell-systems/piptrack/internal/tasks"
)

// App holds everything a command needs for one invocation. It is built
// before the command runs and closed afterwards.
type App struct {
	Config     *config.Config
	ConfigPath string
	Timeout    time.Duration
	Logger     *slog.Logger

	Gateway pip.Gateway
	History *history.Store
	Runner  *tasks.Runner
	Ops     *operations.Coordinator

	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	interactive func() bool

	dbPath    string
	inventory *store.Store
	logFile   io.Closer
}

// newApp loads configuration, applies flag overrides and wires the
// components together.
func newApp(o *rootOptions, stdin io.Reader, stdout, stderr io.Writer) (*App, error) {
	cfgPath := o.configPath
	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if o.pip != "" {
		cfg.PipBinary = o.pip
	}
	if o.historyPath != "" {
		cfg.HistoryFile = o.historyPath
	}
	if o.dbPath != "" {
		cfg.Database = o.dbPath
	}

	timeout, err := cfg.Timeout(pip.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	historyPath, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()[:8]
	logger, logFile, err := newLogger(logPath, runID, o.verbose, stderr)
	if err != nil {
		logger.Warn("file logging disabled", "path", logPath, "error", err)
	}

	a := &App{
		Config:     cfg,
		ConfigPath: cfgPath,
		Timeout:    timeout,
		Logger:     logger,
		Stdin:      stdin,
		Stdout:     stdout,
		Stderr:     stderr,
		dbPath:     dbPath,
		logFile:    logFile,
	}

	a.interactive = o.interactive
	if a.interactive == nil {
		a.interactive = func() bool { return stdinIsTerminal(stdin) }
	}

	if o.gateway != nil {
		a.Gateway = o.gateway
	} else {
		a.Gateway = &lazyGateway{resolve: a.resolvePip}
	}

	a.History = history.Open(historyPath,
		history.WithLogger(logger),
		history.WithGateway(a.Gateway))
	a.Runner = tasks.NewRunner(logger)
	a.Ops = operations.New(a.Gateway, a.Runner, a.History, logger)

	logger.Debug("piptrack started",
		"config", cfgPath,
		"history", historyPath,
		"database", dbPath,
		"timeout", timeout)

	return a, nil
}

func (a *App) resolvePip() (pip.Gateway, error) {
	cmd, err := pip.Detect(a.Config.PipBinary)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("using pip", "command", cmd)
	return pip.NewRunner(cmd, a.Timeout, a.Logger)
}

// Inventory opens the SQLite inventory on first use.
func (a *App) Inventory() (*store.Store, error) {
	if a.inventory != nil {
		return a.inventory, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := store.New(a.dbPath)
	if err != nil {
		return nil, err
	}
	a.inventory = st
	return st, nil
}

// InventoryExists reports whether a database file is present.
func (a *App) InventoryExists() bool {
	_, err := os.Stat(a.dbPath)
	return err == nil
}

// Scanner returns a scanner over the inventory.
func (a *App) Scanner() (*scanner.Scanner, error) {
	st, err := a.Inventory()
	if err != nil {
		return nil, err
	}
	return scanner.New(st, a.Gateway, a.Logger), nil
}

// Close drains pending task events into the history log and releases files.
func (a *App) Close() error {
	a.Runner.Close()

	var errs []error
	if a.inventory != nil {
		errs = append(errs, a.inventory.Close())
		a.inventory = nil
	}
	if err := a.History.SaveErr(); err != nil {
		fmt.Fprintf(a.Stderr, "Warning: history could not be saved to %s: %v\n", a.History.Path(), err)
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
		a.logFile = nil
	}
	return errors.Join(errs...)
}
