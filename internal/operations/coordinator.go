// Package operations runs install, update, uninstall and rollback actions
// through the task runner and reports each outcome to the history log.
package operations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/tasks"
)

// ErrRequiredBy is returned when an uninstall is refused because other
// installed packages depend on the target.
var ErrRequiredBy = errors.New("package is required by other installed packages")

// Outcome is the payload of a finished install, update or uninstall task.
type Outcome struct {
	Kind    history.OperationType
	Package string
	Version string
	Success bool
	Details string
}

// RollbackResult is the payload of a finished rollback task.
type RollbackResult struct {
	Record  history.Record
	Success bool
	Message string
}

// Progress receives human-readable progress lines from bulk operations.
type Progress func(line string)

// Coordinator submits package actions to a task runner.
type Coordinator struct {
	gw      pip.Gateway
	runner  *tasks.Runner
	history *history.Store
	logger  *slog.Logger
}

// New creates a coordinator. When store is non-nil, it is subscribed to
// the runner so every Outcome is appended to the log.
func New(gw pip.Gateway, runner *tasks.Runner, store *history.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Coordinator{
		gw:      gw,
		runner:  runner,
		history: store,
		logger:  logger,
	}
	if store != nil {
		runner.Subscribe(Recorder(store))
	}
	return c
}

// Recorder returns a subscriber that appends every Outcome to store.
// Rollback tasks are ignored; the store records those itself.
func Recorder(store *history.Store) tasks.Subscriber {
	return func(ev tasks.Event) {
		out, ok := ev.Payload.(Outcome)
		if !ok {
			return
		}
		store.Append(out.Kind, out.Package, history.Version(out.Version), out.Success, out.Details)
	}
}

// Install installs name. When the package was already present the outcome
// is an update carrying the previous version.
func (c *Coordinator) Install(ctx context.Context, name string) (Outcome, error) {
	return c.await(ctx, c.submit(ctx, "install "+name, c.install, name))
}

// Update upgrades name to the latest release.
func (c *Coordinator) Update(ctx context.Context, name string) (Outcome, error) {
	return c.await(ctx, c.submit(ctx, "update "+name, c.update, name))
}

// Uninstall removes name unless another installed package requires it.
func (c *Coordinator) Uninstall(ctx context.Context, name string) (Outcome, error) {
	return c.await(ctx, c.submit(ctx, "uninstall "+name, c.uninstall, name))
}

// UpdateMany upgrades each package in order.
func (c *Coordinator) UpdateMany(ctx context.Context, names []string, progress Progress) []Outcome {
	return c.many(ctx, "update", "Updating", names, progress, c.Update)
}

// UninstallMany removes each package in order, skipping packages that
// others depend on.
func (c *Coordinator) UninstallMany(ctx context.Context, names []string, progress Progress) []Outcome {
	return c.many(ctx, "uninstall", "Uninstalling", names, progress, c.Uninstall)
}

// Rollback reverts rec on a task. The history store appends the rollback
// record itself.
func (c *Coordinator) Rollback(ctx context.Context, rec history.Record) (RollbackResult, error) {
	if c.history == nil {
		return RollbackResult{}, errors.New("no history store configured")
	}

	bg := context.WithoutCancel(ctx)
	task := c.runner.Submit("rollback "+rec.Package, func() (any, error) {
		ok, msg := c.history.Rollback(bg, rec)
		return RollbackResult{Record: rec, Success: ok, Message: msg}, nil
	})

	ev, err := task.Wait(ctx)
	if err != nil {
		return RollbackResult{}, err
	}
	if ev.Err != nil {
		return RollbackResult{}, ev.Err
	}
	return ev.Payload.(RollbackResult), nil
}

type action func(ctx context.Context, name string) (Outcome, error)

// submit starts fn on the runner. The action runs detached from ctx
// cancellation; a caller that stops waiting does not abort pip.
func (c *Coordinator) submit(ctx context.Context, taskName string, fn action, name string) *tasks.Task {
	bg := context.WithoutCancel(ctx)
	return c.runner.Submit(taskName, func() (any, error) {
		return fn(bg, name)
	})
}

func (c *Coordinator) await(ctx context.Context, task *tasks.Task) (Outcome, error) {
	ev, err := task.Wait(ctx)
	if err != nil {
		return Outcome{}, err
	}
	out, _ := ev.Payload.(Outcome)
	return out, ev.Err
}

func (c *Coordinator) many(ctx context.Context, verb, gerund string, names []string, progress Progress, fn func(context.Context, string) (Outcome, error)) []Outcome {
	if progress == nil {
		progress = func(string) {}
	}

	var pending []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			pending = append(pending, n)
		}
	}

	total := len(pending)
	progress(fmt.Sprintf("Starting %s of %d packages...", verb, total))

	outcomes := make([]Outcome, 0, total)
	for i, name := range pending {
		if ctx.Err() != nil {
			progress(fmt.Sprintf("Stopped: %v", ctx.Err()))
			break
		}

		progress(fmt.Sprintf("[%d/%d] %s %s...", i+1, total, gerund, name))
		out, err := fn(ctx, name)
		switch {
		case errors.Is(err, ErrRequiredBy):
			progress(fmt.Sprintf("Skipping %s: %s", name, out.Details))
		case err != nil:
			progress(fmt.Sprintf("Error: %s: %v", name, err))
		case out.Success:
			progress(fmt.Sprintf("Success: %s", firstLine(out.Details)))
		default:
			progress(fmt.Sprintf("Failed: %s", firstLine(out.Details)))
		}
		if out.Package != "" {
			outcomes = append(outcomes, out)
		}
	}

	progress(fmt.Sprintf("Finished %s.", verb))
	return outcomes
}

func (c *Coordinator) install(ctx context.Context, name string) (Outcome, error) {
	previous, err := pip.InstalledVersion(ctx, c.gw, name)
	if err != nil {
		c.logger.Warn("could not read installed version", "package", name, "error", err)
	}

	kind := history.OpInstall
	if previous != "" {
		kind = history.OpUpdate
	}

	res, err := c.gw.Install(ctx, name, false)
	if err != nil {
		return failed(kind, name, previous, err), err
	}

	version := previous
	if kind == history.OpInstall && res.Success() {
		if version, err = pip.InstalledVersion(ctx, c.gw, name); err != nil {
			c.logger.Warn("could not read new version", "package", name, "error", err)
		}
	}

	return Outcome{Kind: kind, Package: name, Version: version, Success: res.Success(), Details: res.Output()}, nil
}

func (c *Coordinator) update(ctx context.Context, name string) (Outcome, error) {
	previous, err := pip.InstalledVersion(ctx, c.gw, name)
	if err != nil {
		c.logger.Warn("could not read installed version", "package", name, "error", err)
	}

	res, err := c.gw.Install(ctx, name, true)
	if err != nil {
		return failed(history.OpUpdate, name, previous, err), err
	}
	return Outcome{Kind: history.OpUpdate, Package: name, Version: previous, Success: res.Success(), Details: res.Output()}, nil
}

func (c *Coordinator) uninstall(ctx context.Context, name string) (Outcome, error) {
	var version string
	info, err := pip.GetPackageInfo(ctx, c.gw, name)
	switch {
	case err == nil:
		version = info.Version
		if len(info.RequiredBy) > 0 {
			required := strings.Join(info.RequiredBy, ", ")
			out := Outcome{
				Kind:    history.OpUninstall,
				Package: name,
				Version: version,
				Details: "Package is required by: " + required,
			}
			return out, fmt.Errorf("%s: %w: %s", name, ErrRequiredBy, required)
		}
	case errors.Is(err, pip.ErrNotInstalled):
		// pip reports the missing package itself.
	default:
		c.logger.Warn("could not read package metadata", "package", name, "error", err)
	}

	res, err := c.gw.Uninstall(ctx, name)
	if err != nil {
		return failed(history.OpUninstall, name, version, err), err
	}
	return Outcome{Kind: history.OpUninstall, Package: name, Version: version, Success: res.Success(), Details: res.Output()}, nil
}

func failed(kind history.OperationType, name, version string, err error) Outcome {
	return Outcome{Kind: kind, Package: name, Version: version, Details: err.Error()}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
