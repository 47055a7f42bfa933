package pip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single pip invocation when no timeout is configured.
const DefaultTimeout = 10 * time.Minute

// Gateway is the boundary through which piptrack issues pip commands.
// The error return is reserved for invocations that could not run at all
// (missing binary, timeout); a failing pip command yields a Result with a
// non-zero ExitCode.
type Gateway interface {
	Install(ctx context.Context, name string, upgrade bool) (*Result, error)
	InstallPinned(ctx context.Context, name, version string) (*Result, error)
	Uninstall(ctx context.Context, name string) (*Result, error)
	Show(ctx context.Context, name string) (*Result, error)
	ShowFiles(ctx context.Context, name string) (*Result, error)
	List(ctx context.Context) (*Result, error)
	ListOutdated(ctx context.Context) (*Result, error)
}

// Runner is the exec-backed Gateway.
type Runner struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner. command is the pip invocation prefix, e.g.
// []string{"pip3"} or []string{"python3", "-m", "pip"}.
func NewRunner(command []string, timeout time.Duration, logger *slog.Logger) (*Runner, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("pip command cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{command: command, timeout: timeout, logger: logger}, nil
}

// Command returns the pip invocation prefix.
func (r *Runner) Command() []string {
	return append([]string(nil), r.command...)
}

// Install runs `pip install [--upgrade] name`.
func (r *Runner) Install(ctx context.Context, name string, upgrade bool) (*Result, error) {
	return r.run(ctx, installArgs(name, upgrade)...)
}

// InstallPinned runs `pip install name==version`.
func (r *Runner) InstallPinned(ctx context.Context, name, version string) (*Result, error) {
	return r.run(ctx, pinnedArgs(name, version)...)
}

// Uninstall runs `pip uninstall -y name`. Confirmation is the caller's job.
func (r *Runner) Uninstall(ctx context.Context, name string) (*Result, error) {
	return r.run(ctx, "uninstall", "-y", name)
}

// Show runs `pip show name`.
func (r *Runner) Show(ctx context.Context, name string) (*Result, error) {
	return r.run(ctx, "show", name)
}

// ShowFiles runs `pip show -f name`.
func (r *Runner) ShowFiles(ctx context.Context, name string) (*Result, error) {
	return r.run(ctx, "show", "-f", name)
}

// List runs `pip list --format=json`.
func (r *Runner) List(ctx context.Context) (*Result, error) {
	return r.run(ctx, "list", "--format=json")
}

// ListOutdated runs `pip list --outdated --format=json`.
func (r *Runner) ListOutdated(ctx context.Context) (*Result, error) {
	return r.run(ctx, "list", "--outdated", "--format=json")
}

func installArgs(name string, upgrade bool) []string {
	args := []string{"install"}
	if upgrade {
		args = append(args, "--upgrade")
	}
	return append(args, name)
}

func pinnedArgs(name, version string) []string {
	return []string{"install", fmt.Sprintf("%s==%s", name, version)}
}

func (r *Runner) run(ctx context.Context, args ...string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := append(append([]string{}, r.command[1:]...), args...)
	cmd := exec.CommandContext(ctx, r.command[0], argv...)
	cmd.Env = append(os.Environ(), "PIP_DISABLE_PIP_VERSION_CHECK=1", "PYTHONIOENCODING=utf-8")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("pip command finished",
		"args", strings.Join(args, " "),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("pip %s: %w", strings.Join(args, " "), ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Result{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, nil
		}
		return nil, fmt.Errorf("pip %s failed to start: %w", strings.Join(args, " "), err)
	}

	return &Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
