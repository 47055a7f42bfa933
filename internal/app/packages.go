package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/operations"
	"github.com/blackwell-systems/piptrack/internal/output"
	"github.com/blackwell-systems/piptrack/internal/pip"
)

func newInstallCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install <package>...",
		Short: "Install packages and record the operation",
		Long: `Install one or more packages with pip and record each operation.

Installing a package that is already present is recorded as an update
carrying the previously installed version, so it can be rolled back.

Version specifiers are passed through to pip:
  piptrack install "requests==2.31.0" "urllib3<2"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			names := a.Config.ResolveAll(args)
			return a.runEach(cmd.Context(), names, "Installing", a.Ops.Install)
		},
	}
}

func newUpdateCmd(o *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "update [<package>...]",
		Short: "Update packages to their latest release",
		Long: `Update the named packages, or every outdated package with --all.

Each update records the version that was installed before, so
'piptrack rollback' can restore it.`,
		Example: `  # Update one package
  piptrack update requests

  # Update everything pip reports as outdated
  piptrack update --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			ctx := cmd.Context()

			if all && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with package names")
			}
			if !all && len(args) == 0 {
				return fmt.Errorf("no packages specified\n\nTry:\n  piptrack update <package>\n  piptrack update --all")
			}

			names := a.Config.ResolveAll(args)
			if all {
				spinner := output.NewSpinner(a.Stdout, "Checking for updates")
				spinner.Start()
				outdated, err := a.outdatedNames(ctx)
				spinner.Stop()
				if err != nil {
					return err
				}
				if len(outdated) == 0 {
					fmt.Fprintln(a.Stdout, "✓ All packages are up to date.")
					return nil
				}
				names = outdated
			}

			if len(names) == 1 {
				return a.runEach(ctx, names, "Updating", a.Ops.Update)
			}
			outcomes := a.Ops.UpdateMany(ctx, names, a.progressLine)
			a.refreshInventory(ctx, names)
			return failureCount(countFailed(outcomes, len(names)), len(names))
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "update every outdated package")

	return cmd
}

func newUninstallCmd(o *rootOptions) *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "uninstall <package>...",
		Short: "Uninstall packages and record the operation",
		Long: `Uninstall one or more packages with pip and record each operation.

Packages that other installed packages depend on are skipped. The
installed version is recorded so 'piptrack rollback' can reinstall it.`,
		Example: `  # Preview what would happen
  piptrack uninstall flask --dry-run

  # Uninstall without prompting
  piptrack uninstall flask itsdangerous --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			ctx := cmd.Context()
			names := a.Config.ResolveAll(args)

			a.printUninstallPlan(ctx, names)
			if dryRun {
				fmt.Fprintln(a.Stdout, "Dry-run mode: no packages will be removed.")
				return nil
			}

			question := fmt.Sprintf("Uninstall %d package(s)?", len(names))
			if err := a.confirm(question, yes); err != nil {
				if errors.Is(err, errNotConfirmed) {
					fmt.Fprintln(a.Stdout, "Uninstall cancelled.")
					return nil
				}
				return err
			}

			if len(names) == 1 {
				return a.runEach(ctx, names, "Uninstalling", a.Ops.Uninstall)
			}
			outcomes := a.Ops.UninstallMany(ctx, names, a.progressLine)
			a.refreshInventory(ctx, names)
			return failureCount(countFailed(outcomes, len(names)), len(names))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be removed without removing")

	return cmd
}

// printUninstallPlan lists the packages about to be removed with their
// versions, cached sizes and any packages that depend on them.
func (a *App) printUninstallPlan(ctx context.Context, names []string) {
	var total int64
	fmt.Fprintf(a.Stdout, "Packages to uninstall:\n\n")
	for _, name := range names {
		info, err := pip.GetPackageInfo(ctx, a.Gateway, name)
		if err != nil {
			fmt.Fprintf(a.Stdout, "  %-28s not installed\n", name)
			continue
		}

		size := int64(-1)
		if a.scanned() {
			if st, err := a.Inventory(); err == nil {
				if p, err := st.GetPackage(info.Name); err == nil && p.Measured() {
					size = p.SizeBytes
					total += size
				}
			}
		}
		fmt.Fprintf(a.Stdout, "  %-28s %-14s %s\n", info.Name, info.Version, output.FormatSize(size))
		if len(info.RequiredBy) > 0 {
			fmt.Fprintf(a.Stdout, "    ⚠ required by: %s (will be skipped)\n", strings.Join(info.RequiredBy, ", "))
		}
	}
	if total > 0 {
		fmt.Fprintf(a.Stdout, "\n  Disk space to free: %s\n", output.FormatSize(total))
	}
	fmt.Fprintln(a.Stdout)
}

// runEach runs fn for every name with a spinner, printing one result line
// per package.
func (a *App) runEach(ctx context.Context, names []string, gerund string, fn func(context.Context, string) (operations.Outcome, error)) error {
	failed := 0
	for _, name := range names {
		spinner := output.NewSpinner(a.Stdout, fmt.Sprintf("%s %s", gerund, name)).WithTimeout(a.Timeout)
		spinner.Start()
		out, err := fn(ctx, name)
		spinner.Stop()

		if !out.Success || err != nil {
			failed++
		}
		fmt.Fprintln(a.Stdout, describeOutcome(name, out, err))
	}

	a.refreshInventory(ctx, names)
	return failureCount(failed, len(names))
}

// progressLine prints bulk operation progress.
func (a *App) progressLine(line string) {
	fmt.Fprintln(a.Stdout, line)
}

// describeOutcome renders the one-line result of a package operation.
func describeOutcome(name string, out operations.Outcome, err error) string {
	switch {
	case errors.Is(err, operations.ErrRequiredBy):
		return fmt.Sprintf("✗ Skipped %s: %s", name, out.Details)
	case err != nil:
		return fmt.Sprintf("✗ %s %s failed: %v", verbFor(out.Kind), name, err)
	case !out.Success:
		return fmt.Sprintf("✗ Failed to %s %s: %s", strings.ToLower(verbFor(out.Kind)), name, firstLine(out.Details))
	}

	switch out.Kind {
	case history.OpInstall:
		if out.Version != "" {
			return fmt.Sprintf("✓ Installed %s %s", name, out.Version)
		}
		return fmt.Sprintf("✓ Installed %s", name)
	case history.OpUpdate:
		if out.Version != "" {
			return fmt.Sprintf("✓ Updated %s (was %s)", name, out.Version)
		}
		return fmt.Sprintf("✓ Updated %s", name)
	case history.OpUninstall:
		if out.Version != "" {
			return fmt.Sprintf("✓ Uninstalled %s %s", name, out.Version)
		}
		return fmt.Sprintf("✓ Uninstalled %s", name)
	}
	return fmt.Sprintf("✓ %s", name)
}

func verbFor(kind history.OperationType) string {
	switch kind {
	case history.OpUpdate:
		return "Update"
	case history.OpUninstall:
		return "Uninstall"
	default:
		return "Install"
	}
}

// countFailed counts failures among bulk outcomes. Names that produced no
// outcome at all (errors before pip ran, or cancellation) count as failed.
func countFailed(outcomes []operations.Outcome, total int) int {
	ok := 0
	for _, out := range outcomes {
		if out.Success {
			ok++
		}
	}
	return total - ok
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
