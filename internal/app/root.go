package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/pip"
)

// rootOptions carries the persistent flags and the App built from them.
type rootOptions struct {
	configPath  string
	historyPath string
	dbPath      string
	pip         string
	verbose     bool

	gateway     pip.Gateway
	interactive func() bool

	app *App
}

// Option customizes the command tree, mainly for tests.
type Option func(*rootOptions)

// WithGateway replaces the pip gateway. Without it the pip command is
// detected on first use.
func WithGateway(gw pip.Gateway) Option {
	return func(o *rootOptions) { o.gateway = gw }
}

// WithInteractive overrides the terminal check used by confirmation prompts.
func WithInteractive(interactive bool) Option {
	return func(o *rootOptions) { o.interactive = func() bool { return interactive } }
}

// NewRootCmd builds the piptrack command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	o := &rootOptions{}
	for _, opt := range opts {
		opt(o)
	}

	root := &cobra.Command{
		Use:   "piptrack",
		Short: "pip wrapper with operation history and rollback",
		Long: `piptrack runs pip install, update and uninstall for you and records every
operation in a history log, so any install, update or uninstall can be
rolled back later.

Quick Start:
  1. piptrack scan
  2. piptrack install requests
  3. piptrack history
  4. piptrack rollback 1

Features:
  • Operation history with timestamps, versions and outcomes
  • One-command rollback of installs, updates and uninstalls
  • Cached package inventory with outdated and size information
  • Dependency-aware uninstall

Examples:
  # List installed packages with available updates
  piptrack list

  # Update everything that is outdated
  piptrack update --all

  # Show the last 10 operations
  piptrack history --limit 10

  # Undo the most recent operation that can be rolled back
  piptrack rollback latest`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(o, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			o.app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return o.closeApp()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "piptrack: pip wrapper with operation history and rollback")
			fmt.Fprintln(out)
			if !o.app.InventoryExists() {
				fmt.Fprintln(out, "Run 'piptrack scan' to build the package inventory.")
			} else {
				fmt.Fprintln(out, "Tip: Run 'piptrack list' to see installed packages.")
				fmt.Fprintln(out, "     Run 'piptrack history' to see recorded operations.")
			}
			fmt.Fprintln(out, "Run 'piptrack --help' for all commands.")
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/piptrack/config.toml)")
	flags.StringVar(&o.historyPath, "history", "", "history file (default: ~/.piptrack/package_history.json)")
	flags.StringVar(&o.dbPath, "db", "", "inventory database path (default: ~/.piptrack/piptrack.db)")
	flags.StringVar(&o.pip, "pip", "", "pip command to run, e.g. \"python3.12 -m pip\" (default: auto-detect)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "mirror all log output to stderr")

	root.SuggestionsMinimumDistance = 2

	root.AddCommand(
		newListCmd(o),
		newOutdatedCmd(o),
		newScanCmd(o),
		newShowCmd(o),
		newInstallCmd(o),
		newUpdateCmd(o),
		newUninstallCmd(o),
		newHistoryCmd(o),
		newRollbackCmd(o),
		newSizesCmd(o),
		newFollowCmd(o),
		newStatsCmd(o),
		newDoctorCmd(o),
		newConfigCmd(o),
	)

	return root
}

// closeApp tears down the App. It is safe to call more than once; cobra
// skips PersistentPostRunE when a command fails, so Run calls it too.
func (o *rootOptions) closeApp() error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

// Run executes the command tree with args against the given streams.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, opts ...Option) error {
	var o *rootOptions
	opts = append(opts, func(ro *rootOptions) { o = ro })

	root := NewRootCmd(opts...)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := o.closeApp(); err == nil {
		err = closeErr
	}
	return err
}

// Execute runs piptrack with the process arguments and standard streams.
func Execute(ctx context.Context) error {
	return Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
