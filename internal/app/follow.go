package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/watcher"
)

func newFollowCmd(o *rootOptions) *cobra.Command {
	var backlog int

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Print operations as they are recorded",
		Long: `Watch the history file and print every operation recorded by other
piptrack processes, until interrupted with Ctrl-C.`,
		Example: `  # Follow new operations
  piptrack follow

  # Show the last 5 operations first
  piptrack follow --backlog 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return followHistory(ctx, a, backlog)
		},
	}

	cmd.Flags().IntVar(&backlog, "backlog", 0, "print this many existing operations first")

	return cmd
}

func followHistory(ctx context.Context, a *App, backlog int) error {
	path := a.History.Path()
	return watcher.Follow(ctx, path, func(rec history.Record) {
		fmt.Fprintln(a.Stdout, formatFollowLine(rec))
	},
		watcher.WithLogger(a.Logger),
		watcher.WithBacklog(backlog),
		watcher.WithReady(func() {
			fmt.Fprintf(a.Stderr, "Following %s (Ctrl-C to stop)\n", path)
		}))
}

// formatFollowLine renders one record as a single log-style line.
func formatFollowLine(rec history.Record) string {
	mark := "✓"
	if !rec.Success {
		mark = "✗"
	}
	line := fmt.Sprintf("%s %s %-20s %s", rec.Date, mark, rec.Type.Label(), rec.Package)
	if v := rec.VersionString(); v != "" {
		line += " " + v
	}
	return line
}
