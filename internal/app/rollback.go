package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/output"
)

func newRollbackCmd(o *rootOptions) *cobra.Command {
	var (
		filter historyFilter
		list   bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "rollback [<n> | latest]",
		Short: "Undo a recorded operation",
		Long: `Undo a recorded install, update or uninstall.

  install     the package is uninstalled
  update      the previously installed version is reinstalled
  uninstall   the removed version is reinstalled

The rollback itself is recorded, but rollbacks cannot be rolled back.
Failed operations and operations without a recorded version (other than
installs) cannot be rolled back either.

Arguments:
  n        Row number from 'piptrack history' (with the same filters)
  latest   The most recent operation that can be rolled back`,
		Example: `  piptrack rollback --list         # Recorded operations and their rollback status
  piptrack rollback latest         # Undo the most recent one
  piptrack rollback 3              # Undo row 3 of 'piptrack history'
  piptrack rollback 1 -p requests  # Undo the newest requests operation`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app

			f, err := filter.build(0)
			if err != nil {
				return err
			}
			records := a.History.Query(f)

			if list {
				eligible := 0
				for _, rec := range records {
					if a.History.CanRollback(rec) {
						eligible++
					}
				}
				if eligible == 0 {
					fmt.Fprintln(a.Stdout, "No operations can be rolled back.")
					return nil
				}
				fmt.Fprint(a.Stdout, output.RenderHistoryTable(records))
				fmt.Fprintf(a.Stdout, "\n%d operations can be rolled back.\n", eligible)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("operation number or 'latest' required\n\nUsage: piptrack rollback [<n> | latest]\n\nUse 'piptrack history' to see recorded operations")
			}

			rec, err := selectRecord(records, args[0], func() (history.Record, bool) {
				return a.History.Latest(f)
			})
			if err != nil {
				return err
			}

			fmt.Fprint(a.Stdout, output.RenderRecord(rec))
			fmt.Fprintln(a.Stdout)

			if !a.History.CanRollback(rec) {
				return errors.New(history.MessageNotRollbackable)
			}

			if t, ok := history.RollbackType(rec.Type); ok {
				fmt.Fprintf(a.Stdout, "Rollback will perform: %s\n\n", t.Label())
			}
			if err := a.confirm("Roll back this operation?", yes); err != nil {
				if errors.Is(err, errNotConfirmed) {
					fmt.Fprintln(a.Stdout, "Rollback cancelled.")
					return nil
				}
				return err
			}

			spinner := output.NewSpinner(a.Stdout, fmt.Sprintf("Rolling back %s", rec.Package)).WithTimeout(a.Timeout)
			spinner.Start()
			res, err := a.Ops.Rollback(cmd.Context(), rec)
			spinner.Stop()
			if err != nil {
				return err
			}

			a.refreshInventory(cmd.Context(), []string{rec.Package})
			if !res.Success {
				fmt.Fprintf(a.Stdout, "✗ %s\n", firstLine(res.Message))
				return errors.New("rollback failed")
			}
			fmt.Fprintf(a.Stdout, "✓ %s\n", res.Message)
			return nil
		},
	}

	filter.register(cmd)
	cmd.Flags().BoolVar(&list, "list", false, "list operations that can be rolled back")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// selectRecord picks a record by 1-based row number, or asks latest for the
// newest record that can be rolled back.
func selectRecord(records []history.Record, arg string, latest func() (history.Record, bool)) (history.Record, error) {
	if strings.EqualFold(arg, "latest") {
		if rec, ok := latest(); ok {
			return rec, nil
		}
		return history.Record{}, errors.New("no operation can be rolled back")
	}

	n, err := strconv.Atoi(arg)
	if err != nil {
		return history.Record{}, fmt.Errorf("invalid operation number %q: expected a number or 'latest'", arg)
	}
	if n < 1 || n > len(records) {
		if len(records) == 0 {
			return history.Record{}, errors.New("no operations recorded")
		}
		return history.Record{}, fmt.Errorf("operation %d not found: history has %d entries", n, len(records))
	}
	return records[n-1], nil
}
