package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/output"
	"github.com/blackwell-systems/piptrack/internal/pip"
)

func newShowCmd(o *rootOptions) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "show <package>",
		Short: "Show package details and its recorded operations",
		Long: `Show what pip knows about an installed package, followed by the most
recent operations piptrack recorded for it.

Packages that are no longer installed still show their history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			name := a.Config.Resolve(args[0])

			info, err := pip.GetPackageInfo(cmd.Context(), a.Gateway, name)
			records := a.History.Query(history.Filter{Package: name, Limit: recent})

			switch {
			case errors.Is(err, pip.ErrNotInstalled):
				if len(records) == 0 {
					return fmt.Errorf("package %q is not installed", name)
				}
				fmt.Fprintf(a.Stdout, "%s is not installed.\n", name)
			case err != nil:
				return err
			default:
				fmt.Fprint(a.Stdout, output.RenderPackageInfo(info))
			}

			if len(records) > 0 {
				fmt.Fprintf(a.Stdout, "\nRecent operations:\n")
				fmt.Fprint(a.Stdout, output.RenderHistoryTable(records))
				fmt.Fprintf(a.Stdout, "\nRun 'piptrack history --package %s' for the full list.\n", name)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 5, "number of recent operations to show")

	return cmd
}
