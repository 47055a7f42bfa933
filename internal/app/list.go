package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/output"
	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/scanner"
	"github.com/blackwell-systems/piptrack/internal/store"
)

func newListCmd(o *rootOptions) *cobra.Command {
	var (
		outdatedOnly bool
		filter       string
		refresh      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Long: `List installed packages from the inventory, with the latest available
version for packages that are outdated.

The inventory is built on first use and refreshed by 'piptrack scan'.

Examples:
  # All packages
  piptrack list

  # Packages whose name contains "django"
  piptrack list --filter django

  # Only packages with an update available
  piptrack list --outdated-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			ctx := cmd.Context()

			if refresh {
				if _, err := a.Inventory(); err != nil {
					return err
				}
				if _, err := a.runScan(ctx, scanner.Options{}); err != nil {
					return err
				}
			}
			st, err := a.ensureScanned(ctx)
			if err != nil {
				return err
			}

			pkgs, err := st.ListPackages()
			if err != nil {
				return err
			}

			var idx map[string]*store.Outdated
			if a.Config.CheckUpdates || outdatedOnly {
				rows, err := st.ListOutdated()
				if err != nil {
					return err
				}
				idx = output.OutdatedIndex(rows)
			}

			pkgs = filterPackages(pkgs, filter, outdatedOnly, idx)
			fmt.Fprint(a.Stdout, output.RenderPackageTable(pkgs, idx))
			fmt.Fprintf(a.Stdout, "\n%d packages\n", len(pkgs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&outdatedOnly, "outdated-only", false, "Show only packages with updates available")
	cmd.Flags().StringVar(&filter, "filter", "", "Show only packages whose name contains this text")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Rescan before listing")

	return cmd
}

// filterPackages applies the name filter and the outdated-only switch.
// Names are compared in their normalized form, so "typing_ext" matches
// typing-extensions.
func filterPackages(pkgs []*store.Package, filter string, outdatedOnly bool, idx map[string]*store.Outdated) []*store.Package {
	needle := pip.NormalizeName(strings.TrimSpace(filter))
	var out []*store.Package
	for _, p := range pkgs {
		if needle != "" && !strings.Contains(pip.NormalizeName(p.Name), needle) {
			continue
		}
		if outdatedOnly && idx[pip.NormalizeName(p.Name)] == nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func newOutdatedCmd(o *rootOptions) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "outdated",
		Short: "Show packages with newer releases",
		Long: `Show packages with a newer release on the index, with an estimate of how
risky each update is based on the version change.

  high     major version change
  medium   minor version change
  low      patch release

Results come from the last scan; use --refresh to ask pip again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			ctx := cmd.Context()

			if refresh {
				if _, err := a.Inventory(); err != nil {
					return err
				}
				if _, err := a.runScan(ctx, scanner.Options{}); err != nil {
					return err
				}
			}
			st, err := a.ensureScanned(ctx)
			if err != nil {
				return err
			}

			rows, err := st.ListOutdated()
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(a.Stdout, "✓ All packages are up to date.")
				return nil
			}

			fmt.Fprint(a.Stdout, output.RenderOutdatedTable(rows))
			fmt.Fprintf(a.Stdout, "\n%d packages can be updated. Run 'piptrack update --all' to update them.\n", len(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ask pip instead of using the last scan")

	return cmd
}
