package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/output"
	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/scanner"
	"github.com/blackwell-systems/piptrack/internal/store"
)

func newScanCmd(o *rootOptions) *cobra.Command {
	var (
		sizes bool
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan and index installed pip packages",
		Long: `Scan all installed packages and store them in the piptrack inventory.

This command lists packages via pip, checks which have newer releases and
optionally measures how much disk space each one uses. Other commands read
the cached inventory instead of running pip every time.

The scan command should be run:
  • After installing piptrack for the first time
  • After installing or removing packages with pip directly
  • Periodically to refresh outdated information`,
		Example: `  # Scan all packages
  piptrack scan

  # Scan and measure disk usage (slower)
  piptrack scan --sizes

  # Scan quietly
  piptrack scan --quiet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app

			st, err := a.Inventory()
			if err != nil {
				return err
			}
			before, err := st.ListPackages()
			if err != nil && !errors.Is(err, store.ErrNotInitialized) {
				return err
			}

			scan, err := a.runScan(cmd.Context(), scanner.Options{WithSizes: sizes})
			if err != nil {
				return err
			}
			if quiet {
				return nil
			}

			after, err := st.ListPackages()
			if err != nil {
				return err
			}

			fmt.Fprintf(a.Stdout, "✓ %s\n", output.RenderScanSummary(scan))
			if before != nil {
				c := diffInventory(before, after)
				if c.empty() {
					fmt.Fprintln(a.Stdout, "  No changes since last scan")
				} else {
					fmt.Fprintf(a.Stdout, "  %d added, %d removed, %d changed version\n",
						len(c.added), len(c.removed), len(c.changed))
				}
			}
			if scan.OutdatedCount > 0 {
				fmt.Fprintln(a.Stdout, "\nRun 'piptrack outdated' to see available updates.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sizes, "sizes", false, "measure the disk usage of every package")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress output")

	return cmd
}

type inventoryChanges struct {
	added   []string
	removed []string
	changed []string
}

func (c inventoryChanges) empty() bool {
	return len(c.added) == 0 && len(c.removed) == 0 && len(c.changed) == 0
}

// diffInventory compares two inventories by normalized name.
func diffInventory(before, after []*store.Package) inventoryChanges {
	old := make(map[string]*store.Package, len(before))
	for _, p := range before {
		old[pip.NormalizeName(p.Name)] = p
	}

	var c inventoryChanges
	for _, p := range after {
		key := pip.NormalizeName(p.Name)
		prev, ok := old[key]
		switch {
		case !ok:
			c.added = append(c.added, p.Name)
		case prev.Version != p.Version:
			c.changed = append(c.changed, p.Name)
		}
		delete(old, key)
	}
	for _, p := range before {
		if _, ok := old[pip.NormalizeName(p.Name)]; ok {
			c.removed = append(c.removed, p.Name)
		}
	}
	return c
}
