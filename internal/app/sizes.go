package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/output"
)

func newSizesCmd(o *rootOptions) *cobra.Command {
	var (
		top    int
		cached bool
	)

	cmd := &cobra.Command{
		Use:   "sizes",
		Short: "Show the disk usage of installed packages",
		Long: `Measure the disk usage of every installed package and show the largest.

Sizes are computed from the files pip recorded for each package. Use
--cached to show the sizes stored by the last measurement without running
pip again.`,
		Example: `  # Measure everything and show the 10 largest
  piptrack sizes --top 10

  # Show previously measured sizes
  piptrack sizes --cached`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return fmt.Errorf("--top must not be negative")
			}
			a := o.app
			ctx := cmd.Context()

			st, err := a.ensureScanned(ctx)
			if err != nil {
				return err
			}

			if !cached {
				pkgs, err := st.ListPackages()
				if err != nil {
					return err
				}
				names := make([]string, 0, len(pkgs))
				for _, p := range pkgs {
					names = append(names, p.Name)
				}

				sc, err := a.Scanner()
				if err != nil {
					return err
				}
				bar := output.NewProgress(a.Stdout, len(names), "Measuring sizes")
				_, err = sc.MeasureSizes(ctx, names, bar.Update)
				bar.Finish()
				if err != nil {
					return err
				}
			}

			largest, err := st.LargestPackages(top)
			if err != nil {
				return err
			}
			fmt.Fprint(a.Stdout, output.RenderSizeTable(largest))
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 20, "number of packages to show (0 for all)")
	cmd.Flags().BoolVar(&cached, "cached", false, "use sizes from the last measurement")

	return cmd
}
