package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/output"
)

// historyFilter holds the flags shared by history and rollback, so row
// numbers printed by one are valid arguments to the other.
type historyFilter struct {
	pkg    string
	opType string
}

func (f *historyFilter) register(cmd *cobra.Command) {
	types := make([]string, 0, len(history.OperationTypes))
	for _, t := range history.OperationTypes {
		types = append(types, string(t))
	}
	cmd.Flags().StringVarP(&f.pkg, "package", "p", "", "only operations on this package")
	cmd.Flags().StringVarP(&f.opType, "type", "t", "", "only operations of this type ("+strings.Join(types, ", ")+")")
}

func (f *historyFilter) build(limit int) (history.Filter, error) {
	filter := history.Filter{Package: strings.TrimSpace(f.pkg), Limit: limit}
	if f.opType != "" {
		t, err := history.ParseOperationType(f.opType)
		if err != nil {
			return history.Filter{}, err
		}
		filter.Type = t
	}
	return filter, nil
}

func newHistoryCmd(o *rootOptions) *cobra.Command {
	var (
		filter historyFilter
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded package operations",
		Long: `Show recorded package operations, newest first.

The number in the first column identifies the operation for
'piptrack rollback'. Pass the same --package and --type filters to
rollback that were used here.`,
		Example: `  piptrack history
  piptrack history --package requests
  piptrack history --type update --limit 5
  piptrack history --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			a := o.app

			f, err := filter.build(limit)
			if err != nil {
				return err
			}
			records := a.History.Query(f)

			if asJSON {
				enc := json.NewEncoder(a.Stdout)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				if records == nil {
					records = []history.Record{}
				}
				return enc.Encode(records)
			}

			fmt.Fprint(a.Stdout, output.RenderHistoryTable(records))
			if total := a.History.Len(); len(records) > 0 && len(records) < total {
				fmt.Fprintf(a.Stdout, "\nShowing %d of %d recorded operations\n", len(records), total)
			}
			return nil
		},
	}

	filter.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many operations (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")

	return cmd
}
