package app

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/pip"
)

func newStatsCmd(o *rootOptions) *cobra.Command {
	var (
		days int
		pkg  string
		top  int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded operations",
		Long: `Summarize the operation history: how many operations of each type ran,
how many failed, and which packages changed most often.

Without flags, covers the last 30 days. Use --days 0 for the whole history.`,
		Example: `  # Last 30 days
  piptrack stats

  # Everything recorded for one package
  piptrack stats --days 0 --package numpy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("invalid days: %d (must not be negative)", days)
			}
			a := o.app

			var since time.Time
			if days > 0 {
				since = time.Now().AddDate(0, 0, -days)
			}
			s := summarizeHistory(a.History.Query(history.Filter{Package: pkg}), since)

			window := "all time"
			if days > 0 {
				window = fmt.Sprintf("last %d days", days)
			}
			fmt.Fprintf(a.Stdout, "Operations (%s): %d total, %d failed\n\n", window, s.total, s.failed)
			if s.total == 0 {
				return nil
			}

			for _, t := range history.OperationTypes {
				if n := s.byType[t]; n > 0 {
					fmt.Fprintf(a.Stdout, "  %-22s %d\n", t.Label(), n)
				}
			}

			if pkg == "" && len(s.packages) > 0 {
				fmt.Fprintf(a.Stdout, "\nMost changed packages:\n")
				for i, pc := range s.packages {
					if top > 0 && i >= top {
						break
					}
					fmt.Fprintf(a.Stdout, "  %-28s %d\n", pc.name, pc.count)
				}
			}
			if !s.last.IsZero() {
				fmt.Fprintf(a.Stdout, "\nLast operation: %s\n", s.last.Format(history.DateLayout))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "time window in days (0 for all)")
	cmd.Flags().StringVarP(&pkg, "package", "p", "", "only operations on this package")
	cmd.Flags().IntVar(&top, "top", 10, "number of packages to list")

	return cmd
}

type packageCount struct {
	name  string
	count int
}

type historyStats struct {
	total    int
	failed   int
	byType   map[history.OperationType]int
	packages []packageCount
	last     time.Time
}

// summarizeHistory counts records newer than since (zero means all).
// Packages are grouped by normalized name and sorted by count, then name.
func summarizeHistory(records []history.Record, since time.Time) historyStats {
	s := historyStats{byType: make(map[history.OperationType]int)}
	counts := make(map[string]*packageCount)

	for _, rec := range records {
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		s.total++
		if !rec.Success {
			s.failed++
		}
		s.byType[rec.Type]++
		if rec.Timestamp.After(s.last) {
			s.last = rec.Timestamp.Time
		}

		key := pip.NormalizeName(rec.Package)
		if pc, ok := counts[key]; ok {
			pc.count++
		} else {
			counts[key] = &packageCount{name: rec.Package, count: 1}
		}
	}

	for _, pc := range counts {
		s.packages = append(s.packages, *pc)
	}
	sort.Slice(s.packages, func(i, j int) bool {
		if s.packages[i].count != s.packages[j].count {
			return s.packages[i].count > s.packages[j].count
		}
		return s.packages[i].name < s.packages[j].name
	})
	return s
}
