package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/piptrack/internal/output"
	"github.com/blackwell-systems/piptrack/internal/pip"
)

// staleScanAge is how old the last scan may be before doctor warns.
const staleScanAge = 7 * 24 * time.Hour

func newDoctorCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues and check system health",
		Long: `Runs diagnostic checks on your piptrack installation.

Checks:
  • Configuration file is valid
  • pip can be found and responds
  • History file is readable and writable
  • Package inventory exists and is recent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := o.app
			out := a.Stdout
			fmt.Fprintln(out, "Running piptrack diagnostics...")
			fmt.Fprintln(out)

			criticalIssues := 0
			warningIssues := 0

			// Config was already parsed by newApp; a broken file never gets here.
			if _, err := os.Stat(a.ConfigPath); err == nil {
				fmt.Fprintln(out, "✓ Config loaded:", a.ConfigPath)
			} else {
				fmt.Fprintln(out, "✓ Using built-in defaults (no config at", a.ConfigPath+")")
			}

			// pip
			if o.gateway == nil {
				command, err := pip.Detect(a.Config.PipBinary)
				if err != nil {
					fmt.Fprintln(out, "✗", err)
					fmt.Fprintln(out, "  Action: install pip, or set pip_binary in the config or pass --pip")
					criticalIssues++
				} else {
					fmt.Fprintln(out, "✓ pip command:", strings.Join(command, " "))
				}
			}
			if criticalIssues == 0 {
				res, err := a.Gateway.List(cmd.Context())
				switch {
				case err != nil:
					fmt.Fprintln(out, "✗ pip did not run:", err)
					criticalIssues++
				case !res.Success():
					fmt.Fprintln(out, "✗ pip list failed:", firstLine(res.Output()))
					criticalIssues++
				default:
					if pkgs, err := pip.ParseList(res.Stdout); err != nil {
						fmt.Fprintln(out, "✗ Unexpected pip list output:", err)
						criticalIssues++
					} else {
						fmt.Fprintf(out, "✓ pip responds (%d packages installed)\n", len(pkgs))
					}
				}
			}

			// History
			historyPath := a.History.Path()
			if _, err := os.Stat(historyPath + ".bak"); err == nil {
				fmt.Fprintln(out, "⚠ A malformed history file was moved aside:", historyPath+".bak")
				fmt.Fprintln(out, "  Action: inspect it and delete it once it is no longer needed")
				warningIssues++
			}
			if n := a.History.Len(); n == 0 {
				fmt.Fprintln(out, "✓ History is empty:", historyPath)
			} else {
				fmt.Fprintf(out, "✓ History: %d operations recorded in %s\n", n, historyPath)
			}
			if err := checkWritable(filepath.Dir(historyPath)); err != nil {
				fmt.Fprintln(out, "✗ History directory is not writable:", err)
				fmt.Fprintln(out, "  Action: fix permissions or set history_file in the config")
				criticalIssues++
			}

			// Inventory
			if !a.InventoryExists() {
				fmt.Fprintln(out, "⚠ Inventory not built yet")
				fmt.Fprintln(out, "  Action: Run 'piptrack scan'")
				warningIssues++
			} else if st, err := a.Inventory(); err != nil {
				fmt.Fprintln(out, "✗ Cannot open inventory:", err)
				criticalIssues++
			} else {
				last, err := st.LastScan()
				switch {
				case err != nil || last == nil:
					fmt.Fprintln(out, "⚠ Inventory has never been scanned")
					fmt.Fprintln(out, "  Action: Run 'piptrack scan'")
					warningIssues++
				case time.Since(last.FinishedAt) > staleScanAge:
					fmt.Fprintln(out, "⚠", output.RenderLastScan(last))
					fmt.Fprintln(out, "  Action: Run 'piptrack scan' to refresh")
					warningIssues++
				default:
					fmt.Fprintln(out, "✓", output.RenderLastScan(last))
				}
			}

			fmt.Fprintln(out)
			if criticalIssues == 0 && warningIssues == 0 {
				fmt.Fprintln(out, "✓ All checks passed!")
				return nil
			}
			if criticalIssues > 0 {
				fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
				return errors.New("diagnostics failed")
			}
			fmt.Fprintf(out, "Found %d warning(s). piptrack is functional.\n", warningIssues)
			return nil
		},
	}
}

// checkWritable creates and removes a temporary file in dir.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".piptrack-doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
