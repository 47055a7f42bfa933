package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blackwell-systems/piptrack/internal/output"
	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/scanner"
	"github.com/blackwell-systems/piptrack/internal/store"
)

// scanned reports whether the inventory holds at least one completed scan.
func (a *App) scanned() bool {
	if !a.InventoryExists() {
		return false
	}
	st, err := a.Inventory()
	if err != nil {
		return false
	}
	last, err := st.LastScan()
	return err == nil && last != nil
}

// ensureScanned returns the inventory, running a first scan when it has
// never been populated.
func (a *App) ensureScanned(ctx context.Context) (*store.Store, error) {
	st, err := a.Inventory()
	if err != nil {
		return nil, err
	}
	if a.scanned() {
		return st, nil
	}

	fmt.Fprintln(a.Stdout, "Inventory is empty, scanning installed packages first...")
	if _, err := a.runScan(ctx, scanner.Options{}); err != nil {
		return nil, err
	}
	return st, nil
}

// runScan scans with a spinner, or a progress bar when measuring sizes.
func (a *App) runScan(ctx context.Context, opts scanner.Options) (*store.Scan, error) {
	sc, err := a.Scanner()
	if err != nil {
		return nil, err
	}

	var bar *output.ProgressBar
	spinner := output.NewSpinner(a.Stdout, "Scanning installed packages")
	if opts.WithSizes {
		bar = output.NewProgress(a.Stdout, 0, "Measuring sizes")
		opts.Progress = bar.Update
	} else {
		spinner.Start()
	}

	scan, err := sc.Scan(ctx, opts)
	if bar != nil {
		bar.Finish()
	}
	spinner.Stop()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return scan, nil
}

// refreshInventory updates cached rows after packages changed. It does
// nothing until the first scan has run.
func (a *App) refreshInventory(ctx context.Context, names []string) {
	if !a.scanned() {
		return
	}
	sc, err := a.Scanner()
	if err != nil {
		return
	}
	for _, name := range names {
		if err := sc.RefreshPackage(ctx, name); err != nil {
			a.Logger.Warn("failed to refresh inventory", "package", name, "error", err)
		}
	}
}

// outdatedNames returns the packages pip reports as outdated, straight
// from pip rather than the cache.
func (a *App) outdatedNames(ctx context.Context) ([]string, error) {
	res, err := a.Gateway.ListOutdated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("pip list --outdated failed: %s", strings.TrimSpace(res.Output()))
	}
	pkgs, err := pip.ParseOutdated(res.Stdout)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		names = append(names, p.Name)
	}
	return names, nil
}

// failureCount turns a count of failed operations into an error.
func failureCount(failed, total int) error {
	if failed == 0 {
		return nil
	}
	if total == 1 {
		return errors.New("operation failed")
	}
	return fmt.Errorf("%d of %d operations failed", failed, total)
}
