package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/store"
)

// Scan refreshes the packages and outdated tables from pip and records the
// scan. Packages missing from pip's listing are pruned. An outdated check
// that fails leaves the previous outdated rows in place.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*store.Scan, error) {
	started := s.now()

	if err := s.store.CreateSchema(); err != nil {
		return nil, err
	}

	installed, err := s.listInstalled(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]*store.Package, 0, len(installed))
	for _, p := range installed {
		rows = append(rows, &store.Package{
			Name:      p.Name,
			Version:   p.Version,
			SizeBytes: -1,
			ScannedAt: started,
		})
	}

	if opts.WithSizes {
		for i, row := range rows {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			size, err := pip.MeasureSize(ctx, s.gw, row.Name)
			if err != nil {
				s.logger.Warn("failed to measure package", "package", row.Name, "error", err)
			} else {
				row.SizeBytes = size.SizeBytes
				row.FileCount = size.FileCount
				row.Location = size.Location
			}
			if opts.Progress != nil {
				opts.Progress(i+1, len(rows))
			}
		}
	}

	if err := s.store.ReplacePackages(rows); err != nil {
		return nil, fmt.Errorf("failed to store packages: %w", err)
	}

	outdatedCount := -1
	outdated, err := s.listOutdated(ctx)
	if err != nil {
		s.logger.Warn("outdated check failed, keeping previous results", "error", err)
	} else {
		checked := s.now()
		cached := make([]*store.Outdated, 0, len(outdated))
		for _, o := range outdated {
			cached = append(cached, &store.Outdated{
				Name:           o.Name,
				Version:        o.Version,
				LatestVersion:  o.LatestVersion,
				LatestFiletype: o.LatestFiletype,
				CheckedAt:      checked,
			})
		}
		if err := s.store.ReplaceOutdated(cached); err != nil {
			return nil, fmt.Errorf("failed to store outdated packages: %w", err)
		}
		outdatedCount = len(cached)
	}
	if outdatedCount < 0 {
		prev, err := s.store.ListOutdated()
		if err != nil {
			return nil, err
		}
		outdatedCount = len(prev)
	}

	scan := &store.Scan{
		StartedAt:     started,
		FinishedAt:    s.now(),
		PackageCount:  len(rows),
		OutdatedCount: outdatedCount,
	}
	if _, err := s.store.RecordScan(scan); err != nil {
		return nil, err
	}

	s.logger.Info("inventory scanned",
		"packages", scan.PackageCount,
		"outdated", scan.OutdatedCount,
		"sizes", opts.WithSizes,
		"duration", scan.Duration())

	return scan, nil
}

// MeasureSizes measures the named packages and stores the results. Packages
// that cannot be measured are skipped with a warning.
func (s *Scanner) MeasureSizes(ctx context.Context, names []string, progress func(done, total int)) ([]*store.Package, error) {
	var measured []*store.Package
	for i, name := range names {
		if ctx.Err() != nil {
			return measured, ctx.Err()
		}

		size, err := pip.MeasureSize(ctx, s.gw, name)
		if err != nil {
			s.logger.Warn("failed to measure package", "package", name, "error", err)
		} else {
			if err := s.store.UpdatePackageSize(name, size.SizeBytes, size.FileCount); err != nil &&
				!errors.Is(err, store.ErrPackageNotFound) {
				return measured, err
			}
			measured = append(measured, &store.Package{
				Name:      size.Name,
				Location:  size.Location,
				SizeBytes: size.SizeBytes,
				FileCount: size.FileCount,
			})
		}

		if progress != nil {
			progress(i+1, len(names))
		}
	}
	return measured, nil
}

// RefreshPackage updates the cached row for name after an install, update
// or uninstall. A package pip no longer knows is removed from the cache.
func (s *Scanner) RefreshPackage(ctx context.Context, name string) error {
	info, err := pip.GetPackageInfo(ctx, s.gw, name)
	if errors.Is(err, pip.ErrNotInstalled) {
		if err := s.store.DeletePackage(name); err != nil && !errors.Is(err, store.ErrPackageNotFound) {
			return err
		}
		return nil
	}
	if err != nil {
		return err
	}

	pkgName := info.Name
	if pkgName == "" {
		pkgName = name
	}
	return s.store.UpsertPackage(&store.Package{
		Name:      pkgName,
		Version:   info.Version,
		Location:  info.Location,
		Summary:   info.Summary,
		SizeBytes: -1,
		ScannedAt: s.now(),
	})
}

// GetInventory returns the current package inventory from the database.
// This is a cached view and does not run pip.
func (s *Scanner) GetInventory() ([]*store.Package, error) {
	packages, err := s.store.ListPackages()
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return packages, nil
}

func (s *Scanner) listInstalled(ctx context.Context) ([]pip.Package, error) {
	res, err := s.gw.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("pip list failed: %s", res.Output())
	}
	return pip.ParseList(res.Stdout)
}

func (s *Scanner) listOutdated(ctx context.Context) ([]pip.OutdatedPackage, error) {
	res, err := s.gw.ListOutdated(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("pip list --outdated failed: %s", res.Output())
	}
	return pip.ParseOutdated(res.Stdout)
}
