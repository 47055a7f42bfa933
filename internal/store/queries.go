package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrPackageNotFound is returned by GetPackage for unknown names.
var ErrPackageNotFound = errors.New("package not found in inventory")

// Package operations

// UpsertPackage inserts or replaces a package. A size measured by an earlier
// scan is preserved when pkg carries no size (SizeBytes < 0).
func (s *Store) UpsertPackage(pkg *Package) error {
	query := `
		INSERT INTO packages (name, version, location, summary, size_bytes, file_count, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			location = excluded.location,
			summary = excluded.summary,
			size_bytes = CASE WHEN excluded.size_bytes >= 0 THEN excluded.size_bytes ELSE packages.size_bytes END,
			file_count = CASE WHEN excluded.size_bytes >= 0 THEN excluded.file_count ELSE packages.file_count END,
			scanned_at = excluded.scanned_at
	`

	_, err := s.db.Exec(query,
		pkg.Name,
		pkg.Version,
		pkg.Location,
		pkg.Summary,
		pkg.SizeBytes,
		pkg.FileCount,
		pkg.ScannedAt.UTC().Format(time.RFC3339),
	)
	return wrap(fmt.Sprintf("failed to upsert package %s", pkg.Name), err)
}

// GetPackage retrieves a package by name.
func (s *Store) GetPackage(name string) (*Package, error) {
	query := `
		SELECT name, version, location, summary, size_bytes, file_count, scanned_at
		FROM packages
		WHERE name = ?
	`

	pkg, err := scanPackage(s.db.QueryRow(query, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}
	if err != nil {
		return nil, wrap(fmt.Sprintf("failed to get package %s", name), err)
	}
	return pkg, nil
}

// ListPackages returns all packages ordered by name.
func (s *Store) ListPackages() ([]*Package, error) {
	return s.queryPackages(`
		SELECT name, version, location, summary, size_bytes, file_count, scanned_at
		FROM packages
		ORDER BY name COLLATE NOCASE
	`)
}

// LargestPackages returns up to limit measured packages, largest first.
// A non-positive limit returns every measured package.
func (s *Store) LargestPackages(limit int) ([]*Package, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryPackages(`
		SELECT name, version, location, summary, size_bytes, file_count, scanned_at
		FROM packages
		WHERE size_bytes >= 0
		ORDER BY size_bytes DESC, name
		LIMIT ?
	`, limit)
}

func (s *Store) queryPackages(query string, args ...any) ([]*Package, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrap("failed to list packages", err)
	}
	defer rows.Close()

	var packages []*Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		packages = append(packages, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating package rows: %w", err)
	}

	return packages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (*Package, error) {
	var (
		pkg       Package
		location  sql.NullString
		summary   sql.NullString
		size      sql.NullInt64
		files     sql.NullInt64
		scannedAt string
	)
	if err := row.Scan(&pkg.Name, &pkg.Version, &location, &summary, &size, &files, &scannedAt); err != nil {
		return nil, err
	}

	pkg.Location = location.String
	pkg.Summary = summary.String
	pkg.SizeBytes = -1
	if size.Valid {
		pkg.SizeBytes = size.Int64
	}
	pkg.FileCount = int(files.Int64)

	t, err := time.Parse(time.RFC3339, scannedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scanned_at for %s: %w", pkg.Name, err)
	}
	pkg.ScannedAt = t

	return &pkg, nil
}

// DeletePackage removes a package and its outdated row.
func (s *Store) DeletePackage(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM packages WHERE name = ?", name)
	if err != nil {
		return wrap(fmt.Sprintf("failed to delete package %s", name), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}
	if _, err := tx.Exec("DELETE FROM outdated WHERE name = ?", name); err != nil {
		return wrap(fmt.Sprintf("failed to delete outdated row %s", name), err)
	}

	return tx.Commit()
}

// ReplacePackages swaps the package table for pkgs in one transaction.
// Sizes already measured for packages that keep their version survive.
func (s *Store) ReplacePackages(pkgs []*Package) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TEMP TABLE IF NOT EXISTS keep (name TEXT PRIMARY KEY)`); err != nil {
		return wrap("failed to prepare package refresh", err)
	}
	if _, err := tx.Exec(`DELETE FROM keep`); err != nil {
		return wrap("failed to prepare package refresh", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO packages (name, version, location, summary, size_bytes, file_count, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			size_bytes = CASE
				WHEN excluded.size_bytes >= 0 THEN excluded.size_bytes
				WHEN packages.version = excluded.version THEN packages.size_bytes
				ELSE -1 END,
			file_count = CASE
				WHEN excluded.size_bytes >= 0 THEN excluded.file_count
				WHEN packages.version = excluded.version THEN packages.file_count
				ELSE 0 END,
			version = excluded.version,
			location = CASE WHEN excluded.location != '' THEN excluded.location ELSE packages.location END,
			summary = CASE WHEN excluded.summary != '' THEN excluded.summary ELSE packages.summary END,
			scanned_at = excluded.scanned_at
	`)
	if err != nil {
		return wrap("failed to prepare package insert", err)
	}
	defer stmt.Close()

	for _, pkg := range pkgs {
		if _, err := stmt.Exec(pkg.Name, pkg.Version, pkg.Location, pkg.Summary,
			pkg.SizeBytes, pkg.FileCount, pkg.ScannedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to insert package %s: %w", pkg.Name, err)
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO keep (name) VALUES (?)`, pkg.Name); err != nil {
			return fmt.Errorf("failed to mark package %s: %w", pkg.Name, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM packages WHERE name NOT IN (SELECT name FROM keep)`); err != nil {
		return fmt.Errorf("failed to prune removed packages: %w", err)
	}
	if _, err := tx.Exec(`DROP TABLE keep`); err != nil {
		return fmt.Errorf("failed to drop refresh table: %w", err)
	}

	return tx.Commit()
}

// UpdatePackageSize stores a measured size for an existing package.
func (s *Store) UpdatePackageSize(name string, sizeBytes int64, fileCount int) error {
	res, err := s.db.Exec(
		"UPDATE packages SET size_bytes = ?, file_count = ? WHERE name = ?",
		sizeBytes, fileCount, name,
	)
	if err != nil {
		return wrap(fmt.Sprintf("failed to update size for %s", name), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}
	return nil
}

// Outdated operations

// ReplaceOutdated swaps the outdated table for rows in one transaction.
func (s *Store) ReplaceOutdated(rows []*Outdated) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM outdated"); err != nil {
		return wrap("failed to clear outdated packages", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO outdated (name, version, latest_version, latest_filetype, checked_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare outdated insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range rows {
		if _, err := stmt.Exec(o.Name, o.Version, o.LatestVersion, o.LatestFiletype,
			o.CheckedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to insert outdated package %s: %w", o.Name, err)
		}
	}

	return tx.Commit()
}

// ListOutdated returns cached outdated packages ordered by name.
func (s *Store) ListOutdated() ([]*Outdated, error) {
	rows, err := s.db.Query(`
		SELECT name, version, latest_version, latest_filetype, checked_at
		FROM outdated
		ORDER BY name COLLATE NOCASE
	`)
	if err != nil {
		return nil, wrap("failed to list outdated packages", err)
	}
	defer rows.Close()

	var out []*Outdated
	for rows.Next() {
		var (
			o         Outdated
			filetype  sql.NullString
			checkedAt string
		)
		if err := rows.Scan(&o.Name, &o.Version, &o.LatestVersion, &filetype, &checkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outdated row: %w", err)
		}
		o.LatestFiletype = filetype.String
		if o.CheckedAt, err = time.Parse(time.RFC3339, checkedAt); err != nil {
			return nil, fmt.Errorf("failed to parse checked_at for %s: %w", o.Name, err)
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outdated rows: %w", err)
	}

	return out, nil
}

// Scan operations

// RecordScan stores a finished scan and returns its ID.
func (s *Store) RecordScan(scan *Scan) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO scans (started_at, finished_at, package_count, outdated_count)
		VALUES (?, ?, ?, ?)
	`,
		scan.StartedAt.UTC().Format(time.RFC3339Nano),
		scan.FinishedAt.UTC().Format(time.RFC3339Nano),
		scan.PackageCount,
		scan.OutdatedCount,
	)
	if err != nil {
		return 0, wrap("failed to record scan", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scan ID: %w", err)
	}
	scan.ID = id
	return id, nil
}

// LastScan returns the most recent scan, or nil when none has run.
func (s *Store) LastScan() (*Scan, error) {
	var (
		scan              Scan
		started, finished string
	)
	err := s.db.QueryRow(`
		SELECT id, started_at, finished_at, package_count, outdated_count
		FROM scans
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&scan.ID, &started, &finished, &scan.PackageCount, &scan.OutdatedCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("failed to get last scan", err)
	}

	if scan.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if scan.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at: %w", err)
	}
	return &scan, nil
}
