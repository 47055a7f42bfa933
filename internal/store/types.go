package store

import "time"

// Package is a cached row describing an installed distribution.
type Package struct {
	Name      string
	Version   string
	Location  string
	Summary   string
	SizeBytes int64 // -1 when never measured
	FileCount int
	ScannedAt time.Time
}

// Measured reports whether the package size has been computed.
func (p *Package) Measured() bool {
	return p.SizeBytes >= 0
}

// Outdated is a cached row from `pip list --outdated`.
type Outdated struct {
	Name           string
	Version        string
	LatestVersion  string
	LatestFiletype string
	CheckedAt      time.Time
}

// Scan records one inventory refresh.
type Scan struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	PackageCount  int
	OutdatedCount int
}

// Duration returns how long the scan took.
func (s *Scan) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
