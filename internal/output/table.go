// Package output provides terminal output utilities for piptrack.
//
// This package includes:
//   - Table rendering for installed packages, outdated packages, sizes and
//     operation history
//   - Progress bars for bulk operations and size measurement
//   - Spinners for single pip commands
//
// Color is emitted only when stdout is a terminal and NO_COLOR is unset.
// Progress indicators are safe for use from multiple goroutines.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/store"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

const dash = "—"

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderPackageTable renders installed packages. Packages found in outdated
// show their latest version.
func RenderPackageTable(packages []*store.Package, outdated map[string]*store.Outdated) string {
	if len(packages) == 0 {
		return "No packages found.\n"
	}

	sorted := make([]*store.Package, len(packages))
	copy(sorted, packages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-28s %-14s %-14s %-10s %s\n", "Package", "Version", "Latest", "Size", "Summary")
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, pkg := range sorted {
		latest := dash
		if o, ok := outdated[pip.NormalizeName(pkg.Name)]; ok {
			latest = o.LatestVersion
		}
		fmt.Fprintf(&sb, "%-28s %-14s %s %-10s %s\n",
			truncate(pkg.Name, 28),
			truncate(pkg.Version, 14),
			pad(latest, 14, yellowIf(latest != dash)),
			FormatSize(pkg.SizeBytes),
			truncate(pkg.Summary, 30))
	}

	return sb.String()
}

// OutdatedIndex keys rows by normalized package name for RenderPackageTable.
func OutdatedIndex(rows []*store.Outdated) map[string]*store.Outdated {
	idx := make(map[string]*store.Outdated, len(rows))
	for _, o := range rows {
		idx[pip.NormalizeName(o.Name)] = o
	}
	return idx
}

// RenderOutdatedTable renders packages with newer releases and the risk of
// updating each one.
func RenderOutdatedTable(rows []*store.Outdated) string {
	if len(rows) == 0 {
		return "All packages are up to date.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-28s %-14s %-14s %-8s %s\n", "Package", "Current", "Latest", "Risk", "Type")
	sb.WriteString(strings.Repeat("─", 76))
	sb.WriteString("\n")

	for _, o := range rows {
		risk := pip.UpdateRisk(o.Version, o.LatestVersion)
		filetype := o.LatestFiletype
		if filetype == "" {
			filetype = dash
		}
		fmt.Fprintf(&sb, "%-28s %-14s %-14s %s %s\n",
			truncate(o.Name, 28),
			truncate(o.Version, 14),
			truncate(o.LatestVersion, 14),
			pad(string(risk), 8, riskColor(risk)),
			filetype)
	}

	return sb.String()
}

func riskColor(r pip.RiskLevel) string {
	switch r {
	case pip.RiskHigh:
		return colorRed
	case pip.RiskMedium:
		return colorYellow
	case pip.RiskLow:
		return colorGreen
	default:
		return colorGray
	}
}

// RenderHistoryTable renders history records in the order given, numbered
// from 1. The number is what `piptrack rollback` accepts.
func RenderHistoryTable(records []history.Record) string {
	if len(records) == 0 {
		return "No operations recorded.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-4s %-19s %-21s %-24s %-12s %-7s %s\n",
		"#", "Date", "Operation", "Package", "Version", "Status", "Rollback")
	sb.WriteString(strings.Repeat("─", 100))
	sb.WriteString("\n")

	for i, rec := range records {
		version := rec.VersionString()
		if version == "" {
			version = dash
		}
		status := pad("✓ ok", 7, colorGreen)
		if !rec.Success {
			status = pad("✗ fail", 7, colorRed)
		}
		rollback := dash
		if history.CanRollback(rec) {
			rollback = "available"
		}

		fmt.Fprintf(&sb, "%-4d %-19s %-21s %-24s %-12s %s %s\n",
			i+1,
			rec.Date,
			rec.Type.Label(),
			truncate(rec.Package, 24),
			truncate(version, 12),
			status,
			rollback)
	}

	return sb.String()
}

// RenderRecord renders a single record with its full details.
func RenderRecord(rec history.Record) string {
	var sb strings.Builder
	version := rec.VersionString()
	if version == "" {
		version = dash
	}
	status := "succeeded"
	if !rec.Success {
		status = "failed"
	}

	fmt.Fprintf(&sb, "Operation: %s\n", rec.Type.Label())
	fmt.Fprintf(&sb, "Package:   %s\n", rec.Package)
	fmt.Fprintf(&sb, "Version:   %s\n", version)
	fmt.Fprintf(&sb, "Date:      %s (%s)\n", rec.Date, formatRelativeTime(rec.Timestamp.Time))
	fmt.Fprintf(&sb, "Status:    %s\n", status)
	if details := strings.TrimSpace(rec.Details); details != "" {
		sb.WriteString("Details:\n")
		for _, line := range strings.Split(details, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

// RenderSizeTable renders measured packages, largest first, with each
// package's share of the measured total.
func RenderSizeTable(packages []*store.Package) string {
	var measured []*store.Package
	var total int64
	for _, p := range packages {
		if p.Measured() {
			measured = append(measured, p)
			total += p.SizeBytes
		}
	}
	if len(measured) == 0 {
		return "No package sizes measured. Run 'piptrack sizes' or 'piptrack scan --sizes'.\n"
	}

	sort.SliceStable(measured, func(i, j int) bool {
		return measured[i].SizeBytes > measured[j].SizeBytes
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-28s %-14s %-10s %-7s %s\n", "Package", "Version", "Size", "Files", "Share")
	sb.WriteString(strings.Repeat("─", 70))
	sb.WriteString("\n")

	for _, p := range measured {
		share := 0.0
		if total > 0 {
			share = float64(p.SizeBytes) * 100 / float64(total)
		}
		version := p.Version
		if version == "" {
			version = dash
		}
		fmt.Fprintf(&sb, "%-28s %-14s %-10s %-7s %5.1f%%\n",
			truncate(p.Name, 28),
			truncate(version, 14),
			FormatSize(p.SizeBytes),
			humanize.Comma(int64(p.FileCount)),
			share)
	}

	sb.WriteString(strings.Repeat("─", 70))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Total: %s across %d packages\n", FormatSize(total), len(measured))

	return sb.String()
}

// RenderPackageInfo renders parsed `pip show` output.
func RenderPackageInfo(info *pip.PackageInfo) string {
	var sb strings.Builder
	field := func(label, value string) {
		if value == "" {
			value = dash
		}
		fmt.Fprintf(&sb, "%-12s %s\n", label+":", value)
	}

	field("Name", info.Name)
	field("Version", info.Version)
	field("Summary", info.Summary)
	field("Home page", info.HomePage)
	field("Author", info.Author)
	field("License", info.License)
	field("Location", info.Location)
	field("Requires", strings.Join(info.Requires, ", "))
	field("Required by", strings.Join(info.RequiredBy, ", "))

	return sb.String()
}

// RenderScanSummary renders a one-line description of a finished scan.
func RenderScanSummary(scan *store.Scan) string {
	return fmt.Sprintf("Scanned %s packages (%d outdated) in %s",
		humanize.Comma(int64(scan.PackageCount)),
		scan.OutdatedCount,
		scan.Duration().Round(10*time.Millisecond))
}

// RenderLastScan describes when the inventory was last refreshed.
func RenderLastScan(scan *store.Scan) string {
	if scan == nil {
		return "Inventory has never been scanned."
	}
	return fmt.Sprintf("Last scan %s: %d packages, %d outdated",
		formatRelativeTime(scan.FinishedAt), scan.PackageCount, scan.OutdatedCount)
}

// FormatSize converts bytes to a human-readable IEC size. Negative values
// mean "not measured".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return dash
	}
	return humanize.IBytes(uint64(bytes))
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// pad left-aligns text in width runes and colors it when color is given.
// Padding is applied before coloring so escape codes do not skew columns.
func pad(text string, width int, color string) string {
	text = truncate(text, width)
	padded := text + strings.Repeat(" ", max(width-utf8.RuneCountInString(text), 0))
	if color == "" {
		return padded
	}
	return colorize(color, text) + padded[len(text):]
}

func yellowIf(cond bool) string {
	if cond {
		return colorYellow
	}
	return ""
}
