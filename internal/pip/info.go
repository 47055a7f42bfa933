package pip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotInstalled is returned when pip reports that a package is not installed.
var ErrNotInstalled = errors.New("package not installed")

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName applies PEP 503 normalization: lower-case, with runs of
// '-', '_' and '.' collapsed to a single '-'. pip treats names that
// normalize equally as the same project.
func NormalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// SameName reports whether two package names refer to the same project.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// GetPackageInfo returns the parsed `pip show` output for name.
func GetPackageInfo(ctx context.Context, gw Gateway, name string) (*PackageInfo, error) {
	res, err := gw.Show(ctx, name)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	return ParseShow(res.Stdout), nil
}

// InstalledVersion returns the installed version of name, or "" when the
// package is not installed.
func InstalledVersion(ctx context.Context, gw Gateway, name string) (string, error) {
	info, err := GetPackageInfo(ctx, gw, name)
	if errors.Is(err, ErrNotInstalled) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Version, nil
}

// Dependents returns the installed packages whose metadata declares a
// dependency on name (the "Required-by" line of `pip show`).
func Dependents(ctx context.Context, gw Gateway, name string) ([]string, error) {
	info, err := GetPackageInfo(ctx, gw, name)
	if err != nil {
		return nil, err
	}
	return info.RequiredBy, nil
}

// MeasureSize sums the on-disk size of every file `pip show -f` lists for
// name. Files that no longer exist are counted but contribute no bytes.
func MeasureSize(ctx context.Context, gw Gateway, name string) (*PackageSize, error) {
	res, err := gw.ShowFiles(ctx, name)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}

	info := ParseShow(res.Stdout)
	size := &PackageSize{
		Name:      name,
		FileCount: len(info.Files),
		Location:  info.Location,
	}
	if info.Name != "" {
		size.Name = info.Name
	}

	for _, f := range info.Files {
		full := f
		if !filepath.IsAbs(full) {
			full = filepath.Join(info.Location, f)
		}
		st, err := os.Stat(full)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		size.SizeBytes += st.Size()
	}

	return size, nil
}
