package pip

// Result is the outcome of a single pip invocation. A non-zero exit code is
// reported here, not as an error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether pip exited with status 0.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Output returns stdout on success and stderr otherwise.
func (r *Result) Output() string {
	if r == nil {
		return ""
	}
	if r.Success() {
		return r.Stdout
	}
	return r.Stderr
}

// Package is one entry of `pip list --format=json`.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// OutdatedPackage is one entry of `pip list --outdated --format=json`.
type OutdatedPackage struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	LatestVersion  string `json:"latest_version"`
	LatestFiletype string `json:"latest_filetype"`
}

// PackageInfo holds the parsed output of `pip show`.
type PackageInfo struct {
	Name        string
	Version     string
	Summary     string
	HomePage    string
	Author      string
	AuthorEmail string
	License     string
	Location    string
	Requires    []string
	RequiredBy  []string
	Files       []string          // only populated by `pip show -f`
	Fields      map[string]string // every "Key: Value" line, keys normalized
}

// PackageSize is the on-disk footprint of an installed package.
type PackageSize struct {
	Name      string
	SizeBytes int64
	FileCount int
	Location  string
}
