package pip

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseList parses `pip list --format=json` output.
func ParseList(stdout string) ([]Package, error) {
	var pkgs []Package
	if err := decodeJSONList(stdout, &pkgs); err != nil {
		return nil, fmt.Errorf("failed to parse pip list output: %w", err)
	}
	return pkgs, nil
}

// ParseOutdated parses `pip list --outdated --format=json` output.
func ParseOutdated(stdout string) ([]OutdatedPackage, error) {
	var pkgs []OutdatedPackage
	if err := decodeJSONList(stdout, &pkgs); err != nil {
		return nil, fmt.Errorf("failed to parse pip outdated output: %w", err)
	}
	return pkgs, nil
}

// decodeJSONList tolerates empty output, which pip produces in some
// environments when nothing matches.
func decodeJSONList(stdout string, v any) error {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil
	}
	return json.Unmarshal([]byte(trimmed), v)
}

// ParseShow parses `pip show [-f]` output for a single package.
// Example input:
//
//	Name: requests
//	Version: 2.31.0
//	Requires: certifi, idna
//	Required-by: httpx
//	Files:
//	  requests/__init__.py
//
// Keys are lower-cased with '-' replaced by '_' before storing in Fields.
// Output for more than one package is cut at the first "---" separator.
func ParseShow(stdout string) *PackageInfo {
	info := &PackageInfo{
		Requires:   []string{},
		RequiredBy: []string{},
		Fields:     make(map[string]string),
	}

	inFiles := false
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			break
		}

		if inFiles {
			if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
				if f := strings.TrimSpace(line); f != "" {
					info.Files = append(info.Files, f)
				}
				continue
			}
			inFiles = false
		}

		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(line[:idx])), "-", "_")
		value := strings.TrimSpace(line[idx+1:])

		switch key {
		case "files":
			inFiles = true
			info.Files = []string{}
			continue
		case "requires":
			info.Requires = splitList(value)
		case "required_by":
			info.RequiredBy = splitList(value)
		case "name":
			info.Name = value
		case "version":
			info.Version = value
		case "summary":
			info.Summary = value
		case "home_page":
			info.HomePage = value
		case "author":
			info.Author = value
		case "author_email":
			info.AuthorEmail = value
		case "license":
			info.License = value
		case "location":
			info.Location = value
		}
		info.Fields[key] = value
	}

	return info
}

func splitList(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
