package pip

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotFound is returned when no pip executable can be located.
var ErrNotFound = errors.New("pip not found (checked pip3, pip, python3 -m pip, python -m pip)")

// candidates are tried in order when no binary is configured.
var candidates = [][]string{
	{"pip3"},
	{"pip"},
	{"python3", "-m", "pip"},
	{"python", "-m", "pip"},
}

// Detect resolves the pip invocation prefix. A configured value such as
// "pip3.12" or "python3 -m pip" is split on whitespace and must resolve on
// PATH; an empty value falls back to the first candidate found.
func Detect(configured string) ([]string, error) {
	return detectWith(configured, exec.LookPath)
}

func detectWith(configured string, lookPath func(string) (string, error)) ([]string, error) {
	if fields := strings.Fields(configured); len(fields) > 0 {
		path, err := lookPath(fields[0])
		if err != nil {
			return nil, fmt.Errorf("configured pip %q not usable: %w", configured, err)
		}
		return append([]string{path}, fields[1:]...), nil
	}

	for _, c := range candidates {
		if path, err := lookPath(c[0]); err == nil {
			return append([]string{path}, c[1:]...), nil
		}
	}

	return nil, ErrNotFound
}
