package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// errNotConfirmed is returned when the user declines a prompt.
var errNotConfirmed = errors.New("cancelled")

// stdinIsTerminal reports whether r is a terminal.
func stdinIsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// confirm asks a yes/no question. yes skips the prompt. Without a terminal
// on stdin the question cannot be answered, so confirm refuses rather than
// block.
func (a *App) confirm(question string, yes bool) error {
	if yes {
		return nil
	}
	if !a.interactive() {
		return fmt.Errorf("stdin is not a terminal; re-run with --yes to confirm")
	}

	fmt.Fprintf(a.Stdout, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(a.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errNotConfirmed
	}
}

