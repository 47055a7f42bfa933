package pip

import (
	"context"
	"fmt"
)

// stubGateway answers Show/ShowFiles from canned results keyed by package name.
type stubGateway struct {
	show      map[string]*Result
	showFiles map[string]*Result
	err       error
}

func (s *stubGateway) Install(ctx context.Context, name string, upgrade bool) (*Result, error) {
	return &Result{}, s.err
}

func (s *stubGateway) InstallPinned(ctx context.Context, name, version string) (*Result, error) {
	return &Result{}, s.err
}

func (s *stubGateway) Uninstall(ctx context.Context, name string) (*Result, error) {
	return &Result{}, s.err
}

func (s *stubGateway) Show(ctx context.Context, name string) (*Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.show[name]; ok {
		return r, nil
	}
	return &Result{ExitCode: 1, Stderr: fmt.Sprintf("WARNING: Package(s) not found: %s", name)}, nil
}

func (s *stubGateway) ShowFiles(ctx context.Context, name string) (*Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.showFiles[name]; ok {
		return r, nil
	}
	return &Result{ExitCode: 1}, nil
}

func (s *stubGateway) List(ctx context.Context) (*Result, error) {
	return &Result{Stdout: "[]"}, s.err
}

func (s *stubGateway) ListOutdated(ctx context.Context) (*Result, error) {
	return &Result{Stdout: "[]"}, s.err
}
