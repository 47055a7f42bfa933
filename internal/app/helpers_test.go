package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/blackwell-systems/piptrack/internal/history"
	"github.com/blackwell-systems/piptrack/internal/pip"
)

// fakePip simulates a site-packages directory behind the pip gateway.
type fakePip struct {
	mu         sync.Mutex
	installed  map[string]string
	latest     map[string]string
	requiredBy map[string][]string
	failing    map[string]bool
	files      map[string][]string
	location   string

	calls []string
}

func newFakePip() *fakePip {
	return &fakePip{
		installed:  map[string]string{},
		latest:     map[string]string{},
		requiredBy: map[string][]string{},
		failing:    map[string]bool{},
		files:      map[string][]string{},
	}
}

func (f *fakePip) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePip) Version(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed[name]
}

func (f *fakePip) Install(ctx context.Context, name string, upgrade bool) (*pip.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("install %s upgrade=%v", name, upgrade))
	if f.failing[name] {
		return &pip.Result{ExitCode: 1, Stderr: "ERROR: No matching distribution found for " + name}, nil
	}
	if _, ok := f.installed[name]; ok && !upgrade {
		return &pip.Result{Stdout: "Requirement already satisfied: " + name}, nil
	}
	f.installed[name] = f.latest[name]
	return &pip.Result{Stdout: "Successfully installed " + name + "-" + f.latest[name]}, nil
}

func (f *fakePip) InstallPinned(ctx context.Context, name, version string) (*pip.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "install "+name+"=="+version)
	f.installed[name] = version
	return &pip.Result{Stdout: "Successfully installed " + name + "-" + version}, nil
}

func (f *fakePip) Uninstall(ctx context.Context, name string) (*pip.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "uninstall "+name)
	v, ok := f.installed[name]
	if !ok {
		return &pip.Result{Stderr: "WARNING: Skipping " + name + " as it is not installed."}, nil
	}
	delete(f.installed, name)
	return &pip.Result{Stdout: "Successfully uninstalled " + name + "-" + v}, nil
}

func (f *fakePip) Show(ctx context.Context, name string) (*pip.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.show(name, false), nil
}

func (f *fakePip) ShowFiles(ctx context.Context, name string) (*pip.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.show(name, true), nil
}

func (f *fakePip) show(name string, withFiles bool) *pip.Result {
	v, ok := f.installed[name]
	if !ok {
		return &pip.Result{ExitCode: 1, Stderr: "WARNING: Package(s) not found: " + name}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\nVersion: %s\nSummary: The %s package\nLocation: %s\nRequires: \nRequired-by: %s\n",
		name, v, name, f.location, strings.Join(f.requiredBy[name], ", "))
	if withFiles {
		sb.WriteString("Files:\n")
		for _, file := range f.files[name] {
			sb.WriteString("  " + file + "\n")
		}
	}
	return &pip.Result{Stdout: sb.String()}
}

func (f *fakePip) List(ctx context.Context) (*pip.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pkgs []pip.Package
	for name, v := range f.installed {
		pkgs = append(pkgs, pip.Package{Name: name, Version: v})
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return jsonResult(pkgs)
}

func (f *fakePip) ListOutdated(ctx context.Context) (*pip.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pkgs []pip.OutdatedPackage
	for name, v := range f.installed {
		if latest := f.latest[name]; latest != "" && latest != v {
			pkgs = append(pkgs, pip.OutdatedPackage{Name: name, Version: v, LatestVersion: latest, LatestFiletype: "wheel"})
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return jsonResult(pkgs)
}

func jsonResult(v any) (*pip.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	return &pip.Result{Stdout: string(data)}, nil
}

// testEnv runs piptrack commands against a fake pip and files under a
// temporary home directory.
type testEnv struct {
	t           *testing.T
	dir         string
	pip         *fakePip
	interactive bool
	stdin       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("NO_COLOR", "1")
	return &testEnv{t: t, dir: dir, pip: newFakePip()}
}

func (e *testEnv) historyPath() string { return filepath.Join(e.dir, "package_history.json") }
func (e *testEnv) dbPath() string      { return filepath.Join(e.dir, "piptrack.db") }
func (e *testEnv) configPath() string  { return filepath.Join(e.dir, "config.toml") }

// run executes piptrack with args and returns stdout.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{
		"--config", e.configPath(),
		"--history", e.historyPath(),
		"--db", e.dbPath(),
	}, args...)

	err := Run(context.Background(), full, strings.NewReader(e.stdin), &stdout, &stderr,
		WithGateway(e.pip),
		WithInteractive(e.interactive))
	if stderr.Len() > 0 {
		e.t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

// mustRun is run that fails the test on error.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("piptrack %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// records reads the history file.
func (e *testEnv) records() []history.Record {
	e.t.Helper()
	recs, err := history.ReadFile(e.historyPath())
	if err != nil {
		e.t.Fatalf("ReadFile: %v", err)
	}
	return recs
}
