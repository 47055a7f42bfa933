package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackwell-systems/piptrack/internal/pip"
	"github.com/blackwell-systems/piptrack/internal/store"
)

// stubGateway serves canned pip output.
type stubGateway struct {
	list        string
	outdated    string
	outdatedErr error
	show        map[string]string
}

func (g *stubGateway) Install(ctx context.Context, name string, upgrade bool) (*pip.Result, error) {
	return &pip.Result{}, nil
}

func (g *stubGateway) InstallPinned(ctx context.Context, name, version string) (*pip.Result, error) {
	return &pip.Result{}, nil
}

func (g *stubGateway) Uninstall(ctx context.Context, name string) (*pip.Result, error) {
	return &pip.Result{}, nil
}

func (g *stubGateway) Show(ctx context.Context, name string) (*pip.Result, error) {
	if out, ok := g.show[name]; ok {
		return &pip.Result{Stdout: out}, nil
	}
	return &pip.Result{ExitCode: 1, Stderr: "WARNING: Package(s) not found: " + name}, nil
}

func (g *stubGateway) ShowFiles(ctx context.Context, name string) (*pip.Result, error) {
	return g.Show(ctx, name)
}

func (g *stubGateway) List(ctx context.Context) (*pip.Result, error) {
	return &pip.Result{Stdout: g.list}, nil
}

func (g *stubGateway) ListOutdated(ctx context.Context) (*pip.Result, error) {
	if g.outdatedErr != nil {
		return nil, g.outdatedErr
	}
	return &pip.Result{Stdout: g.outdated}, nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sitePackages writes a fake distribution with files of the given sizes
// and returns `pip show -f` output describing it.
func sitePackages(t *testing.T, name, version string, sizes ...int) string {
	t.Helper()
	dir := t.TempDir()
	out := fmt.Sprintf("Name: %s\nVersion: %s\nSummary: test package\nLocation: %s\nRequires: \nRequired-by: \nFiles:\n", name, version, dir)
	for i, size := range sizes {
		rel := filepath.Join(name, fmt.Sprintf("f%d.py", i))
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, rel), make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
		out += "  " + rel + "\n"
	}
	return out
}

func TestNew(t *testing.T) {
	s := setupTestStore(t)
	gw := &stubGateway{}

	scanner := New(s, gw, nil)
	if scanner == nil {
		t.Fatal("expected non-nil scanner")
	}
	if scanner.store != s {
		t.Fatal("scanner store does not match provided store")
	}
}

func TestScan(t *testing.T) {
	s := setupTestStore(t)
	gw := &stubGateway{
		list:     `[{"name": "requests", "version": "2.28.0"}, {"name": "six", "version": "1.16.0"}]`,
		outdated: `[{"name": "requests", "version": "2.28.0", "latest_version": "2.31.0", "latest_filetype": "wheel"}]`,
	}

	scan, err := New(s, gw, nil).Scan(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if scan.PackageCount != 2 || scan.OutdatedCount != 1 {
		t.Errorf("scan = %+v", scan)
	}
	if scan.ID == 0 {
		t.Error("scan should be recorded")
	}

	pkgs, err := s.ListPackages()
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 2 || pkgs[0].Name != "requests" {
		t.Errorf("packages = %+v", pkgs)
	}
	if pkgs[0].Measured() {
		t.Error("sizes are not measured without WithSizes")
	}

	outdated, err := s.ListOutdated()
	if err != nil {
		t.Fatal(err)
	}
	if len(outdated) != 1 || outdated[0].LatestVersion != "2.31.0" {
		t.Errorf("outdated = %+v", outdated)
	}
}

func TestScan_WithSizes(t *testing.T) {
	s := setupTestStore(t)
	gw := &stubGateway{
		list:     `[{"name": "pkga", "version": "1.0"}]`,
		outdated: `[]`,
		show:     map[string]string{"pkga": sitePackages(t, "pkga", "1.0", 100, 200)},
	}

	var calls int
	_, err := New(s, gw, nil).Scan(context.Background(), Options{
		WithSizes: true,
		Progress:  func(done, total int) { calls++ },
	})
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("progress called %d times, want 1", calls)
	}

	got, err := s.GetPackage("pkga")
	if err != nil {
		t.Fatal(err)
	}
	if got.SizeBytes != 300 || got.FileCount != 2 {
		t.Errorf("size = %d bytes / %d files, want 300 / 2", got.SizeBytes, got.FileCount)
	}
}

func TestScan_OutdatedFailureKeepsPreviousRows(t *testing.T) {
	s := setupTestStore(t)
	gw := &stubGateway{
		list:     `[{"name": "requests", "version": "2.28.0"}]`,
		outdated: `[{"name": "requests", "version": "2.28.0", "latest_version": "2.31.0"}]`,
	}
	sc := New(s, gw, nil)
	if _, err := sc.Scan(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	gw.outdatedErr = errors.New("network unreachable")
	scan, err := sc.Scan(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Scan() should tolerate outdated failure: %v", err)
	}
	if scan.OutdatedCount != 1 {
		t.Errorf("OutdatedCount = %d, want previous 1", scan.OutdatedCount)
	}
}

func TestRefreshPackage(t *testing.T) {
	s := setupTestStore(t)
	gw := &stubGateway{
		list:     `[{"name": "gone", "version": "0.1"}]`,
		outdated: `[]`,
		show: map[string]string{
			"requests": "Name: requests\nVersion: 2.31.0\nSummary: Python HTTP for Humans.\nLocation: /site\n",
		},
	}
	sc := New(s, gw, nil)
	sc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	if _, err := sc.Scan(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	if err := sc.RefreshPackage(context.Background(), "requests"); err != nil {
		t.Fatalf("RefreshPackage(requests) failed: %v", err)
	}
	got, err := s.GetPackage("requests")
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary != "Python HTTP for Humans." || got.Location != "/site" {
		t.Errorf("refreshed package = %+v", got)
	}

	if err := sc.RefreshPackage(context.Background(), "gone"); err != nil {
		t.Fatalf("RefreshPackage(gone) failed: %v", err)
	}
	if _, err := s.GetPackage("gone"); !errors.Is(err, store.ErrPackageNotFound) {
		t.Error("uninstalled package should be removed from the cache")
	}

	// Unknown to both pip and the cache.
	if err := sc.RefreshPackage(context.Background(), "never"); err != nil {
		t.Errorf("RefreshPackage(never) = %v", err)
	}
}

func TestMeasureSizes(t *testing.T) {
	s := setupTestStore(t)
	gw := &stubGateway{
		list:     `[{"name": "pkga", "version": "1.0"}]`,
		outdated: `[]`,
		show:     map[string]string{"pkga": sitePackages(t, "pkga", "1.0", 512)},
	}
	sc := New(s, gw, nil)
	if _, err := sc.Scan(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	measured, err := sc.MeasureSizes(context.Background(), []string{"pkga", "missing"}, nil)
	if err != nil {
		t.Fatalf("MeasureSizes() failed: %v", err)
	}
	if len(measured) != 1 || measured[0].SizeBytes != 512 {
		t.Errorf("measured = %+v", measured)
	}

	cached, err := s.GetPackage("pkga")
	if err != nil {
		t.Fatal(err)
	}
	if cached.SizeBytes != 512 {
		t.Errorf("cached size = %d, want 512", cached.SizeBytes)
	}
}

func TestGetInventory_NotInitialized(t *testing.T) {
	s := setupTestStore(t)

	_, err := New(s, &stubGateway{}, nil).GetInventory()
	if !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("GetInventory() error = %v, want ErrNotInitialized", err)
	}
}
