package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/piptrack/internal/history"
)

func TestInstallRecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["requests"] = "2.31.0"

	out := env.mustRun("install", "requests")
	if !strings.Contains(out, "✓ Installed requests 2.31.0") {
		t.Errorf("unexpected output:\n%s", out)
	}

	recs := env.records()
	if len(recs) != 1 {
		t.Fatalf("history has %d records, want 1", len(recs))
	}
	if recs[0].Type != history.OpInstall || recs[0].VersionString() != "2.31.0" || !recs[0].Success {
		t.Errorf("record = %+v", recs[0])
	}
}

func TestInstallFailureReturnsError(t *testing.T) {
	env := newTestEnv(t)
	env.pip.failing["nosuchpkg"] = true

	out, err := env.run("install", "nosuchpkg")
	if err == nil {
		t.Fatal("expected error for failed install")
	}
	if !strings.Contains(out, "✗ Failed to install nosuchpkg: ERROR: No matching distribution") {
		t.Errorf("unexpected output:\n%s", out)
	}

	recs := env.records()
	if len(recs) != 1 || recs[0].Success {
		t.Errorf("expected one failed record, got %+v", recs)
	}
}

func TestInstallResolvesAliases(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["scikit-learn"] = "1.5.0"
	cfg := "[aliases]\nsklearn = \"scikit-learn\"\n"
	if err := os.WriteFile(env.configPath(), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	env.mustRun("install", "sklearn")
	if got := env.pip.Version("scikit-learn"); got != "1.5.0" {
		t.Errorf("scikit-learn version = %q, want 1.5.0", got)
	}
}

func TestUpdateThenRollback(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["requests"] = "2.28.0"
	env.pip.latest["requests"] = "2.31.0"

	out := env.mustRun("update", "requests")
	if !strings.Contains(out, "✓ Updated requests (was 2.28.0)") {
		t.Errorf("unexpected update output:\n%s", out)
	}
	if got := env.pip.Version("requests"); got != "2.31.0" {
		t.Fatalf("after update version = %q", got)
	}

	out = env.mustRun("rollback", "1", "--yes")
	if !strings.Contains(out, "✓ "+history.MessageRollbackSucceeded) {
		t.Errorf("unexpected rollback output:\n%s", out)
	}
	if got := env.pip.Version("requests"); got != "2.28.0" {
		t.Errorf("after rollback version = %q, want 2.28.0", got)
	}

	recs := env.records()
	if len(recs) != 2 {
		t.Fatalf("history has %d records, want 2", len(recs))
	}
	last := recs[1]
	if last.Type != history.OpDowngradeRollback || last.VersionString() != "2.28.0" || !last.Success {
		t.Errorf("rollback record = %+v", last)
	}
}

func TestRollbackLatestSkipsIneligible(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["flask"] = "3.0.0"
	env.pip.failing["broken"] = true

	env.mustRun("install", "flask")
	if _, err := env.run("install", "broken"); err == nil {
		t.Fatal("expected failed install")
	}

	out := env.mustRun("rollback", "latest", "--yes")
	if !strings.Contains(out, "Package:   flask") {
		t.Errorf("expected flask to be rolled back, got:\n%s", out)
	}
	if got := env.pip.Version("flask"); got != "" {
		t.Errorf("flask still installed at %q", got)
	}
}

func TestRollbackOfRollbackRefused(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["flask"] = "3.0.0"
	env.mustRun("install", "flask")
	env.mustRun("rollback", "1", "--yes")

	_, err := env.run("rollback", "1", "--yes")
	if err == nil || err.Error() != history.MessageNotRollbackable {
		t.Fatalf("err = %v, want %q", err, history.MessageNotRollbackable)
	}
	if n := len(env.records()); n != 2 {
		t.Errorf("history has %d records, want 2", n)
	}
}

func TestRollbackRefusesWithoutTerminal(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["flask"] = "3.0.0"
	env.mustRun("install", "flask")

	_, err := env.run("rollback", "1")
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected refusal mentioning --yes, got %v", err)
	}
	if got := env.pip.Version("flask"); got != "3.0.0" {
		t.Errorf("flask changed to %q", got)
	}
}

func TestRollbackPrompt(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		wantVersion string
	}{
		{"declined", "n\n", "3.0.0"},
		{"empty answer declines", "\n", "3.0.0"},
		{"accepted", "y\n", ""},
		{"accepted long form", "YES\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.pip.latest["flask"] = "3.0.0"
			env.mustRun("install", "flask")

			env.interactive = true
			env.stdin = tt.answer
			env.mustRun("rollback", "1")

			if got := env.pip.Version("flask"); got != tt.wantVersion {
				t.Errorf("flask version = %q, want %q", got, tt.wantVersion)
			}
		})
	}
}

func TestRollbackWithFilter(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["flask"] = "3.0.0"
	env.pip.latest["click"] = "8.1.7"
	env.mustRun("install", "flask")
	env.mustRun("install", "click")

	env.mustRun("rollback", "1", "--package", "flask", "--yes")
	if got := env.pip.Version("flask"); got != "" {
		t.Errorf("flask still installed at %q", got)
	}
	if got := env.pip.Version("click"); got != "8.1.7" {
		t.Errorf("click version = %q, want 8.1.7", got)
	}
}

func TestRollbackArguments(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run("rollback"); err == nil {
		t.Error("expected error without an argument")
	}
	if _, err := env.run("rollback", "1", "--yes"); err == nil {
		t.Error("expected error on empty history")
	}
	if _, err := env.run("rollback", "abc", "--yes"); err == nil {
		t.Error("expected error for non-numeric argument")
	}
}

func TestUninstallRequiredBy(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["urllib3"] = "2.2.1"
	env.pip.requiredBy["urllib3"] = []string{"requests"}

	out, err := env.run("uninstall", "urllib3", "--yes")
	if err == nil {
		t.Fatal("expected error when uninstall is skipped")
	}
	if !strings.Contains(out, "Skipped urllib3: Package is required by: requests") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if got := env.pip.Version("urllib3"); got != "2.2.1" {
		t.Errorf("urllib3 was removed")
	}
	for _, call := range env.pip.Calls() {
		if strings.HasPrefix(call, "uninstall") {
			t.Errorf("unexpected pip call %q", call)
		}
	}
}

func TestUninstallDryRun(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["flask"] = "3.0.0"

	out := env.mustRun("uninstall", "flask", "--dry-run")
	if !strings.Contains(out, "Dry-run mode") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if got := env.pip.Version("flask"); got != "3.0.0" {
		t.Errorf("flask was removed")
	}
	if n := len(env.records()); n != 0 {
		t.Errorf("history has %d records, want 0", n)
	}
}

func TestUninstallManyReportsProgress(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["flask"] = "3.0.0"
	env.pip.installed["click"] = "8.1.7"

	out := env.mustRun("uninstall", "flask", "click", "--yes")
	for _, want := range []string{
		"Starting uninstall of 2 packages...",
		"[1/2] Uninstalling flask...",
		"[2/2] Uninstalling click...",
		"Finished uninstall.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if n := len(env.records()); n != 2 {
		t.Errorf("history has %d records, want 2", n)
	}
}

func TestUpdateAll(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["requests"] = "2.28.0"
	env.pip.latest["requests"] = "2.31.0"
	env.pip.installed["numpy"] = "1.26.0"
	env.pip.latest["numpy"] = "2.0.0"
	env.pip.installed["click"] = "8.1.7"
	env.pip.latest["click"] = "8.1.7"

	out := env.mustRun("update", "--all")
	if !strings.Contains(out, "Starting update of 2 packages...") || !strings.Contains(out, "Finished update.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if env.pip.Version("numpy") != "2.0.0" || env.pip.Version("requests") != "2.31.0" {
		t.Errorf("packages not updated: %v", env.pip.Calls())
	}
	if n := len(env.records()); n != 2 {
		t.Errorf("history has %d records, want 2", n)
	}
}

func TestUpdateAllNothingOutdated(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["click"] = "8.1.7"
	env.pip.latest["click"] = "8.1.7"

	out := env.mustRun("update", "--all")
	if !strings.Contains(out, "All packages are up to date") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestUpdateArguments(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run("update"); err == nil {
		t.Error("expected error without packages or --all")
	}
	if _, err := env.run("update", "--all", "requests"); err == nil {
		t.Error("expected error combining --all with names")
	}
}

func TestHistoryFiltersAndJSON(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["flask"] = "3.0.0"
	env.pip.latest["click"] = "8.1.7"
	env.mustRun("install", "flask")
	env.mustRun("install", "click")
	env.mustRun("uninstall", "click", "--yes")

	out := env.mustRun("history", "--type", "uninstall", "--json")
	var recs []history.Record
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(recs) != 1 || recs[0].Package != "click" || recs[0].VersionString() != "8.1.7" {
		t.Errorf("records = %+v", recs)
	}

	out = env.mustRun("history", "--package", "flask")
	if !strings.Contains(out, "flask") || strings.Contains(out, "click") {
		t.Errorf("unexpected filtered table:\n%s", out)
	}

	out = env.mustRun("history", "--limit", "1")
	if !strings.Contains(out, "Showing 1 of 3") {
		t.Errorf("expected limit summary:\n%s", out)
	}

	if _, err := env.run("history", "--type", "bogus"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestHistoryEmptyJSON(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun("history", "--json")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("output = %q, want []", out)
	}
}

func TestListScansOnFirstUse(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["requests"] = "2.28.0"
	env.pip.latest["requests"] = "2.31.0"
	env.pip.installed["numpy"] = "2.0.0"
	env.pip.installed["typing_extensions"] = "4.12.0"

	out := env.mustRun("list")
	if !strings.Contains(out, "Inventory is empty") {
		t.Errorf("expected a first scan:\n%s", out)
	}
	if !strings.Contains(out, "3 packages") {
		t.Errorf("expected 3 packages:\n%s", out)
	}

	out = env.mustRun("list", "--filter", "typing-ext")
	if !strings.Contains(out, "typing_extensions") || strings.Contains(out, "numpy") {
		t.Errorf("unexpected filtered list:\n%s", out)
	}
	if strings.Contains(out, "Inventory is empty") {
		t.Error("second list should use the inventory")
	}

	out = env.mustRun("list", "--outdated-only")
	if !strings.Contains(out, "requests") || strings.Contains(out, "numpy") || !strings.Contains(out, "1 packages") {
		t.Errorf("unexpected outdated list:\n%s", out)
	}
}

func TestOutdated(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["requests"] = "2.28.0"
	env.pip.latest["requests"] = "3.0.0"

	out := env.mustRun("outdated")
	if !strings.Contains(out, "requests") || !strings.Contains(out, "1 packages can be updated") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestScanReportsChanges(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["requests"] = "2.28.0"

	out := env.mustRun("scan")
	if !strings.Contains(out, "✓ Scanned 1 packages") {
		t.Errorf("unexpected output:\n%s", out)
	}

	env.pip.installed["flask"] = "3.0.0"
	env.pip.installed["requests"] = "2.31.0"
	out = env.mustRun("scan")
	if !strings.Contains(out, "1 added, 0 removed, 1 changed version") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out = env.mustRun("scan")
	if !strings.Contains(out, "No changes since last scan") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestInstallRefreshesScannedInventory(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["requests"] = "2.28.0"
	env.pip.latest["flask"] = "3.0.0"
	env.mustRun("scan")

	env.mustRun("install", "flask")
	out := env.mustRun("list", "--filter", "flask")
	if !strings.Contains(out, "flask") || !strings.Contains(out, "1 packages") {
		t.Errorf("inventory not refreshed:\n%s", out)
	}
}

func TestSizes(t *testing.T) {
	env := newTestEnv(t)
	site := filepath.Join(env.dir, "site-packages")
	if err := os.MkdirAll(filepath.Join(site, "numpy"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(site, "numpy", "core.so"), make([]byte, 4096), 0644); err != nil {
		t.Fatal(err)
	}
	env.pip.location = site
	env.pip.installed["numpy"] = "2.0.0"
	env.pip.files["numpy"] = []string{"numpy/core.so", "numpy/missing.py"}

	out := env.mustRun("sizes")
	if !strings.Contains(out, "numpy") || !strings.Contains(out, "4.0 KiB") || !strings.Contains(out, "Total:") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out = env.mustRun("sizes", "--cached")
	if !strings.Contains(out, "4.0 KiB") {
		t.Errorf("cached sizes missing:\n%s", out)
	}
}

func TestShow(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["flask"] = "3.0.0"
	env.mustRun("install", "flask")

	out := env.mustRun("show", "flask")
	if !strings.Contains(out, "Version:") || !strings.Contains(out, "Recent operations:") {
		t.Errorf("unexpected output:\n%s", out)
	}

	env.mustRun("uninstall", "flask", "--yes")
	out = env.mustRun("show", "flask")
	if !strings.Contains(out, "flask is not installed.") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := env.run("show", "never-seen"); err == nil {
		t.Error("expected error for unknown package")
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.pip.latest["flask"] = "3.0.0"
	env.pip.failing["broken"] = true
	env.mustRun("install", "flask")
	env.run("install", "broken")

	out := env.mustRun("stats")
	if !strings.Contains(out, "2 total, 1 failed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestDoctorWarningsOnly(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["requests"] = "2.31.0"

	out, err := env.run("doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{"pip responds (1 packages installed)", "Inventory not built yet", "Found 1 warning(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctorAllPassing(t *testing.T) {
	env := newTestEnv(t)
	env.pip.installed["requests"] = "2.31.0"
	env.mustRun("scan")

	out := env.mustRun("doctor")
	if !strings.Contains(out, "All checks passed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun("config", "init")
	if _, err := os.Stat(env.configPath()); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := env.run("config", "init"); err == nil {
		t.Error("expected error when config exists")
	}

	out := env.mustRun("config", "show", "--pip", "python3.12 -m pip")
	if !strings.Contains(out, `pip_binary = "python3.12 -m pip"`) {
		t.Errorf("flag override missing:\n%s", out)
	}
	if !strings.Contains(out, env.historyPath()) {
		t.Errorf("resolved history path missing:\n%s", out)
	}
}
