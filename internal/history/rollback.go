package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/blackwell-systems/piptrack/internal/pip"
)

// User-facing rollback messages.
const (
	MessageNotRollbackable   = "This operation cannot be rolled back"
	MessageRollbackSucceeded = "Rollback completed successfully"
)

// CanRollback reports whether rec may be rolled back. Only successful
// install, update and uninstall records qualify; update and uninstall also
// need the version to restore. Rollback records never qualify.
func CanRollback(rec Record) bool {
	if !rec.Success || rec.Type.IsRollback() {
		return false
	}
	switch rec.Type {
	case OpInstall:
		return true
	case OpUninstall, OpUpdate:
		return rec.HasVersion()
	default:
		return false
	}
}

// RollbackType returns the record type written when rolling back t.
func RollbackType(t OperationType) (OperationType, bool) {
	switch t {
	case OpInstall:
		return OpUninstallRollback, true
	case OpUninstall:
		return OpInstallRollback, true
	case OpUpdate:
		return OpDowngradeRollback, true
	default:
		return "", false
	}
}

// CanRollback lets callers that only hold a *Store, such as the CLI, check
// eligibility.
func (s *Store) CanRollback(rec Record) bool {
	return CanRollback(rec)
}

// Rollback issues the inverse pip command for rec and records the result as
// a new entry. It never returns an error: ineligible records, failed pip
// commands and gateway errors all come back as (false, message). Only a pip
// command that actually ran is recorded.
func (s *Store) Rollback(ctx context.Context, rec Record) (bool, string) {
	if !CanRollback(rec) {
		return false, MessageNotRollbackable
	}
	if s.gateway == nil {
		return false, "Rollback error: no package manager configured"
	}

	rollbackType, _ := RollbackType(rec.Type)
	version := rec.VersionString()

	var (
		res *pip.Result
		err error
	)
	switch rec.Type {
	case OpInstall:
		res, err = s.gateway.Uninstall(ctx, rec.Package)
	case OpUninstall, OpUpdate:
		res, err = s.gateway.InstallPinned(ctx, rec.Package, version)
	}
	if err != nil {
		s.logger.Error("rollback failed to run", "package", rec.Package, "type", string(rec.Type), "error", err)
		return false, fmt.Sprintf("Rollback error: %v", err)
	}

	success := res.Success()
	details := fmt.Sprintf("Rollback of operation from %s: %s", rec.Date, res.Output())
	s.Append(rollbackType, rec.Package, rec.Version, success, details)

	if success {
		return true, MessageRollbackSucceeded
	}
	return false, fmt.Sprintf("Rollback failed: %s", strings.TrimSpace(res.Stderr))
}
