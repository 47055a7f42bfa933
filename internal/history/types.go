package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OperationType identifies what a history record describes.
type OperationType string

const (
	OpInstall           OperationType = "install"
	OpUpdate            OperationType = "update"
	OpUninstall         OperationType = "uninstall"
	OpInstallRollback   OperationType = "install_rollback"
	OpUninstallRollback OperationType = "uninstall_rollback"
	OpDowngradeRollback OperationType = "downgrade_rollback"
)

// OperationTypes lists every known type in display order.
var OperationTypes = []OperationType{
	OpInstall,
	OpUpdate,
	OpUninstall,
	OpInstallRollback,
	OpUninstallRollback,
	OpDowngradeRollback,
}

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	for _, known := range OperationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsRollback reports whether t records the result of a rollback.
func (t OperationType) IsRollback() bool {
	return strings.HasSuffix(string(t), "_rollback")
}

// Label returns a human-readable name for t.
func (t OperationType) Label() string {
	switch t {
	case OpInstall:
		return "Install"
	case OpUpdate:
		return "Update"
	case OpUninstall:
		return "Uninstall"
	case OpInstallRollback:
		return "Rollback (install)"
	case OpUninstallRollback:
		return "Rollback (uninstall)"
	case OpDowngradeRollback:
		return "Rollback (downgrade)"
	default:
		return string(t)
	}
}

// ParseOperationType validates a user-supplied type name.
func ParseOperationType(s string) (OperationType, error) {
	t := OperationType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown operation type %q", s)
	}
	return t, nil
}

// DateLayout is the display format stored in Record.Date.
const DateLayout = "2006-01-02 15:04:05"

// legacyLayouts are the naive local-time ISO formats written by older
// history files.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp is a time.Time that serializes as RFC 3339 and also accepts
// timestamps without a zone offset, interpreted as local time.
type Timestamp struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range legacyLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// Record is one entry of the operation history.
type Record struct {
	Timestamp Timestamp     `json:"timestamp"`
	Date      string        `json:"date"`
	Type      OperationType `json:"type"`
	Package   string        `json:"package"`
	Version   *string       `json:"version"`
	Success   bool          `json:"success"`
	Details   string        `json:"details"`
}

// VersionString returns the record's version or "" when absent.
func (r Record) VersionString() string {
	if r.Version == nil {
		return ""
	}
	return *r.Version
}

// HasVersion reports whether a version was recorded.
func (r Record) HasVersion() bool {
	return r.Version != nil
}

// Version returns a pointer to v, or nil when v is empty.
func Version(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Package string
	Type    OperationType
	Limit   int
}

// logFile is the on-disk document.
type logFile struct {
	Operations []Record `json:"operations"`
}
