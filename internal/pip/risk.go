package pip

import "strings"

// RiskLevel grades how disruptive an update is likely to be.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "high"    // major version changes
	RiskMedium  RiskLevel = "medium"  // minor version changes
	RiskLow     RiskLevel = "low"     // patch or build changes
	RiskUnknown RiskLevel = "unknown" // a version is missing
)

// UpdateRisk compares dotted version strings component-wise.
func UpdateRisk(current, latest string) RiskLevel {
	current = strings.TrimSpace(current)
	latest = strings.TrimSpace(latest)
	if current == "" || latest == "" {
		return RiskUnknown
	}

	cur := strings.Split(current, ".")
	lat := strings.Split(latest, ".")

	if cur[0] != lat[0] {
		return RiskHigh
	}
	if len(cur) > 1 && len(lat) > 1 && cur[1] != lat[1] {
		return RiskMedium
	}
	return RiskLow
}
