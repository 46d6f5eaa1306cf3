package ir

import (
	"fmt"
	"strings"
	"time"
)

// WorkKind tags the variant of a WorkItem.
type WorkKind string

const (
	WorkMissingBuildScript    WorkKind = "missing_build_script"
	WorkDuplicateIDs          WorkKind = "duplicate_ids"
	WorkOrphanRequirement     WorkKind = "orphan_requirement"
	WorkUntestedRequirement   WorkKind = "untested_requirement"
	WorkStrategyNoncompliance WorkKind = "strategy_noncompliance"
	WorkUnorderedTests        WorkKind = "unordered_tests"
)

// WorkItem is one unit of outstanding remediation found by querying the
// index or the filesystem. Each item is consumed exactly once by the setup
// step that produced it.
type WorkItem struct {
	Kind WorkKind

	// IDs lists the requirement ids the item concerns, in id order.
	// Empty for kinds that are not about specific requirements.
	IDs []string

	// Locations holds the tag occurrences for orphan items.
	Locations []RequirementLocation
}

// String renders a short description for logs and banners.
func (w WorkItem) String() string {
	if len(w.IDs) == 0 {
		return string(w.Kind)
	}
	return fmt.Sprintf("%s[%s]", w.Kind, strings.Join(w.IDs, ","))
}

// Attempt records one build-and-run of a failing test.
type Attempt struct {
	Test       string `json:"test"`
	Number     int    `json:"attempt"` // 1-based
	ExitCode   int    `json:"exit_code"`
	ReportPath string `json:"report_path,omitempty"`
}

// Passed reports whether the attempt ended with exit code 0.
func (a Attempt) Passed() bool {
	return a.ExitCode == 0
}

// Status is the header word written to a report.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// StatusOf derives the report status from an exit code.
func StatusOf(exitCode int) Status {
	if exitCode == 0 {
		return StatusPass
	}
	return StatusFail
}

// Report is an append-only audit artifact: one per test run and one per
// oracle invocation.
type Report struct {
	Timestamp  time.Time
	Label      string
	Status     Status
	Transcript string
}
