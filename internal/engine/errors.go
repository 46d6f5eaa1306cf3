package engine

import (
	"errors"
	"fmt"
	"strings"
)

// PrerequisiteReason says which precondition of a run is unmet.
type PrerequisiteReason string

const (
	// ReasonMissingReadme means there is no README to author a build from.
	ReasonMissingReadme PrerequisiteReason = "MISSING_README"

	// ReasonInsufficientBuildInfo means the oracle declared the README
	// too thin to author a build procedure.
	ReasonInsufficientBuildInfo PrerequisiteReason = "INSUFFICIENT_BUILD_INFO"

	// ReasonBuildNotCreated means the oracle answered but no build
	// procedure appeared.
	ReasonBuildNotCreated PrerequisiteReason = "BUILD_NOT_CREATED"
)

// PrerequisiteError stops a run before the main loop.
type PrerequisiteError struct {
	Reason PrerequisiteReason
	Path   string // file concerned, if any
	Report string // latest report, if any
}

func (e *PrerequisiteError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonMissingReadme:
		msg = fmt.Sprintf("%s does not exist; describe the project and how to build it", e.Path)
	case ReasonInsufficientBuildInfo:
		msg = "README lacks the information needed to write a build script"
	case ReasonBuildNotCreated:
		msg = fmt.Sprintf("%s was not created", e.Path)
	default:
		msg = string(e.Reason)
	}
	if e.Report != "" {
		msg += " (see " + e.Report + ")"
	}
	return msg
}

// IsInsufficientInfo reports whether err is a PrerequisiteError for an
// insufficient README. Uses errors.As to handle wrapped errors.
func IsInsufficientInfo(err error) bool {
	var pe *PrerequisiteError
	if errors.As(err, &pe) {
		return pe.Reason == ReasonInsufficientBuildInfo
	}
	return false
}

// InconsistencyKind categorizes corpus inconsistencies.
type InconsistencyKind string

const (
	// InconsistencyOrphans means tags without definitions survived
	// remediation.
	InconsistencyOrphans InconsistencyKind = "ORPHANS_REMAIN"

	// InconsistencyStalled means a requested test was not written.
	InconsistencyStalled InconsistencyKind = "TEST_NOT_WRITTEN"

	// InconsistencyOverlap means a test file is both failing and passing.
	InconsistencyOverlap InconsistencyKind = "STATE_OVERLAP"
)

// InconsistencyError reports a corpus state the engine cannot repair.
type InconsistencyError struct {
	Kind   InconsistencyKind
	IDs    []string // requirement ids or test names concerned
	Report string
}

func (e *InconsistencyError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.IDs, ", "))
	if e.Report != "" {
		msg += " (see " + e.Report + ")"
	}
	return msg
}

// IsInconsistencyError reports whether err is an InconsistencyError.
// Uses errors.As to handle wrapped errors.
func IsInconsistencyError(err error) bool {
	var ie *InconsistencyError
	return errors.As(err, &ie)
}
