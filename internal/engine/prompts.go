package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/construct/internal/coverage"
	"github.com/roach88/construct/internal/harness"
	"github.com/roach88/construct/internal/ir"
	"github.com/roach88/construct/internal/oracle"
)

// Instruction documents, resolved under the prompts directory.
const (
	PromptBuildScript        = "BUILD_SCRIPT.md"
	PromptBuildArtifactsTest = "WRITE_BUILD_ARTIFACTS_TEST.md"
	PromptRemoveOrphans      = "REMOVE_ORPHAN_REQS.md"
	PromptWriteTest          = "WRITE_TEST.md"
	PromptStrategy           = "TEST-STRATEGY-COMPLIANCE.md"
	PromptOrderTests         = "ORDER_TESTS.md"
	PromptFixFailingTest     = "FIX_FAILING_TEST.md"
)

// Report labels of the oracle calls the engine makes.
const (
	LabelBuildScript   = "missing_build_script"
	LabelArtifactsTest = "build_artifacts_test"
	LabelOrphans       = "orphan_req_id"
	LabelUntested      = "untested_req"
	LabelStrategy      = "test_strategy_compliance"
	LabelOrderTests    = "order_tests"
	LabelFailingTest   = "failing_test"
)

// InsufficientBuildInfo is the marker an oracle answers with when the
// README cannot support a build procedure.
const InsufficientBuildInfo = "INSUFFICIENT_BUILD_INFO"

func orphanPrompt(promptsDir string, orphans []coverage.Orphan) string {
	var b strings.Builder
	b.WriteString(oracle.Instruction(promptsDir, PromptRemoveOrphans))
	b.WriteString("\n\nOrphan $REQ_IDs to remove:\n")
	for _, o := range orphans {
		fmt.Fprintf(&b, "  %s:\n", o.ID)
		for _, l := range o.Locations {
			fmt.Fprintf(&b, "    - %s\n", l)
		}
	}
	return b.String()
}

func writeTestPrompt(promptsDir string, def ir.RequirementDefinition) string {
	var b strings.Builder
	b.WriteString(oracle.Instruction(promptsDir, PromptWriteTest))
	b.WriteString("\n\nCreate test for requirement:\n")
	fmt.Fprintf(&b, "  $REQ_ID: %s\n", def.ID)
	fmt.Fprintf(&b, "  Flow file: %s\n", def.Origin)
	fmt.Fprintf(&b, "  Source: %s\n", def.Source)
	fmt.Fprintf(&b, "  Requirement text: %s\n", def.Text)
	return b.String()
}

func fixPrompt(promptsDir, test string, attempt, limit int, out harness.Outcome) string {
	var b strings.Builder
	b.WriteString(oracle.Instruction(promptsDir, PromptFixFailingTest))
	fmt.Fprintf(&b, "\n\nFailing test: %s\n", test)
	fmt.Fprintf(&b, "Attempt: %d/%d\n\n", attempt, limit)
	output := out.Transcript
	switch {
	case out.BuildFailed:
		output = fmt.Sprintf("Build failed with exit code %d\n", out.ExitCode)
	case out.TimedOut:
		output += "\n[The test was killed after exceeding its timeout]\n"
	}
	fmt.Fprintf(&b, "Test output:\n```\n%s\n```\n", output)
	return b.String()
}
