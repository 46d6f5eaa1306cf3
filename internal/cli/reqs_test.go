package cli

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/construct/internal/converge"
	"github.com/roach88/construct/internal/oracle"
	"github.com/roach88/construct/internal/testutil"
)

func reqsWorkspace(t *testing.T) *testutil.Workspace {
	return testutil.NewWorkspace(t).
		Write("README.md", "# Demo\n").
		Write("reqs/core.md", "## $REQ_A: Alpha\n").
		Write("the-system/prompts/req-fix_sources.md", "fix\n")
}

func TestReqsCommandConverges(t *testing.T) {
	ws := reqsWorkspace(t)
	o := scripted()
	opts := &RootOptions{Workspace: ws.Root, Oracle: o}

	res := execute(t, opts, NewReqsCommand(opts), "")
	require.NoError(t, res.err)

	assert.Contains(t, res.out, "REQUIREMENTS GENERATION")
	assert.Contains(t, res.out, "complete after 1 iteration(s)")
	assert.Len(t, o.Calls(converge.LabelCheckReadmes), 1)
	assert.Len(t, o.Calls("req-fix_sources"), 1)
}

func TestReqsCommandReviewContinuesOnEnter(t *testing.T) {
	ws := reqsWorkspace(t)
	o := scripted().On(converge.LabelCheckReadmes, oracle.Respond(converge.ReadmeChangesMarker))
	opts := &RootOptions{Workspace: ws.Root, Oracle: o}

	res := execute(t, opts, NewReqsCommand(opts), "\n")
	require.NoError(t, res.err)

	assert.Contains(t, res.out, "README QUALITY ISSUES DETECTED")
	assert.Contains(t, res.out, "Continuing with requirements generation")
}

func TestReqsCommandReviewStopsOnEOF(t *testing.T) {
	ws := reqsWorkspace(t)
	o := scripted().On(converge.LabelCheckReadmes, oracle.Respond(converge.ReadmeChangesMarker))
	opts := &RootOptions{Workspace: ws.Root, Oracle: o}

	res := execute(t, opts, NewReqsCommand(opts), "")

	require.Error(t, res.err)
	assert.True(t, errors.Is(res.err, ErrStoppedForReview))
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Empty(t, o.Calls("req-fix_sources"))
}

func TestReqsCommandYes(t *testing.T) {
	ws := reqsWorkspace(t)
	o := scripted().On("req-fix_sources", oracle.Respond("vague\n"+converge.ReadmeChangesMarker))
	opts := &RootOptions{Workspace: ws.Root, Oracle: o}

	res := execute(t, opts, NewReqsCommand(opts), "", "--yes", "--skip-readme-check")
	require.NoError(t, res.err)

	assert.Contains(t, res.out, "Continuing (--yes)")
	assert.Empty(t, o.Calls(converge.LabelCheckReadmes))
}

func TestReqsCommandNonConvergence(t *testing.T) {
	ws := reqsWorkspace(t)
	var n atomic.Int32
	o := scripted().On("req-fix_sources", func(context.Context, oracle.Request) (string, error) {
		ws.Write("reqs/core.md", fmt.Sprintf("## $REQ_A: Alpha\nrevision %d\n", n.Add(1)))
		return "changed", nil
	})
	opts := &RootOptions{Workspace: ws.Root, Oracle: o}

	res := execute(t, opts, NewReqsCommand(opts), "", "--skip-readme-check", "--max-iterations", "3")

	require.Error(t, res.err)
	assert.Equal(t, ExitNonConvergence, GetExitCode(res.err))
	assert.Len(t, o.Calls("req-fix_sources"), 3)
}
