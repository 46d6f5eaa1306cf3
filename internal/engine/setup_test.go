package engine

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/construct/internal/oracle"
	"github.com/roach88/construct/internal/testutil"
)

func removeFile(ws *testutil.Workspace, rel string) error {
	return os.Remove(ws.Path(rel))
}

func TestSetup_MissingReadme(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	f := newFixture(t, ws, nil)

	_, err := f.engine.Setup(context.Background())

	var pe *PrerequisiteError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ReasonMissingReadme, pe.Reason)
	assert.Equal(t, "README.md", pe.Path)
	assert.Empty(t, f.oracle.Requests())
}

func TestSetup_AuthorsBuildScript(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("README.md", "# Demo\nBuild with make.\n").
		Write("tests/passing/test_01_a.py", "# $REQ_A\n").
		Write("reqs/core.md", "## $REQ_A: Alpha\na\n")
	f := newFixture(t, ws, nil)
	f.oracle.
		On(LabelBuildScript, func(context.Context, oracle.Request) (string, error) {
			ws.Write("tests/build.py", "print('make')\n")
			return "created", nil
		}).
		On(LabelArtifactsTest, func(context.Context, oracle.Request) (string, error) {
			ws.Write("tests/passing/_test_00_build_artifacts.py", "# checks outputs\n")
			return "created", nil
		})

	written, err := f.engine.Setup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, written)

	calls := f.oracle.Requests()
	require.Len(t, calls, 2)
	assert.Equal(t, LabelBuildScript, calls[0].Label)
	assert.Equal(t, "Please follow these instructions: @./the-system/prompts/BUILD_SCRIPT.md", calls[0].Prompt)
	assert.Equal(t, LabelArtifactsTest, calls[1].Label)
}

func TestSetup_InsufficientBuildInfo(t *testing.T) {
	ws := testutil.NewWorkspace(t).Write("README.md", "# Demo\n")
	f := newFixture(t, ws, nil)
	f.oracle.On(LabelBuildScript, oracle.Respond("I cannot. INSUFFICIENT_BUILD_INFO: no language named."))

	_, err := f.engine.Setup(context.Background())

	require.True(t, IsInsufficientInfo(err))
	var pe *PrerequisiteError
	require.True(t, errors.As(err, &pe))
	assert.NotEmpty(t, pe.Report, "the error points at the oracle's report")
	assert.Contains(t, err.Error(), pe.Report)
	assert.Len(t, f.oracle.Requests(), 1, "no artifacts test after a refusal")
}

func TestSetup_BuildScriptNotCreated(t *testing.T) {
	ws := testutil.NewWorkspace(t).Write("README.md", "# Demo\n")
	f := newFixture(t, ws, nil)
	f.oracle.On(LabelBuildScript, oracle.Respond("done, trust me"))

	_, err := f.engine.Setup(context.Background())

	var pe *PrerequisiteError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ReasonBuildNotCreated, pe.Reason)
	assert.False(t, IsInsufficientInfo(err))
}

func TestSetup_DedupeBeforeIndex(t *testing.T) {
	ws := readyWorkspace(t).
		Write("reqs/extra.md", "## $REQ_A: Alpha again\nsecond\n")
	f := newFixture(t, ws, nil)
	f.oracle.
		On(LabelUntested, writesTests(ws)).
		On(LabelStrategy, oracle.Respond("ok")).
		On(LabelOrderTests, oracle.Respond("ok"))

	written, err := f.engine.Setup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, written)
	assert.Equal(t, "## $REQ_A_2: Alpha again\nsecond\n", ws.Read("reqs/extra.md"))
	untested := f.oracle.Calls(LabelUntested)
	require.Len(t, untested, 1)
	assert.Contains(t, untested[0].Prompt, "$REQ_ID: $REQ_A_2")
	assert.Contains(t, untested[0].Prompt, "Flow file: reqs/extra.md")
}

func TestSetup_OrphansSurvive(t *testing.T) {
	ws := readyWorkspace(t).Write("tests/failing/test_01_a.py", "# $REQ_A $REQ_STALE\n")
	f := newFixture(t, ws, nil)
	f.oracle.On(LabelOrphans, oracle.Respond("could not find it"))

	_, err := f.engine.Setup(context.Background())

	var ie *InconsistencyError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, InconsistencyOrphans, ie.Kind)
	assert.Equal(t, []string{"$REQ_STALE"}, ie.IDs)
}

func TestSetup_StalledTestAuthoring(t *testing.T) {
	ws := readyWorkspace(t).Write("reqs/more.md", "## $REQ_B: Beta\nb\n")
	f := newFixture(t, ws, nil)
	f.oracle.On(LabelUntested, oracle.Respond("I wrote nothing"))

	_, err := f.engine.Setup(context.Background())

	require.True(t, IsInconsistencyError(err))
	var ie *InconsistencyError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, InconsistencyStalled, ie.Kind)
	assert.Equal(t, []string{"$REQ_B"}, ie.IDs)
	assert.Len(t, f.oracle.Calls(LabelUntested), 1, "no spinning on a stalled request")
}

func TestSetup_Idempotent(t *testing.T) {
	ws := readyWorkspace(t)
	ws.Write("tests/passing/test_01_a.py", ws.Read("tests/failing/test_01_a.py"))
	require.NoError(t, removeFile(ws, "tests/failing/test_01_a.py"))
	f := newFixture(t, ws, nil)

	for i := 0; i < 2; i++ {
		written, err := f.engine.Setup(context.Background())
		require.NoError(t, err)
		assert.Zero(t, written)
	}
	assert.Empty(t, f.oracle.Requests())
}

func TestSetup_StrategyWhenSuiteEmpty(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		Write("README.md", "# Demo\n").
		Write("tests/build.py", "")
	f := newFixture(t, ws, nil)
	f.oracle.On(LabelStrategy, oracle.Respond("ok"))

	_, err := f.engine.Setup(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.oracle.Calls(LabelStrategy), 1)
	assert.Empty(t, f.oracle.Calls(LabelOrderTests))
}
