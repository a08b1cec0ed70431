package testcase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/regress/internal/env"
	"github.com/signalnine/regress/internal/history"
	"github.com/signalnine/regress/internal/process"
	"github.com/signalnine/regress/internal/testcase"
)

// stubSolver writes a shell script named SU2_CFD into a fresh bin dir and
// returns the bin dir plus a case dir to run in.
func stubSolver(t *testing.T, body string) (binDir, caseDir string) {
	t.Helper()
	root := t.TempDir()
	binDir = filepath.Join(root, "bin")
	caseDir = filepath.Join(root, "euler", "channel")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.MkdirAll(caseDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "SU2_CFD"), []byte("#!/bin/sh\n"+body), 0o755))
	return binDir, caseDir
}

func channelSpec(t *testing.T, dir string, timeout time.Duration) testcase.Spec {
	t.Helper()
	p := validParams()
	p.Dir = dir
	p.Timeout = timeout
	s, err := testcase.NewSpec(p)
	require.NoError(t, err)
	return s
}

func TestCaseEndToEndPass(t *testing.T) {
	bin, dir := stubSolver(t, `echo "Reading config $1"
echo "   99 -3.000000 2.000000 0.008000 0.029000"
echo "  100 -3.110240 2.263506 0.008686 0.029098"
`)
	c := testcase.New(channelSpec(t, dir, 10*time.Second), process.Runner{}, env.PathResolver{BinDir: bin}, testcase.Options{})
	assert.Equal(t, testcase.NotRun, c.State())

	v := c.Run(context.Background())
	require.Equal(t, testcase.Passed, v.State, v.Describe())
	assert.True(t, v.Passed())
	assert.Equal(t, testcase.Passed, c.State())
	assert.Equal(t, 100, v.Iteration)
	assert.Equal(t, []float64{-3.110240, 2.263506, 0.008686, 0.029098}, v.Observed)
	assert.Empty(t, v.Mismatches)
	assert.Contains(t, v.Output, "Reading config inv_channel_RK.cfg")
	assert.Empty(t, v.Describe())
}

func TestCaseToleranceMismatch(t *testing.T) {
	bin, dir := stubSolver(t, `echo "100 -3.110240 2.263506 0.009686 0.029098"`)
	c := testcase.New(channelSpec(t, dir, 10*time.Second), process.Runner{}, env.PathResolver{BinDir: bin}, testcase.Options{})

	v := c.Run(context.Background())
	require.Equal(t, testcase.Failed, v.State)
	require.Len(t, v.Mismatches, 1)
	assert.Equal(t, 2, v.Mismatches[0].Index)
	assert.InDelta(t, 0.001, v.Mismatches[0].Delta, 1e-9)
	assert.Len(t, v.Deltas, 4)
	assert.Contains(t, v.Describe(), "[2]: expected 0.008686, got 0.009686")
}

func TestCaseTimeout(t *testing.T) {
	bin, dir := stubSolver(t, "echo \"1 0 0 0 0\"\nsleep 30\n")
	c := testcase.New(channelSpec(t, dir, 300*time.Millisecond), process.Runner{}, env.PathResolver{BinDir: bin}, testcase.Options{})

	start := time.Now()
	v := c.Run(context.Background())
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, testcase.TimedOut, v.State)
	assert.Equal(t, process.ExitCodeTimedOut, v.ExitCode)
	assert.Nil(t, v.Observed)
	assert.Contains(t, v.Output, "1 0 0 0 0")
}

func TestCaseParseError(t *testing.T) {
	bin, dir := stubSolver(t, "echo 'Error in mesh file'\nexit 1\n")
	c := testcase.New(channelSpec(t, dir, 10*time.Second), process.Runner{}, env.PathResolver{BinDir: bin}, testcase.Options{})

	v := c.Run(context.Background())
	assert.Equal(t, testcase.ParseError, v.State)
	assert.ErrorIs(t, v.Err, history.ErrNoHistory)
	assert.Equal(t, 1, v.ExitCode)
	assert.Nil(t, v.Observed)
	assert.Contains(t, v.Describe(), "exited with status 1")
}

func TestCaseNonZeroExitStillParsedByDefault(t *testing.T) {
	bin, dir := stubSolver(t, "echo '100 -3.110240 2.263506 0.008686 0.029098'\nexit 2\n")
	spec := channelSpec(t, dir, 10*time.Second)

	v := testcase.New(spec, process.Runner{}, env.PathResolver{BinDir: bin}, testcase.Options{}).Run(context.Background())
	assert.Equal(t, testcase.Passed, v.State)
	assert.Equal(t, 2, v.ExitCode)

	v = testcase.New(spec, process.Runner{}, env.PathResolver{BinDir: bin}, testcase.Options{RequireZeroExit: true}).Run(context.Background())
	assert.Equal(t, testcase.ProcessError, v.State)
	assert.ErrorContains(t, v.Err, "status 2")
}

func TestCaseMissingExecutable(t *testing.T) {
	dir := t.TempDir()
	p := validParams()
	p.Dir = dir
	p.Executable = "no-such-solver-binary"
	spec, err := testcase.NewSpec(p)
	require.NoError(t, err)

	exec := &recordingExecutor{}
	v := testcase.New(spec, exec, env.PathResolver{BinDir: dir}, testcase.Options{}).Run(context.Background())
	assert.Equal(t, testcase.ProcessError, v.State)
	assert.Error(t, v.Err)
	assert.Zero(t, exec.calls, "nothing should be spawned")
}

func TestCaseLaunchErrorIsProcessError(t *testing.T) {
	exec := &recordingExecutor{err: &process.LaunchError{Path: "SU2_CFD", Err: os.ErrPermission}}
	v := testcase.New(channelSpec(t, t.TempDir(), time.Second), exec, env.ContainerResolver{}, testcase.Options{}).Run(context.Background())
	assert.Equal(t, testcase.ProcessError, v.State)
	var le *process.LaunchError
	assert.True(t, errors.As(v.Err, &le))
}

func TestCaseBuildsLauncherCommand(t *testing.T) {
	exec := &recordingExecutor{res: &process.Result{Output: "100 -3.110240 2.263506 0.008686 0.029098\n"}}
	opts := testcase.Options{
		Launcher: []string{"mpirun", "-np", "2"},
		Env:      []string{"OMP_NUM_THREADS=1"},
	}
	spec := channelSpec(t, "/data/euler/channel", time.Minute)
	v := testcase.New(spec, exec, env.ContainerResolver{BinDir: "/opt/su2/bin"}, opts).Run(context.Background())

	require.Equal(t, testcase.Passed, v.State)
	require.Equal(t, 1, exec.calls)
	assert.Equal(t, "mpirun", exec.last.Path)
	assert.Equal(t, []string{"-np", "2", "/opt/su2/bin/SU2_CFD", "inv_channel_RK.cfg"}, exec.last.Args)
	assert.Equal(t, "/data/euler/channel", exec.last.Dir)
	assert.Equal(t, []string{"OMP_NUM_THREADS=1"}, exec.last.Env)
	assert.Equal(t, time.Minute, exec.last.Timeout)
}

func TestCaseRerunStartsFresh(t *testing.T) {
	exec := &recordingExecutor{res: &process.Result{Output: "100 0 0 0 0\n"}}
	c := testcase.New(channelSpec(t, "/tmp", time.Minute), exec, env.ContainerResolver{}, testcase.Options{})

	assert.Equal(t, testcase.Failed, c.Run(context.Background()).State)
	exec.res = &process.Result{Output: "100 -3.110240 2.263506 0.008686 0.029098\n"}
	assert.Equal(t, testcase.Passed, c.Run(context.Background()).State)
	assert.Equal(t, testcase.Passed, c.State())
	assert.Equal(t, 2, exec.calls)
}

func TestEvaluateStoredOutput(t *testing.T) {
	spec := channelSpec(t, "/tmp", time.Minute)

	v := testcase.Evaluate(spec, history.Parser{}, "100 -3.110240 2.263506 0.008686 0.029098\n")
	assert.Equal(t, testcase.Passed, v.State)

	v = testcase.Evaluate(spec, history.Parser{}, "")
	assert.Equal(t, testcase.ParseError, v.State)
	assert.Nil(t, v.Observed)

	v = testcase.Evaluate(spec, history.Parser{Marker: "Begin solver"}, "100 -3.110240 2.263506 0.008686 0.029098\n")
	assert.Equal(t, testcase.ParseError, v.State)
}

func TestVerdictOutputTail(t *testing.T) {
	v := testcase.Verdict{Output: "a\nb\nc\nd\n"}
	assert.Equal(t, "c\nd", v.OutputTail(2))
	assert.Equal(t, "a\nb\nc\nd", v.OutputTail(10))
	assert.Empty(t, v.OutputTail(0))
}

type recordingExecutor struct {
	res   *process.Result
	err   error
	calls int
	last  process.Request
}

func (e *recordingExecutor) Run(_ context.Context, req process.Request) (*process.Result, error) {
	e.calls++
	e.last = req
	if e.err != nil {
		return nil, e.err
	}
	r := *e.res
	return &r, nil
}
