package process_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/regress/internal/process"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunCapturesMergedOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "solver.sh", `echo "out line"
echo "err line" >&2
echo "arg=$1"
`)

	res, err := process.Runner{}.Run(context.Background(), process.Request{
		Path:    script,
		Args:    []string{"case.cfg"},
		Dir:     dir,
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "out line\nerr line\narg=case.cfg\n", res.Output)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestRunUsesWorkingDirectoryAndEnv(t *testing.T) {
	dir := t.TempDir()
	caseDir := filepath.Join(dir, "euler", "channel")
	require.NoError(t, os.MkdirAll(caseDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(caseDir, "mesh.su2"), []byte("mesh"), 0o644))
	script := writeScript(t, dir, "solver.sh", `cat mesh.su2; echo " $SOLVER_FLAG"`)

	res, err := process.Runner{}.Run(context.Background(), process.Request{
		Path:    script,
		Dir:     caseDir,
		Env:     []string{"SOLVER_FLAG=on"},
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "mesh on\n", res.Output)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	script := writeScript(t, t.TempDir(), "fail.sh", "echo diverged\nexit 3\n")

	res, err := process.Runner{}.Run(context.Background(), process.Request{
		Path:    script,
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Contains(t, res.Output, "diverged")
}

func TestRunLaunchFailure(t *testing.T) {
	dir := t.TempDir()
	notExec := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(notExec, []byte("data"), 0o644))

	for _, path := range []string{filepath.Join(dir, "missing"), notExec} {
		res, err := process.Runner{}.Run(context.Background(), process.Request{
			Path:    path,
			Timeout: time.Second,
		})
		assert.Nil(t, res)
		var le *process.LaunchError
		require.True(t, errors.As(err, &le), "path %s: %v", path, err)
		assert.Equal(t, path, le.Path)
	}
}

func TestRunTimeoutReturnsPromptly(t *testing.T) {
	script := writeScript(t, t.TempDir(), "hang.sh", "echo started\nsleep 30\n")

	start := time.Now()
	res, err := process.Runner{}.Run(context.Background(), process.Request{
		Path:    script,
		Timeout: 300 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, res.TimedOut)
	assert.Equal(t, process.ExitCodeTimedOut, res.ExitCode)
	assert.Contains(t, res.Output, "started")
}

func TestRunStreamsOutput(t *testing.T) {
	script := writeScript(t, t.TempDir(), "solver.sh", "echo streamed\n")

	var stream bytes.Buffer
	res, err := process.Runner{}.Run(context.Background(), process.Request{
		Path:    script,
		Timeout: 10 * time.Second,
		Stream:  &stream,
	})
	require.NoError(t, err)
	assert.Equal(t, "streamed\n", res.Output)
	assert.Equal(t, "streamed\n", stream.String())
}

func TestRunParentCancellation(t *testing.T) {
	script := writeScript(t, t.TempDir(), "hang.sh", "sleep 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res, err := process.Runner{}.Run(ctx, process.Request{
		Path:    script,
		Timeout: time.Minute,
	})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunRejectsNonPositiveTimeout(t *testing.T) {
	_, err := process.Runner{}.Run(context.Background(), process.Request{Path: "/bin/true"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timeout"))
}
