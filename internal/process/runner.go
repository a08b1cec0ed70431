// Package process runs solver executables as local subprocesses.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/signalnine/regress/internal/logger"
)

// ExitCodeTimedOut is reported for runs killed on timeout, following timeout(1).
const ExitCodeTimedOut = 124

// DefaultWaitDelay bounds how long Wait blocks on pipes held open by
// descendants after the child itself has exited or been killed.
const DefaultWaitDelay = 2 * time.Second

// Request describes one solver invocation.
type Request struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string // appended to the parent environment
	Timeout time.Duration
	// Stream, if set, receives output as it is produced in addition to
	// the captured buffer.
	Stream io.Writer
}

// Result is the outcome of a completed or timed-out run.
type Result struct {
	Output   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// LaunchError means the process could not be started at all.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Runner executes requests on the local machine. Each child runs in its own
// process group, which is killed on timeout and swept after exit so no
// descendant outlives the run.
type Runner struct {
	WaitDelay time.Duration
}

// Run starts the request and waits for it to finish or time out. A non-zero
// exit is reported in the Result, not as an error. If ctx is cancelled the
// child is killed and ctx.Err() is returned.
func (r Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", req.Timeout)
	}

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, req.Path, req.Args...)
	cmd.Dir = req.Dir
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), req.Env...)
	}

	var buf bytes.Buffer
	var out io.Writer = &buf
	if req.Stream != nil {
		out = io.MultiWriter(&buf, req.Stream)
	}
	// One writer for both streams keeps them interleaved in arrival order.
	cmd.Stdout = out
	cmd.Stderr = out

	delay := r.WaitDelay
	if delay <= 0 {
		delay = DefaultWaitDelay
	}
	cmd.WaitDelay = delay
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: req.Path, Err: err}
	}
	pid := cmd.Process.Pid
	logger.Debug("process started", "path", req.Path, "pid", pid, "dir", req.Dir)

	waitErr := cmd.Wait()
	killGroup(pid)
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res := &Result{
		Output:   buf.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: elapsed,
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = ExitCodeTimedOut
		logger.Warn("process timed out", "path", req.Path, "pid", pid, "timeout", req.Timeout)
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		logger.Debug("output pipes held open after exit", "path", req.Path, "pid", pid)
	default:
		return nil, fmt.Errorf("waiting for %s: %w", req.Path, waitErr)
	}
	return res, nil
}
