package testcase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/signalnine/regress/internal/compare"
	"github.com/signalnine/regress/internal/env"
	"github.com/signalnine/regress/internal/history"
	"github.com/signalnine/regress/internal/logger"
	"github.com/signalnine/regress/internal/process"
)

// Executor runs one solver invocation. process.Runner and docker.Runner
// implement it.
type Executor interface {
	Run(ctx context.Context, req process.Request) (*process.Result, error)
}

// Resolver maps an executable name to the path that will be launched.
type Resolver interface {
	Resolve(name string) (string, error)
}

// Options are suite-wide settings shared by every case.
type Options struct {
	Launcher        []string
	Env             []string
	Parser          history.Parser
	RequireZeroExit bool
	Stream          io.Writer
}

// Case runs a Spec and records the last state reached.
type Case struct {
	spec     Spec
	exec     Executor
	resolver Resolver
	opts     Options

	mu    sync.Mutex
	state State
}

func New(spec Spec, exec Executor, resolver Resolver, opts Options) *Case {
	return &Case{spec: spec, exec: exec, resolver: resolver, opts: opts}
}

func (c *Case) Spec() Spec { return c.spec }

// State returns the state reached by the most recent Run.
func (c *Case) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Case) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes the solver from scratch and classifies the outcome. It never
// returns an error; every failure becomes a terminal state in the Verdict.
func (c *Case) Run(ctx context.Context) Verdict {
	c.setState(Running)
	v := c.run(ctx)
	c.setState(v.State)
	return v
}

func (c *Case) run(ctx context.Context) Verdict {
	s := c.spec
	v := Verdict{
		Tag:       s.Tag(),
		Expected:  s.Expected(),
		Tolerance: s.Tolerance(),
	}

	exe, err := c.resolver.Resolve(s.Executable())
	if err != nil {
		v.State = ProcessError
		v.Err = fmt.Errorf("resolving executable: %w", err)
		return v
	}

	path, args := env.Command(c.opts.Launcher, exe, s.ConfigFile())
	logger.Info("running case", "tag", s.Tag(), "dir", s.Dir(), "config", s.ConfigFile())

	res, err := c.exec.Run(ctx, process.Request{
		Path:    path,
		Args:    args,
		Dir:     s.Dir(),
		Env:     c.opts.Env,
		Timeout: s.Timeout(),
		Stream:  c.opts.Stream,
	})
	if err != nil {
		v.State = ProcessError
		v.Err = err
		var le *process.LaunchError
		if !errors.As(err, &le) && ctx.Err() == nil {
			v.Err = fmt.Errorf("running solver: %w", err)
		}
		return v
	}

	v.ExitCode = res.ExitCode
	v.Duration = res.Duration
	v.Output = res.Output

	if res.TimedOut {
		v.State = TimedOut
		return v
	}
	if res.ExitCode != 0 && c.opts.RequireZeroExit {
		v.State = ProcessError
		v.Err = fmt.Errorf("solver exited with status %d", res.ExitCode)
		return v
	}

	ev := Evaluate(s, c.opts.Parser, res.Output)
	ev.ExitCode, ev.Duration, ev.Output = v.ExitCode, v.Duration, v.Output
	if ev.State == ParseError && res.ExitCode != 0 {
		ev.Err = fmt.Errorf("%w (solver exited with status %d)", ev.Err, res.ExitCode)
	}
	return ev
}

// Evaluate parses output and compares it with the baselines in s, without
// running anything. The result is Passed, Failed or ParseError.
func Evaluate(s Spec, parser history.Parser, output string) Verdict {
	v := Verdict{
		Tag:       s.Tag(),
		Expected:  s.Expected(),
		Tolerance: s.Tolerance(),
		Output:    output,
	}

	row, err := parser.Parse(output, s.Iterations())
	if err != nil {
		v.State = ParseError
		v.Err = err
		return v
	}
	v.Iteration = row.Iteration
	v.Observed = row.Values

	cmp, err := compare.Vectors(row.Values, v.Expected, s.Tolerance())
	if err != nil {
		v.State = ParseError
		v.Err = err
		return v
	}
	v.Deltas = cmp.Deltas
	v.Mismatches = cmp.Mismatches
	if cmp.Passed {
		v.State = Passed
	} else {
		v.State = Failed
	}
	return v
}
