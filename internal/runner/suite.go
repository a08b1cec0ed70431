// Package runner drives a suite of regression cases and summarizes the
// outcome.
package runner

import (
	"context"
	"sync"

	"github.com/signalnine/regress/internal/logger"
	"github.com/signalnine/regress/internal/testcase"
)

// Suite runs cases and folds their verdicts.
type Suite struct {
	// Parallel is the maximum number of cases run at once. Values below 2
	// run sequentially. Cases sharing a working directory never overlap.
	Parallel int
	// OnVerdict, if set, is called once per finished case. Calls are
	// serialized.
	OnVerdict func(testcase.Spec, testcase.Verdict)

	mu sync.Mutex
}

// Run executes every case and returns verdicts in input order. A failing
// case does not stop the suite. Cases not started before ctx is cancelled
// are reported as NotRun.
func (s *Suite) Run(ctx context.Context, cases []*testcase.Case) []testcase.Verdict {
	verdicts := make([]testcase.Verdict, len(cases))
	for i, c := range cases {
		verdicts[i] = testcase.Verdict{
			Tag:      c.Spec().Tag(),
			State:    testcase.NotRun,
			Expected: c.Spec().Expected(),
		}
	}

	if s.Parallel < 2 {
		for i, c := range cases {
			if ctx.Err() != nil {
				break
			}
			verdicts[i] = s.runOne(ctx, c)
		}
	} else {
		var jobs []Job
		for _, group := range groupByDir(cases) {
			group := group
			jobs = append(jobs, func(ctx context.Context) error {
				for _, i := range group {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					verdicts[i] = s.runOne(ctx, cases[i])
				}
				return nil
			})
		}
		RunPool(ctx, s.Parallel, jobs)
	}

	for i := range verdicts {
		if verdicts[i].State == testcase.NotRun && ctx.Err() != nil {
			verdicts[i].Err = ctx.Err()
		}
	}
	return verdicts
}

func (s *Suite) runOne(ctx context.Context, c *testcase.Case) testcase.Verdict {
	v := c.Run(ctx)
	if v.Passed() {
		logger.Info("case passed", "tag", v.Tag, "duration", v.Duration)
	} else {
		logger.Warn("case did not pass", "tag", v.Tag, "state", v.State, "reason", v.Describe())
	}
	if s.OnVerdict != nil {
		s.mu.Lock()
		s.OnVerdict(c.Spec(), v)
		s.mu.Unlock()
	}
	return v
}

// groupByDir returns case indexes grouped by working directory, groups
// ordered by first appearance.
func groupByDir(cases []*testcase.Case) [][]int {
	var groups [][]int
	index := map[string]int{}
	for i, c := range cases {
		dir := c.Spec().Dir()
		g, ok := index[dir]
		if !ok {
			g = len(groups)
			index[dir] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// Passed reports whether every verdict passed. An empty suite passes.
func Passed(verdicts []testcase.Verdict) bool {
	for _, v := range verdicts {
		if !v.Passed() {
			return false
		}
	}
	return true
}

// ExitCode maps verdicts to the process exit status: 0 if all passed, 1
// otherwise.
func ExitCode(verdicts []testcase.Verdict) int {
	if Passed(verdicts) {
		return 0
	}
	return 1
}
