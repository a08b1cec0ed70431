package testcase

import (
	"fmt"
	"strings"
	"time"

	"github.com/signalnine/regress/internal/compare"
)

// Verdict is the outcome of one case run.
type Verdict struct {
	Tag        string
	State      State
	Iteration  int // history row actually compared
	Observed   []float64
	Expected   []float64
	Deltas     []float64
	Mismatches []compare.Mismatch
	Tolerance  float64
	ExitCode   int
	Duration   time.Duration
	Output     string
	Err        error
}

func (v Verdict) Passed() bool {
	return v.State == Passed
}

// Describe explains a non-passing verdict in one line.
func (v Verdict) Describe() string {
	switch v.State {
	case Passed:
		return ""
	case Failed:
		parts := make([]string, len(v.Mismatches))
		for i, m := range v.Mismatches {
			parts[i] = m.String()
		}
		return fmt.Sprintf("values outside tolerance %v at iteration %d: %s",
			v.Tolerance, v.Iteration, strings.Join(parts, "; "))
	case TimedOut:
		return fmt.Sprintf("timed out after %s", v.Duration.Round(time.Millisecond))
	case NotRun:
		return "not run"
	}
	if v.Err != nil {
		return fmt.Sprintf("%s: %v", v.State, v.Err)
	}
	return v.State.String()
}

// OutputTail returns at most n trailing lines of the captured output.
func (v Verdict) OutputTail(n int) string {
	out := strings.TrimRight(v.Output, "\n")
	if out == "" || n <= 0 {
		return ""
	}
	lines := strings.Split(out, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
