package result

import (
	"time"

	"github.com/signalnine/regress/internal/compare"
	"github.com/signalnine/regress/internal/testcase"
)

// RunMeta describes one suite run. It is written to run.json at the start
// of the run and rewritten when the run finishes.
type RunMeta struct {
	RunID          string     `json:"run_id"`
	Suite          string     `json:"suite"`
	Backend        string     `json:"backend"`
	SolverRevision string     `json:"solver_revision,omitempty"`
	SolverDirty    bool       `json:"solver_dirty,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Total          int        `json:"total"`
	Passed         int        `json:"passed"`
}

// CaseMeta is the stored outcome of one case.
type CaseMeta struct {
	Tag        string             `json:"tag"`
	Category   string             `json:"category,omitempty"`
	State      testcase.State     `json:"state"`
	Iteration  int                `json:"iteration"`
	Observed   []float64          `json:"observed,omitempty"`
	Expected   []float64          `json:"expected"`
	Deltas     []float64          `json:"deltas,omitempty"`
	Mismatches []compare.Mismatch `json:"mismatches,omitempty"`
	Tolerance  float64            `json:"tolerance"`
	ExitCode   int                `json:"exit_code"`
	DurationS  float64            `json:"duration_s"`
	Error      string             `json:"error,omitempty"`
}

func NewCaseMeta(spec testcase.Spec, v testcase.Verdict) *CaseMeta {
	m := &CaseMeta{
		Tag:        v.Tag,
		Category:   spec.Category(),
		State:      v.State,
		Iteration:  v.Iteration,
		Observed:   v.Observed,
		Expected:   v.Expected,
		Deltas:     v.Deltas,
		Mismatches: v.Mismatches,
		Tolerance:  v.Tolerance,
		ExitCode:   v.ExitCode,
		DurationS:  v.Duration.Seconds(),
	}
	if v.Err != nil {
		m.Error = v.Err.Error()
	}
	return m
}

func (m *CaseMeta) Passed() bool {
	return m.State == testcase.Passed
}
