// Package testcase defines a regression case and runs it against the solver.
package testcase

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/signalnine/regress/internal/history"
)

// SpecParams holds the raw fields of a case before validation.
type SpecParams struct {
	Tag        string
	Category   string
	Priority   int
	Dir        string
	ConfigFile string
	Iterations int
	Executable string
	Expected   []float64
	Timeout    time.Duration
	Tolerance  float64
}

// Spec is a validated, immutable case description. Obtain one from NewSpec.
type Spec struct {
	tag        string
	category   string
	priority   int
	dir        string
	configFile string
	iterations int
	executable string
	expected   []float64
	timeout    time.Duration
	tolerance  float64
}

// NewSpec validates p and returns the corresponding Spec.
func NewSpec(p SpecParams) (Spec, error) {
	var errs []error
	if p.Tag == "" {
		errs = append(errs, errors.New("tag is required"))
	}
	if p.Dir == "" {
		errs = append(errs, errors.New("working directory is required"))
	}
	if p.ConfigFile == "" {
		errs = append(errs, errors.New("config file is required"))
	}
	if p.Executable == "" {
		errs = append(errs, errors.New("executable is required"))
	}
	if p.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must be >= 0, got %d", p.Iterations))
	}
	if len(p.Expected) != history.Columns {
		errs = append(errs, fmt.Errorf("expected %d baseline values, got %d", history.Columns, len(p.Expected)))
	}
	for i, v := range p.Expected {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("baseline value %d is not finite", i))
		}
	}
	if math.IsNaN(p.Tolerance) || p.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance must be >= 0, got %v", p.Tolerance))
	}
	if p.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", p.Timeout))
	}
	if err := errors.Join(errs...); err != nil {
		if p.Tag != "" {
			return Spec{}, fmt.Errorf("case %q: %w", p.Tag, err)
		}
		return Spec{}, err
	}

	return Spec{
		tag:        p.Tag,
		category:   p.Category,
		priority:   p.Priority,
		dir:        p.Dir,
		configFile: p.ConfigFile,
		iterations: p.Iterations,
		executable: p.Executable,
		expected:   append([]float64(nil), p.Expected...),
		timeout:    p.Timeout,
		tolerance:  p.Tolerance,
	}, nil
}

func (s Spec) Tag() string            { return s.tag }
func (s Spec) Category() string       { return s.category }
func (s Spec) Priority() int          { return s.priority }
func (s Spec) Dir() string            { return s.dir }
func (s Spec) ConfigFile() string     { return s.configFile }
func (s Spec) Iterations() int        { return s.iterations }
func (s Spec) Executable() string     { return s.executable }
func (s Spec) Timeout() time.Duration { return s.timeout }
func (s Spec) Tolerance() float64     { return s.tolerance }

// Expected returns a copy of the baseline values.
func (s Spec) Expected() []float64 {
	return append([]float64(nil), s.expected...)
}
