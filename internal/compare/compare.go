// Package compare checks observed solver values against recorded baselines.
package compare

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrLengthMismatch    = errors.New("observed and expected lengths differ")
	ErrNegativeTolerance = errors.New("tolerance must be a non-negative number")
)

// Mismatch describes one column outside tolerance.
type Mismatch struct {
	Index    int     `json:"index"`
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
	Delta    float64 `json:"delta"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("[%d]: expected %v, got %v (delta %.6g)", m.Index, m.Expected, m.Observed, m.Delta)
}

// Result is the outcome of a vector comparison. Deltas holds
// observed-expected for every column, failing or not.
type Result struct {
	Passed     bool
	Tolerance  float64
	Deltas     []float64
	Mismatches []Mismatch
}

// Vectors compares observed against expected element-wise. The comparison
// passes iff |observed[i]-expected[i]| <= tolerance for every i. Tolerance is
// absolute: baselines span several orders of magnitude and a relative
// tolerance would accept different answers near zero.
func Vectors(observed, expected []float64, tolerance float64) (Result, error) {
	if math.IsNaN(tolerance) || tolerance < 0 {
		return Result{}, fmt.Errorf("%w: %v", ErrNegativeTolerance, tolerance)
	}
	if len(observed) != len(expected) {
		return Result{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(observed), len(expected))
	}

	res := Result{
		Passed:    true,
		Tolerance: tolerance,
		Deltas:    make([]float64, len(expected)),
	}
	for i := range expected {
		delta := observed[i] - expected[i]
		res.Deltas[i] = delta
		// NaN deltas fail this check too.
		if !(math.Abs(delta) <= tolerance) {
			res.Passed = false
			res.Mismatches = append(res.Mismatches, Mismatch{
				Index:    i,
				Observed: observed[i],
				Expected: expected[i],
				Delta:    delta,
			})
		}
	}
	return res, nil
}

// Describe renders the failing columns on one line, or "" when passed.
func (r Result) Describe() string {
	if r.Passed {
		return ""
	}
	parts := make([]string, len(r.Mismatches))
	for i, m := range r.Mismatches {
		parts[i] = m.String()
	}
	return fmt.Sprintf("%s (tolerance: %v absolute)", strings.Join(parts, "; "), r.Tolerance)
}

// MaxAbsDelta returns the largest |delta| across all columns.
func (r Result) MaxAbsDelta() float64 {
	var max float64
	for _, d := range r.Deltas {
		if a := math.Abs(d); a > max || math.IsNaN(a) {
			max = a
		}
	}
	return max
}
