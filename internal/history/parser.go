// Package history extracts convergence-history rows from solver output.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Columns is the number of trailing values compared per history row.
const Columns = 4

// ErrNoHistory is returned when output contains no history rows.
var ErrNoHistory = errors.New("no convergence history found in output")

// FieldError reports a history field that is not a number.
type FieldError struct {
	Line  int
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("line %d: invalid history value %q: %v", e.Line, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Row is one selected history row.
type Row struct {
	Iteration int
	Line      int
	Values    []float64
}

// Parser finds history rows in solver output. When Marker is set, only lines
// after the first line containing it are scanned.
type Parser struct {
	Marker string
}

type candidate struct {
	iteration int
	line      int
	fields    []string
}

// Parse returns the row for iteration. An exact match wins and its last
// occurrence is authoritative; otherwise the nearest iteration is used, ties
// going to the row printed later.
func (p Parser) Parse(output string, iteration int) (*Row, error) {
	rows, err := p.scan(output)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoHistory
	}

	best := -1
	bestDist := 0
	for i, r := range rows {
		d := abs(r.iteration - iteration)
		if best < 0 || d <= bestDist {
			best, bestDist = i, d
		}
	}

	sel := rows[best]
	values := make([]float64, Columns)
	tail := sel.fields[len(sel.fields)-Columns:]
	for i, f := range tail {
		v, err := parseFloat(f)
		if err != nil {
			return nil, &FieldError{Line: sel.line, Field: f, Err: err}
		}
		values[i] = v
	}
	return &Row{Iteration: sel.iteration, Line: sel.line, Values: values}, nil
}

func (p Parser) scan(output string) ([]candidate, error) {
	var rows []candidate
	inHistory := p.Marker == ""

	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if !inHistory {
			if strings.Contains(line, p.Marker) {
				inHistory = true
			}
			continue
		}
		fields := splitFields(line)
		if len(fields) < Columns+1 {
			continue
		}
		it, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		rows = append(rows, candidate{iteration: it, line: lineNo, fields: fields})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading output: %w", err)
	}
	if !inHistory {
		return nil, fmt.Errorf("%w: marker %q not found", ErrNoHistory, p.Marker)
	}
	return rows, nil
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		switch r {
		case ' ', '\t', '\r', '|', ',':
			return true
		}
		return false
	})
}

// parseFloat accepts Fortran-style D exponents in addition to Go syntax.
func parseFloat(s string) (float64, error) {
	if strings.ContainsAny(s, "dD") {
		s = strings.NewReplacer("d", "e", "D", "E").Replace(s)
	}
	return strconv.ParseFloat(s, 64)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
