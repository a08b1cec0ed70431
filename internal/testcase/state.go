package testcase

import "fmt"

// State is the lifecycle position of a case.
type State int

const (
	NotRun State = iota
	Running
	Passed
	Failed
	TimedOut
	ParseError
	ProcessError
)

var stateNames = map[State]string{
	NotRun:       "not_run",
	Running:      "running",
	Passed:       "passed",
	Failed:       "failed",
	TimedOut:     "timed_out",
	ParseError:   "parse_error",
	ProcessError: "process_error",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s is an outcome of a finished run.
func (s State) Terminal() bool {
	return s >= Passed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseState converts a state name back to a State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return NotRun, fmt.Errorf("unknown state %q", name)
}
