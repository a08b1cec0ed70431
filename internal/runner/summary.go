package runner

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/signalnine/regress/internal/testcase"
)

const banner = "=================================================================="

// TailLines is how much solver output the summary shows per failing case.
const TailLines = 10

// PrintSummary writes one line per case followed by diagnostics for every
// case that did not pass. Colour is only emitted when w is a terminal.
func PrintSummary(w io.Writer, verdicts []testcase.Verdict) {
	r := lipgloss.NewRenderer(w)
	passStyle := r.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle := r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dim := r.NewStyle().Faint(true)

	fmt.Fprintln(w, banner)
	fmt.Fprintln(w, "Summary of the regression tests")
	for _, v := range verdicts {
		if v.Passed() {
			fmt.Fprintf(w, "  %s - %s\n", passStyle.Render("passed"), v.Tag)
		} else {
			fmt.Fprintf(w, "* %s - %s\n", failStyle.Render("FAILED"), v.Tag)
		}
	}

	var failed []testcase.Verdict
	for _, v := range verdicts {
		if !v.Passed() {
			failed = append(failed, v)
		}
	}
	if len(failed) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d of %d cases failed\n", len(failed), len(verdicts))
	for _, v := range failed {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "--- %s (%s)\n", v.Tag, v.State)
		fmt.Fprintf(w, "    %s\n", v.Describe())
		if v.State == testcase.Failed {
			for i, d := range v.Deltas {
				fmt.Fprintf(w, "    [%d] observed %-14v expected %-14v delta %+.3e\n", i, v.Observed[i], v.Expected[i], d)
			}
		}
		if tail := v.OutputTail(TailLines); tail != "" {
			fmt.Fprintln(w, dim.Render("    last output:"))
			for _, line := range strings.Split(tail, "\n") {
				fmt.Fprintln(w, dim.Render("    | "+line))
			}
		}
	}
}
