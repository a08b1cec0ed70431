// Package report renders stored run results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/regress/internal/result"
)

type CategorySummary struct {
	Name     string  `json:"name"`
	Cases    int     `json:"cases"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate"`
}

type Report struct {
	Run        *result.RunMeta    `json:"run,omitempty"`
	Categories []CategorySummary  `json:"categories"`
	Cases      []*result.CaseMeta `json:"cases"`
}

// Generate reads the results stored in runDir and writes them in format:
// table (default), markdown or json.
func Generate(runDir, format string, w io.Writer) error {
	metas, err := result.ListCases(runDir)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		return fmt.Errorf("no case results in %s", runDir)
	}
	rep := &Report{
		Categories: aggregate(metas),
		Cases:      metas,
	}
	if run, err := result.ReadRunMeta(runDir); err == nil {
		rep.Run = run
	}

	switch format {
	case "markdown":
		return writeMarkdown(rep, w)
	case "json":
		return writeJSON(rep, w)
	case "", "table":
		return writeTable(rep, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func aggregate(metas []*result.CaseMeta) []CategorySummary {
	byCat := map[string]*CategorySummary{}
	for _, m := range metas {
		name := m.Category
		if name == "" {
			name = "uncategorized"
		}
		s, ok := byCat[name]
		if !ok {
			s = &CategorySummary{Name: name}
			byCat[name] = s
		}
		s.Cases++
		if m.Passed() {
			s.Passed++
		}
	}

	var summaries []CategorySummary
	for _, s := range byCat {
		s.PassRate = float64(s.Passed) / float64(s.Cases)
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

// maxAbsDelta is "-" for cases that produced no comparison.
func maxAbsDelta(m *result.CaseMeta) string {
	if len(m.Deltas) == 0 {
		return "-"
	}
	var max float64
	for _, d := range m.Deltas {
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return fmt.Sprintf("%.2e", max)
}

func header(rep *Report) string {
	if rep.Run == nil {
		return ""
	}
	h := fmt.Sprintf("Run %s (%s)", rep.Run.RunID, rep.Run.Backend)
	if rep.Run.SolverRevision != "" {
		h += " solver " + rep.Run.SolverRevision
		if rep.Run.SolverDirty {
			h += "+dirty"
		}
	}
	return h
}

func writeTable(rep *Report, w io.Writer) error {
	if h := header(rep); h != "" {
		fmt.Fprintln(w, h)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tCATEGORY\tSTATE\tITER\tMAX |DELTA|\tDURATION")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, m := range rep.Cases {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.1fs\n",
			m.Tag, m.Category, m.State, m.Iteration, maxAbsDelta(m), m.DurationS)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CATEGORY\tCASES\tPASSED\tPASS RATE")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, s := range rep.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f%%\n", s.Name, s.Cases, s.Passed, s.PassRate*100)
	}
	return tw.Flush()
}

func writeMarkdown(rep *Report, w io.Writer) error {
	if h := header(rep); h != "" {
		fmt.Fprintf(w, "**%s**\n\n", h)
	}
	fmt.Fprintln(w, "| Tag | Category | State | Iter | Max abs delta | Duration |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|")
	for _, m := range rep.Cases {
		fmt.Fprintf(w, "| %s | %s | %s | %d | %s | %.1fs |\n",
			m.Tag, m.Category, m.State, m.Iteration, maxAbsDelta(m), m.DurationS)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Category | Cases | Passed | Pass Rate |")
	fmt.Fprintln(w, "|---|---|---|---|")
	for _, s := range rep.Categories {
		fmt.Fprintf(w, "| %s | %d | %d | %.0f%% |\n", s.Name, s.Cases, s.Passed, s.PassRate*100)
	}
	return nil
}

func writeJSON(rep *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
