package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/regress/internal/history"
	"github.com/signalnine/regress/internal/logger"
	"github.com/signalnine/regress/internal/result"
	"github.com/signalnine/regress/internal/runner"
	"github.com/signalnine/regress/internal/testcase"
)

func newRescoreCmd() *cobra.Command {
	var update bool
	cmd := &cobra.Command{
		Use:   "rescore [run-dir]",
		Short: "Re-evaluate stored solver output against current baselines",
		Long: "Parse each case's stored output.log and compare it with the baselines in the suite file, " +
			"without running the solver. Cases that timed out or failed to launch keep their stored state.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSuite()
			if err != nil {
				return err
			}
			runDir, err := resolveRunDir(args)
			if err != nil {
				return err
			}
			specs, err := cfg.Specs()
			if err != nil {
				return err
			}
			metas, err := result.ListCases(runDir)
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				return fmt.Errorf("no case results in %s", runDir)
			}
			stored := map[string]*result.CaseMeta{}
			for _, m := range metas {
				stored[m.Tag] = m
			}

			parser := history.Parser{Marker: cfg.HistoryMarker}
			var verdicts []testcase.Verdict
			for _, s := range specs {
				m, ok := stored[s.Tag()]
				if !ok {
					continue
				}
				v := rescoreCase(runDir, s, m, parser)
				verdicts = append(verdicts, v)
				if update {
					if err := result.WriteCase(runDir, result.NewCaseMeta(s, v), v.Output); err != nil {
						return err
					}
				}
			}
			for tag := range stored {
				if !hasTag(verdicts, tag) {
					logger.Warn("stored case not in suite, skipped", "tag", tag)
				}
			}
			if len(verdicts) == 0 {
				return fmt.Errorf("no stored case in %s matches the suite", runDir)
			}

			runner.PrintSummary(cmd.OutOrStdout(), verdicts)
			if !runner.Passed(verdicts) {
				return errSuiteFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&update, "update", false, "rewrite stored case results with the new verdicts")
	return cmd
}

func rescoreCase(runDir string, s testcase.Spec, m *result.CaseMeta, parser history.Parser) testcase.Verdict {
	switch m.State {
	case testcase.TimedOut, testcase.ProcessError, testcase.NotRun:
		v := testcase.Verdict{
			Tag:       m.Tag,
			State:     m.State,
			Expected:  s.Expected(),
			Tolerance: s.Tolerance(),
			ExitCode:  m.ExitCode,
			Duration:  time.Duration(m.DurationS * float64(time.Second)),
		}
		if m.Error != "" {
			v.Err = errors.New(m.Error)
		}
		v.Output, _ = result.ReadOutput(runDir, m.Tag)
		return v
	}

	output, err := result.ReadOutput(runDir, m.Tag)
	if err != nil {
		return testcase.Verdict{Tag: m.Tag, State: testcase.ParseError, Expected: s.Expected(), Err: err}
	}
	v := testcase.Evaluate(s, parser, output)
	v.ExitCode = m.ExitCode
	v.Duration = time.Duration(m.DurationS * float64(time.Second))
	return v
}

func hasTag(verdicts []testcase.Verdict, tag string) bool {
	for _, v := range verdicts {
		if v.Tag == tag {
			return true
		}
	}
	return false
}

// resolveRunDir returns the run directory named in args, or the latest run
// under the suite's results dir.
func resolveRunDir(args []string) (string, error) {
	if len(args) > 0 {
		resolved, err := filepath.EvalSymlinks(args[0])
		if err != nil {
			return "", fmt.Errorf("resolving run dir: %w", err)
		}
		return resolved, nil
	}
	cfg, err := loadSuite()
	if err != nil {
		return "", err
	}
	return result.LatestRunDir(cfg.Results.Dir)
}
