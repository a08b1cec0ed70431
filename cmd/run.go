package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/regress/internal/config"
	"github.com/signalnine/regress/internal/docker"
	"github.com/signalnine/regress/internal/env"
	"github.com/signalnine/regress/internal/gitops"
	"github.com/signalnine/regress/internal/history"
	"github.com/signalnine/regress/internal/logger"
	"github.com/signalnine/regress/internal/process"
	"github.com/signalnine/regress/internal/result"
	"github.com/signalnine/regress/internal/runner"
	"github.com/signalnine/regress/internal/testcase"
)

var (
	flagTags     []string
	flagCategory []string
	flagParallel int
	flagVerbose  bool
	flagNoStore  bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the regression suite",
		Args:  cobra.NoArgs,
		RunE:  runSuite,
	}
	cmd.Flags().StringSliceVar(&flagTags, "tag", nil, "run only these case tags (repeatable)")
	cmd.Flags().StringSliceVar(&flagCategory, "category", nil, "run only these categories; a trailing * matches a prefix")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "max concurrent cases (default from suite file)")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "stream solver output to stdout")
	cmd.Flags().BoolVar(&flagNoStore, "no-store", false, "do not write results to disk")
	return cmd
}

func runSuite(cmd *cobra.Command, args []string) error {
	cfg, err := loadSuite()
	if err != nil {
		return err
	}
	specs, err := cfg.Specs()
	if err != nil {
		return err
	}
	specs, err = filterSpecs(specs, flagTags, flagCategory)
	if err != nil {
		return err
	}

	exec, resolver, backend, err := backendFor(cfg)
	if err != nil {
		return err
	}
	opts, err := caseOptions(cfg)
	if err != nil {
		return err
	}
	parallel := cfg.Parallel
	if flagParallel > 0 {
		parallel = flagParallel
	}
	out := cmd.OutOrStdout()
	if flagVerbose {
		if parallel > 1 {
			logger.Warn("verbose output from parallel cases will interleave", "parallel", parallel)
		}
		opts.Stream = out
	}

	cases := make([]*testcase.Case, len(specs))
	for i, s := range specs {
		cases[i] = testcase.New(s, exec, resolver, opts)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	suite := &runner.Suite{Parallel: parallel}
	var runDir string
	var runMeta *result.RunMeta
	if !flagNoStore {
		runMeta = &result.RunMeta{
			RunID:     result.NewRunID(),
			Suite:     settings.GetString("suite"),
			Backend:   backend,
			StartedAt: time.Now().UTC(),
			Total:     len(cases),
		}
		runDir, err = result.CreateRunDir(cfg.Results.Dir, runMeta.RunID)
		if err != nil {
			return err
		}
		stampRevision(cfg.SolverSource, runDir, runMeta)
		if err := result.WriteRunMeta(runDir, runMeta); err != nil {
			return err
		}
		fmt.Fprintf(out, "Run directory: %s\n", runDir)
		suite.OnVerdict = func(s testcase.Spec, v testcase.Verdict) {
			if err := result.WriteCase(runDir, result.NewCaseMeta(s, v), v.Output); err != nil {
				logger.Error("storing case result", "tag", v.Tag, "err", err)
			}
		}
	}

	logger.Info("starting suite", "cases", len(cases), "parallel", parallel, "backend", backend)
	verdicts := suite.Run(ctx, cases)

	fmt.Fprintln(out)
	runner.PrintSummary(out, verdicts)

	if runMeta != nil {
		finished := time.Now().UTC()
		runMeta.FinishedAt = &finished
		for _, v := range verdicts {
			if v.Passed() {
				runMeta.Passed++
			}
		}
		if err := result.WriteRunMeta(runDir, runMeta); err != nil {
			logger.Error("storing run metadata", "err", err)
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", errSuiteFailed)
	}
	if !runner.Passed(verdicts) {
		return errSuiteFailed
	}
	return nil
}

// backendFor picks local or container execution.
func backendFor(cfg *config.Config) (testcase.Executor, testcase.Resolver, string, error) {
	if cfg.Container == nil {
		return process.Runner{}, env.PathResolver{BinDir: cfg.BinDir}, "local", nil
	}
	mem, err := cfg.Container.MemoryBytes()
	if err != nil {
		return nil, nil, "", err
	}
	dr := docker.Runner{
		Image:       cfg.Container.Image,
		DataRoot:    cfg.DataRoot,
		CPULimit:    cfg.Container.CPULimit,
		MemoryLimit: mem,
		UserID:      cfg.Container.User,
	}
	return dr, env.ContainerResolver{BinDir: cfg.Container.BinDir}, "container:" + cfg.Container.Image, nil
}

func caseOptions(cfg *config.Config) (testcase.Options, error) {
	launcher, err := env.SplitLauncher(cfg.Launcher)
	if err != nil {
		return testcase.Options{}, err
	}
	var fileVars map[string]string
	if cfg.EnvFile != "" {
		fileVars, err = env.LoadFile(cfg.EnvFile)
		if err != nil {
			return testcase.Options{}, err
		}
	}
	return testcase.Options{
		Launcher:        launcher,
		Env:             env.Merge(fileVars, cfg.Env),
		Parser:          history.Parser{Marker: cfg.HistoryMarker},
		RequireZeroExit: cfg.RequireZeroExit,
	}, nil
}

// stampRevision records the solver source revision. Failures are logged,
// not fatal: a run without a revision is still a valid run.
func stampRevision(source, runDir string, meta *result.RunMeta) {
	if source == "" {
		return
	}
	rev, dirty, err := gitops.Revision(source)
	if err != nil {
		logger.Warn("could not determine solver revision", "source", source, "err", err)
		return
	}
	meta.SolverRevision, meta.SolverDirty = rev, dirty
	if !dirty {
		return
	}
	diff, err := gitops.UncommittedDiff(source)
	if err != nil {
		logger.Warn("could not capture solver diff", "err", err)
		return
	}
	if err := os.WriteFile(filepath.Join(runDir, "solver.diff"), diff, 0o644); err != nil {
		logger.Warn("writing solver diff", "err", err)
	}
}

func filterSpecs(specs []testcase.Spec, tags, categories []string) ([]testcase.Spec, error) {
	known := map[string]bool{}
	for _, s := range specs {
		known[s.Tag()] = true
	}
	wantTag := map[string]bool{}
	for _, t := range tags {
		if !known[t] {
			return nil, fmt.Errorf("unknown case tag %q", t)
		}
		wantTag[t] = true
	}

	var filtered []testcase.Spec
	for _, s := range specs {
		if len(wantTag) > 0 && !wantTag[s.Tag()] {
			continue
		}
		if len(categories) > 0 && !matchAnyCategory(s.Category(), categories) {
			continue
		}
		filtered = append(filtered, s)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no cases match the given filters")
	}
	return filtered, nil
}

func matchAnyCategory(category string, patterns []string) bool {
	for _, p := range patterns {
		if matchCategory(category, p) {
			return true
		}
	}
	return false
}

func matchCategory(category, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(category, strings.TrimSuffix(pattern, "*"))
	}
	return category == pattern
}
