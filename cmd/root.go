package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalnine/regress/internal/config"
	"github.com/signalnine/regress/internal/logger"
)

// Exit statuses.
const (
	ExitPassed = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// errSuiteFailed signals that the suite ran but at least one case did not pass.
var errSuiteFailed = errors.New("one or more cases failed")

// settings holds persistent flags, each overridable by a REGRESS_* env var.
var settings = viper.New()

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "regress",
		Short:         "Regression harness for numerical solvers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Configure(settings.GetString("log-level"), settings.GetString("log-file"))
		},
	}
	pf := root.PersistentFlags()
	pf.String("suite", "regress.yaml", "suite file path")
	pf.String("data-root", "", "override data_root from the suite file")
	pf.String("bin-dir", "", "override bin_dir from the suite file")
	pf.String("env-file", "", "override env_file from the suite file")
	pf.String("log-level", "", "log level (debug|info|warn|error) [default: info]")
	pf.String("log-file", "", "write logs to file instead of stderr")

	settings.SetEnvPrefix("REGRESS")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	for _, name := range []string{"suite", "data-root", "bin-dir", "env-file", "log-level", "log-file"} {
		if err := settings.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding %s flag: %v", name, err))
		}
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newRescoreCmd())
	return root
}

// Execute runs the CLI and returns the process exit status: 0 when every
// case passed, 1 when any failed, 2 for configuration or usage errors.
func Execute() int {
	err := NewRootCmd().Execute()
	switch {
	case err == nil:
		return ExitPassed
	case errors.Is(err, errSuiteFailed):
		return ExitFailed
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExitUsage
	}
}

// loadSuite reads the suite file and applies command-line overrides.
func loadSuite() (*config.Config, error) {
	cfg, err := config.Load(settings.GetString("suite"))
	if err != nil {
		return nil, err
	}
	if v := settings.GetString("data-root"); v != "" {
		cfg.DataRoot = v
	}
	if v := settings.GetString("bin-dir"); v != "" {
		cfg.BinDir = v
	}
	if v := settings.GetString("env-file"); v != "" {
		cfg.EnvFile = v
	}
	return cfg, nil
}
