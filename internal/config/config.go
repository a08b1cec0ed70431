// Package config loads regression suite files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/signalnine/regress/internal/testcase"
)

const (
	DefaultExecutable = "SU2_CFD"
	DefaultTimeout    = 1600 // seconds
	DefaultTolerance  = 0.00001
	DefaultResultsDir = "results"
)

type Config struct {
	DataRoot        string            `yaml:"data_root"`
	BinDir          string            `yaml:"bin_dir"`
	Launcher        string            `yaml:"launcher"`
	HistoryMarker   string            `yaml:"history_marker"`
	RequireZeroExit bool              `yaml:"require_zero_exit"`
	Parallel        int               `yaml:"parallel"`
	EnvFile         string            `yaml:"env_file"`
	Env             map[string]string `yaml:"env"`
	SolverSource    string            `yaml:"solver_source"`
	Results         Results           `yaml:"results"`
	Container       *Container        `yaml:"container"`
	Defaults        Defaults          `yaml:"defaults"`
	Cases           []Case            `yaml:"cases"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

// Container selects running the solver inside a Docker image.
type Container struct {
	Image       string  `yaml:"image"`
	BinDir      string  `yaml:"bin_dir"`
	CPULimit    float64 `yaml:"cpu_limit"`
	MemoryLimit string  `yaml:"memory_limit"`
	User        string  `yaml:"user"`
}

// MemoryBytes parses MemoryLimit ("4g", "512MiB"). Zero means unlimited.
func (c *Container) MemoryBytes() (int64, error) {
	if c == nil || c.MemoryLimit == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(c.MemoryLimit)
	if err != nil {
		return 0, fmt.Errorf("container memory_limit: %w", err)
	}
	return n, nil
}

type Defaults struct {
	Executable     string   `yaml:"executable"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Tolerance      *float64 `yaml:"tolerance"`
	Iterations     *int     `yaml:"iterations"`
}

type Case struct {
	Tag            string    `yaml:"tag"`
	Category       string    `yaml:"category"`
	Dir            string    `yaml:"dir"`
	Config         string    `yaml:"config"`
	Iterations     *int      `yaml:"iterations"`
	Expected       []float64 `yaml:"expected"`
	Executable     string    `yaml:"executable"`
	TimeoutSeconds int       `yaml:"timeout_seconds"`
	Tolerance      *float64  `yaml:"tolerance"`
	Priority       int       `yaml:"priority"`
}

// Load reads, schema-checks and validates a suite file. Relative paths in
// the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg, filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config, base string) error {
	if len(cfg.Cases) == 0 {
		return fmt.Errorf("no cases defined")
	}
	if cfg.DataRoot == "" {
		cfg.DataRoot = "."
	}
	cfg.DataRoot = resolve(base, cfg.DataRoot)
	if cfg.BinDir != "" {
		cfg.BinDir = resolve(base, cfg.BinDir)
	}
	if cfg.EnvFile != "" {
		cfg.EnvFile = resolve(base, cfg.EnvFile)
	}
	if cfg.SolverSource != "" {
		cfg.SolverSource = resolve(base, cfg.SolverSource)
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = DefaultResultsDir
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Defaults.Executable == "" {
		cfg.Defaults.Executable = DefaultExecutable
	}
	if cfg.Defaults.TimeoutSeconds == 0 {
		cfg.Defaults.TimeoutSeconds = DefaultTimeout
	}
	if cfg.Defaults.Tolerance == nil {
		tol := DefaultTolerance
		cfg.Defaults.Tolerance = &tol
	}
	if _, err := cfg.Container.MemoryBytes(); err != nil {
		return err
	}

	seen := map[string]bool{}
	for i := range cfg.Cases {
		c := &cfg.Cases[i]
		if seen[c.Tag] {
			return fmt.Errorf("case %d: duplicate tag %q", i, c.Tag)
		}
		seen[c.Tag] = true
		if c.Iterations == nil {
			if cfg.Defaults.Iterations == nil {
				return fmt.Errorf("case %q: iterations is required (no default set)", c.Tag)
			}
			n := *cfg.Defaults.Iterations
			c.Iterations = &n
		}
		if c.Executable == "" {
			c.Executable = cfg.Defaults.Executable
		}
		if c.TimeoutSeconds == 0 {
			c.TimeoutSeconds = cfg.Defaults.TimeoutSeconds
		}
		if c.Tolerance == nil {
			tol := *cfg.Defaults.Tolerance
			c.Tolerance = &tol
		}
		if _, err := cfg.spec(c); err != nil {
			return err
		}
	}
	return nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (cfg *Config) spec(c *Case) (testcase.Spec, error) {
	return testcase.NewSpec(testcase.SpecParams{
		Tag:        c.Tag,
		Category:   c.Category,
		Priority:   c.Priority,
		Dir:        filepath.Join(cfg.DataRoot, c.Dir),
		ConfigFile: c.Config,
		Iterations: *c.Iterations,
		Executable: c.Executable,
		Expected:   c.Expected,
		Timeout:    time.Duration(c.TimeoutSeconds) * time.Second,
		Tolerance:  *c.Tolerance,
	})
}

// Specs returns validated specs in execution order: higher priority first,
// file order within equal priority.
func (cfg *Config) Specs() ([]testcase.Spec, error) {
	specs := make([]testcase.Spec, 0, len(cfg.Cases))
	for i := range cfg.Cases {
		s, err := cfg.spec(&cfg.Cases[i])
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].Priority() > specs[j].Priority()
	})
	return specs, nil
}
