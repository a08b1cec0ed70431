package env

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/shlex"
	"github.com/joho/godotenv"
)

// SplitLauncher splits a launcher prefix such as "mpirun -np 4" into argv
// words using shell quoting rules.
func SplitLauncher(launcher string) ([]string, error) {
	if launcher == "" {
		return nil, nil
	}
	words, err := shlex.Split(launcher)
	if err != nil {
		return nil, fmt.Errorf("parsing launcher %q: %w", launcher, err)
	}
	return words, nil
}

// Command builds the argv for one solver invocation.
func Command(launcher []string, exe, configFile string) (string, []string) {
	if len(launcher) == 0 {
		return exe, []string{configFile}
	}
	args := append([]string{}, launcher[1:]...)
	args = append(args, exe, configFile)
	return launcher[0], args
}

// LoadFile reads KEY=VALUE pairs from a dotenv file.
func LoadFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("env file: %w", err)
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parsing env file %s: %w", path, err)
	}
	return vars, nil
}

// Merge combines variable sets, later sets overriding earlier ones, and
// returns them as sorted KEY=VALUE strings.
func Merge(sets ...map[string]string) []string {
	merged := map[string]string{}
	for _, s := range sets {
		for k, v := range s {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + merged[k]
	}
	return out
}
