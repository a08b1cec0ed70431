// Package gitops stamps runs with the solver source revision.
package gitops

import (
	"fmt"
	"os/exec"
	"strings"
)

// Revision returns the short HEAD commit of the repository at dir and
// whether its tracked files have uncommitted changes.
func Revision(dir string) (string, bool, error) {
	rev := exec.Command("git", "rev-parse", "--short", "HEAD")
	rev.Dir = dir
	out, err := rev.Output()
	if err != nil {
		return "", false, fmt.Errorf("git rev-parse in %s: %w", dir, err)
	}

	status := exec.Command("git", "status", "--porcelain", "--untracked-files=no")
	status.Dir = dir
	st, err := status.Output()
	if err != nil {
		return "", false, fmt.Errorf("git status in %s: %w", dir, err)
	}
	return strings.TrimSpace(string(out)), len(strings.TrimSpace(string(st))) > 0, nil
}

// UncommittedDiff returns the diff of tracked files against HEAD without
// touching the index.
func UncommittedDiff(repoDir string) ([]byte, error) {
	diff := exec.Command("git", "diff", "HEAD")
	diff.Dir = repoDir
	out, err := diff.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff HEAD: %w", err)
	}
	return out, nil
}
