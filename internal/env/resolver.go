// Package env resolves solver executables and assembles the environment
// they run in.
package env

import (
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
)

// PathResolver finds executables on the host. A name is looked up in BinDir
// first, then on PATH.
type PathResolver struct {
	BinDir string
}

func (r PathResolver) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty executable name")
	}
	if filepath.IsAbs(name) {
		if err := checkExecutable(name); err != nil {
			return "", err
		}
		return name, nil
	}
	if r.BinDir != "" {
		p := filepath.Join(r.BinDir, name)
		if err := checkExecutable(p); err == nil {
			return p, nil
		}
	}
	p, err := exec.LookPath(name)
	if err != nil {
		if r.BinDir != "" {
			return "", fmt.Errorf("executable %q not found in %s or PATH", name, r.BinDir)
		}
		return "", fmt.Errorf("executable %q not found in PATH", name)
	}
	return p, nil
}

func checkExecutable(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("executable %s: %w", p, err)
	}
	if info.IsDir() {
		return fmt.Errorf("executable %s is a directory", p)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("executable %s: permission denied", p)
	}
	return nil
}

// ContainerResolver maps names into the container image's bin directory.
// Nothing is checked on the host.
type ContainerResolver struct {
	BinDir string
}

func (r ContainerResolver) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty executable name")
	}
	if r.BinDir == "" || path.IsAbs(name) {
		return name, nil
	}
	return path.Join(r.BinDir, name), nil
}
