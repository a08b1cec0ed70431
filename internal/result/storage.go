// Package result stores suite runs on disk:
//
//	<base>/runs/<stamp>-<id>/run.json
//	<base>/runs/<stamp>-<id>/cases/<tag>/meta.json
//	<base>/runs/<stamp>-<id>/cases/<tag>/output.log
//	<base>/latest -> most recent run
package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	runMetaFile  = "run.json"
	caseMetaFile = "meta.json"
	outputFile   = "output.log"
)

func NewRunID() string {
	return uuid.NewString()
}

// CreateRunDir makes a fresh run directory under baseDir and points the
// latest symlink at it.
func CreateRunDir(baseDir, runID string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	name := stamp
	if len(runID) >= 8 {
		name += "-" + runID[:8]
	}
	runDir, err := filepath.Abs(filepath.Join(runsDir, name))
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// LatestRunDir resolves the latest symlink under baseDir.
func LatestRunDir(baseDir string) (string, error) {
	target, err := filepath.EvalSymlinks(filepath.Join(baseDir, "latest"))
	if err != nil {
		return "", fmt.Errorf("no latest run in %s: %w", baseDir, err)
	}
	return target, nil
}

func CaseDir(runDir, tag string) string {
	return filepath.Join(runDir, "cases", tag)
}

func WriteRunMeta(runDir string, meta *RunMeta) error {
	return writeJSON(filepath.Join(runDir, runMetaFile), meta)
}

func ReadRunMeta(runDir string) (*RunMeta, error) {
	var meta RunMeta
	if err := readJSON(filepath.Join(runDir, runMetaFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// WriteCase stores the meta and the full solver output of one case.
func WriteCase(runDir string, meta *CaseMeta, output string) error {
	dir := CaseDir(runDir, meta.Tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating case dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, outputFile), []byte(output), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return writeJSON(filepath.Join(dir, caseMetaFile), meta)
}

func ReadCaseMeta(path string) (*CaseMeta, error) {
	var meta CaseMeta
	if err := readJSON(path, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ReadOutput returns the stored solver output for tag.
func ReadOutput(runDir, tag string) (string, error) {
	data, err := os.ReadFile(filepath.Join(CaseDir(runDir, tag), outputFile))
	if err != nil {
		return "", fmt.Errorf("reading output: %w", err)
	}
	return string(data), nil
}

// ListCases reads every case meta in runDir, sorted by tag. Unreadable metas
// are skipped.
func ListCases(runDir string) ([]*CaseMeta, error) {
	entries, err := os.ReadDir(filepath.Join(runDir, "cases"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	var metas []*CaseMeta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := ReadCaseMeta(filepath.Join(runDir, "cases", e.Name(), caseMetaFile))
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Tag < metas[j].Tag })
	return metas, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
