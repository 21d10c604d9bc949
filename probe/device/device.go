// Package device supplies the immutable snapshot of a mounted volume the
// validation engine runs against, plus enumeration of candidate removable
// volumes. The engine itself never re-reads this information: the snapshot
// is taken once at suite start and only read afterwards.
package device

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/driveprobe/driveprobe/probe/blockio"
)

// Target is one mounted volume under test.
type Target struct {
	Path       string `json:"path"`
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	Filesystem string `json:"filesystem"`
}

// Info extends Target with enumeration-only fields.
type Info struct {
	Target
	Device    string `json:"device"`
	Label     string `json:"label"`
	Removable bool   `json:"removable"`
}

// Snapshot captures the target's size, free space and filesystem once.
func Snapshot(path string) (*Target, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, blockio.Classify("stat", path, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("device path %s is not a mount point directory", path)
	}
	t := &Target{Path: path}
	if err := fillDiskStatus(t); err != nil {
		return nil, fmt.Errorf("reading volume information for %s: %w", path, err)
	}
	return t, nil
}

// Validate confirms the volume is writable by round-tripping a probe file.
// The engine requires this guarantee before any test component runs.
func (t *Target) Validate() error {
	probe := filepath.Join(t.Path, ".driveprobe_write_check")
	if err := os.WriteFile(probe, []byte("probe"), 0644); err != nil {
		return blockio.Classify("validate", t.Path, err)
	}
	if err := os.Remove(probe); err != nil {
		return blockio.Classify("validate", t.Path, err)
	}
	return nil
}

// ScratchDir creates (if needed) and returns the directory all test
// components keep their disposable files under, so cleanup is one
// RemoveAll regardless of how a run ended.
func (t *Target) ScratchDir() (string, error) {
	dir := filepath.Join(t.Path, ".driveprobe")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", blockio.Classify("mkdir", dir, err)
	}
	return dir, nil
}
