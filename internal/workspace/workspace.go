package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// Prefix names every job workspace directory.
const Prefix = "deploybuilder-"

// Manager creates and sweeps job workspaces under a base directory.
type Manager struct {
	baseDir string
}

// NewManager creates a workspace manager rooted at baseDir (os.TempDir when empty).
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// BaseDir returns the directory workspaces are created in.
func (m *Manager) BaseDir() string { return m.baseDir }

// Workspace is one job's scratch directory.
type Workspace struct {
	path string
}

// Create creates the workspace directory for id. An existing directory for
// the same id is reused.
func (m *Manager) Create(id string) (*Workspace, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("invalid workspace id %q", id)
	}
	dir := filepath.Join(m.baseDir, Prefix+id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Debug("Created workspace", logfields.Path(dir))
	return &Workspace{path: dir}, nil
}

// Path returns the workspace directory.
func (w *Workspace) Path() string { return w.path }

// Subdir creates a subdirectory within the workspace
func (w *Workspace) Subdir(name string) (string, error) {
	if w.path == "" {
		return "", fmt.Errorf("workspace not created")
	}
	subdir := filepath.Join(w.path, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}

// Cleanup removes the workspace directory. Calling it twice is a no-op.
func (w *Workspace) Cleanup() error {
	if w.path == "" {
		return nil
	}
	if err := os.RemoveAll(w.path); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(w.path))
	w.path = ""
	return nil
}

// PruneOlderThan removes workspaces last modified before cutoff and returns
// how many were removed. Entries without the workspace prefix are left alone.
func (m *Manager) PruneOlderThan(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list workspaces: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(m.baseDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to prune workspace", logfields.Path(path), logfields.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
