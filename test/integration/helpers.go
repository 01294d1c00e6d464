package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deploybuilder/internal/config"
	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
	"git.home.luguber.info/inful/deploybuilder/internal/stage"
)

// fallbackMarker replaces the hash of a synthesized index.html in snapshots;
// its markup is owned by the stage package, not by the fixtures.
const fallbackMarker = "fallback"

// DeploySnapshot captures what a run staged, for golden comparison.
type DeploySnapshot struct {
	ProjectType string            `json:"project_type"`
	Outcome     string            `json:"outcome"`
	Source      string            `json:"source"`
	SafetyNet   bool              `json:"safety_net"`
	Files       map[string]string `json:"files"`
}

// copyProject copies a fixture project into a fresh temp dir so builds never
// write into testdata.
func copyProject(t *testing.T, fixture string) string {
	t.Helper()

	dst := t.TempDir()
	if fixture == "" {
		return dst
	}
	require.NoError(t, copyDir(fixture, dst), "failed to copy fixture %s", fixture)
	return dst
}

// setupTestRepo creates a git repository with one commit on main holding the
// fixture files.
func setupTestRepo(t *testing.T, fixture string) string {
	t.Helper()

	tmpDir := copyProject(t, fixture)

	repo, err := git.PlainInit(tmpDir, false)
	require.NoError(t, err, "failed to initialize git repo")

	w, err := repo.Worktree()
	require.NoError(t, err, "failed to get worktree")

	require.NoError(t, w.AddGlob("."), "failed to add files to git")

	_, err = w.Commit("Initial test commit", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err, "failed to create initial commit")

	headRef, err := repo.Head()
	require.NoError(t, err, "failed to get HEAD")
	if headRef.Name().Short() != "main" {
		err = w.Checkout(&git.CheckoutOptions{Branch: "refs/heads/main", Create: true})
		require.NoError(t, err, "failed to create main branch")
		_ = repo.Storer.RemoveReference(headRef.Name())
	}

	return tmpDir
}

// copyDir recursively copies a directory tree.
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		targetPath := filepath.Join(dst, relPath)

		if info.IsDir() {
			return os.MkdirAll(targetPath, 0o750)
		}
		return copyFile(path, targetPath)
	})
}

func copyFile(src, dst string) error {
	// #nosec G304 -- test utility with paths from test setup, not user input
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	// #nosec G304 -- test utility with paths from test setup, not user input
	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = dstFile.Close() }()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// loadTestConfig loads a testdata configuration; an empty path yields defaults.
func loadTestConfig(t *testing.T, configPath string) *config.Config {
	t.Helper()

	if configPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(configPath)
	require.NoError(t, err, "failed to load test config")
	return cfg
}

// snapshotDeploy hashes every file under deployDir.
func snapshotDeploy(t *testing.T, report *pipeline.Report, deployDir string) DeploySnapshot {
	t.Helper()

	snap := DeploySnapshot{
		ProjectType: string(report.ProjectType),
		Outcome:     string(report.Outcome.Status),
		Source:      string(report.Source),
		SafetyNet:   report.SafetyNet,
		Files:       map[string]string{},
	}
	synthesized := report.Source == stage.SourceFallback || report.SafetyNet

	err := filepath.Walk(deployDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(deployDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if synthesized && rel == stage.IndexFile {
			snap.Files[rel] = fallbackMarker
			return nil
		}
		// #nosec G304 -- test utility reading from test output directory
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		snap.Files[rel] = hex.EncodeToString(sum[:])
		return nil
	})
	require.NoError(t, err, "failed to walk deploy directory")
	return snap
}

// verifyGolden compares snap against goldenPath, rewriting it when update is set.
func verifyGolden(t *testing.T, snap DeploySnapshot, goldenPath string, update bool) {
	t.Helper()

	actual, err := json.MarshalIndent(snap, "", "  ")
	require.NoError(t, err, "failed to marshal snapshot")

	if update {
		require.NoError(t, os.MkdirAll(filepath.Dir(goldenPath), 0o750))
		require.NoError(t, os.WriteFile(goldenPath, append(actual, '\n'), 0o600))
		t.Logf("Updated golden file: %s", goldenPath)
		return
	}

	// #nosec G304 -- test utility reading golden file from testdata
	expected, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "failed to read golden file: %s", goldenPath)

	require.JSONEq(t, string(expected), string(actual), "deploy snapshot mismatch\nfiles: %s", fileList(snap))
}

func fileList(snap DeploySnapshot) string {
	names := make([]string, 0, len(snap.Files))
	for name := range snap.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
