// Package artifact finds the build output directory of a project.
package artifact

import (
	"context"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// DefaultCandidates returns the output directories searched, highest priority first.
// Framework output directories come before generic asset folders.
func DefaultCandidates() []string {
	return []string{"dist", "build", "out", ".next/standalone", ".next/out", "public", "_site"}
}

// Locator searches a project for the first non-empty candidate directory.
type Locator struct {
	candidates []string
	sink       events.Sink
}

// NewLocator creates a locator over candidates (relative, slash-separated).
// An empty list means DefaultCandidates.
func NewLocator(candidates []string, sink events.Sink) *Locator {
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Locator{candidates: candidates, sink: sink}
}

// Candidates returns the search order.
func (l *Locator) Candidates() []string {
	out := make([]string, len(l.candidates))
	copy(out, l.candidates)
	return out
}

// Locate returns the absolute path of the first candidate under root that
// exists, is a directory and has at least one entry.
func (l *Locator) Locate(ctx context.Context, root string) (string, bool) {
	for _, candidate := range l.candidates {
		full := filepath.Join(root, filepath.FromSlash(candidate))
		if nonEmptyDir(full) {
			l.sink.Emit(ctx, events.New(events.ArtifactFound, events.LevelInfo, "Found build output: "+candidate,
				logfields.Artifact(full)))
			return full, true
		}
	}
	l.sink.Emit(ctx, events.New(events.ArtifactMissing, events.LevelInfo, "No build output directory found",
		logfields.Project(root)))
	return "", false
}

func nonEmptyDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	_, err = f.Readdirnames(1)
	return err == nil
}
