// Package stage copies resolved build output into the deploy target and
// guarantees the target ends up with an index.html.
package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/deploybuilder/internal/build"
	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// IndexFile must exist in the deploy target after staging.
const IndexFile = "index.html"

// DefaultTitle is the fallback page heading.
const DefaultTitle = "Deployment"

// Source names where the staged content came from.
type Source string

const (
	SourceArtifact Source = "artifact"
	SourceProject  Source = "project"
	SourceFallback Source = "fallback"
)

// Request describes one staging operation. Artifact is empty when no build
// output directory was found.
type Request struct {
	Artifact     string
	ProjectRoot  string
	DeployTarget string
	Outcome      build.Outcome
}

// Result reports what staging did.
type Result struct {
	Source          Source
	FallbackMessage string
	// SafetyNet is set when the final index.html check had to write a page.
	SafetyNet bool
}

// Stager performs destructive staging into a deploy target.
type Stager struct {
	title string
	sink  events.Sink
}

// NewStager creates a stager whose fallback pages carry title.
func NewStager(title string, sink events.Sink) *Stager {
	if title == "" {
		title = DefaultTitle
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Stager{title: title, sink: sink}
}

// Stage replaces the deploy target with the artifact directory, or the whole
// project when it has a root index.html, or a fallback page otherwise. It then
// writes a "Deployment completed" page if index.html is still missing.
// Filesystem errors are returned as filesystem-category errors.
func (s *Stager) Stage(ctx context.Context, req Request) (Result, error) {
	var res Result
	target := req.DeployTarget

	switch {
	case req.Artifact != "":
		if err := s.replace(req.Artifact, req.ProjectRoot, target); err != nil {
			return res, err
		}
		res.Source = SourceArtifact
		s.sink.Emit(ctx, events.New(events.DeployStaged, events.LevelInfo, fmt.Sprintf("Copied %s to %s", req.Artifact, target),
			logfields.Source(string(SourceArtifact)), logfields.Artifact(req.Artifact), logfields.Deploy(target)))

	case isFile(filepath.Join(req.ProjectRoot, IndexFile)):
		if err := s.replace(req.ProjectRoot, req.ProjectRoot, target); err != nil {
			return res, err
		}
		res.Source = SourceProject
		s.sink.Emit(ctx, events.New(events.DeployStaged, events.LevelInfo, fmt.Sprintf("Copied %s to %s", req.ProjectRoot, target),
			logfields.Source(string(SourceProject)), logfields.Project(req.ProjectRoot), logfields.Deploy(target)))

	default:
		msg := MessageNoOutput
		if !req.Outcome.Success() {
			msg = fmt.Sprintf(buildFailedFmt, req.Outcome.Message)
		}
		if err := s.fallback(ctx, target, msg); err != nil {
			return res, err
		}
		res.Source = SourceFallback
		res.FallbackMessage = msg
	}

	if !HasIndex(target) {
		if err := s.fallback(ctx, target, MessageCompleted); err != nil {
			return res, err
		}
		res.SafetyNet = true
		res.FallbackMessage = MessageCompleted
	}
	return res, nil
}

func (s *Stager) fallback(ctx context.Context, target, message string) error {
	if err := WriteFallback(target, s.title, message); err != nil {
		return derrors.StagingFailed("write fallback page", target, err)
	}
	s.sink.Emit(ctx, events.New(events.FallbackWritten, events.LevelWarn, "Created fallback page: "+message,
		logfields.Deploy(target), logfields.Source(string(SourceFallback))))
	return nil
}

// replace copies src over target, dereferencing only links that stay inside
// root. A target nested inside src is skipped during the copy; a target that
// is src or one of its ancestors is rejected because deleting it would
// destroy the source.
func (s *Stager) replace(src, root, target string) error {
	src = filepath.Clean(src)
	target = filepath.Clean(target)

	if within(src, target) {
		return derrors.StagingFailed("replace deploy target", target,
			fmt.Errorf("deploy target contains source %s", src))
	}
	var skip func(string) bool
	if within(target, src) {
		skip = func(p string) bool { return filepath.Clean(p) == target }
	}
	if err := ReplaceDir(src, target, root, skip); err != nil {
		return derrors.StagingFailed("copy", target, err)
	}
	return nil
}

// within reports whether path equals dir or lies beneath it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// HasIndex reports whether dir contains an index.html file.
func HasIndex(dir string) bool { return isFile(filepath.Join(dir, IndexFile)) }
