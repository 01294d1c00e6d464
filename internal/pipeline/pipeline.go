// Package pipeline sequences classification, build, artifact resolution and
// staging for one project, and reports what happened.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/deploybuilder/internal/artifact"
	"git.home.luguber.info/inful/deploybuilder/internal/build"
	"git.home.luguber.info/inful/deploybuilder/internal/command"
	"git.home.luguber.info/inful/deploybuilder/internal/config"
	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
	"git.home.luguber.info/inful/deploybuilder/internal/metrics"
	"git.home.luguber.info/inful/deploybuilder/internal/project"
	"git.home.luguber.info/inful/deploybuilder/internal/stage"
)

// Classifier derives a project type.
type Classifier interface {
	Classify(ctx context.Context, root string) project.Type
}

// Builder runs the build procedure for a project type.
type Builder interface {
	Build(ctx context.Context, root string, t project.Type) build.Outcome
}

// Locator finds the build output directory.
type Locator interface {
	Locate(ctx context.Context, root string) (string, bool)
}

// Stager writes the deploy target.
type Stager interface {
	Stage(ctx context.Context, req stage.Request) (stage.Result, error)
}

// Pipeline runs the detect, build, locate and stage sequence. A Pipeline is
// safe for concurrent use on distinct deploy targets; callers serialize runs
// that share a target.
type Pipeline struct {
	classifier Classifier
	builder    Builder
	locator    Locator
	stager     Stager
	runner     build.Runner
	sink       events.Sink
	recorder   metrics.Recorder
	newID      func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSink sets the event sink shared by every stage.
func WithSink(sink events.Sink) Option {
	return func(p *Pipeline) {
		if sink != nil {
			p.sink = sink
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(p *Pipeline) {
		if rec != nil {
			p.recorder = rec
		}
	}
}

// WithRunner replaces the command runner used by the Node build procedure.
func WithRunner(r build.Runner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// WithComponents replaces individual stages; nil arguments keep the configured ones.
func WithComponents(c Classifier, b Builder, l Locator, s Stager) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.classifier = c
		}
		if b != nil {
			p.builder = b
		}
		if l != nil {
			p.locator = l
		}
		if s != nil {
			p.stager = s
		}
	}
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// New assembles the default stages from cfg. A nil cfg means config.Default().
func New(cfg *config.Config, options ...Option) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	p := &Pipeline{
		sink:     events.Discard,
		recorder: metrics.NoopRecorder{},
		newID:    uuid.NewString,
	}
	for _, opt := range options {
		opt(p)
	}

	if p.runner == nil {
		p.runner = command.NewRunner(p.sink).WithTimeout(cfg.Build.Timeout).WithRecorder(p.recorder)
	}
	if p.classifier == nil {
		p.classifier = project.NewClassifier(
			project.WithManifest(cfg.Classify.Manifest),
			project.WithLegacyOrder(cfg.Classify.LegacyOrder),
			project.WithSink(p.sink),
		)
	}
	if p.builder == nil {
		node := build.NewNodeBuilder(p.runner,
			build.WithTool(cfg.Build.Tool),
			build.WithCommands(cfg.Build.InstallCommand, cfg.Build.BuildCommand),
			build.WithEvents(p.sink),
		)
		p.builder = build.NewDispatcher(node, p.sink)
	}
	if p.locator == nil {
		p.locator = artifact.NewLocator(cfg.Artifacts.Candidates, p.sink)
	}
	if p.stager == nil {
		p.stager = stage.NewStager(cfg.Fallback.Title, p.sink)
	}
	return p
}

// Run builds projectRoot and stages the result into deployTarget. Both paths
// are made absolute. A run ID already attached to ctx is reused. The only errors are a missing project (validation) and
// filesystem failures while staging; build and artifact problems end up in
// the staged fallback page and the report instead.
func (p *Pipeline) Run(ctx context.Context, projectRoot, deployTarget string) (*Report, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, derrors.InvalidArguments("cannot resolve project path: " + err.Error())
	}
	target, err := filepath.Abs(deployTarget)
	if err != nil {
		return nil, derrors.InvalidArguments("cannot resolve deploy path: " + err.Error())
	}

	runID := events.RunIDFromContext(ctx)
	if runID == "" {
		runID = p.newID()
	}
	report := &Report{
		RunID:        runID,
		ProjectRoot:  root,
		DeployTarget: target,
		Started:      time.Now(),
	}
	ctx = events.ContextWithRunID(ctx, report.RunID)

	p.sink.Emit(ctx, events.New(events.RunStarted, events.LevelInfo, "Building project",
		logfields.Project(root), logfields.Deploy(target)))

	if _, err := os.Stat(root); err != nil {
		p.sink.Emit(ctx, events.New(events.RunFailed, events.LevelError, "Project path does not exist",
			logfields.Project(root), logfields.Error(err)))
		return nil, derrors.ProjectNotFound(root)
	}

	p.timed(ctx, report, StageClassify, func() {
		report.ProjectType = p.classifier.Classify(ctx, root)
	})
	p.recorder.IncProjectType(string(report.ProjectType))

	p.timed(ctx, report, StageBuild, func() {
		report.Outcome = p.builder.Build(ctx, root, report.ProjectType)
	})

	p.timed(ctx, report, StageLocate, func() {
		report.Artifact, _ = p.locator.Locate(ctx, root)
	})

	var res stage.Result
	p.timed(ctx, report, StageStage, func() {
		res, err = p.stager.Stage(ctx, stage.Request{
			Artifact:     report.Artifact,
			ProjectRoot:  root,
			DeployTarget: target,
			Outcome:      report.Outcome,
		})
	})
	report.Source = res.Source
	report.FallbackMessage = res.FallbackMessage
	report.SafetyNet = res.SafetyNet
	report.Duration = time.Since(report.Started)

	if err != nil {
		p.recorder.IncRunOutcome(string(build.StatusFailed))
		p.sink.Emit(ctx, events.New(events.RunFailed, events.LevelError, "Staging failed",
			logfields.Deploy(target), logfields.Error(err)))
		return report, err
	}

	if title, terr := stage.IndexTitle(filepath.Join(target, stage.IndexFile)); terr == nil {
		report.IndexTitle = title
	}

	p.recorder.IncRunOutcome(string(report.Outcome.Status))
	p.recorder.IncDeploySource(string(report.Source))
	p.recorder.ObserveRunDuration(report.Duration)

	p.sink.Emit(ctx, events.New(events.RunCompleted, events.LevelInfo, "Build process completed",
		logfields.ProjectType(string(report.ProjectType)),
		logfields.Outcome(string(report.Outcome.Status)),
		logfields.Source(string(report.Source)),
		logfields.Artifact(report.Artifact),
		logfields.Deploy(target),
		logfields.DurationMS(float64(report.Duration.Microseconds())/1000),
	))
	return report, nil
}

func (p *Pipeline) timed(ctx context.Context, report *Report, name string, fn func()) {
	start := time.Now()
	fn()
	d := time.Since(start)
	report.Stages = append(report.Stages, StageTiming{Name: name, Duration: d})
	p.recorder.ObserveStageDuration(name, d)
	p.sink.Emit(ctx, events.New(events.StageTimed, events.LevelDebug, "Stage finished",
		logfields.Stage(name), logfields.DurationMS(float64(d.Microseconds())/1000)))
}
