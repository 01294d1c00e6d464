package commands

import (
	"context"
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
	"git.home.luguber.info/inful/deploybuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Project     string `arg:"" name:"project" help:"Project directory to build and watch"`
	Deploy      string `arg:"" name:"deploy" help:"Deploy directory to replace after each build"`
	MetricsFile string `name:"metrics-file" help:"Rewrite the Prometheus textfile after every run (overrides metrics.textfile)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}

	project, err := filepath.Abs(w.Project)
	if err != nil {
		return derrors.InvalidArguments("cannot resolve project path: " + err.Error())
	}
	deploy, err := filepath.Abs(w.Deploy)
	if err != nil {
		return derrors.InvalidArguments("cannot resolve deploy path: " + err.Error())
	}
	if _, err := os.Stat(project); err != nil {
		return derrors.ProjectNotFound(project)
	}

	env := openRunEnv(cfg, g.Logger)
	defer env.Close()

	metricsFile := w.MetricsFile
	if metricsFile == "" {
		metricsFile = cfg.Metrics.Textfile
	}

	p := pipeline.New(cfg, pipeline.WithSink(env.sink), pipeline.WithRecorder(env.recorder))
	run := func(ctx context.Context) error {
		_, err := p.Run(ctx, project, deploy)
		env.writeMetrics(metricsFile)
		return err
	}

	// Build output directories are written by the build itself.
	ignore := append(append([]string{}, cfg.Watch.Ignore...), cfg.Artifacts.Candidates...)
	watcher := watch.New(project, run, watch.Options{
		Debounce:    cfg.Watch.Debounce,
		IgnoreNames: ignore,
		IgnorePaths: []string{deploy},
		Logger:      g.Logger,
	})
	return watcher.Run(g.Context)
}
