package commands

import (
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
)

// RunCmd implements the default command: build <project> and stage it into <deploy>.
type RunCmd struct {
	Project     string `arg:"" name:"project" help:"Project directory to build"`
	Deploy      string `arg:"" name:"deploy" help:"Deploy directory to replace with the staged site"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics in textfile format after the run (overrides metrics.textfile)"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}

	env := openRunEnv(cfg, g.Logger)
	defer env.Close()

	p := pipeline.New(cfg, pipeline.WithSink(env.sink), pipeline.WithRecorder(env.recorder))
	report, err := p.Run(g.Context, r.Project, r.Deploy)

	metricsFile := r.MetricsFile
	if metricsFile == "" {
		metricsFile = cfg.Metrics.Textfile
	}
	env.writeMetrics(metricsFile)

	if err != nil {
		return err
	}
	g.Logger.Debug("Run report",
		logfields.RunID(report.RunID),
		logfields.Source(string(report.Source)),
		logfields.Outcome(string(report.Outcome.Status)))
	return nil
}
