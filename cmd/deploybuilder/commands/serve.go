package commands

import (
	"git.home.luguber.info/inful/deploybuilder/internal/metrics"
	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
	"git.home.luguber.info/inful/deploybuilder/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Listen  string `short:"l" help:"Listen address (overrides server.listen)"`
	DataDir string `short:"d" name:"data-dir" help:"Directory for staged sites and job workspaces (overrides server.data_dir)"`
	Workers int    `short:"w" help:"Concurrent build workers (overrides server.workers)"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if s.Listen != "" {
		cfg.Server.Listen = s.Listen
	}
	if s.DataDir != "" {
		cfg.Server.DataDir = s.DataDir
	}
	if s.Workers > 0 {
		cfg.Server.Workers = s.Workers
	}

	hub := server.NewHub()
	env := openRunEnv(cfg, g.Logger, hub)
	defer env.Close()

	p := pipeline.New(cfg, pipeline.WithSink(env.sink), pipeline.WithRecorder(env.recorder))
	opts := []server.Option{
		server.WithHub(hub),
		server.WithSink(env.sink),
		server.WithRecorder(env.recorder),
		server.WithMetricsHandler(metrics.HTTPHandler(env.registry)),
		server.WithLogger(g.Logger),
	}
	if env.store != nil {
		opts = append(opts, server.WithStore(env.store))
	}

	srv, err := server.New(cfg.Server, p, opts...)
	if err != nil {
		return err
	}

	return srv.Run(g.Context)
}
