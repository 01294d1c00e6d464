package commands

import (
	"fmt"
	"io"

	"git.home.luguber.info/inful/deploybuilder/internal/config"
	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Path  string `arg:"" optional:"" help:"Where to write the configuration (defaults to --config)"`
	Force bool   `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := i.Path
	if path == "" {
		path = root.Config
	}
	return RunInit(g.Stdout, path, i.Force)
}

// RunInit writes the default configuration to configPath and reports progress on out.
func RunInit(out io.Writer, configPath string, force bool) error {
	_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		_, _ = fmt.Fprintln(out, "Initialization failed")
		return derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "cannot write configuration").
			WithContext("reason", err.Error())
	}
	_, _ = fmt.Fprintln(out, "Initialized successfully")
	return nil
}
