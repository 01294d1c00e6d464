package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/deploybuilder/internal/config"
)

// LogLevelEnv overrides the configured log level unless --verbose is set.
const LogLevelEnv = "DEPLOYBUILDER_LOG_LEVEL"

// Global carries process-wide state shared by every subcommand.
type Global struct {
	Context context.Context
	Logger  *slog.Logger
	Stdout  io.Writer
	Stderr  io.Writer
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"deploybuilder.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format: text or json (default from config)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	// Run is the default command, so a project path spelled like a
	// subcommand name (watch, serve, history, init, version) needs an
	// explicit "run" in front of it.
	Run     RunCmd     `cmd:"" default:"withargs" help:"Build a project and stage it into a deploy directory (say 'run' explicitly when the project path is named like a command)"`
	Watch   WatchCmd   `cmd:"" help:"Build once, then rebuild whenever the project changes"`
	Serve   ServeCmd   `cmd:"" help:"Accept deploys over HTTP and serve the staged sites"`
	History HistoryCmd `cmd:"" help:"Show recorded runs, or the events of one run"`
	Init    InitCmd    `cmd:"" help:"Write a configuration file populated with the defaults"`
	Ver     VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing; it installs the process logger from
// flags and the environment. Configuration values are applied by LoadConfig.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.defaults()
	g.Logger = newLogger(g.Stderr, c.level(""), c.format(""))
	slog.SetDefault(g.Logger)
	return nil
}

// LoadConfig reads --config and reapplies logging settings from the file
// where no flag or environment variable already decided them.
func (c *CLI) LoadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	g.defaults()
	g.Logger = newLogger(g.Stderr, c.level(cfg.Logging.Level), c.format(cfg.Logging.Format))
	slog.SetDefault(g.Logger)
	return cfg, nil
}

func (c *CLI) level(configured string) slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	if env := os.Getenv(LogLevelEnv); env != "" {
		return config.NormalizeLogLevel(env).SlogLevel()
	}
	return config.NormalizeLogLevel(configured).SlogLevel()
}

func (c *CLI) format(configured string) config.LogFormat {
	if c.LogFormat != "" {
		return config.NormalizeLogFormat(c.LogFormat)
	}
	return config.NormalizeLogFormat(configured)
}

func (g *Global) defaults() {
	if g.Context == nil {
		g.Context = context.Background()
	}
	if g.Stdout == nil {
		g.Stdout = os.Stdout
	}
	if g.Stderr == nil {
		g.Stderr = os.Stderr
	}
}

func newLogger(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
