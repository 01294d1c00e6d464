package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/alecthomas/kong"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/version"
)

type exitCode int

// Execute parses args, runs the selected command and returns the process exit
// status. Help and --version exit through kong and report 0.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	cli := &CLI{}
	g := &Global{Context: ctx, Stdout: stdout, Stderr: stderr}
	g.defaults()

	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(c)
		}
	}()

	parser, err := kong.New(cli,
		kong.Name("deploybuilder"),
		kong.Description("Build a web project and stage a deploy directory that always serves an index.html."),
		kong.Vars{"version": version.String()},
		kong.Writers(g.Stdout, g.Stderr),
		kong.Exit(func(c int) { panic(exitCode(c)) }),
		kong.Bind(g, cli),
	)
	if err != nil {
		return handle(g, cli, derrors.InternalError("invalid command line definition", err))
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		if _, ok := derrors.As(err); !ok {
			err = derrors.InvalidArguments(err.Error())
		}
		return handle(g, cli, err)
	}
	return handle(g, cli, kctx.Run())
}

func handle(g *Global, cli *CLI, err error) int {
	logger := g.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(g.Stderr, nil))
	}
	return derrors.NewCLIErrorAdapter(cli.Verbose, logger).WithOutput(g.Stderr).Handle(err)
}
