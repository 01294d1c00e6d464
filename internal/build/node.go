package build

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/deploybuilder/internal/command"
	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// Runner is the command execution facility a build procedure needs.
// *command.Runner implements it.
type Runner interface {
	Run(ctx context.Context, argv []string, dir string) command.Result
	LookPath(file string) (string, error)
}

// Procedure builds a project in place.
type Procedure interface {
	Build(ctx context.Context, root string) Outcome
}

// NodeBuilder runs the package manager's install and build commands.
type NodeBuilder struct {
	runner  Runner
	tool    string
	install []string
	build   []string
	sink    events.Sink
}

// NodeOption configures a NodeBuilder.
type NodeOption func(*NodeBuilder)

// WithTool sets the executable looked up before installing.
func WithTool(tool string) NodeOption {
	return func(b *NodeBuilder) {
		if tool != "" {
			b.tool = tool
		}
	}
}

// WithCommands overrides the install and build argv. Empty slices keep the defaults.
func WithCommands(install, build []string) NodeOption {
	return func(b *NodeBuilder) {
		if len(install) > 0 {
			b.install = install
		}
		if len(build) > 0 {
			b.build = build
		}
	}
}

// WithEvents sets the event sink.
func WithEvents(sink events.Sink) NodeOption {
	return func(b *NodeBuilder) {
		if sink != nil {
			b.sink = sink
		}
	}
}

// NewNodeBuilder creates the npm install + npm run build procedure.
func NewNodeBuilder(runner Runner, options ...NodeOption) *NodeBuilder {
	b := &NodeBuilder{
		runner:  runner,
		tool:    "npm",
		install: []string{"npm", "install"},
		build:   []string{"npm", "run", "build"},
		sink:    events.Discard,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Build looks up the tool, installs dependencies and runs the build script.
func (b *NodeBuilder) Build(ctx context.Context, root string) Outcome {
	b.sink.Emit(ctx, events.New(events.BuildStarted, events.LevelInfo, "Building Node.js project",
		logfields.Project(root)))

	if _, err := b.runner.LookPath(b.tool); err != nil {
		b.sink.Emit(ctx, events.New(events.ToolMissing, events.LevelWarn, b.tool+" not found",
			logfields.Command(b.tool), logfields.Error(err)))
		return Failed(b.tool + " not available")
	}

	res := b.runner.Run(ctx, b.install, root)
	if !res.Success {
		return Failed(fmt.Sprintf("%s failed: %s", strings.Join(b.install, " "), res.Stderr))
	}

	res = b.runner.Run(ctx, b.build, root)
	if !res.Success {
		b.sink.Emit(ctx, events.New(events.BuildDegraded, events.LevelWarn, strings.Join(b.build, " ")+" failed, serving source files",
			logfields.Project(root), logfields.Outcome(string(StatusDegraded))))
		return Degraded(MessageDegraded)
	}

	return Succeeded()
}
