package build

import (
	"context"

	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
	"git.home.luguber.info/inful/deploybuilder/internal/project"
)

// Dispatcher maps a project type to its build procedure.
type Dispatcher struct {
	node Procedure
	sink events.Sink
}

// NewDispatcher creates a dispatcher that sends buildable types to node.
func NewDispatcher(node Procedure, sink events.Sink) *Dispatcher {
	if sink == nil {
		sink = events.Discard
	}
	return &Dispatcher{node: node, sink: sink}
}

// Build runs the procedure for t. Types without a procedure are not attempted.
func (d *Dispatcher) Build(ctx context.Context, root string, t project.Type) Outcome {
	if !t.Buildable() || d.node == nil {
		d.sink.Emit(ctx, events.New(events.BuildSkipped, events.LevelInfo, "No build required",
			logfields.Project(root), logfields.ProjectType(string(t))))
		return NotAttempted()
	}

	out := d.node.Build(ctx, root)
	level := events.LevelInfo
	if out.Status == StatusFailed {
		level = events.LevelError
	}
	d.sink.Emit(ctx, events.New(events.BuildFinished, level, out.Message,
		logfields.Project(root), logfields.ProjectType(string(t)), logfields.Outcome(string(out.Status))))
	return out
}
