package events

import (
	"context"
	"log/slog"
	"time"
)

// Kind names a pipeline event.
type Kind string

const (
	RunStarted         Kind = "run_started"
	RunCompleted       Kind = "run_completed"
	RunFailed          Kind = "run_failed"
	ProjectClassified  Kind = "project_classified"
	ManifestUnreadable Kind = "manifest_unreadable"
	BuildStarted       Kind = "build_started"
	BuildFinished      Kind = "build_finished"
	BuildSkipped       Kind = "build_skipped"
	BuildDegraded      Kind = "build_degraded"
	ToolMissing        Kind = "tool_missing"
	CommandStarted     Kind = "command_started"
	CommandOutput      Kind = "command_output"
	CommandSucceeded   Kind = "command_succeeded"
	CommandFailed      Kind = "command_failed"
	ArtifactFound      Kind = "artifact_found"
	ArtifactMissing    Kind = "artifact_missing"
	DeployStaged       Kind = "deploy_staged"
	FallbackWritten    Kind = "fallback_written"
	StageTimed         Kind = "stage_timed"
	SourceCloned       Kind = "source_cloned"
	LinksRemoved       Kind = "links_removed"
)

// Levels used by the pipeline; the log stream knows INFO, WARNING and ERROR.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Event is one diagnostic emitted by a pipeline component.
type Event struct {
	Kind    Kind
	Level   slog.Level
	Message string
	Attrs   []slog.Attr
	RunID   string
	Time    time.Time
}

// New creates an event stamped with the current time.
func New(kind Kind, level slog.Level, message string, attrs ...slog.Attr) Event {
	return Event{
		Kind:    kind,
		Level:   level,
		Message: message,
		Attrs:   attrs,
		Time:    time.Now(),
	}
}

// Attr returns the value of the first attribute with key.
func (e Event) Attr(key string) (slog.Value, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return slog.Value{}, false
}

// Record is the serialized form of an Event used by the store and NATS sinks.
type Record struct {
	Kind    Kind           `json:"kind"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	RunID   string         `json:"run_id,omitempty"`
	Time    time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Record converts the event to its serialized form.
func (e Event) Record() Record {
	r := Record{
		Kind:    e.Kind,
		Level:   e.Level.String(),
		Message: e.Message,
		RunID:   e.RunID,
		Time:    e.Time,
	}
	if len(e.Attrs) > 0 {
		r.Fields = make(map[string]any, len(e.Attrs))
		for _, a := range e.Attrs {
			r.Fields[a.Key] = a.Value.Resolve().Any()
		}
	}
	return r
}

// Sink receives pipeline events. Implementations must not block for long and
// must be safe for sequential use; sinks shared across goroutines document it.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event)

func (f SinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

type multi []Sink

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m multi) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}

// WithRunID stamps every event passing through with runID.
func WithRunID(s Sink, runID string) Sink {
	return SinkFunc(func(ctx context.Context, e Event) {
		if e.RunID == "" {
			e.RunID = runID
		}
		s.Emit(ctx, e)
	})
}
