package events

import "context"

type runIDKeyType string

const runIDKey runIDKeyType = "run-id"

// ContextWithRunID attaches a pipeline run ID to ctx. Sinks stamp it on
// events that carry no run ID of their own.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run ID attached to ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

func stamp(ctx context.Context, e Event) Event {
	if e.RunID == "" {
		e.RunID = RunIDFromContext(ctx)
	}
	return e
}
