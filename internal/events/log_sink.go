package events

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// LogSink renders events as structured slog records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink; a nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, e Event) {
	e = stamp(ctx, e)
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]slog.Attr, 0, len(e.Attrs)+2)
	if e.RunID != "" {
		attrs = append(attrs, logfields.RunID(e.RunID))
	}
	attrs = append(attrs, slog.String("event", string(e.Kind)))
	attrs = append(attrs, e.Attrs...)
	logger.LogAttrs(ctx, e.Level, e.Message, attrs...)
}
