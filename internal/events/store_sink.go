package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/deploybuilder/internal/eventstore"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// StoreSink appends every event carrying a run ID to the run history store.
// Write failures are logged and otherwise ignored; history must never fail a run.
type StoreSink struct {
	store  eventstore.Store
	logger *slog.Logger
}

// NewStoreSink wraps store. A nil logger means slog.Default().
func NewStoreSink(store eventstore.Store, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) Emit(ctx context.Context, e Event) {
	e = stamp(ctx, e)
	if s.store == nil || e.RunID == "" {
		return
	}
	rec := e.Record()
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("Failed to encode event for history", logfields.RunID(e.RunID), logfields.Error(err))
		return
	}
	if err := s.store.Append(context.WithoutCancel(ctx), e.RunID, string(e.Kind), payload, metadata(rec)); err != nil {
		s.logger.Warn("Failed to record event", logfields.RunID(e.RunID), logfields.Error(err))
	}
}

func metadata(rec Record) map[string]string {
	if len(rec.Fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		out[k] = fmt.Sprint(v)
	}
	return out
}
