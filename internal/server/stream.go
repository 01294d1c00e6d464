package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// Hub fans pipeline events out to live stream subscribers, keyed by run ID.
// It is an events.Sink and is safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]chan events.Record
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string][]chan events.Record)}
}

// Subscribe returns a channel receiving runID's events and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe(runID string) (<-chan events.Record, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan events.Record, 32)
	h.subscribers[runID] = append(h.subscribers[runID], ch)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs := h.subscribers[runID]
			for i, sub := range subs {
				if sub == ch {
					h.subscribers[runID] = append(subs[:i], subs[i+1:]...)
					close(ch)
					break
				}
			}
			if len(h.subscribers[runID]) == 0 {
				delete(h.subscribers, runID)
			}
		})
	}
	return ch, unsubscribe
}

// SubscriberCount returns the number of live subscriptions for runID.
func (h *Hub) SubscriberCount(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[runID])
}

func (h *Hub) Emit(ctx context.Context, e events.Event) {
	if e.RunID == "" {
		e.RunID = events.RunIDFromContext(ctx)
	}
	if e.RunID == "" {
		return
	}
	rec := e.Record()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers[e.RunID] {
		select {
		case ch <- rec:
		default:
			slog.Warn("Event stream full, dropping event", logfields.RunID(e.RunID), slog.String("kind", string(e.Kind)))
		}
	}
}

func terminal(k events.Kind) bool {
	return k == events.RunCompleted || k == events.RunFailed
}

// handleStream streams a job's events as server-sent events until the run
// finishes, the client disconnects, or the stream idles out.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// Subscribe before reading the status so a run finishing in between is not missed.
	ch, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	job, ok := s.queue.Snapshot(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "deploy not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	writeSSE(w, "status", map[string]string{"id": id, "status": string(job.Status)})
	if job.Status == StatusDeployed || job.Status == StatusFailed {
		return
	}

	idle := time.NewTimer(s.streamIdle)
	defer idle.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-idle.C:
			writeSSE(w, "timeout", map[string]string{"id": id})
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, string(rec.Kind), rec)
			if terminal(rec.Kind) {
				return
			}
			idle.Reset(s.streamIdle)
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal stream event", logfields.Error(err))
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
