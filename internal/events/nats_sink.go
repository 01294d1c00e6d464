package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events as JSON to "<subject>.<kind>".
type NATSSink struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// NewNATSSink creates a sink publishing through pub.
func NewNATSSink(pub Publisher, subject string, logger *slog.Logger) *NATSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{pub: pub, subject: subject, logger: logger}
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("deploybuilder"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
}

func (s *NATSSink) Emit(ctx context.Context, e Event) {
	data, err := json.Marshal(stamp(ctx, e).Record())
	if err != nil {
		s.logger.Warn("Failed to encode event for NATS", logfields.Error(err))
		return
	}
	subject := s.subject + "." + string(e.Kind)
	if err := s.pub.Publish(subject, data); err != nil {
		s.logger.Warn("Failed to publish event", slog.String("subject", subject), logfields.Error(err))
	}
}
