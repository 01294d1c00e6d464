package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nats-io/nats.go"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/deploybuilder/internal/config"
	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/eventstore"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
	"git.home.luguber.info/inful/deploybuilder/internal/metrics"
)

// runEnv bundles the sinks, history store and metrics shared by run, watch
// and serve. Optional collaborators that fail to open are logged and left out:
// history and notifications never decide whether a deploy happens.
type runEnv struct {
	sink     events.Sink
	store    *eventstore.SQLiteStore
	nc       *nats.Conn
	registry *prom.Registry
	recorder *metrics.PrometheusRecorder
	logger   *slog.Logger
}

func openRunEnv(cfg *config.Config, logger *slog.Logger, extra ...events.Sink) *runEnv {
	env := &runEnv{logger: logger, registry: prom.NewRegistry()}
	env.recorder = metrics.NewPrometheusRecorder(env.registry)

	sinks := []events.Sink{events.NewLogSink(logger)}

	if path := cfg.State.Database; path != "" {
		store, err := openStore(path)
		if err != nil {
			logger.Warn("Run history disabled", logfields.Path(path), logfields.Error(err))
		} else {
			env.store = store
			sinks = append(sinks, events.NewStoreSink(store, logger))
		}
	}

	if url := cfg.Notify.NATSURL; url != "" {
		nc, err := events.ConnectNATS(url)
		if err != nil {
			logger.Warn("Event notifications disabled", logfields.URL(url), logfields.Error(err))
		} else {
			env.nc = nc
			sinks = append(sinks, events.NewNATSSink(nc, cfg.Notify.Subject, logger))
		}
	}

	env.sink = events.Multi(append(sinks, extra...)...)
	return env
}

func openStore(path string) (*eventstore.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	return eventstore.NewSQLiteStore(path)
}

// writeMetrics exports the registry when path is set. Failures are logged.
func (env *runEnv) writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(env.registry, path); err != nil {
		env.logger.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
	}
}

func (env *runEnv) Close() {
	if env.nc != nil {
		if err := env.nc.Drain(); err != nil {
			env.nc.Close()
		}
	}
	if env.store != nil {
		if err := env.store.Close(); err != nil {
			env.logger.Warn("Failed to close history database", logfields.Error(err))
		}
	}
}
