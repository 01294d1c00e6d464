package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/eventstore"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	RunID string `arg:"" optional:"" name:"run-id" help:"Show the events of this run instead of the run list"`
	Limit int    `short:"n" default:"20" help:"Maximum number of runs to list"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if cfg.State.Database == "" {
		return derrors.ConfigInvalid("state.database", "run history is disabled; set state.database")
	}

	store, err := eventstore.NewSQLiteStore(cfg.State.Database)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryFileSystem, derrors.SeverityError, "cannot open run history").
			WithContext("path", cfg.State.Database)
	}
	defer func() { _ = store.Close() }()

	if h.RunID != "" {
		evts, err := store.GetByRunID(g.Context, h.RunID)
		if err != nil {
			return derrors.Wrap(err, derrors.CategoryFileSystem, derrors.SeverityError, "cannot read run history")
		}
		if len(evts) == 0 {
			return derrors.New(derrors.CategoryValidation, derrors.SeverityError, "unknown run").
				WithContext("reason", h.RunID)
		}
		return printEvents(g.Stdout, evts)
	}

	runs, err := store.ListRuns(g.Context, h.Limit)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryFileSystem, derrors.SeverityError, "cannot read run history")
	}
	return printRuns(g.Stdout, runs)
}

func printRuns(w io.Writer, runs []eventstore.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN ID\tSTARTED\tDURATION\tEVENTS\tOUTCOME\tSOURCE")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RunID,
			r.Started.Local().Format(time.DateTime),
			r.Finished.Sub(r.Started).Round(time.Millisecond),
			r.Events,
			runOutcome(r),
			dash(r.Outcome[logfields.KeySource]))
	}
	return tw.Flush()
}

// runOutcome reports the build status of a finished run, "failed" for a run
// that ended in a fatal error and "-" for one that never finished.
func runOutcome(r eventstore.RunSummary) string {
	if r.Outcome == nil {
		return "-"
	}
	if o := r.Outcome[logfields.KeyOutcome]; o != "" {
		return o
	}
	return "failed"
}

func printEvents(w io.Writer, evts []eventstore.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tLEVEL\tEVENT\tMESSAGE")
	for _, e := range evts {
		var rec events.Record
		if err := json.Unmarshal(e.Payload, &rec); err != nil {
			rec = events.Record{Kind: events.Kind(e.Type), Level: "-"}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.RecordedAt.Local().Format(time.DateTime),
			rec.Level,
			e.Type,
			rec.Message)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
