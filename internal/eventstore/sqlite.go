package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS run_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	recorded_at INTEGER NOT NULL,
	payload     BLOB    NOT NULL,
	metadata    TEXT
);
CREATE INDEX IF NOT EXISTS run_events_run ON run_events(run_id);
CREATE INDEX IF NOT EXISTS run_events_recorded ON run_events(recorded_at);
`

const (
	insertEvent = `INSERT INTO run_events (run_id, kind, recorded_at, payload, metadata) VALUES (?, ?, ?, ?, ?)`

	selectRun = `SELECT id, run_id, kind, recorded_at, payload, metadata
		FROM run_events WHERE run_id = ? ORDER BY id`

	// The outcome column is the metadata of the run's last terminal event.
	selectRuns = `SELECT e.run_id, MIN(e.recorded_at), MAX(e.recorded_at), COUNT(*),
			(SELECT t.metadata FROM run_events t
			 WHERE t.run_id = e.run_id AND t.kind IN ('run_completed', 'run_failed')
			 ORDER BY t.id DESC LIMIT 1)
		FROM run_events e
		GROUP BY e.run_id
		ORDER BY MIN(e.id) DESC
		LIMIT ?`

	deleteBefore = `DELETE FROM run_events WHERE recorded_at < ?`
)

// SQLiteStore is a Store backed by modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore opens or creates the database at dbPath. ":memory:" gives a
// private in-memory store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("history database schema %d is newer than supported %d", version, schemaVersion)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error {
	var meta sql.NullString
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}
	if payload == nil {
		payload = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, insertEvent, runID, eventType, s.now().UnixMilli(), payload, meta); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetByRunID(ctx context.Context, runID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectRun, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var (
			e          Event
			recordedAt int64
			meta       sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &recordedAt, &e.Payload, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.RecordedAt = time.UnixMilli(recordedAt)
		if e.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var (
			r           RunSummary
			first, last int64
			outcome     sql.NullString
		)
		if err := rows.Scan(&r.RunID, &first, &last, &r.Events, &outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started, r.Finished = time.UnixMilli(first), time.UnixMilli(last)
		if r.Outcome, err = decodeMetadata(outcome); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, deleteBefore, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func decodeMetadata(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
