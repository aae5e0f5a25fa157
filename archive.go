package courier

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// EventArchive persists the audit log append-only in SQLite so the
// trail survives restarts. On boot, Load feeds Core.Replay to rebuild
// state; afterwards Run tails the log and persists each new event.
// The archive never updates or deletes rows.
type EventArchive struct {
	db     *sql.DB
	cancel func()
}

// OpenEventArchive opens (creating if needed) the archive database.
func OpenEventArchive(path string) (*EventArchive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping archive: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		kind TEXT NOT NULL,
		actor TEXT DEFAULT '',
		target TEXT DEFAULT '',
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_actor ON events(actor);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	return &EventArchive{db: db}, nil
}

// Persist writes one sealed event. The payload column stores the full
// event JSON; the indexed columns exist only for ad-hoc queries.
func (a *EventArchive) Persist(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	_, err = a.db.Exec(
		"INSERT INTO events (seq, id, ts, kind, actor, target, payload) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.Seq, e.ID, e.Timestamp, e.Kind, e.Actor.String(), e.Target.String(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("persist event %s: %w", e.ID, err)
	}
	return nil
}

// Load returns every archived event in sequence order.
func (a *EventArchive) Load() ([]Event, error) {
	rows, err := a.db.Query("SELECT payload FROM events ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan archived event: %w", err)
		}
		var e Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode archived event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of archived events.
func (a *EventArchive) Count() (int, error) {
	var count int
	err := a.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count)
	return count, err
}

// Run tails the log, persisting each new event until Close. Call this
// AFTER replaying the loaded events, or the replay would be archived
// twice.
func (a *EventArchive) Run(log *EventLog) {
	events, cancel := log.Subscribe(1024)
	a.cancel = cancel

	go func() {
		for e := range events {
			if err := a.Persist(e); err != nil {
				logrus.WithError(err).Warnf("Failed to archive event %s", e.ID)
			}
		}
	}()
}

// Close stops tailing and closes the database.
func (a *EventArchive) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	return a.db.Close()
}
