package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/orbitdesk/orbit/go-companion/internal/engine"
	"github.com/orbitdesk/orbit/go-companion/internal/fsm"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS context_snapshots (
	id                   TEXT PRIMARY KEY,
	active_app           TEXT,
	window_title         TEXT,
	idle_seconds         REAL NOT NULL,
	recent_errors        INTEGER NOT NULL,
	recent_file_changes  INTEGER NOT NULL,
	captured_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	id                   TEXT PRIMARY KEY,
	intent_type          TEXT NOT NULL,
	confidence           REAL NOT NULL,
	adjusted_confidence  REAL NOT NULL,
	approved             INTEGER NOT NULL DEFAULT 0,
	reason               TEXT NOT NULL,
	message              TEXT,
	state_after          TEXT NOT NULL,
	decided_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_log_decided_at
ON decision_log(decided_at);
`

// #endregion schema

// #region record

// DecisionRecord is one row of the decision provenance log.
type DecisionRecord struct {
	ID                 string
	IntentType         intent.IntentType
	Confidence         float32
	AdjustedConfidence float32
	Approved           bool
	Reason             engine.Reason
	Message            string
	StateAfter         fsm.State
	DecidedAt          time.Time
}

// #endregion record

// #region store-struct

// Store persists context snapshots and admission decisions in SQLite.
// Store failures are observability losses, never pipeline failures; callers
// log and continue.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for inspection tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region save-snapshot

// SaveSnapshot persists one context snapshot.
func (s *Store) SaveSnapshot(snap intent.Snapshot) error {
	_, err := s.db.Exec(
		`INSERT INTO context_snapshots (id, active_app, window_title, idle_seconds, recent_errors, recent_file_changes, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		snap.ActiveApp,
		snap.WindowTitle,
		snap.IdleSeconds,
		snap.RecentErrors,
		snap.RecentFileChanges,
		snap.CapturedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// #endregion save-snapshot

// #region log-decision

// LogDecision persists one admission decision. A zero ID gets a fresh uuid.
func (s *Store) LogDecision(rec DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	approved := 0
	if rec.Approved {
		approved = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO decision_log (id, intent_type, confidence, adjusted_confidence, approved, reason, message, state_after, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.IntentType),
		rec.Confidence,
		rec.AdjustedConfidence,
		approved,
		string(rec.Reason),
		rec.Message,
		string(rec.StateAfter),
		rec.DecidedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region queries

// RecentDecisions returns the most recent decisions, newest first.
func (s *Store) RecentDecisions(limit int) ([]DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, intent_type, confidence, adjusted_confidence, approved, reason, message, state_after, decided_at
		 FROM decision_log ORDER BY decided_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var typ, reason, state, decidedStr string
		var approved int
		var message sql.NullString

		if err := rows.Scan(&rec.ID, &typ, &rec.Confidence, &rec.AdjustedConfidence, &approved, &reason, &message, &state, &decidedStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.IntentType = intent.IntentType(typ)
		rec.Approved = approved == 1
		rec.Reason = engine.Reason(reason)
		if message.Valid {
			rec.Message = message.String
		}
		rec.StateAfter = fsm.State(state)
		rec.DecidedAt, _ = time.Parse(time.RFC3339Nano, decidedStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DecisionStats returns decision counts grouped by reason.
func (s *Store) DecisionStats() (map[engine.Reason]int, error) {
	rows, err := s.db.Query(`SELECT reason, COUNT(*) FROM decision_log GROUP BY reason`)
	if err != nil {
		return nil, fmt.Errorf("decision stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[engine.Reason]int)
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[engine.Reason(reason)] = count
	}
	return stats, rows.Err()
}

// #endregion queries
