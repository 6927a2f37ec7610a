// Package runstore journals pipeline runs and their stage transitions to
// SQLite. It is the machine-readable counterpart of the in-note progress
// markers: after a crash the journal says which stage a run reached.
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/scribelabs/scribe-core/internal/config"
	_ "modernc.org/sqlite"
)

// Run is one recorded pipeline run.
type Run struct {
	SessionID string
	Source    string
	NotePath  string
	Status    string
	CreatedAt time.Time
}

// StageEvent is one stage transition within a run.
type StageEvent struct {
	ID        int64
	SessionID string
	Stage     string
	Status    string
	Detail    string
	CreatedAt time.Time
}

// Run and stage statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store wraps a SQLite-backed run journal.
type Store struct {
	db    *sql.DB
	cfg   config.RunStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the run store according to config. Ephemeral retention
// yields a no-op store with no database connection.
func Open(ctx context.Context, cfg config.RunStoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("run store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("run store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    session_id TEXT PRIMARY KEY,
    source TEXT,
    note_path TEXT,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS stage_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    status TEXT NOT NULL,
    detail TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES runs(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_stage_events_session_created ON stage_events(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records a started run, upserting on repeated starts.
func (s *Store) BeginRun(ctx context.Context, sessionID, source string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(session_id, source, note_path, status, created_at)
		 VALUES(?, ?, '', ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET source=excluded.source, status=excluded.status`,
		sessionID, source, StatusStarted, s.clock().UTC())
	return err
}

// FinishRun marks a run completed or failed and records the note it touched.
func (s *Store) FinishRun(ctx context.Context, sessionID, status, notePath string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, note_path = ? WHERE session_id = ?`,
		status, notePath, sessionID)
	return err
}

// AppendStage writes one stage transition into the journal.
func (s *Store) AppendStage(ctx context.Context, evt StageEvent) error {
	if s.db == nil {
		return nil
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_events(session_id, stage, status, detail, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		evt.SessionID, evt.Stage, evt.Status, evt.Detail, evt.CreatedAt)
	return err
}

// GetRun fetches one run by session id.
func (s *Store) GetRun(ctx context.Context, sessionID string) (*Run, error) {
	if s.db == nil {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, source, note_path, status, created_at FROM runs WHERE session_id = ?`, sessionID)
	var r Run
	var created string
	if err := row.Scan(&r.SessionID, &r.Source, &r.NotePath, &r.Status, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		r.CreatedAt = ts
	}
	return &r, nil
}

// ListStages retrieves up to limit stage events for a run ordered ascending
// by time.
func (s *Store) ListStages(ctx context.Context, sessionID string, limit int) ([]StageEvent, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, stage, status, detail, created_at
		 FROM stage_events WHERE session_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var e StageEvent
		var created string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Stage, &e.Status, &e.Detail, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune applies configured retention (called on startup and can be scheduled).
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM stage_events WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxRuns > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE session_id IN (
			SELECT session_id FROM runs ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxRuns)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
