package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/udo-labs/udo-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS project_vectors (
	project_id TEXT PRIMARY KEY,
	vector     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS vector_history (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	vector     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS acknowledgements (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL,
	mitigation_id  TEXT NOT NULL,
	dimension      TEXT NOT NULL,
	applied_impact REAL NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decision_outcomes (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	correct    INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vector_history_project ON vector_history(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_acks_project ON acknowledgements(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_outcomes_project ON decision_outcomes(project_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetVector(ctx context.Context, projectID string) (*model.Vector, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT vector FROM project_vectors WHERE project_id = ?`, projectID)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "project %s", projectID)
		}
		return nil, eris.Wrap(err, "sqlite: get vector")
	}

	var v model.Vector
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal vector")
	}
	return &v, nil
}

// PutVector upserts the current vector and appends a history snapshot in one
// transaction, so readers never observe the two out of sync.
func (s *SQLiteStore) PutVector(ctx context.Context, projectID string, v model.Vector) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal vector")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin put vector")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_vectors (project_id, vector, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET vector = excluded.vector, updated_at = excluded.updated_at`,
		projectID, string(raw), now,
	); err != nil {
		return eris.Wrap(err, "sqlite: upsert vector")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vector_history (id, project_id, vector, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), projectID, string(raw), now,
	); err != nil {
		return eris.Wrap(err, "sqlite: append history")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit put vector")
}

// VectorHistory returns up to window snapshots, most-recent-last.
func (s *SQLiteStore) VectorHistory(ctx context.Context, projectID string, window int) ([]model.Vector, error) {
	if window <= 0 {
		window = 24
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT vector FROM (
			SELECT vector, created_at FROM vector_history
			WHERE project_id = ? ORDER BY created_at DESC LIMIT ?
		 ) ORDER BY created_at ASC`,
		projectID, window,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: vector history")
	}
	defer rows.Close()

	var history []model.Vector
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history row")
		}
		var v model.Vector
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal history vector")
		}
		history = append(history, v)
	}
	return history, eris.Wrap(rows.Err(), "sqlite: vector history iterate")
}

func (s *SQLiteStore) AppendAcknowledgement(ctx context.Context, ack model.Acknowledgement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO acknowledgements (id, project_id, mitigation_id, dimension, applied_impact, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ack.ID, ack.ProjectID, ack.MitigationID, string(ack.Dimension), ack.AppliedImpact, ack.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: append acknowledgement")
}

func (s *SQLiteStore) Acknowledgements(ctx context.Context, projectID string, since time.Time) ([]model.Acknowledgement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, mitigation_id, dimension, applied_impact, created_at
		 FROM acknowledgements WHERE project_id = ? AND created_at >= ?
		 ORDER BY created_at ASC`,
		projectID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list acknowledgements")
	}
	defer rows.Close()

	var acks []model.Acknowledgement
	for rows.Next() {
		var a model.Acknowledgement
		var dim string
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.MitigationID, &dim, &a.AppliedImpact, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan acknowledgement")
		}
		a.Dimension = model.Dimension(dim)
		acks = append(acks, a)
	}
	return acks, eris.Wrap(rows.Err(), "sqlite: list acknowledgements iterate")
}

func (s *SQLiteStore) AppendOutcome(ctx context.Context, out model.DecisionOutcome) error {
	correct := 0
	if out.Correct {
		correct = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_outcomes (id, project_id, verdict, correct, created_at) VALUES (?, ?, ?, ?, ?)`,
		out.ID, out.ProjectID, string(out.Verdict), correct, out.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: append outcome")
}

// Outcomes returns up to limit outcomes, most-recent-last.
func (s *SQLiteStore) Outcomes(ctx context.Context, projectID string, limit int) ([]model.DecisionOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, verdict, correct, created_at FROM (
			SELECT id, project_id, verdict, correct, created_at FROM decision_outcomes
			WHERE project_id = ? ORDER BY created_at DESC LIMIT ?
		 ) ORDER BY created_at ASC`,
		projectID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outcomes")
	}
	defer rows.Close()

	var outs []model.DecisionOutcome
	for rows.Next() {
		var o model.DecisionOutcome
		var verdict string
		var correct int
		if err := rows.Scan(&o.ID, &o.ProjectID, &verdict, &correct, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		o.Verdict = model.Verdict(verdict)
		o.Correct = correct != 0
		outs = append(outs, o)
	}
	return outs, eris.Wrap(rows.Err(), "sqlite: list outcomes iterate")
}

func (s *SQLiteStore) LastUpdate(ctx context.Context, projectID string) (time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM project_vectors WHERE project_id = ?`, projectID)

	var ts time.Time
	if err := row.Scan(&ts); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, eris.Wrapf(model.ErrNotFound, "project %s", projectID)
		}
		return time.Time{}, eris.Wrap(err, "sqlite: last update")
	}
	return ts, nil
}
