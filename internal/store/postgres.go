package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/udo-labs/udo-engine/internal/model"
)

// Pool abstracts the pgx pool methods the store needs, so unit tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// preparedStatements lists queries to prepare on each new connection for the
// hot read paths.
var preparedStatements = map[string]string{
	"get_vector":  `SELECT vector FROM project_vectors WHERE project_id = $1`,
	"get_history": `SELECT vector FROM (SELECT vector, created_at FROM vector_history WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2) h ORDER BY created_at ASC`,
	"last_update": `SELECT updated_at FROM project_vectors WHERE project_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS project_vectors (
	project_id TEXT PRIMARY KEY,
	vector     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS vector_history (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id TEXT NOT NULL,
	vector     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS acknowledgements (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id     TEXT NOT NULL,
	mitigation_id  TEXT NOT NULL,
	dimension      TEXT NOT NULL,
	applied_impact DOUBLE PRECISION NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_outcomes (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	correct    BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vector_history_project ON vector_history(project_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_acks_project ON acknowledgements(project_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_outcomes_project ON decision_outcomes(project_id, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) GetVector(ctx context.Context, projectID string) (*model.Vector, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT vector FROM project_vectors WHERE project_id = $1`, projectID)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "project %s", projectID)
		}
		return nil, eris.Wrap(err, "postgres: get vector")
	}

	var v model.Vector
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal vector")
	}
	return &v, nil
}

// PutVector upserts the current vector and appends a history snapshot in one
// transaction.
func (s *PostgresStore) PutVector(ctx context.Context, projectID string, v model.Vector) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal vector")
	}
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin put vector")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO project_vectors (project_id, vector, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (project_id) DO UPDATE SET vector = EXCLUDED.vector, updated_at = EXCLUDED.updated_at`,
		projectID, raw, now,
	); err != nil {
		return eris.Wrap(err, "postgres: upsert vector")
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO vector_history (id, project_id, vector, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), projectID, raw, now,
	); err != nil {
		return eris.Wrap(err, "postgres: append history")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit put vector")
}

func (s *PostgresStore) VectorHistory(ctx context.Context, projectID string, window int) ([]model.Vector, error) {
	if window <= 0 {
		window = 24
	}
	rows, err := s.pool.Query(ctx,
		`SELECT vector FROM (
			SELECT vector, created_at FROM vector_history
			WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2
		 ) h ORDER BY created_at ASC`,
		projectID, window,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: vector history")
	}
	defer rows.Close()

	var history []model.Vector
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history row")
		}
		var v model.Vector
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal history vector")
		}
		history = append(history, v)
	}
	return history, eris.Wrap(rows.Err(), "postgres: vector history iterate")
}

func (s *PostgresStore) AppendAcknowledgement(ctx context.Context, ack model.Acknowledgement) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO acknowledgements (id, project_id, mitigation_id, dimension, applied_impact, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ack.ID, ack.ProjectID, ack.MitigationID, string(ack.Dimension), ack.AppliedImpact, ack.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: append acknowledgement")
}

func (s *PostgresStore) Acknowledgements(ctx context.Context, projectID string, since time.Time) ([]model.Acknowledgement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, mitigation_id, dimension, applied_impact, created_at
		 FROM acknowledgements WHERE project_id = $1 AND created_at >= $2
		 ORDER BY created_at ASC`,
		projectID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list acknowledgements")
	}
	defer rows.Close()

	var acks []model.Acknowledgement
	for rows.Next() {
		var a model.Acknowledgement
		var dim string
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.MitigationID, &dim, &a.AppliedImpact, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan acknowledgement")
		}
		a.Dimension = model.Dimension(dim)
		acks = append(acks, a)
	}
	return acks, eris.Wrap(rows.Err(), "postgres: list acknowledgements iterate")
}

func (s *PostgresStore) AppendOutcome(ctx context.Context, out model.DecisionOutcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decision_outcomes (id, project_id, verdict, correct, created_at) VALUES ($1, $2, $3, $4, $5)`,
		out.ID, out.ProjectID, string(out.Verdict), out.Correct, out.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: append outcome")
}

func (s *PostgresStore) Outcomes(ctx context.Context, projectID string, limit int) ([]model.DecisionOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, verdict, correct, created_at FROM (
			SELECT id, project_id, verdict, correct, created_at FROM decision_outcomes
			WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2
		 ) o ORDER BY created_at ASC`,
		projectID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list outcomes")
	}
	defer rows.Close()

	var outs []model.DecisionOutcome
	for rows.Next() {
		var o model.DecisionOutcome
		var verdict string
		if err := rows.Scan(&o.ID, &o.ProjectID, &verdict, &o.Correct, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		o.Verdict = model.Verdict(verdict)
		outs = append(outs, o)
	}
	return outs, eris.Wrap(rows.Err(), "postgres: list outcomes iterate")
}

func (s *PostgresStore) LastUpdate(ctx context.Context, projectID string) (time.Time, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT updated_at FROM project_vectors WHERE project_id = $1`, projectID)

	var ts time.Time
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, eris.Wrapf(model.ErrNotFound, "project %s", projectID)
		}
		return time.Time{}, eris.Wrap(err, "postgres: last update")
	}
	return ts, nil
}
