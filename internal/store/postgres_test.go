package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udo-labs/udo-engine/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetVector_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vector FROM project_vectors WHERE project_id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetVector(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVector_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vector FROM project_vectors WHERE project_id = \$1`).
		WithArgs("proj-1").
		WillReturnRows(pgxmock.NewRows([]string{"vector"}).
			AddRow([]byte(`{"technical":0.4,"market":0.1,"resource":0.2,"timeline":0.5,"quality":0.3}`)))

	v, err := s.GetVector(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v.Timeline, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutVector_UpsertsAndAppendsHistoryInOneTx(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO project_vectors`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO vector_history`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.PutVector(context.Background(), "proj-1", model.Vector{Technical: 0.4})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutVector_RollsBackOnHistoryFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO project_vectors`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO vector_history`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.PutVector(context.Background(), "proj-1", model.Vector{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_VectorHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT vector FROM \(`).
		WithArgs("proj-1", 24).
		WillReturnRows(pgxmock.NewRows([]string{"vector"}).
			AddRow([]byte(`{"technical":0.1}`)).
			AddRow([]byte(`{"technical":0.2}`)))

	history, err := s.VectorHistory(context.Background(), "proj-1", 24)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.InDelta(t, 0.2, history[1].Technical, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendAcknowledgement(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO acknowledgements`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ack := model.Acknowledgement{
		ID: "ack-1", ProjectID: "proj-1", MitigationID: "mit-1",
		Dimension: model.DimTimeline, AppliedImpact: 0.1, CreatedAt: time.Now(),
	}
	require.NoError(t, s.AppendAcknowledgement(context.Background(), ack))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Outcomes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, project_id, verdict, correct, created_at FROM \(`).
		WithArgs("proj-1", 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "project_id", "verdict", "correct", "created_at"}).
			AddRow("o1", "proj-1", "go", true, now.Add(-time.Minute)).
			AddRow("o2", "proj-1", "no_go", false, now))

	outs, err := s.Outcomes(context.Background(), "proj-1", 20)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, model.VerdictNoGo, outs[1].Verdict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LastUpdate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT updated_at FROM project_vectors`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LastUpdate(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
