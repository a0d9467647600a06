package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udo-labs/udo-engine/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Vector_PutAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := model.Vector{Technical: 0.4, Market: 0.1, Resource: 0.2, Timeline: 0.5, Quality: 0.3}
	require.NoError(t, st.PutVector(ctx, "proj-1", v))

	got, err := st.GetVector(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, v, *got)
}

func TestSQLite_Vector_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetVector(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLite_Vector_UpsertReplacesCurrent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutVector(ctx, "proj-1", model.Vector{Technical: 0.2}))
	require.NoError(t, st.PutVector(ctx, "proj-1", model.Vector{Technical: 0.8}))

	got, err := st.GetVector(ctx, "proj-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.Technical, 1e-9)
}

func TestSQLite_VectorHistory_MostRecentLast(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		v := model.Vector{Technical: float64(i) / 10}
		require.NoError(t, st.PutVector(ctx, "proj-1", v))
		time.Sleep(2 * time.Millisecond) // distinct created_at per snapshot
	}

	history, err := st.VectorHistory(ctx, "proj-1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.InDelta(t, 0.2, history[0].Technical, 1e-9)
	assert.InDelta(t, 0.4, history[2].Technical, 1e-9)
}

func TestSQLite_VectorHistory_EmptyProject(t *testing.T) {
	st := newTestSQLiteStore(t)

	history, err := st.VectorHistory(context.Background(), "nonexistent", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSQLite_Acknowledgements_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ack := model.Acknowledgement{
		ID:            uuid.New().String(),
		ProjectID:     "proj-1",
		MitigationID:  "mit-1",
		Dimension:     model.DimTechnical,
		AppliedImpact: 0.15,
		CreatedAt:     now,
	}
	require.NoError(t, st.AppendAcknowledgement(ctx, ack))

	acks, err := st.Acknowledgements(ctx, "proj-1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, acks, 1)
	assert.Equal(t, "mit-1", acks[0].MitigationID)
	assert.Equal(t, model.DimTechnical, acks[0].Dimension)
	assert.InDelta(t, 0.15, acks[0].AppliedImpact, 1e-9)
}

func TestSQLite_Acknowledgements_SinceFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := model.Acknowledgement{
		ID: uuid.New().String(), ProjectID: "proj-1", MitigationID: "mit-old",
		Dimension: model.DimMarket, AppliedImpact: 0.1, CreatedAt: now.Add(-48 * time.Hour),
	}
	recent := model.Acknowledgement{
		ID: uuid.New().String(), ProjectID: "proj-1", MitigationID: "mit-new",
		Dimension: model.DimMarket, AppliedImpact: 0.1, CreatedAt: now,
	}
	require.NoError(t, st.AppendAcknowledgement(ctx, old))
	require.NoError(t, st.AppendAcknowledgement(ctx, recent))

	acks, err := st.Acknowledgements(ctx, "proj-1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, acks, 1)
	assert.Equal(t, "mit-new", acks[0].MitigationID)
}

func TestSQLite_Outcomes_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, correct := range []bool{true, false, true} {
		out := model.DecisionOutcome{
			ID:        uuid.New().String(),
			ProjectID: "proj-1",
			Verdict:   model.VerdictGo,
			Correct:   correct,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, st.AppendOutcome(ctx, out))
	}

	outs, err := st.Outcomes(ctx, "proj-1", 10)
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.False(t, outs[1].Correct)
	assert.True(t, outs[2].Correct)
}

func TestSQLite_LastUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.LastUpdate(ctx, "nonexistent")
	assert.ErrorIs(t, err, model.ErrNotFound)

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, st.PutVector(ctx, "proj-1", model.Vector{}))

	ts, err := st.LastUpdate(ctx, "proj-1")
	require.NoError(t, err)
	assert.True(t, ts.After(before))
}
