package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udo-labs/udo-engine/internal/config"
	"github.com/udo-labs/udo-engine/internal/engine"
	"github.com/udo-labs/udo-engine/internal/model"
	"github.com/udo-labs/udo-engine/internal/notify"
	"github.com/udo-labs/udo-engine/internal/source"
	"github.com/udo-labs/udo-engine/internal/store"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	c, err := config.Load()
	require.NoError(t, err)
	params, err := engine.ParamsFromConfig(c.Engine)
	require.NoError(t, err)

	hub := notify.NewHub()
	eng := engine.New(params, st, source.NewStoreSource(st), engine.WithPublisher(hub))
	return &env{Store: st, Engine: eng, Hub: hub}
}

func newTestServer(t *testing.T) (*httptest.Server, *env) {
	t.Helper()
	e := newTestEnv(t)
	srv := httptest.NewServer(newRouter(e, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv, e
}

func putVector(t *testing.T, srv *httptest.Server, projectID string, v model.Vector) model.Status {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/projects/%s/vector", srv.URL, projectID), bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st model.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_StatusUnknownProjectIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/projects/ghost/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_VectorRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	st := putVector(t, srv, "p1", model.Vector{Technical: 0.9, Market: 0.2, Resource: 0.2, Timeline: 0.2, Quality: 0.2})
	assert.Equal(t, model.StateQuantum, st.State)
	assert.Equal(t, model.DimTechnical, st.Dominant)
	require.NotEmpty(t, st.Mitigations)

	resp, err := http.Get(srv.URL + "/api/projects/p1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, st.State, got.State)
	assert.InDelta(t, st.Magnitude, got.Magnitude, 1e-9)
}

func TestAPI_VectorRejectsOutOfRange(t *testing.T) {
	srv, _ := newTestServer(t)

	body := []byte(`{"technical": 2.5}`)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/projects/p1/vector", bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_AcknowledgeFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	st := putVector(t, srv, "p1", model.Vector{Technical: 0.9, Market: 0.2, Resource: 0.2, Timeline: 0.2, Quality: 0.2})
	require.NotEmpty(t, st.Mitigations)
	mit := st.Mitigations[0]

	body, err := json.Marshal(map[string]any{
		"mitigation_id":  mit.ID,
		"applied_impact": 0.1,
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/projects/p1/acknowledge", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res engine.AckResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.InDelta(t, 0.8, res.Status.Vector.Technical, 1e-9)
}

func TestAPI_AcknowledgeOverEstimateIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	st := putVector(t, srv, "p1", model.Vector{Technical: 0.9, Market: 0.2, Resource: 0.2, Timeline: 0.2, Quality: 0.2})
	mit := st.Mitigations[0]

	body, err := json.Marshal(map[string]any{
		"mitigation_id":  mit.ID,
		"applied_impact": mit.EstimatedImpact + 0.5,
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/projects/p1/acknowledge", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_AcknowledgeUnknownMitigationIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	putVector(t, srv, "p1", model.Vector{Technical: 0.9})

	body := []byte(`{"mitigation_id":"never-offered","applied_impact":0.1}`)
	resp, err := http.Post(srv.URL+"/api/projects/p1/acknowledge", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Analyze(t *testing.T) {
	srv, _ := newTestServer(t)

	body := []byte(`{"phase":"ideation","team_size":1,"timeline_days":20,"validation_score":0.1}`)
	resp, err := http.Post(srv.URL+"/api/projects/greenfield/analyze", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st model.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.GreaterOrEqual(t, st.State, model.StateQuantum)
	assert.NotEmpty(t, st.Mitigations)
}

func TestAPI_AnalyzeUnknownPhaseIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	body := []byte(`{"phase":"singularity"}`)
	resp, err := http.Post(srv.URL+"/api/projects/p1/analyze", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_OverrunAdjustsVector(t *testing.T) {
	srv, _ := newTestServer(t)

	putVector(t, srv, "p1", model.Vector{Timeline: 0.5, Technical: 0.4})

	body := []byte(`{"ratio": 1.5}`)
	resp, err := http.Post(srv.URL+"/api/projects/p1/overrun", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st model.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Greater(t, st.Vector.Timeline, 0.5)
	assert.Greater(t, st.Vector.Technical, 0.4)
}

func TestAPI_OutcomeRecorded(t *testing.T) {
	srv, e := newTestServer(t)

	body := []byte(`{"verdict":"go","correct":true}`)
	resp, err := http.Post(srv.URL+"/api/projects/p1/outcome", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	outs, err := e.Store.Outcomes(context.Background(), "p1", 10)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, model.VerdictGo, outs[0].Verdict)
}

func TestAPI_OutcomeRejectsUnknownVerdict(t *testing.T) {
	srv, _ := newTestServer(t)

	body := []byte(`{"verdict":"maybe","correct":true}`)
	resp, err := http.Post(srv.URL+"/api/projects/p1/outcome", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
