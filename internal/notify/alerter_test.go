package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udo-labs/udo-engine/internal/config"
	"github.com/udo-labs/udo-engine/internal/model"
)

func newTestAlerter(t *testing.T, url string) *Alerter {
	t.Helper()
	a, err := NewAlerter(config.NotifyConfig{
		WebhookURL:   url,
		MinState:     "chaotic",
		CooldownSecs: 300,
	})
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func TestNewAlerter_DisabledWithoutURL(t *testing.T) {
	t.Parallel()
	a, err := NewAlerter(config.NotifyConfig{MinState: "chaotic"})
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestNewAlerter_RejectsUnknownState(t *testing.T) {
	t.Parallel()
	_, err := NewAlerter(config.NotifyConfig{WebhookURL: "http://example.test", MinState: "entropy"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAlerter_SendsAboveMinState(t *testing.T) {
	t.Parallel()
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		got.Store(alert)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newTestAlerter(t, srv.URL)
	a.consider(context.Background(), model.Status{
		ProjectID: "p1",
		State:     model.StateVoid,
		Magnitude: 0.95,
		Dominant:  model.DimTimeline,
		Decision:  model.Decision{Verdict: model.VerdictNoGo, Confidence: 0.1},
	})

	alert, ok := got.Load().(Alert)
	require.True(t, ok, "webhook was not called")
	assert.Equal(t, "p1", alert.ProjectID)
	assert.Equal(t, model.StateVoid, alert.State)
	assert.Equal(t, model.VerdictNoGo, alert.Verdict)
	assert.Contains(t, alert.Message, "escalated")
}

func TestAlerter_IgnoresBelowMinState(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	a := newTestAlerter(t, srv.URL)
	a.consider(context.Background(), model.Status{ProjectID: "p1", State: model.StateQuantum})

	assert.Zero(t, calls.Load())
}

func TestAlerter_CooldownSuppressesRepeats(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	a := newTestAlerter(t, srv.URL)
	now := time.Now()
	a.nowFunc = func() time.Time { return now }

	st := model.Status{ProjectID: "p1", State: model.StateChaotic}
	a.consider(context.Background(), st)
	a.consider(context.Background(), st)
	assert.Equal(t, int32(1), calls.Load(), "second alert inside cooldown must be suppressed")

	now = now.Add(301 * time.Second)
	a.consider(context.Background(), st)
	assert.Equal(t, int32(2), calls.Load(), "alerting resumes after cooldown")
}

func TestAlerter_RunConsumesHub(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	a := newTestAlerter(t, srv.URL)
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx, hub)
	}()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(model.Status{ProjectID: "p1", State: model.StateVoid})
	require.Eventually(t, func() bool { return calls.Load() == 1 },
		time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}
