package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/udo-labs/udo-engine/internal/config"
	"github.com/udo-labs/udo-engine/internal/model"
)

// Alert is the webhook payload sent when a project escalates into a
// high-risk state.
type Alert struct {
	ProjectID  string          `json:"project_id"`
	State      model.State     `json:"state"`
	Magnitude  float64         `json:"magnitude"`
	Dominant   model.Dimension `json:"dominant_dimension"`
	Verdict    model.Verdict   `json:"verdict"`
	Confidence float64         `json:"confidence"`
	Message    string          `json:"message"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Alerter watches the hub for statuses at or above a minimum state and posts
// them to a webhook, rate-limited per project by a cooldown so a flapping
// vector does not spam the channel.
type Alerter struct {
	webhookURL string
	minState   model.State
	cooldown   time.Duration
	client     *http.Client
	nowFunc    func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewAlerter creates an Alerter from config. A nil Alerter is returned (no
// error) when no webhook URL is configured; its Run is a no-op.
func NewAlerter(cfg config.NotifyConfig) (*Alerter, error) {
	if cfg.WebhookURL == "" {
		return nil, nil
	}
	min, err := model.ParseState(cfg.MinState)
	if err != nil {
		return nil, err
	}
	return &Alerter{
		webhookURL: cfg.WebhookURL,
		minState:   min,
		cooldown:   time.Duration(cfg.CooldownSecs) * time.Second,
		client:     &http.Client{Timeout: 10 * time.Second},
		nowFunc:    time.Now,
		lastSent:   make(map[string]time.Time),
	}, nil
}

// Run consumes hub updates until ctx is cancelled.
func (a *Alerter) Run(ctx context.Context, hub *Hub) {
	if a == nil {
		<-ctx.Done()
		return
	}
	sub, cancel := hub.Subscribe("")
	defer cancel()

	for {
		select {
		case st, ok := <-sub.C:
			if !ok {
				return
			}
			a.consider(ctx, st)
		case <-ctx.Done():
			return
		}
	}
}

// consider sends an alert for st if it clears the state bar and the
// per-project cooldown.
func (a *Alerter) consider(ctx context.Context, st model.Status) {
	if st.State < a.minState {
		return
	}

	now := a.nowFunc()
	a.mu.Lock()
	if last, ok := a.lastSent[st.ProjectID]; ok && now.Sub(last) < a.cooldown {
		a.mu.Unlock()
		return
	}
	a.lastSent[st.ProjectID] = now
	a.mu.Unlock()

	alert := Alert{
		ProjectID:  st.ProjectID,
		State:      st.State,
		Magnitude:  st.Magnitude,
		Dominant:   st.Dominant,
		Verdict:    st.Decision.Verdict,
		Confidence: st.Decision.Confidence,
		Message: fmt.Sprintf("Project %s escalated to %s (magnitude %.2f, dominant %s)",
			st.ProjectID, st.State, st.Magnitude, st.Dominant),
		Timestamp: now.UTC(),
	}

	if err := a.sendWebhook(ctx, alert); err != nil {
		zap.L().Error("notify: failed to send alert",
			zap.String("project_id", st.ProjectID),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("notify: alert sent",
		zap.String("project_id", st.ProjectID),
		zap.String("state", st.State.String()),
	)
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "notify: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
