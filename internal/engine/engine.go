package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/udo-labs/udo-engine/internal/model"
	"github.com/udo-labs/udo-engine/internal/source"
	"github.com/udo-labs/udo-engine/internal/store"
)

// Publisher receives every freshly derived status for fan-out to live
// subscribers. Implementations must not block; the engine calls it inline.
type Publisher interface {
	Publish(st model.Status)
}

// Engine orchestrates the uncertainty core. Reads go through the TTL cache;
// mutations (acknowledgements, overrun adjustments) are serialized per
// project, invalidate the cache before returning, and publish the re-derived
// status.
type Engine struct {
	p     Params
	st    store.Store
	src   source.Source
	cache *statusCache
	pub   Publisher
	decay DecayFunc

	nowFunc func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// offered holds the most recently generated mitigations per project, the
	// only ones an acknowledgement may reference.
	offeredMu sync.RWMutex
	offered   map[string]map[string]model.Mitigation
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPublisher wires a live-update publisher.
func WithPublisher(pub Publisher) Option {
	return func(e *Engine) { e.pub = pub }
}

// DecayFunc re-weights a vector by the time since its last update, modeling
// risk creeping back up on inactive projects. Applied at read time only;
// never persisted.
type DecayFunc func(v model.Vector, sinceUpdate time.Duration) model.Vector

// WithDecay installs an optional inactivity decay hook. Without it, elapsed
// time affects confidence (staleness penalty) but not the vector itself.
func WithDecay(fn DecayFunc) Option {
	return func(e *Engine) { e.decay = fn }
}

// New creates an Engine over the given store and (typically guarded) source.
func New(p Params, st store.Store, src source.Source, opts ...Option) *Engine {
	e := &Engine{
		p:       p,
		st:      st,
		src:     src,
		cache:   newStatusCache(p.TTLs),
		nowFunc: time.Now,
		locks:   make(map[string]*sync.Mutex),
		offered: make(map[string]map[string]model.Mitigation),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) projectLock(projectID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[projectID] = l
	}
	return l
}

// Status returns the derived view of a project, serving from cache when a
// fresh entry exists.
func (e *Engine) Status(ctx context.Context, projectID string) (*model.Status, error) {
	if st, ok := e.cache.Get(projectID); ok {
		return st, nil
	}
	return e.computeStatus(ctx, projectID, true)
}

// computeStatus derives the full status from the source of record. When
// cacheIt is set the result is stored under its state's TTL. The cache
// generation is captured before the first source read, so a derivation that
// raced a concurrent invalidation is discarded by Set rather than cached.
func (e *Engine) computeStatus(ctx context.Context, projectID string, cacheIt bool) (*model.Status, error) {
	now := e.nowFunc()
	gen := e.cache.Generation(projectID)

	v, err := e.src.Current(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if e.decay != nil {
		if lu, err := e.st.LastUpdate(ctx, projectID); err == nil {
			v = e.decay(v, now.Sub(lu))
		}
	}

	magnitude, err := v.Magnitude(e.p.Weights)
	if err != nil {
		return nil, err
	}
	state := e.p.Thresholds.Classify(magnitude)

	history, err := e.src.History(ctx, projectID, e.p.Predictor.HistoryWindow)
	if err != nil {
		// A prediction is a refinement, not a requirement; degrade to the
		// current snapshot only.
		zap.L().Warn("vector history unavailable, predicting from current snapshot",
			zap.String("project_id", projectID), zap.Error(err))
		history = nil
	}
	if len(history) == 0 {
		history = []model.Vector{v}
	}
	prediction := Predict(history, e.p.Weights, e.p.Predictor, now)

	mitigations := GenerateMitigations(state, v, e.p)
	e.rememberMitigations(projectID, mitigations)

	decision, err := e.decide(ctx, projectID, state, now)
	if err != nil {
		return nil, err
	}

	st := &model.Status{
		ProjectID:   projectID,
		Vector:      v,
		Magnitude:   magnitude,
		State:       state,
		Dominant:    v.Dominant(),
		Prediction:  prediction,
		Mitigations: mitigations,
		Decision:    decision,
		GeneratedAt: now,
	}
	if cacheIt {
		e.cache.Set(st, gen)
	}
	return st, nil
}

func (e *Engine) decide(ctx context.Context, projectID string, state model.State, now time.Time) (model.Decision, error) {
	since := now.Add(-time.Duration(e.p.Confidence.AckWindowHours) * time.Hour)
	acks, err := e.st.Acknowledgements(ctx, projectID, since)
	if err != nil {
		return model.Decision{}, err
	}

	lastUpdate, err := e.st.LastUpdate(ctx, projectID)
	if err != nil {
		if !eris.Is(err, model.ErrNotFound) {
			return model.Decision{}, err
		}
		lastUpdate = now
	}

	outcomes, err := e.st.Outcomes(ctx, projectID, e.p.Confidence.AccuracyWindow)
	if err != nil {
		return model.Decision{}, err
	}

	confidence := ConfidenceScore(state, acks, lastUpdate, now, e.p.Confidence, e.p.ConfidenceBase)
	threshold := AdaptiveThreshold(outcomes, e.p.Confidence)
	return model.Decision{
		Verdict:    Decide(confidence, threshold, e.p.Confidence),
		Confidence: confidence,
		Threshold:  threshold,
		DecidedAt:  now,
	}, nil
}

// rememberMitigations merges newly generated candidates into the offered set.
// Earlier offers stay valid: the same mitigation may be acknowledged again
// after a re-derivation replaces the candidate list.
func (e *Engine) rememberMitigations(projectID string, ms []model.Mitigation) {
	e.offeredMu.Lock()
	byID, ok := e.offered[projectID]
	if !ok {
		byID = make(map[string]model.Mitigation, len(ms))
		e.offered[projectID] = byID
	}
	for _, m := range ms {
		byID[m.ID] = m
	}
	e.offeredMu.Unlock()
}

func (e *Engine) lookupMitigation(projectID, mitigationID string) (model.Mitigation, bool) {
	e.offeredMu.RLock()
	defer e.offeredMu.RUnlock()
	m, ok := e.offered[projectID][mitigationID]
	return m, ok
}

// AckResult is the outcome of an acknowledgement: the re-derived state and
// confidence after the vector reduction.
type AckResult struct {
	Acknowledgement model.Acknowledgement `json:"acknowledgement"`
	Status          *model.Status         `json:"status"`
}

// Acknowledge applies a mitigation to the project vector. The applied impact
// must lie in [0, estimated_impact] of the referenced mitigation; anything
// else is rejected before any state changes. Acknowledging the same
// mitigation again applies its reduction again.
func (e *Engine) Acknowledge(ctx context.Context, projectID, mitigationID string, appliedImpact float64) (*AckResult, error) {
	l := e.projectLock(projectID)
	l.Lock()
	defer l.Unlock()

	mit, ok := e.lookupMitigation(projectID, mitigationID)
	if !ok {
		return nil, eris.Wrapf(model.ErrNotFound, "engine: mitigation %s not offered for project %s", mitigationID, projectID)
	}
	if appliedImpact < 0 || appliedImpact > mit.EstimatedImpact {
		return nil, eris.Wrapf(model.ErrInvalidAcknowledgement,
			"engine: applied impact %.2f outside [0, %.2f]", appliedImpact, mit.EstimatedImpact)
	}

	cur, err := e.st.GetVector(ctx, projectID)
	if err != nil {
		return nil, err
	}
	updated := cur.ApplyDelta(mit.Dimension, -appliedImpact)
	if err := e.st.PutVector(ctx, projectID, updated); err != nil {
		return nil, err
	}

	ack := model.Acknowledgement{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		MitigationID:  mitigationID,
		Dimension:     mit.Dimension,
		AppliedImpact: appliedImpact,
		CreatedAt:     e.nowFunc(),
	}
	if err := e.st.AppendAcknowledgement(ctx, ack); err != nil {
		return nil, err
	}

	e.cache.Invalidate(projectID)
	st, err := e.computeStatus(ctx, projectID, true)
	if err != nil {
		return nil, err
	}
	e.publish(st)

	zap.L().Info("mitigation acknowledged",
		zap.String("project_id", projectID),
		zap.String("mitigation_id", mitigationID),
		zap.String("dimension", string(mit.Dimension)),
		zap.Float64("applied_impact", appliedImpact),
		zap.String("state", st.State.String()))

	return &AckResult{Acknowledgement: ack, Status: st}, nil
}

// UpdateVector replaces a project's vector of record, invalidates the cache
// and publishes the re-derived status. This is the ingest path for fresh
// measurements.
func (e *Engine) UpdateVector(ctx context.Context, projectID string, v model.Vector) (*model.Status, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	l := e.projectLock(projectID)
	l.Lock()
	defer l.Unlock()

	if err := e.st.PutVector(ctx, projectID, v); err != nil {
		return nil, err
	}
	e.cache.Invalidate(projectID)
	st, err := e.computeStatus(ctx, projectID, true)
	if err != nil {
		return nil, err
	}
	e.publish(st)
	return st, nil
}

// OnTimeOverrun is the feedback hook for schedule slippage. A ratio at or
// below the trigger is a no-op; above it, timeline and technical risk grow in
// proportion to the excess, bounded per invocation by the configured max
// delta and by the [0,1] dimension range.
func (e *Engine) OnTimeOverrun(ctx context.Context, projectID string, ratio float64) (*model.Status, error) {
	if ratio <= e.p.Overrun.TriggerRatio {
		zap.L().Debug("overrun below trigger, ignoring",
			zap.String("project_id", projectID), zap.Float64("ratio", ratio))
		return e.Status(ctx, projectID)
	}

	delta := e.p.Overrun.Delta * (ratio - e.p.Overrun.TriggerRatio)
	if delta > e.p.Overrun.MaxDelta {
		delta = e.p.Overrun.MaxDelta
	}

	l := e.projectLock(projectID)
	l.Lock()
	defer l.Unlock()

	cur, err := e.st.GetVector(ctx, projectID)
	if err != nil {
		return nil, err
	}
	updated := cur.ApplyDelta(model.DimTimeline, delta).ApplyDelta(model.DimTechnical, delta/2)
	if err := e.st.PutVector(ctx, projectID, updated); err != nil {
		return nil, err
	}

	e.cache.Invalidate(projectID)
	st, err := e.computeStatus(ctx, projectID, true)
	if err != nil {
		return nil, err
	}
	e.publish(st)

	zap.L().Info("time overrun applied",
		zap.String("project_id", projectID),
		zap.Float64("ratio", ratio),
		zap.Float64("delta", delta),
		zap.String("state", st.State.String()))
	return st, nil
}

// RecordOutcome appends a decision outcome to the audit log and invalidates
// the cached status, since the adaptive threshold may have moved.
func (e *Engine) RecordOutcome(ctx context.Context, projectID string, verdict model.Verdict, correct bool) error {
	switch verdict {
	case model.VerdictGo, model.VerdictCheckpoint, model.VerdictNoGo:
	default:
		return eris.Wrapf(model.ErrValidation, "engine: unknown verdict %q", verdict)
	}
	out := model.DecisionOutcome{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Verdict:   verdict,
		Correct:   correct,
		CreatedAt: e.nowFunc(),
	}
	if err := e.st.AppendOutcome(ctx, out); err != nil {
		return err
	}
	e.cache.Invalidate(projectID)
	return nil
}

func (e *Engine) publish(st *model.Status) {
	if e.pub == nil || st == nil {
		return
	}
	e.pub.Publish(*st)
}
