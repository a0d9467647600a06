package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/udo-labs/udo-engine/internal/model"
)

// AnalysisContext describes a project in business terms for a what-if
// analysis. The mapping to a vector is deterministic: identical contexts
// always synthesize identical vectors.
type AnalysisContext struct {
	// Phase is one of ideation, prototype, mvp, growth, mature.
	Phase string `json:"phase" yaml:"phase"`

	TeamSize     int `json:"team_size" yaml:"team_size"`
	TimelineDays int `json:"timeline_days" yaml:"timeline_days"`

	// ValidationScore in [0,1] reflects market evidence gathered so far.
	ValidationScore float64 `json:"validation_score" yaml:"validation_score"`

	// CodeAvailable indicates a working codebase exists.
	CodeAvailable bool `json:"code_available" yaml:"code_available"`
}

// phaseTechnicalRisk is the baseline technical risk per lifecycle phase.
var phaseTechnicalRisk = map[string]float64{
	"ideation":  0.80,
	"prototype": 0.60,
	"mvp":       0.45,
	"growth":    0.30,
	"mature":    0.15,
}

// SynthesizeVector maps an analysis context onto the five dimensions.
func SynthesizeVector(c AnalysisContext) (model.Vector, error) {
	base, ok := phaseTechnicalRisk[strings.ToLower(strings.TrimSpace(c.Phase))]
	if !ok {
		return model.Vector{}, eris.Wrapf(model.ErrValidation, "engine: unknown phase %q", c.Phase)
	}
	if c.TeamSize < 0 || c.TimelineDays < 0 {
		return model.Vector{}, eris.Wrap(model.ErrValidation, "engine: team size and timeline must be non-negative")
	}
	if c.ValidationScore < 0 || c.ValidationScore > 1 {
		return model.Vector{}, eris.Wrapf(model.ErrValidation, "engine: validation score %.2f outside [0,1]", c.ValidationScore)
	}

	technical := base
	if c.CodeAvailable {
		technical -= 0.20
	}

	var resource float64
	switch {
	case c.TeamSize <= 1:
		resource = 0.80
	case c.TeamSize <= 3:
		resource = 0.60
	case c.TeamSize <= 6:
		resource = 0.40
	case c.TeamSize <= 10:
		resource = 0.25
	default:
		resource = 0.15
	}

	var timeline float64
	switch {
	case c.TimelineDays < 30:
		timeline = 0.80
	case c.TimelineDays < 90:
		timeline = 0.55
	case c.TimelineDays < 180:
		timeline = 0.35
	default:
		timeline = 0.20
	}

	market := 1 - c.ValidationScore

	v := model.Vector{}
	v = v.With(model.DimTechnical, technical)
	v = v.With(model.DimResource, resource)
	v = v.With(model.DimTimeline, timeline)
	v = v.With(model.DimMarket, market)
	v = v.With(model.DimQuality, round2((v.Technical+v.Market)/2*0.8))
	return v, nil
}

// Analyze runs a what-if derivation over a synthesized vector without
// touching the project's vector of record or the cache. The per-project audit
// logs still inform confidence so the analysis reflects the project's track
// record; for an unknown project they are simply empty.
func (e *Engine) Analyze(ctx context.Context, projectID string, ac AnalysisContext) (*model.Status, error) {
	v, err := SynthesizeVector(ac)
	if err != nil {
		return nil, err
	}
	now := e.nowFunc()

	magnitude, err := v.Magnitude(e.p.Weights)
	if err != nil {
		return nil, err
	}
	state := e.p.Thresholds.Classify(magnitude)

	mitigations := GenerateMitigations(state, v, e.p)
	e.rememberMitigations(projectID, mitigations)

	decision, err := e.analysisDecision(ctx, projectID, state, now)
	if err != nil {
		return nil, err
	}

	return &model.Status{
		ProjectID:   projectID,
		Vector:      v,
		Magnitude:   magnitude,
		State:       state,
		Dominant:    v.Dominant(),
		Prediction:  Predict([]model.Vector{v}, e.p.Weights, e.p.Predictor, now),
		Mitigations: mitigations,
		Decision:    decision,
		GeneratedAt: now,
	}, nil
}

// analysisDecision is decide with unknown projects tolerated: a project with
// no stored history gets the cold-start decision instead of an error.
func (e *Engine) analysisDecision(ctx context.Context, projectID string, state model.State, now time.Time) (model.Decision, error) {
	d, err := e.decide(ctx, projectID, state, now)
	if err == nil || !eris.Is(err, model.ErrNotFound) {
		return d, err
	}
	confidence := ConfidenceScore(state, nil, now, now, e.p.Confidence, e.p.ConfidenceBase)
	threshold := AdaptiveThreshold(nil, e.p.Confidence)
	return model.Decision{
		Verdict:    Decide(confidence, threshold, e.p.Confidence),
		Confidence: confidence,
		Threshold:  threshold,
		DecidedAt:  now,
	}, nil
}
