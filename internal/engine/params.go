// Package engine implements the uncertainty core: classification of the risk
// vector, trajectory prediction, mitigation generation and acknowledgement,
// the confidence/decision gate, and the state-keyed TTL cache in front of it
// all. Reads are pure derivations over a vector snapshot; writes are
// serialized per project.
package engine

import (
	"time"

	"github.com/udo-labs/udo-engine/internal/config"
	"github.com/udo-labs/udo-engine/internal/model"
)

// Params is the compiled, validated form of the engine configuration. All
// loosely-typed config tables are resolved into model types up front so the
// hot paths never re-parse state names.
type Params struct {
	Weights    model.Weights
	Thresholds model.Thresholds
	TTLs       map[model.State]time.Duration

	Predictor config.PredictorConfig

	// MitigationCutoffs is the per-state "needs mitigation" value; dimensions
	// above the cutoff get a candidate action.
	MitigationCutoffs map[model.State]float64
	MaxSingleImpact   float64
	MinImpact         float64

	ConfidenceBase map[model.State]float64
	Confidence     config.ConfidenceConfig

	Overrun config.OverrunConfig
}

// ParamsFromConfig compiles and validates an EngineConfig.
func ParamsFromConfig(cfg config.EngineConfig) (Params, error) {
	var p Params
	var err error

	if p.Weights, err = cfg.ModelWeights(); err != nil {
		return Params{}, err
	}
	if p.Thresholds, err = cfg.ModelThresholds(); err != nil {
		return Params{}, err
	}
	if p.TTLs, err = cfg.TTLs(); err != nil {
		return Params{}, err
	}
	if p.MitigationCutoffs, err = config.StateTable(cfg.Mitigation.DimensionThresholds, "mitigation cutoffs"); err != nil {
		return Params{}, err
	}
	if p.ConfidenceBase, err = config.StateTable(cfg.Confidence.Base, "confidence base"); err != nil {
		return Params{}, err
	}

	p.Predictor = cfg.Predictor
	p.MaxSingleImpact = cfg.Mitigation.MaxSingleImpact
	p.MinImpact = cfg.Mitigation.MinImpact
	p.Confidence = cfg.Confidence
	p.Overrun = cfg.Overrun
	return p, nil
}
