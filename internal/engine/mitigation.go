package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/udo-labs/udo-engine/internal/model"
)

// mitigationActions names the standing remediation per dimension. The action
// text is advisory; the dimension and impact are what the engine acts on.
var mitigationActions = map[model.Dimension]string{
	model.DimTechnical: "Spike the riskiest technical unknown and timebox a proof of concept",
	model.DimMarket:    "Run a customer validation round before committing further scope",
	model.DimResource:  "Rebalance staffing or secure backfill for the constrained roles",
	model.DimTimeline:  "Re-baseline the schedule and cut scope to restore buffer",
	model.DimQuality:   "Add regression coverage and gate merges on the quality bar",
}

// GenerateMitigations produces the candidate list for a classified vector.
// Each dimension above the state's cutoff yields one candidate; estimated
// impact grows with the excess over the cutoff, bounded by the configured
// min/max, and priority follows the raw dimension value. Both the candidate
// ids and the output order are deterministic: the same classification round
// always offers the same mitigations.
func GenerateMitigations(state model.State, v model.Vector, p Params) []model.Mitigation {
	cutoff := p.MitigationCutoffs[state]
	var out []model.Mitigation
	for _, d := range model.Dimensions {
		val := v.Get(d)
		if val <= cutoff {
			continue
		}
		impact := p.MinImpact + 0.5*(val-cutoff)
		if impact > p.MaxSingleImpact {
			impact = p.MaxSingleImpact
		}
		out = append(out, model.Mitigation{
			ID:              mitigationID(state, d, val),
			Action:          fmt.Sprintf("%s (%s at %.2f)", mitigationActions[d], d, val),
			Dimension:       d,
			EstimatedImpact: round2(impact),
			Priority:        priorityFor(val),
		})
	}
	model.SortMitigations(out)
	return out
}

// mitigationID derives a stable id from the classification inputs, so a
// re-derivation over an unchanged vector offers the same ids.
func mitigationID(state model.State, d model.Dimension, val float64) string {
	seed := fmt.Sprintf("%s|%s|%.4f", state, d, val)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

func priorityFor(val float64) model.Priority {
	switch {
	case val >= 0.9:
		return model.PriorityCritical
	case val >= 0.7:
		return model.PriorityHigh
	case val >= 0.5:
		return model.PriorityMedium
	}
	return model.PriorityLow
}

func round2(x float64) float64 {
	return float64(int(x*100+0.5)) / 100
}
