package engine

import (
	"sort"
	"time"

	"github.com/udo-labs/udo-engine/internal/config"
	"github.com/udo-labs/udo-engine/internal/model"
)

// ConfidenceScore computes how much the engine trusts its own classification:
// the per-state base, plus a geometrically decaying bonus for recent
// acknowledgements, minus a staleness penalty when the vector has not been
// updated within the freshness horizon. The score is clamped to [0,1].
func ConfidenceScore(state model.State, acks []model.Acknowledgement, lastUpdate, now time.Time, cc config.ConfidenceConfig, base map[model.State]float64) float64 {
	score := base[state]

	// Most recent acknowledgement earns the full bonus, each older one half
	// (by default) of the previous. The series is bounded regardless of count.
	recent := make([]model.Acknowledgement, 0, len(acks))
	window := time.Duration(cc.AckWindowHours) * time.Hour
	for _, a := range acks {
		if now.Sub(a.CreatedAt) <= window {
			recent = append(recent, a)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	bonus := cc.AckBonus
	for range recent {
		score += bonus
		bonus *= cc.AckDecay
	}

	if !lastUpdate.IsZero() {
		stale := time.Duration(cc.StaleAfterHours) * time.Hour
		if age := now.Sub(lastUpdate); stale > 0 && age > stale {
			// Penalty ramps linearly over a second staleness interval, then caps.
			frac := float64(age-stale) / float64(stale)
			if frac > 1 {
				frac = 1
			}
			score -= cc.StalePenalty * frac
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// AdaptiveThreshold derives the decision threshold from the rolling accuracy
// of past verdicts. With no outcomes it returns the default; otherwise the
// threshold moves against the accuracy gap (low accuracy raises the bar,
// high accuracy lowers it), always bounded by [min, max]. Outcomes are
// most-recent-last; only the configured window is considered.
func AdaptiveThreshold(outcomes []model.DecisionOutcome, cc config.ConfidenceConfig) float64 {
	if len(outcomes) == 0 {
		return cc.DefaultThreshold
	}
	if cc.AccuracyWindow > 0 && len(outcomes) > cc.AccuracyWindow {
		outcomes = outcomes[len(outcomes)-cc.AccuracyWindow:]
	}
	correct := 0
	for _, o := range outcomes {
		if o.Correct {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(outcomes))

	// One configured step per 10 points of accuracy gap.
	thr := cc.DefaultThreshold + (cc.TargetAccuracy-accuracy)*cc.ThresholdStep*10

	if thr < cc.MinThreshold {
		return cc.MinThreshold
	}
	if thr > cc.MaxThreshold {
		return cc.MaxThreshold
	}
	return thr
}

// Decide applies the gate: confidence at or above the threshold is a go,
// within the checkpoint band below it a checkpoint, anything lower a no-go.
func Decide(confidence, threshold float64, cc config.ConfidenceConfig) model.Verdict {
	switch {
	case confidence >= threshold:
		return model.VerdictGo
	case confidence >= threshold-cc.CheckpointBand:
		return model.VerdictCheckpoint
	}
	return model.VerdictNoGo
}
