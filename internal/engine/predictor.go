package engine

import (
	"math"
	"sort"
	"time"

	"github.com/udo-labs/udo-engine/internal/config"
	"github.com/udo-labs/udo-engine/internal/model"
)

// Predict fits a least-squares trend over the history window and names the
// dimensions driving it. History is most-recent-last; with fewer than two
// samples the prediction degrades to a stable trend with no factors rather
// than erroring.
func Predict(history []model.Vector, w model.Weights, cfg config.PredictorConfig, now time.Time) model.Prediction {
	pred := model.Prediction{
		HorizonHours: cfg.HorizonHours,
		Trend:        model.TrendStable,
		Samples:      len(history),
		GeneratedAt:  now,
	}
	if len(history) < 2 {
		return pred
	}

	mags := make([]float64, 0, len(history))
	for _, v := range history {
		m, err := v.Magnitude(w)
		if err != nil {
			continue
		}
		mags = append(mags, m)
	}
	if len(mags) < 2 {
		pred.Samples = len(mags)
		return pred
	}
	pred.Samples = len(mags)
	pred.MagnitudeSlope = linearSlope(mags)

	switch {
	case pred.MagnitudeSlope > cfg.TrendEpsilon:
		pred.Trend = model.TrendIncreasing
	case pred.MagnitudeSlope < -cfg.TrendEpsilon:
		pred.Trend = model.TrendDecreasing
	}

	for _, d := range model.Dimensions {
		vals := make([]float64, len(history))
		for i, v := range history {
			vals[i] = v.Get(d)
		}
		slope := linearSlope(vals)
		if math.Abs(slope) >= cfg.FactorThreshold {
			pred.Factors = append(pred.Factors, model.Factor{Dimension: d, Slope: slope})
		}
	}
	sort.SliceStable(pred.Factors, func(i, j int) bool {
		ai, aj := math.Abs(pred.Factors[i].Slope), math.Abs(pred.Factors[j].Slope)
		if ai != aj {
			return ai > aj
		}
		return pred.Factors[i].Dimension < pred.Factors[j].Dimension
	})

	return pred
}

// linearSlope returns the least-squares slope of vals against their indices,
// in value units per sample. Fewer than two values give a zero slope.
func linearSlope(vals []float64) float64 {
	n := float64(len(vals))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range vals {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
