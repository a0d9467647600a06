// Package model defines the core types of the uncertainty engine: the
// five-dimensional risk vector, its derived state classification, predictions,
// mitigations and the acknowledgement/decision audit records.
package model

import (
	"math"

	"github.com/rotisserie/eris"
)

// Dimension names one axis of the uncertainty vector.
type Dimension string

const (
	DimMarket    Dimension = "market"
	DimQuality   Dimension = "quality"
	DimResource  Dimension = "resource"
	DimTechnical Dimension = "technical"
	DimTimeline  Dimension = "timeline"
)

// Dimensions lists all five dimensions in alphabetical order. Iteration over
// this slice is the canonical deterministic order for ties and output.
var Dimensions = []Dimension{DimMarket, DimQuality, DimResource, DimTechnical, DimTimeline}

// Valid reports whether d is one of the five recognized dimensions.
func (d Dimension) Valid() bool {
	switch d {
	case DimMarket, DimQuality, DimResource, DimTechnical, DimTimeline:
		return true
	}
	return false
}

// Vector is the five-dimensional risk representation. Each dimension is a
// bounded real in [0,1]; the vector itself is a value type and all operations
// on it are pure.
type Vector struct {
	Technical float64 `json:"technical"`
	Market    float64 `json:"market"`
	Resource  float64 `json:"resource"`
	Timeline  float64 `json:"timeline"`
	Quality   float64 `json:"quality"`
}

// Get returns the value of the named dimension. Unknown dimensions read as 0.
func (v Vector) Get(d Dimension) float64 {
	switch d {
	case DimTechnical:
		return v.Technical
	case DimMarket:
		return v.Market
	case DimResource:
		return v.Resource
	case DimTimeline:
		return v.Timeline
	case DimQuality:
		return v.Quality
	}
	return 0
}

// With returns a copy of v with the named dimension set to val, clamped to [0,1].
func (v Vector) With(d Dimension, val float64) Vector {
	val = clamp01(val)
	switch d {
	case DimTechnical:
		v.Technical = val
	case DimMarket:
		v.Market = val
	case DimResource:
		v.Resource = val
	case DimTimeline:
		v.Timeline = val
	case DimQuality:
		v.Quality = val
	}
	return v
}

// Validate checks that every dimension is a finite number in [0,1]. It wraps
// ErrValidation so callers can test with errors.Is.
func (v Vector) Validate() error {
	for _, d := range Dimensions {
		val := v.Get(d)
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return eris.Wrapf(ErrValidation, "dimension %s is not finite", d)
		}
		if val < 0 || val > 1 {
			return eris.Wrapf(ErrValidation, "dimension %s = %.4f outside [0,1]", d, val)
		}
	}
	return nil
}

// ApplyDelta returns a copy of v with delta added to the named dimension,
// clamping the result to [0,1]. The receiver is never modified.
func (v Vector) ApplyDelta(d Dimension, delta float64) Vector {
	return v.With(d, v.Get(d)+delta)
}

// Dominant returns the dimension with the largest value. Exact ties go to the
// lowest-alphabetical name, which is the order of Dimensions.
func (v Vector) Dominant() Dimension {
	dom := Dimensions[0]
	best := v.Get(dom)
	for _, d := range Dimensions[1:] {
		if v.Get(d) > best {
			dom, best = d, v.Get(d)
		}
	}
	return dom
}

// Weights assigns a relative weight to each dimension for the magnitude
// calculation. Weights need not sum to one; Magnitude normalizes by the total.
type Weights map[Dimension]float64

// DefaultWeights reflect the historical predictive value of each dimension:
// technical and timeline slippage have been the strongest leading indicators.
func DefaultWeights() Weights {
	return Weights{
		DimTechnical: 0.30,
		DimTimeline:  0.25,
		DimResource:  0.20,
		DimQuality:   0.15,
		DimMarket:    0.10,
	}
}

// Validate checks that every dimension carries a positive weight and that no
// unknown dimensions are present.
func (w Weights) Validate() error {
	for _, d := range Dimensions {
		wt, ok := w[d]
		if !ok {
			return eris.Wrapf(ErrValidation, "weights: missing dimension %s", d)
		}
		if math.IsNaN(wt) || wt <= 0 {
			return eris.Wrapf(ErrValidation, "weights: dimension %s has non-positive weight %.4f", d, wt)
		}
	}
	if len(w) != len(Dimensions) {
		return eris.Wrap(ErrValidation, "weights: unknown dimension present")
	}
	return nil
}

// Magnitude computes the scalar risk summary of v as a weighted Euclidean
// norm normalized to [0,1]:
//
//	sqrt( sum_i w_i * v_i^2 / sum_i w_i )
//
// The norm is monotonic non-decreasing in every dimension and equals 1 only
// when every dimension is 1. Returns an error wrapping ErrValidation for a
// malformed vector.
func (v Vector) Magnitude(w Weights) (float64, error) {
	if err := v.Validate(); err != nil {
		return 0, err
	}
	var sum, total float64
	for _, d := range Dimensions {
		wt := w[d]
		val := v.Get(d)
		sum += wt * val * val
		total += wt
	}
	if total == 0 {
		return 0, eris.Wrap(ErrValidation, "weights sum to zero")
	}
	return clamp01(math.Sqrt(sum / total)), nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
