package model

import "time"

// Trend is the predicted direction of the magnitude over the horizon.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Factor names a dimension whose recent slope is significant enough to
// influence the forecast.
type Factor struct {
	Dimension Dimension `json:"dimension"`
	Slope     float64   `json:"slope"`
}

// Prediction is a forecast of the vector over a fixed horizon, derived from a
// bounded window of historical snapshots. With fewer than two samples the
// prediction degrades to a stable trend with no factors; that is a defined
// output, not an error.
type Prediction struct {
	HorizonHours   int       `json:"horizon_hours"`
	Trend          Trend     `json:"trend"`
	MagnitudeSlope float64   `json:"magnitude_slope"`
	Factors        []Factor  `json:"factors,omitempty"`
	Samples        int       `json:"samples"`
	GeneratedAt    time.Time `json:"generated_at"`
}
