package model

import "time"

// Verdict is the gate's go/no-go outcome.
type Verdict string

const (
	VerdictGo         Verdict = "go"
	VerdictCheckpoint Verdict = "checkpoint"
	VerdictNoGo       Verdict = "no_go"
)

// Decision is the gate's output for a project at a point in time: the verdict
// together with the confidence score and the adaptive threshold that produced it.
type Decision struct {
	Verdict    Verdict   `json:"verdict"`
	Confidence float64   `json:"confidence"`
	Threshold  float64   `json:"threshold"`
	DecidedAt  time.Time `json:"decided_at"`
}

// DecisionOutcome records whether a past verdict turned out to be correct.
// The rolling accuracy over these records drives the adaptive threshold.
type DecisionOutcome struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Verdict   Verdict   `json:"verdict"`
	Correct   bool      `json:"correct"`
	CreatedAt time.Time `json:"created_at"`
}

// Status is the full derived view of a project: the vector of record plus
// every read-side derivation. State, prediction, mitigations and confidence
// are recomputed from the vector on read; the vector is the single source of
// truth.
type Status struct {
	ProjectID   string       `json:"project_id"`
	Vector      Vector       `json:"vector"`
	Magnitude   float64      `json:"magnitude"`
	State       State        `json:"state"`
	Dominant    Dimension    `json:"dominant_dimension"`
	Prediction  Prediction   `json:"prediction"`
	Mitigations []Mitigation `json:"mitigations"`
	Decision    Decision     `json:"decision"`
	GeneratedAt time.Time    `json:"generated_at"`
}
