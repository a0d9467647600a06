package model

import (
	"sort"
	"time"
)

// Priority orders mitigation urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// priorityRank maps priorities to numeric ranks for comparison. Lower rank
// means higher urgency.
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Rank returns the numeric rank of p; unknown priorities sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Mitigation is a candidate remediation targeting one dimension. Mitigations
// are generated fresh per classification and have no persistence of their own;
// only acknowledgements of them are recorded.
type Mitigation struct {
	ID              string    `json:"id"`
	Action          string    `json:"action"`
	Dimension       Dimension `json:"target_dimension"`
	EstimatedImpact float64   `json:"estimated_impact"`
	Priority        Priority  `json:"priority"`
}

// SortMitigations orders candidates by estimated impact descending, then
// priority (critical first), then dimension name ascending. The ordering is
// fully deterministic for a given candidate set.
func SortMitigations(ms []Mitigation) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].EstimatedImpact != ms[j].EstimatedImpact {
			return ms[i].EstimatedImpact > ms[j].EstimatedImpact
		}
		if ms[i].Priority.Rank() != ms[j].Priority.Rank() {
			return ms[i].Priority.Rank() < ms[j].Priority.Rank()
		}
		return ms[i].Dimension < ms[j].Dimension
	})
}

// Acknowledgement records that a user applied a mitigation. It is immutable
// once created and is the sole mutation path that lowers a vector. The same
// mitigation may be acknowledged more than once; each acknowledgement is an
// event and applies its delta independently.
type Acknowledgement struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	MitigationID  string    `json:"mitigation_id"`
	Dimension     Dimension `json:"dimension"`
	AppliedImpact float64   `json:"applied_impact"`
	CreatedAt     time.Time `json:"created_at"`
}
