package model

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// State is the discrete risk classification derived from magnitude. States are
// ordered: a higher value means a riskier project.
type State int

const (
	StateDeterministic State = iota
	StateProbabilistic
	StateQuantum
	StateChaotic
	StateVoid
)

// States lists all states in risk order.
var States = []State{StateDeterministic, StateProbabilistic, StateQuantum, StateChaotic, StateVoid}

func (s State) String() string {
	switch s {
	case StateDeterministic:
		return "deterministic"
	case StateProbabilistic:
		return "probabilistic"
	case StateQuantum:
		return "quantum"
	case StateChaotic:
		return "chaotic"
	case StateVoid:
		return "void"
	default:
		return "unknown"
	}
}

// ParseState converts a state name back to a State.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, eris.Wrapf(ErrValidation, "unknown state %q", s)
}

// MarshalJSON serializes the state as its string name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a state from its string name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return eris.Wrap(err, "state: unmarshal")
	}
	parsed, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Thresholds maps each state below Void to the upper magnitude bound of its
// band. Void is the catch-all above the last bound. Bounds are inclusive on
// the lower-risk side: a magnitude exactly on a bound classifies into the
// smaller state.
type Thresholds map[State]float64

// DefaultThresholds partition [0,1] into <=10% / <=30% / <=60% / <=90% / rest.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StateDeterministic: 0.10,
		StateProbabilistic: 0.30,
		StateQuantum:       0.60,
		StateChaotic:       0.90,
	}
}

// Validate checks the threshold table is complete, in (0,1], and strictly
// increasing with state order, so every magnitude in [0,1] maps to exactly
// one state with no gaps.
func (t Thresholds) Validate() error {
	var prev float64
	for _, s := range States[:len(States)-1] {
		bound, ok := t[s]
		if !ok {
			return eris.Wrapf(ErrValidation, "thresholds: missing bound for state %s", s)
		}
		if bound <= prev || bound > 1 {
			return eris.Wrapf(ErrValidation, "thresholds: bound %.4f for state %s breaks monotonic partition", bound, s)
		}
		prev = bound
	}
	if _, ok := t[StateVoid]; ok {
		return eris.Wrap(ErrValidation, "thresholds: void is the catch-all and takes no bound")
	}
	return nil
}

// Classify maps a magnitude to its state. Total over [0,1]: anything above
// the chaotic bound, including out-of-range garbage, lands in Void.
func (t Thresholds) Classify(magnitude float64) State {
	for _, s := range States[:len(States)-1] {
		if magnitude <= t[s] {
			return s
		}
	}
	return StateVoid
}

// Bounds returns the threshold bounds sorted by state order, for display.
func (t Thresholds) Bounds() []float64 {
	bounds := make([]float64, 0, len(t))
	for _, s := range States[:len(States)-1] {
		bounds = append(bounds, t[s])
	}
	sort.Float64s(bounds)
	return bounds
}
