package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdsValidate(t *testing.T) {
	t.Parallel()

	t.Run("defaults valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, DefaultThresholds().Validate())
	})

	t.Run("missing state rejected", func(t *testing.T) {
		t.Parallel()
		th := DefaultThresholds()
		delete(th, StateQuantum)
		assert.ErrorIs(t, th.Validate(), ErrValidation)
	})

	t.Run("non-monotonic bounds rejected", func(t *testing.T) {
		t.Parallel()
		th := DefaultThresholds()
		th[StateQuantum] = 0.2 // below probabilistic bound
		assert.ErrorIs(t, th.Validate(), ErrValidation)
	})

	t.Run("bound above one rejected", func(t *testing.T) {
		t.Parallel()
		th := DefaultThresholds()
		th[StateChaotic] = 1.5
		assert.ErrorIs(t, th.Validate(), ErrValidation)
	})

	t.Run("explicit void bound rejected", func(t *testing.T) {
		t.Parallel()
		th := DefaultThresholds()
		th[StateVoid] = 1.0
		assert.ErrorIs(t, th.Validate(), ErrValidation)
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()
	th := DefaultThresholds()

	tests := []struct {
		name      string
		magnitude float64
		want      State
	}{
		{"zero", 0.0, StateDeterministic},
		{"low", 0.05, StateDeterministic},
		{"boundary belongs to lower state", 0.10, StateDeterministic},
		{"just above boundary", 0.1001, StateProbabilistic},
		{"mid band", 0.45, StateQuantum},
		{"quantum boundary", 0.60, StateQuantum},
		{"chaotic", 0.75, StateChaotic},
		{"chaotic boundary", 0.90, StateChaotic},
		{"void", 0.95, StateVoid},
		{"unit magnitude", 1.0, StateVoid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, th.Classify(tt.magnitude))
		})
	}

	t.Run("total and ordered over a sweep", func(t *testing.T) {
		t.Parallel()
		prev := StateDeterministic
		for i := 0; i <= 1000; i++ {
			m := float64(i) / 1000
			s := th.Classify(m)
			assert.GreaterOrEqual(t, s, prev, "state must not drop as magnitude rises (m=%.3f)", m)
			prev = s
		}
	})
}

func TestStateJSON(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(StateChaotic)
		require.NoError(t, err)
		assert.Equal(t, `"chaotic"`, string(data))

		var s State
		require.NoError(t, json.Unmarshal(data, &s))
		assert.Equal(t, StateChaotic, s)
	})

	t.Run("unknown name rejected", func(t *testing.T) {
		t.Parallel()
		var s State
		assert.Error(t, json.Unmarshal([]byte(`"entropy"`), &s))
	})
}

func TestParseState(t *testing.T) {
	t.Parallel()
	for _, st := range States {
		parsed, err := ParseState(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
	}
	_, err := ParseState("unknown")
	assert.ErrorIs(t, err, ErrValidation)
}
