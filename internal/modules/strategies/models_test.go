package strategies

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karvelas/lodestar/internal/domain"
)

func validStrategy() StrategyDefinition {
	return StrategyDefinition{
		ID:      "test",
		Name:    "Test",
		Version: 1,
		Enabled: true,
		Factors: []FactorSpec{
			{Field: domain.FieldPE, Weight: 0.5, Direction: DirectionLower, LowerBound: 5, UpperBound: 40},
			{Field: domain.FieldDividendYield, Weight: 0.5, Direction: DirectionHigher, LowerBound: 0, UpperBound: 8},
		},
	}
}

func TestStrategyDefinition_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StrategyDefinition)
		reason string
	}{
		{
			name:   "empty id",
			mutate: func(s *StrategyDefinition) { s.ID = "" },
			reason: "strategy id is required",
		},
		{
			name:   "no factors",
			mutate: func(s *StrategyDefinition) { s.Factors = nil },
			reason: "no factors",
		},
		{
			name:   "unknown factor",
			mutate: func(s *StrategyDefinition) { s.Factors[0].Field = "ebitda_margin" },
			reason: "unknown factor",
		},
		{
			name:   "duplicate factor",
			mutate: func(s *StrategyDefinition) { s.Factors[1].Field = s.Factors[0].Field },
			reason: "listed twice",
		},
		{
			name:   "zero weight",
			mutate: func(s *StrategyDefinition) { s.Factors[0].Weight = 0 },
			reason: "non-positive weight",
		},
		{
			name:   "negative weight",
			mutate: func(s *StrategyDefinition) { s.Factors[0].Weight = -1 },
			reason: "non-positive weight",
		},
		{
			name:   "NaN weight",
			mutate: func(s *StrategyDefinition) { s.Factors[0].Weight = math.NaN() },
			reason: "non-positive weight",
		},
		{
			name:   "bad direction",
			mutate: func(s *StrategyDefinition) { s.Factors[0].Direction = "sideways" },
			reason: "unknown direction",
		},
		{
			name:   "inverted bounds",
			mutate: func(s *StrategyDefinition) { s.Factors[0].LowerBound = 50 },
			reason: "bad clamp bounds",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := validStrategy()
			tc.mutate(&def)

			err := def.Validate()
			require.Error(t, err)

			var invalid *domain.InvalidStrategyDefinitionError
			require.True(t, errors.As(err, &invalid))
			assert.Contains(t, invalid.Reason, tc.reason)
		})
	}
}

func TestStrategyDefinition_ValidateAcceptsValid(t *testing.T) {
	def := validStrategy()
	assert.NoError(t, def.Validate())
}

func TestBlend_Validate(t *testing.T) {
	known := map[string]bool{"value": true, "growth": true}

	b := Blend{
		ID: "mix",
		Components: []BlendComponent{
			{StrategyID: "value", Weight: 0.6},
			{StrategyID: "growth", Weight: 0.4},
		},
	}
	assert.NoError(t, b.Validate(known))

	b.Components[1].StrategyID = "mystery"
	err := b.Validate(known)
	require.Error(t, err)

	var invalid *domain.InvalidStrategyDefinitionError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Reason, "unknown strategy")
}

func TestBlend_NormalizeRescalesToOne(t *testing.T) {
	b := Blend{
		ID: "mix",
		Components: []BlendComponent{
			{StrategyID: "value", Weight: 3},
			{StrategyID: "growth", Weight: 1},
		},
	}

	exact := b.Normalize()
	assert.False(t, exact)

	var sum float64
	for _, c := range b.Components {
		sum += c.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.75, b.Components[0].Weight, 1e-9)
	assert.InDelta(t, 0.25, b.Components[1].Weight, 1e-9)
}

func TestBlend_NormalizeExactWithinTolerance(t *testing.T) {
	b := Blend{
		ID: "mix",
		Components: []BlendComponent{
			{StrategyID: "value", Weight: 0.5},
			{StrategyID: "growth", Weight: 0.5},
		},
	}

	assert.True(t, b.Normalize())
}
