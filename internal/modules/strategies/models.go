// Package strategies loads and validates strategy definitions and blend
// weight sets from config.db. Definitions are validated once at load time
// into closed, typed structures; scoring never sees an invalid definition.
package strategies

import (
	"fmt"
	"math"
	"time"

	"github.com/karvelas/lodestar/internal/domain"
)

// Direction states which end of a factor's range scores high.
type Direction string

const (
	// DirectionLower means lower raw values score higher (P/E, debt/equity).
	DirectionLower Direction = "lower"
	// DirectionHigher means higher raw values score higher (yield, growth).
	DirectionHigher Direction = "higher"
)

// Valid reports whether the direction is one of the two known values
func (d Direction) Valid() bool {
	return d == DirectionLower || d == DirectionHigher
}

// FactorSpec binds one metric field into a strategy: its weight, scoring
// direction, and the clamp bounds for min-max normalization. Values outside
// the bounds are clamped, never extrapolated.
type FactorSpec struct {
	Field      domain.MetricField `json:"field"`
	Weight     float64            `json:"weight"`
	Direction  Direction          `json:"direction"`
	LowerBound float64            `json:"lower_bound"`
	UpperBound float64            `json:"upper_bound"`
}

// StrategyDefinition is a named, versioned set of factor weights.
// Weights need not sum to 1; the evaluator normalizes internally.
type StrategyDefinition struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Version     int          `json:"version"`
	Description string       `json:"description,omitempty"`
	Enabled     bool         `json:"enabled"`
	Factors     []FactorSpec `json:"factors"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Validate checks the definition into a closed, type-safe structure.
// Any violation is an InvalidStrategyDefinitionError; callers fail fast
// at configuration load, never at scoring time.
func (s *StrategyDefinition) Validate() error {
	if s.ID == "" {
		return &domain.InvalidStrategyDefinitionError{StrategyID: s.ID, Reason: "strategy id is required"}
	}
	if len(s.Factors) == 0 {
		return &domain.InvalidStrategyDefinitionError{StrategyID: s.ID, Reason: "strategy has no factors"}
	}

	seen := make(map[domain.MetricField]bool, len(s.Factors))
	for _, f := range s.Factors {
		if !domain.KnownMetricField(f.Field) {
			return &domain.InvalidStrategyDefinitionError{
				StrategyID: s.ID,
				Reason:     fmt.Sprintf("unknown factor %q", f.Field),
			}
		}
		if seen[f.Field] {
			return &domain.InvalidStrategyDefinitionError{
				StrategyID: s.ID,
				Reason:     fmt.Sprintf("factor %q listed twice", f.Field),
			}
		}
		seen[f.Field] = true

		if f.Weight <= 0 || math.IsNaN(f.Weight) || math.IsInf(f.Weight, 0) {
			return &domain.InvalidStrategyDefinitionError{
				StrategyID: s.ID,
				Reason:     fmt.Sprintf("factor %q has non-positive weight %v", f.Field, f.Weight),
			}
		}
		if !f.Direction.Valid() {
			return &domain.InvalidStrategyDefinitionError{
				StrategyID: s.ID,
				Reason:     fmt.Sprintf("factor %q has unknown direction %q", f.Field, f.Direction),
			}
		}
		if f.LowerBound >= f.UpperBound {
			return &domain.InvalidStrategyDefinitionError{
				StrategyID: s.ID,
				Reason: fmt.Sprintf("factor %q has bad clamp bounds [%v, %v]",
					f.Field, f.LowerBound, f.UpperBound),
			}
		}
	}

	return nil
}

// BlendComponent is one (strategy, weight) pair of a blend.
type BlendComponent struct {
	StrategyID string  `json:"strategy_id"`
	Weight     float64 `json:"weight"`
}

// Blend linearly combines multiple strategy scores into one ranking
// score. Component weights are stored normalized: they sum to exactly 1
// after Normalize.
type Blend struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Enabled     bool             `json:"enabled"`
	Components  []BlendComponent `json:"components"`
	CreatedAt   time.Time        `json:"created_at"`
}

// blendWeightTolerance is the allowed deviation of a blend's weight sum
// from 1.0 before Normalize rescales it silently; sums further off are
// still normalized but logged by the service as a configuration smell.
const blendWeightTolerance = 1e-6

// Validate checks component references and weights. known is the set of
// loaded strategy ids; a blend referencing an unknown strategy is a
// load-time failure.
func (b *Blend) Validate(known map[string]bool) error {
	if b.ID == "" {
		return &domain.InvalidStrategyDefinitionError{StrategyID: b.ID, Reason: "blend id is required"}
	}
	if len(b.Components) == 0 {
		return &domain.InvalidStrategyDefinitionError{StrategyID: b.ID, Reason: "blend has no components"}
	}

	seen := make(map[string]bool, len(b.Components))
	for _, c := range b.Components {
		if !known[c.StrategyID] {
			return &domain.InvalidStrategyDefinitionError{
				StrategyID: b.ID,
				Reason:     fmt.Sprintf("blend references unknown strategy %q", c.StrategyID),
			}
		}
		if seen[c.StrategyID] {
			return &domain.InvalidStrategyDefinitionError{
				StrategyID: b.ID,
				Reason:     fmt.Sprintf("strategy %q listed twice in blend", c.StrategyID),
			}
		}
		seen[c.StrategyID] = true

		if c.Weight <= 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return &domain.InvalidStrategyDefinitionError{
				StrategyID: b.ID,
				Reason:     fmt.Sprintf("component %q has non-positive weight %v", c.StrategyID, c.Weight),
			}
		}
	}

	return nil
}

// Normalize rescales component weights to sum to exactly 1. Returns true
// when the stored weights were already within tolerance of 1.
func (b *Blend) Normalize() bool {
	var sum float64
	for _, c := range b.Components {
		sum += c.Weight
	}
	if sum == 0 {
		return false
	}

	exact := math.Abs(sum-1) <= blendWeightTolerance
	for i := range b.Components {
		b.Components[i].Weight /= sum
	}
	return exact
}
