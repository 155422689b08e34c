// Package scoring implements the strategy scoring pipeline: factor
// normalization, per-strategy evaluation, blend composition, and
// deterministic ranking. Everything in this package is pure computation
// over supplied snapshots; persistence lives in the repositories.
package scoring

import (
	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/strategies"
)

// neutralScore is assigned to missing factors. It sits exactly mid-range
// so an absent metric neither rewards nor penalizes; the Missing flag
// lets consumers discount low-confidence scores.
const neutralScore = 50.0

// FactorScore is the normalized result for one factor of one snapshot.
type FactorScore struct {
	Field   domain.MetricField `json:"field"`
	Raw     *float64           `json:"raw,omitempty"`
	Score   float64            `json:"score"`
	Missing bool               `json:"missing"`
}

// NormalizeFactor maps one raw metric field to a score in [0, 100] by
// linear min-max scaling within the spec's clamp bounds. Values outside
// the bounds are clamped, never extrapolated. A missing field yields the
// neutral score with the Missing flag set. Pure function over its inputs.
func NormalizeFactor(snapshot *domain.MetricSnapshot, spec strategies.FactorSpec) FactorScore {
	raw := snapshot.Field(spec.Field)
	if raw == nil {
		return FactorScore{Field: spec.Field, Score: neutralScore, Missing: true}
	}

	v := *raw
	if v < spec.LowerBound {
		v = spec.LowerBound
	}
	if v > spec.UpperBound {
		v = spec.UpperBound
	}

	score := (v - spec.LowerBound) / (spec.UpperBound - spec.LowerBound) * 100
	if spec.Direction == strategies.DirectionLower {
		score = 100 - score
	}

	return FactorScore{Field: spec.Field, Raw: raw, Score: score}
}
