package scoring

import (
	"time"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/strategies"
)

// ComponentScore is one factor's contribution to a ScoreResult. Weight
// is the effective (renormalized) weight actually applied; missing
// factors carry weight 0 and the neutral normalized score.
type ComponentScore struct {
	Raw     *float64 `json:"raw,omitempty"`
	Score   float64  `json:"score"`
	Weight  float64  `json:"weight"`
	Missing bool     `json:"missing"`
}

// ScoreResult is the outcome of evaluating one strategy against one
// snapshot. Deterministic: identical inputs always produce the identical
// result.
type ScoreResult struct {
	Symbol     string                                `json:"symbol"`
	StrategyID string                                `json:"strategy_id"`
	AsOf       time.Time                             `json:"as_of"`
	Score      float64                               `json:"score"`
	Components map[domain.MetricField]ComponentScore `json:"components"`
}

// Evaluate computes the weighted average of normalized factor scores for
// one strategy. Weights are normalized internally so they need not sum
// to 1 in the definition. Factors missing from the snapshot are excluded
// and the remaining weights renormalized proportionally; when the
// missing fraction exceeds maxMissingFraction the asset is excluded from
// ranking via InsufficientDataError instead of receiving a misleadingly
// neutral score.
func Evaluate(def strategies.StrategyDefinition, snapshot *domain.MetricSnapshot, maxMissingFraction float64) (*ScoreResult, error) {
	factorScores := make([]FactorScore, len(def.Factors))
	var missingFields []string
	presentWeight := 0.0

	for i, spec := range def.Factors {
		fs := NormalizeFactor(snapshot, spec)
		factorScores[i] = fs
		if fs.Missing {
			missingFields = append(missingFields, string(spec.Field))
		} else {
			presentWeight += spec.Weight
		}
	}

	missingFraction := float64(len(missingFields)) / float64(len(def.Factors))
	if missingFraction > maxMissingFraction || presentWeight == 0 {
		return nil, &domain.InsufficientDataError{
			Symbol:          snapshot.Symbol,
			StrategyID:      def.ID,
			MissingFields:   missingFields,
			MissingFraction: missingFraction,
			MaxFraction:     maxMissingFraction,
		}
	}

	result := &ScoreResult{
		Symbol:     snapshot.Symbol,
		StrategyID: def.ID,
		AsOf:       snapshot.AsOf,
		Components: make(map[domain.MetricField]ComponentScore, len(def.Factors)),
	}

	score := 0.0
	for i, spec := range def.Factors {
		fs := factorScores[i]

		weight := 0.0
		if !fs.Missing {
			weight = spec.Weight / presentWeight
			score += weight * fs.Score
		}

		result.Components[spec.Field] = ComponentScore{
			Raw:     fs.Raw,
			Score:   fs.Score,
			Weight:  weight,
			Missing: fs.Missing,
		}
	}
	result.Score = score

	return result, nil
}
