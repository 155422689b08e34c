package scoring

import (
	"time"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/strategies"
)

// BlendPart records one strategy's contribution to a blended score.
// Weight is the renormalized weight actually applied.
type BlendPart struct {
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
}

// BlendedScore is the final ranked score for one asset under one blend.
// Renormalized is set when one or more components were absent and the
// remaining weights were rescaled.
type BlendedScore struct {
	Symbol       string               `json:"symbol"`
	BlendID      string               `json:"blend_id"`
	AsOf         time.Time            `json:"as_of"`
	Score        float64              `json:"score"`
	Parts        map[string]BlendPart `json:"parts"`
	Renormalized bool                 `json:"renormalized,omitempty"`
}

// ComposeBlend linearly combines the asset's per-strategy scores using
// the blend's weights.
//
// Missing components renormalize: when the asset lacks a ScoreResult for
// one blended strategy (typically excluded for insufficient data), the
// remaining weights are rescaled proportionally so they still sum to 1,
// rather than treating the missing component as zero.
//
// All components missing is an InsufficientDataError: there is no
// evidence left to rank on.
func ComposeBlend(blend strategies.Blend, results map[string]*ScoreResult) (*BlendedScore, error) {
	presentWeight := 0.0
	var symbol string
	var asOf time.Time
	var missing []string

	for _, c := range blend.Components {
		r, ok := results[c.StrategyID]
		if !ok || r == nil {
			missing = append(missing, c.StrategyID)
			continue
		}
		presentWeight += c.Weight
		symbol = r.Symbol
		if r.AsOf.After(asOf) {
			asOf = r.AsOf
		}
	}

	if presentWeight == 0 {
		return nil, &domain.InsufficientDataError{
			Symbol:          symbol,
			StrategyID:      blend.ID,
			MissingFields:   missing,
			MissingFraction: 1,
			MaxFraction:     0,
		}
	}

	out := &BlendedScore{
		Symbol:       symbol,
		BlendID:      blend.ID,
		AsOf:         asOf,
		Parts:        make(map[string]BlendPart, len(blend.Components)),
		Renormalized: len(missing) > 0,
	}

	for _, c := range blend.Components {
		r, ok := results[c.StrategyID]
		if !ok || r == nil {
			continue
		}
		weight := c.Weight / presentWeight
		out.Score += weight * r.Score
		out.Parts[c.StrategyID] = BlendPart{Weight: weight, Score: r.Score}
	}

	return out, nil
}
