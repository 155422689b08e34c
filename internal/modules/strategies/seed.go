package strategies

import (
	"fmt"

	"github.com/karvelas/lodestar/internal/domain"
)

// defaultStrategies are seeded on first run so the system ranks
// something out of the box. Clamp bounds reflect conventional ranges
// for each metric; anything outside is clamped, not extrapolated.
func defaultStrategies() []StrategyDefinition {
	return []StrategyDefinition{
		{
			ID:          "value",
			Name:        "Value",
			Version:     1,
			Description: "Cheap, shareholder-friendly, conservatively financed",
			Enabled:     true,
			Factors: []FactorSpec{
				{Field: domain.FieldPE, Weight: 0.35, Direction: DirectionLower, LowerBound: 5, UpperBound: 40},
				{Field: domain.FieldDividendYield, Weight: 0.30, Direction: DirectionHigher, LowerBound: 0, UpperBound: 8},
				{Field: domain.FieldDebtToEquity, Weight: 0.20, Direction: DirectionLower, LowerBound: 0, UpperBound: 2.5},
				{Field: domain.FieldPEG, Weight: 0.15, Direction: DirectionLower, LowerBound: 0.5, UpperBound: 3},
			},
		},
		{
			ID:          "growth",
			Name:        "Growth",
			Version:     1,
			Description: "Expanding revenue and free cash flow",
			Enabled:     true,
			Factors: []FactorSpec{
				{Field: domain.FieldRevenueGrowth, Weight: 0.40, Direction: DirectionHigher, LowerBound: -10, UpperBound: 40},
				{Field: domain.FieldFCFGrowth, Weight: 0.35, Direction: DirectionHigher, LowerBound: -10, UpperBound: 40},
				{Field: domain.FieldPEG, Weight: 0.25, Direction: DirectionLower, LowerBound: 0.5, UpperBound: 3},
			},
		},
		{
			ID:          "quality",
			Name:        "Quality",
			Version:     1,
			Description: "Low leverage, steady cash generation, low volatility",
			Enabled:     true,
			Factors: []FactorSpec{
				{Field: domain.FieldDebtToEquity, Weight: 0.40, Direction: DirectionLower, LowerBound: 0, UpperBound: 2.5},
				{Field: domain.FieldFCFGrowth, Weight: 0.30, Direction: DirectionHigher, LowerBound: -10, UpperBound: 40},
				{Field: domain.FieldVolatility90D, Weight: 0.30, Direction: DirectionLower, LowerBound: 10, UpperBound: 60},
			},
		},
		{
			ID:          "momentum",
			Name:        "Momentum",
			Version:     1,
			Description: "Trailing price strength without overbought extremes",
			Enabled:     true,
			Factors: []FactorSpec{
				{Field: domain.FieldMomentum3M, Weight: 0.60, Direction: DirectionHigher, LowerBound: -20, UpperBound: 30},
				{Field: domain.FieldRSI14, Weight: 0.40, Direction: DirectionLower, LowerBound: 30, UpperBound: 80},
			},
		},
	}
}

// defaultBlends are age-style allocations over the default strategies.
func defaultBlends() []Blend {
	return []Blend{
		{
			ID:          "conservative",
			Name:        "Conservative",
			Description: "Value and quality dominate; momentum is a small tilt",
			Enabled:     true,
			Components: []BlendComponent{
				{StrategyID: "value", Weight: 0.45},
				{StrategyID: "quality", Weight: 0.35},
				{StrategyID: "growth", Weight: 0.10},
				{StrategyID: "momentum", Weight: 0.10},
			},
		},
		{
			ID:          "balanced",
			Name:        "Balanced",
			Description: "Even split across all four default strategies",
			Enabled:     true,
			Components: []BlendComponent{
				{StrategyID: "value", Weight: 0.25},
				{StrategyID: "quality", Weight: 0.25},
				{StrategyID: "growth", Weight: 0.25},
				{StrategyID: "momentum", Weight: 0.25},
			},
		},
		{
			ID:          "aggressive",
			Name:        "Aggressive",
			Description: "Growth and momentum dominate",
			Enabled:     true,
			Components: []BlendComponent{
				{StrategyID: "growth", Weight: 0.40},
				{StrategyID: "momentum", Weight: 0.30},
				{StrategyID: "quality", Weight: 0.20},
				{StrategyID: "value", Weight: 0.10},
			},
		},
	}
}

// SeedDefaults writes the built-in strategies and blends when the tables
// are empty. Existing configuration is never touched.
func (r *Repository) SeedDefaults() error {
	count, err := r.CountStrategies()
	if err != nil {
		return err
	}
	if count == 0 {
		for _, def := range defaultStrategies() {
			if err := r.SaveStrategy(def); err != nil {
				return fmt.Errorf("failed to seed strategy %s: %w", def.ID, err)
			}
		}
		r.log.Info().Int("strategies", len(defaultStrategies())).Msg("Seeded default strategies")
	}

	count, err = r.CountBlends()
	if err != nil {
		return err
	}
	if count == 0 {
		for _, b := range defaultBlends() {
			if err := r.SaveBlend(b); err != nil {
				return fmt.Errorf("failed to seed blend %s: %w", b.ID, err)
			}
		}
		r.log.Info().Int("blends", len(defaultBlends())).Msg("Seeded default blends")
	}

	return nil
}
