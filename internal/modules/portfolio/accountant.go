package portfolio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
)

// PriceSource supplies the freshest known quote for a symbol. Defined
// here so the accountant does not import the pricing module directly.
type PriceSource interface {
	GetFreshPrice(symbol string) (*domain.Price, bool, error)
}

// RealizedPnLSource sums realized profit over a portfolio's trade log.
// Implemented by the trading module's trade repository.
type RealizedPnLSource interface {
	RealizedPnL(portfolioID string) (decimal.Decimal, error)
}

// PositionValuation is one position marked to the latest price.
// PriceStale and PriceMissing degrade the valuation without failing it;
// a missing price values the position at cost.
type PositionValuation struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	Price         decimal.Decimal `json:"price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Unit          domain.Unit     `json:"unit"`
	PriceStale    bool            `json:"price_stale,omitempty"`
	PriceMissing  bool            `json:"price_missing,omitempty"`
}

// Valuation is the point-in-time financial summary of one portfolio.
type Valuation struct {
	PortfolioID      string              `json:"portfolio_id"`
	AsOf             time.Time           `json:"as_of"`
	BaseCurrency     string              `json:"base_currency"`
	Cash             decimal.Decimal     `json:"cash"`
	MarketValue      decimal.Decimal     `json:"market_value"`
	TotalValue       decimal.Decimal     `json:"total_value"`
	UnrealizedPnL    decimal.Decimal     `json:"unrealized_pnl"`
	RealizedPnL      decimal.Decimal     `json:"realized_pnl"`
	NetContributions decimal.Decimal     `json:"net_contributions"`
	ReturnPct        decimal.Decimal     `json:"return_pct"`
	Positions        []PositionValuation `json:"positions"`
	Degraded         bool                `json:"degraded,omitempty"`
}

// Accountant values portfolios by marking positions to the price book.
type Accountant struct {
	portfolios *PortfolioRepository
	positions  *PositionRepository
	cashFlows  *CashFlowRepository
	prices     PriceSource
	realized   RealizedPnLSource
	log        zerolog.Logger
}

// NewAccountant creates a new accountant
func NewAccountant(
	portfolios *PortfolioRepository,
	positions *PositionRepository,
	cashFlows *CashFlowRepository,
	prices PriceSource,
	realized RealizedPnLSource,
	log zerolog.Logger,
) *Accountant {
	return &Accountant{
		portfolios: portfolios,
		positions:  positions,
		cashFlows:  cashFlows,
		prices:     prices,
		realized:   realized,
		log:        log.With().Str("component", "accountant").Logger(),
	}
}

// Valuation marks every position to the freshest price and aggregates
// the portfolio's worth. Stale or missing prices degrade the valuation
// (flagged per position and on the whole) instead of failing it; a
// position without any price is carried at cost.
func (a *Accountant) Valuation(portfolioID string) (*Valuation, error) {
	p, err := a.portfolios.Get(portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("portfolio %s not found", portfolioID)
	}

	positions, err := a.positions.GetAll(portfolioID)
	if err != nil {
		return nil, err
	}

	v := &Valuation{
		PortfolioID:  p.ID,
		AsOf:         time.Now().UTC(),
		BaseCurrency: p.BaseCurrency,
		Cash:         p.Cash,
		MarketValue:  decimal.Zero,
		TotalValue:   decimal.Zero,
		Positions:    make([]PositionValuation, 0, len(positions)),
	}

	for _, pos := range positions {
		pv := PositionValuation{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			AvgCost:  pos.AvgCost,
			Unit:     pos.Unit,
		}

		price, stale, err := a.prices.GetFreshPrice(pos.Symbol)
		if err != nil {
			return nil, fmt.Errorf("pricing %s: %w", pos.Symbol, err)
		}

		switch {
		case price == nil:
			pv.PriceMissing = true
			pv.Price = pos.AvgCost
			v.Degraded = true
		case stale:
			pv.PriceStale = true
			pv.Price = price.Mid
			v.Degraded = true
		default:
			pv.Price = price.Mid
		}

		pv.MarketValue = pos.Quantity.Mul(pv.Price)
		pv.UnrealizedPnL = pos.Quantity.Mul(pv.Price.Sub(pos.AvgCost))

		v.MarketValue = v.MarketValue.Add(pv.MarketValue)
		v.UnrealizedPnL = v.UnrealizedPnL.Add(pv.UnrealizedPnL)
		v.Positions = append(v.Positions, pv)
	}

	v.TotalValue = v.Cash.Add(v.MarketValue)

	if a.realized != nil {
		if v.RealizedPnL, err = a.realized.RealizedPnL(portfolioID); err != nil {
			return nil, fmt.Errorf("realized pnl for %s: %w", portfolioID, err)
		}
	}

	if v.NetContributions, err = a.cashFlows.NetContributions(portfolioID); err != nil {
		return nil, err
	}
	if v.NetContributions.IsPositive() {
		hundred := decimal.NewFromInt(100)
		v.ReturnPct = v.TotalValue.Sub(v.NetContributions).Div(v.NetContributions).Mul(hundred)
	}

	if v.Degraded {
		a.log.Warn().Str("portfolio", portfolioID).Msg("Valuation degraded by stale or missing prices")
	}

	return v, nil
}
