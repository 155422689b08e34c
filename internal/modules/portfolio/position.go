// Package portfolio manages the simulation aggregate: portfolios, their
// cash, derived positions and external cash flows.
package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
)

// FoldResult is the outcome of applying one trade to a position.
// Closed means the position reached zero quantity and its row must go;
// cost basis is undefined without holdings.
type FoldResult struct {
	Position    domain.Position
	RealizedPnL decimal.Decimal
	Closed      bool
}

// Fold applies a settled trade to a position. Pure function: the caller
// persists the outcome inside the settlement transaction.
//
// Buys reprice the average cost as the quantity-weighted mean of the old
// basis and the new lot, priced at execution (the pip is part of the
// basis, flat fees are not). Sells reduce quantity, leave the average
// cost untouched and realize qty x (exec - avg) minus the trade's fees.
func Fold(current *domain.Position, trade *domain.Trade) (*FoldResult, error) {
	switch trade.Side {
	case domain.SideBuy:
		return foldBuy(current, trade), nil
	case domain.SideSell:
		return foldSell(current, trade)
	default:
		return nil, &domain.InvalidOrderError{Reason: "unknown side: " + string(trade.Side)}
	}
}

func foldBuy(current *domain.Position, trade *domain.Trade) *FoldResult {
	if current == nil {
		return &FoldResult{
			Position: domain.Position{
				PortfolioID: trade.PortfolioID,
				Symbol:      trade.Symbol,
				Quantity:    trade.Quantity,
				AvgCost:     trade.ExecutionPrice,
				Unit:        trade.Unit,
				UpdatedAt:   trade.ExecutedAt,
			},
		}
	}

	newQty := current.Quantity.Add(trade.Quantity)
	oldCost := current.Quantity.Mul(current.AvgCost)
	newCost := trade.Quantity.Mul(trade.ExecutionPrice)
	avg := oldCost.Add(newCost).Div(newQty)

	return &FoldResult{
		Position: domain.Position{
			PortfolioID: current.PortfolioID,
			Symbol:      current.Symbol,
			Quantity:    newQty,
			AvgCost:     avg,
			Unit:        current.Unit,
			UpdatedAt:   trade.ExecutedAt,
		},
	}
}

func foldSell(current *domain.Position, trade *domain.Trade) (*FoldResult, error) {
	held := decimal.Zero
	if current != nil {
		held = current.Quantity
	}
	if trade.Quantity.GreaterThan(held) {
		return nil, &domain.InsufficientPositionError{
			Symbol:    trade.Symbol,
			Requested: trade.Quantity,
			Held:      held,
		}
	}

	realized := trade.Quantity.Mul(trade.ExecutionPrice.Sub(current.AvgCost)).Sub(trade.TotalFees)
	newQty := held.Sub(trade.Quantity)

	if newQty.IsZero() {
		return &FoldResult{
			Position:    domain.Position{PortfolioID: current.PortfolioID, Symbol: current.Symbol},
			RealizedPnL: realized,
			Closed:      true,
		}, nil
	}

	return &FoldResult{
		Position: domain.Position{
			PortfolioID: current.PortfolioID,
			Symbol:      current.Symbol,
			Quantity:    newQty,
			AvgCost:     current.AvgCost,
			Unit:        current.Unit,
			UpdatedAt:   trade.ExecutedAt,
		},
		RealizedPnL: realized,
	}, nil
}
