package brokers

import (
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
)

var one = decimal.NewFromInt(1)

// Quote is the fully priced view of a prospective order. All values are
// exact decimals; nothing is rounded until a report boundary.
type Quote struct {
	Side       domain.Side     `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	MidPrice   decimal.Decimal `json:"mid_price"`
	ExecPrice  decimal.Decimal `json:"exec_price"`
	Gross      decimal.Decimal `json:"gross"`
	PipCost    decimal.Decimal `json:"pip_cost"`
	FlatFee    decimal.Decimal `json:"flat_fee"`
	Commission decimal.Decimal `json:"commission"`
	Fees       decimal.Decimal `json:"fees"`
	// NetAmount is the cash impact: buys debit gross+fees, sells
	// credit gross-fees.
	NetAmount decimal.Decimal `json:"net_amount"`
}

// Price applies a broker's fee model to an order. The pip moves the
// execution price against the trader (buys pay more, sells receive
// less); flat fee and commission stack on top of the gross at the
// execution price. Broker constraints are checked before pricing.
//
// Returns an InvalidOrderError for a non-positive quantity, a
// non-positive mid price, or any violated broker constraint.
func Price(profile *domain.BrokerProfile, side domain.Side, quantity, mid decimal.Decimal, currency string) (*Quote, error) {
	if !side.Valid() {
		return nil, &domain.InvalidOrderError{Reason: "unknown side: " + string(side)}
	}
	if !quantity.IsPositive() {
		return nil, &domain.InvalidOrderError{Reason: "quantity must be positive, got " + quantity.String()}
	}
	if !mid.IsPositive() {
		return nil, &domain.InvalidOrderError{Reason: "mid price must be positive, got " + mid.String()}
	}

	var exec decimal.Decimal
	if side == domain.SideBuy {
		exec = mid.Mul(one.Add(profile.PipPct))
	} else {
		exec = mid.Mul(one.Sub(profile.PipPct))
	}

	gross := quantity.Mul(exec)

	if err := profile.CanExecute(quantity, gross, currency); err != nil {
		return nil, err
	}

	commission := gross.Mul(profile.CommissionPct)
	fees := profile.FlatFee.Add(commission)

	var net decimal.Decimal
	if side == domain.SideBuy {
		net = gross.Add(fees)
	} else {
		net = gross.Sub(fees)
	}

	return &Quote{
		Side:       side,
		Quantity:   quantity,
		MidPrice:   mid,
		ExecPrice:  exec,
		Gross:      gross,
		PipCost:    quantity.Mul(exec.Sub(mid).Abs()),
		FlatFee:    profile.FlatFee,
		Commission: commission,
		Fees:       fees,
		NetAmount:  net,
	}, nil
}
