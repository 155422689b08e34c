package trading

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/database"
	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/internal/modules/brokers"
	"github.com/karvelas/lodestar/internal/modules/portfolio"
)

// OrderState tracks an order through the execution pipeline. Settled and
// Rejected are terminal; there is no partial fill in a simulation.
type OrderState string

const (
	StateRequested OrderState = "REQUESTED"
	StateValidated OrderState = "VALIDATED"
	StatePriced    OrderState = "PRICED"
	StateSettled   OrderState = "SETTLED"
	StateRejected  OrderState = "REJECTED"
)

// TradeRequest is an inbound order.
type TradeRequest struct {
	PortfolioID     string          `json:"portfolio_id"`
	Symbol          string          `json:"symbol"`
	Side            domain.Side     `json:"side"`
	Quantity        decimal.Decimal `json:"quantity"`
	BrokerProfileID string          `json:"broker_profile_id"`
	Comment         string          `json:"comment,omitempty"`
}

// TradeResult is the terminal outcome of one order. Business rejections
// populate Reject and leave Err nil: a rejected order is a valid,
// expected outcome, not a failure of the executor. Err is reserved for
// infrastructure faults, after which nothing was persisted.
type TradeResult struct {
	State  OrderState    `json:"state"`
	Trade  *domain.Trade `json:"trade,omitempty"`
	Reject error         `json:"-"`
	Err    error         `json:"-"`
}

// RejectReason renders the rejection for transport.
func (r *TradeResult) RejectReason() string {
	if r.Reject == nil {
		return ""
	}
	return r.Reject.Error()
}

// PriceSource supplies the freshest quote for a symbol, with a
// staleness verdict.
type PriceSource interface {
	GetFreshPrice(symbol string) (*domain.Price, bool, error)
}

// AssetSource answers whether a symbol is registered, and with what unit.
type AssetSource interface {
	GetAsset(symbol string) (*domain.Asset, error)
}

// Executor walks orders through validate, price, settle. Settlement is
// one ledger.db transaction under a per-portfolio lock: cash debit,
// position fold and trade append land together or not at all.
type Executor struct {
	ledgerDB   *sql.DB
	portfolios *portfolio.PortfolioRepository
	positions  *portfolio.PositionRepository
	trades     *TradeRepository
	brokers    *brokers.ProfileRepository
	prices     PriceSource
	assets     AssetSource
	events     *events.Manager
	locks      *portfolioLocks
	log        zerolog.Logger
}

// NewExecutor creates a new trade executor
func NewExecutor(
	ledgerDB *sql.DB,
	portfolios *portfolio.PortfolioRepository,
	positions *portfolio.PositionRepository,
	trades *TradeRepository,
	brokerProfiles *brokers.ProfileRepository,
	prices PriceSource,
	assets AssetSource,
	eventsManager *events.Manager,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		ledgerDB:   ledgerDB,
		portfolios: portfolios,
		positions:  positions,
		trades:     trades,
		brokers:    brokerProfiles,
		prices:     prices,
		assets:     assets,
		events:     eventsManager,
		locks:      newPortfolioLocks(),
		log:        log.With().Str("component", "executor").Logger(),
	}
}

// Execute runs one order to a terminal state. The returned result's Err
// is non-nil only for infrastructure faults; every business-rule
// violation comes back as a Rejected result with the typed reason.
func (e *Executor) Execute(req TradeRequest) *TradeResult {
	result := e.execute(req)

	switch result.State {
	case StateSettled:
		t := result.Trade
		e.log.Info().
			Str("portfolio", t.PortfolioID).
			Int64("seq", t.Seq).
			Str("symbol", t.Symbol).
			Str("side", string(t.Side)).
			Str("quantity", t.Quantity.String()).
			Str("net", t.NetAmount.String()).
			Msg("Trade settled")
		e.events.EmitTyped(events.TradeSettled, "trading", events.TradeSettledData{
			PortfolioID: t.PortfolioID,
			TradeID:     fmt.Sprintf("%d", t.ID),
			Seq:         t.Seq,
			Symbol:      t.Symbol,
			Side:        string(t.Side),
			Quantity:    t.Quantity.String(),
			NetAmount:   t.NetAmount.String(),
			Currency:    t.Currency,
		})
	case StateRejected:
		e.log.Info().
			Str("portfolio", req.PortfolioID).
			Str("symbol", req.Symbol).
			Str("side", string(req.Side)).
			Str("reason", result.RejectReason()).
			Msg("Trade rejected")
		e.events.EmitTyped(events.TradeRejected, "trading", events.TradeRejectedData{
			PortfolioID: req.PortfolioID,
			Symbol:      req.Symbol,
			Side:        string(req.Side),
			Reason:      result.RejectReason(),
		})
	default:
		e.log.Error().Err(result.Err).
			Str("portfolio", req.PortfolioID).
			Str("symbol", req.Symbol).
			Msg("Trade execution failed")
	}

	return result
}

func (e *Executor) execute(req TradeRequest) *TradeResult {
	req.Symbol = domain.NormalizeSymbol(req.Symbol)

	// Requested -> Validated
	p, asset, reject, err := e.validate(req)
	if err != nil {
		return &TradeResult{State: StateRequested, Err: err}
	}
	if reject != nil {
		return &TradeResult{State: StateRejected, Reject: reject}
	}

	// Validated -> Priced
	quote, reject, err := e.price(req, p)
	if err != nil {
		return &TradeResult{State: StateValidated, Err: err}
	}
	if reject != nil {
		return &TradeResult{State: StateRejected, Reject: reject}
	}

	// Priced -> Settled | Rejected
	return e.settle(req, p, asset, quote)
}

// validate checks the request shape and resolves its referenced
// portfolio and asset.
func (e *Executor) validate(req TradeRequest) (*domain.Portfolio, *domain.Asset, error, error) {
	if !req.Side.Valid() {
		return nil, nil, &domain.InvalidOrderError{Reason: "unknown side: " + string(req.Side)}, nil
	}
	if !req.Quantity.IsPositive() {
		return nil, nil, &domain.InvalidOrderError{Reason: "quantity must be positive, got " + req.Quantity.String()}, nil
	}
	if req.Symbol == "" {
		return nil, nil, &domain.InvalidOrderError{Reason: "symbol must not be empty"}, nil
	}

	p, err := e.portfolios.Get(req.PortfolioID)
	if err != nil {
		return nil, nil, nil, err
	}
	if p == nil {
		return nil, nil, &domain.InvalidOrderError{Reason: "unknown portfolio: " + req.PortfolioID}, nil
	}

	asset, err := e.assets.GetAsset(req.Symbol)
	if err != nil {
		return nil, nil, nil, err
	}
	if asset == nil {
		return nil, nil, &domain.InvalidOrderError{Reason: "symbol not in universe: " + req.Symbol}, nil
	}

	return p, asset, nil, nil
}

// price resolves the quote: fresh mid price in the portfolio's currency,
// run through the broker's fee model.
func (e *Executor) price(req TradeRequest, p *domain.Portfolio) (*brokers.Quote, error, error) {
	profile, err := e.brokers.Get(req.BrokerProfileID)
	if err != nil {
		return nil, nil, err
	}
	if profile == nil {
		return nil, &domain.InvalidOrderError{Reason: "unknown broker profile: " + req.BrokerProfileID}, nil
	}

	price, stale, err := e.prices.GetFreshPrice(req.Symbol)
	if err != nil {
		return nil, nil, err
	}
	if price == nil {
		return nil, &domain.InvalidOrderError{Reason: "no price available for " + req.Symbol}, nil
	}
	if stale {
		return nil, &domain.InvalidOrderError{Reason: "price for " + req.Symbol + " is stale"}, nil
	}
	if !strings.EqualFold(price.Currency, p.BaseCurrency) {
		return nil, &domain.InvalidOrderError{
			Reason: fmt.Sprintf("price currency %s does not match portfolio currency %s", price.Currency, p.BaseCurrency),
		}, nil
	}

	quote, err := brokers.Price(profile, req.Side, req.Quantity, price.Mid, p.BaseCurrency)
	if err != nil {
		var invalid *domain.InvalidOrderError
		if errors.As(err, &invalid) {
			return nil, err, nil
		}
		return nil, nil, err
	}

	return quote, nil, nil
}

// errRejected carries a business rejection out of the settlement
// transaction so the rollback happens before classification.
type errRejected struct{ cause error }

func (e *errRejected) Error() string { return e.cause.Error() }

// settle applies the priced order to the ledger atomically. Cash and
// position are re-validated inside the transaction against settled
// state, under the portfolio's lock.
func (e *Executor) settle(req TradeRequest, p *domain.Portfolio, asset *domain.Asset, quote *brokers.Quote) *TradeResult {
	lock := e.locks.get(req.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	var settled *domain.Trade

	err := database.WithTransaction(e.ledgerDB, func(tx *sql.Tx) error {
		current, err := e.portfolios.GetTx(tx, req.PortfolioID)
		if err != nil {
			return err
		}
		if current == nil {
			return &errRejected{cause: &domain.InvalidOrderError{Reason: "unknown portfolio: " + req.PortfolioID}}
		}

		var newCash decimal.Decimal
		if req.Side == domain.SideBuy {
			if current.Cash.LessThan(quote.NetAmount) {
				return &errRejected{cause: &domain.InsufficientFundsError{
					Required:  quote.NetAmount,
					Available: current.Cash,
				}}
			}
			newCash = current.Cash.Sub(quote.NetAmount)
		} else {
			newCash = current.Cash.Add(quote.NetAmount)
		}

		seq, err := e.trades.NextSeqTx(tx, req.PortfolioID)
		if err != nil {
			return err
		}

		trade := &domain.Trade{
			Seq:            seq,
			PortfolioID:    req.PortfolioID,
			Symbol:         req.Symbol,
			Side:           req.Side,
			Quantity:       req.Quantity,
			MidPrice:       quote.MidPrice,
			ExecutionPrice: quote.ExecPrice,
			PipCost:        quote.PipCost,
			FlatFee:        quote.FlatFee,
			Commission:     quote.Commission,
			TotalFees:      quote.Fees,
			GrossAmount:    quote.Gross,
			NetAmount:      quote.NetAmount,
			RealizedPnL:    decimal.Zero,
			Unit:           asset.Class.DefaultUnit(),
			Currency:       p.BaseCurrency,
			Comment:        req.Comment,
			ExecutedAt:     time.Now().UTC(),
		}

		position, err := e.positions.GetTx(tx, req.PortfolioID, req.Symbol)
		if err != nil {
			return err
		}

		fold, err := portfolio.Fold(position, trade)
		if err != nil {
			var insufficient *domain.InsufficientPositionError
			if errors.As(err, &insufficient) {
				return &errRejected{cause: err}
			}
			return err
		}
		trade.RealizedPnL = fold.RealizedPnL

		if err := e.trades.AppendTx(tx, trade); err != nil {
			return err
		}
		if fold.Closed {
			if err := e.positions.DeleteTx(tx, req.PortfolioID, req.Symbol); err != nil {
				return err
			}
		} else {
			if err := e.positions.UpsertTx(tx, fold.Position); err != nil {
				return err
			}
		}
		if err := e.portfolios.UpdateCashTx(tx, req.PortfolioID, newCash); err != nil {
			return err
		}

		settled = trade
		return nil
	})

	if err != nil {
		var rejected *errRejected
		if errors.As(err, &rejected) {
			return &TradeResult{State: StateRejected, Reject: rejected.cause}
		}
		return &TradeResult{State: StatePriced, Err: &domain.PersistenceError{Op: "settle trade", Err: err}}
	}

	return &TradeResult{State: StateSettled, Trade: settled}
}
