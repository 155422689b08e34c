package trading

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/database"
	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/internal/modules/portfolio"
)

// Service fronts the executor and handles external cash movements.
type Service struct {
	ledgerDB   *sql.DB
	executor   *Executor
	portfolios *portfolio.PortfolioRepository
	cashFlows  *portfolio.CashFlowRepository
	trades     *TradeRepository
	events     *events.Manager
	// locks is the executor's registry: cash movements queue behind
	// settlements on the same portfolio.
	locks *portfolioLocks
	log   zerolog.Logger
}

// NewService creates a new trading service
func NewService(
	ledgerDB *sql.DB,
	executor *Executor,
	portfolios *portfolio.PortfolioRepository,
	cashFlows *portfolio.CashFlowRepository,
	trades *TradeRepository,
	eventsManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		ledgerDB:   ledgerDB,
		executor:   executor,
		portfolios: portfolios,
		cashFlows:  cashFlows,
		trades:     trades,
		events:     eventsManager,
		locks:      executor.locks,
		log:        log.With().Str("service", "trading").Logger(),
	}
}

// Execute runs one order through the executor and announces the
// resulting portfolio state on settlement.
func (s *Service) Execute(req TradeRequest) *TradeResult {
	result := s.executor.Execute(req)

	if result.State == StateSettled {
		if p, err := s.portfolios.Get(req.PortfolioID); err == nil && p != nil {
			s.events.EmitTyped(events.PortfolioChanged, "trading", events.PortfolioChangedData{
				PortfolioID: p.ID,
				Cash:        p.Cash.String(),
				Currency:    p.BaseCurrency,
				Cause:       "trade",
			})
		}
	}

	return result
}

// Deposit credits external cash to a portfolio. The cash update and the
// cash-flow record land in one transaction.
func (s *Service) Deposit(portfolioID string, amount decimal.Decimal, comment string) (*domain.CashFlow, error) {
	return s.moveCash(portfolioID, domain.CashFlowDeposit, amount, comment)
}

// Withdraw debits cash from a portfolio. Withdrawals beyond the cash
// balance are rejected with InsufficientFundsError; holdings are not
// collateral.
func (s *Service) Withdraw(portfolioID string, amount decimal.Decimal, comment string) (*domain.CashFlow, error) {
	return s.moveCash(portfolioID, domain.CashFlowWithdrawal, amount, comment)
}

func (s *Service) moveCash(portfolioID string, flowType domain.CashFlowType, amount decimal.Decimal, comment string) (*domain.CashFlow, error) {
	if !amount.IsPositive() {
		return nil, &domain.InvalidOrderError{Reason: "amount must be positive, got " + amount.String()}
	}

	flow := &domain.CashFlow{
		PortfolioID: portfolioID,
		Type:        flowType,
		Amount:      amount,
		Comment:     strings.TrimSpace(comment),
		OccurredAt:  time.Now().UTC(),
	}

	var newCash decimal.Decimal
	var currency string

	lock := s.locks.get(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	err := database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		p, err := s.portfolios.GetTx(tx, portfolioID)
		if err != nil {
			return err
		}
		if p == nil {
			return &errRejected{cause: &domain.InvalidOrderError{Reason: "unknown portfolio: " + portfolioID}}
		}

		if flowType == domain.CashFlowDeposit {
			newCash = p.Cash.Add(amount)
		} else {
			if p.Cash.LessThan(amount) {
				return &errRejected{cause: &domain.InsufficientFundsError{
					Required:  amount,
					Available: p.Cash,
				}}
			}
			newCash = p.Cash.Sub(amount)
		}
		currency = p.BaseCurrency

		if err := s.cashFlows.AppendTx(tx, flow); err != nil {
			return err
		}
		return s.portfolios.UpdateCashTx(tx, portfolioID, newCash)
	})
	if err != nil {
		var rejected *errRejected
		if errors.As(err, &rejected) {
			return nil, rejected.cause
		}
		return nil, &domain.PersistenceError{Op: "record cash flow", Err: err}
	}

	s.log.Info().
		Str("portfolio", portfolioID).
		Str("type", string(flowType)).
		Str("amount", amount.String()).
		Msg("Cash flow recorded")

	s.events.EmitTyped(events.PortfolioChanged, "trading", events.PortfolioChangedData{
		PortfolioID: portfolioID,
		Cash:        newCash.String(),
		Currency:    currency,
		Cause:       strings.ToLower(string(flowType)),
	})

	return flow, nil
}

// History returns a portfolio's trades, newest first.
func (s *Service) History(portfolioID string, limit, offset int) ([]domain.Trade, error) {
	return s.trades.History(portfolioID, limit, offset)
}

// TradesBySymbol returns a portfolio's trades in one symbol, oldest first.
func (s *Service) TradesBySymbol(portfolioID, symbol string) ([]domain.Trade, error) {
	return s.trades.ListBySymbol(portfolioID, symbol)
}
