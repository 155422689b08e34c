package portfolio

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
)

// Service coordinates portfolio lifecycle and read-side queries. All
// cash and position mutations go through the trading module's settlement
// path; this service never writes those.
type Service struct {
	portfolios *PortfolioRepository
	positions  *PositionRepository
	cashFlows  *CashFlowRepository
	accountant *Accountant
	log        zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(
	portfolios *PortfolioRepository,
	positions *PositionRepository,
	cashFlows *CashFlowRepository,
	accountant *Accountant,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios: portfolios,
		positions:  positions,
		cashFlows:  cashFlows,
		accountant: accountant,
		log:        log.With().Str("service", "portfolio").Logger(),
	}
}

// Create validates and creates a new portfolio with zero cash.
func (s *Service) Create(name, baseCurrency string) (*domain.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.InvalidOrderError{Reason: "portfolio name must not be empty"}
	}

	baseCurrency = strings.ToUpper(strings.TrimSpace(baseCurrency))
	if baseCurrency == "" {
		baseCurrency = "USD"
	}
	if !domain.KnownCurrency(baseCurrency) {
		return nil, &domain.InvalidOrderError{Reason: "unknown base currency: " + baseCurrency}
	}

	return s.portfolios.Create(name, baseCurrency)
}

// Get returns one portfolio, nil when unknown.
func (s *Service) Get(id string) (*domain.Portfolio, error) {
	return s.portfolios.Get(id)
}

// List returns every portfolio.
func (s *Service) List() ([]domain.Portfolio, error) {
	return s.portfolios.GetAll()
}

// Delete removes a portfolio and its dependent rows.
func (s *Service) Delete(id string) error {
	p, err := s.portfolios.Get(id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("portfolio %s not found", id)
	}

	if err := s.portfolios.Delete(id); err != nil {
		return err
	}
	s.log.Info().Str("portfolio", id).Msg("Portfolio deleted")
	return nil
}

// Positions returns a portfolio's open positions.
func (s *Service) Positions(id string) ([]domain.Position, error) {
	return s.positions.GetAll(id)
}

// CashFlows returns a portfolio's recorded deposits and withdrawals.
func (s *Service) CashFlows(id string, limit int) ([]domain.CashFlow, error) {
	return s.cashFlows.List(id, limit)
}

// Valuation marks the portfolio to the latest prices.
func (s *Service) Valuation(id string) (*Valuation, error) {
	return s.accountant.Valuation(id)
}
