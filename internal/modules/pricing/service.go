package pricing

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/events"
)

// StaleThresholdProvider supplies the configured staleness threshold.
// Defined here to avoid an import cycle with the settings package.
type StaleThresholdProvider interface {
	GetStalePriceSeconds() (int, error)
}

// PriceUpdate is one inbound quote. Mid is a decimal string.
type PriceUpdate struct {
	Symbol   string `json:"symbol"`
	Mid      string `json:"mid"`
	Currency string `json:"currency,omitempty"`
}

// Service coordinates price ingestion and staleness checks.
type Service struct {
	repo         *PriceRepository
	settings     StaleThresholdProvider
	eventManager *events.Manager
	log          zerolog.Logger
}

func NewService(
	repo *PriceRepository,
	settings StaleThresholdProvider,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		settings:     settings,
		eventManager: eventManager,
		log:          log.With().Str("service", "pricing").Logger(),
	}
}

// UpdatePrices validates and persists a batch of quote updates, then
// emits a PriceUpdated event. Invalid entries are skipped, valid ones
// still land.
func (s *Service) UpdatePrices(updates []PriceUpdate, source string) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	prices := make([]domain.Price, 0, len(updates))
	for _, u := range updates {
		mid, err := domain.ParseDecimal(u.Mid)
		if err != nil {
			s.log.Warn().Str("symbol", u.Symbol).Str("mid", u.Mid).Msg("Dropping unparseable price")
			continue
		}
		currency := u.Currency
		if currency == "" {
			currency = "USD"
		}
		prices = append(prices, domain.Price{
			Symbol:    domain.NormalizeSymbol(u.Symbol),
			Mid:       mid,
			Currency:  currency,
			UpdatedAt: now,
		})
	}

	written, err := s.repo.UpsertBatch(prices)
	if err != nil {
		return 0, fmt.Errorf("failed to store prices: %w", err)
	}

	if written > 0 && s.eventManager != nil {
		s.eventManager.EmitTyped(events.PriceUpdated, "pricing", events.PriceUpdatedData{
			Updated: written,
			Source:  source,
		})
	}

	s.log.Debug().Int("received", len(updates)).Int("written", written).Str("source", source).Msg("Updated prices")
	return written, nil
}

// GetPrice returns the cached price for a symbol, or nil when unknown.
func (s *Service) GetPrice(symbol string) (*domain.Price, error) {
	return s.repo.Get(symbol)
}

// GetFreshPrice returns the cached price plus a staleness flag.
func (s *Service) GetFreshPrice(symbol string) (*domain.Price, bool, error) {
	price, err := s.repo.Get(symbol)
	if err != nil {
		return nil, false, err
	}
	if price == nil {
		return nil, false, nil
	}
	stale, err := s.IsStale(*price)
	if err != nil {
		return nil, false, err
	}
	return price, stale, nil
}

// ListPrices returns every cached price keyed by symbol.
func (s *Service) ListPrices() (map[string]domain.Price, error) {
	return s.repo.GetAll()
}

// IsStale reports whether a price is older than the configured
// threshold. A zero or negative threshold disables the check.
func (s *Service) IsStale(price domain.Price) (bool, error) {
	seconds, err := s.settings.GetStalePriceSeconds()
	if err != nil {
		return false, fmt.Errorf("failed to read staleness threshold: %w", err)
	}
	if seconds <= 0 {
		return false, nil
	}
	return time.Since(price.UpdatedAt) > time.Duration(seconds)*time.Second, nil
}
