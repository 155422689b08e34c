package settings

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Setting keys. Stored in config.db, editable at runtime.
const (
	// KeyMaxMissingFactorFraction caps the fraction of strategy factors
	// that may be absent from a snapshot before scoring skips the asset.
	KeyMaxMissingFactorFraction = "max_missing_factor_fraction"

	// KeyStalePriceSeconds is the age beyond which a cached price is
	// flagged stale. Zero disables the check.
	KeyStalePriceSeconds = "stale_price_seconds"

	// KeyDefaultBlendID names the blend used when a ranking request
	// does not specify one.
	KeyDefaultBlendID = "default_blend_id"

	// KeyHistoryRetentionDays bounds how far back daily prices are kept.
	KeyHistoryRetentionDays = "history_retention_days"

	// KeyDefaultCurrency is the base currency for new portfolios.
	KeyDefaultCurrency = "default_currency"
)

// Defaults applied by EnsureDefaults and used as fallbacks by the
// typed getters.
const (
	DefaultMaxMissingFactorFraction = 0.5
	DefaultStalePriceSeconds        = 300
	DefaultBlendID                  = "balanced"
	DefaultHistoryRetentionDays     = 3650
	DefaultCurrency                 = "USD"
)

// Service provides typed access to application settings.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new settings service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// EnsureDefaults seeds missing settings with their default values.
// Existing values are never overwritten.
func (s *Service) EnsureDefaults() error {
	defaults := []struct {
		key   string
		value string
		desc  string
	}{
		{KeyMaxMissingFactorFraction, "0.5", "Max fraction of factors that may be missing before an asset is skipped"},
		{KeyStalePriceSeconds, "300", "Seconds before a cached price is considered stale (0 disables)"},
		{KeyDefaultBlendID, DefaultBlendID, "Blend used for rankings when none is given"},
		{KeyHistoryRetentionDays, "3650", "Days of daily price history to retain"},
		{KeyDefaultCurrency, DefaultCurrency, "Base currency for new portfolios"},
	}

	for _, d := range defaults {
		desc := d.desc
		if err := s.repo.SetIfAbsent(d.key, d.value, &desc); err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", d.key, err)
		}
	}

	return nil
}

// GetAll returns every setting as a string map.
func (s *Service) GetAll() (map[string]string, error) {
	return s.repo.GetAll()
}

// Get returns the raw value for a key, nil when absent.
func (s *Service) Get(key string) (*string, error) {
	return s.repo.Get(key)
}

// Set stores a raw string value.
func (s *Service) Set(key, value string) error {
	return s.repo.Set(key, value, nil)
}

// GetMaxMissingFactorFraction returns the scoring skip threshold.
func (s *Service) GetMaxMissingFactorFraction() (float64, error) {
	v, err := s.repo.GetFloat(KeyMaxMissingFactorFraction, DefaultMaxMissingFactorFraction)
	if err != nil {
		return DefaultMaxMissingFactorFraction, err
	}
	if v < 0 || v > 1 {
		s.log.Warn().Float64("value", v).Msg("max_missing_factor_fraction out of range, using default")
		return DefaultMaxMissingFactorFraction, nil
	}
	return v, nil
}

// SetMaxMissingFactorFraction validates and stores the skip threshold.
func (s *Service) SetMaxMissingFactorFraction(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("max_missing_factor_fraction must be in [0, 1], got %v", v)
	}
	return s.repo.SetFloat(KeyMaxMissingFactorFraction, v)
}

// GetStalePriceSeconds returns the price staleness threshold.
func (s *Service) GetStalePriceSeconds() (int, error) {
	v, err := s.repo.GetInt(KeyStalePriceSeconds, DefaultStalePriceSeconds)
	if err != nil {
		return DefaultStalePriceSeconds, err
	}
	if v < 0 {
		return DefaultStalePriceSeconds, nil
	}
	return v, nil
}

// GetDefaultBlendID returns the blend used when none is requested.
func (s *Service) GetDefaultBlendID() (string, error) {
	v, err := s.repo.Get(KeyDefaultBlendID)
	if err != nil {
		return DefaultBlendID, err
	}
	if v == nil || *v == "" {
		return DefaultBlendID, nil
	}
	return *v, nil
}

// GetHistoryRetentionDays returns how many days of price history to keep.
func (s *Service) GetHistoryRetentionDays() (int, error) {
	v, err := s.repo.GetInt(KeyHistoryRetentionDays, DefaultHistoryRetentionDays)
	if err != nil {
		return DefaultHistoryRetentionDays, err
	}
	if v < 1 {
		return DefaultHistoryRetentionDays, nil
	}
	return v, nil
}

// GetDefaultCurrency returns the base currency for new portfolios.
func (s *Service) GetDefaultCurrency() (string, error) {
	v, err := s.repo.Get(KeyDefaultCurrency)
	if err != nil {
		return DefaultCurrency, err
	}
	if v == nil || *v == "" {
		return DefaultCurrency, nil
	}
	return *v, nil
}
