package universe

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/pkg/formulas"
)

// Technical indicator windows, in trading days.
const (
	momentumLookback = 63 // 3 months
	rsiPeriod        = 14
	volatilityWindow = 90
	closesFetchLimit = 120
)

// ClosesProvider supplies recent closing prices for technical factor
// computation. Defined here to avoid an import cycle with history.
type ClosesProvider interface {
	GetRecentCloses(symbol string, limit int) ([]float64, error)
}

// Service coordinates asset registration and snapshot ingestion.
type Service struct {
	assets       *AssetRepository
	snapshots    *SnapshotRepository
	closes       ClosesProvider
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new universe service
func NewService(
	assets *AssetRepository,
	snapshots *SnapshotRepository,
	closes ClosesProvider,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		assets:       assets,
		snapshots:    snapshots,
		closes:       closes,
		eventManager: eventManager,
		log:          log.With().Str("service", "universe").Logger(),
	}
}

// RegisterAssets validates and upserts a batch of assets. Invalid
// entries are reported per item; valid ones still land.
func (s *Service) RegisterAssets(assets []domain.Asset) (int, []error) {
	var errs []error
	registered := 0

	for _, asset := range assets {
		if err := s.assets.Upsert(asset); err != nil {
			errs = append(errs, fmt.Errorf("asset %s: %w", asset.Symbol, err))
			continue
		}
		registered++
	}

	s.log.Info().Int("registered", registered).Int("failed", len(errs)).Msg("Registered assets")
	return registered, errs
}

// ListAssets returns the full registry.
func (s *Service) ListAssets() ([]domain.Asset, error) {
	return s.assets.GetAll()
}

// GetAsset returns one asset, nil when unknown.
func (s *Service) GetAsset(symbol string) (*domain.Asset, error) {
	return s.assets.Get(symbol)
}

// RemoveAsset deletes an asset from the registry.
func (s *Service) RemoveAsset(symbol string) error {
	return s.assets.Delete(symbol)
}

// IngestSnapshots stores a batch of metric snapshots. Technical fields
// missing from a snapshot are computed from stored price history when
// possible, so callers may supply fundamentals only. Emits
// SnapshotIngested on success.
func (s *Service) IngestSnapshots(snapshots []domain.MetricSnapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	for i := range snapshots {
		s.fillTechnicals(&snapshots[i])
	}

	written, err := s.snapshots.SaveBatch(snapshots)
	if err != nil {
		return 0, fmt.Errorf("failed to save snapshots: %w", err)
	}

	if written > 0 && s.eventManager != nil {
		asOf := snapshots[0].AsOf
		s.eventManager.EmitTyped(events.SnapshotIngested, "universe", events.SnapshotIngestedData{
			Symbols: written,
			AsOf:    asOf.UTC().Format("2006-01-02"),
		})
	}

	return written, nil
}

// GetLatestSnapshot returns the newest snapshot for a symbol.
func (s *Service) GetLatestSnapshot(symbol string) (*domain.MetricSnapshot, error) {
	return s.snapshots.GetLatest(symbol)
}

// GetSnapshotHistory returns stored snapshots for a symbol, newest first.
func (s *Service) GetSnapshotHistory(symbol string, limit int) ([]domain.MetricSnapshot, error) {
	return s.snapshots.GetHistory(symbol, limit)
}

// LatestSnapshots returns the freshest snapshot per symbol.
func (s *Service) LatestSnapshots() (map[string]domain.MetricSnapshot, error) {
	return s.snapshots.GetLatestForAll()
}

// fillTechnicals computes momentum, RSI and volatility from price
// history for fields the inbound snapshot left nil. Fields stay nil
// when history is too short; scoring treats them as missing.
func (s *Service) fillTechnicals(snap *domain.MetricSnapshot) {
	if s.closes == nil {
		return
	}
	if snap.Momentum3M != nil && snap.RSI14 != nil && snap.Volatility90D != nil {
		return
	}

	closes, err := s.closes.GetRecentCloses(domain.NormalizeSymbol(snap.Symbol), closesFetchLimit)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", snap.Symbol).Msg("Failed to load closes for technicals")
		return
	}
	if len(closes) == 0 {
		return
	}

	if snap.Momentum3M == nil {
		snap.Momentum3M = formulas.CalculateMomentum(closes, momentumLookback)
	}
	if snap.RSI14 == nil {
		snap.RSI14 = formulas.CalculateRSI(closes, rsiPeriod)
	}
	if snap.Volatility90D == nil {
		snap.Volatility90D = formulas.CalculateVolatility(closes, volatilityWindow)
	}
}

// SnapshotAsOf normalizes an as-of timestamp to the calendar day.
func SnapshotAsOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
