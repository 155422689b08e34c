package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/events"
	"github.com/karvelas/lodestar/internal/modules/settings"
	"github.com/karvelas/lodestar/internal/modules/strategies"
	"github.com/karvelas/lodestar/internal/modules/universe"
	"github.com/karvelas/lodestar/internal/utils"
)

// RunSummary reports the outcome of one scoring pass. A run succeeds
// partially: assets with insufficient data are skipped and listed in
// Skipped, everything else is scored and ranked.
type RunSummary struct {
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
	Assets     int            `json:"assets"`
	Strategies int            `json:"strategies"`
	Scored     int            `json:"scored"`
	Skipped    []SkippedAsset `json:"skipped,omitempty"`
	Rankings   []string       `json:"rankings"`
}

// SkippedAsset records one (symbol, strategy) pair excluded from a run.
type SkippedAsset struct {
	Symbol     string `json:"symbol"`
	StrategyID string `json:"strategy_id"`
	Reason     string `json:"reason"`
}

type scoreInput struct {
	def      strategies.StrategyDefinition
	snapshot domain.MetricSnapshot
}

type scoreOutput struct {
	result  *ScoreResult
	skipped *SkippedAsset
	err     error
}

// Service orchestrates scoring runs: fan out evaluation across a
// bounded worker pool, persist results, compose blends, rank, snapshot.
type Service struct {
	scores     *ScoreRepository
	rankings   *RankingRepository
	strategies *strategies.Service
	universe   *universe.Service
	settings   *settings.Service
	events     *events.Manager
	workers    int
	log        zerolog.Logger

	runMu sync.Mutex
}

// NewService creates a new scoring service. workers bounds the
// evaluation pool; values below 1 are clamped to 1.
func NewService(
	scores *ScoreRepository,
	rankings *RankingRepository,
	strategiesService *strategies.Service,
	universeService *universe.Service,
	settingsService *settings.Service,
	eventsManager *events.Manager,
	workers int,
	log zerolog.Logger,
) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		scores:     scores,
		rankings:   rankings,
		strategies: strategiesService,
		universe:   universeService,
		settings:   settingsService,
		events:     eventsManager,
		workers:    workers,
		log:        log.With().Str("module", "scoring").Logger(),
	}
}

// ScoreUniverse evaluates every enabled strategy against the latest
// snapshot of every asset, persists the results, recomposes all enabled
// blends and stores their ranking snapshots.
//
// Runs are serialized: a second caller blocks until the first finishes.
// Evaluation itself is embarrassingly parallel since each (asset,
// strategy) pair is independent, so it fans out across the worker pool.
func (s *Service) ScoreUniverse(ctx context.Context) (*RunSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	timer := utils.NewTimer("score_universe", s.log)
	defer timer.Stop()

	started := time.Now()

	defs := s.strategies.EnabledStrategies()
	if len(defs) == 0 {
		return nil, fmt.Errorf("no enabled strategies to score with")
	}

	snapshots, err := s.universe.LatestSnapshots()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("universe has no metric snapshots")
	}

	maxMissing, err := s.settings.GetMaxMissingFactorFraction()
	if err != nil {
		s.log.Warn().Err(err).Msg("Falling back to default missing-factor threshold")
	}

	summary := &RunSummary{
		StartedAt:  started,
		Assets:     len(snapshots),
		Strategies: len(defs),
	}

	results, skipped, err := s.evaluateAll(ctx, defs, snapshots, maxMissing)
	if err != nil {
		return nil, err
	}
	summary.Skipped = skipped

	// Persist per-strategy, emitting one ScoreUpdated per strategy so
	// listeners can refresh incrementally.
	byStrategy := make(map[string][]*ScoreResult)
	for _, res := range results {
		byStrategy[res.StrategyID] = append(byStrategy[res.StrategyID], res)
	}
	skippedByStrategy := make(map[string]int)
	for _, sk := range skipped {
		skippedByStrategy[sk.StrategyID]++
	}

	for _, def := range defs {
		batch := byStrategy[def.ID]
		if err := s.scores.SaveBatch(batch); err != nil {
			return nil, &domain.PersistenceError{Op: "save scores", Err: err}
		}
		summary.Scored += len(batch)

		s.events.EmitTyped(events.ScoreUpdated, "scoring", events.ScoreUpdatedData{
			StrategyID: def.ID,
			AsOf:       started.UTC().Format(time.RFC3339),
			Scored:     len(batch),
			Skipped:    skippedByStrategy[def.ID],
		})
	}

	if err := s.recomposeBlends(results); err != nil {
		return nil, err
	}
	for _, b := range s.strategies.EnabledBlends() {
		summary.Rankings = append(summary.Rankings, b.ID)
	}

	summary.Duration = time.Since(started)
	s.log.Info().
		Int("assets", summary.Assets).
		Int("strategies", summary.Strategies).
		Int("scored", summary.Scored).
		Int("skipped", len(summary.Skipped)).
		Dur("duration", summary.Duration).
		Msg("Scoring run complete")

	return summary, nil
}

// evaluateAll fans (strategy, snapshot) pairs out to the worker pool
// and collects results. Insufficient-data exclusions are expected
// outcomes, not failures; anything else aborts the run.
func (s *Service) evaluateAll(
	ctx context.Context,
	defs []strategies.StrategyDefinition,
	snapshots map[string]domain.MetricSnapshot,
	maxMissing float64,
) ([]*ScoreResult, []SkippedAsset, error) {
	total := len(defs) * len(snapshots)
	inputCh := make(chan scoreInput, total)
	resultCh := make(chan scoreOutput, total)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case input, ok := <-inputCh:
					if !ok {
						return
					}
					snap := input.snapshot
					res, err := Evaluate(input.def, &snap, maxMissing)

					var insufficient *domain.InsufficientDataError
					switch {
					case err == nil:
						resultCh <- scoreOutput{result: res}
					case errors.As(err, &insufficient):
						resultCh <- scoreOutput{skipped: &SkippedAsset{
							Symbol:     snap.Symbol,
							StrategyID: input.def.ID,
							Reason:     insufficient.Error(),
						}}
					default:
						resultCh <- scoreOutput{err: fmt.Errorf("scoring %s/%s: %w", snap.Symbol, input.def.ID, err)}
					}
				}
			}
		}()
	}

	for _, def := range defs {
		for _, snap := range snapshots {
			inputCh <- scoreInput{def: def, snapshot: snap}
		}
	}
	close(inputCh)

	wg.Wait()
	close(resultCh)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var results []*ScoreResult
	var skipped []SkippedAsset
	for out := range resultCh {
		switch {
		case out.err != nil:
			return nil, nil, out.err
		case out.skipped != nil:
			skipped = append(skipped, *out.skipped)
		default:
			results = append(results, out.result)
		}
	}

	return results, skipped, nil
}

// recomposeBlends rebuilds every enabled blend's ranking from a run's
// results and stores one snapshot per blend.
func (s *Service) recomposeBlends(results []*ScoreResult) error {
	// symbol -> strategy -> result
	bySymbol := make(map[string]map[string]*ScoreResult)
	for _, res := range results {
		if bySymbol[res.Symbol] == nil {
			bySymbol[res.Symbol] = make(map[string]*ScoreResult)
		}
		bySymbol[res.Symbol][res.StrategyID] = res
	}

	for _, blend := range s.strategies.EnabledBlends() {
		var blended []BlendedScore
		var asOf time.Time

		for symbol, perStrategy := range bySymbol {
			bs, err := ComposeBlend(blend, perStrategy)
			if err != nil {
				var insufficient *domain.InsufficientDataError
				if errors.As(err, &insufficient) {
					s.log.Debug().
						Str("symbol", symbol).
						Str("blend", blend.ID).
						Msg("Asset excluded from blend, no component scores")
					continue
				}
				return fmt.Errorf("composing blend %s for %s: %w", blend.ID, symbol, err)
			}
			if bs.AsOf.After(asOf) {
				asOf = bs.AsOf
			}
			blended = append(blended, *bs)
		}

		entries := Rank(blended)
		snapshot := &RankingSnapshot{
			BlendID: blend.ID,
			AsOf:    asOf,
			Entries: entries,
		}
		if err := s.rankings.Save(snapshot); err != nil {
			return &domain.PersistenceError{Op: "save ranking", Err: err}
		}

		s.events.EmitTyped(events.RankingUpdated, "scoring", events.RankingUpdatedData{
			BlendID: blend.ID,
			AsOf:    asOf.UTC().Format(time.RFC3339),
			Entries: len(entries),
		})
	}

	return nil
}

// GetRanking returns a page of the stored ranking for a blend. A nil
// snapshot means no scoring run has produced one yet.
func (s *Service) GetRanking(blendID string, offset, limit int) (*RankingSnapshot, []RankedEntry, error) {
	snapshot, err := s.rankings.Get(blendID)
	if err != nil {
		return nil, nil, err
	}
	if snapshot == nil {
		return nil, nil, nil
	}
	return snapshot, Page(snapshot.Entries, offset, limit), nil
}

// GetScores returns the latest per-strategy score results for a symbol.
func (s *Service) GetScores(symbol string) (map[string]*ScoreResult, error) {
	return s.scores.GetLatestForSymbol(symbol)
}
