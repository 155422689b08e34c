package strategies

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Service holds the validated, in-memory view of all strategy and blend
// configuration. LoadAll runs at startup and fails fast on any malformed
// definition; scoring reads from the cached maps and never revalidates.
type Service struct {
	repo *Repository
	log  zerolog.Logger

	mu         sync.RWMutex
	strategies map[string]StrategyDefinition
	blends     map[string]Blend
}

// NewService creates a new strategies service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		log:        log.With().Str("service", "strategies").Logger(),
		strategies: make(map[string]StrategyDefinition),
		blends:     make(map[string]Blend),
	}
}

// LoadAll seeds defaults on first run, then loads and validates every
// definition. Any InvalidStrategyDefinitionError here aborts startup;
// a broken configuration must never reach the scoring pipeline.
func (s *Service) LoadAll() error {
	if err := s.repo.SeedDefaults(); err != nil {
		return fmt.Errorf("failed to seed default strategies: %w", err)
	}

	defs, err := s.repo.GetAllStrategies()
	if err != nil {
		return fmt.Errorf("failed to load strategies: %w", err)
	}

	loaded := make(map[string]StrategyDefinition, len(defs))
	known := make(map[string]bool, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
		loaded[def.ID] = def
		known[def.ID] = true
	}

	blendDefs, err := s.repo.GetAllBlends()
	if err != nil {
		return fmt.Errorf("failed to load blends: %w", err)
	}

	loadedBlends := make(map[string]Blend, len(blendDefs))
	for _, b := range blendDefs {
		if err := b.Validate(known); err != nil {
			return err
		}
		if exact := b.Normalize(); !exact {
			s.log.Warn().Str("blend", b.ID).Msg("Blend weights did not sum to 1, renormalized")
		}
		loadedBlends[b.ID] = b
	}

	s.mu.Lock()
	s.strategies = loaded
	s.blends = loadedBlends
	s.mu.Unlock()

	s.log.Info().
		Int("strategies", len(loaded)).
		Int("blends", len(loadedBlends)).
		Msg("Strategy configuration loaded")

	return nil
}

// Strategies returns all loaded strategy definitions keyed by id.
func (s *Service) Strategies() map[string]StrategyDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]StrategyDefinition, len(s.strategies))
	for id, def := range s.strategies {
		out[id] = def
	}
	return out
}

// EnabledStrategies returns the loaded definitions with Enabled set.
func (s *Service) EnabledStrategies() []StrategyDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StrategyDefinition
	for _, def := range s.strategies {
		if def.Enabled {
			out = append(out, def)
		}
	}
	return out
}

// Strategy returns one loaded definition, nil when unknown.
func (s *Service) Strategy(id string) *StrategyDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.strategies[id]
	if !ok {
		return nil
	}
	return &def
}

// Blends returns all loaded blends keyed by id, weights normalized.
func (s *Service) Blends() map[string]Blend {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Blend, len(s.blends))
	for id, b := range s.blends {
		out[id] = b
	}
	return out
}

// EnabledBlends returns the loaded blends with Enabled set.
func (s *Service) EnabledBlends() []Blend {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Blend
	for _, b := range s.blends {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}

// Blend returns one loaded blend, nil when unknown.
func (s *Service) Blend(id string) *Blend {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blends[id]
	if !ok {
		return nil
	}
	return &b
}

// UpsertStrategy validates, persists, and reloads a definition. Used by
// the configuration API; the running pipeline only sees the new version
// after the reload completes.
func (s *Service) UpsertStrategy(def StrategyDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveStrategy(def); err != nil {
		return err
	}
	return s.LoadAll()
}

// UpsertBlend validates, persists, and reloads a blend.
func (s *Service) UpsertBlend(b Blend) error {
	s.mu.RLock()
	known := make(map[string]bool, len(s.strategies))
	for id := range s.strategies {
		known[id] = true
	}
	s.mu.RUnlock()

	if err := b.Validate(known); err != nil {
		return err
	}
	if err := s.repo.SaveBlend(b); err != nil {
		return err
	}
	return s.LoadAll()
}
