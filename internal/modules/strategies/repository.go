package strategies

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/database"
)

// Repository persists strategy definitions and blends in config.db.
// One repository covers both because a blend is meaningless without the
// strategies it references.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new strategies repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "strategies").Logger(),
	}
}

// GetAllStrategies returns every stored strategy with its ordered
// factor list.
func (r *Repository) GetAllStrategies() ([]StrategyDefinition, error) {
	rows, err := r.db.Query(`
		SELECT id, name, version, description, enabled, created_at
		FROM strategies
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	var defs []StrategyDefinition
	for rows.Next() {
		var def StrategyDefinition
		var enabled int
		var createdUnix int64
		if err := rows.Scan(&def.ID, &def.Name, &def.Version, &def.Description, &enabled, &createdUnix); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		def.Enabled = enabled != 0
		def.CreatedAt = time.Unix(createdUnix, 0).UTC()
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategies: %w", err)
	}

	for i := range defs {
		factors, err := r.getFactors(defs[i].ID)
		if err != nil {
			return nil, err
		}
		defs[i].Factors = factors
	}

	return defs, nil
}

func (r *Repository) getFactors(strategyID string) ([]FactorSpec, error) {
	rows, err := r.db.Query(`
		SELECT field, weight, direction, lower_bound, upper_bound
		FROM strategy_factors
		WHERE strategy_id = ?
		ORDER BY position ASC, field ASC
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query factors for %s: %w", strategyID, err)
	}
	defer rows.Close()

	var factors []FactorSpec
	for rows.Next() {
		var f FactorSpec
		if err := rows.Scan(&f.Field, &f.Weight, &f.Direction, &f.LowerBound, &f.UpperBound); err != nil {
			return nil, fmt.Errorf("failed to scan factor: %w", err)
		}
		factors = append(factors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating factors: %w", err)
	}

	return factors, nil
}

// SaveStrategy stores a definition and its factors atomically, replacing
// any previous factor list for the same id.
func (r *Repository) SaveStrategy(def StrategyDefinition) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		enabled := 0
		if def.Enabled {
			enabled = 1
		}

		_, err := tx.Exec(`
			INSERT INTO strategies (id, name, version, description, enabled, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name        = excluded.name,
				version     = excluded.version,
				description = excluded.description,
				enabled     = excluded.enabled
		`, def.ID, def.Name, def.Version, def.Description, enabled, now)
		if err != nil {
			return fmt.Errorf("failed to upsert strategy %s: %w", def.ID, err)
		}

		if _, err := tx.Exec("DELETE FROM strategy_factors WHERE strategy_id = ?", def.ID); err != nil {
			return fmt.Errorf("failed to clear factors for %s: %w", def.ID, err)
		}

		for i, f := range def.Factors {
			_, err := tx.Exec(`
				INSERT INTO strategy_factors
				(strategy_id, field, weight, direction, lower_bound, upper_bound, position)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, def.ID, string(f.Field), f.Weight, string(f.Direction), f.LowerBound, f.UpperBound, i)
			if err != nil {
				return fmt.Errorf("failed to insert factor %s for %s: %w", f.Field, def.ID, err)
			}
		}

		return nil
	})
}

// CountStrategies returns the number of stored strategies.
func (r *Repository) CountStrategies() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM strategies").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count strategies: %w", err)
	}
	return count, nil
}

// GetAllBlends returns every stored blend with its ordered components.
func (r *Repository) GetAllBlends() ([]Blend, error) {
	rows, err := r.db.Query(`
		SELECT id, name, description, enabled, created_at
		FROM blends
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blends: %w", err)
	}
	defer rows.Close()

	var blends []Blend
	for rows.Next() {
		var b Blend
		var enabled int
		var createdUnix int64
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &enabled, &createdUnix); err != nil {
			return nil, fmt.Errorf("failed to scan blend: %w", err)
		}
		b.Enabled = enabled != 0
		b.CreatedAt = time.Unix(createdUnix, 0).UTC()
		blends = append(blends, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blends: %w", err)
	}

	for i := range blends {
		components, err := r.getComponents(blends[i].ID)
		if err != nil {
			return nil, err
		}
		blends[i].Components = components
	}

	return blends, nil
}

func (r *Repository) getComponents(blendID string) ([]BlendComponent, error) {
	rows, err := r.db.Query(`
		SELECT strategy_id, weight
		FROM blend_components
		WHERE blend_id = ?
		ORDER BY position ASC, strategy_id ASC
	`, blendID)
	if err != nil {
		return nil, fmt.Errorf("failed to query components for %s: %w", blendID, err)
	}
	defer rows.Close()

	var components []BlendComponent
	for rows.Next() {
		var c BlendComponent
		if err := rows.Scan(&c.StrategyID, &c.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating components: %w", err)
	}

	return components, nil
}

// SaveBlend stores a blend and its components atomically.
func (r *Repository) SaveBlend(b Blend) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		enabled := 0
		if b.Enabled {
			enabled = 1
		}

		_, err := tx.Exec(`
			INSERT INTO blends (id, name, description, enabled, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name        = excluded.name,
				description = excluded.description,
				enabled     = excluded.enabled
		`, b.ID, b.Name, b.Description, enabled, now)
		if err != nil {
			return fmt.Errorf("failed to upsert blend %s: %w", b.ID, err)
		}

		if _, err := tx.Exec("DELETE FROM blend_components WHERE blend_id = ?", b.ID); err != nil {
			return fmt.Errorf("failed to clear components for %s: %w", b.ID, err)
		}

		for i, c := range b.Components {
			_, err := tx.Exec(`
				INSERT INTO blend_components (blend_id, strategy_id, weight, position)
				VALUES (?, ?, ?, ?)
			`, b.ID, c.StrategyID, c.Weight, i)
			if err != nil {
				return fmt.Errorf("failed to insert component %s for %s: %w", c.StrategyID, b.ID, err)
			}
		}

		return nil
	})
}

// CountBlends returns the number of stored blends.
func (r *Repository) CountBlends() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM blends").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count blends: %w", err)
	}
	return count, nil
}
