package scoring

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/database"
	"github.com/karvelas/lodestar/internal/domain"
)

// ScoreRepository persists ScoreResults in universe.db. Scores are
// derived data: rows for the same (symbol, strategy, as_of) are
// replaced on recomputation, older as_of rows are kept for history.
type ScoreRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *sql.DB, log zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{
		db:  db,
		log: log.With().Str("repo", "scores").Logger(),
	}
}

// SaveBatch stores a batch of score results in one transaction.
func (r *ScoreRepository) SaveBatch(results []*ScoreResult) error {
	if len(results) == 0 {
		return nil
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO score_results
			(symbol, strategy_id, as_of, score, components, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare score insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for _, res := range results {
			components, err := json.Marshal(res.Components)
			if err != nil {
				return fmt.Errorf("failed to marshal components for %s: %w", res.Symbol, err)
			}

			_, err = stmt.Exec(
				res.Symbol,
				res.StrategyID,
				res.AsOf.Unix(),
				res.Score,
				string(components),
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert score for %s/%s: %w", res.Symbol, res.StrategyID, err)
			}
		}

		return nil
	})
}

// GetLatestForSymbol returns the newest score per strategy for a symbol.
func (r *ScoreRepository) GetLatestForSymbol(symbol string) (map[string]*ScoreResult, error) {
	rows, err := r.db.Query(`
		SELECT symbol, strategy_id, as_of, score, components
		FROM score_results s1
		WHERE symbol = ?
		  AND as_of = (
			SELECT MAX(as_of) FROM score_results s2
			WHERE s2.symbol = s1.symbol AND s2.strategy_id = s1.strategy_id
		  )
	`, domain.NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*ScoreResult)
	for rows.Next() {
		res, err := scanScore(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[res.StrategyID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return out, nil
}

// GetForStrategy returns the newest score per symbol for one strategy.
func (r *ScoreRepository) GetForStrategy(strategyID string) (map[string]*ScoreResult, error) {
	rows, err := r.db.Query(`
		SELECT symbol, strategy_id, as_of, score, components
		FROM score_results s1
		WHERE strategy_id = ?
		  AND as_of = (
			SELECT MAX(as_of) FROM score_results s2
			WHERE s2.symbol = s1.symbol AND s2.strategy_id = s1.strategy_id
		  )
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*ScoreResult)
	for rows.Next() {
		res, err := scanScore(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[res.Symbol] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy scores: %w", err)
	}

	return out, nil
}

func scanScore(scan func(dest ...interface{}) error) (*ScoreResult, error) {
	var res ScoreResult
	var asOfUnix int64
	var componentsJSON string

	if err := scan(&res.Symbol, &res.StrategyID, &asOfUnix, &res.Score, &componentsJSON); err != nil {
		return nil, fmt.Errorf("failed to scan score: %w", err)
	}

	res.AsOf = time.Unix(asOfUnix, 0).UTC()
	if componentsJSON != "" {
		if err := json.Unmarshal([]byte(componentsJSON), &res.Components); err != nil {
			return nil, fmt.Errorf("failed to unmarshal components for %s: %w", res.Symbol, err)
		}
	}

	return &res, nil
}
