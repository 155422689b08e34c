// Package universe maintains the asset registry and the immutable
// metric snapshots scoring runs on.
package universe

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
)

// AssetRepository handles asset registry operations in universe.db.
type AssetRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *sql.DB, log zerolog.Logger) *AssetRepository {
	return &AssetRepository{
		db:  db,
		log: log.With().Str("repo", "assets").Logger(),
	}
}

// Upsert registers an asset or replaces its descriptive fields.
// The symbol is the identity; created_at survives re-registration.
func (r *AssetRepository) Upsert(asset domain.Asset) error {
	symbol := domain.NormalizeSymbol(asset.Symbol)
	if symbol == "" {
		return fmt.Errorf("asset symbol is required")
	}
	if !asset.Class.Valid() {
		return fmt.Errorf("unknown asset class %q for %s", asset.Class, symbol)
	}

	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO assets (symbol, exchange, class, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			exchange   = excluded.exchange,
			class      = excluded.class,
			name       = excluded.name,
			updated_at = excluded.updated_at
	`, symbol, asset.Exchange, string(asset.Class), asset.Name, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert asset %s: %w", symbol, err)
	}

	return nil
}

// Get returns an asset by symbol, nil when not registered.
func (r *AssetRepository) Get(symbol string) (*domain.Asset, error) {
	row := r.db.QueryRow(`
		SELECT symbol, exchange, class, name, created_at, updated_at
		FROM assets
		WHERE symbol = ?
	`, domain.NormalizeSymbol(symbol))

	asset, err := scanAsset(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return asset, nil
}

// GetAll returns every registered asset ordered by symbol.
func (r *AssetRepository) GetAll() ([]domain.Asset, error) {
	rows, err := r.db.Query(`
		SELECT symbol, exchange, class, name, created_at, updated_at
		FROM assets
		ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, *asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// GetAllSymbols returns every registered symbol ordered ascending.
func (r *AssetRepository) GetAllSymbols() ([]string, error) {
	rows, err := r.db.Query("SELECT symbol FROM assets ORDER BY symbol ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// Delete removes an asset from the registry. Snapshots and scores for
// the symbol are left in place; they are harmless without the asset.
func (r *AssetRepository) Delete(symbol string) error {
	result, err := r.db.Exec("DELETE FROM assets WHERE symbol = ?", domain.NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.log.Info().Str("symbol", symbol).Int64("rows_affected", rowsAffected).Msg("Asset deleted")
	return nil
}

// Count returns the number of registered assets.
func (r *AssetRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM assets").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}

func scanAsset(scan func(dest ...interface{}) error) (*domain.Asset, error) {
	var a domain.Asset
	var class string
	var createdUnix, updatedUnix int64

	if err := scan(&a.Symbol, &a.Exchange, &class, &a.Name, &createdUnix, &updatedUnix); err != nil {
		return nil, err
	}

	a.Class = domain.AssetClass(class)
	a.CreatedAt = time.Unix(createdUnix, 0).UTC()
	a.UpdatedAt = time.Unix(updatedUnix, 0).UTC()

	return &a, nil
}
