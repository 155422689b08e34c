// Package pricing maintains the latest externally supplied mid price
// per symbol. Prices arrive over HTTP or the price feed WebSocket and
// are cached in cache.db; every execution and valuation reads from
// here.
package pricing

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
)

// PriceRepository handles latest-price persistence in cache.db.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// Upsert writes the latest mid price for a symbol. The mid is stored as
// a decimal string.
func (r *PriceRepository) Upsert(price domain.Price) error {
	symbol := domain.NormalizeSymbol(price.Symbol)
	if symbol == "" {
		return fmt.Errorf("price upsert requires a symbol")
	}
	if price.Mid.IsNegative() || price.Mid.IsZero() {
		return fmt.Errorf("price for %s must be positive, got %s", symbol, price.Mid)
	}
	updatedAt := price.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO latest_prices (symbol, mid, currency, updated_at)
		VALUES (?, ?, ?, ?)
	`, symbol, price.Mid.String(), price.Currency, updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}

	return nil
}

// UpsertBatch writes a batch of prices in one transaction and returns
// the number written.
func (r *PriceRepository) UpsertBatch(prices []domain.Price) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO latest_prices (symbol, mid, currency, updated_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	written := 0
	for _, price := range prices {
		symbol := domain.NormalizeSymbol(price.Symbol)
		if symbol == "" || price.Mid.IsZero() || price.Mid.IsNegative() {
			r.log.Warn().Str("symbol", price.Symbol).Str("mid", price.Mid.String()).Msg("Skipping invalid price")
			continue
		}
		updatedAt := price.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := stmt.Exec(symbol, price.Mid.String(), price.Currency, updatedAt.Unix()); err != nil {
			return 0, fmt.Errorf("failed to upsert price for %s: %w", symbol, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return written, nil
}

// Get returns the latest price for a symbol, or nil when none is
// cached.
func (r *PriceRepository) Get(symbol string) (*domain.Price, error) {
	row := r.db.QueryRow(`
		SELECT symbol, mid, currency, updated_at
		FROM latest_prices
		WHERE symbol = ?
	`, domain.NormalizeSymbol(symbol))

	price, err := scanPrice(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}

	return price, nil
}

// GetAll returns every cached price keyed by symbol.
func (r *PriceRepository) GetAll() (map[string]domain.Price, error) {
	rows, err := r.db.Query(`
		SELECT symbol, mid, currency, updated_at
		FROM latest_prices
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string]domain.Price)
	for rows.Next() {
		price, err := scanPrice(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices[price.Symbol] = *price
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return prices, nil
}

// Delete removes the cached price for a symbol.
func (r *PriceRepository) Delete(symbol string) error {
	_, err := r.db.Exec("DELETE FROM latest_prices WHERE symbol = ?", domain.NormalizeSymbol(symbol))
	if err != nil {
		return fmt.Errorf("failed to delete price: %w", err)
	}
	return nil
}

func scanPrice(scan func(dest ...interface{}) error) (*domain.Price, error) {
	var p domain.Price
	var mid string
	var updatedUnix int64

	if err := scan(&p.Symbol, &mid, &p.Currency, &updatedUnix); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(mid)
	if err != nil {
		return nil, fmt.Errorf("invalid stored mid price %q: %w", mid, err)
	}
	p.Mid = parsed
	p.UpdatedAt = time.Unix(updatedUnix, 0).UTC()

	return &p, nil
}
