package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/utils"
)

// PortfolioValuation is a daily snapshot of portfolio worth.
type PortfolioValuation struct {
	PortfolioID   string          `json:"portfolio_id"`
	Date          string          `json:"date"`
	Cash          decimal.Decimal `json:"cash"`
	MarketValue   decimal.Decimal `json:"market_value"`
	TotalValue    decimal.Decimal `json:"total_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ValuationRepository persists daily portfolio valuations in history.db.
type ValuationRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewValuationRepository(db *sql.DB, log zerolog.Logger) *ValuationRepository {
	return &ValuationRepository{
		db:  db,
		log: log.With().Str("repository", "valuations").Logger(),
	}
}

// Save inserts or replaces the valuation for the portfolio and date.
// Monetary values are stored as decimal strings.
func (r *ValuationRepository) Save(v *PortfolioValuation) error {
	dateUnix, err := utils.DateToUnix(v.Date)
	if err != nil {
		return fmt.Errorf("failed to parse valuation date: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO portfolio_valuations
		(portfolio_id, date, cash, market_value, total_value, unrealized_pnl, realized_pnl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		v.PortfolioID,
		dateUnix,
		v.Cash.String(),
		v.MarketValue.String(),
		v.TotalValue.String(),
		v.UnrealizedPnL.String(),
		v.RealizedPnL.String(),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save valuation: %w", err)
	}

	r.log.Debug().
		Str("portfolio_id", v.PortfolioID).
		Str("date", v.Date).
		Str("total_value", v.TotalValue.String()).
		Msg("Saved portfolio valuation")

	return nil
}

// GetRange returns valuations for a portfolio between from and to
// (inclusive, YYYY-MM-DD), oldest first.
func (r *ValuationRepository) GetRange(portfolioID, from, to string) ([]PortfolioValuation, error) {
	fromUnix, err := utils.DateToUnix(from)
	if err != nil {
		return nil, fmt.Errorf("invalid from date: %w", err)
	}
	toUnix, err := utils.DateToUnix(to)
	if err != nil {
		return nil, fmt.Errorf("invalid to date: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT portfolio_id, date, cash, market_value, total_value, unrealized_pnl, realized_pnl, created_at
		FROM portfolio_valuations
		WHERE portfolio_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, portfolioID, fromUnix, toUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuations: %w", err)
	}
	defer rows.Close()

	return scanValuations(rows)
}

// GetRecent returns the most recent valuations for a portfolio, newest
// first.
func (r *ValuationRepository) GetRecent(portfolioID string, limit int) ([]PortfolioValuation, error) {
	rows, err := r.db.Query(`
		SELECT portfolio_id, date, cash, market_value, total_value, unrealized_pnl, realized_pnl, created_at
		FROM portfolio_valuations
		WHERE portfolio_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent valuations: %w", err)
	}
	defer rows.Close()

	return scanValuations(rows)
}

func scanValuations(rows *sql.Rows) ([]PortfolioValuation, error) {
	var valuations []PortfolioValuation
	for rows.Next() {
		var v PortfolioValuation
		var dateUnix, createdUnix int64
		var cash, marketValue, totalValue, unrealized, realized string

		err := rows.Scan(&v.PortfolioID, &dateUnix, &cash, &marketValue, &totalValue, &unrealized, &realized, &createdUnix)
		if err != nil {
			return nil, fmt.Errorf("failed to scan valuation: %w", err)
		}

		v.Date = utils.UnixToDate(dateUnix)
		v.CreatedAt = time.Unix(createdUnix, 0).UTC()
		if v.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("invalid cash value: %w", err)
		}
		if v.MarketValue, err = decimal.NewFromString(marketValue); err != nil {
			return nil, fmt.Errorf("invalid market value: %w", err)
		}
		if v.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
			return nil, fmt.Errorf("invalid total value: %w", err)
		}
		if v.UnrealizedPnL, err = decimal.NewFromString(unrealized); err != nil {
			return nil, fmt.Errorf("invalid unrealized pnl: %w", err)
		}
		if v.RealizedPnL, err = decimal.NewFromString(realized); err != nil {
			return nil, fmt.Errorf("invalid realized pnl: %w", err)
		}

		valuations = append(valuations, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating valuations: %w", err)
	}

	return valuations, nil
}
