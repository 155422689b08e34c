package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
)

// PositionRepository persists derived positions in ledger.db. Mutations
// are transaction-scoped only: positions change exclusively inside a
// settlement transaction, in lockstep with the trade log and cash.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "positions").Logger(),
	}
}

// Get returns the position for one (portfolio, symbol), nil when flat.
func (r *PositionRepository) Get(portfolioID, symbol string) (*domain.Position, error) {
	row := r.db.QueryRow(`
		SELECT portfolio_id, symbol, quantity, avg_cost, unit, updated_at
		FROM positions WHERE portfolio_id = ? AND symbol = ?
	`, portfolioID, domain.NormalizeSymbol(symbol))

	p, err := scanPosition(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position %s/%s: %w", portfolioID, symbol, err)
	}
	return p, nil
}

// GetTx is Get inside an open settlement transaction.
func (r *PositionRepository) GetTx(tx *sql.Tx, portfolioID, symbol string) (*domain.Position, error) {
	row := tx.QueryRow(`
		SELECT portfolio_id, symbol, quantity, avg_cost, unit, updated_at
		FROM positions WHERE portfolio_id = ? AND symbol = ?
	`, portfolioID, domain.NormalizeSymbol(symbol))

	p, err := scanPosition(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position %s/%s: %w", portfolioID, symbol, err)
	}
	return p, nil
}

// GetAll returns every open position of a portfolio ordered by symbol.
func (r *PositionRepository) GetAll(portfolioID string) ([]domain.Position, error) {
	rows, err := r.db.Query(`
		SELECT portfolio_id, symbol, quantity, avg_cost, unit, updated_at
		FROM positions WHERE portfolio_id = ? ORDER BY symbol
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return out, nil
}

// UpsertTx writes a folded position inside an open transaction.
func (r *PositionRepository) UpsertTx(tx *sql.Tx, p domain.Position) error {
	_, err := tx.Exec(`
		INSERT INTO positions (portfolio_id, symbol, quantity, avg_cost, unit, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, symbol) DO UPDATE SET
			quantity   = excluded.quantity,
			avg_cost   = excluded.avg_cost,
			unit       = excluded.unit,
			updated_at = excluded.updated_at
	`,
		p.PortfolioID,
		domain.NormalizeSymbol(p.Symbol),
		p.Quantity.String(),
		p.AvgCost.String(),
		string(p.Unit),
		p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s/%s: %w", p.PortfolioID, p.Symbol, err)
	}
	return nil
}

// DeleteTx removes a closed position's row inside an open transaction.
func (r *PositionRepository) DeleteTx(tx *sql.Tx, portfolioID, symbol string) error {
	_, err := tx.Exec(
		"DELETE FROM positions WHERE portfolio_id = ? AND symbol = ?",
		portfolioID, domain.NormalizeSymbol(symbol),
	)
	if err != nil {
		return fmt.Errorf("failed to delete position %s/%s: %w", portfolioID, symbol, err)
	}
	return nil
}

func scanPosition(scan func(dest ...interface{}) error) (*domain.Position, error) {
	var p domain.Position
	var qty, avg, unit string
	var updatedUnix int64

	if err := scan(&p.PortfolioID, &p.Symbol, &qty, &avg, &unit, &updatedUnix); err != nil {
		return nil, err
	}

	var err error
	if p.Quantity, err = domain.ParseDecimal(qty); err != nil {
		return nil, fmt.Errorf("position %s: bad quantity: %w", p.Symbol, err)
	}
	if p.AvgCost, err = domain.ParseDecimal(avg); err != nil {
		return nil, fmt.Errorf("position %s: bad avg_cost: %w", p.Symbol, err)
	}
	p.Unit = domain.Unit(unit)
	p.UpdatedAt = time.Unix(updatedUnix, 0).UTC()

	return &p, nil
}
