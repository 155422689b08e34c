package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
)

// PortfolioRepository persists portfolios in ledger.db. Cash updates
// happen only through UpdateCashTx inside a settlement or cash-flow
// transaction; there is no free-standing cash setter.
type PortfolioRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *sql.DB, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:  db,
		log: log.With().Str("repo", "portfolios").Logger(),
	}
}

// Create inserts a new portfolio with zero cash and a generated id.
func (r *PortfolioRepository) Create(name, baseCurrency string) (*domain.Portfolio, error) {
	p := &domain.Portfolio{
		ID:           uuid.New().String(),
		Name:         name,
		BaseCurrency: baseCurrency,
		Cash:         decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := r.db.Exec(`
		INSERT INTO portfolios (id, name, base_currency, cash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.BaseCurrency, p.Cash.String(), p.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	r.log.Info().Str("portfolio", p.ID).Str("name", name).Msg("Portfolio created")
	return p, nil
}

// Get returns one portfolio, nil when unknown.
func (r *PortfolioRepository) Get(id string) (*domain.Portfolio, error) {
	row := r.db.QueryRow(`
		SELECT id, name, base_currency, cash, created_at
		FROM portfolios WHERE id = ?
	`, id)

	p, err := scanPortfolio(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", id, err)
	}
	return p, nil
}

// GetTx is Get inside an open transaction, used by the settlement path
// so the cash it validates against cannot move before the update lands.
func (r *PortfolioRepository) GetTx(tx *sql.Tx, id string) (*domain.Portfolio, error) {
	row := tx.QueryRow(`
		SELECT id, name, base_currency, cash, created_at
		FROM portfolios WHERE id = ?
	`, id)

	p, err := scanPortfolio(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", id, err)
	}
	return p, nil
}

// GetAll returns every portfolio ordered by creation time.
func (r *PortfolioRepository) GetAll() ([]domain.Portfolio, error) {
	rows, err := r.db.Query(`
		SELECT id, name, base_currency, cash, created_at
		FROM portfolios ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var out []domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return out, nil
}

// UpdateCashTx sets the portfolio's cash inside an open transaction.
func (r *PortfolioRepository) UpdateCashTx(tx *sql.Tx, id string, cash decimal.Decimal) error {
	res, err := tx.Exec("UPDATE portfolios SET cash = ? WHERE id = ?", cash.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update cash for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("portfolio %s not found", id)
	}
	return nil
}

// Delete removes a portfolio; trades, positions and cash flows cascade.
func (r *PortfolioRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM portfolios WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
	}
	return nil
}

func scanPortfolio(scan func(dest ...interface{}) error) (*domain.Portfolio, error) {
	var p domain.Portfolio
	var cash string
	var createdUnix int64

	if err := scan(&p.ID, &p.Name, &p.BaseCurrency, &cash, &createdUnix); err != nil {
		return nil, err
	}

	var err error
	if p.Cash, err = domain.ParseDecimal(cash); err != nil {
		return nil, fmt.Errorf("portfolio %s: bad cash: %w", p.ID, err)
	}
	p.CreatedAt = time.Unix(createdUnix, 0).UTC()

	return &p, nil
}
