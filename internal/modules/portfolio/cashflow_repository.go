package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
)

// CashFlowRepository persists external cash movements in ledger.db.
// Append-only: rows are never updated or deleted.
type CashFlowRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCashFlowRepository creates a new cash flow repository
func NewCashFlowRepository(db *sql.DB, log zerolog.Logger) *CashFlowRepository {
	return &CashFlowRepository{
		db:  db,
		log: log.With().Str("repo", "cash_flows").Logger(),
	}
}

// AppendTx records a cash flow inside the transaction that also moves
// the portfolio's cash.
func (r *CashFlowRepository) AppendTx(tx *sql.Tx, flow *domain.CashFlow) error {
	res, err := tx.Exec(`
		INSERT INTO cash_flows (portfolio_id, type, amount, comment, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		flow.PortfolioID,
		string(flow.Type),
		flow.Amount.String(),
		flow.Comment,
		flow.OccurredAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append cash flow: %w", err)
	}

	flow.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read cash flow id: %w", err)
	}
	return nil
}

// List returns a portfolio's cash flows, newest first.
func (r *CashFlowRepository) List(portfolioID string, limit int) ([]domain.CashFlow, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT id, portfolio_id, type, amount, comment, occurred_at
		FROM cash_flows WHERE portfolio_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash flows: %w", err)
	}
	defer rows.Close()

	var out []domain.CashFlow
	for rows.Next() {
		var flow domain.CashFlow
		var flowType, amount string
		var occurredUnix int64

		if err := rows.Scan(&flow.ID, &flow.PortfolioID, &flowType, &amount, &flow.Comment, &occurredUnix); err != nil {
			return nil, fmt.Errorf("failed to scan cash flow: %w", err)
		}
		flow.Type = domain.CashFlowType(flowType)
		if flow.Amount, err = domain.ParseDecimal(amount); err != nil {
			return nil, fmt.Errorf("cash flow %d: bad amount: %w", flow.ID, err)
		}
		flow.OccurredAt = time.Unix(occurredUnix, 0).UTC()
		out = append(out, flow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash flows: %w", err)
	}

	return out, nil
}

// NetContributions returns deposits minus withdrawals for a portfolio,
// the baseline for total-return calculations.
func (r *CashFlowRepository) NetContributions(portfolioID string) (decimal.Decimal, error) {
	rows, err := r.db.Query(
		"SELECT type, amount FROM cash_flows WHERE portfolio_id = ?",
		portfolioID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	net := decimal.Zero
	for rows.Next() {
		var flowType, amount string
		if err := rows.Scan(&flowType, &amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan contribution: %w", err)
		}
		v, err := domain.ParseDecimal(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad contribution amount: %w", err)
		}
		if domain.CashFlowType(flowType) == domain.CashFlowDeposit {
			net = net.Add(v)
		} else {
			net = net.Sub(v)
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating contributions: %w", err)
	}

	return net, nil
}
