package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
)

// TradeRepository persists the append-only trade log in ledger.db.
// There are no update or delete methods: corrections are compensating
// trades, and the log is the audit trail.
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trades").Logger(),
	}
}

// NextSeqTx computes the next per-portfolio sequence number inside the
// settlement transaction, so concurrent settlements cannot collide.
func (r *TradeRepository) NextSeqTx(tx *sql.Tx, portfolioID string) (int64, error) {
	var seq int64
	err := tx.QueryRow(
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM trades WHERE portfolio_id = ?",
		portfolioID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next seq for %s: %w", portfolioID, err)
	}
	return seq, nil
}

// AppendTx writes one trade inside the settlement transaction and fills
// in the generated row id.
func (r *TradeRepository) AppendTx(tx *sql.Tx, trade *domain.Trade) error {
	res, err := tx.Exec(`
		INSERT INTO trades
		(seq, portfolio_id, symbol, side, quantity, mid_price, execution_price,
		 pip_cost, flat_fee, commission, total_fees, gross_amount, net_amount,
		 realized_pnl, unit, currency, comment, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trade.Seq,
		trade.PortfolioID,
		trade.Symbol,
		string(trade.Side),
		trade.Quantity.String(),
		trade.MidPrice.String(),
		trade.ExecutionPrice.String(),
		trade.PipCost.String(),
		trade.FlatFee.String(),
		trade.Commission.String(),
		trade.TotalFees.String(),
		trade.GrossAmount.String(),
		trade.NetAmount.String(),
		trade.RealizedPnL.String(),
		string(trade.Unit),
		trade.Currency,
		trade.Comment,
		trade.ExecutedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append trade: %w", err)
	}

	trade.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read trade id: %w", err)
	}
	return nil
}

const tradeColumns = `id, seq, portfolio_id, symbol, side, quantity, mid_price,
	execution_price, pip_cost, flat_fee, commission, total_fees, gross_amount,
	net_amount, realized_pnl, unit, currency, comment, executed_at`

// History returns a portfolio's trades, newest first.
func (r *TradeRepository) History(portfolioID string, limit, offset int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		"SELECT "+tradeColumns+" FROM trades WHERE portfolio_id = ? ORDER BY seq DESC LIMIT ? OFFSET ?",
		portfolioID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// ListBySymbol returns a portfolio's trades in one symbol, oldest first,
// the order needed to replay a position.
func (r *TradeRepository) ListBySymbol(portfolioID, symbol string) ([]domain.Trade, error) {
	rows, err := r.db.Query(
		"SELECT "+tradeColumns+" FROM trades WHERE portfolio_id = ? AND symbol = ? ORDER BY seq ASC",
		portfolioID, domain.NormalizeSymbol(symbol),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// Count returns the number of trades recorded for a portfolio.
func (r *TradeRepository) Count(portfolioID string) (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM trades WHERE portfolio_id = ?", portfolioID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

// RealizedPnL sums realized profit and loss over the whole trade log.
// Summed in decimal, not SQL, because the column stores decimal strings.
func (r *TradeRepository) RealizedPnL(portfolioID string) (decimal.Decimal, error) {
	rows, err := r.db.Query(
		"SELECT realized_pnl FROM trades WHERE portfolio_id = ? AND side = 'SELL'",
		portfolioID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query realized pnl: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan realized pnl: %w", err)
		}
		v, err := domain.ParseDecimal(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad realized pnl value: %w", err)
		}
		total = total.Add(v)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating realized pnl: %w", err)
	}

	return total, nil
}

func collectTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return out, nil
}

func scanTrade(scan func(dest ...interface{}) error) (*domain.Trade, error) {
	var t domain.Trade
	var side, unit string
	var qty, mid, exec, pip, flat, commission, fees, gross, net, realized string
	var executedUnix int64

	err := scan(
		&t.ID, &t.Seq, &t.PortfolioID, &t.Symbol, &side, &qty, &mid,
		&exec, &pip, &flat, &commission, &fees, &gross,
		&net, &realized, &unit, &t.Currency, &t.Comment, &executedUnix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan trade: %w", err)
	}

	t.Side = domain.Side(side)
	t.Unit = domain.Unit(unit)
	t.ExecutedAt = time.Unix(executedUnix, 0).UTC()

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.Quantity, qty}, {&t.MidPrice, mid}, {&t.ExecutionPrice, exec},
		{&t.PipCost, pip}, {&t.FlatFee, flat}, {&t.Commission, commission},
		{&t.TotalFees, fees}, {&t.GrossAmount, gross}, {&t.NetAmount, net},
		{&t.RealizedPnL, realized},
	} {
		if *field.dst, err = domain.ParseDecimal(field.src); err != nil {
			return nil, fmt.Errorf("trade %d: bad decimal %q: %w", t.ID, field.src, err)
		}
	}

	return &t, nil
}
