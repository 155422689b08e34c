package universe

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/utils"
)

// SnapshotRepository handles metric snapshot persistence in universe.db.
// Snapshots are immutable: a batch re-supplied for the same (symbol,
// as_of) replaces the previous row, older as_of rows are never touched.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// SaveBatch stores a batch of snapshots in one transaction and returns
// the number written.
func (r *SnapshotRepository) SaveBatch(snapshots []domain.MetricSnapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO metric_snapshots
		(symbol, as_of, pe, peg, dividend_yield, revenue_growth, fcf_growth,
		 debt_to_equity, momentum_3m, rsi_14, volatility_90d, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, as_of) DO UPDATE SET
			pe             = excluded.pe,
			peg            = excluded.peg,
			dividend_yield = excluded.dividend_yield,
			revenue_growth = excluded.revenue_growth,
			fcf_growth     = excluded.fcf_growth,
			debt_to_equity = excluded.debt_to_equity,
			momentum_3m    = excluded.momentum_3m,
			rsi_14         = excluded.rsi_14,
			volatility_90d = excluded.volatility_90d,
			created_at     = excluded.created_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	written := 0
	for _, snap := range snapshots {
		symbol := domain.NormalizeSymbol(snap.Symbol)
		if symbol == "" || snap.AsOf.IsZero() {
			r.log.Warn().Str("symbol", snap.Symbol).Msg("Skipping snapshot without symbol or as_of")
			continue
		}

		asOf := utils.MidnightUTC(snap.AsOf).Unix()
		_, err := stmt.Exec(
			symbol,
			asOf,
			nullableFloat(snap.PE),
			nullableFloat(snap.PEG),
			nullableFloat(snap.DividendYield),
			nullableFloat(snap.RevenueGrowth),
			nullableFloat(snap.FCFGrowth),
			nullableFloat(snap.DebtToEquity),
			nullableFloat(snap.Momentum3M),
			nullableFloat(snap.RSI14),
			nullableFloat(snap.Volatility90D),
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save snapshot for %s: %w", symbol, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return written, nil
}

// GetLatest returns the most recent snapshot for a symbol, nil when
// none exists.
func (r *SnapshotRepository) GetLatest(symbol string) (*domain.MetricSnapshot, error) {
	row := r.db.QueryRow(`
		SELECT symbol, as_of, pe, peg, dividend_yield, revenue_growth, fcf_growth,
		       debt_to_equity, momentum_3m, rsi_14, volatility_90d, created_at
		FROM metric_snapshots
		WHERE symbol = ?
		ORDER BY as_of DESC
		LIMIT 1
	`, domain.NormalizeSymbol(symbol))

	snap, err := scanSnapshot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return snap, nil
}

// GetLatestForAll returns the most recent snapshot per symbol, keyed by
// symbol. One query; the per-symbol maximum as_of wins.
func (r *SnapshotRepository) GetLatestForAll() (map[string]domain.MetricSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT s.symbol, s.as_of, s.pe, s.peg, s.dividend_yield, s.revenue_growth,
		       s.fcf_growth, s.debt_to_equity, s.momentum_3m, s.rsi_14, s.volatility_90d, s.created_at
		FROM metric_snapshots s
		JOIN (
			SELECT symbol, MAX(as_of) AS max_as_of
			FROM metric_snapshots
			GROUP BY symbol
		) latest ON s.symbol = latest.symbol AND s.as_of = latest.max_as_of
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[string]domain.MetricSnapshot)
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots[snap.Symbol] = *snap
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// GetHistory returns snapshots for a symbol, newest first.
func (r *SnapshotRepository) GetHistory(symbol string, limit int) ([]domain.MetricSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT symbol, as_of, pe, peg, dividend_yield, revenue_growth, fcf_growth,
		       debt_to_equity, momentum_3m, rsi_14, volatility_90d, created_at
		FROM metric_snapshots
		WHERE symbol = ?
		ORDER BY as_of DESC
		LIMIT ?
	`, domain.NormalizeSymbol(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.MetricSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot history: %w", err)
	}

	return snapshots, nil
}

func scanSnapshot(scan func(dest ...interface{}) error) (*domain.MetricSnapshot, error) {
	var s domain.MetricSnapshot
	var asOfUnix, createdUnix int64
	var pe, peg, divYield, revGrowth, fcfGrowth, debtEq, mom, rsi, vol sql.NullFloat64

	err := scan(&s.Symbol, &asOfUnix, &pe, &peg, &divYield, &revGrowth,
		&fcfGrowth, &debtEq, &mom, &rsi, &vol, &createdUnix)
	if err != nil {
		return nil, err
	}

	s.AsOf = time.Unix(asOfUnix, 0).UTC()
	s.CreatedAt = time.Unix(createdUnix, 0).UTC()
	s.PE = floatPtr(pe)
	s.PEG = floatPtr(peg)
	s.DividendYield = floatPtr(divYield)
	s.RevenueGrowth = floatPtr(revGrowth)
	s.FCFGrowth = floatPtr(fcfGrowth)
	s.DebtToEquity = floatPtr(debtEq)
	s.Momentum3M = floatPtr(mom)
	s.RSI14 = floatPtr(rsi)
	s.Volatility90D = floatPtr(vol)

	return &s, nil
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
