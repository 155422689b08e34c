// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known values
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// AssetClass represents the class of a tradeable asset
type AssetClass string

const (
	AssetClassStock     AssetClass = "STOCK"
	AssetClassETF       AssetClass = "ETF"
	AssetClassCrypto    AssetClass = "CRYPTO"
	AssetClassCommodity AssetClass = "COMMODITY"
)

// Valid reports whether the asset class is known
func (c AssetClass) Valid() bool {
	switch c {
	case AssetClassStock, AssetClassETF, AssetClassCrypto, AssetClassCommodity:
		return true
	}
	return false
}

// DefaultUnit returns the unit quantities of this class are measured in.
// Commodities trade by weight, everything else by share.
func (c AssetClass) DefaultUnit() Unit {
	if c == AssetClassCommodity {
		return UnitGram
	}
	return UnitShare
}

// Unit represents the unit of measure for a traded quantity
type Unit string

const (
	UnitShare     Unit = "SHARE"
	UnitGram      Unit = "GRAM"
	UnitTroyOunce Unit = "TROY_OUNCE"
)

// Valid reports whether the unit is known
func (u Unit) Valid() bool {
	switch u {
	case UnitShare, UnitGram, UnitTroyOunce:
		return true
	}
	return false
}

// Asset identifies a tradeable instrument in the universe.
// Assets are immutable once created; re-registration with the same symbol
// replaces the descriptive fields (upsert semantics).
type Asset struct {
	Symbol    string     `json:"symbol"`
	Exchange  string     `json:"exchange"`
	Class     AssetClass `json:"class"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NormalizeSymbol uppercases and trims an asset symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// MetricField identifies one raw field of a MetricSnapshot.
// The set is closed: strategy definitions referencing anything else are
// rejected at load time, never at scoring time.
type MetricField string

const (
	FieldPE            MetricField = "pe"
	FieldPEG           MetricField = "peg"
	FieldDividendYield MetricField = "dividend_yield"
	FieldRevenueGrowth MetricField = "revenue_growth"
	FieldFCFGrowth     MetricField = "fcf_growth"
	FieldDebtToEquity  MetricField = "debt_to_equity"
	FieldMomentum3M    MetricField = "momentum_3m"
	FieldRSI14         MetricField = "rsi_14"
	FieldVolatility90D MetricField = "volatility_90d"
)

// KnownMetricFields lists every field a strategy definition may reference
var KnownMetricFields = []MetricField{
	FieldPE,
	FieldPEG,
	FieldDividendYield,
	FieldRevenueGrowth,
	FieldFCFGrowth,
	FieldDebtToEquity,
	FieldMomentum3M,
	FieldRSI14,
	FieldVolatility90D,
}

// KnownMetricField reports whether the field name is part of the closed set
func KnownMetricField(f MetricField) bool {
	for _, k := range KnownMetricFields {
		if k == f {
			return true
		}
	}
	return false
}

// MetricSnapshot is a point-in-time bundle of fundamental/technical fields
// for one symbol, keyed by (symbol, as-of date). Snapshots are immutable and
// superseded by newer ones, never edited in place. Nil fields are missing,
// not zero.
type MetricSnapshot struct {
	Symbol        string    `json:"symbol"`
	AsOf          time.Time `json:"as_of"`
	PE            *float64  `json:"pe,omitempty"`
	PEG           *float64  `json:"peg,omitempty"`
	DividendYield *float64  `json:"dividend_yield,omitempty"` // percent
	RevenueGrowth *float64  `json:"revenue_growth,omitempty"` // percent, year over year
	FCFGrowth     *float64  `json:"fcf_growth,omitempty"`     // percent, year over year
	DebtToEquity  *float64  `json:"debt_to_equity,omitempty"`
	Momentum3M    *float64  `json:"momentum_3m,omitempty"` // percent over trailing 3 months
	RSI14         *float64  `json:"rsi_14,omitempty"`
	Volatility90D *float64  `json:"volatility_90d,omitempty"` // annualized percent
	CreatedAt     time.Time `json:"created_at"`
}

// Field returns the raw value for a metric field, nil when missing
func (s *MetricSnapshot) Field(f MetricField) *float64 {
	switch f {
	case FieldPE:
		return s.PE
	case FieldPEG:
		return s.PEG
	case FieldDividendYield:
		return s.DividendYield
	case FieldRevenueGrowth:
		return s.RevenueGrowth
	case FieldFCFGrowth:
		return s.FCFGrowth
	case FieldDebtToEquity:
		return s.DebtToEquity
	case FieldMomentum3M:
		return s.Momentum3M
	case FieldRSI14:
		return s.RSI14
	case FieldVolatility90D:
		return s.Volatility90D
	}
	return nil
}

// SetField sets a metric field by name. Unknown fields are ignored.
func (s *MetricSnapshot) SetField(f MetricField, v *float64) {
	switch f {
	case FieldPE:
		s.PE = v
	case FieldPEG:
		s.PEG = v
	case FieldDividendYield:
		s.DividendYield = v
	case FieldRevenueGrowth:
		s.RevenueGrowth = v
	case FieldFCFGrowth:
		s.FCFGrowth = v
	case FieldDebtToEquity:
		s.DebtToEquity = v
	case FieldMomentum3M:
		s.Momentum3M = v
	case FieldRSI14:
		s.RSI14 = v
	case FieldVolatility90D:
		s.Volatility90D = v
	}
}

// BrokerProfile holds the fee model parameters of one broker.
// Immutable reference data, loaded once per simulation run.
type BrokerProfile struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	PipPct          decimal.Decimal `json:"pip_pct"`        // spread, fraction (0.001 = 0.10%)
	FlatFee         decimal.Decimal `json:"flat_fee"`       // per order, in trade currency
	CommissionPct   decimal.Decimal `json:"commission_pct"` // fraction of gross at execution price
	MinOrderValue   decimal.Decimal `json:"min_order_value"`
	Currencies      []string        `json:"currencies"`
	AllowFractional bool            `json:"allow_fractional"`
}

// SupportsCurrency reports whether the broker settles in the given currency.
// An empty currency list means no restriction.
func (b *BrokerProfile) SupportsCurrency(code string) bool {
	if len(b.Currencies) == 0 {
		return true
	}
	for _, c := range b.Currencies {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// CanExecute checks broker-level order constraints: fractional quantities,
// minimum order value and settlement currency. Returns an InvalidOrderError
// describing the first violated constraint, or nil.
func (b *BrokerProfile) CanExecute(quantity, estimatedValue decimal.Decimal, currency string) error {
	if !b.AllowFractional && !quantity.Equal(quantity.Truncate(0)) {
		return &InvalidOrderError{Reason: "broker does not support fractional quantities"}
	}
	if b.MinOrderValue.IsPositive() && estimatedValue.LessThan(b.MinOrderValue) {
		return &InvalidOrderError{
			Reason: "order value " + estimatedValue.String() + " below broker minimum " + b.MinOrderValue.String(),
		}
	}
	if !b.SupportsCurrency(currency) {
		return &InvalidOrderError{Reason: "currency " + currency + " not supported by broker"}
	}
	return nil
}

// Portfolio is the simulation aggregate root. Cash is the only mutable
// field and changes exclusively through settled trades or explicit
// deposits/withdrawals.
type Portfolio struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	BaseCurrency string          `json:"base_currency"`
	Cash         decimal.Decimal `json:"cash"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Trade is one immutable entry of the append-only audit log.
// Seq is monotonically increasing per portfolio and assigned at settlement.
type Trade struct {
	ID             int64           `json:"id"`
	Seq            int64           `json:"seq"`
	PortfolioID    string          `json:"portfolio_id"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	MidPrice       decimal.Decimal `json:"mid_price"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	PipCost        decimal.Decimal `json:"pip_cost"` // qty x |execution - mid|
	FlatFee        decimal.Decimal `json:"flat_fee"`
	Commission     decimal.Decimal `json:"commission"`
	TotalFees      decimal.Decimal `json:"total_fees"`   // flat + commission; pip lives in execution price
	GrossAmount    decimal.Decimal `json:"gross_amount"` // quantity x execution price
	NetAmount      decimal.Decimal `json:"net_amount"`   // buy: cash debited; sell: cash credited
	RealizedPnL    decimal.Decimal `json:"realized_pnl"` // sells only, zero on buys
	Unit           Unit            `json:"unit"`
	Currency       string          `json:"currency"`
	Comment        string          `json:"comment,omitempty"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

// Position is the derived aggregate for one (portfolio, symbol) pair.
// A position with zero quantity has no row: its cost basis is undefined.
type Position struct {
	PortfolioID string          `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	Unit        Unit            `json:"unit"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CashFlowType distinguishes external cash movements
type CashFlowType string

const (
	CashFlowDeposit    CashFlowType = "DEPOSIT"
	CashFlowWithdrawal CashFlowType = "WITHDRAWAL"
)

// CashFlow records an explicit deposit or withdrawal against a portfolio.
// Like trades, cash flows are append-only.
type CashFlow struct {
	ID          int64           `json:"id"`
	PortfolioID string          `json:"portfolio_id"`
	Type        CashFlowType    `json:"type"`
	Amount      decimal.Decimal `json:"amount"` // always positive; Type carries direction
	Comment     string          `json:"comment,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Price is one entry of the externally supplied price book
type Price struct {
	Symbol    string          `json:"symbol"`
	Mid       decimal.Decimal `json:"mid"`
	Currency  string          `json:"currency"`
	UpdatedAt time.Time       `json:"updated_at"`
}
