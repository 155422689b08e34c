package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Error taxonomy. Validation errors reject an operation before any state
// change; business-rule violations are terminal per-request outcomes;
// PersistenceError signals a failed write after which in-memory state has
// been rolled back. All are matched with errors.As.

// InvalidOrderError indicates a malformed or out-of-range order request
type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order: %s", e.Reason)
}

// InsufficientFundsError indicates a buy or withdrawal exceeding available cash
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s",
		e.Required.String(), e.Available.String())
}

// InsufficientPositionError indicates a sell exceeding the held quantity
// (no short selling)
type InsufficientPositionError struct {
	Symbol    string
	Requested decimal.Decimal
	Held      decimal.Decimal
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("insufficient position in %s: requested %s, held %s",
		e.Symbol, e.Requested.String(), e.Held.String())
}

// InsufficientDataError indicates an asset was excluded from scoring because
// too many required factors were missing from its snapshot
type InsufficientDataError struct {
	Symbol          string
	StrategyID      string
	MissingFields   []string
	MissingFraction float64
	MaxFraction     float64
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s under strategy %s: missing %s (%.0f%% > %.0f%% allowed)",
		e.Symbol, e.StrategyID, strings.Join(e.MissingFields, ", "),
		e.MissingFraction*100, e.MaxFraction*100)
}

// InvalidStrategyDefinitionError indicates a malformed strategy or blend
// definition. Raised at configuration load time, never during scoring.
type InvalidStrategyDefinitionError struct {
	StrategyID string
	Reason     string
}

func (e *InvalidStrategyDefinitionError) Error() string {
	return fmt.Sprintf("invalid strategy definition %q: %s", e.StrategyID, e.Reason)
}

// PersistenceError wraps a failed write. The operation's in-memory effects
// have been rolled back by the time this error is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
