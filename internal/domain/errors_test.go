package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_MatchWithErrorsAs(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"InvalidOrderError", &InvalidOrderError{Reason: "quantity must be positive"}},
		{"InsufficientFundsError", &InsufficientFundsError{Required: MustDecimal("1001"), Available: MustDecimal("1000")}},
		{"InsufficientPositionError", &InsufficientPositionError{Symbol: "AAPL", Requested: MustDecimal("20"), Held: MustDecimal("10")}},
		{"InsufficientDataError", &InsufficientDataError{Symbol: "AAPL", StrategyID: "value", MissingFields: []string{"pe"}, MissingFraction: 0.6, MaxFraction: 0.5}},
		{"InvalidStrategyDefinitionError", &InvalidStrategyDefinitionError{StrategyID: "value", Reason: "unknown factor"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Wrapping must not break matching
			wrapped := fmt.Errorf("failed to execute trade: %w", tc.err)

			switch want := tc.err.(type) {
			case *InvalidOrderError:
				var got *InvalidOrderError
				assert.ErrorAs(t, wrapped, &got)
				assert.Equal(t, want.Reason, got.Reason)
			case *InsufficientFundsError:
				var got *InsufficientFundsError
				assert.ErrorAs(t, wrapped, &got)
				assert.True(t, want.Required.Equal(got.Required))
			case *InsufficientPositionError:
				var got *InsufficientPositionError
				assert.ErrorAs(t, wrapped, &got)
				assert.Equal(t, want.Symbol, got.Symbol)
			case *InsufficientDataError:
				var got *InsufficientDataError
				assert.ErrorAs(t, wrapped, &got)
				assert.Equal(t, want.MissingFields, got.MissingFields)
			case *InvalidStrategyDefinitionError:
				var got *InvalidStrategyDefinitionError
				assert.ErrorAs(t, wrapped, &got)
				assert.Equal(t, want.StrategyID, got.StrategyID)
			}
		})
	}
}

func TestPersistenceError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{Op: "save trade", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "save trade")
	assert.Contains(t, err.Error(), "disk full")
}

func TestErrorMessages_NameTheViolatedConstraint(t *testing.T) {
	fundsErr := &InsufficientFundsError{Required: MustDecimal("1001.00"), Available: MustDecimal("1000")}
	assert.Contains(t, fundsErr.Error(), "1001")
	assert.Contains(t, fundsErr.Error(), "1000")

	posErr := &InsufficientPositionError{Symbol: "AAPL", Requested: MustDecimal("25"), Held: MustDecimal("20")}
	assert.Contains(t, posErr.Error(), "AAPL")

	dataErr := &InsufficientDataError{
		Symbol: "XYZ", StrategyID: "growth",
		MissingFields: []string{"peg", "fcf_growth"}, MissingFraction: 0.5, MaxFraction: 0.4,
	}
	assert.Contains(t, dataErr.Error(), "peg, fcf_growth")
	assert.Contains(t, dataErr.Error(), "growth")
}
