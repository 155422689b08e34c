package brokers

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karvelas/lodestar/internal/domain"
)

func d(s string) decimal.Decimal { return domain.MustDecimal(s) }

func pipOnlyProfile() *domain.BrokerProfile {
	return &domain.BrokerProfile{
		ID:              "pip-only",
		Name:            "Pip Only",
		PipPct:          d("0.001"),
		FlatFee:         d("0"),
		CommissionPct:   d("0"),
		MinOrderValue:   d("0"),
		AllowFractional: true,
	}
}

func TestPrice_BuyPipOnly(t *testing.T) {
	// pip 0.10%, mid 100, buy 10: exec 100.10, zero fees, cost 1001.00.
	quote, err := Price(pipOnlyProfile(), domain.SideBuy, d("10"), d("100"), "USD")
	require.NoError(t, err)

	assert.True(t, quote.ExecPrice.Equal(d("100.1")), "exec price %s", quote.ExecPrice)
	assert.True(t, quote.Fees.IsZero(), "fees %s", quote.Fees)
	assert.True(t, quote.NetAmount.Equal(d("1001.00")), "net %s", quote.NetAmount)
	assert.True(t, quote.PipCost.Equal(d("1")), "pip cost %s", quote.PipCost)
}

func TestPrice_SellPipMovesAgainstTrader(t *testing.T) {
	quote, err := Price(pipOnlyProfile(), domain.SideSell, d("10"), d("100"), "USD")
	require.NoError(t, err)

	assert.True(t, quote.ExecPrice.Equal(d("99.9")), "exec price %s", quote.ExecPrice)
	assert.True(t, quote.NetAmount.Equal(d("999")), "net %s", quote.NetAmount)
}

func TestPrice_FlatFeeAndCommissionStack(t *testing.T) {
	profile := &domain.BrokerProfile{
		ID:              "full",
		PipPct:          d("0.001"),
		FlatFee:         d("1"),
		CommissionPct:   d("0.0005"),
		MinOrderValue:   d("0"),
		AllowFractional: true,
	}

	quote, err := Price(profile, domain.SideBuy, d("10"), d("100"), "USD")
	require.NoError(t, err)

	// gross 1001, commission 0.5005, fees 1.5005, total 1002.5005.
	assert.True(t, quote.Gross.Equal(d("1001")), "gross %s", quote.Gross)
	assert.True(t, quote.Commission.Equal(d("0.5005")), "commission %s", quote.Commission)
	assert.True(t, quote.Fees.Equal(d("1.5005")), "fees %s", quote.Fees)
	assert.True(t, quote.NetAmount.Equal(d("1002.5005")), "net %s", quote.NetAmount)

	// Sells subtract the same fee structure.
	quote, err = Price(profile, domain.SideSell, d("10"), d("100"), "USD")
	require.NoError(t, err)
	// gross 999, commission 0.4995, net 999 - 1.4995.
	assert.True(t, quote.NetAmount.Equal(d("997.5005")), "net %s", quote.NetAmount)
}

func TestPrice_ExactDecimalNoDrift(t *testing.T) {
	// A value famously unrepresentable in binary floating point.
	profile := pipOnlyProfile()
	profile.PipPct = d("0")

	quote, err := Price(profile, domain.SideBuy, d("3"), d("0.1"), "USD")
	require.NoError(t, err)
	assert.True(t, quote.NetAmount.Equal(d("0.3")), "net %s", quote.NetAmount)
}

func TestPrice_InvalidOrders(t *testing.T) {
	nonFractional := &domain.BrokerProfile{
		ID:            "strict",
		PipPct:        d("0"),
		FlatFee:       d("0"),
		CommissionPct: d("0"),
		MinOrderValue: d("100"),
		Currencies:    []string{"USD"},
	}

	tests := []struct {
		name     string
		side     domain.Side
		qty      string
		mid      string
		currency string
	}{
		{"zero quantity", domain.SideBuy, "0", "100", "USD"},
		{"negative quantity", domain.SideBuy, "-5", "100", "USD"},
		{"zero mid price", domain.SideBuy, "10", "0", "USD"},
		{"fractional against non-fractional broker", domain.SideBuy, "1.5", "100", "USD"},
		{"below minimum order value", domain.SideBuy, "1", "50", "USD"},
		{"unsupported currency", domain.SideBuy, "10", "100", "JPY"},
		{"unknown side", domain.Side("HOLD"), "10", "100", "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Price(nonFractional, tt.side, d(tt.qty), d(tt.mid), tt.currency)
			require.Error(t, err)

			var invalid *domain.InvalidOrderError
			assert.True(t, errors.As(err, &invalid))
		})
	}
}

func TestPrice_MinOrderValueUsesGross(t *testing.T) {
	profile := &domain.BrokerProfile{
		ID:              "min100",
		PipPct:          d("0"),
		FlatFee:         d("0"),
		CommissionPct:   d("0"),
		MinOrderValue:   d("100"),
		AllowFractional: true,
	}

	_, err := Price(profile, domain.SideBuy, d("0.99"), d("100"), "USD")
	require.Error(t, err)

	quote, err := Price(profile, domain.SideBuy, d("1"), d("100"), "USD")
	require.NoError(t, err)
	assert.True(t, quote.Gross.Equal(d("100")))
}
