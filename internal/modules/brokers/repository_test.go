package brokers

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/karvelas/lodestar/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// each new :memory: conn is a separate empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE broker_profiles (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			pip_pct          TEXT NOT NULL DEFAULT '0',
			flat_fee         TEXT NOT NULL DEFAULT '0',
			commission_pct   TEXT NOT NULL DEFAULT '0',
			min_order_value  TEXT NOT NULL DEFAULT '0',
			currencies       TEXT NOT NULL DEFAULT '',
			allow_fractional INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestProfileRepository_RoundTrip(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t), testLogger())

	profile := domain.BrokerProfile{
		ID:              "test",
		Name:            "Test Broker",
		PipPct:          d("0.002"),
		FlatFee:         d("1.50"),
		CommissionPct:   d("0.001"),
		MinOrderValue:   d("25"),
		Currencies:      []string{"USD", "EUR"},
		AllowFractional: true,
	}
	require.NoError(t, repo.Save(profile))

	loaded, err := repo.Get("test")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Test Broker", loaded.Name)
	assert.True(t, loaded.PipPct.Equal(d("0.002")))
	assert.True(t, loaded.FlatFee.Equal(d("1.50")))
	assert.Equal(t, []string{"USD", "EUR"}, loaded.Currencies)
	assert.True(t, loaded.AllowFractional)

	missing, err := repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProfileRepository_SaveReplacesExisting(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t), testLogger())

	profile := domain.BrokerProfile{ID: "test", Name: "Before", PipPct: d("0"), FlatFee: d("0"), CommissionPct: d("0"), MinOrderValue: d("0")}
	require.NoError(t, repo.Save(profile))

	profile.Name = "After"
	profile.FlatFee = d("2")
	require.NoError(t, repo.Save(profile))

	loaded, err := repo.Get("test")
	require.NoError(t, err)
	assert.Equal(t, "After", loaded.Name)
	assert.True(t, loaded.FlatFee.Equal(d("2")))

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProfileRepository_SeedDefaults(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t), testLogger())

	require.NoError(t, repo.SeedDefaults())

	zeroFee, err := repo.Get("zero-fee")
	require.NoError(t, err)
	require.NotNil(t, zeroFee)
	assert.True(t, zeroFee.PipPct.IsZero())
	assert.True(t, zeroFee.AllowFractional)
	// Empty currency list means unrestricted.
	assert.True(t, zeroFee.SupportsCurrency("JPY"))

	standard, err := repo.Get("standard")
	require.NoError(t, err)
	require.NotNil(t, standard)
	assert.False(t, standard.SupportsCurrency("JPY"))

	// Seeding again does not clobber edits.
	standard.Name = "Edited"
	require.NoError(t, repo.Save(*standard))
	require.NoError(t, repo.SeedDefaults())

	loaded, err := repo.Get("standard")
	require.NoError(t, err)
	assert.Equal(t, "Edited", loaded.Name)
}
