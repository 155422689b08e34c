package strategies

import (
	"database/sql"
	"errors"
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
		CREATE TABLE strategies (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			version     INTEGER NOT NULL DEFAULT 1,
			description TEXT NOT NULL DEFAULT '',
			enabled     INTEGER NOT NULL DEFAULT 1,
			created_at  INTEGER NOT NULL
		);
		CREATE TABLE strategy_factors (
			strategy_id TEXT NOT NULL,
			field       TEXT NOT NULL,
			weight      REAL NOT NULL,
			direction   TEXT NOT NULL,
			lower_bound REAL NOT NULL,
			upper_bound REAL NOT NULL,
			position    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (strategy_id, field)
		);
		CREATE TABLE blends (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			enabled     INTEGER NOT NULL DEFAULT 1,
			created_at  INTEGER NOT NULL
		);
		CREATE TABLE blend_components (
			blend_id    TEXT NOT NULL,
			strategy_id TEXT NOT NULL,
			weight      REAL NOT NULL,
			position    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (blend_id, strategy_id)
		);
	`)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestRepository_SaveAndLoadStrategy(t *testing.T) {
	repo := NewRepository(setupTestDB(t), testLogger())

	def := validStrategy()
	require.NoError(t, repo.SaveStrategy(def))

	defs, err := repo.GetAllStrategies()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "test", defs[0].ID)
	require.Len(t, defs[0].Factors, 2)
	// Factor order survives the round trip.
	assert.Equal(t, domain.FieldPE, defs[0].Factors[0].Field)
	assert.Equal(t, DirectionLower, defs[0].Factors[0].Direction)
	assert.Equal(t, 0.5, defs[0].Factors[0].Weight)
}

func TestRepository_SaveStrategyReplacesFactors(t *testing.T) {
	repo := NewRepository(setupTestDB(t), testLogger())

	def := validStrategy()
	require.NoError(t, repo.SaveStrategy(def))

	def.Factors = def.Factors[:1]
	require.NoError(t, repo.SaveStrategy(def))

	defs, err := repo.GetAllStrategies()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Len(t, defs[0].Factors, 1)
}

func TestService_LoadAllSeedsDefaults(t *testing.T) {
	repo := NewRepository(setupTestDB(t), testLogger())
	svc := NewService(repo, testLogger())

	require.NoError(t, svc.LoadAll())

	assert.NotNil(t, svc.Strategy("value"))
	assert.NotNil(t, svc.Strategy("growth"))
	assert.NotNil(t, svc.Strategy("quality"))
	assert.NotNil(t, svc.Strategy("momentum"))
	assert.NotNil(t, svc.Blend("balanced"))
	assert.Nil(t, svc.Strategy("nope"))
}

func TestService_LoadAllFailsFastOnUnknownFactor(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, testLogger())
	svc := NewService(repo, testLogger())
	require.NoError(t, svc.LoadAll())

	// Corrupt a factor row behind the repository's back; the next load
	// must refuse the whole configuration.
	_, err := db.Exec("UPDATE strategy_factors SET field = 'book_value' WHERE strategy_id = 'value' AND field = 'pe'")
	require.NoError(t, err)

	err = svc.LoadAll()
	require.Error(t, err)

	var invalid *domain.InvalidStrategyDefinitionError
	assert.True(t, errors.As(err, &invalid))
}

func TestService_LoadAllNormalizesBlendWeights(t *testing.T) {
	repo := NewRepository(setupTestDB(t), testLogger())
	svc := NewService(repo, testLogger())
	require.NoError(t, svc.LoadAll())

	// Store a blend with weights summing to 2; the loaded view must be
	// normalized to sum exactly 1.
	require.NoError(t, repo.SaveBlend(Blend{
		ID:      "lopsided",
		Name:    "Lopsided",
		Enabled: true,
		Components: []BlendComponent{
			{StrategyID: "value", Weight: 1.5},
			{StrategyID: "growth", Weight: 0.5},
		},
	}))
	require.NoError(t, svc.LoadAll())

	b := svc.Blend("lopsided")
	require.NotNil(t, b)

	var sum float64
	for _, c := range b.Components {
		sum += c.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.75, b.Components[0].Weight, 1e-9)
}

func TestService_UpsertBlendRejectsUnknownStrategy(t *testing.T) {
	repo := NewRepository(setupTestDB(t), testLogger())
	svc := NewService(repo, testLogger())
	require.NoError(t, svc.LoadAll())

	err := svc.UpsertBlend(Blend{
		ID:         "bad",
		Components: []BlendComponent{{StrategyID: "does_not_exist", Weight: 1}},
	})
	require.Error(t, err)

	var invalid *domain.InvalidStrategyDefinitionError
	assert.True(t, errors.As(err, &invalid))
	assert.Nil(t, svc.Blend("bad"))
}
