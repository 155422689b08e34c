package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/config"
	"github.com/karvelas/lodestar/internal/database"
)

// InitializeDatabases opens all five databases and applies schemas.
// On any failure every database opened so far is closed.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	specs := []struct {
		name    string
		profile database.DatabaseProfile
		assign  func(*database.DB)
	}{
		{"universe", database.ProfileStandard, func(db *database.DB) { container.UniverseDB = db }},
		{"config", database.ProfileStandard, func(db *database.DB) { container.ConfigDB = db }},
		{"ledger", database.ProfileLedger, func(db *database.DB) { container.LedgerDB = db }},
		{"history", database.ProfileStandard, func(db *database.DB) { container.HistoryDB = db }},
		{"cache", database.ProfileCache, func(db *database.DB) { container.CacheDB = db }},
	}

	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, spec.name+".db"),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		spec.assign(db)
	}

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("All databases initialized and schemas applied")
	return container, nil
}
