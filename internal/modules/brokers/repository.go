// Package brokers holds broker fee profiles and the pricing model that
// turns a mid price into an execution price plus fees.
package brokers

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/utils"
)

// ProfileRepository persists broker profiles in config.db. Profiles are
// reference data: created or replaced whole, never partially updated.
type ProfileRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewProfileRepository creates a new broker profile repository
func NewProfileRepository(db *sql.DB, log zerolog.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:  db,
		log: log.With().Str("repo", "broker_profiles").Logger(),
	}
}

// Save upserts one broker profile.
func (r *ProfileRepository) Save(p domain.BrokerProfile) error {
	fractional := 0
	if p.AllowFractional {
		fractional = 1
	}

	_, err := r.db.Exec(`
		INSERT INTO broker_profiles
		(id, name, pip_pct, flat_fee, commission_pct, min_order_value, currencies, allow_fractional, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name             = excluded.name,
			pip_pct          = excluded.pip_pct,
			flat_fee         = excluded.flat_fee,
			commission_pct   = excluded.commission_pct,
			min_order_value  = excluded.min_order_value,
			currencies       = excluded.currencies,
			allow_fractional = excluded.allow_fractional
	`,
		p.ID,
		p.Name,
		p.PipPct.String(),
		p.FlatFee.String(),
		p.CommissionPct.String(),
		p.MinOrderValue.String(),
		strings.Join(p.Currencies, ","),
		fractional,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save broker profile %s: %w", p.ID, err)
	}

	return nil
}

// Get returns one profile, nil when unknown.
func (r *ProfileRepository) Get(id string) (*domain.BrokerProfile, error) {
	row := r.db.QueryRow(`
		SELECT id, name, pip_pct, flat_fee, commission_pct, min_order_value, currencies, allow_fractional
		FROM broker_profiles WHERE id = ?
	`, id)

	p, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load broker profile %s: %w", id, err)
	}
	return p, nil
}

// GetAll returns every stored profile ordered by id.
func (r *ProfileRepository) GetAll() ([]domain.BrokerProfile, error) {
	rows, err := r.db.Query(`
		SELECT id, name, pip_pct, flat_fee, commission_pct, min_order_value, currencies, allow_fractional
		FROM broker_profiles ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query broker profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.BrokerProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broker profile: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating broker profiles: %w", err)
	}

	return out, nil
}

// Count returns the number of stored profiles.
func (r *ProfileRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM broker_profiles").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count broker profiles: %w", err)
	}
	return n, nil
}

// SeedDefaults inserts the built-in profiles when the table is empty.
func (r *ProfileRepository) SeedDefaults() error {
	n, err := r.Count()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	for _, p := range defaultProfiles() {
		if err := r.Save(p); err != nil {
			return err
		}
	}

	r.log.Info().Int("profiles", len(defaultProfiles())).Msg("Seeded default broker profiles")
	return nil
}

func scanProfile(scan func(dest ...interface{}) error) (*domain.BrokerProfile, error) {
	var p domain.BrokerProfile
	var pip, flat, commission, minOrder, currencies string
	var fractional int

	if err := scan(&p.ID, &p.Name, &pip, &flat, &commission, &minOrder, &currencies, &fractional); err != nil {
		return nil, err
	}

	var err error
	if p.PipPct, err = domain.ParseDecimal(pip); err != nil {
		return nil, fmt.Errorf("profile %s: bad pip_pct: %w", p.ID, err)
	}
	if p.FlatFee, err = domain.ParseDecimal(flat); err != nil {
		return nil, fmt.Errorf("profile %s: bad flat_fee: %w", p.ID, err)
	}
	if p.CommissionPct, err = domain.ParseDecimal(commission); err != nil {
		return nil, fmt.Errorf("profile %s: bad commission_pct: %w", p.ID, err)
	}
	if p.MinOrderValue, err = domain.ParseDecimal(minOrder); err != nil {
		return nil, fmt.Errorf("profile %s: bad min_order_value: %w", p.ID, err)
	}
	p.Currencies = utils.ParseCSV(currencies)
	p.AllowFractional = fractional != 0

	return &p, nil
}

func defaultProfiles() []domain.BrokerProfile {
	return []domain.BrokerProfile{
		{
			ID:              "zero-fee",
			Name:            "Zero Fee (frictionless baseline)",
			PipPct:          domain.MustDecimal("0"),
			FlatFee:         domain.MustDecimal("0"),
			CommissionPct:   domain.MustDecimal("0"),
			MinOrderValue:   domain.MustDecimal("0"),
			AllowFractional: true,
		},
		{
			ID:            "standard",
			Name:          "Standard Discount Broker",
			PipPct:        domain.MustDecimal("0.001"),
			FlatFee:       domain.MustDecimal("1"),
			CommissionPct: domain.MustDecimal("0.0005"),
			MinOrderValue: domain.MustDecimal("10"),
			Currencies:    []string{"USD", "EUR"},
		},
		{
			ID:              "metals-dealer",
			Name:            "Precious Metals Dealer",
			PipPct:          domain.MustDecimal("0.015"),
			FlatFee:         domain.MustDecimal("0"),
			CommissionPct:   domain.MustDecimal("0.01"),
			MinOrderValue:   domain.MustDecimal("50"),
			Currencies:      []string{"USD"},
			AllowFractional: true,
		},
	}
}
