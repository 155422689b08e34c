package scoring

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// RankingSnapshot is a fully ranked list for one blend, stored as one
// compact blob in cache.db. Recomputable at any time from score results,
// so it lives under the cache profile (synchronous=OFF).
type RankingSnapshot struct {
	BlendID   string        `msgpack:"blend_id"`
	AsOf      time.Time     `msgpack:"as_of"`
	Entries   []RankedEntry `msgpack:"entries"`
	CreatedAt time.Time     `msgpack:"created_at"`
}

// RankingRepository stores serialized ranking snapshots, one per blend.
type RankingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRankingRepository creates a new ranking repository
func NewRankingRepository(db *sql.DB, log zerolog.Logger) *RankingRepository {
	return &RankingRepository{
		db:  db,
		log: log.With().Str("repo", "rankings").Logger(),
	}
}

// Save replaces the stored snapshot for the blend.
func (r *RankingRepository) Save(snapshot *RankingSnapshot) error {
	payload, err := msgpack.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal ranking snapshot for %s: %w", snapshot.BlendID, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO ranking_snapshots (blend_id, as_of, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(blend_id) DO UPDATE SET
			as_of      = excluded.as_of,
			payload    = excluded.payload,
			created_at = excluded.created_at
	`, snapshot.BlendID, snapshot.AsOf.Unix(), payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save ranking snapshot for %s: %w", snapshot.BlendID, err)
	}

	r.log.Debug().
		Str("blend", snapshot.BlendID).
		Int("entries", len(snapshot.Entries)).
		Int("bytes", len(payload)).
		Msg("Ranking snapshot saved")

	return nil
}

// Get returns the stored snapshot for a blend, nil when none exists.
func (r *RankingRepository) Get(blendID string) (*RankingSnapshot, error) {
	var payload []byte
	err := r.db.QueryRow(
		"SELECT payload FROM ranking_snapshots WHERE blend_id = ?", blendID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking snapshot for %s: %w", blendID, err)
	}

	var snapshot RankingSnapshot
	if err := msgpack.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ranking snapshot for %s: %w", blendID, err)
	}

	return &snapshot, nil
}

// Payload returns the raw serialized snapshot bytes for a blend. Used by
// tests asserting byte-identical recomputation; nil when none exists.
func (r *RankingRepository) Payload(blendID string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRow(
		"SELECT payload FROM ranking_snapshots WHERE blend_id = ?", blendID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking payload for %s: %w", blendID, err)
	}
	return payload, nil
}
