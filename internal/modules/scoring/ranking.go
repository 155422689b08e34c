package scoring

import (
	"sort"
	"time"
)

// RankedPart is one strategy's contribution within a ranked entry.
// Stored as an ordered slice, not a map, so serialized rankings are
// byte-identical across recomputations.
type RankedPart struct {
	StrategyID string  `json:"strategy_id" msgpack:"strategy_id"`
	Weight     float64 `json:"weight" msgpack:"weight"`
	Score      float64 `json:"score" msgpack:"score"`
}

// RankedEntry is one row of a ranking: an asset's blended score and its
// 1-based rank after sorting. Renormalized flags entries whose blend was
// composed from a subset of components.
type RankedEntry struct {
	Rank         int          `json:"rank" msgpack:"rank"`
	Symbol       string       `json:"symbol" msgpack:"symbol"`
	Score        float64      `json:"score" msgpack:"score"`
	AsOf         time.Time    `json:"as_of" msgpack:"as_of"`
	Parts        []RankedPart `json:"parts,omitempty" msgpack:"parts"`
	Renormalized bool         `json:"renormalized,omitempty" msgpack:"renormalized"`
}

// Rank orders blended scores into a strict total order: descending
// score, then ascending symbol to break ties deterministically. Running
// it twice over the same inputs yields identical output.
func Rank(scores []BlendedScore) []RankedEntry {
	entries := make([]RankedEntry, 0, len(scores))
	for _, s := range scores {
		entries = append(entries, RankedEntry{
			Symbol:       s.Symbol,
			Score:        s.Score,
			AsOf:         s.AsOf,
			Parts:        orderedParts(s.Parts),
			Renormalized: s.Renormalized,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Symbol < entries[j].Symbol
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries
}

// orderedParts flattens a parts map into a slice sorted by strategy id,
// giving every serialization of the same blend the same byte layout.
func orderedParts(parts map[string]BlendPart) []RankedPart {
	if len(parts) == 0 {
		return nil
	}
	out := make([]RankedPart, 0, len(parts))
	for id, p := range parts {
		out = append(out, RankedPart{StrategyID: id, Weight: p.Weight, Score: p.Score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out
}

// Page returns the slice [offset, offset+limit) of a ranking. A zero or
// negative limit means "to the end". Out-of-range offsets yield an empty
// page, not an error.
func Page(entries []RankedEntry, offset, limit int) []RankedEntry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []RankedEntry{}
	}

	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return entries[offset:end]
}

// TopN returns the first n entries of a ranking.
func TopN(entries []RankedEntry, n int) []RankedEntry {
	return Page(entries, 0, n)
}
