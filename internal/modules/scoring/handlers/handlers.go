// Package handlers provides HTTP endpoints for scoring runs, rankings
// and per-asset score lookups.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/modules/scoring"
)

// Handler provides HTTP handlers for scoring endpoints
type Handler struct {
	service *scoring.Service
	log     zerolog.Logger
}

// NewHandler creates a new scoring handler
func NewHandler(service *scoring.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scoring").Logger(),
	}
}

// RegisterRoutes registers scoring, ranking and score lookup routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/scoring/run", h.HandleRun)
	r.Get("/rankings", h.HandleGetRanking)
	r.Get("/scores/{symbol}", h.HandleGetScores)
}

// HandleRun handles POST /api/scoring/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.ScoreUniverse(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Scoring run failed")
		h.writeError(w, http.StatusInternalServerError, "Scoring run failed: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetRanking handles GET /api/rankings?blend=&limit=&offset=
func (h *Handler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	blendID := r.URL.Query().Get("blend")
	if blendID == "" {
		h.writeError(w, http.StatusBadRequest, "Missing required query parameter: blend")
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)

	snapshot, page, err := h.service.GetRanking(blendID, offset, limit)
	if err != nil {
		h.log.Error().Err(err).Str("blend", blendID).Msg("Failed to load ranking")
		h.writeError(w, http.StatusInternalServerError, "Failed to load ranking")
		return
	}
	if snapshot == nil {
		h.writeError(w, http.StatusNotFound, "No ranking snapshot for blend: "+blendID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"blend_id": snapshot.BlendID,
		"as_of":    snapshot.AsOf,
		"total":    len(snapshot.Entries),
		"offset":   offset,
		"entries":  page,
	})
}

// HandleGetScores handles GET /api/scores/{symbol}
func (h *Handler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	scores, err := h.service.GetScores(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load scores")
		h.writeError(w, http.StatusInternalServerError, "Failed to load scores")
		return
	}
	if len(scores) == 0 {
		h.writeError(w, http.StatusNotFound, "No scores for symbol: "+symbol)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"scores": scores,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
