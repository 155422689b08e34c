// Package handlers provides HTTP endpoints for broker profile
// management and quote previews.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/brokers"
)

// Handler provides HTTP handlers for broker profile endpoints
type Handler struct {
	repo *brokers.ProfileRepository
	log  zerolog.Logger
}

// NewHandler creates a new brokers handler
func NewHandler(repo *brokers.ProfileRepository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "brokers").Logger(),
	}
}

// RegisterRoutes registers broker profile routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/brokers", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpsert)
		r.Post("/{id}/quote", h.HandleQuote)
	})
}

// HandleList handles GET /api/brokers
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.repo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list broker profiles")
		h.writeError(w, http.StatusInternalServerError, "Failed to list broker profiles")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"brokers": profiles,
		"count":   len(profiles),
	})
}

// HandleGet handles GET /api/brokers/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := h.repo.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("broker", id).Msg("Failed to load broker profile")
		h.writeError(w, http.StatusInternalServerError, "Failed to load broker profile")
		return
	}
	if profile == nil {
		h.writeError(w, http.StatusNotFound, "Broker profile not found: "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, profile)
}

// HandleUpsert handles PUT /api/brokers/{id}
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var profile domain.BrokerProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	profile.ID = id

	if profile.PipPct.IsNegative() || profile.FlatFee.IsNegative() ||
		profile.CommissionPct.IsNegative() || profile.MinOrderValue.IsNegative() {
		h.writeError(w, http.StatusUnprocessableEntity, "Fee parameters must be non-negative")
		return
	}

	if err := h.repo.Save(profile); err != nil {
		h.log.Error().Err(err).Str("broker", id).Msg("Failed to save broker profile")
		h.writeError(w, http.StatusInternalServerError, "Failed to save broker profile")
		return
	}

	h.log.Info().Str("broker", id).Msg("Broker profile saved")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "id": id})
}

type quoteRequest struct {
	Side     domain.Side     `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	MidPrice decimal.Decimal `json:"mid_price"`
	Currency string          `json:"currency"`
}

// HandleQuote handles POST /api/brokers/{id}/quote, pricing a
// hypothetical order without touching any portfolio.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.repo.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("broker", id).Msg("Failed to load broker profile")
		h.writeError(w, http.StatusInternalServerError, "Failed to load broker profile")
		return
	}
	if profile == nil {
		h.writeError(w, http.StatusNotFound, "Broker profile not found: "+id)
		return
	}

	quote, err := brokers.Price(profile, req.Side, req.Quantity, req.MidPrice, req.Currency)
	if err != nil {
		var invalid *domain.InvalidOrderError
		if errors.As(err, &invalid) {
			h.writeError(w, http.StatusUnprocessableEntity, invalid.Error())
			return
		}
		h.log.Error().Err(err).Str("broker", id).Msg("Failed to price quote")
		h.writeError(w, http.StatusInternalServerError, "Failed to price quote")
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
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
