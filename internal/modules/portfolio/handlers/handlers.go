// Package handlers provides HTTP endpoints for portfolio lifecycle,
// positions and valuations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/portfolio"
)

// Handler provides HTTP handlers for portfolio endpoints
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleDelete)
		r.Get("/{id}/positions", h.HandlePositions)
		r.Get("/{id}/cashflows", h.HandleCashFlows)
		r.Get("/{id}/valuation", h.HandleValuation)
	})
}

type createRequest struct {
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
}

// HandleCreate handles POST /api/portfolios
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.service.Create(req.Name, req.BaseCurrency)
	if err != nil {
		var invalid *domain.InvalidOrderError
		if errors.As(err, &invalid) {
			h.writeError(w, http.StatusUnprocessableEntity, invalid.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to create portfolio")
		h.writeError(w, http.StatusInternalServerError, "Failed to create portfolio")
		return
	}

	h.writeJSON(w, http.StatusCreated, p)
}

// HandleList handles GET /api/portfolios
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.service.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		h.writeError(w, http.StatusInternalServerError, "Failed to list portfolios")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolios": portfolios,
		"count":      len(portfolios),
	})
}

// HandleGet handles GET /api/portfolios/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", id).Msg("Failed to load portfolio")
		h.writeError(w, http.StatusInternalServerError, "Failed to load portfolio")
		return
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, "Portfolio not found: "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /api/portfolios/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(id); err != nil {
		h.log.Error().Err(err).Str("portfolio", id).Msg("Failed to delete portfolio")
		h.writeError(w, http.StatusInternalServerError, "Failed to delete portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "id": id})
}

// HandlePositions handles GET /api/portfolios/{id}/positions
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	positions, err := h.service.Positions(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", id).Msg("Failed to load positions")
		h.writeError(w, http.StatusInternalServerError, "Failed to load positions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": id,
		"positions":    positions,
		"count":        len(positions),
	})
}

// HandleCashFlows handles GET /api/portfolios/{id}/cashflows
func (h *Handler) HandleCashFlows(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	flows, err := h.service.CashFlows(id, limit)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", id).Msg("Failed to load cash flows")
		h.writeError(w, http.StatusInternalServerError, "Failed to load cash flows")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": id,
		"cash_flows":   flows,
		"count":        len(flows),
	})
}

// HandleValuation handles GET /api/portfolios/{id}/valuation
func (h *Handler) HandleValuation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := h.service.Valuation(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", id).Msg("Failed to compute valuation")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute valuation")
		return
	}

	// Exact decimals plus display strings rounded to currency precision.
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"valuation": v,
		"display": map[string]string{
			"cash":         domain.FormatReport(v.Cash, v.BaseCurrency),
			"market_value": domain.FormatReport(v.MarketValue, v.BaseCurrency),
			"total_value":  domain.FormatReport(v.TotalValue, v.BaseCurrency),
		},
	})
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
