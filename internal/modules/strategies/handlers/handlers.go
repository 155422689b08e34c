// Package handlers provides HTTP endpoints for strategy and blend
// configuration.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/strategies"
)

// Handler provides HTTP handlers for strategy configuration endpoints
type Handler struct {
	service *strategies.Service
	log     zerolog.Logger
}

// NewHandler creates a new strategies handler
func NewHandler(service *strategies.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "strategies").Logger(),
	}
}

// RegisterRoutes registers strategy and blend routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/strategies", func(r chi.Router) {
		r.Get("/", h.HandleListStrategies)
		r.Get("/{id}", h.HandleGetStrategy)
		r.Put("/{id}", h.HandleUpsertStrategy)
	})
	r.Route("/blends", func(r chi.Router) {
		r.Get("/", h.HandleListBlends)
		r.Get("/{id}", h.HandleGetBlend)
		r.Put("/{id}", h.HandleUpsertBlend)
	})
}

// HandleListStrategies handles GET /api/strategies
func (h *Handler) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	all := h.service.Strategies()

	list := make([]strategies.StrategyDefinition, 0, len(all))
	for _, def := range all {
		list = append(list, def)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": list,
		"count":      len(list),
	})
}

// HandleGetStrategy handles GET /api/strategies/{id}
func (h *Handler) HandleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	def := h.service.Strategy(id)
	if def == nil {
		h.writeError(w, http.StatusNotFound, "Strategy not found: "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, def)
}

// HandleUpsertStrategy handles PUT /api/strategies/{id}
func (h *Handler) HandleUpsertStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var def strategies.StrategyDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	def.ID = id

	if err := h.service.UpsertStrategy(def); err != nil {
		var invalid *domain.InvalidStrategyDefinitionError
		if errors.As(err, &invalid) {
			h.writeError(w, http.StatusUnprocessableEntity, invalid.Error())
			return
		}
		h.log.Error().Err(err).Str("strategy", id).Msg("Failed to save strategy")
		h.writeError(w, http.StatusInternalServerError, "Failed to save strategy")
		return
	}

	h.log.Info().Str("strategy", id).Msg("Strategy saved")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "id": id})
}

// HandleListBlends handles GET /api/blends
func (h *Handler) HandleListBlends(w http.ResponseWriter, r *http.Request) {
	all := h.service.Blends()

	list := make([]strategies.Blend, 0, len(all))
	for _, b := range all {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"blends": list,
		"count":  len(list),
	})
}

// HandleGetBlend handles GET /api/blends/{id}
func (h *Handler) HandleGetBlend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b := h.service.Blend(id)
	if b == nil {
		h.writeError(w, http.StatusNotFound, "Blend not found: "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, b)
}

// HandleUpsertBlend handles PUT /api/blends/{id}
func (h *Handler) HandleUpsertBlend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var b strategies.Blend
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.ID = id

	if err := h.service.UpsertBlend(b); err != nil {
		var invalid *domain.InvalidStrategyDefinitionError
		if errors.As(err, &invalid) {
			h.writeError(w, http.StatusUnprocessableEntity, invalid.Error())
			return
		}
		h.log.Error().Err(err).Str("blend", id).Msg("Failed to save blend")
		h.writeError(w, http.StatusInternalServerError, "Failed to save blend")
		return
	}

	h.log.Info().Str("blend", id).Msg("Blend saved")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "id": id})
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
