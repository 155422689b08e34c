// Package handlers provides HTTP handlers for system settings management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/modules/settings"
)

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service *settings.Service
	log     zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// RegisterRoutes registers all settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/{key}", h.HandleGet)
		r.Put("/{key}", h.HandleSet)
	})
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get all settings")
		h.writeError(w, http.StatusInternalServerError, "Failed to get settings")
		return
	}

	h.writeJSON(w, http.StatusOK, all)
}

// HandleGet handles GET /api/settings/{key}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, err := h.service.Get(key)
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to get setting")
		h.writeError(w, http.StatusInternalServerError, "Failed to get setting")
		return
	}
	if value == nil {
		h.writeError(w, http.StatusNotFound, "Setting not found: "+key)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": *value})
}

// HandleSet handles PUT /api/settings/{key}
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validated setters guard range-sensitive keys.
	var err error
	switch key {
	case settings.KeyMaxMissingFactorFraction:
		var v float64
		if unmarshalErr := json.Unmarshal([]byte(req.Value), &v); unmarshalErr != nil {
			h.writeError(w, http.StatusBadRequest, "Value must be a number")
			return
		}
		err = h.service.SetMaxMissingFactorFraction(v)
	default:
		err = h.service.Set(key, req.Value)
	}
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to set setting")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Info().Str("key", key).Str("value", req.Value).Msg("Setting updated")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "key": key, "value": req.Value})
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
