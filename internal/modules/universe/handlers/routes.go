package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all universe routes
func (h *UniverseHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/", h.HandleListAssets)
		r.Post("/", h.HandleRegisterAssets)
		r.Post("/snapshots", h.HandleIngestSnapshots)
		r.Get("/{symbol}", h.HandleGetAsset)
		r.Delete("/{symbol}", h.HandleDeleteAsset)
		r.Get("/{symbol}/snapshots", h.HandleGetSnapshotHistory)
	})
}
