package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all pricing routes
func (h *PricingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/prices", func(r chi.Router) {
		r.Get("/", h.HandleListPrices)
		r.Post("/", h.HandleUpdatePrices)
		r.Get("/ws", h.HandlePriceFeed)
		r.Get("/{symbol}", h.HandleGetPrice)
	})
}
