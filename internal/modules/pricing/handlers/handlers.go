// Package handlers provides HTTP and WebSocket endpoints for price
// ingestion and lookup.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/pricing"
)

const feedReadTimeout = 90 * time.Second

// PricingHandlers contains HTTP handlers for the pricing API
type PricingHandlers struct {
	service *pricing.Service
	log     zerolog.Logger
}

// NewPricingHandlers creates a new pricing handlers instance
func NewPricingHandlers(service *pricing.Service, log zerolog.Logger) *PricingHandlers {
	return &PricingHandlers{
		service: service,
		log:     log.With().Str("handler", "pricing").Logger(),
	}
}

// HandleListPrices returns all cached prices
// GET /api/prices
func (h *PricingHandlers) HandleListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.service.ListPrices()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list prices")
		h.writeError(w, http.StatusInternalServerError, "Failed to list prices")
		return
	}

	response := make([]map[string]interface{}, 0, len(prices))
	for _, p := range prices {
		response = append(response, priceJSON(p, false))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices": response,
		"count":  len(response),
	})
}

// HandleGetPrice returns the cached price for one symbol with a
// staleness flag
// GET /api/prices/{symbol}
func (h *PricingHandlers) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	price, stale, err := h.service.GetFreshPrice(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get price")
		h.writeError(w, http.StatusInternalServerError, "Failed to get price")
		return
	}
	if price == nil {
		h.writeError(w, http.StatusNotFound, "No price for symbol "+domain.NormalizeSymbol(symbol))
		return
	}

	h.writeJSON(w, http.StatusOK, priceJSON(*price, stale))
}

// HandleUpdatePrices ingests a batch of quotes
// POST /api/prices
func (h *PricingHandlers) HandleUpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prices []pricing.PriceUpdate `json:"prices"`
		Source string                `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Prices) == 0 {
		h.writeError(w, http.StatusBadRequest, "No prices in request")
		return
	}
	if req.Source == "" {
		req.Source = "http"
	}

	written, err := h.service.UpdatePrices(req.Prices, req.Source)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to update prices")
		h.writeError(w, http.StatusInternalServerError, "Failed to update prices")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"updated": written,
	})
}

// HandlePriceFeed accepts a WebSocket connection from a price feed and
// ingests quote frames until the peer disconnects.
// GET /api/prices/ws
//
// Frame format: {"prices": [{"symbol": "AAPL", "mid": "187.23", "currency": "USD"}]}
// Each frame is acknowledged with {"updated": n}.
func (h *PricingHandlers) HandlePriceFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to accept price feed connection")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Price feed connected")
	ctx := r.Context()

	for {
		if err := h.readFeedFrame(ctx, conn); err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				h.log.Info().Msg("Price feed closed normally")
			} else if ctx.Err() != nil {
				h.log.Debug().Msg("Price feed context cancelled")
			} else {
				h.log.Warn().Err(err).Msg("Price feed read ended")
			}
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (h *PricingHandlers) readFeedFrame(ctx context.Context, conn *websocket.Conn) error {
	readCtx, cancel := context.WithTimeout(ctx, feedReadTimeout)
	defer cancel()

	msgType, message, err := conn.Read(readCtx)
	if err != nil {
		return err
	}
	if msgType != websocket.MessageText {
		return nil
	}

	var frame struct {
		Prices []pricing.PriceUpdate `json:"prices"`
		Source string                `json:"source"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		// Keep reading despite malformed frames.
		h.log.Warn().Err(err).Msg("Ignoring malformed price feed frame")
		return nil
	}
	if frame.Source == "" {
		frame.Source = "websocket"
	}

	written, err := h.service.UpdatePrices(frame.Prices, frame.Source)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store feed prices")
		return nil
	}

	ack, _ := json.Marshal(map[string]int{"updated": written})
	writeCtx, cancelWrite := context.WithTimeout(ctx, 10*time.Second)
	defer cancelWrite()
	return conn.Write(writeCtx, websocket.MessageText, ack)
}

func priceJSON(p domain.Price, stale bool) map[string]interface{} {
	return map[string]interface{}{
		"symbol":     p.Symbol,
		"mid":        p.Mid.String(),
		"currency":   p.Currency,
		"updated_at": p.UpdatedAt.Format(time.RFC3339),
		"stale":      stale,
	}
}

func (h *PricingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *PricingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
