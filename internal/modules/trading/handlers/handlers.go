// Package handlers provides HTTP endpoints for order execution, trade
// history and external cash movements.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/trading"
)

// Handler provides HTTP handlers for trading endpoints
type Handler struct {
	service *trading.Service
	log     zerolog.Logger
}

// NewHandler creates a new trading handler
func NewHandler(service *trading.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// RegisterRoutes registers trading routes under the portfolio tree
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios/{id}/trades", func(r chi.Router) {
		r.Post("/", h.HandleExecute)
		r.Get("/", h.HandleHistory)
	})
	r.Post("/portfolios/{id}/deposit", h.HandleDeposit)
	r.Post("/portfolios/{id}/withdraw", h.HandleWithdraw)
}

type orderRequest struct {
	Symbol          string          `json:"symbol"`
	Side            domain.Side     `json:"side"`
	Quantity        decimal.Decimal `json:"quantity"`
	BrokerProfileID string          `json:"broker_profile_id"`
	Comment         string          `json:"comment,omitempty"`
}

// HandleExecute handles POST /api/portfolios/{id}/trades
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "id")

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := h.service.Execute(trading.TradeRequest{
		PortfolioID:     portfolioID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Quantity:        req.Quantity,
		BrokerProfileID: req.BrokerProfileID,
		Comment:         req.Comment,
	})

	switch result.State {
	case trading.StateSettled:
		h.writeJSON(w, http.StatusCreated, map[string]interface{}{
			"state": result.State,
			"trade": result.Trade,
		})
	case trading.StateRejected:
		// A rejection is a processed order, not a client error.
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"state":  result.State,
			"reason": result.RejectReason(),
		})
	default:
		h.log.Error().Err(result.Err).Str("portfolio", portfolioID).Msg("Trade execution failed")
		h.writeError(w, http.StatusInternalServerError, "Trade execution failed")
	}
}

// HandleHistory handles GET /api/portfolios/{id}/trades
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "id")

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	var trades []domain.Trade
	var err error
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		trades, err = h.service.TradesBySymbol(portfolioID, symbol)
	} else {
		trades, err = h.service.History(portfolioID, limit, offset)
	}
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", portfolioID).Msg("Failed to load trades")
		h.writeError(w, http.StatusInternalServerError, "Failed to load trades")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"trades":       trades,
		"count":        len(trades),
	})
}

type cashRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment,omitempty"`
}

// HandleDeposit handles POST /api/portfolios/{id}/deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	h.handleCashFlow(w, r, h.service.Deposit)
}

// HandleWithdraw handles POST /api/portfolios/{id}/withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.handleCashFlow(w, r, h.service.Withdraw)
}

func (h *Handler) handleCashFlow(
	w http.ResponseWriter,
	r *http.Request,
	move func(string, decimal.Decimal, string) (*domain.CashFlow, error),
) {
	portfolioID := chi.URLParam(r, "id")

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	flow, err := move(portfolioID, req.Amount, req.Comment)
	if err != nil {
		var invalid *domain.InvalidOrderError
		var insufficient *domain.InsufficientFundsError
		switch {
		case errors.As(err, &invalid):
			h.writeError(w, http.StatusUnprocessableEntity, invalid.Error())
		case errors.As(err, &insufficient):
			h.writeError(w, http.StatusUnprocessableEntity, insufficient.Error())
		default:
			h.log.Error().Err(err).Str("portfolio", portfolioID).Msg("Cash flow failed")
			h.writeError(w, http.StatusInternalServerError, "Cash flow failed")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, flow)
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
