// Package handlers provides HTTP handlers for the asset universe API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/domain"
	"github.com/karvelas/lodestar/internal/modules/universe"
)

// UniverseHandlers contains HTTP handlers for the universe API
type UniverseHandlers struct {
	service *universe.Service
	log     zerolog.Logger
}

// NewUniverseHandlers creates a new universe handlers instance
func NewUniverseHandlers(service *universe.Service, log zerolog.Logger) *UniverseHandlers {
	return &UniverseHandlers{
		service: service,
		log:     log.With().Str("handler", "universe").Logger(),
	}
}

// assetRequest is one inbound asset registration.
type assetRequest struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Class    string `json:"class"`
	Name     string `json:"name"`
}

// snapshotRequest is one inbound metric snapshot. AsOf is YYYY-MM-DD.
// Absent fields stay nil and count as missing, not zero.
type snapshotRequest struct {
	Symbol        string   `json:"symbol"`
	AsOf          string   `json:"as_of"`
	PE            *float64 `json:"pe"`
	PEG           *float64 `json:"peg"`
	DividendYield *float64 `json:"dividend_yield"`
	RevenueGrowth *float64 `json:"revenue_growth"`
	FCFGrowth     *float64 `json:"fcf_growth"`
	DebtToEquity  *float64 `json:"debt_to_equity"`
	Momentum3M    *float64 `json:"momentum_3m"`
	RSI14         *float64 `json:"rsi_14"`
	Volatility90D *float64 `json:"volatility_90d"`
}

// HandleListAssets returns the asset registry
// GET /api/universe
func (h *UniverseHandlers) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.ListAssets()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list assets")
		h.writeError(w, http.StatusInternalServerError, "Failed to list assets")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	})
}

// HandleRegisterAssets registers a batch of assets
// POST /api/universe
func (h *UniverseHandlers) HandleRegisterAssets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Assets []assetRequest `json:"assets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Assets) == 0 {
		h.writeError(w, http.StatusBadRequest, "No assets in request")
		return
	}

	assets := make([]domain.Asset, 0, len(req.Assets))
	for _, a := range req.Assets {
		assets = append(assets, domain.Asset{
			Symbol:   a.Symbol,
			Exchange: a.Exchange,
			Class:    domain.AssetClass(a.Class),
			Name:     a.Name,
		})
	}

	registered, errs := h.service.RegisterAssets(assets)

	response := map[string]interface{}{
		"registered": registered,
		"failed":     len(errs),
	}
	if len(errs) > 0 {
		messages := make([]string, 0, len(errs))
		for _, e := range errs {
			messages = append(messages, e.Error())
		}
		response["errors"] = messages
	}

	status := http.StatusOK
	if registered == 0 && len(errs) > 0 {
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, response)
}

// HandleGetAsset returns one asset with its latest snapshot
// GET /api/universe/{symbol}
func (h *UniverseHandlers) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	asset, err := h.service.GetAsset(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get asset")
		h.writeError(w, http.StatusInternalServerError, "Failed to get asset")
		return
	}
	if asset == nil {
		h.writeError(w, http.StatusNotFound, "Asset not found: "+domain.NormalizeSymbol(symbol))
		return
	}

	snapshot, err := h.service.GetLatestSnapshot(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get latest snapshot")
		h.writeError(w, http.StatusInternalServerError, "Failed to get latest snapshot")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":           asset,
		"latest_snapshot": snapshot,
	})
}

// HandleDeleteAsset removes an asset from the registry
// DELETE /api/universe/{symbol}
func (h *UniverseHandlers) HandleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	if err := h.service.RemoveAsset(symbol); err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to delete asset")
		h.writeError(w, http.StatusInternalServerError, "Failed to delete asset")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleIngestSnapshots stores a batch of metric snapshots
// POST /api/universe/snapshots
func (h *UniverseHandlers) HandleIngestSnapshots(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Snapshots []snapshotRequest `json:"snapshots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Snapshots) == 0 {
		h.writeError(w, http.StatusBadRequest, "No snapshots in request")
		return
	}

	snapshots := make([]domain.MetricSnapshot, 0, len(req.Snapshots))
	for _, s := range req.Snapshots {
		asOf, err := time.Parse("2006-01-02", s.AsOf)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid as_of date for "+s.Symbol+": expected YYYY-MM-DD")
			return
		}
		snapshots = append(snapshots, domain.MetricSnapshot{
			Symbol:        s.Symbol,
			AsOf:          asOf,
			PE:            s.PE,
			PEG:           s.PEG,
			DividendYield: s.DividendYield,
			RevenueGrowth: s.RevenueGrowth,
			FCFGrowth:     s.FCFGrowth,
			DebtToEquity:  s.DebtToEquity,
			Momentum3M:    s.Momentum3M,
			RSI14:         s.RSI14,
			Volatility90D: s.Volatility90D,
		})
	}

	written, err := h.service.IngestSnapshots(snapshots)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to ingest snapshots")
		h.writeError(w, http.StatusInternalServerError, "Failed to ingest snapshots")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"ingested": written,
	})
}

// HandleGetSnapshotHistory returns stored snapshots for a symbol
// GET /api/universe/{symbol}/snapshots
func (h *UniverseHandlers) HandleGetSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	limit := 30
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	snapshots, err := h.service.GetSnapshotHistory(symbol, limit)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get snapshot history")
		h.writeError(w, http.StatusInternalServerError, "Failed to get snapshot history")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    domain.NormalizeSymbol(symbol),
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

func (h *UniverseHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *UniverseHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
