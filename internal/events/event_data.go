package events

// EventData is implemented by typed event payloads that can render
// themselves as a map for serialization.
type EventData interface {
	ToMap() map[string]interface{}
}

// ScoreUpdatedData announces freshly computed scores for a strategy.
type ScoreUpdatedData struct {
	StrategyID string `json:"strategy_id"`
	AsOf       string `json:"as_of"`
	Scored     int    `json:"scored"`
	Skipped    int    `json:"skipped"`
}

func (d ScoreUpdatedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"strategy_id": d.StrategyID,
		"as_of":       d.AsOf,
		"scored":      d.Scored,
		"skipped":     d.Skipped,
	}
}

// RankingUpdatedData announces a recomputed blend ranking.
type RankingUpdatedData struct {
	BlendID string `json:"blend_id"`
	AsOf    string `json:"as_of"`
	Entries int    `json:"entries"`
}

func (d RankingUpdatedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"blend_id": d.BlendID,
		"as_of":    d.AsOf,
		"entries":  d.Entries,
	}
}

// TradeSettledData announces a trade that passed validation and was
// written to the ledger.
type TradeSettledData struct {
	PortfolioID string `json:"portfolio_id"`
	TradeID     string `json:"trade_id"`
	Seq         int64  `json:"seq"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Quantity    string `json:"quantity"`
	NetAmount   string `json:"net_amount"`
	Currency    string `json:"currency"`
}

func (d TradeSettledData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"portfolio_id": d.PortfolioID,
		"trade_id":     d.TradeID,
		"seq":          d.Seq,
		"symbol":       d.Symbol,
		"side":         d.Side,
		"quantity":     d.Quantity,
		"net_amount":   d.NetAmount,
		"currency":     d.Currency,
	}
}

// TradeRejectedData announces an order that failed validation. The
// ledger is untouched when this fires.
type TradeRejectedData struct {
	PortfolioID string `json:"portfolio_id"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Reason      string `json:"reason"`
}

func (d TradeRejectedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"portfolio_id": d.PortfolioID,
		"symbol":       d.Symbol,
		"side":         d.Side,
		"reason":       d.Reason,
	}
}

// PortfolioChangedData announces any mutation of portfolio state:
// settled trades, deposits, withdrawals.
type PortfolioChangedData struct {
	PortfolioID string `json:"portfolio_id"`
	Cash        string `json:"cash"`
	Currency    string `json:"currency"`
	Cause       string `json:"cause"`
}

func (d PortfolioChangedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"portfolio_id": d.PortfolioID,
		"cash":         d.Cash,
		"currency":     d.Currency,
		"cause":        d.Cause,
	}
}

// PriceUpdatedData announces a batch of quote updates.
type PriceUpdatedData struct {
	Updated int    `json:"updated"`
	Source  string `json:"source"`
}

func (d PriceUpdatedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"updated": d.Updated,
		"source":  d.Source,
	}
}

// SnapshotIngestedData announces stored metric snapshots.
type SnapshotIngestedData struct {
	Symbols int    `json:"symbols"`
	AsOf    string `json:"as_of"`
}

func (d SnapshotIngestedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"symbols": d.Symbols,
		"as_of":   d.AsOf,
	}
}

// ValuationRecordedData announces a daily portfolio valuation snapshot.
type ValuationRecordedData struct {
	PortfolioID string `json:"portfolio_id"`
	Date        string `json:"date"`
	TotalValue  string `json:"total_value"`
	StalePrices bool   `json:"stale_prices"`
}

func (d ValuationRecordedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"portfolio_id": d.PortfolioID,
		"date":         d.Date,
		"total_value":  d.TotalValue,
		"stale_prices": d.StalePrices,
	}
}

// JobStatusData announces scheduler job lifecycle transitions.
type JobStatusData struct {
	JobName    string `json:"job_name"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (d JobStatusData) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"job_name": d.JobName,
	}
	if d.DurationMS > 0 {
		m["duration_ms"] = d.DurationMS
	}
	if d.Error != "" {
		m["error"] = d.Error
	}
	return m
}
