package api

import (
	"tradesim/pkg/types"
)

// orderRequest is the POST /orders payload.
type orderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`     // "buy" | "sell"
	Type     string  `json:"type"`     // "market" | "limit"
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"` // required for limit orders
}

// orderResponse reports the outcome of an accepted submission.
type orderResponse struct {
	OrderID      string            `json:"order_id"`
	Status       types.OrderStatus `json:"status"`
	UnfilledQty  int64             `json:"unfilled_quantity"`
	AvgFillPrice float64           `json:"avg_fill_price"`
}

// rejectionResponse is returned with HTTP 400 when an order is refused.
type rejectionResponse struct {
	Status  string `json:"status"` // always "rejected"
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// errorResponse is the generic error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// orderbookResponse is the GET /orderbook/{symbol} payload.
type orderbookResponse struct {
	Symbol          string             `json:"symbol"`
	Bids            []types.PriceLevel `json:"bids"`
	Asks            []types.PriceLevel `json:"asks"`
	LastTradedPrice *float64           `json:"last_traded_price,omitempty"`
}

// portfolioResponse is the GET /portfolio payload.
type portfolioResponse struct {
	UserID        string                 `json:"user_id"`
	Cash          float64                `json:"cash"`
	Positions     map[string][]types.Lot `json:"positions"`
	MarketValue   float64                `json:"market_value"`
	RealizedPnL   float64                `json:"realized_pnl"`
	UnrealizedPnL float64                `json:"unrealized_pnl"`
	TotalPnL      float64                `json:"total_pnl"`
}

// newsStatusResponse is the GET /news/status payload.
type newsStatusResponse struct {
	SimTimeMS      int64 `json:"sim_time_ms"`
	TotalEvents    int   `json:"total_events"`
	ActiveCount    int   `json:"active_count"`
	ActivatedCount int   `json:"activated_count"`
}

// adHocNewsRequest is the POST /admin/news payload. Magnitude is applied
// symmetrically as both magnitude bounds.
type adHocNewsRequest struct {
	ID             int      `json:"id"`
	Headline       string   `json:"headline"`
	Description    string   `json:"description"`
	Magnitude      float64  `json:"magnitude"`
	DecayHalflifeS float64  `json:"decay_halflife_s"`
	Factors        []string `json:"factors"`
}

// healthResponse is the GET /health payload.
type healthResponse struct {
	Status      string `json:"status"`
	Instruments int    `json:"instruments"`
	SimTimeMS   int64  `json:"sim_time_ms"`
}

// versionResponse is the GET /version payload.
type versionResponse struct {
	Version string `json:"version"`
}
