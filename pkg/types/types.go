// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the simulator: instruments,
// macro factors, news events, orders, fills, and the status/rejection enums.
// It has no dependencies on internal packages, so it can be imported by any
// layer.
package types

import (
	"time"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: buy or sell.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// OrderType enumerates the supported order kinds on the HTTP surface.
// Market orders are translated to aggressive limits before matching.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is the lifecycle state of an order after a submission pass.
type OrderStatus string

const (
	StatusOpen            OrderStatus = "open"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
)

// RejectReason identifies which pre-trade risk check refused an order.
// An empty value means the order passed all checks.
type RejectReason string

const (
	RejectNone                  RejectReason = ""
	RejectInvalidInstrument     RejectReason = "invalid_instrument"
	RejectOrderSizeExceeded     RejectReason = "order_size_exceeded"
	RejectRateLimitExceeded     RejectReason = "rate_limit_exceeded"
	RejectReversalBlocked       RejectReason = "reversal_blocked"
	RejectPositionLimitExceeded RejectReason = "position_limit_exceeded"
)

// ————————————————————————————————————————————————————————————————————————
// Seed snapshot entities (loaded once at startup, immutable afterwards)
// ————————————————————————————————————————————————————————————————————————

// Instrument is one tradable symbol with its GBM parameters.
type Instrument struct {
	ID          string  `json:"id" yaml:"id"`
	DisplayName string  `json:"display_name" yaml:"display_name"`
	S0          float64 `json:"s0" yaml:"s0"`             // initial price, positive
	Mean        float64 `json:"mean" yaml:"mean"`         // annualized drift
	Variance    float64 `json:"variance" yaml:"variance"` // annualized variance
}

// MacroFactor is an abstract economic driver news events act through.
// CapUp/CapDown bound the factor's contribution; the core treats them as
// informational and applies no clipping.
type MacroFactor struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	CapUp   float64 `json:"cap_up" yaml:"cap_up"`
	CapDown float64 `json:"cap_down" yaml:"cap_down"`
}

// NewsEvent is a scheduled macro shock. Its effective magnitude is the mean
// of MagnitudeTop and MagnitudeBottom, decaying exponentially with
// DecayHalflifeS after activation.
type NewsEvent struct {
	ID              int     `json:"id" yaml:"id"`
	Headline        string  `json:"headline" yaml:"headline"`
	Description     string  `json:"description" yaml:"description"`
	TSReleaseMS     int64   `json:"ts_release_ms" yaml:"ts_release_ms"`
	DecayHalflifeS  float64 `json:"decay_halflife_s" yaml:"decay_halflife_s"`
	MagnitudeTop    float64 `json:"magnitude_top" yaml:"magnitude_top"`
	MagnitudeBottom float64 `json:"magnitude_bottom" yaml:"magnitude_bottom"`
}

// Magnitude returns the effective magnitude at activation time.
func (n NewsEvent) Magnitude() float64 {
	return (n.MagnitudeTop + n.MagnitudeBottom) / 2
}

// NewsFactorEdge links a news event to a macro factor it touches.
type NewsFactorEdge struct {
	NewsID   int    `json:"news_id" yaml:"news_id"`
	FactorID string `json:"factor_id" yaml:"factor_id"`
}

// FactorExposure is an instrument's beta to a macro factor.
type FactorExposure struct {
	InstrumentID string  `json:"instrument_id" yaml:"instrument_id"`
	FactorID     string  `json:"factor_id" yaml:"factor_id"`
	Beta         float64 `json:"beta" yaml:"beta"`
}

// ————————————————————————————————————————————————————————————————————————
// Trading entities
// ————————————————————————————————————————————————————————————————————————

// Order is a limit order as seen by the book. RemainingQty counts down as
// fills occur; a fully filled order is tombstoned (kept for history, removed
// from the book).
type Order struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Price        float64   `json:"price"`
	RemainingQty int64     `json:"remaining_quantity"`
	OriginalQty  int64     `json:"original_quantity"`
	CreatedAt    time.Time `json:"created_at"`
}

// Fill is one execution between two orders. Emitted by the matching loop and
// consumed by the user ledger.
type Fill struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Lot is one contiguous parcel of a symbol acquired at a single price.
// Quantity is signed: positive lots are long, negative lots are short.
// A user's position in a symbol is an ordered list of lots consumed FIFO.
type Lot struct {
	Symbol     string  `json:"symbol"`
	Quantity   int64   `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
}

// PriceLevel is one rung of a top-of-book ladder in a book snapshot.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// SubmitResult is what the book reports back for a submission.
type SubmitResult struct {
	Status       OrderStatus `json:"status"`
	UnfilledQty  int64       `json:"unfilled_quantity"`
	AvgFillPrice float64     `json:"avg_fill_price"` // VWAP over fills, 0 if none
}
