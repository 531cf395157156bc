// Package risk enforces pre-trade admission checks on user orders.
//
// The gate runs before the book ever sees an order, in a fixed sequence:
// instrument validity, order size, per-minute volume, the reversal guard,
// and the position cap. Bot quotes and generator orders bypass the gate
// entirely. Rejections are typed values, not errors.
package risk

import (
	"log/slog"
	"time"

	"tradesim/internal/ledger"
	"tradesim/internal/registry"
	"tradesim/pkg/types"
)

// Hard limits. Parameters of the core, not configuration.
const (
	MaxOrderSize       = 500  // max quantity per order
	MaxVolumePerMinute = 1000 // max attempted quantity per symbol per minute
	MaxPosition        = 5000 // max absolute signed position per symbol

	volumeWindow   = 60 * time.Second
	reversalWindow = 30 * time.Second
	reversalMinQty = 100
)

// Gate performs the ordered pre-trade checks against the ledger's view of
// the user.
type Gate struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

// NewGate creates a risk gate.
func NewGate(reg *registry.Registry, led *ledger.Ledger, logger *slog.Logger) *Gate {
	return &Gate{
		registry: reg,
		ledger:   led,
		logger:   logger.With("component", "risk"),
	}
}

// Check runs all admission checks for a user order. Returns RejectNone when
// the order may proceed to the book.
func (g *Gate) Check(order types.Order, now time.Time) types.RejectReason {
	if !g.registry.IsValid(order.Symbol) {
		return types.RejectInvalidInstrument
	}

	if order.OriginalQty > MaxOrderSize {
		return types.RejectOrderSizeExceeded
	}

	recent := g.ledger.RecentVolume(order.UserID, order.Symbol, volumeWindow, now)
	if recent+order.OriginalQty > MaxVolumePerMinute {
		return types.RejectRateLimitExceeded
	}

	// Reversal guard: a large trade on the opposite side within the window
	// looks like pump-and-dump flow.
	if last, ok := g.ledger.LastTradeWithin(order.UserID, order.Symbol, reversalWindow, now); ok {
		if last.Side != order.Side && last.Quantity >= reversalMinQty {
			return types.RejectReversalBlocked
		}
	}

	// Position cap assumes the order fills fully.
	newPos := g.ledger.Position(order.UserID, order.Symbol)
	if order.Side == types.Buy {
		newPos += order.OriginalQty
	} else {
		newPos -= order.OriginalQty
	}
	if newPos > MaxPosition || newPos < -MaxPosition {
		return types.RejectPositionLimitExceeded
	}

	return types.RejectNone
}

// RecordAccepted appends the attempted quantity and side to the user's trade
// history. Called after the book reports back on an accepted order; rate
// limiting counts attempted, not filled, flow.
func (g *Gate) RecordAccepted(order types.Order, now time.Time) {
	g.ledger.RecordTrade(order.UserID, order.Symbol, order.OriginalQty, order.Side, now)
	g.logger.Debug("order accepted",
		"user", order.UserID,
		"symbol", order.Symbol,
		"side", order.Side,
		"qty", order.OriginalQty,
	)
}

// Message returns a human-readable explanation for a rejection.
func Message(reason types.RejectReason) string {
	switch reason {
	case types.RejectInvalidInstrument:
		return "unknown instrument"
	case types.RejectOrderSizeExceeded:
		return "order quantity exceeds the per-order limit"
	case types.RejectRateLimitExceeded:
		return "per-minute traded volume limit exceeded"
	case types.RejectReversalBlocked:
		return "rapid position reversal blocked"
	case types.RejectPositionLimitExceeded:
		return "resulting position would exceed the position limit"
	default:
		return "order accepted"
	}
}
