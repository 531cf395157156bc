package risk

import (
	"log/slog"
	"testing"
	"time"

	"tradesim/internal/ledger"
	"tradesim/internal/registry"
	"tradesim/pkg/types"
)

func newTestGate() (*Gate, *ledger.Ledger) {
	logger := slog.Default()
	led := ledger.New(logger)
	reg := registry.New([]types.Instrument{
		{ID: "NOVA", S0: 178},
		{ID: "TRAX", S0: 55},
	})
	return NewGate(reg, led, logger), led
}

func userOrder(symbol string, side types.Side, qty int64) types.Order {
	return types.Order{
		UserID:      "alice",
		Symbol:      symbol,
		Side:        side,
		Price:       100,
		OriginalQty: qty,
	}
}

func TestCheckAcceptsValidOrder(t *testing.T) {
	t.Parallel()
	g, _ := newTestGate()

	if got := g.Check(userOrder("NOVA", types.Buy, 100), time.Now()); got != types.RejectNone {
		t.Errorf("reason = %v, want none", got)
	}
}

func TestCheckRejectsUnknownInstrument(t *testing.T) {
	t.Parallel()
	g, _ := newTestGate()

	if got := g.Check(userOrder("FAKE", types.Buy, 10), time.Now()); got != types.RejectInvalidInstrument {
		t.Errorf("reason = %v, want invalid_instrument", got)
	}
}

func TestCheckRejectsOversizedOrder(t *testing.T) {
	t.Parallel()
	g, led := newTestGate()
	now := time.Now()

	if got := g.Check(userOrder("NOVA", types.Buy, MaxOrderSize+1), now); got != types.RejectOrderSizeExceeded {
		t.Errorf("reason = %v, want order_size_exceeded", got)
	}
	// A rejected order leaves no trace in the attempted-trade history.
	if vol := led.RecentVolume("alice", "NOVA", time.Minute, now); vol != 0 {
		t.Errorf("recorded volume after rejection = %d, want 0", vol)
	}

	// Exactly at the limit passes the size check.
	if got := g.Check(userOrder("NOVA", types.Buy, MaxOrderSize), now); got == types.RejectOrderSizeExceeded {
		t.Error("order at the size limit should pass")
	}
}

func TestCheckRateLimitCountsAttemptedFlow(t *testing.T) {
	t.Parallel()
	g, _ := newTestGate()
	now := time.Now()

	// 600 attempted in-window, another 500 would breach 1000/minute.
	g.RecordAccepted(userOrder("NOVA", types.Buy, 300), now.Add(-20*time.Second))
	g.RecordAccepted(userOrder("NOVA", types.Buy, 300), now.Add(-10*time.Second))

	if got := g.Check(userOrder("NOVA", types.Buy, 500), now); got != types.RejectRateLimitExceeded {
		t.Errorf("reason = %v, want rate_limit_exceeded", got)
	}
	// 400 still fits.
	if got := g.Check(userOrder("NOVA", types.Buy, 400), now); got != types.RejectNone {
		t.Errorf("reason = %v, want none", got)
	}
	// Other symbols are unaffected.
	if got := g.Check(userOrder("TRAX", types.Buy, 500), now); got != types.RejectNone {
		t.Errorf("reason for other symbol = %v, want none", got)
	}
}

func TestCheckReversalGuard(t *testing.T) {
	t.Parallel()
	g, _ := newTestGate()
	now := time.Now()

	// A large buy 10s ago blocks a sell now.
	g.RecordAccepted(userOrder("NOVA", types.Buy, 150), now.Add(-10*time.Second))

	if got := g.Check(userOrder("NOVA", types.Sell, 10), now); got != types.RejectReversalBlocked {
		t.Errorf("reason = %v, want reversal_blocked", got)
	}
	// Same side is fine.
	if got := g.Check(userOrder("NOVA", types.Buy, 10), now); got != types.RejectNone {
		t.Errorf("same-side reason = %v, want none", got)
	}
	// 35s after the trade the guard window has passed.
	if got := g.Check(userOrder("NOVA", types.Sell, 10), now.Add(25*time.Second)); got != types.RejectNone {
		t.Errorf("post-window reason = %v, want none", got)
	}
}

func TestCheckReversalIgnoresSmallTrades(t *testing.T) {
	t.Parallel()
	g, _ := newTestGate()
	now := time.Now()

	g.RecordAccepted(userOrder("NOVA", types.Buy, 99), now.Add(-5*time.Second))

	if got := g.Check(userOrder("NOVA", types.Sell, 10), now); got != types.RejectNone {
		t.Errorf("reason = %v, want none for sub-threshold reversal", got)
	}
}

func TestCheckPositionCap(t *testing.T) {
	t.Parallel()
	g, led := newTestGate()
	now := time.Now()

	// Walk position to 4900 long without touching trade history, so only
	// the position check can fire.
	for i := 0; i < 10; i++ {
		led.ApplyFill("alice", "NOVA", types.Buy, 490, 100)
	}

	if got := g.Check(userOrder("NOVA", types.Buy, 101), now); got != types.RejectPositionLimitExceeded {
		t.Errorf("reason = %v, want position_limit_exceeded", got)
	}
	if got := g.Check(userOrder("NOVA", types.Buy, 100), now); got != types.RejectNone {
		t.Errorf("reason = %v, want none at exactly the cap", got)
	}
	// Selling reduces exposure and always passes the cap here.
	if got := g.Check(userOrder("NOVA", types.Sell, 500), now); got != types.RejectNone {
		t.Errorf("sell reason = %v, want none", got)
	}
}

func TestMessageCoversAllReasons(t *testing.T) {
	t.Parallel()

	reasons := []types.RejectReason{
		types.RejectInvalidInstrument,
		types.RejectOrderSizeExceeded,
		types.RejectRateLimitExceeded,
		types.RejectReversalBlocked,
		types.RejectPositionLimitExceeded,
	}
	seen := make(map[string]bool)
	for _, r := range reasons {
		msg := Message(r)
		if msg == "" || msg == "order accepted" {
			t.Errorf("Message(%v) = %q, want a rejection explanation", r, msg)
		}
		if seen[msg] {
			t.Errorf("Message(%v) duplicates another reason's text", r)
		}
		seen[msg] = true
	}
}
