package bots

import (
	"log/slog"
	"math/rand"
	"testing"

	"tradesim/internal/book"
	"tradesim/internal/ledger"
	"tradesim/pkg/types"
)

var testInst = types.Instrument{ID: "NOVA", S0: 178, Mean: 0.14, Variance: 0.2116}

func newTestBot(seed int64) *Bot {
	return NewBot(testInst, rand.New(rand.NewSource(seed)))
}

func TestGenerateLadderShape(t *testing.T) {
	t.Parallel()
	b := newTestBot(1)

	ladder := b.GenerateLadder(0)
	if len(ladder.Bids) != ladderLevels || len(ladder.Asks) != ladderLevels {
		t.Fatalf("ladder sizes = %d/%d, want %d/%d",
			len(ladder.Bids), len(ladder.Asks), ladderLevels, ladderLevels)
	}

	// Bids step down, asks step up (rounding can tie adjacent levels), and
	// the top bid sits below the top ask.
	for i := 1; i < ladderLevels; i++ {
		if ladder.Bids[i].Price > ladder.Bids[i-1].Price {
			t.Errorf("bids not monotone: %+v", ladder.Bids)
		}
		if ladder.Asks[i].Price < ladder.Asks[i-1].Price {
			t.Errorf("asks not monotone: %+v", ladder.Asks)
		}
	}
	if ladder.Bids[0].Price >= ladder.Asks[0].Price {
		t.Errorf("top of ladder crossed: bid %v >= ask %v", ladder.Bids[0].Price, ladder.Asks[0].Price)
	}
}

func TestDepthDecreasesPerLevel(t *testing.T) {
	t.Parallel()

	want := []int64{50, 40, 30}
	for level, w := range want {
		if got := depthAt(level); got != w {
			t.Errorf("depthAt(%d) = %d, want %d", level, got, w)
		}
	}
	// Deep levels floor at 10.
	if got := depthAt(10); got != 10 {
		t.Errorf("depthAt(10) = %d, want 10", got)
	}
}

func TestLongInventorySuppressesBids(t *testing.T) {
	t.Parallel()
	b := newTestBot(2)
	b.AdjustInventory(maxInventory)

	ladder := b.GenerateLadder(0)
	if len(ladder.Bids) != 0 {
		t.Errorf("bids = %+v, want none at long cap", ladder.Bids)
	}
	if len(ladder.Asks) != ladderLevels {
		t.Errorf("asks = %d levels, want %d", len(ladder.Asks), ladderLevels)
	}
}

func TestShortInventorySuppressesAsks(t *testing.T) {
	t.Parallel()
	b := newTestBot(3)
	b.AdjustInventory(-maxInventory)

	ladder := b.GenerateLadder(0)
	if len(ladder.Asks) != 0 {
		t.Errorf("asks = %+v, want none at short cap", ladder.Asks)
	}
	if len(ladder.Bids) != ladderLevels {
		t.Errorf("bids = %d levels, want %d", len(ladder.Bids), ladderLevels)
	}
}

func TestMidNeverWalksBelowFloor(t *testing.T) {
	t.Parallel()
	b := newTestBot(4)
	// Heavy long inventory pushes the mid down every cycle.
	b.AdjustInventory(invPressureCap)

	floor := testInst.S0 * minPriceFraction
	for i := 0; i < 5_000; i++ {
		b.GenerateLadder(0)
		if b.Mid() < floor {
			t.Fatalf("cycle %d: mid %v below floor %v", i, b.Mid(), floor)
		}
	}
}

func TestManagerSettlesFillsIntoInventory(t *testing.T) {
	t.Parallel()

	logger := slog.Default()
	led := ledger.New(logger)
	bk := book.New(led, logger)
	m := NewManager([]types.Instrument{testInst}, bk, logger)

	// First refresh rests the initial ladders.
	m.RefreshAll()
	if bids, asks := bk.DepthCount("NOVA"); bids == 0 || asks == 0 {
		t.Fatalf("depth after refresh = %d/%d, want quotes on both sides", bids, asks)
	}
	if inv := m.Inventory("NOVA"); inv != 0 {
		t.Fatalf("inventory before any fill = %d, want 0", inv)
	}

	// Lift the bot's best ask for 5.
	ask, ok := bk.BestAsk("NOVA")
	if !ok {
		t.Fatal("no best ask after refresh")
	}
	bk.Submit(types.Order{
		UserID:      "taker",
		Symbol:      "NOVA",
		Side:        types.Buy,
		Price:       ask.Price,
		OriginalQty: 5,
	}, false)

	// Next refresh books the sale as negative inventory.
	m.RefreshAll()
	if inv := m.Inventory("NOVA"); inv != -5 {
		t.Errorf("inventory after sale = %d, want -5", inv)
	}
	if pos := led.Position(BotUserID("NOVA"), "NOVA"); pos != -5 {
		t.Errorf("ledger position = %d, want -5", pos)
	}
}

func TestManagerReplacesQuotesEachCycle(t *testing.T) {
	t.Parallel()

	logger := slog.Default()
	led := ledger.New(logger)
	bk := book.New(led, logger)
	m := NewManager([]types.Instrument{testInst}, bk, logger)

	m.RefreshAll()
	first := bk.OpenOrdersFor(BotUserID("NOVA"))

	m.RefreshAll()
	second := bk.OpenOrdersFor(BotUserID("NOVA"))

	if len(second) != 2*ladderLevels {
		t.Fatalf("open quotes = %d, want %d", len(second), 2*ladderLevels)
	}
	// Every first-cycle order is gone.
	old := make(map[string]bool, len(first))
	for _, o := range first {
		old[o.ID] = true
	}
	for _, o := range second {
		if old[o.ID] {
			t.Errorf("order %s survived the cancel-and-replace cycle", o.ID)
		}
	}
}
