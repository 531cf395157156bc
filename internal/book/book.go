// Package book implements the central limit order book.
//
// Each (symbol, side) owns a priority queue: bids are a max-heap by price,
// asks a min-heap, with arrival sequence breaking ties (price-time priority).
// Matching trades at the resting order's price. Each fill is handed to the
// ledger as one execution covering both parties, so a ledger reader never
// sees one side of a fill without the other.
//
// The book also tracks, per symbol, the last traded price and the previous
// tick's mid. Those two references define the clamp: an outlier filter with
// radius |prevMid - lastTrade| * clampK used for reported best quotes and bot
// quoting. Matching never consults the clamp — it always uses true best
// prices so price-time priority is preserved.
package book

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradesim/pkg/types"
)

// clampK scales the clamp radius around the previous mid.
const clampK = 2.5

// FillHandler books each execution against both parties. Implemented by the
// ledger, which applies the pair under one critical section of its own.
type FillHandler interface {
	ApplyExecution(fill types.Fill)
}

// restingOrder is the book's internal order record. The heap entry and the
// id index share this pointer, so price and remaining quantity stay
// consistent everywhere.
type restingOrder struct {
	types.Order
	seq          uint64
	cancelled    bool
	fillNotional float64 // Σ price*qty over this order's fills, for VWAP
}

func (o *restingOrder) live() bool {
	return !o.cancelled && o.RemainingQty > 0
}

func (o *restingOrder) status() types.OrderStatus {
	switch {
	case o.RemainingQty == 0:
		return types.StatusFilled
	case o.RemainingQty < o.OriginalQty:
		return types.StatusPartiallyFilled
	default:
		return types.StatusOpen
	}
}

// orderHeap is a price-time priority queue. max=true for bids.
type orderHeap struct {
	orders []*restingOrder
	max    bool
}

func (h *orderHeap) Len() int { return len(h.orders) }

func (h *orderHeap) Less(i, j int) bool {
	a, b := h.orders[i], h.orders[j]
	if a.Price != b.Price {
		if h.max {
			return a.Price > b.Price
		}
		return a.Price < b.Price
	}
	return a.seq < b.seq // earlier arrival first
}

func (h *orderHeap) Swap(i, j int) { h.orders[i], h.orders[j] = h.orders[j], h.orders[i] }

func (h *orderHeap) Push(x any) { h.orders = append(h.orders, x.(*restingOrder)) }

func (h *orderHeap) Pop() any {
	old := h.orders
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	h.orders = old[:n-1]
	return x
}

// peek discards cancelled and fully-filled entries, then returns the best
// live order, or nil if the side is empty.
func (h *orderHeap) peek() *restingOrder {
	for h.Len() > 0 {
		best := h.orders[0]
		if best.live() {
			return best
		}
		heap.Pop(h)
	}
	return nil
}

// Book is the process-wide order book covering all symbols. A single mutex
// guards all state; submission and cancellation are the only entry points
// that mutate it.
type Book struct {
	mu     sync.Mutex
	bids   map[string]*orderHeap
	asks   map[string]*orderHeap
	byID   map[string]*restingOrder // orders currently resting in the book
	byUser map[string][]*restingOrder

	lastTrade map[string]float64
	prevMid   map[string]float64

	seq    uint64
	fills  FillHandler
	logger *slog.Logger
}

// New creates an empty book. Fills are forwarded to the given handler.
func New(fills FillHandler, logger *slog.Logger) *Book {
	return &Book{
		bids:      make(map[string]*orderHeap),
		asks:      make(map[string]*orderHeap),
		byID:      make(map[string]*restingOrder),
		byUser:    make(map[string][]*restingOrder),
		lastTrade: make(map[string]float64),
		prevMid:   make(map[string]float64),
		fills:     fills,
		logger:    logger.With("component", "book"),
	}
}

func (b *Book) heapFor(symbol string, side types.Side) *orderHeap {
	var m map[string]*orderHeap
	if side == types.Buy {
		m = b.bids
	} else {
		m = b.asks
	}
	h, ok := m[symbol]
	if !ok {
		h = &orderHeap{max: side == types.Buy}
		m[symbol] = h
	}
	return h
}

// Submit runs an order through matching and rests any residual at its limit
// price. When passive is true the order skips matching entirely and rests
// directly, even if it crosses — that is how bot quotes enter the book
// without trading through the mid.
func (b *Book) Submit(order types.Order, passive bool) types.SubmitResult {
	if order.OriginalQty <= 0 {
		return types.SubmitResult{Status: types.StatusOpen}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ro := &restingOrder{Order: order, seq: b.seq}
	if ro.ID == "" {
		ro.ID = uuid.NewString()
	}
	if ro.CreatedAt.IsZero() {
		ro.CreatedAt = time.Now()
	}
	ro.RemainingQty = ro.OriginalQty
	b.byUser[ro.UserID] = append(b.byUser[ro.UserID], ro)

	if !passive {
		b.match(ro)
	}

	if ro.RemainingQty > 0 {
		heap.Push(b.heapFor(ro.Symbol, ro.Side), ro)
		b.byID[ro.ID] = ro
	}

	filled := ro.OriginalQty - ro.RemainingQty
	res := types.SubmitResult{
		Status:      ro.status(),
		UnfilledQty: ro.RemainingQty,
	}
	if filled > 0 {
		res.AvgFillPrice = ro.fillNotional / float64(filled)
	}
	return res
}

// match fills the incoming order against the opposite side while prices are
// compatible. Caller holds the lock.
func (b *Book) match(incoming *restingOrder) {
	opposite := b.heapFor(incoming.Symbol, incoming.Side.Opposite())

	for incoming.RemainingQty > 0 {
		resting := opposite.peek()
		if resting == nil {
			return
		}
		if incoming.Side == types.Buy && resting.Price > incoming.Price {
			return
		}
		if incoming.Side == types.Sell && resting.Price < incoming.Price {
			return
		}

		qty := min64(incoming.RemainingQty, resting.RemainingQty)
		price := resting.Price // passive-priced

		incoming.RemainingQty -= qty
		incoming.fillNotional += price * float64(qty)
		resting.RemainingQty -= qty
		resting.fillNotional += price * float64(qty)

		if resting.RemainingQty == 0 {
			heap.Pop(opposite)
			delete(b.byID, resting.ID)
		}

		b.applyFill(incoming, resting, qty, price)
	}
}

// applyFill hands the execution to the fill handler and updates the
// last-trade reference. Caller holds the book lock; pair atomicity on the
// ledger side is the handler's job, not the book's.
func (b *Book) applyFill(incoming, resting *restingOrder, qty int64, price float64) {
	buyer, seller := incoming, resting
	if incoming.Side == types.Sell {
		buyer, seller = resting, incoming
	}

	b.fills.ApplyExecution(types.Fill{
		Symbol:    incoming.Symbol,
		Price:     price,
		Quantity:  qty,
		BuyerID:   buyer.UserID,
		SellerID:  seller.UserID,
		Timestamp: time.Now(),
	})
	b.lastTrade[incoming.Symbol] = price

	b.logger.Debug("fill",
		"symbol", incoming.Symbol,
		"price", price,
		"qty", qty,
		"buyer", buyer.UserID,
		"seller", seller.UserID,
	)
}

// Cancel removes a resting order. Returns false for unknown, already filled,
// or already cancelled ids. The heap entry is evicted lazily on next peek.
func (b *Book) Cancel(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ro, ok := b.byID[orderID]
	if !ok || !ro.live() {
		return false
	}
	ro.cancelled = true
	delete(b.byID, orderID)
	return true
}

// BestBid returns the true best bid for a symbol (no clamp).
func (b *Book) BestBid(symbol string) (types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestLocked(symbol, types.Buy)
}

// BestAsk returns the true best ask for a symbol (no clamp).
func (b *Book) BestAsk(symbol string) (types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestLocked(symbol, types.Sell)
}

func (b *Book) bestLocked(symbol string, side types.Side) (types.Order, bool) {
	best := b.heapFor(symbol, side).peek()
	if best == nil {
		return types.Order{}, false
	}
	return best.Order, true
}

// clampRadius returns the clamp radius for a symbol, or false when either
// reference (previous mid, last trade) is unset.
func (b *Book) clampRadius(symbol string) (mid, radius float64, ok bool) {
	mid, haveMid := b.prevMid[symbol]
	last, haveLast := b.lastTrade[symbol]
	if !haveMid || !haveLast {
		return 0, 0, false
	}
	radius = abs(mid-last) * clampK
	return mid, radius, true
}

// bestWithinClampLocked returns the best live order on a side whose price is
// inside the clamp band. With no clamp references it degrades to the true
// best. Scans the heap slice; live orders per side stay small.
func (b *Book) bestWithinClampLocked(symbol string, side types.Side) (types.Order, bool) {
	prevMid, radius, haveClamp := b.clampRadius(symbol)
	if !haveClamp {
		return b.bestLocked(symbol, side)
	}

	h := b.heapFor(symbol, side)
	var best *restingOrder
	for _, o := range h.orders {
		if !o.live() {
			continue
		}
		if side == types.Buy {
			// Highest bid at or below prevMid + radius.
			if o.Price > prevMid+radius {
				continue
			}
			if best == nil || o.Price > best.Price || (o.Price == best.Price && o.seq < best.seq) {
				best = o
			}
		} else {
			// Lowest ask at or above prevMid - radius.
			if o.Price < prevMid-radius {
				continue
			}
			if best == nil || o.Price < best.Price || (o.Price == best.Price && o.seq < best.seq) {
				best = o
			}
		}
	}
	if best == nil {
		return types.Order{}, false
	}
	return best.Order, true
}

// BestBidWithinClamp returns the highest bid inside the clamp band.
func (b *Book) BestBidWithinClamp(symbol string) (types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestWithinClampLocked(symbol, types.Buy)
}

// BestAskWithinClamp returns the lowest ask inside the clamp band.
func (b *Book) BestAskWithinClamp(symbol string) (types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestWithinClampLocked(symbol, types.Sell)
}

// Mid returns the midpoint of the clamp-restricted best bid and ask, and
// records it as the previous mid for the next tick's clamp.
func (b *Book) Mid(symbol string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bid, okB := b.bestWithinClampLocked(symbol, types.Buy)
	ask, okA := b.bestWithinClampLocked(symbol, types.Sell)
	if !okB || !okA {
		return 0, false
	}
	mid := (bid.Price + ask.Price) / 2
	b.prevMid[symbol] = mid
	return mid, true
}

// ClampedSpread returns ask - bid of the clamp-restricted bests, when both
// exist and the spread is positive. The order generator quotes around the
// GBM reference using this spread.
func (b *Book) ClampedSpread(symbol string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bid, okB := b.bestWithinClampLocked(symbol, types.Buy)
	ask, okA := b.bestWithinClampLocked(symbol, types.Sell)
	if !okB || !okA {
		return 0, false
	}
	spread := ask.Price - bid.Price
	if spread <= 0 {
		return 0, false
	}
	return spread, true
}

// LastTradedPrice returns the price of the most recent fill on a symbol.
func (b *Book) LastTradedPrice(symbol string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.lastTrade[symbol]
	return p, ok
}

// SetLastTradedPrice seeds the last-trade reference directly. Test hook;
// production code only moves it through fills, so the reference stays unset
// until the first trade.
func (b *Book) SetLastTradedPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastTrade[symbol] = price
}

// RemainingQty reports the remaining quantity of a resting order. ok is
// false when the order is no longer in the book (filled or cancelled).
func (b *Book) RemainingQty(orderID string) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ro, ok := b.byID[orderID]
	if !ok || !ro.live() {
		return 0, false
	}
	return ro.RemainingQty, true
}

// Snapshot returns the top-of-book ladders up to depth orders per side,
// best first.
func (b *Book) Snapshot(symbol string, depth int) (bids, asks []types.PriceLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	collect := func(h *orderHeap) []types.PriceLevel {
		live := make([]*restingOrder, 0, len(h.orders))
		for _, o := range h.orders {
			if o.live() {
				live = append(live, o)
			}
		}
		// Order by heap priority without disturbing the heap itself.
		tmp := &orderHeap{orders: live, max: h.max}
		heap.Init(tmp)
		levels := make([]types.PriceLevel, 0, depth)
		for tmp.Len() > 0 && len(levels) < depth {
			o := heap.Pop(tmp).(*restingOrder)
			levels = append(levels, types.PriceLevel{Price: o.Price, Quantity: o.RemainingQty})
		}
		return levels
	}

	return collect(b.heapFor(symbol, types.Buy)), collect(b.heapFor(symbol, types.Sell))
}

// OpenOrdersFor returns copies of a user's resting orders.
func (b *Book) OpenOrdersFor(userID string) []types.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Order
	for _, ro := range b.byUser[userID] {
		if ro.live() && b.byID[ro.ID] == ro {
			out = append(out, ro.Order)
		}
	}
	return out
}

// OrderView is one order with its lifecycle status, for the orders endpoint.
type OrderView struct {
	types.Order
	Status types.OrderStatus `json:"status"`
}

// OrdersFor returns a user's full order history, open and tombstoned, in
// submission order.
func (b *Book) OrdersFor(userID string) []OrderView {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := b.byUser[userID]
	out := make([]OrderView, 0, len(orders))
	for _, ro := range orders {
		out = append(out, OrderView{Order: ro.Order, Status: ro.status()})
	}
	return out
}

// DepthCount returns the number of live orders on each side of a symbol.
func (b *Book) DepthCount(symbol string) (bidCount, askCount int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, o := range b.heapFor(symbol, types.Buy).orders {
		if o.live() {
			bidCount++
		}
	}
	for _, o := range b.heapFor(symbol, types.Sell).orders {
		if o.live() {
			askCount++
		}
	}
	return bidCount, askCount
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
