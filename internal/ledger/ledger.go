// Package ledger tracks per-user cash, positions, and P&L.
//
// Positions are kept as FIFO lot lists per symbol. Lots are signed: positive
// lots are long, negative lots are short, and lots of opposite signs never
// coexist for one user/symbol. A buy arriving against net-short lots closes
// the shorts front-to-back before opening a long lot (and symmetrically for
// sells), realizing P&L on every closed unit.
//
// Cash and realized P&L use shopspring/decimal so the cash-conservation
// identity (cash + Σ lot cost + realized == starting cash) holds exactly
// under any fill sequence. Mark-to-market values stay float64 since marks
// come from the float-valued book.
package ledger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/pkg/types"
)

// StartingCash is granted to every user on first observation.
// Parameter of the core, not configuration.
var StartingCash = decimal.NewFromInt(500_000)

// TradeRecord is one entry of a user's attempted-trade history. The risk
// gate appends on acceptance and reads it back for rate limiting and the
// reversal guard.
type TradeRecord struct {
	Symbol    string
	Quantity  int64
	Side      types.Side
	Timestamp time.Time
}

// UserState holds everything the simulator knows about one participant.
type UserState struct {
	UserID       string
	Cash         decimal.Decimal
	Portfolio    map[string][]types.Lot // symbol -> FIFO lots
	RealizedPnL  decimal.Decimal
	TradeHistory []TradeRecord
}

// Ledger owns all user states. States are created lazily with StartingCash
// on first observation and live for the process lifetime. A single RWMutex
// guards the whole ledger; executions go through ApplyExecution, which
// updates both parties of a fill under one critical section.
type Ledger struct {
	mu     sync.RWMutex
	users  map[string]*UserState
	logger *slog.Logger
}

// New creates an empty ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{
		users:  make(map[string]*UserState),
		logger: logger.With("component", "ledger"),
	}
}

// get returns the state for a user, creating it if needed. Caller holds mu.
func (l *Ledger) get(userID string) *UserState {
	u, ok := l.users[userID]
	if !ok {
		u = &UserState{
			UserID:    userID,
			Cash:      StartingCash,
			Portfolio: make(map[string][]types.Lot),
		}
		l.users[userID] = u
		l.logger.Debug("user created", "user", userID)
	}
	return u
}

// Touch ensures a user state exists (used when a user is first seen by the
// HTTP layer before any fill).
func (l *Ledger) Touch(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(userID)
}

// ApplyExecution books one execution against both parties under a single
// critical section: no reader can observe the buyer debited without the
// seller credited. This is the matching loop's entry point.
func (l *Ledger) ApplyExecution(fill types.Fill) {
	if fill.Quantity <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.applyLocked(fill.BuyerID, fill.Symbol, types.Buy, fill.Quantity, fill.Price)
	l.applyLocked(fill.SellerID, fill.Symbol, types.Sell, fill.Quantity, fill.Price)
}

// ApplyFill books one side of an execution against a user. Useful for
// seeding state directly; the matching path goes through ApplyExecution.
func (l *Ledger) ApplyFill(userID, symbol string, side types.Side, qty int64, price float64) {
	if qty <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.applyLocked(userID, symbol, side, qty, price)
}

// applyLocked moves cash and lots for one party. Caller holds mu.
func (l *Ledger) applyLocked(userID, symbol string, side types.Side, qty int64, price float64) {
	u := l.get(userID)
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(qty))

	if side == types.Buy {
		u.Cash = u.Cash.Sub(notional)
		l.applyBuy(u, symbol, qty, price)
	} else {
		u.Cash = u.Cash.Add(notional)
		l.applySell(u, symbol, qty, price)
	}
}

// applyBuy closes short lots FIFO, then opens a long lot with any residual.
func (l *Ledger) applyBuy(u *UserState, symbol string, qty int64, price float64) {
	lots := u.Portfolio[symbol]
	remaining := qty

	for remaining > 0 && len(lots) > 0 && lots[0].Quantity < 0 {
		shortQty := -lots[0].Quantity
		closeQty := min64(remaining, shortQty)

		// Short closed at `price`, opened at entry: pnl = (entry - price) * qty.
		pnl := decimal.NewFromFloat(lots[0].EntryPrice).
			Sub(decimal.NewFromFloat(price)).
			Mul(decimal.NewFromInt(closeQty))
		u.RealizedPnL = u.RealizedPnL.Add(pnl)

		lots[0].Quantity += closeQty
		if lots[0].Quantity == 0 {
			lots = lots[1:]
		}
		remaining -= closeQty
	}

	if remaining > 0 {
		lots = append(lots, types.Lot{Symbol: symbol, Quantity: remaining, EntryPrice: price})
	}
	u.Portfolio[symbol] = lots
}

// applySell closes long lots FIFO, then opens a short lot with any residual.
func (l *Ledger) applySell(u *UserState, symbol string, qty int64, price float64) {
	lots := u.Portfolio[symbol]
	remaining := qty

	for remaining > 0 && len(lots) > 0 && lots[0].Quantity > 0 {
		closeQty := min64(remaining, lots[0].Quantity)

		// Long closed at `price`, opened at entry: pnl = (price - entry) * qty.
		pnl := decimal.NewFromFloat(price).
			Sub(decimal.NewFromFloat(lots[0].EntryPrice)).
			Mul(decimal.NewFromInt(closeQty))
		u.RealizedPnL = u.RealizedPnL.Add(pnl)

		lots[0].Quantity -= closeQty
		if lots[0].Quantity == 0 {
			lots = lots[1:]
		}
		remaining -= closeQty
	}

	if remaining > 0 {
		lots = append(lots, types.Lot{Symbol: symbol, Quantity: -remaining, EntryPrice: price})
	}
	u.Portfolio[symbol] = lots
}

// Position returns the signed net quantity for a user/symbol.
func (l *Ledger) Position(userID, symbol string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.users[userID]
	if !ok {
		return 0
	}
	var net int64
	for _, lot := range u.Portfolio[symbol] {
		net += lot.Quantity
	}
	return net
}

// Cash returns the user's cash balance.
func (l *Ledger) Cash(userID string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if u, ok := l.users[userID]; ok {
		return u.Cash
	}
	return StartingCash
}

// RealizedPnL returns the sum of all close-lot P&L events for a user.
func (l *Ledger) RealizedPnL(userID string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if u, ok := l.users[userID]; ok {
		return u.RealizedPnL
	}
	return decimal.Zero
}

// UnrealizedPnL marks every lot against the supplied prices. Symbols with no
// mark contribute nothing.
func (l *Ledger) UnrealizedPnL(userID string, marks map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.users[userID]
	if !ok {
		return 0
	}

	var total float64
	for symbol, lots := range u.Portfolio {
		mark, ok := marks[symbol]
		if !ok {
			continue
		}
		for _, lot := range lots {
			// Long: (mark - entry) * qty. Short: (entry - mark) * |qty|.
			// Both collapse to (mark - entry) * signed qty.
			total += (mark - lot.EntryPrice) * float64(lot.Quantity)
		}
	}
	return total
}

// MarketValue returns Σ mark × signed qty across all lots (shorts subtract).
func (l *Ledger) MarketValue(userID string, marks map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.users[userID]
	if !ok {
		return 0
	}

	var total float64
	for symbol, lots := range u.Portfolio {
		mark, ok := marks[symbol]
		if !ok {
			continue
		}
		for _, lot := range lots {
			total += mark * float64(lot.Quantity)
		}
	}
	return total
}

// Lots returns a copy of the user's lots for one symbol, FIFO order.
func (l *Ledger) Lots(userID, symbol string) []types.Lot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.users[userID]
	if !ok {
		return nil
	}
	lots := make([]types.Lot, len(u.Portfolio[symbol]))
	copy(lots, u.Portfolio[symbol])
	return lots
}

// Positions returns a copy of every symbol's lots for a user.
func (l *Ledger) Positions(userID string) map[string][]types.Lot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.users[userID]
	if !ok {
		return nil
	}
	out := make(map[string][]types.Lot, len(u.Portfolio))
	for symbol, lots := range u.Portfolio {
		cp := make([]types.Lot, len(lots))
		copy(cp, lots)
		out[symbol] = cp
	}
	return out
}

// RecordTrade appends to the user's attempted-trade history. Called by the
// risk gate after the book reports back on an accepted order.
func (l *Ledger) RecordTrade(userID, symbol string, qty int64, side types.Side, ts time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.get(userID)
	u.TradeHistory = append(u.TradeHistory, TradeRecord{
		Symbol:    symbol,
		Quantity:  qty,
		Side:      side,
		Timestamp: ts,
	})
}

// RecentVolume sums attempted quantity for a user/symbol within the window
// ending at now.
func (l *Ledger) RecentVolume(userID, symbol string, window time.Duration, now time.Time) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.users[userID]
	if !ok {
		return 0
	}
	cutoff := now.Add(-window)

	var volume int64
	for _, tr := range u.TradeHistory {
		if tr.Symbol == symbol && !tr.Timestamp.Before(cutoff) {
			volume += tr.Quantity
		}
	}
	return volume
}

// LastTradeWithin returns the user's most recent trade on a symbol inside the
// window, if any.
func (l *Ledger) LastTradeWithin(userID, symbol string, window time.Duration, now time.Time) (TradeRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	u, ok := l.users[userID]
	if !ok {
		return TradeRecord{}, false
	}
	cutoff := now.Add(-window)

	for i := len(u.TradeHistory) - 1; i >= 0; i-- {
		tr := u.TradeHistory[i]
		if tr.Symbol != symbol {
			continue
		}
		if tr.Timestamp.Before(cutoff) {
			return TradeRecord{}, false
		}
		return tr, true
	}
	return TradeRecord{}, false
}

// UserSnapshot is the persistable form of a user's state. Trade history is
// deliberately absent: the rate-limit and reversal windows are seconds long,
// so replaying it across a restart buys nothing.
type UserSnapshot struct {
	UserID      string                 `json:"user_id"`
	Cash        decimal.Decimal        `json:"cash"`
	RealizedPnL decimal.Decimal        `json:"realized_pnl"`
	Portfolio   map[string][]types.Lot `json:"portfolio"`
}

// SnapshotAll exports every user's state for persistence.
func (l *Ledger) SnapshotAll() []UserSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]UserSnapshot, 0, len(l.users))
	for _, u := range l.users {
		portfolio := make(map[string][]types.Lot, len(u.Portfolio))
		for symbol, lots := range u.Portfolio {
			cp := make([]types.Lot, len(lots))
			copy(cp, lots)
			portfolio[symbol] = cp
		}
		out = append(out, UserSnapshot{
			UserID:      u.UserID,
			Cash:        u.Cash,
			RealizedPnL: u.RealizedPnL,
			Portfolio:   portfolio,
		})
	}
	return out
}

// Restore installs a persisted user state, replacing any existing one.
func (l *Ledger) Restore(snap UserSnapshot) {
	if snap.UserID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	portfolio := snap.Portfolio
	if portfolio == nil {
		portfolio = make(map[string][]types.Lot)
	}
	l.users[snap.UserID] = &UserState{
		UserID:      snap.UserID,
		Cash:        snap.Cash,
		RealizedPnL: snap.RealizedPnL,
		Portfolio:   portfolio,
	}
}

// Users returns the ids of every known user.
func (l *Ledger) Users() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.users))
	for id := range l.users {
		ids = append(ids, id)
	}
	return ids
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
