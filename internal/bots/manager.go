package bots

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"tradesim/internal/book"
	"tradesim/pkg/types"
)

// quoteRef remembers one outstanding bot quote so the next refresh can
// detect how much of it filled.
type quoteRef struct {
	id          string
	side        types.Side
	originalQty int64
}

// Manager owns one bot per instrument and drives their refresh cycles
// against the shared book. Refreshes are serialized by the engine's bot
// loop, so the manager needs no lock of its own.
type Manager struct {
	bots   map[string]*Bot
	order  []string // symbols in seed order, for deterministic iteration
	book   *book.Book
	quotes map[string][]quoteRef // symbol -> outstanding quotes
	logger *slog.Logger
}

// NewManager creates bots for every instrument.
func NewManager(instruments []types.Instrument, bk *book.Book, logger *slog.Logger) *Manager {
	m := &Manager{
		bots:   make(map[string]*Bot, len(instruments)),
		book:   bk,
		quotes: make(map[string][]quoteRef),
		logger: logger.With("component", "bots"),
	}
	for _, inst := range instruments {
		m.bots[inst.ID] = NewBot(inst, rand.New(rand.NewSource(time.Now().UnixNano())))
		m.order = append(m.order, inst.ID)
	}
	return m
}

// UserPrefix prefixes the ledger identity of every bot.
const UserPrefix = "liquidity_bot_"

// BotUserID returns the ledger identity a symbol's bot trades under.
func BotUserID(symbol string) string {
	return fmt.Sprintf("%s%s", UserPrefix, symbol)
}

// Inventory returns a bot's current inventory (0 for unknown symbols).
func (m *Manager) Inventory(symbol string) int64 {
	if b, ok := m.bots[symbol]; ok {
		return b.Inventory()
	}
	return 0
}

// RefreshAll runs one refresh cycle for every bot.
func (m *Manager) RefreshAll() {
	for _, symbol := range m.order {
		m.refreshSymbol(symbol)
	}
}

// refreshSymbol settles fills on the prior cycle's quotes into the bot's
// inventory, cancels what remains, and posts a fresh ladder.
func (m *Manager) refreshSymbol(symbol string) {
	bot := m.bots[symbol]

	// Settle and withdraw the previous ladder. A quote missing from the
	// book filled completely since the bot itself is the only canceller.
	for _, q := range m.quotes[symbol] {
		remaining, alive := m.book.RemainingQty(q.id)
		filled := q.originalQty
		if alive {
			filled = q.originalQty - remaining
			m.book.Cancel(q.id)
		}
		if filled > 0 {
			if q.side == types.Buy {
				bot.AdjustInventory(filled)
			} else {
				bot.AdjustInventory(-filled)
			}
			m.logger.Debug("bot fill settled",
				"symbol", symbol,
				"side", q.side,
				"filled", filled,
				"inventory", bot.Inventory(),
			)
		}
	}
	m.quotes[symbol] = m.quotes[symbol][:0]

	// Bots are handed zero drift: they make markets, they do not trade news.
	ladder := bot.GenerateLadder(0)
	m.placeLadder(symbol, types.Buy, ladder.Bids)
	m.placeLadder(symbol, types.Sell, ladder.Asks)
}

// placeLadder submits one side's quotes as passive orders and remembers
// them for the next cycle's settlement.
func (m *Manager) placeLadder(symbol string, side types.Side, levels []QuoteLevel) {
	for _, lvl := range levels {
		if lvl.Price <= 0 || lvl.Quantity <= 0 {
			continue
		}
		order := types.Order{
			ID:          uuid.NewString(),
			UserID:      BotUserID(symbol),
			Symbol:      symbol,
			Side:        side,
			Price:       lvl.Price,
			OriginalQty: lvl.Quantity,
		}
		// Passive: rest without matching, even if crossing.
		m.book.Submit(order, true)
		m.quotes[symbol] = append(m.quotes[symbol], quoteRef{
			id:          order.ID,
			side:        side,
			originalQty: order.OriginalQty,
		})
	}
}
