// Package generator emits small paired orders that pull the book toward the
// GBM reference price.
//
// Every cycle it quotes one buy and one sell of quantity 1 per symbol,
// centered on the GBM price and separated by the book's current clamped
// spread. The orders go through normal matching under a dedicated ledger
// identity, so they trade against whatever rests near fair value and drag
// the market mid toward the reference.
package generator

import (
	"log/slog"

	"tradesim/internal/book"
	"tradesim/internal/sim"
	"tradesim/pkg/types"
)

// UserID is the ledger identity generator orders trade under.
const UserID = "generator"

// Generator couples the GBM reference to the order book.
type Generator struct {
	symbols []string
	book    *book.Book
	gbm     *sim.Manager
	logger  *slog.Logger
}

// New creates a generator over the given symbols.
func New(symbols []string, bk *book.Book, gbm *sim.Manager, logger *slog.Logger) *Generator {
	return &Generator{
		symbols: symbols,
		book:    bk,
		gbm:     gbm,
		logger:  logger.With("component", "generator"),
	}
}

// Tick submits one buy/sell pair per symbol around the GBM reference.
// Generator orders skip the risk gate; they are the simulation's own flow.
func (g *Generator) Tick() {
	for _, symbol := range g.symbols {
		ref, ok := g.gbm.Price(symbol)
		if !ok || ref <= 0 {
			continue
		}

		// No two-sided clamped market means no spread to quote around;
		// sit the cycle out for this symbol.
		spread, ok := g.book.ClampedSpread(symbol)
		if !ok {
			continue
		}

		buy := types.Order{
			UserID:      UserID,
			Symbol:      symbol,
			Side:        types.Buy,
			Price:       ref - spread/2,
			OriginalQty: 1,
		}
		sell := types.Order{
			UserID:      UserID,
			Symbol:      symbol,
			Side:        types.Sell,
			Price:       ref + spread/2,
			OriginalQty: 1,
		}
		if buy.Price <= 0 {
			continue
		}

		g.book.Submit(buy, false)
		g.book.Submit(sell, false)
	}
}
