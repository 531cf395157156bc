// Package engine is the central orchestrator of the trading simulator.
//
// It wires together all subsystems:
//
//  1. The news engine activates scheduled macro shocks and computes
//     per-instrument drift.
//  2. GBM simulators consume that drift and step reference prices.
//  3. Market-making bots refresh passive quote ladders in the book.
//  4. The order generator couples the book to the GBM reference with small
//     paired orders.
//  5. Mid prices are pushed to WebSocket subscribers on a fixed cadence.
//
// Each concern runs on its own ticker goroutine; a loop iteration that does
// nothing useful (empty book, no candidates) is a no-op, never an error.
//
// Lifecycle: New() → Start() → [runs until SIGINT] → Stop()
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradesim/internal/book"
	"tradesim/internal/bots"
	"tradesim/internal/config"
	"tradesim/internal/generator"
	"tradesim/internal/ledger"
	"tradesim/internal/news"
	"tradesim/internal/registry"
	"tradesim/internal/risk"
	"tradesim/internal/seed"
	"tradesim/internal/sim"
)

// Broadcaster receives the per-symbol price map each broadcast interval.
// Implemented by the WebSocket hub; a nil broadcaster disables pushes.
type Broadcaster interface {
	BroadcastPrices(prices map[string]float64)
}

// Engine owns every simulation component and the goroutines that drive them.
type Engine struct {
	cfg      config.EngineConfig
	registry *registry.Registry
	ledger   *ledger.Ledger
	book     *book.Book
	gate     *risk.Gate
	news     *news.Engine
	gbm      *sim.Manager
	bots     *bots.Manager
	gen      *generator.Generator
	logger   *slog.Logger

	broadcaster Broadcaster

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all simulation components from a seed snapshot.
func New(cfg config.EngineConfig, snap *seed.Snapshot, logger *slog.Logger) *Engine {
	reg := registry.New(snap.Instruments)
	led := ledger.New(logger)
	bk := book.New(led, logger)
	gate := risk.NewGate(reg, led, logger)
	newsEng := news.NewEngine(snap.News, snap.NewsFactors, snap.Exposures, logger)
	gbm := sim.NewManager(snap.Instruments, logger)
	botMgr := bots.NewManager(snap.Instruments, bk, logger)
	gen := generator.New(reg.Symbols(), bk, gbm, logger)

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:      cfg,
		registry: reg,
		ledger:   led,
		book:     bk,
		gate:     gate,
		news:     newsEng,
		gbm:      gbm,
		bots:     botMgr,
		gen:      gen,
		logger:   logger.With("component", "engine"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetBroadcaster installs the price push sink. Must be called before Start.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

// Accessors for the HTTP layer.

func (e *Engine) Registry() *registry.Registry { return e.registry }
func (e *Engine) Ledger() *ledger.Ledger       { return e.ledger }
func (e *Engine) Book() *book.Book             { return e.book }
func (e *Engine) Gate() *risk.Gate             { return e.gate }
func (e *Engine) News() *news.Engine           { return e.news }
func (e *Engine) GBM() *sim.Manager            { return e.gbm }
func (e *Engine) Bots() *bots.Manager          { return e.bots }

// Start launches the simulation loops: the tick loop (news + GBM), the bot
// refresh loop, the generator loop, and the price broadcast loop.
func (e *Engine) Start() {
	e.runLoop("tick", e.cfg.TickInterval, e.tick)
	e.runLoop("bots", e.cfg.BotRefreshInterval, e.bots.RefreshAll)
	e.runLoop("generator", e.cfg.GeneratorInterval, e.gen.Tick)
	e.runLoop("broadcast", e.cfg.BroadcastInterval, e.broadcast)

	e.logger.Info("engine started",
		"instruments", len(e.registry.Symbols()),
		"tick_interval", e.cfg.TickInterval,
	)
}

// Stop cancels all loops and waits for them to drain.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()
	e.wg.Wait()
	e.logger.Info("shutdown complete")
}

// runLoop starts one ticker goroutine calling fn every interval.
func (e *Engine) runLoop(name string, interval time.Duration, fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		e.logger.Debug("loop started", "loop", name, "interval", interval)
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// tick runs one simulation step: activate due news, then step every GBM with
// the fresh drift snapshot.
func (e *Engine) tick() {
	e.news.Tick()
	drifts := e.news.DriftSnapshot(e.registry.Symbols())
	e.gbm.Tick(drifts)
}

// broadcast pushes current prices to WebSocket subscribers. The book mid is
// preferred; a symbol with no two-sided clamped market falls back to the best
// resting quote, then the last traded price, then the GBM reference.
func (e *Engine) broadcast() {
	if e.broadcaster == nil {
		return
	}

	if prices := e.Marks(); len(prices) > 0 {
		e.broadcaster.BroadcastPrices(prices)
	}
}

// Marks returns the current mark price per symbol, using the same preference
// order as the broadcast loop. Portfolio valuation and the leaderboard mark
// open lots against these.
func (e *Engine) Marks() map[string]float64 {
	prices := make(map[string]float64)
	for _, symbol := range e.registry.Symbols() {
		if p, ok := e.priceFor(symbol); ok {
			prices[symbol] = p
		}
	}
	return prices
}

func (e *Engine) priceFor(symbol string) (float64, bool) {
	if mid, ok := e.book.Mid(symbol); ok {
		return mid, true
	}
	if bid, ok := e.book.BestBidWithinClamp(symbol); ok {
		return bid.Price, true
	}
	if ask, ok := e.book.BestAskWithinClamp(symbol); ok {
		return ask.Price, true
	}
	if last, ok := e.book.LastTradedPrice(symbol); ok {
		return last, true
	}
	// Quiet book, no trades yet: mark at the simulated reference.
	return e.gbm.Price(symbol)
}
