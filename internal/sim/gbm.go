// Package sim provides the geometric Brownian motion reference-price
// process, one instance per instrument.
//
// The GBM price is a reference, not the market: the order generator quotes
// around it to nudge the book toward fair value, but the book itself moves
// only through matching.
package sim

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"tradesim/pkg/types"
)

// delta is the per-tick time step in years (one trading day at 1 Hz).
const delta = 1.0 / 252

// GBM is one instrument's price process. State is guarded by its own mutex;
// the drift setter and the step both run on engine ticks, reads come from
// the generator and the HTTP layer.
type GBM struct {
	mu sync.Mutex

	price    float64
	mean     float64
	variance float64
	sigma    float64
	drift    float64 // additional news-driven drift, set each tick

	rng *rand.Rand
}

// NewGBM creates a simulator seeded at the instrument's initial price.
func NewGBM(inst types.Instrument, rng *rand.Rand) *GBM {
	return &GBM{
		price:    inst.S0,
		mean:     inst.Mean,
		variance: inst.Variance,
		sigma:    math.Sqrt(inst.Variance),
		rng:      rng,
	}
}

// SetDrift installs the news-driven drift used by subsequent steps.
func (g *GBM) SetDrift(drift float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drift = drift
}

// Step advances the process by one tick:
//
//	price *= exp((mean + drift - variance/2)*delta + sigma*eps*sqrt(delta))
//
// with eps ~ N(0, 1). The price stays positive by construction.
func (g *GBM) Step() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	eps := g.rng.NormFloat64()
	g.price *= math.Exp(
		(g.mean+g.drift-g.variance/2)*delta + g.sigma*eps*math.Sqrt(delta),
	)
	return g.price
}

// Price returns the current reference price.
func (g *GBM) Price() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.price
}

// Manager owns one GBM per symbol.
type Manager struct {
	sims   map[string]*GBM
	logger *slog.Logger
}

// NewManager builds simulators for every instrument.
func NewManager(instruments []types.Instrument, logger *slog.Logger) *Manager {
	sims := make(map[string]*GBM, len(instruments))
	for _, inst := range instruments {
		sims[inst.ID] = NewGBM(inst, rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	return &Manager{
		sims:   sims,
		logger: logger.With("component", "gbm"),
	}
}

// Tick applies the drift snapshot and steps every simulator once.
func (m *Manager) Tick(drifts map[string]float64) {
	for symbol, g := range m.sims {
		g.SetDrift(drifts[symbol])
		g.Step()
	}
}

// Price returns the reference price for a symbol.
func (m *Manager) Price(symbol string) (float64, bool) {
	g, ok := m.sims[symbol]
	if !ok {
		return 0, false
	}
	return g.Price(), true
}

// Prices returns every symbol's reference price.
func (m *Manager) Prices() map[string]float64 {
	out := make(map[string]float64, len(m.sims))
	for symbol, g := range m.sims {
		out[symbol] = g.Price()
	}
	return out
}
