// Package bots implements the per-symbol market-making bots.
//
// Each bot keeps its own quote mid on a mean-reverting random walk around
// the instrument's initial price, skewed by its inventory, and lays
// three-level bid/ask ladders around that mid each refresh cycle. Quotes
// enter the book as passive orders (no matching), so a bot never trades
// through the mid against itself.
package bots

import (
	"math/rand"

	"tradesim/pkg/types"
)

// Quote tuning. Parameters of the core, not configuration.
const (
	baseSpread       = 0.005  // 0.5% resting spread floor
	priceVolatility  = 0.0045 // walk shock sigma as a fraction of mid
	meanReversion    = 0.97   // pull toward the initial price
	invPressureCoeff = 0.0005 // mid shift per unit of (capped) inventory
	invPressureCap   = 100    // inventory units counted toward mid pressure
	maxInventory     = 200    // ladder suppression threshold
	ladderLevels     = 3
	minPriceFraction = 0.1 // mid never walks below this fraction of s0
)

// QuoteLevel is one rung of a generated ladder.
type QuoteLevel struct {
	Price    float64
	Quantity int64
}

// Ladder is the two-sided quote set a bot produces per refresh.
type Ladder struct {
	Symbol string
	Bids   []QuoteLevel
	Asks   []QuoteLevel
}

// Bot quotes a single symbol. Not safe for concurrent use; the manager
// serializes refreshes.
type Bot struct {
	symbol    string
	s0        float64
	mid       float64
	inventory int64

	// Per-bot temperament, drawn once at construction.
	stressCoeff     float64 // spread widening per unit of |drift|
	invCoeff        float64 // spread widening per unit of |inventory|
	quoteNoiseSigma float64 // spread jitter

	rng *rand.Rand
}

// NewBot creates a bot for one instrument with zero inventory.
func NewBot(inst types.Instrument, rng *rand.Rand) *Bot {
	return &Bot{
		symbol:          inst.ID,
		s0:              inst.S0,
		mid:             inst.S0,
		stressCoeff:     0.001 + rng.Float64()*0.002,
		invCoeff:        0.0001 + rng.Float64()*0.0009,
		quoteNoiseSigma: rng.Float64() * 0.001,
		rng:             rng,
	}
}

// Inventory returns the bot's signed position from its own fills.
func (b *Bot) Inventory() int64 {
	return b.inventory
}

// Mid returns the bot's current quote mid.
func (b *Bot) Mid() float64 {
	return b.mid
}

// AdjustInventory books fills detected since the last refresh: positive for
// bought quantity, negative for sold.
func (b *Bot) AdjustInventory(change int64) {
	b.inventory += change
}

// walkMid moves the quote mid one step: Gaussian shock, reversion toward
// s0, and pressure away from accumulated inventory. The mid is floored at
// a fraction of s0 so it can never walk through zero.
func (b *Bot) walkMid() {
	shock := b.rng.NormFloat64() * priceVolatility * b.mid
	reversion := (b.s0 - b.mid) * (1 - meanReversion)

	capped := b.inventory
	if capped > invPressureCap {
		capped = invPressureCap
	} else if capped < -invPressureCap {
		capped = -invPressureCap
	}
	pressure := -float64(capped) * invPressureCoeff * b.s0

	b.mid = max(b.mid+shock+reversion+pressure, b.s0*minPriceFraction)
}

// spread computes the proportional quote spread:
//
//	spread = base + stress*|drift| + inv*|inventory| + eta
//
// Bots are handed drift = 0 in the current design; they do not react to
// news directly.
func (b *Bot) spread(drift float64) float64 {
	eta := b.rng.NormFloat64() * b.quoteNoiseSigma
	return baseSpread + b.stressCoeff*abs(drift) + b.invCoeff*abs(float64(b.inventory)) + eta
}

// depthAt returns the quoted quantity for a ladder level.
func depthAt(level int) int64 {
	d := int64(50 - 10*level)
	if d < 10 {
		return 10
	}
	return d
}

// GenerateLadder runs one refresh cycle: walk the mid, compute the spread,
// and lay the ladders. The bid ladder is suppressed entirely when the bot is
// at its long inventory cap, the ask ladder at its short cap.
func (b *Bot) GenerateLadder(drift float64) Ladder {
	b.walkMid()
	spread := b.spread(drift)

	bid := b.mid * (1 - spread/2)
	ask := b.mid * (1 + spread/2)

	ladder := Ladder{Symbol: b.symbol}
	for lvl := 0; lvl < ladderLevels; lvl++ {
		depth := depthAt(lvl)
		if b.inventory < maxInventory {
			ladder.Bids = append(ladder.Bids, QuoteLevel{
				Price:    round2(bid - float64(lvl)*spread),
				Quantity: depth,
			})
		}
		if b.inventory > -maxInventory {
			ladder.Asks = append(ladder.Asks, QuoteLevel{
				Price:    round2(ask + float64(lvl)*spread),
				Quantity: depth,
			})
		}
	}
	return ladder
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
