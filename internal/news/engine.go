// Package news simulates macroeconomic shocks that bend per-instrument drift.
//
// Events are loaded once from the seed snapshot with a scheduled release
// time on the simulation clock. Each engine tick groups not-yet-activated
// events whose release time has passed into 100-second buckets and activates
// exactly one event per bucket, chosen uniformly at random — release time is
// a soft bucket, not a precise trigger, and co-scheduled events must not all
// fire at once.
//
// An active event's effect decays exponentially from its release time:
//
//	effect(t) = M * 2^(-(t-t0)/h)
//
// with M the mean of the event's magnitude bounds and h its half-life.
// Events are never deactivated; their effect just decays toward zero.
// Per-instrument drift is the sum over active events of effect times the
// instrument's beta to each factor the event touches.
package news

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"tradesim/pkg/types"
)

// bucketMS is the activation grouping window on the sim clock.
const bucketMS = 100_000

// Engine is the news shock simulator. All state is guarded by a single
// mutex; drift readers take a snapshot per tick.
type Engine struct {
	mu sync.Mutex

	events       []types.NewsEvent
	activeIDs    map[int]bool // currently contributing to drift
	activatedIDs map[int]bool // ever activated (one-shot guard)

	newsFactors map[int][]string               // news id -> factor ids
	betas       map[string]map[string]float64 // instrument id -> factor id -> beta

	simStart  time.Time
	simTimeMS int64

	rng    *rand.Rand
	logger *slog.Logger
}

// NewEngine builds the engine from seed data. The simulation clock starts at
// zero when NewEngine is called and advances at 1x real rate.
func NewEngine(
	events []types.NewsEvent,
	newsFactors []types.NewsFactorEdge,
	exposures []types.FactorExposure,
	logger *slog.Logger,
) *Engine {
	nf := make(map[int][]string)
	for _, edge := range newsFactors {
		nf[edge.NewsID] = append(nf[edge.NewsID], edge.FactorID)
	}

	betas := make(map[string]map[string]float64)
	for _, exp := range exposures {
		m, ok := betas[exp.InstrumentID]
		if !ok {
			m = make(map[string]float64)
			betas[exp.InstrumentID] = m
		}
		m[exp.FactorID] = exp.Beta
	}

	return &Engine{
		events:       events,
		activeIDs:    make(map[int]bool),
		activatedIDs: make(map[int]bool),
		newsFactors:  nf,
		betas:        betas,
		simStart:     time.Now(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:       logger.With("component", "news"),
	}
}

// updateSimTimeLocked advances the simulation clock to wall now.
func (e *Engine) updateSimTimeLocked() {
	e.simTimeMS = time.Since(e.simStart).Milliseconds()
}

// SimTimeMS returns the current simulation time in milliseconds.
func (e *Engine) SimTimeMS() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateSimTimeLocked()
	return e.simTimeMS
}

// candidatesLocked returns events whose release time has passed and which
// were never activated.
func (e *Engine) candidatesLocked() []types.NewsEvent {
	var out []types.NewsEvent
	for _, n := range e.events {
		if n.TSReleaseMS <= e.simTimeMS && !e.activatedIDs[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// Candidates returns the events currently eligible for activation.
func (e *Engine) Candidates() []types.NewsEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateSimTimeLocked()
	return e.candidatesLocked()
}

// All returns every known news event.
func (e *Engine) All() []types.NewsEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.NewsEvent, len(e.events))
	copy(out, e.events)
	return out
}

// Active returns the events currently contributing to drift.
func (e *Engine) Active() []types.NewsEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []types.NewsEvent
	for _, n := range e.events {
		if e.activeIDs[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// Counts returns (active, activated) set sizes for the status endpoint.
func (e *Engine) Counts() (active, activated int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeIDs), len(e.activatedIDs)
}

// Tick advances the sim clock and runs the bucket lottery: one random
// candidate per 100-second release bucket becomes active. Returns the events
// activated this tick.
func (e *Engine) Tick() []types.NewsEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.updateSimTimeLocked()

	candidates := e.candidatesLocked()
	if len(candidates) == 0 {
		return nil
	}

	buckets := make(map[int64][]types.NewsEvent)
	for _, n := range candidates {
		b := n.TSReleaseMS / bucketMS
		buckets[b] = append(buckets[b], n)
	}

	var activated []types.NewsEvent
	for _, group := range buckets {
		selected := group[e.rng.Intn(len(group))]
		e.activeIDs[selected.ID] = true
		// The whole bucket is consumed: losers never activate.
		for _, n := range group {
			e.activatedIDs[n.ID] = true
		}
		activated = append(activated, selected)
		e.logger.Info("news activated",
			"id", selected.ID,
			"headline", selected.Headline,
			"sim_time_ms", e.simTimeMS,
		)
	}
	return activated
}

// InsertAdHoc adds a runtime event and marks it immediately active,
// bypassing the bucket lottery. Inserting an id that was already activated
// still appends the event but does not re-activate it.
func (e *Engine) InsertAdHoc(n types.NewsEvent, factorIDs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = append(e.events, n)
	if len(factorIDs) > 0 {
		e.newsFactors[n.ID] = append(e.newsFactors[n.ID], factorIDs...)
	}

	if e.activatedIDs[n.ID] {
		e.logger.Warn("ad-hoc news id already activated, appending only", "id", n.ID)
		return
	}
	e.activeIDs[n.ID] = true
	e.activatedIDs[n.ID] = true
	e.logger.Info("ad-hoc news activated", "id", n.ID, "headline", n.Headline)
}

// effectLocked computes the decayed effect of one event at the current sim
// time. Zero before release; a non-positive half-life is treated as 1s.
func (e *Engine) effectLocked(n types.NewsEvent) float64 {
	t0 := float64(n.TSReleaseMS) / 1000
	now := float64(e.simTimeMS) / 1000
	if now < t0 {
		return 0
	}

	h := n.DecayHalflifeS
	if h <= 0 {
		h = 1
	}
	return n.Magnitude() * math.Exp2(-(now-t0)/h)
}

// Effect returns the current decayed effect of an event (0 if inactive).
func (e *Engine) Effect(newsID int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.updateSimTimeLocked()
	if !e.activeIDs[newsID] {
		return 0
	}
	for _, n := range e.events {
		if n.ID == newsID {
			return e.effectLocked(n)
		}
	}
	return 0
}

// Drift computes the news-driven drift for one instrument: the sum over
// active events of effect times the instrument's beta to each touched
// factor. Missing edges contribute nothing.
func (e *Engine) Drift(instrumentID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateSimTimeLocked()
	return e.driftLocked(instrumentID)
}

func (e *Engine) driftLocked(instrumentID string) float64 {
	instBetas := e.betas[instrumentID]
	if len(instBetas) == 0 {
		return 0
	}

	var total float64
	for _, n := range e.events {
		if !e.activeIDs[n.ID] {
			continue
		}
		eff := e.effectLocked(n)
		if eff == 0 {
			continue
		}
		for _, factorID := range e.newsFactors[n.ID] {
			total += eff * instBetas[factorID]
		}
	}
	return total
}

// DriftSnapshot returns drift for every listed instrument under one lock
// acquisition. The price simulator consumes this each tick.
func (e *Engine) DriftSnapshot(instrumentIDs []string) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.updateSimTimeLocked()
	out := make(map[string]float64, len(instrumentIDs))
	for _, id := range instrumentIDs {
		out[id] = e.driftLocked(id)
	}
	return out
}
