package news

import (
	"log/slog"
	"math"
	"testing"
	"time"

	"tradesim/pkg/types"
)

func event(id int, releaseMS int64, halflifeS, magnitude float64) types.NewsEvent {
	return types.NewsEvent{
		ID:              id,
		Headline:        "event",
		TSReleaseMS:     releaseMS,
		DecayHalflifeS:  halflifeS,
		MagnitudeTop:    magnitude,
		MagnitudeBottom: magnitude,
	}
}

func newTestEngine(events []types.NewsEvent, edges []types.NewsFactorEdge, exposures []types.FactorExposure) *Engine {
	return NewEngine(events, edges, exposures, slog.Default())
}

// rewind moves the simulation clock forward by pretending the engine
// started in the past.
func rewind(e *Engine, d time.Duration) {
	e.mu.Lock()
	e.simStart = e.simStart.Add(-d)
	e.mu.Unlock()
}

func approx(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestCandidatesRespectReleaseTime(t *testing.T) {
	t.Parallel()
	e := newTestEngine([]types.NewsEvent{
		event(1, 0, 100, 0.01),
		event(2, 500_000, 100, 0.01),
	}, nil, nil)

	c := e.Candidates()
	if len(c) != 1 || c[0].ID != 1 {
		t.Errorf("candidates = %+v, want only event 1", c)
	}
}

func TestTickActivatesOnePerBucket(t *testing.T) {
	t.Parallel()
	// Both events share the 100s bucket starting at 100_000ms.
	e := newTestEngine([]types.NewsEvent{
		event(1, 100_000, 100, 0.01),
		event(2, 150_000, 100, 0.01),
	}, nil, nil)
	rewind(e, 200*time.Second)

	activated := e.Tick()
	if len(activated) != 1 {
		t.Fatalf("activated %d events, want 1", len(activated))
	}

	active, everActivated := e.Counts()
	if active != 1 {
		t.Errorf("active = %d, want 1", active)
	}
	// The whole bucket is consumed: the loser counts as activated too.
	if everActivated != 2 {
		t.Errorf("activated = %d, want 2", everActivated)
	}
	if c := e.Candidates(); len(c) != 0 {
		t.Errorf("candidates after tick = %+v, want none", c)
	}

	// The loser never fires on later ticks.
	if again := e.Tick(); len(again) != 0 {
		t.Errorf("second tick activated %+v, want nothing", again)
	}
}

func TestTickActivatesAcrossBuckets(t *testing.T) {
	t.Parallel()
	e := newTestEngine([]types.NewsEvent{
		event(1, 50_000, 100, 0.01),  // bucket 0
		event(2, 150_000, 100, 0.01), // bucket 1
	}, nil, nil)
	rewind(e, 200*time.Second)

	if activated := e.Tick(); len(activated) != 2 {
		t.Errorf("activated %d events, want one per bucket", len(activated))
	}
}

func TestEffectDecay(t *testing.T) {
	t.Parallel()
	// Release at t=0, half-life 100s, magnitude 0.01.
	e := newTestEngine([]types.NewsEvent{event(1, 0, 100, 0.01)}, nil, nil)
	rewind(e, 100*time.Second)
	e.Tick()

	// One half-life elapsed: effect is half the magnitude.
	if got := e.Effect(1); !approx(got, 0.005, 1e-4) {
		t.Errorf("effect at one half-life = %v, want ~0.005", got)
	}

	rewind(e, 100*time.Second)
	if got := e.Effect(1); !approx(got, 0.0025, 1e-4) {
		t.Errorf("effect at two half-lives = %v, want ~0.0025", got)
	}
}

func TestEffectZeroWhenInactive(t *testing.T) {
	t.Parallel()
	e := newTestEngine([]types.NewsEvent{event(1, 0, 100, 0.01)}, nil, nil)
	// Never ticked: the event is a candidate, not active.
	if got := e.Effect(1); got != 0 {
		t.Errorf("effect = %v, want 0 before activation", got)
	}
	if got := e.Effect(42); got != 0 {
		t.Errorf("effect of unknown event = %v, want 0", got)
	}
}

func TestDriftSumsActiveEffects(t *testing.T) {
	t.Parallel()
	e := newTestEngine(
		[]types.NewsEvent{event(1, 0, 100, 0.01)},
		[]types.NewsFactorEdge{{NewsID: 1, FactorID: "RATE"}},
		[]types.FactorExposure{
			{InstrumentID: "NOVA", FactorID: "RATE", Beta: 2.0},
			{InstrumentID: "TRAX", FactorID: "RATE", Beta: -1.0},
		},
	)
	rewind(e, 100*time.Second)
	e.Tick()

	// effect ~0.005 at one half-life, scaled by beta.
	if got := e.Drift("NOVA"); !approx(got, 0.01, 1e-4) {
		t.Errorf("NOVA drift = %v, want ~0.01", got)
	}
	if got := e.Drift("TRAX"); !approx(got, -0.005, 1e-4) {
		t.Errorf("TRAX drift = %v, want ~-0.005", got)
	}
	// No exposures means no drift.
	if got := e.Drift("INDX"); got != 0 {
		t.Errorf("INDX drift = %v, want 0", got)
	}

	snap := e.DriftSnapshot([]string{"NOVA", "TRAX", "INDX"})
	if len(snap) != 3 {
		t.Fatalf("snapshot size = %d, want 3", len(snap))
	}
	if !approx(snap["NOVA"], 0.01, 1e-4) {
		t.Errorf("snapshot NOVA = %v, want ~0.01", snap["NOVA"])
	}
}

func TestInsertAdHocActivatesImmediately(t *testing.T) {
	t.Parallel()
	e := newTestEngine(nil, nil, []types.FactorExposure{
		{InstrumentID: "NOVA", FactorID: "TECH_HYPE", Beta: 1.0},
	})

	n := event(99, e.SimTimeMS(), 100, 0.02)
	e.InsertAdHoc(n, []string{"TECH_HYPE"})

	active, activated := e.Counts()
	if active != 1 || activated != 1 {
		t.Errorf("counts = %d/%d, want 1/1", active, activated)
	}
	if got := e.Effect(99); !approx(got, 0.02, 1e-3) {
		t.Errorf("effect = %v, want ~0.02", got)
	}
	if got := e.Drift("NOVA"); !approx(got, 0.02, 1e-3) {
		t.Errorf("drift = %v, want ~0.02", got)
	}
}

func TestInsertAdHocDuplicateIDAppendsOnly(t *testing.T) {
	t.Parallel()
	e := newTestEngine(nil, nil, nil)

	e.InsertAdHoc(event(7, 0, 100, 0.02), nil)
	e.InsertAdHoc(event(7, 0, 100, 0.05), nil)

	active, activated := e.Counts()
	if active != 1 || activated != 1 {
		t.Errorf("counts = %d/%d, want 1/1 after duplicate insert", active, activated)
	}
	if got := len(e.All()); got != 2 {
		t.Errorf("events stored = %d, want 2 (append-only)", got)
	}
}

func TestNonPositiveHalflifeTreatedAsOneSecond(t *testing.T) {
	t.Parallel()
	e := newTestEngine([]types.NewsEvent{event(1, 0, 0, 0.08)}, nil, nil)
	rewind(e, time.Second)
	e.Tick()

	// h=0 falls back to 1s: one half-life after release.
	if got := e.Effect(1); !approx(got, 0.04, 1e-3) {
		t.Errorf("effect = %v, want ~0.04", got)
	}
}
