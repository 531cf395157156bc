package types

import "testing"

func TestSide(t *testing.T) {
	t.Parallel()

	if Buy.Opposite() != Sell || Sell.Opposite() != Buy {
		t.Error("Opposite() does not flip sides")
	}
	if !Buy.Valid() || !Sell.Valid() {
		t.Error("known sides reported invalid")
	}
	if Side("hold").Valid() {
		t.Error(`Side("hold").Valid() = true, want false`)
	}
}

func TestNewsEventMagnitude(t *testing.T) {
	t.Parallel()

	n := NewsEvent{MagnitudeTop: 0.5, MagnitudeBottom: -0.25}
	if got := n.Magnitude(); got != 0.125 {
		t.Errorf("Magnitude() = %v, want 0.125", got)
	}
}
