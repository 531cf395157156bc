package registry

import (
	"reflect"
	"testing"

	"tradesim/pkg/types"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := New([]types.Instrument{
		{ID: "INDX", S0: 100},
		{ID: "NOVA", S0: 178},
	})

	if !r.IsValid("NOVA") {
		t.Error("IsValid(NOVA) = false, want true")
	}
	if r.IsValid("FAKE") {
		t.Error("IsValid(FAKE) = true, want false")
	}

	inst, ok := r.Get("INDX")
	if !ok || inst.S0 != 100 {
		t.Errorf("Get(INDX) = %+v ok=%v, want S0=100", inst, ok)
	}
	if _, ok := r.Get("FAKE"); ok {
		t.Error("Get(FAKE) found, want miss")
	}

	if got, want := r.Symbols(), []string{"INDX", "NOVA"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Symbols() = %v, want seed order %v", got, want)
	}
	if got := len(r.All()); got != 2 {
		t.Errorf("All() = %d instruments, want 2", got)
	}
}
