// Package registry holds the immutable catalog of tradable instruments.
package registry

import (
	"tradesim/pkg/types"
)

// Registry is the instrument catalog, loaded once from the seed snapshot and
// never mutated afterwards, so reads need no locking.
type Registry struct {
	instruments []types.Instrument
	byID        map[string]types.Instrument
}

// New builds a registry from the seed instruments.
func New(instruments []types.Instrument) *Registry {
	byID := make(map[string]types.Instrument, len(instruments))
	for _, inst := range instruments {
		byID[inst.ID] = inst
	}
	return &Registry{instruments: instruments, byID: byID}
}

// IsValid reports whether a symbol is tradable.
func (r *Registry) IsValid(symbol string) bool {
	_, ok := r.byID[symbol]
	return ok
}

// Get returns an instrument by symbol.
func (r *Registry) Get(symbol string) (types.Instrument, bool) {
	inst, ok := r.byID[symbol]
	return inst, ok
}

// All returns every instrument in seed order.
func (r *Registry) All() []types.Instrument {
	return r.instruments
}

// Symbols returns every instrument id in seed order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.instruments))
	for i, inst := range r.instruments {
		out[i] = inst.ID
	}
	return out
}
