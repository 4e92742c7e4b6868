// Package strategy holds the named packing heuristics the selector chooses
// between, plus the single-pass LocalSwap improvement.
package strategy

import (
	"context"
	"math/rand/v2"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/packer"
)

// Strategy names. The order of Names() is stable and is the index order used
// in session logs.
const (
	Profit           = "Profit"
	Rating           = "Rating"
	Demand           = "Demand"
	RandomGreedy     = "RandomGreedy"
	HighMarginFirst  = "HighMarginFirst"
	MaxBasketFill    = "MaxBasketFill"
	CheapestFirst    = "CheapestFirst"
	MixHiLo          = "MixHiLo"
	HighestAbsProfit = "HighestAbsProfit"
	BalancedMix      = "BalancedMix"
	MinWaste         = "MinWaste"
)

// Func packs the whole catalogue snapshot into baskets, committing supply as
// it goes. items must be owned by the caller; rng is only read by randomized
// heuristics.
type Func func(ctx context.Context, p *packer.Packer, items catalogue.Catalogue, rng *rand.Rand) []*basket.Basket

// Registry maps strategy names to heuristics.
type Registry struct {
	names []string
	funcs map[string]Func
}

// NewRegistry returns the full portfolio.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	for _, d := range portfolio() {
		r.Register(d.name, d.run)
	}
	return r
}

// Register adds or replaces a heuristic.
func (r *Registry) Register(name string, fn Func) {
	if _, exists := r.funcs[name]; !exists {
		r.names = append(r.names, name)
	}
	r.funcs[name] = fn
}

// Names returns strategy names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Get looks up a heuristic by name.
func (r *Registry) Get(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Len is the number of registered heuristics.
func (r *Registry) Len() int {
	return len(r.names)
}
