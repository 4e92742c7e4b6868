// Package refiner perturbs the elite baskets with mutation and crossover and
// folds improvements back into the best basket set.
package refiner

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/selector"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"github.com/rpkwiecinski/giftcard-engine/pkg/mathutil"
	"go.uber.org/zap"
)

// Refiner runs the generational pass.
type Refiner struct {
	logger *zap.Logger
	cfg    config.RefinerConfig
	rules  config.EngineConfig
	table  *selector.Table
	rng    *rand.Rand
}

// Result is the refined best set.
type Result struct {
	Best         []*basket.Basket
	BestProfit   float64
	BestWaste    float64
	Generations  int
	Offspring    int
	Improvements int
	Elites       []*basket.Basket
}

// New constructs a Refiner. Offspring outcomes are recorded in table under
// the EVOLVED bucket.
func New(logger *zap.Logger, conf *config.Configuration, table *selector.Table, rng *rand.Rand) (*Refiner, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = selector.NewTable(nil)
	}
	if rng == nil {
		rng = selector.NewRand(conf.Selector.Seed)
	}
	return &Refiner{logger: logger, cfg: conf.Refiner, rules: conf.Engine, table: table, rng: rng}, nil
}

// Run refines best using the elite seeds. items is the pristine catalogue
// mutation draws replacements from; it is not modified. best is not modified
// either: the returned set is a new slice of clones.
func (r *Refiner) Run(ctx context.Context, items catalogue.Catalogue, seeds, best []*basket.Basket) *Result {
	res := &Result{Best: basket.CloneAll(best)}
	elites := selector.Dedup(selector.Rank(basket.CloneAll(seeds)))
	if len(elites) > r.cfg.EliteK {
		elites = elites[:r.cfg.EliteK]
	}

	for gen := 0; gen < r.cfg.Generations && len(elites) > 0; gen++ {
		if ctx.Err() != nil {
			r.logger.Info("refiner cancelled",
				zap.String("op", "refiner.Run"),
				zap.Int("generation", gen),
			)
			break
		}

		var offspring []*basket.Basket
		for _, e := range elites {
			for m := 0; m < r.cfg.MutantsPerElite; m++ {
				if child := r.Mutate(e, items); child != nil {
					offspring = append(offspring, child)
				}
			}
		}
		if len(elites) > 1 {
			for c := 0; c < r.cfg.CrossoversPerGeneration; c++ {
				a := elites[r.rng.IntN(len(elites))]
				b := elites[r.rng.IntN(len(elites))]
				if child := r.Crossover(a, b); child != nil {
					offspring = append(offspring, child)
				}
			}
		}

		for _, child := range offspring {
			r.table.Update(constants.EvolvedStrategy, child.NetProfit(), child.WasteValue())
			if r.improve(res, child) {
				res.Improvements++
			}
		}
		res.Offspring += len(offspring)
		res.Generations++

		next := selector.Dedup(selector.Rank(append(elites, offspring...)))
		if limit := 2 * r.cfg.EliteK; len(next) > limit {
			next = next[:limit]
		}
		elites = next
	}

	res.Elites = elites
	res.BestProfit, res.BestWaste = basket.Totals(res.Best)
	if res.Improvements > 0 {
		r.logger.Info("refiner improved best set",
			zap.String("op", "refiner.Run"),
			zap.Int("improvements", res.Improvements),
			zap.Int("offspring", res.Offspring),
			zap.Float64("profit", res.BestProfit),
		)
	}
	return res
}

// Mutate clones parent and replaces one random item with a random catalogue
// item that fits the freed budget. It returns nil when no valid child exists.
func (r *Refiner) Mutate(parent *basket.Basket, items catalogue.Catalogue) *basket.Basket {
	if parent.Len() == 0 || len(items) == 0 {
		return nil
	}
	child := parent.Clone()
	pos := r.rng.IntN(child.Len())
	others := without(child.Items, pos)
	freed := float64(child.Card) - (child.Total() - child.Items[pos].Price)

	var pool []*catalogue.Item
	for _, cand := range items {
		if cand.Title == child.Items[pos].Title || hasTitle(others, cand.Title) {
			continue
		}
		if mathutil.Exceeds(cand.Price, freed) || basket.ViolatesFamily(cand, others) {
			continue
		}
		pool = append(pool, cand)
	}
	if len(pool) == 0 {
		return nil
	}
	child.Items[pos] = pool[r.rng.IntN(len(pool))].Clone()
	if !child.Valid(r.rules) {
		return nil
	}
	return child
}

// Crossover builds a child on a's denomination from the first half of a's
// items followed by every item of b that still fits. The child must satisfy
// the same rules as a packed basket: no repeated title, no family clash, item
// cap and fill. It returns nil otherwise.
func (r *Refiner) Crossover(a, b *basket.Basket) *basket.Basket {
	child := basket.New(a.Card, a.Economics())
	half := a.Len() / 2
	if half == 0 && a.Len() > 0 {
		half = 1
	}
	sum := 0.0
	for _, it := range a.Items[:half] {
		child.Items = append(child.Items, it.Clone())
		sum += it.Price
	}
	for _, it := range b.Items {
		if child.Len() >= r.rules.MaxItems {
			break
		}
		if hasTitle(child.Items, it.Title) || basket.ViolatesFamily(it, child.Items) {
			continue
		}
		if mathutil.Exceeds(sum+it.Price, float64(child.Card)) {
			continue
		}
		child.Items = append(child.Items, it.Clone())
		sum += it.Price
	}
	if !child.Valid(r.rules) {
		return nil
	}
	return child
}

// improve swaps child into the best set in place of the least profitable
// basket on the same denomination, when child earns more and the set stays
// within supply.
func (r *Refiner) improve(res *Result, child *basket.Basket) bool {
	worst := -1
	for i, b := range res.Best {
		if b.Card != child.Card {
			continue
		}
		if worst < 0 || b.NetProfit() < res.Best[worst].NetProfit() {
			worst = i
		}
	}
	if worst < 0 || child.NetProfit() <= res.Best[worst].NetProfit() {
		return false
	}

	replaced := res.Best[worst]
	res.Best[worst] = child.Clone()
	if !basket.WithinSupply(res.Best) {
		res.Best[worst] = replaced
		return false
	}
	return true
}

func without(items []*catalogue.Item, pos int) []*catalogue.Item {
	out := make([]*catalogue.Item, 0, len(items)-1)
	out = append(out, items[:pos]...)
	return append(out, items[pos+1:]...)
}

func hasTitle(items []*catalogue.Item, title string) bool {
	for _, it := range items {
		if it.Title == title {
			return true
		}
	}
	return false
}
