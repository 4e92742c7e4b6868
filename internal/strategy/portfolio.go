package strategy

import (
	"context"
	"math/rand/v2"
	"sort"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/packer"
	"github.com/rpkwiecinski/giftcard-engine/pkg/mathutil"
)

// objective decides whether cand beats the current best for one focus.
type objective func(rules config.EngineConfig, cand, best *basket.Basket) bool

func maxProfit(_ config.EngineConfig, cand, best *basket.Basket) bool {
	return best == nil || cand.NetProfit() > best.NetProfit()
}

func maxCount(_ config.EngineConfig, cand, best *basket.Basket) bool {
	return best == nil || cand.Len() > best.Len()
}

func lowWasteProfit(rules config.EngineConfig, cand, best *basket.Basket) bool {
	if mathutil.Exceeds(cand.Waste(), rules.WasteThreshold) {
		return false
	}
	return maxProfit(rules, cand, best)
}

// run is the state of one heuristic over one catalogue snapshot.
type run struct {
	p      *packer.Packer
	items  catalogue.Catalogue
	rng    *rand.Rand
	skip   map[int]bool
	usage  map[string]int
	rounds int

	// focus orders computed once per run
	order []int
	low   []int
}

// heuristic describes one portfolio entry.
type heuristic struct {
	name  string
	next  func(r *run) int
	key   packer.RankKey
	fill  bool
	large bool
	goal  objective
}

type definition struct {
	name string
	run  Func
}

func portfolio() []definition {
	margin := func(it *catalogue.Item) float64 { return it.ProfitPct }

	hs := []heuristic{
		{name: Profit, next: fixedOrder(func(it *catalogue.Item) float64 {
			return it.Price * it.ProfitPct * float64(it.Rating) * float64(it.Remaining)
		}), key: packer.ByValue, goal: maxProfit},
		{name: Rating, next: fixedOrder(packer.ByRating, packer.ByValue), key: packer.ByRating, goal: maxProfit},
		{name: Demand, next: dynamicOrder(func(_ *run) packer.RankKey {
			return func(it *catalogue.Item) float64 {
				if it.Required == 0 {
					return 0
				}
				return float64(it.Remaining) / float64(it.Required)
			}
		}), key: packer.ByValue, goal: maxCount},
		{name: RandomGreedy, next: randomAvailable, key: packer.ByValue, goal: maxProfit},
		{name: HighMarginFirst, next: fixedOrder(margin, packer.ByRating), key: packer.ByValue, goal: maxProfit},
		{name: MaxBasketFill, next: fixedOrder(packer.ByPrice), fill: true, large: true, goal: maxProfit},
		{name: CheapestFirst, next: fixedOrder(packer.ByCheapest, margin), key: packer.ByCheapest, goal: maxProfit},
		{name: MixHiLo, next: alternating(packer.ByRating), key: packer.ByValue, goal: maxProfit},
		{name: HighestAbsProfit, next: fixedOrder(packer.ByAbsProfit), key: packer.ByValue, goal: maxProfit},
		{name: BalancedMix, next: dynamicOrder(func(r *run) packer.RankKey {
			return func(it *catalogue.Item) float64 { return -float64(r.usage[it.Title]) }
		}, packer.ByMarginScore), key: packer.ByValue, goal: maxProfit},
		{name: MinWaste, next: fixedOrder(packer.ByMarginScore), key: packer.ByValue, goal: lowWasteProfit},
	}

	defs := make([]definition, len(hs))
	for i, h := range hs {
		defs[i] = definition{name: h.name, run: h.execute}
	}
	return defs
}

// execute repeatedly packs the next focus item until none is left, then
// backfills what remains.
func (h heuristic) execute(ctx context.Context, p *packer.Packer, items catalogue.Catalogue, rng *rand.Rand) []*basket.Basket {
	r := &run{
		p:     p,
		items: items,
		rng:   rng,
		skip:  make(map[int]bool),
		usage: make(map[string]int),
	}

	var baskets []*basket.Basket
	for ctx.Err() == nil {
		focus := h.next(r)
		r.rounds++
		if focus < 0 {
			break
		}
		best := h.bestFor(r, focus)
		if best == nil || !basket.Commit(best) {
			r.skip[focus] = true
			continue
		}
		for _, it := range best.Items {
			r.usage[it.Title]++
		}
		baskets = append(baskets, best)
	}

	more, _ := p.Backfill(ctx, items)
	return append(baskets, more...)
}

// bestFor packs focus against every admissible denomination and keeps the
// basket the objective prefers.
func (h heuristic) bestFor(r *run, focus int) *basket.Basket {
	rules := r.p.Rules()
	price := r.items[focus].Price

	var best *basket.Basket
	for _, card := range h.cards(rules) {
		if mathutil.Exceeds(price, float64(card)) {
			continue
		}
		var picks []int
		var ok bool
		if h.fill {
			picks, ok = r.p.MaximalFillPack(card, focus, r.items)
		} else {
			picks, ok = r.p.ConstrainedPack(card, focus, r.items, h.key)
		}
		if !ok {
			continue
		}
		cand := r.p.Build(card, r.items, picks)
		if h.goal(rules, cand, best) {
			best = cand
		}
	}
	return best
}

func (h heuristic) cards(rules config.EngineConfig) []int {
	desc := rules.Descending()
	if !h.large || len(desc) == 0 {
		return desc
	}
	largest := desc[0]
	out := desc[:0]
	for _, c := range desc {
		if c*2 >= largest {
			out = append(out, c)
		}
	}
	return out
}

// eligible reports whether an item may still serve as focus.
func (r *run) eligible(i int) bool {
	return r.items[i].Remaining > 0 && !r.skip[i]
}

func firstEligible(r *run, order []int) int {
	for _, i := range order {
		if r.eligible(i) {
			return i
		}
	}
	return -1
}

// rankBy orders catalogue indices by keys descending, compared
// lexicographically, ties by catalogue index.
func rankBy(items catalogue.Catalogue, keys ...packer.RankKey) []int {
	order := make([]int, len(items))
	scores := make([][]float64, len(items))
	for i, it := range items {
		order[i] = i
		scores[i] = make([]float64, len(keys))
		for k, key := range keys {
			scores[i][k] = key(it)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		for k := range sa {
			if sa[k] != sb[k] {
				return sa[k] > sb[k]
			}
		}
		return false
	})
	return order
}

func negate(key packer.RankKey) packer.RankKey {
	return func(it *catalogue.Item) float64 { return -key(it) }
}

// fixedOrder ranks the catalogue once, on the first round of a run.
func fixedOrder(keys ...packer.RankKey) func(r *run) int {
	return func(r *run) int {
		if r.order == nil {
			r.order = rankBy(r.items, keys...)
		}
		return firstEligible(r, r.order)
	}
}

// dynamicOrder re-ranks the catalogue every round; the primary key may read
// the run state.
func dynamicOrder(primary func(r *run) packer.RankKey, rest ...packer.RankKey) func(r *run) int {
	return func(r *run) int {
		keys := append([]packer.RankKey{primary(r)}, rest...)
		return firstEligible(r, rankBy(r.items, keys...))
	}
}

// alternating switches between the highest and the lowest key every round.
func alternating(key packer.RankKey) func(r *run) int {
	return func(r *run) int {
		if r.order == nil {
			r.order = rankBy(r.items, key)
			r.low = rankBy(r.items, negate(key))
		}
		if r.rounds%2 == 0 {
			return firstEligible(r, r.order)
		}
		return firstEligible(r, r.low)
	}
}

func randomAvailable(r *run) int {
	var avail []int
	for i := range r.items {
		if r.eligible(i) {
			avail = append(avail, i)
		}
	}
	if len(avail) == 0 {
		return -1
	}
	return avail[r.rng.IntN(len(avail))]
}
