package packer

import (
	"context"
	"sort"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"github.com/rpkwiecinski/giftcard-engine/pkg/mathutil"
	"go.uber.org/zap"
)

// Backfill places leftover supply, most-leftover item first, one basket per
// unit. Each basket is the least-waste pick set found by a depth-first search
// bounded by MaxItems in depth and BackfillFanout in branches per depth. When
// no denomination admits a unit, the rest of that item's supply is abandoned.
// The returned map holds abandoned units per title.
func (p *Packer) Backfill(ctx context.Context, items catalogue.Catalogue) ([]*basket.Basket, map[string]int) {
	order := make([]int, 0, len(items))
	for i, it := range items {
		if it.Remaining > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Remaining > items[order[b]].Remaining
	})

	var baskets []*basket.Basket
	for _, focus := range order {
		it := items[focus]
		for it.Remaining > 0 {
			if ctx.Err() != nil {
				return baskets, leftover(items)
			}
			b := p.backfillOne(focus, items)
			if b == nil || !basket.Commit(b) {
				p.logger.Debug("supply left unplaced",
					zap.String("op", "packer.Backfill"),
					zap.String("title", it.Title),
					zap.Int("units", it.Remaining),
				)
				break
			}
			baskets = append(baskets, b)
		}
	}
	return baskets, leftover(items)
}

// leftover maps every title that still has required supply to its count.
// Units of an item given up early may still be taken later as filler, so the
// map is built after the search instead of during it.
func leftover(items catalogue.Catalogue) map[string]int {
	out := make(map[string]int)
	for _, it := range items {
		if it.Remaining > 0 {
			out[it.Title] = it.Remaining
		}
	}
	return out
}

// backfillOne tries denominations smallest first and returns the first basket
// found, or nil.
func (p *Packer) backfillOne(focus int, items catalogue.Catalogue) *basket.Basket {
	price := items[focus].Price
	for _, card := range p.rules.Ascending() {
		if mathutil.Exceeds(price, float64(card)) {
			continue
		}
		if picks := p.FindPack(card, focus, items); picks != nil {
			return p.Build(card, items, picks)
		}
	}
	return nil
}

// FindPack runs the bounded search for one card and returns the pick set
// with the smallest waste that meets requirements, or nil.
func (p *Packer) FindPack(card, focus int, items catalogue.Catalogue) []int {
	budget := float64(card)

	// Candidates are searched priciest first so the fan-out cap keeps the
	// branches most likely to fill the card.
	cand := make([]int, 0, len(items))
	for i, it := range items {
		if i != focus && it.Available() {
			cand = append(cand, i)
		}
	}
	sort.SliceStable(cand, func(a, b int) bool { return items[cand[a]].Price > items[cand[b]].Price })

	picks := []int{focus}
	var best []int
	bestWaste := budget + 1

	var dfs func(from int, sum float64) bool
	dfs = func(from int, sum float64) bool {
		if basket.MeetsRequirements(p.rules, card, len(picks), sum) && budget-sum < bestWaste {
			bestWaste = budget - sum
			best = append(best[:0:0], picks...)
			if bestWaste <= constants.BudgetEpsilon {
				return true
			}
		}
		if len(picks) >= p.rules.MaxItems {
			return false
		}
		branches := 0
		for i := from; i < len(cand) && branches < p.rules.BackfillFanout; i++ {
			gm := items[cand[i]]
			if mathutil.Exceeds(sum+gm.Price, budget) {
				continue
			}
			if basket.ViolatesFamilyAt(gm, items, picks) {
				continue
			}
			branches++
			picks = append(picks, cand[i])
			done := dfs(i+1, sum+gm.Price)
			picks = picks[:len(picks)-1]
			if done {
				return true
			}
		}
		return false
	}
	dfs(0, items[focus].Price)
	return best
}
