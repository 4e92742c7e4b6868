// Package packer builds single feasible baskets around a focus item and mops
// up leftover supply with a bounded exhaustive search.
package packer

import (
	"sort"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/pkg/mathutil"
	"go.uber.org/zap"
)

// RankKey scores a candidate; higher ranks first.
type RankKey func(it *catalogue.Item) float64

// Common ranking keys.
var (
	ByValue       RankKey = func(it *catalogue.Item) float64 { return it.Price * it.ProfitPct * float64(it.Rating) }
	ByRating      RankKey = func(it *catalogue.Item) float64 { return float64(it.Rating) }
	ByPrice       RankKey = func(it *catalogue.Item) float64 { return it.Price }
	ByCheapest    RankKey = func(it *catalogue.Item) float64 { return -it.Price }
	ByAbsProfit   RankKey = func(it *catalogue.Item) float64 { return it.Price * it.ProfitPct }
	ByMarginScore RankKey = func(it *catalogue.Item) float64 { return it.ProfitPct * float64(it.Rating) }
)

// Packer holds the packing rules shared by every pack call.
type Packer struct {
	logger *zap.Logger
	rules  config.EngineConfig
	econ   basket.Economics
}

// New constructs a Packer for the given rules.
func New(logger *zap.Logger, rules config.EngineConfig) *Packer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Packer{logger: logger, rules: rules, econ: basket.EconomicsOf(rules)}
}

// Rules returns the packing rules.
func (p *Packer) Rules() config.EngineConfig {
	return p.rules
}

// Economics returns the profit model used for baskets built by this packer.
func (p *Packer) Economics() basket.Economics {
	return p.econ
}

// ConstrainedPack seeds the pick set with focus and greedily adds candidates
// in descending key order, stopping as soon as the set meets requirements.
// The caller guarantees the focus price fits the card. ok is false when no
// feasible pick set exists for this ordering.
func (p *Packer) ConstrainedPack(card, focus int, items catalogue.Catalogue, key RankKey) (picks []int, ok bool) {
	return p.pack(card, focus, items, key, true)
}

// MaximalFillPack ranks candidates by price descending and keeps adding every
// feasible one up to the item cap before checking requirements once.
func (p *Packer) MaximalFillPack(card, focus int, items catalogue.Catalogue) (picks []int, ok bool) {
	return p.pack(card, focus, items, ByPrice, false)
}

func (p *Packer) pack(card, focus int, items catalogue.Catalogue, key RankKey, earlyExit bool) ([]int, bool) {
	budget := float64(card)
	picks := []int{focus}
	sum := items[focus].Price

	if !earlyExit || !basket.MeetsRequirements(p.rules, card, len(picks), sum) {
		for _, idx := range p.rank(focus, items, key) {
			if len(picks) >= p.rules.MaxItems {
				break
			}
			cand := items[idx]
			if basket.ViolatesFamilyAt(cand, items, picks) {
				continue
			}
			if mathutil.Exceeds(sum+cand.Price, budget) {
				continue
			}
			picks = append(picks, idx)
			sum += cand.Price
			if earlyExit && basket.MeetsRequirements(p.rules, card, len(picks), sum) {
				break
			}
		}
	}

	if !basket.MeetsRequirements(p.rules, card, len(picks), sum) {
		return nil, false
	}
	return picks, true
}

// rank orders every other item with remaining supply by key, descending,
// breaking ties by catalogue index.
func (p *Packer) rank(focus int, items catalogue.Catalogue, key RankKey) []int {
	cand := make([]int, 0, len(items))
	for i, it := range items {
		if i == focus || it.Remaining <= 0 {
			continue
		}
		cand = append(cand, i)
	}
	scores := make([]float64, len(items))
	for _, i := range cand {
		scores[i] = key(items[i])
	}
	sort.SliceStable(cand, func(a, b int) bool {
		return scores[cand[a]] > scores[cand[b]]
	})
	return cand
}

// Build turns picks into a basket.
func (p *Packer) Build(card int, items catalogue.Catalogue, picks []int) *basket.Basket {
	return basket.FromPicks(card, p.econ, items, picks)
}
