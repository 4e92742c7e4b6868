package strategy

import (
	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/pkg/mathutil"
)

func swapScore(it *catalogue.Item) float64 {
	return it.ProfitPct * float64(it.Rating)
}

// LocalSwap makes one improvement pass over baskets. For each basket it
// replaces the first item for which the catalogue offers a higher
// profit-times-rating alternative that has supply left, fits the freed budget,
// is not already in the basket and keeps the basket valid. At most one swap is
// made per basket. Supply counters of both items are adjusted. It returns the
// number of swaps.
func LocalSwap(rules config.EngineConfig, items catalogue.Catalogue, baskets []*basket.Basket) int {
	swaps := 0
	for _, b := range baskets {
		if swapOne(rules, items, b) {
			swaps++
		}
	}
	return swaps
}

func swapOne(rules config.EngineConfig, items catalogue.Catalogue, b *basket.Basket) bool {
	total := b.Total()
	for i, old := range b.Items {
		others := make([]*catalogue.Item, 0, len(b.Items)-1)
		others = append(others, b.Items[:i]...)
		others = append(others, b.Items[i+1:]...)
		freed := float64(b.Card) - (total - old.Price)

		var better *catalogue.Item
		for _, cand := range items {
			if cand.Remaining <= 0 || cand.Title == old.Title {
				continue
			}
			if swapScore(cand) <= swapScore(old) {
				continue
			}
			if better != nil && swapScore(cand) <= swapScore(better) {
				continue
			}
			if mathutil.Exceeds(cand.Price, freed) || contains(others, cand) {
				continue
			}
			if basket.ViolatesFamily(cand, others) {
				continue
			}
			if !basket.MeetsRequirements(rules, b.Card, b.Len(), total-old.Price+cand.Price) {
				continue
			}
			better = cand
		}
		if better == nil {
			continue
		}
		better.Consume()
		old.Release()
		b.Items[i] = better
		return true
	}
	return false
}

func contains(items []*catalogue.Item, it *catalogue.Item) bool {
	for _, x := range items {
		if x == it || x.Title == it.Title {
			return true
		}
	}
	return false
}
