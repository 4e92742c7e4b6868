package basket

import (
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/pkg/mathutil"
)

// ViolatesFamily reports whether cand conflicts with any of current: both share
// a non-empty family and at least one of the pair is exclusive.
func ViolatesFamily(cand *catalogue.Item, current []*catalogue.Item) bool {
	if cand.Family == "" {
		return false
	}
	for _, p := range current {
		if p.Family == cand.Family && (p.FamilyExclusive || cand.FamilyExclusive) {
			return true
		}
	}
	return false
}

// ViolatesFamilyAt is ViolatesFamily against catalogue indices.
func ViolatesFamilyAt(cand *catalogue.Item, items catalogue.Catalogue, picks []int) bool {
	if cand.Family == "" {
		return false
	}
	for _, ix := range picks {
		p := items[ix]
		if p.Family == cand.Family && (p.FamilyExclusive || cand.FamilyExclusive) {
			return true
		}
	}
	return false
}

// MeetsRequirements is the acceptance predicate for a pick set.
func MeetsRequirements(rules config.EngineConfig, card, count int, sum float64) bool {
	return count >= rules.MinItems && mathutil.AtLeast(sum, float64(card)*rules.MinFillFraction)
}

// Valid checks a whole basket against the packing rules: budget, item count,
// fill and family exclusivity.
func (b *Basket) Valid(rules config.EngineConfig) bool {
	if b.Len() > rules.MaxItems {
		return false
	}
	total := b.Total()
	if mathutil.Exceeds(total, float64(b.Card)) {
		return false
	}
	if !MeetsRequirements(rules, b.Card, b.Len(), total) {
		return false
	}
	for i, it := range b.Items {
		if ViolatesFamily(it, b.Items[i+1:]) {
			return false
		}
	}
	return true
}

// CanCommit reports whether every unit in the basket can be consumed from
// the items' supply without breaking the maxAllowed ceiling.
func CanCommit(b *Basket) bool {
	need := make(map[*catalogue.Item]int, len(b.Items))
	for _, it := range b.Items {
		need[it]++
	}
	for it, n := range need {
		if n > it.Remaining+it.ExtraHeadroom() {
			return false
		}
	}
	return true
}

// Commit consumes one unit per item in the basket. It returns false, leaving
// all counters untouched, when CanCommit would.
func Commit(b *Basket) bool {
	if !CanCommit(b) {
		return false
	}
	for _, it := range b.Items {
		it.Consume()
	}
	return true
}

// WithinSupply reports whether a basket set uses no title more often than the
// item's maxAllowed ceiling permits.
func WithinSupply(baskets []*Basket) bool {
	usage := make(map[string]int)
	limit := make(map[string]int)
	for _, b := range baskets {
		for _, it := range b.Items {
			usage[it.Title]++
			l := it.MaxAllowed
			if l < it.Required {
				l = it.Required
			}
			limit[it.Title] = l
		}
	}
	for title, n := range usage {
		if n > limit[title] {
			return false
		}
	}
	return true
}
