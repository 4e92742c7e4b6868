// Package catalogue defines the per-run item model and the loaders that build
// it from JSON, YAML or CSV records.
package catalogue

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/pkg/datetime"
)

// Item is one catalogue entry. Everything except Remaining and ExtraBought is
// fixed for the lifetime of a run; the two counters belong to whichever trial
// owns this copy.
type Item struct {
	Title           string    `json:"title"`
	Price           float64   `json:"price"`
	Required        int       `json:"required"`
	Remaining       int       `json:"remaining"`
	ExtraBought     int       `json:"extraBought"`
	ProfitPct       float64   `json:"profitPct"`
	PromoFrom       time.Time `json:"promoFrom"`
	PromoTo         time.Time `json:"promoTo"`
	Rating          int       `json:"rating"`
	Family          string    `json:"family,omitempty"`
	FamilyExclusive bool      `json:"familyExclusive,omitempty"`
	MaxAllowed      int       `json:"maxAllowed"`
}

// NewItem builds an item with its full required count still remaining.
func NewItem(r Record, extraBuyLimitFraction float64) *Item {
	return &Item{
		Title:           r.Title,
		Price:           r.Price,
		Required:        r.Required,
		Remaining:       r.Required,
		ProfitPct:       r.ProfitPct,
		PromoFrom:       datetime.Day(r.PromoFrom),
		PromoTo:         datetime.Day(r.PromoTo),
		Rating:          r.Rating,
		Family:          r.Family,
		FamilyExclusive: r.FamilyExclusive,
		MaxAllowed:      MaxAllowed(r.Required, extraBuyLimitFraction),
	}
}

// MaxAllowed is the ceiling on required plus extra units for an item.
func MaxAllowed(required int, extraBuyLimitFraction float64) int {
	return int(math.Round(float64(required) * extraBuyLimitFraction))
}

// Clone returns an independent copy including the mutable counters.
func (it *Item) Clone() *Item {
	c := *it
	return &c
}

// ExtraHeadroom is how many more units may be bought past the required count.
func (it *Item) ExtraHeadroom() int {
	h := it.MaxAllowed - it.Required - it.ExtraBought
	if h < 0 {
		return 0
	}
	return h
}

// Available reports whether one more unit can be consumed.
func (it *Item) Available() bool {
	return it.Remaining > 0 || it.ExtraHeadroom() > 0
}

// Consume takes one unit, from the remaining supply first and from the extra
// allowance after that. It returns false without changing anything when the
// extra allowance is exhausted.
func (it *Item) Consume() bool {
	if it.Remaining > 0 {
		it.Remaining--
		return true
	}
	if it.ExtraHeadroom() > 0 {
		it.ExtraBought++
		return true
	}
	return false
}

// Release returns one unit taken by Consume.
func (it *Item) Release() {
	if it.ExtraBought > 0 {
		it.ExtraBought--
		return
	}
	if it.Remaining < it.Required {
		it.Remaining++
	}
}

// Consumed is the number of units placed into bundles so far.
func (it *Item) Consumed() int {
	return it.Required - it.Remaining + it.ExtraBought
}

// OnPromo reports whether the promo window covers day.
func (it *Item) OnPromo(day time.Time) bool {
	return datetime.Covers(it.PromoFrom, it.PromoTo, datetime.Day(day))
}

// Catalogue is an ordered set of items. Index order is the tie-breaker for
// every ranking.
type Catalogue []*Item

// Clone deep-copies every item so the copy can be mutated freely.
func (c Catalogue) Clone() Catalogue {
	out := make(Catalogue, len(c))
	for i, it := range c {
		out[i] = it.Clone()
	}
	return out
}

// Shuffle permutes the catalogue in place.
func (c Catalogue) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(c), func(i, j int) { c[i], c[j] = c[j], c[i] })
}

// IndexOf returns the position of the item with the given title, or -1.
func (c Catalogue) IndexOf(title string) int {
	for i, it := range c {
		if it.Title == title {
			return i
		}
	}
	return -1
}

// RemainingTotal sums remaining supply over all items.
func (c Catalogue) RemainingTotal() int {
	total := 0
	for _, it := range c {
		total += it.Remaining
	}
	return total
}

// HasRemaining reports whether any item still has required supply.
func (c Catalogue) HasRemaining() bool {
	for _, it := range c {
		if it.Remaining > 0 {
			return true
		}
	}
	return false
}
