// Package basket defines the fixed-denomination bundle and the rules every
// bundle must satisfy.
package basket

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
)

// Economics converts a bundle's totals into net profit.
type Economics struct {
	FixedCost    float64
	CurrencyRate float64
}

// EconomicsOf extracts the profit model from the packing rules.
func EconomicsOf(e config.EngineConfig) Economics {
	return Economics{FixedCost: e.FixedCost, CurrencyRate: e.CurrencyRate}
}

// Basket is a set of items assigned to one denomination. Items point at the
// owning trial's catalogue until the basket is cloned.
type Basket struct {
	Card  int               `json:"card"`
	Items []*catalogue.Item `json:"items"`
	econ  Economics
}

// New creates an empty basket for a denomination.
func New(card int, econ Economics) *Basket {
	return &Basket{Card: card, econ: econ}
}

// FromPicks builds a basket from catalogue indices.
func FromPicks(card int, econ Economics, items catalogue.Catalogue, picks []int) *Basket {
	b := New(card, econ)
	b.Items = make([]*catalogue.Item, 0, len(picks))
	for _, ix := range picks {
		b.Items = append(b.Items, items[ix])
	}
	return b
}

// Economics returns the profit model the basket was built with.
func (b *Basket) Economics() Economics {
	return b.econ
}

// Len is the number of item units in the basket.
func (b *Basket) Len() int {
	return len(b.Items)
}

// Total is the summed price of the items.
func (b *Basket) Total() float64 {
	total := 0.0
	for _, it := range b.Items {
		total += it.Price
	}
	return total
}

// Waste is the unspent part of the denomination.
func (b *Basket) Waste() float64 {
	return float64(b.Card) - b.Total()
}

// WasteValue is the waste expressed in the profit currency.
func (b *Basket) WasteValue() float64 {
	return b.Waste() * b.econ.CurrencyRate
}

// GrossProfit sums price times margin over the items.
func (b *Basket) GrossProfit() float64 {
	gross := 0.0
	for _, it := range b.Items {
		gross += it.Price * it.ProfitPct
	}
	return gross
}

// NetProfit is gross profit less the fixed cost and the value of the waste.
func (b *Basket) NetProfit() float64 {
	return b.GrossProfit() - b.econ.FixedCost - b.WasteValue()
}

// Signature is the sorted multiset of titles joined by "|".
func (b *Basket) Signature() string {
	titles := make([]string, len(b.Items))
	for i, it := range b.Items {
		titles[i] = it.Title
	}
	sort.Strings(titles)
	return strings.Join(titles, "|")
}

// Key identifies a basket by denomination and item multiset; two baskets with
// equal keys are the same basket regardless of item order.
func (b *Basket) Key() string {
	return strconv.Itoa(b.Card) + "#" + b.Signature()
}

// Hash is a compact form of Key for map lookups.
func (b *Basket) Hash() uint64 {
	return xxhash.Sum64String(b.Key())
}

// Equal compares baskets by Key.
func (b *Basket) Equal(other *Basket) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Card == other.Card && b.Signature() == other.Signature()
}

// Clone deep-copies the basket, including independent item state.
func (b *Basket) Clone() *Basket {
	c := New(b.Card, b.econ)
	c.Items = make([]*catalogue.Item, len(b.Items))
	for i, it := range b.Items {
		c.Items[i] = it.Clone()
	}
	return c
}

// CloneAll deep-copies a basket set.
func CloneAll(baskets []*Basket) []*Basket {
	out := make([]*Basket, len(baskets))
	for i, b := range baskets {
		out[i] = b.Clone()
	}
	return out
}

// Totals sums net profit and waste value over a basket set.
func Totals(baskets []*Basket) (profit, waste float64) {
	for _, b := range baskets {
		profit += b.NetProfit()
		waste += b.WasteValue()
	}
	return profit, waste
}

// Usage counts units per title across a basket set.
func Usage(baskets []*Basket) map[string]int {
	usage := make(map[string]int)
	for _, b := range baskets {
		for _, it := range b.Items {
			usage[it.Title]++
		}
	}
	return usage
}
