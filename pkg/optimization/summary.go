// Package optimization provides shared data structures for packing results.
package optimization

import (
	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/shopspring/decimal"
)

// Summary captures the money totals of one basket set. Amounts are decimals
// rounded to cents so reports add up exactly.
type Summary struct {
	Strategy  string          `json:"strategy"`
	Baskets   int             `json:"baskets"`
	Units     int             `json:"units"`
	CardValue decimal.Decimal `json:"cardValue"`
	Spend     decimal.Decimal `json:"spend"`
	Waste     decimal.Decimal `json:"waste"`
	WasteVal  decimal.Decimal `json:"wasteValue"`
	Gross     decimal.Decimal `json:"grossProfit"`
	Net       decimal.Decimal `json:"netProfit"`
	FillRate  decimal.Decimal `json:"fillRate"`
	ByCard    map[int]int     `json:"byCard"`
	Notes     []string        `json:"notes,omitempty"`
}

// Summarize totals a basket set. Per-basket values are rounded to cents
// before they are summed.
func Summarize(strategy string, baskets []*basket.Basket) Summary {
	s := Summary{
		Strategy: strategy,
		Baskets:  len(baskets),
		ByCard:   make(map[int]int),
	}
	for _, b := range baskets {
		s.Units += b.Len()
		s.ByCard[b.Card]++
		s.CardValue = s.CardValue.Add(decimal.NewFromInt(int64(b.Card)))
		s.Spend = s.Spend.Add(cents(b.Total()))
		s.Waste = s.Waste.Add(cents(b.Waste()))
		s.WasteVal = s.WasteVal.Add(cents(b.WasteValue()))
		s.Gross = s.Gross.Add(cents(b.GrossProfit()))
		s.Net = s.Net.Add(cents(b.NetProfit()))
	}
	if s.CardValue.IsPositive() {
		s.FillRate = s.Spend.Div(s.CardValue).Round(4)
	}
	return s
}

func cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
