// Package testutil provides common utility functions for testing.
package testutil

import (
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/pkg/datetime"
)

// Today is the fixed calendar day used by tests.
var Today = datetime.MustParseTime(datetime.DateLayout, "2026-03-02")

// Item builds an item whose promo window spans thirty days around Today.
func Item(title string, price float64, required int, profitPct float64, rating int) *catalogue.Item {
	return catalogue.NewItem(catalogue.Record{
		Title:     title,
		Price:     price,
		Required:  required,
		ProfitPct: profitPct,
		PromoFrom: Today.AddDate(0, 0, -15),
		PromoTo:   Today.AddDate(0, 0, 15),
		Rating:    rating,
	}, 1.5)
}

// FamilyItem builds an item that belongs to a family.
func FamilyItem(title string, price float64, required int, family string, exclusive bool) *catalogue.Item {
	it := Item(title, price, required, 0.2, 5)
	it.Family = family
	it.FamilyExclusive = exclusive
	return it
}

// WithPromo overrides an item's promo window.
func WithPromo(it *catalogue.Item, from, to time.Time) *catalogue.Item {
	it.PromoFrom = datetime.Day(from)
	it.PromoTo = datetime.Day(to)
	return it
}

// Engine returns the default packing rules with the given overrides applied.
func Engine(mutate func(e *config.EngineConfig)) config.EngineConfig {
	e := config.Default().Engine
	if mutate != nil {
		mutate(&e)
	}
	return e
}

// SampleCatalogue returns a small mixed catalogue that packs into every
// default denomination.
func SampleCatalogue() catalogue.Catalogue {
	return catalogue.Catalogue{
		Item("Starfall", 49.50, 3, 0.25, 9),
		Item("Iron Tide", 29.10, 4, 0.20, 7),
		Item("Pixel Farm", 9.80, 6, 0.30, 6),
		Item("Moon Rally", 19.90, 3, 0.18, 8),
		Item("Deep Lane", 14.50, 2, 0.22, 5),
		Item("Quiet Harbor", 4.90, 5, 0.35, 4),
		FamilyItem("Saga I", 24.00, 2, "saga", true),
		FamilyItem("Saga II", 24.50, 2, "saga", true),
		Item("Arc Light", 95.00, 1, 0.15, 9),
		Item("Bramble", 0.99, 8, 0.40, 3),
	}
}

// FindItem finds an item by title in the catalogue.
// Returns nil when no item matches.
func FindItem(items catalogue.Catalogue, title string) *catalogue.Item {
	for _, it := range items {
		if it.Title == title {
			return it
		}
	}
	return nil
}
