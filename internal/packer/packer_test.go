package packer

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/pkg/mathutil"
	"github.com/rpkwiecinski/giftcard-engine/pkg/testutil"
)

func TestConstrainedPackSingleItemNearFill(t *testing.T) {
	rules := testutil.Engine(func(e *config.EngineConfig) {
		e.Denominations = []int{50}
		e.MinItems = 1
		e.MinFillFraction = 0.97
	})
	p := New(nil, rules)
	items := catalogue.Catalogue{testutil.Item("Solo", 49.50, 10, 0.2, 5)}

	picks, ok := p.ConstrainedPack(50, 0, items, ByValue)
	if !ok {
		t.Fatalf("expected a feasible pack")
	}
	b := p.Build(50, items, picks)
	if b.Len() != 1 {
		t.Fatalf("expected single item basket, got %s", spew.Sdump(picks))
	}
	if math.Abs(b.Waste()-0.50) > 1e-9 {
		t.Fatalf("expected waste 0.50, got %v", b.Waste())
	}
}

func TestConstrainedPackNeverMixesExclusiveFamily(t *testing.T) {
	rules := testutil.Engine(func(e *config.EngineConfig) {
		e.Denominations = []int{50}
		e.MinItems = 2
		e.MinFillFraction = 0.5
	})
	p := New(nil, rules)
	items := catalogue.Catalogue{
		testutil.FamilyItem("Saga I", 20, 3, "saga", true),
		testutil.FamilyItem("Saga II", 20, 3, "saga", true),
		testutil.Item("Filler", 9, 3, 0.1, 1),
	}

	for focus := range items {
		picks, ok := p.ConstrainedPack(50, focus, items, ByValue)
		if !ok {
			continue
		}
		b := p.Build(50, items, picks)
		if !b.Valid(rules) {
			t.Fatalf("focus %d produced invalid basket %s", focus, spew.Sdump(b.Signature()))
		}
		sagas := 0
		for _, it := range b.Items {
			if it.Family == "saga" {
				sagas++
			}
		}
		if sagas > 1 {
			t.Fatalf("focus %d packed both exclusive items: %s", focus, b.Signature())
		}
	}
}

func TestPackBoundsAndIdempotence(t *testing.T) {
	rules := testutil.Engine(nil)
	p := New(nil, rules)
	items := testutil.SampleCatalogue()

	tests := []struct {
		name string
		pack func(card, focus int) ([]int, bool)
	}{
		{"constrained", func(card, focus int) ([]int, bool) { return p.ConstrainedPack(card, focus, items, ByValue) }},
		{"constrained cheapest", func(card, focus int) ([]int, bool) { return p.ConstrainedPack(card, focus, items, ByCheapest) }},
		{"maximal fill", func(card, focus int) ([]int, bool) { return p.MaximalFillPack(card, focus, items) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, card := range rules.Denominations {
				for focus, it := range items {
					if mathutil.Exceeds(it.Price, float64(card)) {
						continue
					}
					first, ok := tt.pack(card, focus)
					second, ok2 := tt.pack(card, focus)
					if ok != ok2 || !reflect.DeepEqual(first, second) {
						t.Fatalf("card %d focus %d not deterministic: %v vs %v", card, focus, first, second)
					}
					if !ok {
						if first != nil {
							t.Fatalf("infeasible pack returned picks %v", first)
						}
						continue
					}
					if first[0] != focus {
						t.Fatalf("focus must lead picks, got %v", first)
					}
					b := p.Build(card, items, first)
					if !b.Valid(rules) {
						t.Fatalf("card %d focus %d: invalid basket %s total %.2f", card, focus, b.Signature(), b.Total())
					}
				}
			}
		})
	}
}

func TestConstrainedPackStopsAtThreshold(t *testing.T) {
	rules := testutil.Engine(func(e *config.EngineConfig) {
		e.MinItems = 1
		e.MinFillFraction = 0.5
	})
	p := New(nil, rules)
	items := catalogue.Catalogue{
		testutil.Item("Focus", 10, 1, 0.2, 1),
		testutil.Item("Big", 8, 1, 0.9, 9),
		testutil.Item("Small", 1, 1, 0.9, 9),
	}

	constrained, ok := p.ConstrainedPack(30, 0, items, ByValue)
	if !ok {
		t.Fatalf("expected constrained pack")
	}
	filled, ok := p.MaximalFillPack(30, 0, items)
	if !ok {
		t.Fatalf("expected maximal fill pack")
	}
	// Focus alone is below half of 30; one more unit is enough.
	if len(constrained) != 2 {
		t.Fatalf("expected early exit after two picks, got %v", constrained)
	}
	if len(filled) != 3 {
		t.Fatalf("expected maximal fill to take every fitting item, got %v", filled)
	}
}

func TestPackSkipsDepletedCandidates(t *testing.T) {
	rules := testutil.Engine(func(e *config.EngineConfig) {
		e.MinItems = 2
		e.MinFillFraction = 0.5
	})
	p := New(nil, rules)
	items := catalogue.Catalogue{
		testutil.Item("Focus", 5, 1, 0.2, 1),
		testutil.Item("Gone", 5, 1, 0.9, 9),
	}
	items[1].Remaining = 0

	if _, ok := p.ConstrainedPack(10, 0, items, ByValue); ok {
		t.Fatalf("depleted candidate must not be used")
	}
}

func TestBackfillConservesSupply(t *testing.T) {
	rules := testutil.Engine(nil)
	p := New(nil, rules)
	items := testutil.SampleCatalogue()

	baskets, abandoned := p.Backfill(context.Background(), items)
	if len(baskets) == 0 {
		t.Fatalf("expected backfill to place some supply")
	}

	usage := basket.Usage(baskets)
	for _, it := range items {
		if usage[it.Title] != it.Consumed() {
			t.Fatalf("%s: %d units in baskets, %d consumed", it.Title, usage[it.Title], it.Consumed())
		}
		if it.ExtraBought > 0 && it.Required+it.ExtraBought > it.MaxAllowed {
			t.Fatalf("%s: extra %d exceeds ceiling %d", it.Title, it.ExtraBought, it.MaxAllowed)
		}
		if it.Remaining > 0 && abandoned[it.Title] != it.Remaining {
			t.Fatalf("%s: %d left but %d reported abandoned", it.Title, it.Remaining, abandoned[it.Title])
		}
	}
	for _, b := range baskets {
		if !b.Valid(rules) {
			t.Fatalf("invalid backfill basket %s total %.2f", b.Key(), b.Total())
		}
	}
}

func TestFindPackMinimisesWaste(t *testing.T) {
	rules := testutil.Engine(func(e *config.EngineConfig) { e.MinFillFraction = 0.9 })
	p := New(nil, rules)
	items := catalogue.Catalogue{
		testutil.Item("Focus", 20, 1, 0.2, 1),
		testutil.Item("Seven", 7, 1, 0.2, 1),
		testutil.Item("Ten", 10, 1, 0.2, 1),
		testutil.Item("Three", 3, 1, 0.2, 1),
	}

	picks := p.FindPack(30, 0, items)
	b := p.Build(30, items, picks)
	if !mathutil.IsZero(b.Waste()) {
		t.Fatalf("expected an exact fill, got %s waste %.2f", b.Signature(), b.Waste())
	}
}

func TestFindPackKeepsSearchingPastSubCentWaste(t *testing.T) {
	rules := testutil.Engine(func(e *config.EngineConfig) {
		e.Denominations = []int{10}
		e.MinFillFraction = 0.97
	})
	p := New(nil, rules)
	items := catalogue.Catalogue{
		testutil.Item("Focus", 4.00, 1, 0.2, 1),
		testutil.Item("Nearly", 5.995, 1, 0.2, 1),
		testutil.Item("Third A", 3.00, 1, 0.2, 1),
		testutil.Item("Third B", 3.00, 1, 0.2, 1),
	}

	picks := p.FindPack(10, 0, items)
	b := p.Build(10, items, picks)
	if b.Len() != 3 || math.Abs(b.Waste()) > 1e-9 {
		t.Fatalf("expected the exact three-item fill, got %s waste %.4f", b.Signature(), b.Waste())
	}
}

func TestBackfillHonoursCancellation(t *testing.T) {
	p := New(nil, testutil.Engine(nil))
	items := testutil.SampleCatalogue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	baskets, _ := p.Backfill(ctx, items)
	if len(baskets) != 0 {
		t.Fatalf("cancelled backfill built %d baskets", len(baskets))
	}
}
