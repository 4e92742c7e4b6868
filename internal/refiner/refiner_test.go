package refiner

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/selector"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"github.com/rpkwiecinski/giftcard-engine/pkg/testutil"
)

func newRefiner(t *testing.T, mutate func(c *config.Configuration)) (*Refiner, *selector.Table) {
	t.Helper()
	conf := config.Default()
	conf.Engine.MinFillFraction = 0.8
	if mutate != nil {
		mutate(conf)
	}
	table := selector.NewTable(nil)
	r, err := New(nil, conf, table, rand.New(rand.NewPCG(11, 13)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return r, table
}

func make30(rules config.EngineConfig, items ...*catalogue.Item) *basket.Basket {
	b := basket.New(30, basket.EconomicsOf(rules))
	b.Items = items
	return b
}

// Crossover children obey the packing rules, so exclusive family members
// never meet in a child.
func TestCrossoverEnforcesPackingRules(t *testing.T) {
	r, _ := newRefiner(t, nil)
	a := make30(r.rules,
		testutil.FamilyItem("Saga I", 14, 2, "saga", true),
		testutil.Item("Alpha", 13, 2, 0.2, 5),
	)
	b := make30(r.rules,
		testutil.FamilyItem("Saga II", 14, 2, "saga", true),
		testutil.Item("Beta", 12, 2, 0.3, 6),
		testutil.Item("Alpha", 13, 2, 0.2, 5),
	)

	child := r.Crossover(a, b)
	if child == nil {
		t.Fatalf("expected a child from Saga I + Beta")
	}
	if child.Signature() != "Beta|Saga I" {
		t.Fatalf("unexpected child %s", child.Signature())
	}
	if !child.Valid(r.rules) {
		t.Fatalf("child breaks packing rules: %s", child.Key())
	}
	if child.Items[0] == a.Items[0] {
		t.Fatalf("child must own cloned items")
	}
}

func TestCrossoverRejectsUnderfilledChild(t *testing.T) {
	r, _ := newRefiner(t, nil)
	a := make30(r.rules, testutil.Item("A1", 15, 1, 0.2, 1), testutil.Item("A2", 14, 1, 0.2, 1))
	b := make30(r.rules, testutil.Item("B1", 29, 1, 0.2, 1))

	if child := r.Crossover(a, b); child != nil {
		t.Fatalf("expected nil for underfilled child, got %s", child.Key())
	}
}

func TestMutateReplacesOneItem(t *testing.T) {
	r, _ := newRefiner(t, nil)
	items := catalogue.Catalogue{
		testutil.Item("Keep", 15, 3, 0.2, 5),
		testutil.Item("Swap", 14, 3, 0.1, 2),
		testutil.Item("Fresh", 14.5, 3, 0.4, 9),
	}
	parent := make30(r.rules, items[0].Clone(), items[1].Clone())

	for i := 0; i < 20; i++ {
		child := r.Mutate(parent, items)
		if child == nil {
			continue
		}
		if !child.Valid(r.rules) {
			t.Fatalf("invalid mutant %s", child.Key())
		}
		if child.Len() != parent.Len() {
			t.Fatalf("mutant changed size: %s", child.Key())
		}
		if child.Key() == parent.Key() {
			t.Fatalf("mutant identical to parent")
		}
	}
	if parent.Signature() != "Keep|Swap" {
		t.Fatalf("parent modified: %s", parent.Signature())
	}
}

func TestImproveReplacesWeakestSameCard(t *testing.T) {
	r, _ := newRefiner(t, nil)
	weak := make30(r.rules, testutil.Item("Weak", 25, 2, 0.05, 1))
	mid := make30(r.rules, testutil.Item("Mid", 25, 2, 0.2, 1))
	res := &Result{Best: []*basket.Basket{weak, mid}}

	strong := make30(r.rules, testutil.Item("Strong", 29, 1, 0.5, 9))
	if !r.improve(res, strong) {
		t.Fatalf("expected improvement")
	}
	if res.Best[0].Key() != "30#Strong" || res.Best[1].Key() != "30#Mid" {
		t.Fatalf("unexpected best set %s %s", res.Best[0].Key(), res.Best[1].Key())
	}

	other := basket.New(50, basket.EconomicsOf(r.rules))
	other.Items = []*catalogue.Item{testutil.Item("Other", 49, 1, 0.9, 9)}
	if r.improve(res, other) {
		t.Fatalf("no 50 basket to replace")
	}
}

func TestImproveRespectsSupply(t *testing.T) {
	r, _ := newRefiner(t, nil)
	scarce := testutil.Item("Scarce", 29, 1, 0.5, 9)
	scarce.MaxAllowed = 1
	held := make30(r.rules, scarce.Clone())
	weak := make30(r.rules, testutil.Item("Weak", 25, 1, 0.05, 1))
	res := &Result{Best: []*basket.Basket{held, weak}}

	if r.improve(res, make30(r.rules, scarce.Clone())) {
		t.Fatalf("second Scarce unit exceeds supply")
	}
	if res.Best[1].Key() != "30#Weak" {
		t.Fatalf("rejected improvement must roll back, got %s", res.Best[1].Key())
	}
}

func TestRunRecordsOffspringAndNeverLosesProfit(t *testing.T) {
	r, table := newRefiner(t, func(c *config.Configuration) {
		c.Refiner.Generations = 3
		c.Refiner.EliteK = 4
		c.Refiner.MutantsPerElite = 3
		c.Refiner.CrossoversPerGeneration = 10
	})
	items := testutil.SampleCatalogue()
	best := []*basket.Basket{
		make30(r.rules, items[1].Clone()),
		make30(r.rules, items[3].Clone(), items[2].Clone()),
	}
	seeds := []*basket.Basket{
		make30(r.rules, items[1].Clone()),
		make30(r.rules, items[3].Clone(), items[2].Clone()),
		make30(r.rules, items[6].Clone(), items[5].Clone()),
	}
	before, _ := basket.Totals(best)

	res := r.Run(context.Background(), items, seeds, best)

	if res.Generations != 3 {
		t.Fatalf("expected 3 generations, got %d", res.Generations)
	}
	if res.BestProfit < before-1e-9 {
		t.Fatalf("profit dropped from %.4f to %.4f", before, res.BestProfit)
	}
	if res.Offspring == 0 {
		t.Fatalf("expected offspring from mutation and crossover")
	}
	st, ok := table.Get(constants.EvolvedStrategy)
	if !ok || st.Runs != res.Offspring {
		t.Fatalf("expected %d evolved runs, got %+v", res.Offspring, st)
	}
	if len(res.Elites) == 0 || len(res.Elites) > 8 {
		t.Fatalf("elite set must hold between 1 and 2K baskets, got %d", len(res.Elites))
	}
	seen := map[string]bool{}
	for _, e := range res.Elites {
		if seen[e.Key()] {
			t.Fatalf("duplicate elite %s", e.Key())
		}
		seen[e.Key()] = true
	}
	if !basket.WithinSupply(res.Best) {
		t.Fatalf("refined best set exceeds supply")
	}
	for _, b := range res.Best {
		if !b.Valid(r.rules) {
			t.Fatalf("invalid basket in best set %s", b.Key())
		}
	}
	if best[0].Key() != "30#Iron Tide" {
		t.Fatalf("input best set modified")
	}
}

func TestRunWithoutGenerationsIsIdentity(t *testing.T) {
	r, table := newRefiner(t, func(c *config.Configuration) { c.Refiner.Generations = 0 })
	items := testutil.SampleCatalogue()
	best := []*basket.Basket{make30(r.rules, items[1].Clone())}

	res := r.Run(context.Background(), items, best, best)
	if res.Generations != 0 || res.Offspring != 0 {
		t.Fatalf("disabled refiner did work: %+v", res)
	}
	if _, ok := table.Get(constants.EvolvedStrategy); ok {
		t.Fatalf("no evolved statistics expected")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r, _ := newRefiner(t, nil)
	items := testutil.SampleCatalogue()
	best := []*basket.Basket{make30(r.rules, items[1].Clone())}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx, items, best, best)
	if res.Generations != 0 || len(res.Best) != 1 {
		t.Fatalf("cancelled run did work: %+v", res)
	}
}
