package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/store"
	"go.uber.org/zap"
)

// largeCatalogue builds n items with prices spread across every denomination.
func largeCatalogue(t testing.TB, n int) catalogue.Catalogue {
	t.Helper()
	from := time.Now().AddDate(0, 0, -10)
	to := time.Now().AddDate(0, 2, 0)
	records := make([]catalogue.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, catalogue.Record{
			Title:     fmt.Sprintf("Title %03d", i),
			Price:     0.99 + float64((i*37)%9500)/100,
			Required:  1 + i%4,
			ProfitPct: 0.1 + float64(i%7)/20,
			PromoFrom: from,
			PromoTo:   to,
			Rating:    i % 10,
		})
	}
	items, err := catalogue.Build(records, config.Default().Engine.ExtraBuyLimitFraction)
	if err != nil {
		t.Fatalf("catalogue.Build() error = %v", err)
	}
	return items
}

// TestPerformance checks a realistic run stays within an interactive budget.
func TestPerformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance test in short mode")
	}
	conf := config.Default()
	conf.Selector.Iterations = 50
	conf.Selector.Seed = 1

	pipeline, err := engine.NewPipeline(zap.NewNop(), conf, store.NewMemoryStatsStore(), nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	items := largeCatalogue(t, 200)

	start := time.Now()
	res, err := pipeline.Run(context.Background(), items, 0, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	elapsed := time.Since(start)

	if len(res.Baskets) == 0 {
		t.Fatal("expected baskets from a large catalogue")
	}
	if elapsed > 30*time.Second {
		t.Errorf("run took %v, expected under 30s", elapsed)
	}
	t.Logf("%d items, %d trials, %d baskets in %v", len(items), res.Trials, len(res.Baskets), elapsed)
}

// TestBudgetStopsRun checks the wall-clock budget ends an unbounded run.
func TestBudgetStopsRun(t *testing.T) {
	conf := config.Default()
	conf.Selector.Iterations = 1_000_000
	conf.Selector.Budget = 200 * time.Millisecond

	pipeline, err := engine.NewPipeline(zap.NewNop(), conf, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	start := time.Now()
	res, err := pipeline.Run(context.Background(), largeCatalogue(t, 60), 0, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Second {
		t.Errorf("budgeted run took %v", elapsed)
	}
	if res.Trials >= conf.Selector.Iterations {
		t.Errorf("expected the budget to stop the selector early, ran %d trials", res.Trials)
	}
}

func BenchmarkPipelineRun(b *testing.B) {
	conf := config.Default()
	conf.Selector.Iterations = 20
	conf.Selector.Seed = 3
	conf.Refiner.Generations = 1
	pipeline, err := engine.NewPipeline(zap.NewNop(), conf, store.NewMemoryStatsStore(), nil)
	if err != nil {
		b.Fatalf("NewPipeline() error = %v", err)
	}
	items := largeCatalogue(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pipeline.Run(context.Background(), items, 0, 0); err != nil {
			b.Fatalf("Run() error = %v", err)
		}
	}
}
