package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
)

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		wantError  bool
	}{
		{
			name:       "Non-existent config file",
			configPath: "nonexistent.yaml",
			wantError:  true,
		},
		{
			name:       "Empty path yields defaults",
			configPath: "",
			wantError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfiguration(tt.configPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadConfiguration() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadConfiguration() error = %v", err)
				return
			}
			if config == nil {
				t.Errorf("LoadConfiguration() returned nil config")
			}
		})
	}
}

func TestLoadConfigurationOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := []byte(`engine:
  denominations: [100, 50, 50, 20]
  fixedCost: 0.75
  maxItems: 4
selector:
  policy: epsilon
  iterations: 12
  budget: 30s
refiner:
  eliteK: 3
storage:
  backend: memory
trainer:
  interval: 5s
logging:
  level: debug
  format: console
`)
	if err := os.WriteFile(path, contents, 0600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	conf, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if !reflect.DeepEqual(conf.Engine.Denominations, []int{20, 50, 100}) {
		t.Fatalf("expected sorted unique denominations, got %v", conf.Engine.Denominations)
	}
	if conf.Engine.FixedCost != 0.75 {
		t.Fatalf("expected fixed cost override, got %.2f", conf.Engine.FixedCost)
	}
	if conf.Engine.MaxItems != 4 {
		t.Fatalf("expected maxItems 4, got %d", conf.Engine.MaxItems)
	}
	if conf.Engine.MinFillFraction != constants.DefaultMinFillFraction {
		t.Fatalf("expected default fill fraction, got %.2f", conf.Engine.MinFillFraction)
	}
	if conf.Selector.Policy != constants.PolicyEpsilonGreedy {
		t.Fatalf("expected canonical epsilon-greedy policy, got %s", conf.Selector.Policy)
	}
	if conf.Selector.Iterations != 12 {
		t.Fatalf("expected 12 iterations, got %d", conf.Selector.Iterations)
	}
	if conf.Selector.Budget != 30*time.Second {
		t.Fatalf("expected 30s budget, got %s", conf.Selector.Budget)
	}
	if conf.Refiner.EliteK != 3 {
		t.Fatalf("expected eliteK 3, got %d", conf.Refiner.EliteK)
	}
	if conf.Storage.Backend != constants.StorageBackendMemory {
		t.Fatalf("expected memory backend, got %s", conf.Storage.Backend)
	}
	if conf.Trainer.Interval != 5*time.Second {
		t.Fatalf("expected 5s trainer interval, got %s", conf.Trainer.Interval)
	}
	if conf.Logging.Level != "debug" || conf.Logging.Format != "console" {
		t.Fatalf("expected logging overrides, got %+v", conf.Logging)
	}
}

func TestLoadConfigurationEnvironmentOverride(t *testing.T) {
	t.Setenv("GIFTCARD_ENGINE_MAXITEMS", "3")
	t.Setenv("GIFTCARD_SELECTOR_ITERATIONS", "7")

	conf, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if conf.Engine.MaxItems != 3 {
		t.Fatalf("expected env maxItems 3, got %d", conf.Engine.MaxItems)
	}
	if conf.Selector.Iterations != 7 {
		t.Fatalf("expected env iterations 7, got %d", conf.Selector.Iterations)
	}
}

func TestDefaultMatchesLoader(t *testing.T) {
	loaded, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	def := Default()

	if !reflect.DeepEqual(loaded.Engine, def.Engine) {
		t.Fatalf("engine defaults differ:\nloaded %+v\ndefault %+v", loaded.Engine, def.Engine)
	}
	if !reflect.DeepEqual(loaded.Selector, def.Selector) {
		t.Fatalf("selector defaults differ:\nloaded %+v\ndefault %+v", loaded.Selector, def.Selector)
	}
	if loaded.Refiner != def.Refiner {
		t.Fatalf("refiner defaults differ:\nloaded %+v\ndefault %+v", loaded.Refiner, def.Refiner)
	}
	want := RefinerConfig{
		EliteK:                  constants.DefaultEliteK,
		Generations:             constants.DefaultGenerations,
		MutantsPerElite:         constants.DefaultMutantsPerElite,
		CrossoversPerGeneration: constants.DefaultCrossoversPerGeneration,
	}
	if def.Refiner != want {
		t.Fatalf("expected refinement on by default %+v, got %+v", want, def.Refiner)
	}
	if loaded.Schedule != def.Schedule || loaded.Storage != def.Storage {
		t.Fatalf("schedule or storage defaults differ:\nloaded %+v %+v\ndefault %+v %+v",
			loaded.Schedule, loaded.Storage, def.Schedule, def.Storage)
	}
	if def.Engine.FixedCost != constants.DefaultFixedCost {
		t.Fatalf("expected default fixed cost %.2f, got %.2f", constants.DefaultFixedCost, def.Engine.FixedCost)
	}
}

func TestExplicitZerosSurviveLoading(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := []byte(`engine:
  wasteThreshold: 0
selector:
  iterations: 0
  budget: 5s
  epsilonMin: 0
refiner:
  generations: 0
  mutantsPerElite: 0
  crossoversPerGeneration: 0
`)
	if err := os.WriteFile(path, contents, 0600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	conf, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if conf.Selector.Iterations != 0 || conf.Selector.Budget != 5*time.Second {
		t.Fatalf("expected a budget-only selector, got iterations %d budget %s", conf.Selector.Iterations, conf.Selector.Budget)
	}
	if conf.Selector.EpsilonMin != 0 {
		t.Fatalf("expected epsilonMin 0, got %.3f", conf.Selector.EpsilonMin)
	}
	if conf.Engine.WasteThreshold != 0 {
		t.Fatalf("expected wasteThreshold 0, got %.3f", conf.Engine.WasteThreshold)
	}
	if conf.Refiner.Generations != 0 || conf.Refiner.MutantsPerElite != 0 || conf.Refiner.CrossoversPerGeneration != 0 {
		t.Fatalf("expected refinement disabled, got %+v", conf.Refiner)
	}
}

func TestIterationsFallBackWithoutBudget(t *testing.T) {
	conf := Default()
	conf.Selector.Iterations = 0
	conf.Normalize()
	if conf.Selector.Iterations != constants.DefaultIterations {
		t.Fatalf("expected default iterations without a budget, got %d", conf.Selector.Iterations)
	}

	conf.Selector.Iterations = 0
	conf.Selector.Budget = time.Second
	conf.Normalize()
	if conf.Selector.Iterations != 0 {
		t.Fatalf("expected budget-only run to keep 0 iterations, got %d", conf.Selector.Iterations)
	}
	if err := conf.Validate(); err != nil {
		t.Fatalf("budget-only configuration rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"minItems above maxItems", func(c *Configuration) { c.Engine.MinItems = 7; c.Engine.MaxItems = 6 }},
		{"fill fraction above one", func(c *Configuration) { c.Engine.MinFillFraction = 1.2 }},
		{"negative denomination", func(c *Configuration) { c.Engine.Denominations = []int{-10, 50} }},
		{"extra buy below one", func(c *Configuration) { c.Engine.ExtraBuyLimitFraction = 0.5 }},
		{"unknown policy", func(c *Configuration) { c.Selector.Policy = "thompson" }},
		{"epsilon min above start", func(c *Configuration) { c.Selector.EpsilonMin = 0.9 }},
		{"unknown backend", func(c *Configuration) { c.Storage.Backend = "s3" }},
		{"no iterations and no budget", func(c *Configuration) { c.Selector.Iterations = 0; c.Selector.Budget = 0 }},
		{"negative waste threshold", func(c *Configuration) { c.Engine.WasteThreshold = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := Default()
			tt.mutate(conf)
			if err := conf.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDenominationOrdering(t *testing.T) {
	e := EngineConfig{Denominations: []int{50, 10, 100, 30}}
	if got := e.Ascending(); !reflect.DeepEqual(got, []int{10, 30, 50, 100}) {
		t.Fatalf("Ascending() = %v", got)
	}
	if got := e.Descending(); !reflect.DeepEqual(got, []int{100, 50, 30, 10}) {
		t.Fatalf("Descending() = %v", got)
	}
	if !reflect.DeepEqual(e.Denominations, []int{50, 10, 100, 30}) {
		t.Fatalf("ordering helpers must not mutate the config, got %v", e.Denominations)
	}
}
