// Package selector runs the adaptive strategy loop: a bandit policy picks a
// heuristic per trial, the trial runs on a shuffled catalogue clone and the
// outcome feeds the persisted strategy statistics.
package selector

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/packer"
	"github.com/rpkwiecinski/giftcard-engine/internal/strategy"
	"go.uber.org/zap"
)

// Selector drives trials over a strategy registry.
type Selector struct {
	logger   *zap.Logger
	cfg      config.SelectorConfig
	rules    config.EngineConfig
	registry *strategy.Registry
	packer   *packer.Packer
	table    *Table
	elites   *ElitePool
	policy   Policy
	rng      *rand.Rand
	now      func() time.Time
}

// Result is the outcome of one selector run.
type Result struct {
	Best         []*basket.Basket
	BestProfit   float64
	BestWaste    float64
	BestStrategy string
	Trials       int
	Failures     int
	Scoring      map[string]int
	Session      Session
}

// Found reports whether any trial produced a basket set.
func (r *Result) Found() bool {
	return r.Best != nil
}

// New constructs a Selector. table and elites are shared with the caller so
// statistics can be persisted and elites refined after the run.
func New(logger *zap.Logger, conf *config.Configuration, registry *strategy.Registry, table *Table, elites *ElitePool, rng *rand.Rand) (*Selector, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("strategy registry cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = NewTable(nil)
	}
	if elites == nil {
		elites = NewElitePool(conf.Refiner.EliteK * 4)
	}
	if rng == nil {
		rng = NewRand(conf.Selector.Seed)
	}
	return &Selector{
		logger:   logger,
		cfg:      conf.Selector,
		rules:    conf.Engine,
		registry: registry,
		packer:   packer.New(logger, conf.Engine),
		table:    table,
		elites:   elites,
		policy:   NewPolicy(conf.Selector),
		rng:      rng,
		now:      time.Now,
	}, nil
}

// NewRand seeds a generator; seed 0 means time based.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// Run executes trials until the iteration count or the wall-clock budget is
// reached, or ctx is cancelled. Cancellation is not an error: the best result
// computed so far is returned.
func (s *Selector) Run(ctx context.Context, items catalogue.Catalogue) *Result {
	names := s.registry.Names()
	scorer := newRoundScorer(len(names))
	res := &Result{
		BestProfit: math.Inf(-1),
		Session: Session{
			StrategyNames: names,
			Usage:         make([]int, len(names)),
		},
	}

	var deadline time.Time
	if s.cfg.Budget > 0 {
		deadline = s.now().Add(s.cfg.Budget)
	}

	for iter := 0; s.cfg.Iterations <= 0 || iter < s.cfg.Iterations; iter++ {
		if ctx.Err() != nil {
			s.logger.Info("selector cancelled",
				zap.String("op", "selector.Run"),
				zap.Int("trials", res.Trials),
			)
			break
		}
		if !deadline.IsZero() && !s.now().Before(deadline) {
			break
		}
		if s.cfg.Iterations <= 0 && deadline.IsZero() {
			break
		}

		idx := s.policy.Choose(names, s.table, Epsilon(s.cfg, iter), s.rng)
		name := names[idx]
		res.Session.Usage[idx]++

		baskets, err := s.trial(ctx, name, items)
		if ctx.Err() != nil {
			// partial trial, keep the last complete best
			res.Session.Usage[idx]--
			break
		}
		res.Trials++
		profit, waste := basket.Totals(baskets)
		if err != nil {
			res.Failures++
			profit, waste = 0, 0
			baskets = nil
			s.logger.Warn("strategy trial failed",
				zap.String("op", "selector.Run"),
				zap.String("strategy", name),
				zap.Error(err),
			)
		}

		entry := TrialLog{Timestamp: s.now().UTC(), Strategy: idx, Profit: profit, Waste: waste, Baskets: len(baskets)}
		res.Session.Log = append(res.Session.Log, entry)
		scorer.add(entry)
		s.table.Update(name, profit, waste)

		if err == nil && profit > res.BestProfit {
			res.Best = basket.CloneAll(baskets)
			res.BestProfit = profit
			res.BestWaste = waste
			res.BestStrategy = name
			s.logger.Debug("new best basket set",
				zap.String("op", "selector.Run"),
				zap.String("strategy", name),
				zap.Int("iteration", iter),
				zap.Float64("profit", profit),
				zap.Int("baskets", len(baskets)),
			)
		}
		if len(baskets) > 0 {
			s.elites.Offer(baskets...)
		}

		if s.cfg.TrimEvery > 0 && (iter+1)%s.cfg.TrimEvery == 0 {
			if removed := s.table.Trim(s.cfg.RollingWindow); len(removed) > 0 {
				s.logger.Debug("trimmed strategy statistics",
					zap.String("op", "selector.Run"),
					zap.Strings("removed", removed),
				)
			}
		}
	}

	if !res.Found() {
		res.BestProfit = 0
	}
	res.Session.BestProfit = res.BestProfit
	res.Scoring = scorer.scoring(names)
	return res
}

// trial runs one strategy on a fresh shuffled clone and applies LocalSwap.
// A panic inside the strategy is returned as an error.
func (s *Selector) trial(ctx context.Context, name string, items catalogue.Catalogue) (baskets []*basket.Basket, err error) {
	defer func() {
		if r := recover(); r != nil {
			baskets = nil
			err = fmt.Errorf("strategy %s panicked: %v", name, r)
		}
	}()

	fn, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("strategy %s not registered", name)
	}
	snapshot := items.Clone()
	snapshot.Shuffle(s.rng)
	baskets = fn(ctx, s.packer, snapshot, s.rng)
	strategy.LocalSwap(s.rules, snapshot, baskets)
	return baskets, nil
}

// Table exposes the statistics table the selector updates.
func (s *Selector) Table() *Table {
	return s.table
}

// Elites exposes the pool of best baskets seen across trials.
func (s *Selector) Elites() *ElitePool {
	return s.elites
}

// Packer exposes the packer built from the engine rules.
func (s *Selector) Packer() *packer.Packer {
	return s.packer
}

// Rand exposes the selector's random source.
func (s *Selector) Rand() *rand.Rand {
	return s.rng
}
