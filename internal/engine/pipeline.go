// Package engine wires the selector, the refiner and the calendar into one
// pipeline run with scoped statistics persistence.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/calendar"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/internal/refiner"
	"github.com/rpkwiecinski/giftcard-engine/internal/selector"
	"github.com/rpkwiecinski/giftcard-engine/internal/strategy"
	"github.com/rpkwiecinski/giftcard-engine/pkg/datetime"
	"github.com/rpkwiecinski/giftcard-engine/pkg/optimization"
	"github.com/rpkwiecinski/giftcard-engine/pkg/validation"
	"go.uber.org/zap"
)

// StatsStore persists the strategy statistics table between runs.
type StatsStore interface {
	Load(ctx context.Context) (map[string]selector.StrategyStat, error)
	Save(ctx context.Context, stats map[string]selector.StrategyStat) error
}

// SessionSink records the session log of a run.
type SessionSink interface {
	Write(ctx context.Context, session selector.Session) error
}

// Pipeline runs selector, refiner and calendar end to end.
type Pipeline struct {
	logger   *zap.Logger
	conf     *config.Configuration
	registry *strategy.Registry
	stats    StatsStore
	sessions SessionSink
	today    func() time.Time
}

// Refinement summarizes the evolutionary pass.
type Refinement struct {
	Generations  int     `json:"generations"`
	Offspring    int     `json:"offspring"`
	Improvements int     `json:"improvements"`
	ProfitBefore float64 `json:"profitBefore"`
	ProfitAfter  float64 `json:"profitAfter"`
}

// Result is everything one pipeline run produced.
type Result struct {
	StartedAt    time.Time                        `json:"startedAt"`
	Duration     time.Duration                    `json:"duration"`
	Baskets      []*basket.Basket                 `json:"baskets"`
	Profit       float64                          `json:"profit"`
	Waste        float64                          `json:"waste"`
	BestStrategy string                           `json:"bestStrategy"`
	Trials       int                              `json:"trials"`
	Failures     int                              `json:"failures"`
	Scoring      map[string]int                   `json:"strategiesScoring"`
	Refinement   Refinement                       `json:"refinement"`
	Schedule     *calendar.ScheduleResult         `json:"schedule"`
	Stats        map[string]selector.StrategyStat `json:"stats"`
	Session      selector.Session                 `json:"-"`
	Summary      optimization.Summary             `json:"summary"`
	Warnings     []string                         `json:"warnings,omitempty"`
	Cancelled    bool                             `json:"cancelled,omitempty"`
}

// NewPipeline constructs a Pipeline. stats and sessions may be nil, in which
// case statistics live only for the run and no session log is written.
func NewPipeline(logger *zap.Logger, conf *config.Configuration, stats StatsStore, sessions SessionSink) (*Pipeline, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		logger:   logger,
		conf:     conf,
		registry: strategy.NewRegistry(),
		stats:    stats,
		sessions: sessions,
		today:    datetime.Today,
	}, nil
}

// Config returns the configuration the pipeline runs with.
func (p *Pipeline) Config() *config.Configuration {
	return p.conf
}

// Run executes one pipeline over items. workers or dailyLimit of zero fall
// back to the configured schedule. Cancellation returns the best result
// computed so far. Persistence failures are logged, never returned.
func (p *Pipeline) Run(ctx context.Context, items catalogue.Catalogue, workers, dailyLimit int) (*Result, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("catalogue is empty")
	}
	if workers <= 0 {
		workers = p.conf.Schedule.Workers
	}
	if dailyLimit <= 0 {
		dailyLimit = p.conf.Schedule.DailyLimit
	}

	started := time.Now()
	res := &Result{StartedAt: started.UTC()}

	validator := validation.CatalogueValidator{Items: items, Rules: p.conf.Engine, Today: p.today()}
	res.Warnings = validator.ValidateAll()
	for _, w := range res.Warnings {
		p.logger.Warn(w, zap.String("op", "engine.Run"))
	}

	table := selector.NewTable(p.loadStats(ctx))
	defer p.saveStats(table)

	elites := selector.NewElitePool(p.conf.Refiner.EliteK * 4)
	sel, err := selector.New(p.logger, p.conf, p.registry, table, elites, nil)
	if err != nil {
		return nil, err
	}

	selected := sel.Run(ctx, items)
	defer p.writeSession(selected.Session)

	res.Trials = selected.Trials
	res.Failures = selected.Failures
	res.Scoring = selected.Scoring
	res.Session = selected.Session
	res.BestStrategy = selected.BestStrategy
	res.Baskets = selected.Best

	if selected.Found() && ctx.Err() == nil {
		ref, err := refiner.New(p.logger, p.conf, table, sel.Rand())
		if err != nil {
			return nil, err
		}
		refined := ref.Run(ctx, items, elites.Top(p.conf.Refiner.EliteK), selected.Best)
		res.Refinement = Refinement{
			Generations:  refined.Generations,
			Offspring:    refined.Offspring,
			Improvements: refined.Improvements,
			ProfitBefore: selected.BestProfit,
			ProfitAfter:  refined.BestProfit,
		}
		if refined.Improvements > 0 && refined.BestProfit > selected.BestProfit {
			res.Baskets = refined.Best
		}
	}

	res.Cancelled = ctx.Err() != nil
	res.Profit, res.Waste = basket.Totals(res.Baskets)
	res.Schedule = calendar.BuildFrom(p.today(), res.Baskets, workers, dailyLimit)
	res.Summary = optimization.Summarize(res.BestStrategy, res.Baskets)
	res.Stats = table.Snapshot()
	res.Duration = time.Since(started)

	p.logger.Info("pipeline finished",
		zap.String("op", "engine.Run"),
		zap.String("bestStrategy", res.BestStrategy),
		zap.Float64("profit", res.Profit),
		zap.Float64("waste", res.Waste),
		zap.Int("baskets", len(res.Baskets)),
		zap.Int("trials", res.Trials),
		zap.Int("scheduledDays", len(res.Schedule.Days)),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (p *Pipeline) loadStats(ctx context.Context) map[string]selector.StrategyStat {
	if p.stats == nil {
		return nil
	}
	stats, err := p.stats.Load(ctx)
	if err != nil {
		p.logger.Error("failed to load strategy statistics, starting empty",
			zap.String("op", "engine.loadStats"),
			zap.Error(err),
		)
		return nil
	}
	return stats
}

// saveStats runs on a fresh context so a cancelled run still persists what
// it learned.
func (p *Pipeline) saveStats(table *selector.Table) {
	if p.stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.stats.Save(ctx, table.Snapshot()); err != nil {
		p.logger.Error("failed to save strategy statistics",
			zap.String("op", "engine.saveStats"),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) writeSession(session selector.Session) {
	if p.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.sessions.Write(ctx, session); err != nil {
		p.logger.Error("failed to write session log",
			zap.String("op", "engine.writeSession"),
			zap.Error(err),
		)
	}
}
